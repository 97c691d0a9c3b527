package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/vectorgraph/internal/cli"
	"github.com/hyperjump/vectorgraph/internal/collection"
	"github.com/hyperjump/vectorgraph/internal/config"
	"github.com/hyperjump/vectorgraph/internal/graph"
	"github.com/hyperjump/vectorgraph/internal/search"
	"github.com/hyperjump/vectorgraph/internal/server"
	"github.com/hyperjump/vectorgraph/internal/storage"
	"github.com/hyperjump/vectorgraph/internal/vector"
	"github.com/hyperjump/vectorgraph/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vectorgraph",
		Short:         "Vector similarity search with a per-collection relationship graph",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "config file path")

	rootCmd.AddCommand(
		newServerCmd(),
		newStatusCmd(),
		newCollectionsCmd(),
		newConfigCmd(),
		newVersionCmd(version),
	)
	return rootCmd
}

func configFromFlags(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, resolved, nil
}

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolved, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			return runServer(cfg, resolved, cfg.Debug || debug)
		},
	}
	cmd.Flags().Bool("debug", false, "enable debug logging")
	return cmd
}

// components holds the wired server dependencies.
type components struct {
	Storage  storage.Storage
	Registry *collection.Registry
	Engine   *search.Engine
}

func (c *components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents opens the durable catalog (when configured), builds the
// registry and restores persisted collections.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	if _, err := vector.ParseIndexType(cfg.Search.IndexType); err != nil {
		return nil, fmt.Errorf("invalid search.index_type: %w", err)
	}
	c := &components{}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		c.Storage = store
	} else {
		logger.Warn("no database_path configured, on_disk collections will not persist")
	}

	c.Registry = collection.NewRegistry(collection.Options{
		Storage:         c.Storage,
		Logger:          logger,
		IndexType:       cfg.Search.IndexType,
		MaxVectorFields: cfg.Limits.MaxVectorFields,
		MaxBatchPoints:  cfg.Limits.MaxBatchPoints,
		GraphOptions: []graph.EngineOption{
			graph.WithMaxVisited(cfg.Graph.MaxVisitedNodes),
			graph.WithTimeout(cfg.Graph.TraversalTimeout),
		},
	})
	if err := c.Registry.Load(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	logger.Info("collections restored", zap.Int("count", c.Registry.Len()))
	c.Engine = search.NewEngine(c.Registry, &cfg.Search, logger)
	return c, nil
}

func runServer(cfg *config.Config, configPath string, debug bool) error {
	logger, err := utils.NewLogger(debug, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", configPath),
		zap.Bool("debug", debug),
	)

	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	srv := server.NewServer(comps.Registry, comps.Engine, comps.Storage, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func serverURL(cmd *cobra.Command, cfg *config.Config) string {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		return addr
	}
	return "http://" + cfg.Server.Address()
}

func outputFormat(cmd *cobra.Command) (cli.OutputFormat, error) {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return cli.OutputJSON, nil
	}
	s, _ := cmd.Flags().GetString("output")
	return cli.ParseOutputFormat(s)
}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "server base URL (default from config)")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	cmd.Flags().Bool("json", false, "shorthand for --output json")
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			status, err := cli.NewClient(serverURL(cmd, cfg)).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("server not reachable (is it running?): %w", err)
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			resp, err := cli.NewClient(serverURL(cmd, cfg)).Collections(cmd.Context())
			if err != nil {
				return fmt.Errorf("server not reachable (is it running?): %w", err)
			}
			return cli.WriteCollections(cmd.OutOrStdout(), resp, format)
		},
	}
	addClientFlags(cmd)
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective config, or write the defaults to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out, _ := cmd.Flags().GetString("write"); out != "" {
				if err := config.Save(out, config.Default()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", out)
				return nil
			}
			cfg, resolved, err := configFromFlags(cmd)
			if err != nil {
				return err
			}
			if resolved == "" {
				resolved = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", resolved)
			return config.Write(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().String("write", "", "write the default config to this path and exit")
	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vectorgraph version %s\n", version)
		},
	}
}
