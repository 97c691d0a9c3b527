// Package main is the vectorgraph CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/vectorgraph/internal/config"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vectorgraph/config.yaml"

func main() {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vectorgraph: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence, and a missing default file falls
// back to built-in defaults plus environment overrides. Returns the config and
// the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cfg := config.Default()
			if err := config.ApplyEnv(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
