package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 6333
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vectorgraph/data/db/collections.db"
	}
	if cfg.Search.IndexType == "" {
		cfg.Search.IndexType = "memory"
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.DefaultPointTopK == 0 {
		cfg.Search.DefaultPointTopK = 10
	}
	if cfg.Search.BatchConcurrency == 0 {
		cfg.Search.BatchConcurrency = 8
	}
	if cfg.Graph.MaxVisitedNodes == 0 {
		cfg.Graph.MaxVisitedNodes = 100000
	}
	if cfg.Graph.TraversalTimeout == 0 {
		cfg.Graph.TraversalTimeout = 5 * time.Second
	}
	if cfg.Graph.StrongWeightThreshold == 0 {
		cfg.Graph.StrongWeightThreshold = 0.7
	}
	if cfg.Limits.MaxVectorFields == 0 {
		cfg.Limits.MaxVectorFields = 6
	}
	if cfg.Limits.MaxBatchPoints == 0 {
		cfg.Limits.MaxBatchPoints = 10000
	}
}
