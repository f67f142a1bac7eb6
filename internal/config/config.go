// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package config

import (
	"time"

	"github.com/tomtom215/cclsrec/internal/logging"
	"github.com/tomtom215/cclsrec/internal/recommend"
	"github.com/tomtom215/cclsrec/internal/recommend/dataset"
	"github.com/tomtom215/cclsrec/internal/recommend/history"
	"github.com/tomtom215/cclsrec/internal/recommend/trainer"
	"github.com/tomtom215/cclsrec/internal/supervisor"
)

// Config is the complete application configuration.
type Config struct {
	Logging  logging.Config        `koanf:"logging"`
	Data     DataConfig            `koanf:"data"`
	Model    recommend.ModelConfig `koanf:"model"`
	Training trainer.Config        `koanf:"training"`
	Storage  StorageConfig         `koanf:"storage"`
	History  history.Options       `koanf:"history"`
	Server   ServerConfig          `koanf:"server"`
}

// Source kinds for DataConfig.Source.
const (
	SourceFile   = "file"
	SourceDuckDB = "duckdb"
)

// DataConfig selects and filters the interaction log.
type DataConfig struct {
	// Source is "file" (JSONL, CSV, TSV) or "duckdb".
	Source string `koanf:"source" validate:"oneof=file duckdb"`

	// Path is the interaction file for the file source.
	Path string `koanf:"path"`

	// Format is jsonl, csv or tsv.
	Format dataset.Format `koanf:"format" validate:"oneof=jsonl csv tsv"`

	Fields dataset.Fields `koanf:"fields"`
	DuckDB DuckDBConfig   `koanf:"duckdb"`

	MaxSeqLength        int `koanf:"max_seq_length" validate:"min=1"`
	MinUserInteractions int `koanf:"min_user_interactions" validate:"min=0"`
	MinItemInteractions int `koanf:"min_item_interactions" validate:"min=0"`
}

// DuckDBConfig locates the relation read by the duckdb source.
type DuckDBConfig struct {
	Path            string `koanf:"path"`
	Relation        string `koanf:"relation"`
	TimestampIsTime bool   `koanf:"timestamp_is_time"`
}

// DatasetOptions returns the dataset construction options.
func (d *DataConfig) DatasetOptions() dataset.Options {
	return dataset.Options{
		MaxSeqLength:        d.MaxSeqLength,
		MinUserInteractions: d.MinUserInteractions,
		MinItemInteractions: d.MinItemInteractions,
	}
}

// StorageConfig locates the checkpoint store.
type StorageConfig struct {
	Dir  string `koanf:"dir" validate:"required"`
	Name string `koanf:"name" validate:"required,excludesall=/\\"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit" validate:"min=0"`

	// ReloadInterval is how often the checkpoint store is polled.
	ReloadInterval time.Duration `koanf:"reload_interval" validate:"gt=0"`

	Engine recommend.EngineConfig `koanf:"engine"`

	// Supervisor tunes restarts of the reloader and API services.
	Supervisor supervisor.TreeConfig `koanf:"supervisor"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	ds := dataset.DefaultOptions()
	return &Config{
		Logging: logging.DefaultConfig(),
		Data: DataConfig{
			Source:              SourceFile,
			Path:                "data/interactions.jsonl",
			Format:              dataset.FormatJSONL,
			Fields:              dataset.DefaultFields(),
			MaxSeqLength:        ds.MaxSeqLength,
			MinUserInteractions: ds.MinUserInteractions,
			MinItemInteractions: ds.MinItemInteractions,
		},
		Model:    recommend.DefaultModelConfig(),
		Training: trainer.DefaultConfig(),
		Storage: StorageConfig{
			Dir:  "data/checkpoints",
			Name: "cclsrec",
		},
		History: history.Options{
			Path: "data/history",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
			ReloadInterval:  time.Minute,
			Engine:          recommend.DefaultEngineConfig(),
			Supervisor:      supervisor.DefaultTreeConfig(),
		},
	}
}
