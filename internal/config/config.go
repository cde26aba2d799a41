package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Store     StoreConfig     `toml:"store" mapstructure:"store"`
	Collector CollectorConfig `toml:"collector" mapstructure:"collector"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	Log       *LogConfig      `toml:"log" mapstructure:"log"`
	Sinks     []SinkConfig    `toml:"sinks" mapstructure:"sinks"`
}

type StoreConfig struct {
	// DSN selects the history store backend: "memory:", a sqlite path,
	// "sqlite://...", or "postgres://...".
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type CollectorConfig struct {
	QueueSize        int           `toml:"queue_size" mapstructure:"queue_size"`
	Retention        string        `toml:"retention" mapstructure:"retention"`
	MaxRetryInterval time.Duration `toml:"max_retry_interval" mapstructure:"max_retry_interval"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type SinkConfig struct {
	// DSN selects an analytics sink, e.g. "clickhouse://host:9000?table=status_history".
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type LogConfig struct {
	Path       string `toml:"path" mapstructure:"path"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Load reads a TOML config file and applies defaults and validation.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	fc.applyDefaults()
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *FileConfig) applyDefaults() {
	if fc.Server.Listen == "" {
		fc.Server.Listen = ":8080"
	}
	if fc.Server.BasePath == "" {
		fc.Server.BasePath = "/status"
	}
	if fc.Collector.QueueSize <= 0 {
		fc.Collector.QueueSize = 64
	}
	if fc.Collector.Retention == "" {
		fc.Collector.Retention = "purge"
	}
}

// Validate checks cross-field constraints.
func (fc *FileConfig) Validate() error {
	switch fc.Collector.Retention {
	case "purge", "retain":
	default:
		return fmt.Errorf("invalid retention %q (want purge or retain)", fc.Collector.Retention)
	}
	if !strings.HasPrefix(fc.Server.BasePath, "/") {
		return fmt.Errorf("server base_path must start with '/': %q", fc.Server.BasePath)
	}
	for i, s := range fc.Sinks {
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("sinks[%d]: empty dsn", i)
		}
	}
	return nil
}
