// Package config holds the deployment-wide settings of the sweeper. They are
// read once at process start and passed down explicitly.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"

	// maxDynamoBatchSize is the TransactWriteItems action limit.
	maxDynamoBatchSize = 100
)

// Config is the full runtime configuration.
type Config struct {
	StoreBackend string `mapstructure:"store_backend"`

	MessagesTable      string `mapstructure:"messages_table"`
	MessagesTableParam string `mapstructure:"messages_table_param"`
	SQLitePath         string `mapstructure:"sqlite_path"`

	SweepSchedule      string `mapstructure:"sweep_schedule"`
	SweepMaxBatchSize  int    `mapstructure:"sweep_max_batch_size"`
	SweepMaxInstances  int    `mapstructure:"sweep_max_instances"`
	GlobalMaxInstances int    `mapstructure:"global_max_instances"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		StoreBackend:       BackendDynamoDB,
		SQLitePath:         "data/messages.db",
		SweepSchedule:      "*/15 * * * *",
		SweepMaxBatchSize:  maxDynamoBatchSize,
		SweepMaxInstances:  1,
		GlobalMaxInstances: 10,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load builds configuration from defaults overridden by environment
// variables (MESSAGES_TABLE, SWEEP_MAX_BATCH_SIZE, ...).
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	cfg := Default()

	v.SetDefault("store_backend", cfg.StoreBackend)
	v.SetDefault("messages_table", cfg.MessagesTable)
	v.SetDefault("messages_table_param", cfg.MessagesTableParam)
	v.SetDefault("sqlite_path", cfg.SQLitePath)
	v.SetDefault("sweep_schedule", cfg.SweepSchedule)
	v.SetDefault("sweep_max_batch_size", cfg.SweepMaxBatchSize)
	v.SetDefault("sweep_max_instances", cfg.SweepMaxInstances)
	v.SetDefault("global_max_instances", cfg.GlobalMaxInstances)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.AutomaticEnv()

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.MessagesTable = strings.TrimSpace(cfg.MessagesTable)
	cfg.MessagesTableParam = strings.TrimSpace(cfg.MessagesTableParam)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendDynamoDB:
		if c.MessagesTable == "" && c.MessagesTableParam == "" {
			return errors.New("config: MESSAGES_TABLE or MESSAGES_TABLE_PARAM is required for the dynamodb backend")
		}
		if c.SweepMaxBatchSize > maxDynamoBatchSize {
			return fmt.Errorf("config: SWEEP_MAX_BATCH_SIZE %d exceeds the dynamodb transaction limit of %d", c.SweepMaxBatchSize, maxDynamoBatchSize)
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("config: SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.SweepMaxBatchSize < 1 {
		return fmt.Errorf("config: SWEEP_MAX_BATCH_SIZE must be at least 1, got %d", c.SweepMaxBatchSize)
	}
	if c.GlobalMaxInstances < 1 {
		return fmt.Errorf("config: GLOBAL_MAX_INSTANCES must be at least 1, got %d", c.GlobalMaxInstances)
	}
	if c.SweepMaxInstances < 1 || c.SweepMaxInstances > c.GlobalMaxInstances {
		return fmt.Errorf("config: SWEEP_MAX_INSTANCES must be between 1 and %d, got %d", c.GlobalMaxInstances, c.SweepMaxInstances)
	}
	if strings.TrimSpace(c.SweepSchedule) == "" {
		return errors.New("config: SWEEP_SCHEDULE must not be empty")
	}
	return nil
}
