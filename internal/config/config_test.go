package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MESSAGES_TABLE", "chat-messages")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendDynamoDB, cfg.StoreBackend)
	require.Equal(t, "chat-messages", cfg.MessagesTable)
	require.Equal(t, "*/15 * * * *", cfg.SweepSchedule)
	require.Equal(t, 100, cfg.SweepMaxBatchSize)
	require.Equal(t, 1, cfg.SweepMaxInstances)
	require.Equal(t, 10, cfg.GlobalMaxInstances)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", " SQLite ")
	t.Setenv("SQLITE_PATH", "/tmp/sweeper.db")
	t.Setenv("SWEEP_MAX_BATCH_SIZE", "250")
	t.Setenv("SWEEP_SCHEDULE", "*/5 * * * *")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.StoreBackend)
	require.Equal(t, "/tmp/sweeper.db", cfg.SQLitePath)
	require.Equal(t, 250, cfg.SweepMaxBatchSize)
	require.Equal(t, "*/5 * * * *", cfg.SweepSchedule)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_TableFromParameter(t *testing.T) {
	t.Setenv("MESSAGES_TABLE_PARAM", "/chat/prod/messages_table")

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.MessagesTable)
	require.Equal(t, "/chat/prod/messages_table", cfg.MessagesTableParam)
}

func TestLoad_MissingTable(t *testing.T) {
	t.Setenv("MESSAGES_TABLE", "")
	t.Setenv("MESSAGES_TABLE_PARAM", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MESSAGES_TABLE")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.MessagesTable = "chat-messages"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "mongo" }, wantErr: "unknown STORE_BACKEND"},
		{name: "dynamo batch too large", mutate: func(c *Config) { c.SweepMaxBatchSize = 101 }, wantErr: "transaction limit"},
		{name: "batch size zero", mutate: func(c *Config) { c.SweepMaxBatchSize = 0 }, wantErr: "SWEEP_MAX_BATCH_SIZE"},
		{name: "sqlite large batch ok", mutate: func(c *Config) { c.StoreBackend = BackendSQLite; c.SweepMaxBatchSize = 1000 }},
		{name: "sqlite without path", mutate: func(c *Config) { c.StoreBackend = BackendSQLite; c.SQLitePath = " " }, wantErr: "SQLITE_PATH"},
		{name: "zero sweep instances", mutate: func(c *Config) { c.SweepMaxInstances = 0 }, wantErr: "SWEEP_MAX_INSTANCES"},
		{name: "sweep above global cap", mutate: func(c *Config) { c.GlobalMaxInstances = 2; c.SweepMaxInstances = 3 }, wantErr: "between 1 and 2"},
		{name: "zero global instances", mutate: func(c *Config) { c.GlobalMaxInstances = 0 }, wantErr: "GLOBAL_MAX_INSTANCES"},
		{name: "empty schedule", mutate: func(c *Config) { c.SweepSchedule = "" }, wantErr: "SWEEP_SCHEDULE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
