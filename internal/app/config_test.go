package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/koperasi/testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("SYNC_CONCURRENCY", "8")

	require.True(t, InTestMode())
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 8, cfg.SyncConcurrency)
	require.True(t, cfg.SyncAutoPost)
	require.Empty(t, cfg.RedisAddr)
	require.False(t, cfg.RedisOptions().Enabled())
	require.Equal(t, int32(10), cfg.PGMaxConns)
	require.Equal(t, "0 2 * * *", cfg.GLIntegrityCron)
	require.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"postgres", Config{StoreDriver: "postgres", PGDSN: "postgres://x", SyncConcurrency: 1}, true},
		{"postgres without dsn", Config{StoreDriver: "postgres", SyncConcurrency: 1}, false},
		{"sqlite without path", Config{StoreDriver: "sqlite", SyncConcurrency: 1}, false},
		{"unknown driver", Config{StoreDriver: "mysql", SyncConcurrency: 1}, false},
		{"zero concurrency", Config{StoreDriver: "memory"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestRedisOptions(t *testing.T) {
	cfg := Config{RedisAddr: "redis:6379", RedisPassword: "s3cret", RedisDB: 2}
	opts := cfg.RedisOptions()
	require.True(t, opts.Enabled())
	require.Equal(t, "redis:6379", opts.Asynq().Addr)
	require.Equal(t, 2, opts.Asynq().DB)
	require.Equal(t, "s3cret", opts.Asynq().Password)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel("debug").String())
	require.Equal(t, "WARN", parseLevel(" Warning").String())
	require.Equal(t, "INFO", parseLevel("verbose").String())
}
