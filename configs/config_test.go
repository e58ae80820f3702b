package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:5000", cfg.Origin.URL.String())
	require.Equal(t, "ritualos", cfg.Cache.NamePrefix)
	require.Equal(t, "v1", cfg.Cache.Version)
	require.Equal(t, "network-first", cfg.Cache.Strategy)
	require.Equal(t, BackendMemory, cfg.Cache.Backend)
	require.Equal(t, "/api/", cfg.Cache.APIMarker)
	require.Equal(t, []string{"/taskflowai/dashboard", "/taskflowai/login"}, cfg.Cache.Fallbacks)
	require.Contains(t, cfg.Cache.Manifest, "/taskflowai/")
	require.Contains(t, cfg.Cache.Manifest, "https://cdn.tailwindcss.com")
	require.Equal(t, int64(10<<20), cfg.Cache.MaxEntryBytes)
	require.Equal(t, 30*time.Second, cfg.Cache.InstallRetry)
	require.Empty(t, cfg.Admin.JWTSecret)
	require.Contains(t, cfg.Database.DSN, "dbname=assetcache")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ORIGIN_URL", "https://tasks.example.com")
	t.Setenv("CACHE_STRATEGY", "cache-first")
	t.Setenv("CACHE_VERSION", "v7")
	t.Setenv("CACHE_MANIFEST", "/a, /b ,https://cdn.example.com/c.css")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/cache.db")
	t.Setenv("INSTALL_RETRY_INTERVAL", "5s")
	t.Setenv("INSTALL_MAX_ATTEMPTS", "3")
	t.Setenv("REDIS_CLUSTER_ADDRS", "r1:6379,r2:6379")
	t.Setenv("DB_DSN", "postgres://u:p@db/assets")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "tasks.example.com", cfg.Origin.URL.Host)
	require.Equal(t, "cache-first", cfg.Cache.Strategy)
	require.Equal(t, "v7", cfg.Cache.Version)
	require.Equal(t, []string{"/a", "/b", "https://cdn.example.com/c.css"}, cfg.Cache.Manifest)
	require.Equal(t, BackendSQLite, cfg.Cache.Backend)
	require.Equal(t, "/tmp/cache.db", cfg.SQLite.Path)
	require.Equal(t, 5*time.Second, cfg.Cache.InstallRetry)
	require.Equal(t, 3, cfg.Cache.InstallMaxAttempts)
	require.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.Redis.ClusterAddrs)
	require.Equal(t, "postgres://u:p@db/assets", cfg.Database.DSN)
	require.True(t, cfg.S3.UseSSL)
}

func TestLoad_InvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"relative origin":  {"ORIGIN_URL": "/taskflowai"},
		"unknown strategy": {"CACHE_STRATEGY": "stale-while-revalidate"},
		"unknown backend":  {"CACHE_BACKEND": "memcached"},
		"empty manifest":   {"CACHE_MANIFEST": "/a,,/b"},
		"s3 without keys":  {"CACHE_BACKEND": "s3"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "perhaps")
	require.Equal(t, 4, getIntEnv("X_INT", 4))
	require.Equal(t, time.Minute, getDurationEnv("X_DUR", time.Minute))
	require.False(t, getBoolEnv("X_BOOL", false))
	require.Equal(t, []string{"d"}, getListEnv("X_UNSET", []string{"d"}))
}
