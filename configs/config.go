package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Origin   OriginConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	SQLite   SQLiteConfig
	S3       S3Config
	Log      LogConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
}

type OriginConfig struct {
	URL     *url.URL
	Timeout time.Duration
}

type CacheConfig struct {
	NamePrefix         string
	Version            string
	Strategy           string
	Manifest           []string
	Fallbacks          []string
	APIMarker          string
	MaxEntryBytes      int64
	Backend            string
	InstallRetry       time.Duration
	InstallMaxAttempts int
	InstallConcurrency int
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	ClusterAddrs []string
	KeyPrefix    string
	// Pool and timeout settings
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	DSN      string
	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type SQLiteConfig struct {
	Path string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

type AdminConfig struct {
	// JWTSecret enables the admin API when set.
	JWTSecret string
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
)

// shell and fallbacks of the TaskFlow web app
var (
	defaultManifest = []string{
		"/taskflowai/",
		"/taskflowai/login",
		"/taskflowai/dashboard",
		"/taskflowai/static/css/custom.css",
		"/taskflowai/static/manifest.json",
		"https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css",
		"https://cdn.jsdelivr.net/npm/bootstrap-icons@1.11.2/font/bootstrap-icons.css",
		"https://cdn.tailwindcss.com",
		"https://unpkg.com/alpinejs",
	}
	defaultFallbacks = []string{"/taskflowai/dashboard", "/taskflowai/login"}
)

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	origin, err := url.Parse(getEnv("ORIGIN_URL", "http://localhost:5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORIGIN_URL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			TLSCertFile:  getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:   getEnv("TLS_KEY_FILE", ""),
		},
		Origin: OriginConfig{
			URL:     origin,
			Timeout: getDurationEnv("ORIGIN_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			NamePrefix:         getEnv("CACHE_NAME_PREFIX", "ritualos"),
			Version:            getEnv("CACHE_VERSION", "v1"),
			Strategy:           getEnv("CACHE_STRATEGY", "network-first"),
			Manifest:           getListEnv("CACHE_MANIFEST", defaultManifest),
			Fallbacks:          getListEnv("CACHE_FALLBACKS", defaultFallbacks),
			APIMarker:          getEnv("CACHE_API_MARKER", "/api/"),
			MaxEntryBytes:      int64(getIntEnv("CACHE_MAX_ENTRY_BYTES", 10<<20)),
			Backend:            getEnv("CACHE_BACKEND", BackendMemory),
			InstallRetry:       getDurationEnv("INSTALL_RETRY_INTERVAL", 30*time.Second),
			InstallMaxAttempts: getIntEnv("INSTALL_MAX_ATTEMPTS", 0),
			InstallConcurrency: getIntEnv("INSTALL_CONCURRENCY", 4),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			ClusterAddrs: getListEnv("REDIS_CLUSTER_ADDRS", nil),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "assetcache"),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolTimeout:  getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:  getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "assetcache"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "assetcache.db"),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
			Bucket:    getEnv("S3_BUCKET", "assetcache"),
			Region:    getEnv("S3_REGION", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			UseSSL:    getBoolEnv("S3_USE_SSL", false),
			Prefix:    getEnv("S3_PREFIX", "assetcache"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
	}

	// Build database DSN
	cfg.Database.DSN = getEnv("DB_DSN", fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the proxy cannot start with.
func (c *Config) Validate() error {
	if c.Origin.URL == nil || c.Origin.URL.Scheme == "" || c.Origin.URL.Host == "" {
		return fmt.Errorf("ORIGIN_URL must be an absolute URL")
	}
	switch c.Cache.Strategy {
	case "network-first", "cache-first":
	default:
		return fmt.Errorf("unknown CACHE_STRATEGY %q", c.Cache.Strategy)
	}
	switch c.Cache.Backend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendSQLite, BackendS3:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if c.Cache.NamePrefix == "" || c.Cache.Version == "" {
		return fmt.Errorf("CACHE_NAME_PREFIX and CACHE_VERSION are required")
	}
	for _, m := range c.Cache.Manifest {
		if m == "" {
			return fmt.Errorf("CACHE_MANIFEST contains an empty entry")
		}
	}
	if c.Cache.Backend == BackendS3 && (c.S3.AccessKey == "" || c.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required for the s3 backend")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, keeping empty items for validation to reject.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
