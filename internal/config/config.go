package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	BaseURL           string        // public origin encoded into every QR image (ex: https://qr.domain.ext)
	ListenPort        string        // ex: ":8080"
	ShutdownTimeout   time.Duration // ex: 5s
	ReadHeaderTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Persistence
	Store          string // "memory" | "postgres"
	DatabaseDSN    string // required when Store is postgres
	DBMigrate      bool   // run embedded migrations on startup
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxLife  time.Duration

	// Caching
	Cache           string        // "memory" | "redis"
	CacheCapacity   int           // entries kept by the in-process cache
	ResolveCacheTTL time.Duration // lifetime of a cached resolution
	ImageCacheTTL   time.Duration // lifetime of a cached rendered image

	// Redis (only when Cache is redis)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisPoolSize       int
	RedisNamespace      string        // key prefix for cache entries
	ConnectTimeout      time.Duration // total time to wait for redis or postgres at startup
	ConnectRetry        time.Duration // initial wait between attempts, grows exponentially
	ConnectMaxWait      time.Duration // cap between attempts
	ConnectPingTimeout  time.Duration // timeout of each attempt
	ConnectWarnAttempts int           // warn for this many attempts, then log errors

	// Identifiers
	IDMaxAttempts int

	// Audit
	AuditQueueSize    int
	AuditWorkers      int
	AuditDropPolicy   string // "drop-new" | "drop-oldest"
	AuditWriteTimeout time.Duration

	// Cache warmer
	WarmInterval time.Duration // 0 disables
	WarmTopN     int

	SeedFile string // optional YAML of applications and pre-assigned mappings

	// Access restrictions
	AllowedHosts      []string // optional, restrict access to specific Host headers
	AdminAllowedCIDRS []string // optional, restrict /api/admin to these networks
	TrustProxy        bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateLimitBurst    int      // per-IP bucket size on public routes
	RateLimitPerMin   int      // per-IP refill rate on public routes (0 = disabled)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		BaseURL:           strings.TrimRight(requireEnv("QRLINK_BASE_URL"), "/"),
		ListenPort:        listenAddr(getenv("QRLINK_PORT", "8080")),
		ShutdownTimeout:   mustDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout: mustDuration("READ_HEADER_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("QRLINK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("QRLINK_LOG_PRETTY", false),

		// Persistence
		Store:          strings.ToLower(getenv("QRLINK_STORE", StoreMemory)),
		DatabaseDSN:    getenv("QRLINK_DATABASE_DSN", ""),
		DBMigrate:      mustBool("QRLINK_DB_MIGRATE", true),
		DBMaxOpenConns: getenvInt("QRLINK_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getenvInt("QRLINK_DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLife:  mustDuration("QRLINK_DB_CONN_MAX_LIFETIME", 30*time.Minute),

		// Caching
		Cache:           strings.ToLower(getenv("QRLINK_CACHE", CacheMemory)),
		CacheCapacity:   getenvInt("QRLINK_CACHE_CAPACITY", 10000),
		ResolveCacheTTL: mustDuration("QRLINK_RESOLVE_CACHE_TTL", time.Hour),
		ImageCacheTTL:   mustDuration("QRLINK_IMAGE_CACHE_TTL", time.Hour),

		// Redis settings
		RedisAddr:           getenv("REDIS_ADDR", ""),
		RedisUser:           getenv("REDIS_USERNAME", ""),
		RedisPassword:       getenv("REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisNamespace:      getenv("REDIS_NAMESPACE", "qrlink:cache:"),
		ConnectTimeout:      mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		ConnectRetry:        mustDuration("REDIS_CONNECT_RETRY_INTERVAL", 2*time.Second),
		ConnectMaxWait:      mustDuration("REDIS_CONNECT_MAX_WAIT", 10*time.Second),
		ConnectPingTimeout:  mustDuration("REDIS_CONNECT_PING_TIMEOUT", 5*time.Second),
		ConnectWarnAttempts: getenvInt("REDIS_CONNECT_WARN_THRESHOLD", 3),

		IDMaxAttempts: getenvInt("QRLINK_ID_MAX_ATTEMPTS", 10),

		AuditQueueSize:    getenvInt("QRLINK_AUDIT_QUEUE_SIZE", 1024),
		AuditWorkers:      getenvInt("QRLINK_AUDIT_WORKERS", 2),
		AuditDropPolicy:   getenv("QRLINK_AUDIT_DROP_POLICY", "drop-new"),
		AuditWriteTimeout: mustDuration("QRLINK_AUDIT_WRITE_TIMEOUT", 2*time.Second),

		WarmInterval: mustDuration("QRLINK_WARM_INTERVAL", 5*time.Minute),
		WarmTopN:     getenvInt("QRLINK_WARM_TOP_N", 50),

		SeedFile: getenv("QRLINK_SEED_FILE", ""),

		// Access restrictions
		AllowedHosts:      splitAndTrim(getenv("QRLINK_ALLOWED_HOSTS", "")),
		AdminAllowedCIDRS: parseAllowedIPs(getenv("QRLINK_ADMIN_ALLOWED_CIDRS", "")),
		TrustProxy:        mustBool("TRUST_PROXY", false),
		RateLimitBurst:    getenvInt("RATE_LIMIT_BURST", 30),
		RateLimitPerMin:   getenvInt("RATE_LIMIT_PER_MIN", 120),
	}

	if err := cfg.validate(); err != nil {
		panic("❌ FATAL: " + err.Error())
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.DatabaseDSN != "" {
			cfgCopy.DatabaseDSN = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("QRLINK_DATABASE_DSN is required when QRLINK_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("QRLINK_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store)
	}

	switch c.Cache {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when QRLINK_CACHE=%s", CacheRedis)
		}
	default:
		return fmt.Errorf("QRLINK_CACHE must be %q or %q, got %q", CacheMemory, CacheRedis, c.Cache)
	}

	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("QRLINK_BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.IDMaxAttempts < 1 {
		return fmt.Errorf("QRLINK_ID_MAX_ATTEMPTS must be >= 1, got %d", c.IDMaxAttempts)
	}
	return nil
}

// listenAddr accepts "8080" or ":8080".
func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
