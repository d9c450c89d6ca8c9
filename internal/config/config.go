package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/geo"
)

// Cache backends selectable with CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// DefaultFeedURL is the public SOS feed for the Hat Yai flood response.
const DefaultFeedURL = "https://storage.googleapis.com/pple-media/hdy-flood/sos.json"

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedURL        string
	FeedRateLimit  float64
	PollInterval   time.Duration
	FilterDebounce time.Duration
	OffloadEnabled bool

	// Deployment bounding box used to reject corrupt coordinates.
	MinLon, MaxLon float64
	MinLat, MaxLat float64

	// Cache configuration.
	CacheEnabled    bool
	CacheBackend    string
	CacheQuotaBytes int64
	CacheSQLitePath string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	PrefsPath string

	// Marker publishing to an external map frontend.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaMarkerTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Bounds returns the configured deployment bounding box.
func (c *Config) Bounds() geo.Bounds {
	return geo.NewBounds(c.MinLat, c.MinLon, c.MaxLat, c.MaxLon)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	debounce, err := parseDuration("FILTER_DEBOUNCE", "300ms")
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveFloat("FEED_RATE_LIMIT", "1")
	if err != nil {
		return nil, err
	}
	quota, err := parsePositiveInt("CACHE_QUOTA_BYTES", 5*1024*1024)
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	cfg := &Config{
		FeedURL:        sharedcfg.EnvOrDefault("FEED_URL", DefaultFeedURL),
		FeedRateLimit:  rateLimit,
		PollInterval:   pollInterval,
		FilterDebounce: debounce,
		OffloadEnabled: parseBool("OFFLOAD_ENABLED", true),

		CacheEnabled:    parseBool("CACHE_ENABLED", true),
		CacheBackend:    sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheBackendMemory),
		CacheQuotaBytes: int64(quota),
		CacheSQLitePath: sharedcfg.EnvOrDefault("CACHE_SQLITE_PATH", "floodmap-cache.db"),
		RedisAddr:       sharedcfg.EnvOrDefault("REDIS_HOST", "127.0.0.1") + ":" + sharedcfg.EnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword:   os.Getenv("REDIS_PASS"),
		RedisDB:         redisDB,

		PrefsPath: os.Getenv("PREFS_PATH"),

		KafkaEnabled:     parseBool("KAFKA_ENABLED", false),
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaMarkerTopic: sharedcfg.EnvOrDefault("KAFKA_MARKER_TOPIC", "flood-markers"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := loadBounds(cfg); err != nil {
		return nil, err
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	switch cfg.CacheBackend {
	case CacheBackendMemory, CacheBackendSQLite, CacheBackendRedis:
	default:
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory, sqlite or redis", cfg.CacheBackend)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaMarkerTopic == "" {
		return nil, errors.New("KAFKA_MARKER_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func loadBounds(cfg *Config) error {
	fields := []struct {
		key string
		def string
		dst *float64
	}{
		{"BBOX_MIN_LON", "97", &cfg.MinLon},
		{"BBOX_MAX_LON", "106", &cfg.MaxLon},
		{"BBOX_MIN_LAT", "5", &cfg.MinLat},
		{"BBOX_MAX_LAT", "21", &cfg.MaxLat},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(f.key, f.def), 64)
		if err != nil {
			return fmt.Errorf("invalid %s", f.key)
		}
		*f.dst = v
	}
	if cfg.MinLon >= cfg.MaxLon || cfg.MinLat >= cfg.MaxLat {
		return errors.New("invalid bounding box: BBOX_MIN_* must be below BBOX_MAX_*")
	}
	if cfg.MinLat < -90 || cfg.MaxLat > 90 || cfg.MinLon < -180 || cfg.MaxLon > 180 {
		return errors.New("invalid bounding box: BBOX_* outside latitude/longitude range")
	}
	return nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
