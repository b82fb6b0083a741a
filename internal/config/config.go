package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/SteelMorgan/log-tailer/internal/offset"
)

// Sink names
const (
	SinkStdout     = "stdout"
	SinkClickHouse = "clickhouse"
)

// Config holds all configuration for the application
type Config struct {
	// Targets to tail, from TARGETS_FILE and/or TAIL_PATHS
	TargetsPath string
	Targets     []Target

	// Tailing
	PollInterval   time.Duration
	TimeLimit      time.Duration // Default per-call limit for targets without their own
	OffsetCapacity int

	// Sink
	Sink          string
	PrintPaths    bool // stdout sink: prefix each line with its file path
	Hostname      string
	RetentionDays int

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDB       string
	ClickHouseUser     string
	ClickHousePassword string

	// Batching and retry for the ClickHouse sink
	BatchMaxSize      int
	BatchFlushTimeout time.Duration
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	// Observability
	LogLevel       string
	LogFormat      string // console or json
	LogFile        string
	TracingEnabled bool
	OTLPEndpoint   string
	OTLPProtocol   string // grpc or http
}

// Load loads configuration from environment variables and the targets file
func Load() (*Config, error) {
	cfg := &Config{
		TargetsPath: getEnv("TARGETS_FILE", ""),

		PollInterval:   getEnvDuration("POLL_INTERVAL", time.Second),
		TimeLimit:      getEnvDuration("TIME_LIMIT", 30*time.Second),
		OffsetCapacity: getEnvInt("OFFSET_CAPACITY", offset.DefaultCapacity),

		Sink:          strings.ToLower(getEnv("SINK", SinkStdout)),
		PrintPaths:    getEnvBool("PRINT_PATHS", false),
		Hostname:      getEnv("HOSTNAME", hostname()),
		RetentionDays: getEnvInt("LOG_RETENTION_DAYS", 30),

		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDB:       getEnv("CLICKHOUSE_DB", "logs"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		BatchMaxSize:      getEnvInt("BATCH_MAX_SIZE", 1000),
		BatchFlushTimeout: getEnvDuration("BATCH_FLUSH_TIMEOUT", 5*time.Second),
		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getEnvDuration("RETRY_INITIAL_DELAY", 100*time.Millisecond),
		RetryMaxDelay:     getEnvDuration("RETRY_MAX_DELAY", 5*time.Second),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "console")),
		LogFile:        getEnv("LOG_FILE", ""),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", ""),
		OTLPProtocol:   strings.ToLower(getEnv("OTLP_PROTOCOL", "grpc")),
	}

	if cfg.TargetsPath != "" {
		targets, err := LoadTargets(cfg.TargetsPath)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, targets...)
	}
	cfg.Targets = append(cfg.Targets, targetsFromEnv(
		parseList(getEnv("TAIL_PATHS", "")),
		parseList(getEnv("TAIL_PATTERNS", "")),
	)...)

	for i := range cfg.Targets {
		if cfg.Targets[i].TimeLimit == 0 {
			cfg.Targets[i].TimeLimit = cfg.TimeLimit
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target must be configured via TARGETS_FILE or TAIL_PATHS")
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Path] {
			// one poller per file, offsets are not synchronized per key
			return fmt.Errorf("target path %s is configured more than once", t.Path)
		}
		seen[t.Path] = true
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.TimeLimit <= 0 {
		return fmt.Errorf("TIME_LIMIT must be positive")
	}
	if c.OffsetCapacity < 1 {
		return fmt.Errorf("OFFSET_CAPACITY must be at least 1")
	}
	if c.OffsetCapacity < len(c.Targets) {
		return fmt.Errorf("OFFSET_CAPACITY (%d) is smaller than the number of targets (%d)", c.OffsetCapacity, len(c.Targets))
	}

	switch c.Sink {
	case SinkStdout:
	case SinkClickHouse:
		if c.ClickHouseHost == "" {
			return fmt.Errorf("CLICKHOUSE_HOST is required")
		}
		if c.ClickHousePort <= 0 || c.ClickHousePort > 65535 {
			return fmt.Errorf("CLICKHOUSE_PORT must be between 1 and 65535")
		}
		if c.ClickHouseDB == "" {
			return fmt.Errorf("CLICKHOUSE_DB is required")
		}
		if c.BatchMaxSize < 1 {
			return fmt.Errorf("BATCH_MAX_SIZE must be at least 1")
		}
		if c.RetentionDays < 1 {
			return fmt.Errorf("LOG_RETENTION_DAYS must be at least 1")
		}
	default:
		return fmt.Errorf("unsupported SINK %q (use %q or %q)", c.Sink, SinkStdout, SinkClickHouse)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json")
	}
	if c.TracingEnabled && c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http" {
		return fmt.Errorf("OTLP_PROTOCOL must be grpc or http")
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration ("1s", "250ms") or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseList parses a semicolon-separated list
func parseList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ";")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
