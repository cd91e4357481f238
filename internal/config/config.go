// Package config loads and validates the application configuration.
// Values come from an optional YAML file with environment variables
// taking precedence, so containerised deployments can override any field.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default limits matching the upload contract.
const (
	DefaultMaxUploadBytes = 10 << 20 // 10 MB
	DefaultUploadWindow   = time.Minute
)

// AppConfig holds the full server configuration.
type AppConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// UploadDir is the directory where audio files are stored.
	UploadDir string `yaml:"upload_dir"`

	// StoreBackend selects the metadata store ("sqlite" or "memory").
	StoreBackend string `yaml:"store_backend"`
	// DBPath is the sqlite database file (ignored for the memory backend).
	DBPath string `yaml:"db_path"`

	// MaxUploadBytes caps the accepted multipart file size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// FFmpegBin is the media conversion binary ("ffmpeg" on PATH by default).
	FFmpegBin string `yaml:"ffmpeg_bin"`
	// TranscodeTimeout bounds one external conversion call.
	TranscodeTimeout time.Duration `yaml:"transcode_timeout"`

	// CacheBackend selects the recordings list cache ("memory" or "redis").
	CacheBackend  string `yaml:"cache_backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// UploadRateLimit limits upload requests per client IP per window.
	UploadRateLimit int `yaml:"upload_rate_limit"`

	// AllowedOrigins configures CORS for browser clients.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AuthTokens maps bearer tokens to owner ids ("token:owner" pairs).
	// Session issuance lives in the platform's auth service; this server
	// only resolves an opaque owner identity from the presented token.
	AuthTokens map[string]string `yaml:"auth_tokens"`

	// LogLevel sets the zerolog level.
	LogLevel string `yaml:"log_level"`
}

// FromEnv builds the configuration from an optional YAML file at path
// (empty path skips the file) with environment overrides applied on top.
func FromEnv(path string) (AppConfig, error) {
	cfg := AppConfig{
		ListenAddr:       ":3001",
		UploadDir:        "uploads",
		StoreBackend:     "sqlite",
		DBPath:           "vocalis.db",
		MaxUploadBytes:   DefaultMaxUploadBytes,
		FFmpegBin:        "ffmpeg",
		TranscodeTimeout: 2 * time.Minute,
		CacheBackend:     "memory",
		UploadRateLimit:  30,
		LogLevel:         "info",
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg.ListenAddr = ParseString("VOCALIS_LISTEN_ADDR", cfg.ListenAddr)
	cfg.UploadDir = ParseString("VOCALIS_UPLOAD_DIR", cfg.UploadDir)
	cfg.StoreBackend = ParseString("VOCALIS_STORE_BACKEND", cfg.StoreBackend)
	cfg.DBPath = ParseString("VOCALIS_DB_PATH", cfg.DBPath)
	cfg.MaxUploadBytes = ParseInt64("VOCALIS_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.FFmpegBin = ParseString("VOCALIS_FFMPEG_BIN", cfg.FFmpegBin)
	cfg.TranscodeTimeout = ParseDuration("VOCALIS_TRANSCODE_TIMEOUT", cfg.TranscodeTimeout)
	cfg.CacheBackend = ParseString("VOCALIS_CACHE_BACKEND", cfg.CacheBackend)
	cfg.RedisAddr = ParseString("VOCALIS_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("VOCALIS_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = ParseInt("VOCALIS_REDIS_DB", cfg.RedisDB)
	cfg.UploadRateLimit = ParseInt("VOCALIS_UPLOAD_RATE_LIMIT", cfg.UploadRateLimit)
	cfg.LogLevel = ParseString("VOCALIS_LOG_LEVEL", cfg.LogLevel)

	if origins := ParseString("VOCALIS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}
	if tokens := ParseString("VOCALIS_AUTH_TOKENS", ""); tokens != "" {
		parsed, err := parseTokenPairs(tokens)
		if err != nil {
			return AppConfig{}, err
		}
		cfg.AuthTokens = parsed
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: listen address must not be empty")
	}
	if c.UploadDir == "" {
		return errors.New("config: upload directory must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.StoreBackend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.CacheBackend)
	}
	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		return errors.New("config: redis cache backend requires a redis address")
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseTokenPairs(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitAndTrim(s) {
		token, owner, ok := strings.Cut(pair, ":")
		if !ok || token == "" || owner == "" {
			return nil, fmt.Errorf("config: malformed auth token pair %q", pair)
		}
		out[token] = owner
	}
	return out, nil
}
