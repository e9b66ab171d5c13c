package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"whispra-server/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	// EnvDevelopment echoes internal error details to clients
	EnvDevelopment = "development"
	// EnvProduction hides internal error details
	EnvProduction = "production"
)

// Seconds is a duration written as a number of seconds in config files
type Seconds time.Duration

// UnmarshalJSON reads a JSON number of seconds
func (s *Seconds) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a number of seconds: %w", err)
	}
	*s = Seconds(secs * float64(time.Second))
	return nil
}

// MarshalJSON writes the duration as a number of seconds
func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

// Duration converts s to a time.Duration
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// Config holds all configuration settings
type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Port         int    `json:"port"`
		Host         string `json:"host"`
		ForceHTTPS   bool   `json:"force_https"`
		MaxBodyBytes int64  `json:"max_body_bytes"`
	} `json:"server"`
	Database struct {
		DSN        string  `json:"dsn"`
		MaxRetries int     `json:"max_retries"`
		RetryDelay Seconds `json:"retry_delay_seconds"`
	} `json:"database"`
	Telegram struct {
		Enabled     bool    `json:"enabled"`
		BotToken    string  `json:"bot_token"`
		APIEndpoint string  `json:"api_endpoint"`
		PollTimeout int     `json:"poll_timeout"` // seconds, long polling
		SendTimeout Seconds `json:"send_timeout_seconds"`
	} `json:"telegram"`
	Frontend struct {
		BaseURL string `json:"base_url"`
	} `json:"frontend"`
	Redis struct {
		Addr     string  `json:"addr"`
		Password string  `json:"password"`
		DB       int     `json:"db"`
		TTL      Seconds `json:"ttl_seconds"`
	} `json:"redis"`
	Logging struct {
		Level string `json:"level"`
		Path  string `json:"path"`
	} `json:"logging"`
}

// Load builds the runtime configuration: defaults, then the optional JSON
// file named by CONFIG_PATH, then environment variables (.env included)
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal in production
	_ = godotenv.Load(envFiles...)

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from a JSON file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	config := &Config{}
	config.Environment = EnvDevelopment
	config.Server.Port = 3001
	config.Server.Host = ""
	config.Server.MaxBodyBytes = 64 << 10
	config.Database.DSN = "file:whispra.db?cache=shared&mode=rwc"
	config.Database.MaxRetries = 5
	config.Database.RetryDelay = Seconds(3 * time.Second)
	config.Telegram.Enabled = true
	config.Telegram.PollTimeout = 10
	config.Telegram.SendTimeout = Seconds(15 * time.Second)
	config.Frontend.BaseURL = "http://localhost:3000"
	config.Redis.TTL = Seconds(24 * time.Hour)
	config.Logging.Level = "info"
	config.Logging.Path = "logs/server.log"
	return config
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid int for env %s: %q", key, v))
			return
		}
		*dst = i
	}
	setSeconds := func(key string, dst *Seconds) {
		secs := -1
		setInt(key, &secs)
		if secs >= 0 {
			*dst = Seconds(time.Duration(secs) * time.Second)
		}
	}
	setBool := func(key string, dst *bool) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid bool for env %s: %q", key, v))
			return
		}
		*dst = b
	}

	setString("NODE_ENV", &c.Environment)
	setString("APP_ENV", &c.Environment)
	setInt("PORT", &c.Server.Port)
	setString("HOST", &c.Server.Host)
	setBool("FORCE_HTTPS", &c.Server.ForceHTTPS)
	setString("DATABASE_URL", &c.Database.DSN)
	setInt("DB_MAX_RETRIES", &c.Database.MaxRetries)
	setSeconds("DB_RETRY_DELAY_SECONDS", &c.Database.RetryDelay)
	setBool("TELEGRAM_ENABLED", &c.Telegram.Enabled)
	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	setString("TELEGRAM_API_ENDPOINT", &c.Telegram.APIEndpoint)
	setString("FRONTEND_URL", &c.Frontend.BaseURL)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setInt("REDIS_DB", &c.Redis.DB)
	setSeconds("REDIS_TTL_SECONDS", &c.Redis.TTL)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_PATH", &c.Logging.Path)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max request body size must be > 0"))
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("environment must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.Database.MaxRetries <= 0 {
		errs = append(errs, errors.New("database max retries must be > 0"))
	}
	if c.Database.RetryDelay < 0 {
		errs = append(errs, errors.New("database retry delay must not be negative"))
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required when the bot is enabled"))
	}
	if c.Frontend.BaseURL == "" {
		errs = append(errs, errors.New("frontend base URL is required"))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether internal error details may be shown to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// ListenAddr returns the address the HTTP server binds to; an empty host
// listens on every interface
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
