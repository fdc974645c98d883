package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	BaseURL           string        `mapstructure:"PORTAL_BASE_URL"`
	LegacyBaseURL     string        `mapstructure:"REACT_APP_BASE_URL"`
	Env               string        `mapstructure:"PORTAL_ENV"`
	LogLevel          string        `mapstructure:"PORTAL_LOG_LEVEL"`
	SessionFile       string        `mapstructure:"PORTAL_SESSION_FILE"`
	PageSize          int           `mapstructure:"PORTAL_PAGE_SIZE"`
	HTTPTimeout       time.Duration `mapstructure:"PORTAL_HTTP_TIMEOUT"`
	SandboxPort       string        `mapstructure:"SANDBOX_PORT"`
	SandboxSigningKey string        `mapstructure:"SANDBOX_SIGNING_KEY"`
	SandboxTokenTTL   time.Duration `mapstructure:"SANDBOX_TOKEN_TTL"`
}

// MaxPageSize caps PORTAL_PAGE_SIZE.
const MaxPageSize = 100

var keys = []string{
	"PORTAL_BASE_URL",
	"REACT_APP_BASE_URL",
	"PORTAL_ENV",
	"PORTAL_LOG_LEVEL",
	"PORTAL_SESSION_FILE",
	"PORTAL_PAGE_SIZE",
	"PORTAL_HTTP_TIMEOUT",
	"SANDBOX_PORT",
	"SANDBOX_SIGNING_KEY",
	"SANDBOX_TOKEN_TTL",
}

// Load reads the environment and an optional .env file in the working
// directory. envFiles are loaded into the process environment first; they
// never override variables that are already set.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORTAL_ENV", "development")
	v.SetDefault("PORTAL_LOG_LEVEL", "info")
	v.SetDefault("PORTAL_PAGE_SIZE", 20)
	v.SetDefault("PORTAL_HTTP_TIMEOUT", "30s")
	v.SetDefault("SANDBOX_PORT", "8080")
	v.SetDefault("SANDBOX_TOKEN_TTL", "15m")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LegacyBaseURL), "/")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.SandboxPort
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level parses PORTAL_LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// SessionPath is where login sessions are kept. Without PORTAL_SESSION_FILE
// it is staff-portal/session.json under the user config directory.
func (c *Config) SessionPath() (string, error) {
	if c.SessionFile != "" {
		return c.SessionFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "staff-portal", "session.json"), nil
}

// Validate checks that the configuration is usable. In production the base
// URL must be https and the sandbox signing key must be set.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("PORTAL_BASE_URL %q is not an absolute URL", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PORTAL_BASE_URL must use http or https, got %q", u.Scheme)
	}
	if c.IsProduction() && u.Scheme != "https" {
		return fmt.Errorf("PORTAL_BASE_URL must use https in production")
	}

	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return fmt.Errorf("PORTAL_PAGE_SIZE must be between 1 and %d, got %d", MaxPageSize, c.PageSize)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("PORTAL_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.SandboxTokenTTL <= 0 {
		return fmt.Errorf("SANDBOX_TOKEN_TTL must be positive, got %s", c.SandboxTokenTTL)
	}

	if c.IsProduction() && c.SandboxSigningKey == "" {
		return fmt.Errorf("SANDBOX_SIGNING_KEY is required in production")
	}
	if c.SandboxSigningKey != "" && len(c.SandboxSigningKey) < 16 {
		return fmt.Errorf("SANDBOX_SIGNING_KEY must be at least 16 bytes, got %d", len(c.SandboxSigningKey))
	}
	return nil
}
