package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"depth_go/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	defaultBufferLimit   = 1024
	defaultChecksumDepth = 25
	defaultInboxSize     = 4096
	defaultLimitRefresh  = 60
	defaultBooksChannel  = "books"
)

// Config holds every application setting.
// It is loaded from YAML by LoadConfig; secrets are then overridden from the environment.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		OKX struct {
			WSURL       string   `yaml:"ws_url"`
			RestURL     string   `yaml:"rest_url"`
			AccessKey   string   `yaml:"access_key"`
			SecretKey   string   `yaml:"secret_key"`
			Passphrase  string   `yaml:"passphrase"`
			Instruments []string `yaml:"instruments"`
			// BooksChannel is the depth channel to subscribe ("books", "books-l2-tbt", ...).
			BooksChannel         string `yaml:"books_channel"`
			PriceLimitRefreshSec int    `yaml:"price_limit_refresh_sec"`
		} `yaml:"okx"`
	} `yaml:"api"`

	Engine struct {
		BufferLimit   int `yaml:"buffer_limit"`
		ChecksumDepth int `yaml:"checksum_depth"`
		InboxSize     int `yaml:"inbox_size"`
	} `yaml:"engine"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML bytes, applies defaults and env overrides, and validates.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// Secrets never need to live in the file.
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.BufferLimit == 0 {
		c.Engine.BufferLimit = defaultBufferLimit
	}
	if c.Engine.ChecksumDepth == 0 {
		c.Engine.ChecksumDepth = defaultChecksumDepth
	}
	if c.Engine.InboxSize == 0 {
		c.Engine.InboxSize = defaultInboxSize
	}
	if c.API.OKX.PriceLimitRefreshSec == 0 {
		c.API.OKX.PriceLimitRefreshSec = defaultLimitRefresh
	}
	if c.API.OKX.BooksChannel == "" {
		c.API.OKX.BooksChannel = defaultBooksChannel
	}
	if c.Logging.File == "" {
		c.Logging.File = "logs/app.log"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	okx := c.API.OKX
	if okx.WSURL == "" || (!strings.HasPrefix(okx.WSURL, "ws://") && !strings.HasPrefix(okx.WSURL, "wss://")) {
		return &ConfigError{Field: "api.okx.ws_url", Err: fmt.Errorf("invalid websocket url %q", okx.WSURL)}
	}
	if okx.RestURL == "" || (!strings.HasPrefix(okx.RestURL, "http://") && !strings.HasPrefix(okx.RestURL, "https://")) {
		return &ConfigError{Field: "api.okx.rest_url", Err: fmt.Errorf("invalid rest url %q", okx.RestURL)}
	}
	if len(okx.Instruments) == 0 {
		return &ConfigError{Field: "api.okx.instruments", Err: errors.New("at least one instrument is required")}
	}
	seen := make(map[string]bool, len(okx.Instruments))
	for _, inst := range okx.Instruments {
		if inst == "" || seen[inst] {
			return &ConfigError{Field: "api.okx.instruments", Err: fmt.Errorf("empty or duplicate instrument %q", inst)}
		}
		seen[inst] = true
	}
	if okx.PriceLimitRefreshSec < 0 {
		return &ConfigError{Field: "api.okx.price_limit_refresh_sec", Err: errors.New("must not be negative")}
	}

	if c.Engine.BufferLimit < 0 {
		return &ConfigError{Field: "engine.buffer_limit", Err: errors.New("must be positive")}
	}
	if c.Engine.ChecksumDepth < 0 {
		return &ConfigError{Field: "engine.checksum_depth", Err: errors.New("must be positive")}
	}
	if c.Engine.InboxSize < 0 {
		return &ConfigError{Field: "engine.inbox_size", Err: errors.New("must be positive")}
	}

	return nil
}

// ConfigError is domain.ConfigError, aliased for the config layer.
type ConfigError = domain.ConfigError

// overrideWithEnv replaces values with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("DEPTH_OKX_KEY"); key != "" {
		cfg.API.OKX.AccessKey = key
	}
	if secret := os.Getenv("DEPTH_OKX_SECRET"); secret != "" {
		cfg.API.OKX.SecretKey = secret
	}
	if pass := os.Getenv("DEPTH_OKX_PASSPHRASE"); pass != "" {
		cfg.API.OKX.Passphrase = pass
	}
	if level := os.Getenv("DEPTH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
