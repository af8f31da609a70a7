package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pders01/podrelay/internal/validation"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Podcast   PodcastConfig   `mapstructure:"podcast"`
	Player    PlayerConfig    `mapstructure:"player"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type ProxyConfig struct {
	DefaultFeedURL string        `mapstructure:"default_feed_url"`
	AllowedHosts   []string      `mapstructure:"allowed_hosts"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CacheSize      int           `mapstructure:"cache_size"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	Retries        int           `mapstructure:"retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type PodcastConfig struct {
	Language   string `mapstructure:"language"`
	Timezone   string `mapstructure:"timezone"`
	StatsFile  string `mapstructure:"stats_file"`
	WatchStats bool   `mapstructure:"watch_stats"`
}

// PlayerConfig picks the audio player used by `episodes play`.
type PlayerConfig struct {
	Preferred       []string `mapstructure:"preferred"`
	DefinitionsFile string   `mapstructure:"definitions_file"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":3001",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Proxy: ProxyConfig{
			DefaultFeedURL: "https://anchor.fm/s/59923dcc/podcast/rss",
			AllowedHosts:   []string{"anchor.fm", "podcasters.spotify.com", "spotify.com"},
			CacheTTL:       5 * time.Minute,
			CacheSize:      64,
			HTTPTimeout:    10 * time.Second,
			UserAgent:      "PodcastProxy/1.0",
			MaxBodyBytes:   10 << 20,
			Retries:        0,
			RetryBackoff:   500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Podcast: PodcastConfig{
			Language: "en-US",
			Timezone: "UTC",
		},
		Player: PlayerConfig{
			Preferred: []string{},
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// settings flattens cfg into dotted viper keys. Durations are rendered as
// strings so the generated TOML stays readable.
func settings(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"server.addr":                cfg.Server.Addr,
		"server.read_header_timeout": cfg.Server.ReadHeaderTimeout.String(),
		"server.shutdown_timeout":    cfg.Server.ShutdownTimeout.String(),

		"proxy.default_feed_url": cfg.Proxy.DefaultFeedURL,
		"proxy.allowed_hosts":    cfg.Proxy.AllowedHosts,
		"proxy.cache_ttl":        cfg.Proxy.CacheTTL.String(),
		"proxy.cache_size":       cfg.Proxy.CacheSize,
		"proxy.http_timeout":     cfg.Proxy.HTTPTimeout.String(),
		"proxy.user_agent":       cfg.Proxy.UserAgent,
		"proxy.max_body_bytes":   cfg.Proxy.MaxBodyBytes,
		"proxy.retries":          cfg.Proxy.Retries,
		"proxy.retry_backoff":    cfg.Proxy.RetryBackoff.String(),

		"rate_limit.enabled":  cfg.RateLimit.Enabled,
		"rate_limit.requests": cfg.RateLimit.Requests,
		"rate_limit.window":   cfg.RateLimit.Window.String(),

		"logging.level": cfg.Logging.Level,
		"logging.file":  cfg.Logging.File,

		"podcast.language":    cfg.Podcast.Language,
		"podcast.timezone":    cfg.Podcast.Timezone,
		"podcast.stats_file":  cfg.Podcast.StatsFile,
		"podcast.watch_stats": cfg.Podcast.WatchStats,

		"player.preferred":        cfg.Player.Preferred,
		"player.definitions_file": cfg.Player.DefinitionsFile,
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Defaults are registered per leaf key so a partial [section] in the file
	// or a single environment variable only overrides what it names.
	for key, value := range settings(defaultConfig()) {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "podrelay")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PODRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := normalizePaths(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Proxy.DefaultFeedURL) == "" {
		return fmt.Errorf("proxy.default_feed_url must not be empty")
	}
	if len(c.Proxy.AllowedHosts) == 0 {
		return fmt.Errorf("proxy.allowed_hosts must list at least one host")
	}
	if c.Proxy.CacheTTL <= 0 {
		return fmt.Errorf("proxy.cache_ttl must be positive, got %s", c.Proxy.CacheTTL)
	}
	if c.Proxy.CacheSize <= 0 {
		return fmt.Errorf("proxy.cache_size must be positive, got %d", c.Proxy.CacheSize)
	}
	if c.Proxy.Retries < 0 {
		return fmt.Errorf("proxy.retries must not be negative, got %d", c.Proxy.Retries)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("rate_limit needs positive requests and window when enabled")
	}
	if _, err := time.LoadLocation(c.Podcast.Timezone); err != nil {
		return fmt.Errorf("podcast.timezone: %w", err)
	}
	return nil
}

// normalizePaths expands and validates the file paths in the config.
func normalizePaths(cfg *Config) error {
	v := validation.NewFilePathValidator()
	for _, p := range []*string{&cfg.Logging.File, &cfg.Podcast.StatsFile, &cfg.Player.DefinitionsFile} {
		if *p == "" {
			continue
		}
		clean, err := v.ValidateFile(*p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", *p, err)
		}
		*p = clean
	}
	return nil
}

func Save(config *Config, path string) error {
	v := viper.New()

	for key, value := range settings(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}

// DefaultConfigPath is where `config generate` writes and Load looks first.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "podrelay", "config.toml")
}
