package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Proxy.AllowedHosts = []string{"127.0.0.1", "anchor.fm"}
	cfg.Proxy.HTTPTimeout = 2 * time.Second
	cfg.Proxy.UserAgent = "podrelay-test/1.0"
	cfg.RateLimit.Requests = 1000
	cfg.RateLimit.Window = time.Minute
	cfg.Logging.Level = "off"
	return cfg
}
