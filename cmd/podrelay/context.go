package main

import (
	"context"
	"strings"
	"sync"

	"github.com/pders01/podrelay/internal/config"
	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/feed"
	"github.com/pders01/podrelay/internal/plugins/hosts"
	"github.com/pders01/podrelay/internal/podcast"
	"github.com/pders01/podrelay/internal/proxy"
	"github.com/pders01/podrelay/internal/search"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// setupLogging applies the configured level. Outside the server, logging is
// quieted to warnings unless --log-level asks for more.
func (c *commandContext) setupLogging(server bool) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	level := debuglog.ParseLogLevel(cfg.Logging.Level)
	if !server && level < debuglog.LevelWarn {
		level = debuglog.LevelWarn
	}
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = debuglog.ParseLogLevel(*c.logLevelFlag)
	}
	return debuglog.Setup(level, cfg.Logging.File)
}

func (c *commandContext) close() {
	_ = debuglog.Close()
}

// loadNormalizer builds the normalizer over the stats table, returning the
// store so callers can watch it.
func loadNormalizer(cfg *config.Config) (*podcast.Normalizer, *podcast.StatsStore, error) {
	stats, err := podcast.LoadStats(cfg.Podcast.StatsFile)
	if err != nil {
		return nil, nil, err
	}
	normalizer, err := podcast.NewNormalizerFromConfig(cfg.Podcast, stats)
	if err != nil {
		return nil, nil, err
	}
	return normalizer, stats, nil
}

// newLibrary reads feeds in-process, or through a running relay when
// proxyBase is set.
func (c *commandContext) newLibrary(proxyBase string, listeners ...search.UpdateListener) (*feed.Library, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	normalizer, _, err := loadNormalizer(cfg)
	if err != nil {
		return nil, err
	}

	var source feed.Source
	if strings.TrimSpace(proxyBase) != "" {
		source, err = feed.NewHTTPSource(proxyBase, cfg.Proxy)
		if err != nil {
			return nil, err
		}
	} else {
		source = feed.NewRelaySource(proxy.New(cfg.Proxy))
	}
	return feed.NewLibrary(source, normalizer, listeners...), nil
}

// resolveFeedURL turns a shared show link into its feed URL. An empty value
// stays empty so the library falls back to the default feed.
func (c *commandContext) resolveFeedURL(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	info, err := hosts.NewRegistry(cfg.Proxy.HTTPTimeout).Resolve(ctx, raw)
	if err != nil {
		return "", err
	}
	if info.FeedURL != raw {
		debuglog.Infof("Resolved %s to %s", raw, info.FeedURL)
	}
	return info.FeedURL, nil
}
