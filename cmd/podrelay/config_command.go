package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/podrelay/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigGenerateCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigGenerateCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "generate",
		Short:       "Write the default configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultConfigPath()
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.GenerateDefaultConfig(target); err != nil {
				return fmt.Errorf("generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (defaults to ~/.config/podrelay/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"server.addr", cfg.Server.Addr},
				{"proxy.default_feed_url", cfg.Proxy.DefaultFeedURL},
				{"proxy.allowed_hosts", strings.Join(cfg.Proxy.AllowedHosts, ", ")},
				{"proxy.cache_ttl", cfg.Proxy.CacheTTL.String()},
				{"proxy.cache_size", fmt.Sprint(cfg.Proxy.CacheSize)},
				{"proxy.http_timeout", cfg.Proxy.HTTPTimeout.String()},
				{"proxy.user_agent", cfg.Proxy.UserAgent},
				{"rate_limit", fmt.Sprintf("%t (%d per %s)", cfg.RateLimit.Enabled, cfg.RateLimit.Requests, cfg.RateLimit.Window)},
				{"logging.level", cfg.Logging.Level},
				{"podcast.language", cfg.Podcast.Language},
				{"podcast.timezone", cfg.Podcast.Timezone},
				{"podcast.stats_file", cfg.Podcast.StatsFile},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}
}
