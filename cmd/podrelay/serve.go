package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pders01/podrelay/internal/debuglog"
	"github.com/pders01/podrelay/internal/feed"
	"github.com/pders01/podrelay/internal/proxy"
	"github.com/pders01/podrelay/internal/search"
	"github.com/pders01/podrelay/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the RSS relay and episode API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) != "" {
				cfg.Server.Addr = addr
			}

			normalizer, stats, err := loadNormalizer(cfg)
			if err != nil {
				return err
			}
			index, err := search.NewIndex()
			if err != nil {
				return err
			}
			defer index.Close()

			relay := proxy.New(cfg.Proxy)
			library := feed.NewLibrary(feed.NewRelaySource(relay), normalizer, index)
			stats.OnReload(library.Invalidate)

			srv := server.New(cfg, relay, library, index)
			if err := srv.Listen(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Podcast.WatchStats {
				go func() {
					if err := stats.Watch(runCtx); err != nil {
						debuglog.Errorf("Stats watcher stopped: %v", err)
					}
				}()
			}

			// Warm the default feed; a failure here only costs the first request.
			go func() {
				if err := library.Preload(runCtx, ""); err != nil && !errors.Is(err, context.Canceled) {
					debuglog.Warnf("Preloading default feed: %v", err)
				}
			}()

			if !quiet && isTerminal(os.Stdout) {
				showBanner(cmd.OutOrStdout(), srv.Addr())
			}
			return srv.Serve(runCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Skip startup banner")
	return cmd
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
