package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pders01/podrelay/internal/media"
	"github.com/pders01/podrelay/internal/podcast"
	"github.com/pders01/podrelay/internal/search"
)

const wordWrapWidth = 80

type episodesOptions struct {
	feedURL   string
	proxyBase string
	asJSON    bool
}

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	opts := &episodesOptions{}

	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Browse a podcast feed",
	}
	cmd.PersistentFlags().StringVar(&opts.feedURL, "feed", "", "Feed URL, Apple Podcasts or anchor.fm show link (defaults to proxy.default_feed_url)")
	cmd.PersistentFlags().StringVar(&opts.proxyBase, "proxy", "", "Read through a running relay at this base URL")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of tables")

	cmd.AddCommand(newEpisodesListCommand(ctx, opts))
	cmd.AddCommand(newEpisodesShowCommand(ctx, opts))
	cmd.AddCommand(newEpisodesSeasonsCommand(ctx, opts))
	cmd.AddCommand(newEpisodesSearchCommand(ctx, opts))
	cmd.AddCommand(newEpisodesPlayCommand(ctx, opts))
	return cmd
}

func loadCatalog(cmd *cobra.Command, ctx *commandContext, opts *episodesOptions, listeners ...search.UpdateListener) (*podcast.Catalog, error) {
	feedURL, err := ctx.resolveFeedURL(cmd.Context(), opts.feedURL)
	if err != nil {
		return nil, err
	}
	library, err := ctx.newLibrary(opts.proxyBase, listeners...)
	if err != nil {
		return nil, err
	}
	return library.Catalog(cmd.Context(), feedURL)
}

func newEpisodesListCommand(ctx *commandContext, opts *episodesOptions) *cobra.Command {
	var season string
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List episodes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cmd, ctx, opts)
			if err != nil {
				return err
			}
			grid := catalog.Grid(season, page, perPage)
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, grid)
			}

			label := "all seasons"
			if !podcast.IsAllSeasons(season) {
				label = "season " + grid.Season
			}
			fmt.Fprintf(out, "%s · %s · %d episodes\n", catalog.Title, label, grid.Total)
			if grid.Featured == nil {
				fmt.Fprintln(out, "No episodes found.")
				return nil
			}
			fmt.Fprintf(out, "Featured: %s (%s)\n", grid.Featured.Title, formatDate(*grid.Featured))

			if len(grid.Episodes) > 0 {
				fmt.Fprintln(out, episodeTable(grid.Episodes))
			}
			fmt.Fprintf(out, "Page %d of %d\n", grid.Page, grid.TotalPages)
			return nil
		},
	}

	cmd.Flags().StringVar(&season, "season", "", "Only episodes from this season (year)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 10, "Episodes per page")
	return cmd
}

func episodeTable(episodes []podcast.Episode) string {
	rows := make([][]string, 0, len(episodes))
	for _, e := range episodes {
		rows = append(rows, []string{
			formatDate(e),
			e.Season,
			e.EpisodeNumber,
			e.Title,
			formatSeconds(e.DurationSeconds),
			e.Views,
			e.ID,
		})
	}
	return renderTable(
		[]string{"Date", "Season", "Ep", "Title", "Duration", "Views", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func newEpisodesShowCommand(ctx *commandContext, opts *episodesOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one episode (the latest when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cmd, ctx, opts)
			if err != nil {
				return err
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			episode, err := pickEpisode(catalog, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, episode)
			}
			return renderEpisode(out, episode, isTerminal(os.Stdout))
		},
	}
}

func renderEpisode(w io.Writer, e podcast.Episode, styled bool) error {
	title := e.Title
	if styled {
		title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4")).Render(title)
	}
	fmt.Fprintln(w, title)

	meta := []string{formatDate(e)}
	if e.HasEpisodeNumber() {
		meta = append(meta, "Episode "+e.EpisodeNumber)
	}
	meta = append(meta, formatSeconds(e.DurationSeconds), e.Views+" views")
	if e.Explicit {
		meta = append(meta, "explicit")
	}
	fmt.Fprintln(w, strings.Join(meta, " · "))
	if e.AudioURL != "" {
		fmt.Fprintln(w, e.AudioURL)
	}

	md, err := e.DescriptionMarkdown()
	if err != nil {
		return fmt.Errorf("converting show notes: %w", err)
	}
	body, err := renderMarkdown(md, styled)
	if err != nil {
		return err
	}
	fmt.Fprint(w, body)
	return nil
}

func renderMarkdown(md string, styled bool) (string, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	style := glamour.WithStandardStyle("notty")
	if styled {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wordWrapWidth))
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(md)
}

func newEpisodesSeasonsCommand(ctx *commandContext, opts *episodesOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seasons",
		Short: "List seasons, latest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cmd, ctx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, map[string][]string{"seasons": catalog.Seasons})
			}

			rows := make([][]string, 0, len(catalog.Seasons))
			for _, s := range catalog.Seasons {
				rows = append(rows, []string{s, strconv.Itoa(len(catalog.BySeason(s)))})
			}
			fmt.Fprintln(out, renderTable([]string{"Season", "Episodes"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newEpisodesSearchCommand(ctx *commandContext, opts *episodesOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over titles and show notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := search.NewIndex()
			if err != nil {
				return err
			}
			defer index.Close()

			if _, err := loadCatalog(cmd, ctx, opts, index); err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results, err := index.Search(query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, results)
			}
			if len(results) == 0 {
				fmt.Fprintf(out, "No episodes match %q.\n", query)
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					strconv.FormatFloat(r.Score, 'f', 2, 64),
					formatDate(r.Episode),
					r.Episode.Title,
					r.Snippet,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Score", "Date", "Title", "Snippet"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum results")
	return cmd
}

func newEpisodesPlayCommand(ctx *commandContext, opts *episodesOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "play [id]",
		Short: "Play an episode in an installed audio player",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd, ctx, opts)
			if err != nil {
				return err
			}

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			episode, err := pickEpisode(catalog, id)
			if err != nil {
				return err
			}
			if episode.AudioURL == "" {
				return fmt.Errorf("episode %q has no audio", episode.ID)
			}

			launcher, err := media.NewLauncher(cfg.Player)
			if err != nil {
				return err
			}
			player, err := launcher.Play(episode.AudioURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Playing %q with %s\n", episode.Title, player)
			return nil
		},
	}
}

// pickEpisode returns the episode with id, or the latest one when id is empty.
func pickEpisode(catalog *podcast.Catalog, id string) (podcast.Episode, error) {
	if id != "" {
		if _, ok := catalog.Find(id); !ok {
			return podcast.Episode{}, fmt.Errorf("episode %q not found", id)
		}
	}
	episode, ok := catalog.Featured(id)
	if !ok {
		return podcast.Episode{}, fmt.Errorf("feed has no episodes")
	}
	return episode, nil
}

func formatDate(e podcast.Episode) string {
	if e.PubDate.IsZero() {
		return "undated"
	}
	return e.PubDate.Format("2006-01-02")
}

// formatSeconds renders a duration as m:ss or h:mm:ss.
func formatSeconds(total int) string {
	if total <= 0 {
		return "-"
	}
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
