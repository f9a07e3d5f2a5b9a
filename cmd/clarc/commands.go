package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/clarc/internal/analytics"
	"github.com/janekbaraniewski/clarc/internal/config"
	"github.com/janekbaraniewski/clarc/internal/index"
	"github.com/janekbaraniewski/clarc/internal/search"
	"github.com/janekbaraniewski/clarc/internal/session"
	"github.com/janekbaraniewski/clarc/internal/syncer"
	"github.com/janekbaraniewski/clarc/internal/version"
)

// resolveSources extends the configured sources with Windows-side profiles
// visible from WSL, so one clarc instance covers both CLIs.
func resolveSources(cfg config.Config) []string {
	sources := append([]string(nil), cfg.SourceDirs...)
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		seen[src] = true
	}
	for _, dir := range config.DetectWindowsClaudeDirs() {
		if !seen[dir] {
			sources = append(sources, dir)
			seen[dir] = true
		}
	}
	return sources
}

func newSyncer(cfg config.Config) *syncer.Syncer {
	s := syncer.New(resolveSources(cfg), cfg.DataDir)
	s.LoadState()
	return s
}

func newSyncCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one mirror pass over all configured sources",
		RunE: func(_ *cobra.Command, _ []string) error {
			report := newSyncer(cfg).Sync()
			fmt.Printf("Synced %d files (%.1f MB) from %d source(s) in %dms\n",
				report.TotalFiles,
				float64(report.TotalSizeBytes)/(1024*1024),
				len(report.SourceDirs),
				report.LastSyncDurationMs,
			)
			for _, syncErr := range report.Errors {
				fmt.Fprintf(os.Stderr, "  error: %s: %s\n", syncErr.RelativePath, syncErr.Error)
			}
			return nil
		},
	}
}

func newIndexCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the project index from the mirrored data",
		RunE: func(_ *cobra.Command, _ []string) error {
			idx := index.NewScanner(cfg.DataDir).Build()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROJECT\tSESSIONS\tMESSAGES\tLAST ACTIVE")
			for _, project := range idx.Projects {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
					project.Name,
					len(project.Sessions),
					project.MessageCount,
					project.LastActiveAt.Format("2006-01-02 15:04"),
				)
			}
			return w.Flush()
		},
	}
}

func newStatsCommand(cfg config.Config) *cobra.Command {
	var noPersist bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute usage and cost rollups from the index",
		RunE: func(_ *cobra.Command, _ []string) error {
			idx := index.NewScanner(cfg.DataDir).Build()
			report := analytics.Compute(idx)

			fmt.Printf("Sessions: %d   Messages: %d\n", report.TotalSessions, report.TotalMessages)
			if report.NewestCLIVersion != "" {
				fmt.Printf("Newest CLI version seen: %s\n", report.NewestCLIVersion)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tINPUT\tOUTPUT\tCOST")
			for model, usage := range report.ModelUsage {
				fmt.Fprintf(w, "%s\t%d\t%d\t$%.2f\n", model, usage.InputTokens, usage.OutputTokens, usage.CostUSD)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if noPersist {
				return nil
			}
			store, err := analytics.OpenStore(filepath.Join(config.ConfigDir(), "analytics.db"))
			if err != nil {
				return err
			}
			defer store.Close()
			return store.Upsert(context.Background(), analytics.Rollups(report))
		},
	}
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "skip writing daily rollups to the local database")
	return cmd
}

func newSearchCommand(cfg config.Config) *cobra.Command {
	var (
		project string
		model   string
		after   string
		before  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message and thinking text across all indexed sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := search.Options{
				Query:   args[0],
				Project: project,
				Model:   model,
				Limit:   limit,
			}
			var err error
			if opts.After, err = parseDateFlag(after); err != nil {
				return err
			}
			if opts.Before, err = parseDateFlag(before); err != nil {
				return err
			}

			idx := index.NewScanner(cfg.DataDir).Build()
			searcher := search.NewSearcher(session.NewParser(session.DefaultCacheSize))
			results := searcher.Search(idx, opts)

			for _, r := range results {
				fmt.Printf("%s  %s/%s  [%s]\n  %s\n",
					r.Timestamp.Format("2006-01-02 15:04"),
					r.ProjectName, r.SessionID, r.Type, r.Snippet)
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "restrict to one project (id or name)")
	cmd.Flags().StringVar(&model, "model", "", "restrict to sessions using this model")
	cmd.Flags().StringVar(&after, "after", "", "only sessions modified on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&before, "before", "", "only sessions modified on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum number of results")
	return cmd
}

func newRunCommand(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync periodically and keep the index fresh until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			if result := config.Validate(cfg); !result.Valid() {
				for field, msg := range result.Errors {
					fmt.Fprintf(os.Stderr, "config error: %s: %s\n", field, msg)
				}
				return fmt.Errorf("invalid configuration")
			}

			s := newSyncer(cfg)
			cache := index.NewCache(index.NewScanner(cfg.DataDir))

			pass := func() {
				report := s.Sync()
				cache.Invalidate()
				if len(report.Errors) > 0 {
					fmt.Fprintf(os.Stderr, "sync finished with %d error(s)\n", len(report.Errors))
				}
			}
			pass()
			fmt.Printf("Initial sync done, %d files mirrored. Syncing every %ds.\n",
				s.Status().TotalFiles, cfg.SyncIntervalSeconds)

			sched := syncer.NewScheduler(time.Duration(cfg.SyncIntervalSeconds)*time.Second, pass)
			sched.Start()
			defer sched.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			fmt.Println("Shutting down.")
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("clarc", version.String())
		},
	}
}

func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return t, nil
}
