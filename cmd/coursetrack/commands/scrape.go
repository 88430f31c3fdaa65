package commands

import (
	"log/slog"
	"os"
	"time"

	"coursetrack/lib/scrapers/udemy/view"
	viewdb "coursetrack/lib/scrapers/udemy/view/db"
	"coursetrack/lib/serviceutil"
	"coursetrack/lib/sqliteutil"
	"coursetrack/services/tracker"
	"coursetrack/services/tracker/store"

	"github.com/spf13/cobra"
)

var (
	scrapeForce     *bool
	scrapeRefresh   *bool
	scrapeSaveEvery *int
)

func init() {
	scrapeForce = scrapeCmd.Flags().Bool("force", false, "Ignore saved cookies and login from scratch.")
	scrapeRefresh = scrapeCmd.Flags().Bool("refresh", false, "Discard the course list cache and re-crawl the listing.")
	scrapeSaveEvery = scrapeCmd.Flags().Int("save-every", tracker.DefaultSaveFrequency, "Flush the output table every N processed courses.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--force] [--refresh]",
	Short: "Logs in, discovers every enrolled course and records title + duration.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		requireCredentials(cfg)
		ctx := cmd.Context()

		session := newSession()
		login(ctx, session, cfg, *scrapeForce)

		db, err := sqliteutil.OpenDB(viewdb.Schema, cfg.StateDb)
		if err != nil {
			serviceutil.Fatal("failed to open state db", err)
		}
		defer db.Close()

		if *scrapeRefresh {
			if err := os.Remove(cfg.ListCache); err != nil && !os.IsNotExist(err) {
				serviceutil.Fatal("failed to discard course list cache", err)
			}
			slog.Info("discarded course list cache", "path", cfg.ListCache)
		}

		client := view.NewClient(session, view.ClientOptions{
			Lists: view.FileListCache{Path: cfg.ListCache},
			Pages: view.NewPageCache(db),
		})
		urls, err := client.Courses(ctx)
		if err != nil {
			serviceutil.Fatal("failed to enumerate courses", err)
		}

		st, err := store.OpenCSV(cfg.Output)
		if err != nil {
			serviceutil.Fatal("failed to open course details table", err)
		}
		ignored, err := store.OpenIgnored(cfg.IgnoredFile)
		if err != nil {
			serviceutil.Fatal("failed to open ignored set", err)
		}

		t1 := time.Now()
		results, err := tracker.Scrape(ctx, client, st, ignored, urls, tracker.ScrapeOptions{
			SaveFrequency: *scrapeSaveEvery,
		})
		if err != nil {
			serviceutil.Fatal("scrape failed", err)
		}

		slog.Info(
			"saved course details",
			"new", len(results),
			"known", len(urls),
			"seconds", time.Since(t1).Seconds(),
		)
	},
}
