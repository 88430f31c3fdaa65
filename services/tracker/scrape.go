package tracker

import (
	"context"
	"errors"
	"log/slog"

	"coursetrack/lib/scrapers/udemy/view"
	"coursetrack/services/tracker/store"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("services/tracker")

const DefaultSaveFrequency = 1

// Detailer is the slice of the scrape client the ledger needs.
type Detailer interface {
	Detail(ctx context.Context, link string) (view.Detail, error)
}

type ScrapeOptions struct {
	// flush the store every N processed courses, defaults to every course
	SaveFrequency int
}

// Scrape walks the discovered course links in order and fills the detail
// store, skipping links already recorded or already classified as
// non-video. Failures are isolated per course, a broken item is logged and
// the run moves on. Returns title -> duration text for the newly processed
// courses.
func Scrape(ctx context.Context, client Detailer, st store.DetailStore, ignored store.IgnoredSet, urls []string, opts ScrapeOptions) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	saveEvery := opts.SaveFrequency
	if saveEvery < 1 {
		saveEvery = DefaultSaveFrequency
	}

	existing, err := st.Load()
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(existing))
	for _, r := range existing {
		done[r.Link] = true
	}

	results := map[string]string{}
	processed := 0
	defer func() {
		// progress must survive however the loop exits
		if err := st.Flush(); err != nil {
			slog.Error("failed to flush course details", "err", err)
		}
	}()

	for i, link := range urls {
		if ctx.Err() != nil {
			slog.Warn("interrupted, stopping scrape", "remaining", len(urls)-i)
			break
		}
		n := i + 1

		if done[link] {
			slog.Info("existing", "n", n, "of", len(urls), "link", link)
			continue
		}
		if ignored.Contains(link) {
			slog.Info("ignored", "n", n, "of", len(urls), "link", link)
			continue
		}

		detail, err := client.Detail(ctx, link)
		if errors.Is(err, view.ErrNoDuration) {
			if aerr := ignored.Add(link); aerr != nil {
				slog.Error("failed to record ignored course", "link", link, "err", aerr)
			}
			slog.Info("ignored", "n", n, "of", len(urls), "link", link)
			continue
		}
		if err != nil {
			// the link ends up in neither the store nor the ignored set, so
			// the next run retries it
			slog.Error("failed to process course", "n", n, "of", len(urls), "link", link, "err", err)
			continue
		}

		err = st.Append(store.Record{Link: detail.Link, Title: detail.Title, Time: detail.DurationText})
		if err != nil {
			slog.Error("failed to record course", "link", link, "err", err)
			continue
		}
		results[detail.Title] = detail.DurationText
		processed++
		slog.Info("processed course", "n", n, "of", len(urls), "title", detail.Title, "time", detail.DurationText)

		if processed%saveEvery == 0 {
			if err := st.Flush(); err != nil {
				slog.Error("failed to flush course details", "err", err)
			}
		}
	}

	return results, nil
}
