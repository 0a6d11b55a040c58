package scraper

import "log/slog"

// EventKind identifies a progress event.
type EventKind string

const (
	EventPageFetched  EventKind = "page_fetched"
	EventPageFailed   EventKind = "page_failed"
	EventItemParsed   EventKind = "item_parsed"
	EventImageSaved   EventKind = "image_saved"
	EventImageSkipped EventKind = "image_skipped"
	EventCrawlDone    EventKind = "crawl_done"
)

// Event reports crawl progress. Only the fields relevant to Kind are set.
type Event struct {
	Kind   EventKind
	URL    string
	Page   int // 1-based page number
	Index  int // item position within the page
	Global int // running item count across pages
	Path   string
	Reason string
	Err    error
}

// EventFunc receives events synchronously on the crawling goroutine.
type EventFunc func(Event)

// LogEvent is the default EventFunc.
func LogEvent(ev Event) {
	switch ev.Kind {
	case EventPageFetched:
		slog.Info("page fetched", slog.Int("page", ev.Page), slog.String("url", ev.URL))
	case EventPageFailed:
		slog.Warn("page not processed",
			slog.Int("page", ev.Page),
			slog.String("url", ev.URL),
			slog.String("error_type", errorTypeLabel(ev.Err)),
			slog.Any("error", ev.Err),
		)
	case EventItemParsed:
		slog.Debug("item parsed",
			slog.Int("global", ev.Global),
			slog.Int("page", ev.Page),
			slog.Int("index", ev.Index),
		)
	case EventImageSaved:
		slog.Debug("image saved", slog.String("url", ev.URL), slog.String("path", ev.Path))
	case EventImageSkipped:
		slog.Debug("image skipped",
			slog.String("url", ev.URL),
			slog.String("error_type", errorTypeLabel(ev.Err)),
			slog.Any("error", ev.Err),
		)
	case EventCrawlDone:
		slog.Info("crawl finished",
			slog.String("reason", ev.Reason),
			slog.Int("pages", ev.Page),
			slog.Int("items", ev.Global),
		)
	}
}
