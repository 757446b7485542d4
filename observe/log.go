package observe

import (
	"log/slog"
)

// LogObserver writes events through slog.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver returns an observer bound to logger, or slog.Default when nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (l *LogObserver) Observe(e Event) {
	switch e.Kind {
	case PageRequested:
		l.Logger.Debug("fetching ratings page",
			slog.Int("offset", e.Offset),
			slog.String("url", e.URL),
		)
	case PageFetched:
		l.Logger.Debug("ratings page fetched",
			slog.Int("offset", e.Offset),
			slog.Int("entries", e.Entries),
			slog.Int("collected", e.Collected),
			slog.Duration("took", e.Duration),
		)
	case CrawlFinished:
		attrs := []any{
			slog.String("status", string(e.Status)),
			slog.Int("collected", e.Collected),
			slog.Int("last_offset", e.Offset),
		}
		if e.Err != nil {
			l.Logger.Warn("api crawl stopped", append(attrs, slog.Any("error", e.Err))...)
			return
		}
		l.Logger.Info("api crawl complete", attrs...)
	case RenderStarted:
		l.Logger.Info("rendering product page", slog.String("url", e.URL))
	case RenderFinished:
		if e.Err != nil {
			l.Logger.Warn("rendered extraction failed",
				slog.String("url", e.URL),
				slog.Any("error", e.Err),
			)
			return
		}
		l.Logger.Info("rendered extraction complete",
			slog.Int("snippets", e.Collected),
			slog.Duration("took", e.Duration),
		)
	case HarvestFinished:
		l.Logger.Info("harvest finished",
			slog.String("shop_id", e.Target.ShopID),
			slog.String("item_id", e.Target.ItemID),
			slog.String("status", string(e.Status)),
			slog.Duration("took", e.Duration),
		)
	}
}
