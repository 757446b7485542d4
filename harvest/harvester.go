package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/observe"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidMax is returned when the review cap is not positive.
var ErrInvalidMax = errors.New("max reviews must be positive")

// Extractor produces rendered review snippets for a listing URL.
type Extractor interface {
	Extract(ctx context.Context, locator string, n int) ([]string, error)
}

// Crawler walks the ratings endpoint for a target.
type Crawler interface {
	Crawl(ctx context.Context, target models.Target, maxReviews int) *models.HarvestSession
}

// Harvester runs the rendered pass and the paginated crawl for one listing.
type Harvester struct {
	extractor Extractor
	crawler   Crawler
	observer  observe.Observer

	// Parallel runs both passes concurrently instead of rendered-then-API.
	Parallel bool
}

// New returns a harvester. A nil extractor skips the rendered pass, which
// then counts as completed with no records.
func New(extractor Extractor, crawler Crawler, observer observe.Observer) *Harvester {
	return &Harvester{
		extractor: extractor,
		crawler:   crawler,
		observer:  observe.OrNop(observer),
	}
}

// Harvest resolves locator and collects up to maxReviews records from each
// source. An error is returned only when the harvest cannot start; path
// failures are reported through the result's statuses and Err.
func (h *Harvester) Harvest(ctx context.Context, locator string, maxReviews int) (*models.HarvestResult, error) {
	if maxReviews <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMax, maxReviews)
	}
	target, err := parser.ResolveTarget(locator)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	slog.Info("starting harvest",
		slog.String("shop_id", target.ShopID),
		slog.String("item_id", target.ItemID),
		slog.Int("max_reviews", maxReviews),
		slog.Bool("parallel", h.Parallel),
	)

	var (
		snippets  []string
		renderErr error
		session   *models.HarvestSession
	)
	renderPass := func() {
		if h.extractor == nil {
			return
		}
		snippets, renderErr = h.extractor.Extract(ctx, locator, maxReviews)
	}
	crawlPass := func() {
		session = h.crawler.Crawl(ctx, target, maxReviews)
	}

	if h.Parallel {
		var g errgroup.Group
		g.Go(func() error { renderPass(); return nil })
		g.Go(func() error { crawlPass(); return nil })
		_ = g.Wait()
	} else {
		renderPass()
		crawlPass()
	}

	result := Consolidate(session, snippets, renderErr)
	result.StartTime = start
	result.EndTime = time.Now()

	h.observer.Observe(observe.Event{
		Kind:      observe.HarvestFinished,
		Target:    target,
		Collected: len(result.Rendered) + len(result.API),
		Status:    result.Status,
		Duration:  result.EndTime.Sub(start),
		Err:       result.Err,
	})
	return result, nil
}
