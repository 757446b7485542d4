package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/observe"
	"github.com/gocolly/colly/v2"
)

// Crawler walks the paginated ratings endpoint for one listing at a time.
// It never retries: the first hard error ends the crawl.
type Crawler struct {
	cfg       *config.Config
	host      string
	transport http.RoundTripper
	observer  observe.Observer
}

// NewCrawler builds a crawler configured from cfg. observer may be nil.
func NewCrawler(cfg *config.Config, observer observe.Observer) (*Crawler, error) {
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api base url must include a host")
	}

	return &Crawler{
		cfg:       cfg,
		host:      parsed.Hostname(),
		transport: newTransport(cfg.Timeout, cfg.ChromeTLS),
		observer:  observe.OrNop(observer),
	}, nil
}

// Crawl fetches ratings pages for target until the cap is reached, a short
// page arrives, the endpoint reports no ratings, or a request fails. The
// returned session is always terminal.
func (c *Crawler) Crawl(ctx context.Context, target models.Target, maxReviews int) *models.HarvestSession {
	session := models.NewHarvestSession(target, maxReviews)
	defer func() {
		c.observer.Observe(observe.Event{
			Kind:      observe.CrawlFinished,
			Target:    target,
			Offset:    session.Offset,
			Collected: len(session.Collected),
			Status:    session.Status,
			Err:       session.Err,
		})
	}()

	if maxReviews <= 0 {
		session.Finish(models.StatusFailed, fmt.Errorf("max reviews must be positive, got %d", maxReviews))
		return session
	}

	fetcher, err := c.newFetcher()
	if err != nil {
		session.Fail(err)
		return session
	}

	for session.Status == models.StatusRunning {
		c.step(ctx, fetcher, session)
	}
	return session
}

// step runs one loop iteration: fetch the page at session.Offset, append its
// records and either finish the session or advance the offset.
func (c *Crawler) step(ctx context.Context, f *pageFetcher, s *models.HarvestSession) {
	if err := ctx.Err(); err != nil {
		s.Fail(err)
		return
	}

	offset := s.Offset
	u, err := pageURL(c.cfg.APIBaseURL, s.Target, offset)
	if err != nil {
		s.Fail(err)
		return
	}
	s.Offsets = append(s.Offsets, offset)
	c.observer.Observe(observe.Event{Kind: observe.PageRequested, Target: s.Target, URL: u, Offset: offset})

	start := time.Now()
	body, err := f.fetch(u)
	if err != nil {
		s.Fail(fmt.Errorf("offset %d: %w", offset, err))
		return
	}

	entries, ok, err := decodeRatings(body)
	if err != nil {
		s.Fail(fmt.Errorf("offset %d: %w", offset, err))
		return
	}
	if !ok {
		slog.Debug("ratings container absent, treating as end of data", slog.Int("offset", offset))
		s.Finish(models.StatusCompleted, nil)
		return
	}

	for _, entry := range entries {
		if s.Full() {
			break
		}
		s.Add(entry.record())
	}
	c.observer.Observe(observe.Event{
		Kind:      observe.PageFetched,
		Target:    s.Target,
		URL:       u,
		Offset:    offset,
		Entries:   len(entries),
		Collected: len(s.Collected),
		Duration:  time.Since(start),
	})

	switch {
	case s.Full():
		s.Finish(models.StatusCompleted, nil)
	case len(entries) < PageSize:
		s.Finish(models.StatusCompleted, nil)
	default:
		s.Offset += PageSize
	}
}

// pageFetcher issues one synchronous colly request at a time and keeps the
// last response for the caller.
type pageFetcher struct {
	collector *colly.Collector
	last      *colly.Response
}

func (c *Crawler) newFetcher() (*pageFetcher, error) {
	collector := colly.NewCollector(
		colly.AllowedDomains(c.host),
		colly.UserAgent(c.cfg.UserAgent),
	)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(c.transport)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       c.cfg.PageDelay,
		RandomDelay: c.cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure page delay: %w", err)
	}

	f := &pageFetcher{collector: collector}
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		f.last = r
	})
	return f, nil
}

func (f *pageFetcher) fetch(u string) ([]byte, error) {
	f.last = nil
	err := f.collector.Visit(u)

	statusCode := 0
	if f.last != nil {
		statusCode = f.last.StatusCode
	}
	if classified := classifyError(err, statusCode); classified != nil {
		return nil, classified
	}
	if f.last == nil {
		return nil, TransportError{Err: errors.New("no response received")}
	}
	return f.last.Body, nil
}
