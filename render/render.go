// Package render drives a browser session over a listing page and collects
// the review snippets visible once the page has settled.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/observe"
)

// Renderer acquires rendering sessions.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one acquired rendering session. It must be closed exactly
// once by whoever opened it.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Scroll(ctx context.Context, dy int) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// RenderInitError reports that no rendering session could be acquired.
type RenderInitError struct {
	Err error
}

func (e RenderInitError) Error() string {
	return fmt.Errorf("render init: %w", e.Err).Error()
}

func (e RenderInitError) Unwrap() error {
	return e.Err
}

// Options controls the reveal sequence run before snippets are read.
type Options struct {
	Timeout      time.Duration
	SettleDelay  time.Duration
	RevealSteps  int
	RevealScroll int
	RevealDelay  time.Duration
	Selector     string
}

// OptionsFromConfig copies render settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:      cfg.RenderTimeout,
		SettleDelay:  cfg.SettleDelay,
		RevealSteps:  cfg.RevealSteps,
		RevealScroll: cfg.RevealScroll,
		RevealDelay:  cfg.RevealDelay,
		Selector:     cfg.ContentSelector,
	}
}

// Extractor collects rendered review snippets for a locator.
type Extractor struct {
	renderer Renderer
	opts     Options
	observer observe.Observer
	sleep    func(context.Context, time.Duration) error
}

// NewExtractor returns an extractor backed by renderer. observer may be nil.
func NewExtractor(renderer Renderer, opts Options, observer observe.Observer) *Extractor {
	return &Extractor{
		renderer: renderer,
		opts:     opts,
		observer: observe.OrNop(observer),
		sleep:    sleepContext,
	}
}

// Extract opens a session, loads locator, waits for it to settle, scrolls
// RevealSteps times and returns up to n trimmed, non-empty snippets matching
// the content selector. The session is closed on every return path.
func (e *Extractor) Extract(ctx context.Context, locator string, n int) (snippets []string, err error) {
	start := time.Now()
	e.observer.Observe(observe.Event{Kind: observe.RenderStarted, URL: locator})
	defer func() {
		e.observer.Observe(observe.Event{
			Kind:      observe.RenderFinished,
			URL:       locator,
			Collected: len(snippets),
			Duration:  time.Since(start),
			Err:       err,
		})
	}()

	if n <= 0 {
		return nil, nil
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	session, err := e.renderer.Open(ctx)
	if err != nil {
		return nil, RenderInitError{Err: err}
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Warn("closing rendering session", slog.Any("error", closeErr))
		}
	}()

	if err := session.Navigate(ctx, locator); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", locator, err)
	}
	if err := e.sleep(ctx, e.opts.SettleDelay); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}

	for step := 1; step <= e.opts.RevealSteps; step++ {
		if err := session.Scroll(ctx, e.opts.RevealScroll); err != nil {
			slog.Debug("reveal scroll failed, proceeding with current DOM",
				slog.Int("step", step),
				slog.Any("error", err),
			)
			break
		}
		if err := e.sleep(ctx, e.opts.RevealDelay); err != nil {
			return nil, fmt.Errorf("reveal step %d: %w", step, err)
		}
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rendered page: %w", err)
	}
	return SelectSnippets(html, e.opts.Selector, n)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
