package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// RodRenderer launches a dedicated headless browser per session.
type RodRenderer struct {
	Headless  bool
	NoSandbox bool
	Stealth   bool
	Bin       string
	UserAgent string
	Headers   map[string]string
}

// NewRodRenderer builds a renderer from the browser settings in cfg.
func NewRodRenderer(cfg *config.Config) *RodRenderer {
	return &RodRenderer{
		Headless:  cfg.Headless,
		NoSandbox: cfg.NoSandbox,
		Stealth:   cfg.Stealth,
		Bin:       cfg.BrowserBin,
		UserAgent: cfg.UserAgent,
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// Open launches a browser and opens a blank page in it. Anything acquired
// before a failure is released before Open returns.
func (r *RodRenderer) Open(ctx context.Context) (Session, error) {
	l := launcher.New().
		Headless(r.Headless).
		NoSandbox(r.NoSandbox)
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	s := &rodSession{launcher: l, browser: browser}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	s.page = page

	if err := r.preparePage(page); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (r *RodRenderer) preparePage(page *rod.Page) error {
	if r.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", slog.Any("error", err))
		}
	}
	if r.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: r.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if len(r.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(r.Headers)}).Call(page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

// toHeadersMap converts plain headers to the CDP header map.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	if err := p.WaitLoad(); err != nil {
		slog.Debug("page load did not complete, proceeding with current DOM", slog.Any("error", err))
	}
	return nil
}

func (s *rodSession) Scroll(ctx context.Context, dy int) error {
	_, err := s.page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, dy)
	return err
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close releases the page, the browser connection and the browser process.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
			s.launcher.Kill()
		}
		s.launcher.Cleanup()
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
