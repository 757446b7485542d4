package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Config holds harvester configuration.
type Config struct {
	APIBaseURL  string
	MaxReviews  int
	Timeout     time.Duration
	PageDelay   time.Duration
	RandomDelay time.Duration
	UserAgent   string
	ChromeTLS   bool

	RenderEnabled   bool
	Headless        bool
	NoSandbox       bool
	Stealth         bool
	BrowserBin      string
	RenderTimeout   time.Duration
	SettleDelay     time.Duration
	RevealSteps     int
	RevealScroll    int
	RevealDelay     time.Duration
	ContentSelector string

	Parallel     bool
	OutputDir    string
	RenderedFile string
	APIFile      string
	OutputFormat string // csv, json, or dual
	BatchSize    int
	Verbose      bool
	MetricsAddr  string
}

// DefaultConfig returns defaults matching the marketplace's public endpoints.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:  "https://shopee.ph",
		MaxReviews:  50,
		Timeout:     30 * time.Second,
		PageDelay:   0,
		RandomDelay: 0,
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		ChromeTLS:   false,

		RenderEnabled:   true,
		Headless:        true,
		NoSandbox:       true,
		Stealth:         false,
		RenderTimeout:   2 * time.Minute,
		SettleDelay:     5 * time.Second,
		RevealSteps:     3,
		RevealScroll:    500,
		RevealDelay:     2 * time.Second,
		ContentSelector: ".shopee-product-rating__content",

		Parallel:     false,
		OutputDir:    "output",
		RenderedFile: "shopee_reviews.csv",
		APIFile:      "shopee_api_reviews.csv",
		OutputFormat: "csv",
		BatchSize:    64,
		Verbose:      false,
	}
}

// RenderedPath is the output path for the rendered dataset.
func (c *Config) RenderedPath() string {
	return filepath.Join(c.OutputDir, c.RenderedFile)
}

// APIPath is the output path for the API dataset.
func (c *Config) APIPath() string {
	return filepath.Join(c.OutputDir, c.APIFile)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("invalid api base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("api base URL must include a host")
	}

	if c.MaxReviews <= 0 {
		return fmt.Errorf("max reviews must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if c.RenderEnabled {
		if c.RenderTimeout <= 0 {
			return fmt.Errorf("render timeout must be positive")
		}
		if c.SettleDelay < 0 || c.RevealDelay < 0 {
			return fmt.Errorf("render delays cannot be negative")
		}
		if c.RevealSteps < 0 {
			return fmt.Errorf("reveal steps cannot be negative")
		}
		if strings.TrimSpace(c.ContentSelector) == "" {
			return fmt.Errorf("content selector cannot be empty")
		}
	}

	if c.RenderedFile == "" || c.APIFile == "" {
		return fmt.Errorf("output file names cannot be empty")
	}
	if c.RenderedFile == c.APIFile {
		return fmt.Errorf("rendered and api output files must differ")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}
