package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

// ErrInvalidLocator is returned when a locator carries no listing reference.
var ErrInvalidLocator = errors.New("invalid locator")

var listingPattern = regexp.MustCompile(`i\.(\d+)\.(\d+)`)

// ResolveTarget extracts the shop and item ids from an "i.<shop>.<item>"
// reference embedded anywhere in locator.
func ResolveTarget(locator string) (models.Target, error) {
	match := listingPattern.FindStringSubmatch(locator)
	if match == nil {
		return models.Target{}, fmt.Errorf("%w: no listing reference in %q", ErrInvalidLocator, locator)
	}
	return models.Target{ShopID: match[1], ItemID: match[2]}, nil
}

// ValidateRecord ensures a record is fit for output. Rendered records must
// carry text; API records are written as collected.
func ValidateRecord(r *models.ReviewRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	switch r.Source {
	case models.SourceRendered, models.SourceAPI:
	default:
		return fmt.Errorf("record has unknown source %q", r.Source)
	}
	// API records keep an empty comment when the endpoint sent "".
	if r.Source == models.SourceRendered && strings.TrimSpace(r.Comment) == "" {
		return fmt.Errorf("rendered record missing text")
	}
	return nil
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// FormatRating renders a star rating, or "N/A" when none was reported.
func FormatRating(rating *float64) string {
	if rating == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*rating, 'f', -1, 64)
}
