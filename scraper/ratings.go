package scraper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
)

// PageSize is the fixed number of ratings requested per page.
const PageSize = 20

const (
	defaultUsername = "N/A"
	defaultComment  = "No comment"
)

// ratingsPath is the ratings endpoint relative to the API base URL.
const ratingsPath = "/api/v2/item/get_ratings"

type ratingsEnvelope struct {
	Data *struct {
		Ratings *[]ratingEntry `json:"ratings"`
	} `json:"data"`
}

type ratingEntry struct {
	AuthorUsername *string         `json:"author_username"`
	RatingStar     json.RawMessage `json:"rating_star"`
	Comment        *string         `json:"comment"`
}

func (e ratingEntry) record() *models.ReviewRecord {
	username := defaultUsername
	if e.AuthorUsername != nil {
		username = parser.NormalizeText(*e.AuthorUsername)
	}
	comment := defaultComment
	if e.Comment != nil {
		comment = parser.NormalizeText(*e.Comment)
	}
	rating := parseRating(e.RatingStar)
	return &models.ReviewRecord{
		Source:   models.SourceAPI,
		Username: username,
		Rating:   rating,
		Comment:  comment,
	}
}

// parseRating reads rating_star as a number or a numeric string. Anything
// else yields nil for that entry only.
func parseRating(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return &v
		}
	}
	slog.Debug("ignoring non-numeric rating_star", slog.String("value", string(raw)))
	return nil
}

// decodeRatings parses a ratings page. ok is false when the body has no
// ratings container at all, which signals the end of the data.
func decodeRatings(body []byte) (entries []ratingEntry, ok bool, err error) {
	var env ratingsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, DecodeError{Err: err}
	}
	if env.Data == nil || env.Data.Ratings == nil {
		return nil, false, nil
	}
	return *env.Data.Ratings, true, nil
}

// pageURL builds the ratings request for one page of target.
func pageURL(baseURL string, target models.Target, offset int) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + ratingsPath)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	q := url.Values{}
	q.Set("filter", "0")
	q.Set("flag", "1")
	q.Set("itemid", target.ItemID)
	q.Set("limit", strconv.Itoa(PageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("shopid", target.ShopID)
	q.Set("type", "0")
	base.RawQuery = q.Encode()
	return base.String(), nil
}
