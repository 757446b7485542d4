package parser

import (
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    models.Target
		wantErr bool
	}{
		{
			name:    "plain listing url",
			locator: "https://site/x-i.111.222",
			want:    models.Target{ShopID: "111", ItemID: "222"},
		},
		{
			name:    "query string after reference",
			locator: "https://shopee.ph/Some-Product-i.34567.98765?sp_atk=abc",
			want:    models.Target{ShopID: "34567", ItemID: "98765"},
		},
		{
			name:    "first reference wins",
			locator: "https://site/a-i.1.2/b-i.3.4",
			want:    models.Target{ShopID: "1", ItemID: "2"},
		},
		{
			name:    "not a url at all",
			locator: "i.5.6",
			want:    models.Target{ShopID: "5", ItemID: "6"},
		},
		{
			name:    "no pattern",
			locator: "https://site/nopattern",
			wantErr: true,
		},
		{
			name:    "missing item id",
			locator: "https://site/x-i.111.",
			wantErr: true,
		},
		{
			name:    "empty",
			locator: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.locator)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLocator) {
					t.Fatalf("ResolveTarget(%q) error = %v, want ErrInvalidLocator", tt.locator, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTarget(%q) unexpected error: %v", tt.locator, err)
			}
			if got != tt.want {
				t.Fatalf("ResolveTarget(%q) = %+v, want %+v", tt.locator, got, tt.want)
			}
		})
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *models.ReviewRecord
		wantErr bool
	}{
		{
			name:   "api record",
			record: &models.ReviewRecord{Source: models.SourceAPI, Username: "N/A", Comment: "No comment"},
		},
		{
			name:   "rendered record",
			record: &models.ReviewRecord{Source: models.SourceRendered, Comment: "Maganda!"},
		},
		{
			name:    "nil",
			record:  nil,
			wantErr: true,
		},
		{
			name:    "unknown source",
			record:  &models.ReviewRecord{Source: "cache", Comment: "x"},
			wantErr: true,
		},
		{
			name:    "blank rendered text",
			record:  &models.ReviewRecord{Source: models.SourceRendered, Comment: "  "},
			wantErr: true,
		},
		{
			name:   "empty api comment",
			record: &models.ReviewRecord{Source: models.SourceAPI, Username: "maria", Comment: ""},
		},
		{
			name:   "blank api comment",
			record: &models.ReviewRecord{Source: models.SourceAPI, Username: "maria", Comment: "   "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFormatRating(t *testing.T) {
	five := 5.0
	half := 4.5
	tests := []struct {
		rating *float64
		want   string
	}{
		{rating: nil, want: "N/A"},
		{rating: &five, want: "5"},
		{rating: &half, want: "4.5"},
	}
	for _, tt := range tests {
		if got := FormatRating(tt.rating); got != tt.want {
			t.Fatalf("FormatRating() = %q, want %q", got, tt.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  ダメ \n"); got != "ダメ" {
		t.Fatalf("NormalizeText() = %q", got)
	}
}
