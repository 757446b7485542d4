// Package models defines data structures for the harvester.
package models

import "time"

// Source identifies which extraction path produced a record.
type Source string

const (
	SourceRendered Source = "rendered"
	SourceAPI      Source = "api"
)

// Target identifies a single listing on the marketplace.
type Target struct {
	ShopID string `json:"shop_id"`
	ItemID string `json:"item_id"`
}

// ReviewRecord is one harvested review.
type ReviewRecord struct {
	Source   Source   `json:"source"`
	Username string   `json:"username,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Comment  string   `json:"comment"`
}

// HarvestResult is the consolidated output of both extraction paths.
type HarvestResult struct {
	Target       Target
	Rendered     []*ReviewRecord
	API          []*ReviewRecord
	Status       Status
	RenderStatus Status
	APIStatus    Status
	Err          error
	Offsets      []int
	StartTime    time.Time
	EndTime      time.Time
}

// Error returns the error description, or an empty string.
func (r *HarvestResult) Error() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
