// Package harvest runs both extraction paths for a listing and merges them
// into one result.
package harvest

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

// Consolidate merges the rendered snippets and the finished crawl session
// into a HarvestResult. Both sequences are capped at the session's
// MaxReviews. Records are not deduplicated across sources.
func Consolidate(session *models.HarvestSession, snippets []string, renderErr error) *models.HarvestResult {
	limit := session.MaxReviews
	if limit < 0 {
		limit = 0
	}
	if len(snippets) > limit {
		snippets = snippets[:limit]
	}

	rendered := make([]*models.ReviewRecord, 0, len(snippets))
	for _, s := range snippets {
		rendered = append(rendered, &models.ReviewRecord{Source: models.SourceRendered, Comment: s})
	}

	api := session.Collected
	if len(api) > limit {
		api = api[:limit]
	}

	renderStatus := models.StatusCompleted
	if renderErr != nil {
		renderStatus = models.StatusFailed
		renderErr = fmt.Errorf("rendered: %w", renderErr)
	}
	apiStatus := session.Status
	apiErr := session.Err
	if apiErr != nil {
		apiErr = fmt.Errorf("api: %w", apiErr)
	}

	offsets := make([]int, len(session.Offsets))
	copy(offsets, session.Offsets)

	return &models.HarvestResult{
		Target:       session.Target,
		Rendered:     rendered,
		API:          append([]*models.ReviewRecord(nil), api...),
		Status:       models.MoreSevere(renderStatus, apiStatus),
		RenderStatus: renderStatus,
		APIStatus:    apiStatus,
		Err:          errors.Join(renderErr, apiErr),
		Offsets:      offsets,
	}
}
