// Package observe carries harvest progress events to logs and metrics.
package observe

import (
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

// Kind names a harvest event.
type Kind string

const (
	PageRequested   Kind = "page_requested"
	PageFetched     Kind = "page_fetched"
	CrawlFinished   Kind = "crawl_finished"
	RenderStarted   Kind = "render_started"
	RenderFinished  Kind = "render_finished"
	HarvestFinished Kind = "harvest_finished"
)

// Event describes one step of a harvest. Fields not relevant to Kind are
// left zero.
type Event struct {
	Kind      Kind
	Target    models.Target
	URL       string
	Offset    int
	Entries   int
	Collected int
	Status    models.Status
	Duration  time.Duration
	Err       error
}

// Observer receives harvest events. Implementations must not block for long
// and must not alter harvest control flow.
type Observer interface {
	Observe(Event)
}

// Func adapts a function to the Observer interface.
type Func func(Event)

func (f Func) Observe(e Event) { f(e) }

// Nop discards all events.
var Nop Observer = Func(func(Event) {})

type multi []Observer

func (m multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Multi fans events out to every non-nil observer.
func Multi(observers ...Observer) Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return Nop
	case 1:
		return out[0]
	}
	return out
}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop
	}
	return o
}
