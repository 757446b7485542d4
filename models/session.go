package models

// Status is the lifecycle state of an extraction path or a whole harvest.
type Status string

const (
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
)

// Terminal reports whether s ends a session.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusPartiallyFailed, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) severity() int {
	switch s {
	case StatusFailed:
		return 3
	case StatusPartiallyFailed:
		return 2
	case StatusCompleted:
		return 1
	default:
		return 0
	}
}

// MoreSevere returns whichever of a and b is worse.
func MoreSevere(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// HarvestSession is the mutable run state of one paginated crawl.
// It is owned by a single crawler goroutine and needs no locking.
type HarvestSession struct {
	Target     Target
	MaxReviews int
	Offset     int
	Collected  []*ReviewRecord
	Status     Status
	Err        error
	Offsets    []int
}

// NewHarvestSession returns a running session starting at offset zero.
func NewHarvestSession(target Target, maxReviews int) *HarvestSession {
	return &HarvestSession{
		Target:     target,
		MaxReviews: maxReviews,
		Collected:  make([]*ReviewRecord, 0, maxReviews),
		Status:     StatusRunning,
	}
}

// Full reports whether the cap has been reached.
func (s *HarvestSession) Full() bool {
	return len(s.Collected) >= s.MaxReviews
}

// Add appends a record unless the cap is already reached.
func (s *HarvestSession) Add(record *ReviewRecord) bool {
	if s.Full() {
		return false
	}
	s.Collected = append(s.Collected, record)
	return true
}

// Finish moves the session to a terminal status. Only the first call has
// any effect; it returns false once the session is already terminal.
func (s *HarvestSession) Finish(status Status, err error) bool {
	if s.Status.Terminal() || !status.Terminal() {
		return false
	}
	s.Status = status
	s.Err = err
	return true
}

// Fail finishes the session after a hard error, keeping whatever was
// collected so far.
func (s *HarvestSession) Fail(err error) bool {
	if len(s.Collected) > 0 {
		return s.Finish(StatusPartiallyFailed, err)
	}
	return s.Finish(StatusFailed, err)
}
