// Package pipeline validates harvested records and streams them to output
// writers in the order they were submitted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when the writer does not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: timed out draining writer")
)

// drainTimeout bounds how long Close waits for queued records to be written.
var drainTimeout = 30 * time.Second

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.ReviewRecord) error
	Close() error
	Validate() error
}

// Pipeline validates records and hands them to a writer in batches.
// A single writer goroutine keeps records in submission order.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	recordCh  chan *models.ReviewRecord
	batchSize int
	done      chan struct{}

	metrics metrics

	mu      sync.Mutex // guards closed/started/err
	closed  bool
	started bool
	err     error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline that writes through writer. ctx bounds how
// long Process may block on a full buffer.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		recordCh:  make(chan *models.ReviewRecord, 512),
		batchSize: batchSize,
		done:      make(chan struct{}),
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches the writer goroutine. Calling it more than once is a no-op.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.closed || p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.worker()
}

// Process enqueues records for validation and writing.
func (p *Pipeline) Process(records ...*models.ReviewRecord) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, record := range records {
		if err := p.enqueue(record); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting records, waits up to drainTimeout for queued ones
// to be written, then closes the writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	started := p.started
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	if started {
		timer := time.NewTimer(drainTimeout)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C:
			slog.Error("pipeline drain timed out", slog.Duration("timeout", drainTimeout))
			return errors.Join(ErrPipelineCloseTimeout, p.closeWriterWithin(drainTimeout))
		}
	}

	var closeErr error
	if err := p.writer.Close(); err != nil {
		closeErr = fmt.Errorf("close writer: %w", err)
	}
	return errors.Join(p.Err(), closeErr)
}

// closeWriterWithin closes the writer without waiting longer than wait for a
// write still in flight to release it.
func (p *Pipeline) closeWriterWithin(wait time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.writer.Close()
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("close writer: %w", err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("close writer: still busy after %s", wait)
	}
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) worker() {
	defer close(p.done)

	batch := make([]*models.ReviewRecord, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for record := range p.recordCh {
		prepared := p.prepare(record)
		if prepared == nil {
			continue
		}
		batch = append(batch, prepared)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) prepare(record *models.ReviewRecord) *models.ReviewRecord {
	if err := parser.ValidateRecord(record); err != nil {
		p.metrics.addValidation("invalid_record")
		slog.Debug("dropping invalid record", slog.Any("error", err))
		return nil
	}

	record.Username = parser.NormalizeText(record.Username)
	record.Comment = parser.NormalizeText(record.Comment)

	p.metrics.incrementProcessed()
	return record
}

func (p *Pipeline) enqueue(record *models.ReviewRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.recordCh <- record:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
