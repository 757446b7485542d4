package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.ReviewRecord
	closed      bool
	writeErr    error
	validateErr error
}

func (mw *mockWriter) Write(records []*models.ReviewRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.ReviewRecord, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) written() []*models.ReviewRecord {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.ReviewRecord
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
	closed  atomic.Bool
}

func (bw *blockingWriter) Write(records []*models.ReviewRecord) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	bw.closed.Store(true)
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

func apiRecord(comment string) *models.ReviewRecord {
	return &models.ReviewRecord{Source: models.SourceAPI, Username: "buyer", Comment: comment}
}

func TestPipelineProcessValidationKeepsDuplicates(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start()

	valid := apiRecord("  Great seller  ")
	invalid := &models.ReviewRecord{Source: models.SourceRendered, Comment: "   "}
	duplicate := apiRecord("Great seller")

	if err := p.Process(valid, invalid, nil, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.written()
	if len(got) != 2 {
		t.Fatalf("written records = %d, want 2", len(got))
	}
	if got[0].Comment != "Great seller" {
		t.Fatalf("comment = %q, want trimmed", got[0].Comment)
	}
	if !writer.closed {
		t.Fatalf("writer not closed")
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	if validation["invalid_record"] != 2 {
		t.Fatalf("invalid_record = %d, want 2", validation["invalid_record"])
	}
	if processed := metrics["processed_records"].(int64); processed != 2 {
		t.Fatalf("processed_records = %d, want 2", processed)
	}
}

func TestPipelinePreservesOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 7
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start()

	for i := 0; i < 100; i++ {
		if err := p.Process(apiRecord(strconv.Itoa(i))); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.written()
	if len(got) != 100 {
		t.Fatalf("written records = %d, want 100", len(got))
	}
	for i, record := range got {
		if record.Comment != strconv.Itoa(i) {
			t.Fatalf("record %d comment = %q, out of order", i, record.Comment)
		}
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start()

	for i := 0; i < 65; i++ {
		if err := p.Process(apiRecord("review " + strconv.Itoa(i))); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	p.Start()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(apiRecord("late")); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineCloseWithoutStart(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !writer.closed {
		t.Fatalf("writer not closed")
	}
}

func TestPipelineWriteErrorSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	writer := &mockWriter{writeErr: boom}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	p.Start()

	if err := p.Process(apiRecord("one")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("close = %v, want wrapped write error", err)
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start()

	if err := p.Process(apiRecord("blocked")); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
	if !writer.closed.Load() {
		t.Fatalf("writer not closed after drain timeout")
	}
}

func TestPipelineWritesAPIRecordsWithEmptyComment(t *testing.T) {
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, config.DefaultConfig())
	p.Start()

	collected := []*models.ReviewRecord{
		{Source: models.SourceAPI, Username: "maria", Comment: ""},
		{Source: models.SourceAPI, Username: "jose", Comment: "   "},
		apiRecord("ok"),
	}
	if err := p.Process(collected...); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.written()
	if len(got) != len(collected) {
		t.Fatalf("written records = %d, want %d", len(got), len(collected))
	}
	if got[0].Username != "maria" || got[0].Comment != "" {
		t.Fatalf("first record = %+v, want maria with empty comment", got[0])
	}
	if got[1].Comment != "" {
		t.Fatalf("second comment = %q, want trimmed to empty", got[1].Comment)
	}
	validation := p.GetMetrics()["validation_errors"].(map[string]int)
	if len(validation) != 0 {
		t.Fatalf("validation errors = %v, want none", validation)
	}
}
