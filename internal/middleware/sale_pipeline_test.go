package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"NFTAppraiser/internal/domain/models"
)

type countingProc struct {
	mu   sync.Mutex
	seen []*models.SaleRecord
	fail bool
}

func (p *countingProc) Process(_ context.Context, s *models.SaleRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("downstream unavailable")
	}
	p.seen = append(p.seen, s)
	return nil
}

func (p *countingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: make(map[string]int)}
}

func (m *countingMetrics) RecordPrediction(string)                   {}
func (m *countingMetrics) RecordProviderFailure(string)              {}
func (m *countingMetrics) RecordFallback(string)                     {}
func (m *countingMetrics) RecordModelWeight(string, string, float64) {}
func (m *countingMetrics) RecordLatency(string, float64)             {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func sale(collection, token string) *models.SaleRecord {
	return &models.SaleRecord{
		CollectionID: collection,
		TokenID:      token,
		Price:        1.5,
		Timestamp:    time.Now(),
	}
}

func TestPipelineForwardsValidSales(t *testing.T) {
	proc := &countingProc{}
	p := NewSalePipeline(proc, newCountingMetrics())

	if err := p.Process(context.Background(), sale("col", "1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("downstream saw %d sales, want 1", proc.count())
	}
}

func TestPipelineRejectsInvalidSales(t *testing.T) {
	proc := &countingProc{}
	m := newCountingMetrics()
	p := NewSalePipeline(proc, m)
	ctx := context.Background()

	bad := []*models.SaleRecord{
		nil,
		{TokenID: "1", Price: 1, Timestamp: time.Now()},
		{CollectionID: "col", Price: 1, Timestamp: time.Now()},
		{CollectionID: "col", TokenID: "1", Price: 1},
		{CollectionID: "col", TokenID: "1", Price: 0, Timestamp: time.Now()},
	}
	for i, s := range bad {
		if err := p.Process(ctx, s); err == nil {
			t.Fatalf("sale %d accepted, want validation error", i)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("downstream saw %d invalid sales", proc.count())
	}
	if m.errCount("pipeline_validate") != len(bad) {
		t.Fatalf("validate errors %d, want %d", m.errCount("pipeline_validate"), len(bad))
	}
}

func TestPipelineThrottlesPerCollection(t *testing.T) {
	proc := &countingProc{}
	m := newCountingMetrics()
	p := NewSalePipeline(proc, m, WithMaxRPS(1))
	ctx := context.Background()

	// burst on one collection: only the first passes
	for i := 0; i < 5; i++ {
		if err := p.Process(ctx, sale("hot", "1")); err != nil {
			t.Fatalf("throttled sale returned error: %v", err)
		}
	}
	if proc.count() != 1 {
		t.Fatalf("downstream saw %d, want 1 after throttling", proc.count())
	}
	if m.errCount("pipeline_throttle") != 4 {
		t.Fatalf("throttle count %d, want 4", m.errCount("pipeline_throttle"))
	}

	// a different collection has its own budget
	if err := p.Process(ctx, sale("cold", "1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("downstream saw %d, want 2", proc.count())
	}
}

func TestPipelineBuffersDownstreamFailures(t *testing.T) {
	proc := &countingProc{fail: true}
	m := newCountingMetrics()
	p := NewSalePipeline(proc, m, WithBufferSize(4))
	ctx := context.Background()

	if err := p.Process(ctx, sale("col", "1")); err == nil {
		t.Fatalf("expected downstream error")
	}
	if m.errCount("pipeline_process") != 1 {
		t.Fatalf("process errors %d, want 1", m.errCount("pipeline_process"))
	}

	// recovered downstream: the flusher replays the buffered sale
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	ctx2, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx2)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("buffered sale never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
