package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"NFTAppraiser/internal/domain/models"
	domrepo "NFTAppraiser/internal/domain/repository"
)

// SaleProc is the minimal processor interface the pipeline needs.
type SaleProc interface {
	Process(ctx context.Context, s *models.SaleRecord) error
}

// SalePipeline sits between the marketplace WebSocket and sale processing.
// It validates, throttles per collection, and buffers when downstream is
// unavailable.
type SalePipeline struct {
	proc     SaleProc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.SaleRecord
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-collection last accepted time
}

type PipelineOption func(*SalePipeline)

// WithMaxRPS sets the max sales per second per collection.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SalePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SalePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewSalePipeline creates a new pipeline.
func NewSalePipeline(proc SaleProc, metrics domrepo.Metrics, opts ...PipelineOption) *SalePipeline {
	p := &SalePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.SaleRecord, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.SaleRecord, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered sales.
func (p *SalePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if s == nil {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SalePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards the sale downstream, buffering
// on errors.
func (p *SalePipeline) Process(ctx context.Context, s *models.SaleRecord) error {
	start := time.Now()
	if err := validateSale(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s.CollectionID, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateSale(s *models.SaleRecord) error {
	if s == nil {
		return fmt.Errorf("sale nil")
	}
	if s.CollectionID == "" || s.TokenID == "" {
		return fmt.Errorf("collection/token empty")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if s.Price <= 0 {
		return fmt.Errorf("non-positive price")
	}
	return nil
}

func (p *SalePipeline) allow(collectionID string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[collectionID]
	if last.IsZero() {
		p.lastSeen[collectionID] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[collectionID] = now
	return true
}
