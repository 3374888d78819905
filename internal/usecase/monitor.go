package usecase

import (
	"math"
	"sync"
	"time"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/logger"
)

// PerformanceMonitor keeps a bounded sliding window of prediction outcomes per
// model and derives drift and degradation signals from it. Safe for concurrent
// use; ingestion and evaluation run on different goroutines.
type PerformanceMonitor struct {
	mu      sync.RWMutex
	windows map[string][]models.Outcome

	cfg config.LifecycleConfig
	log *logger.Logger
}

func NewPerformanceMonitor(cfg config.LifecycleConfig, log *logger.Logger) *PerformanceMonitor {
	return &PerformanceMonitor{
		windows: make(map[string][]models.Outcome),
		cfg:     cfg,
		log:     log,
	}
}

// Ingest appends one outcome to the model's window, evicting the oldest entry
// once the window is full.
func (m *PerformanceMonitor) Ingest(o models.Outcome) {
	if o.ModelID == "" || o.Actual <= 0 {
		return
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w := append(m.windows[o.ModelID], o)
	if limit := m.cfg.EvaluationWindow; limit > 0 && len(w) > limit {
		w = w[len(w)-limit:]
	}
	m.windows[o.ModelID] = w
}

// WindowSize returns the number of outcomes currently held for the model.
func (m *PerformanceMonitor) WindowSize(modelID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.windows[modelID]))
}

// TrackedModels lists every model with at least one recorded outcome.
func (m *PerformanceMonitor) TrackedModels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.windows))
	for id := range m.windows {
		out = append(out, id)
	}
	return out
}

// RecentMAPE computes the mean absolute percentage error over the most recent
// quarter of the window. Returns 0 with ok=false below four outcomes.
func (m *PerformanceMonitor) RecentMAPE(modelID string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w := m.windows[modelID]
	if len(w) < 4 {
		return 0, false
	}
	recent := w[len(w)-len(w)/4:]
	sum := 0.0
	for _, o := range recent {
		sum += math.Abs(o.Predicted-o.Actual) / o.Actual * 100
	}
	return sum / float64(len(recent)), true
}

// CheckDegradation raises an alert when the recent-quarter MAPE exceeds the
// configured threshold.
func (m *PerformanceMonitor) CheckDegradation(modelID string) *models.DegradationAlert {
	mape, ok := m.RecentMAPE(modelID)
	if !ok || mape <= m.cfg.DegradationThreshold {
		return nil
	}
	m.log.Warn("model degradation detected",
		logger.String("model_id", modelID),
		logger.Float64("recent_mape", mape),
		logger.Float64("threshold", m.cfg.DegradationThreshold))
	return &models.DegradationAlert{
		ModelID:     modelID,
		RecentError: mape,
		Threshold:   m.cfg.DegradationThreshold,
		RaisedAt:    time.Now(),
	}
}

// CheckDrift compares the older half of the window against the newer half
// using the population stability index over the relative-error distribution.
// Fewer than two full bins of data yields no drift.
func (m *PerformanceMonitor) CheckDrift(modelID string) models.DriftMetrics {
	m.mu.RLock()
	w := m.windows[modelID]
	errs := make([]float64, 0, len(w))
	for _, o := range w {
		errs = append(errs, (o.Predicted-o.Actual)/o.Actual)
	}
	m.mu.RUnlock()

	out := models.DriftMetrics{Metrics: map[string]float64{}}
	bins := m.cfg.DriftBins
	if bins <= 0 {
		bins = 10
	}
	if len(errs) < 2*bins {
		return out
	}

	half := len(errs) / 2
	psi := populationStabilityIndex(errs[:half], errs[half:], bins)
	out.Metrics["psi"] = psi
	out.HasDrift = psi > m.cfg.DriftThreshold
	if out.HasDrift {
		m.log.Warn("prediction drift detected",
			logger.String("model_id", modelID),
			logger.Float64("psi", psi),
			logger.Float64("threshold", m.cfg.DriftThreshold))
	}
	return out
}

// populationStabilityIndex bins both samples over the baseline's range and
// sums (cur-base)*ln(cur/base) per bin. Empty bins are floored to avoid
// division by zero.
func populationStabilityIndex(baseline, current []float64, bins int) float64 {
	lo, hi := baseline[0], baseline[0]
	for _, v := range baseline {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		hi = lo + 1e-9
	}
	width := (hi - lo) / float64(bins)

	bucket := func(sample []float64) []float64 {
		counts := make([]float64, bins)
		for _, v := range sample {
			i := int((v - lo) / width)
			if i < 0 {
				i = 0
			}
			if i >= bins {
				i = bins - 1
			}
			counts[i]++
		}
		n := float64(len(sample))
		for i := range counts {
			counts[i] /= n
			if counts[i] < 1e-6 {
				counts[i] = 1e-6
			}
		}
		return counts
	}

	base := bucket(baseline)
	cur := bucket(current)
	psi := 0.0
	for i := 0; i < bins; i++ {
		psi += (cur[i] - base[i]) * math.Log(cur[i]/base[i])
	}
	return psi
}
