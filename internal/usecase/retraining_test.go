package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"NFTAppraiser/internal/domain/models"
)

type capturePublisher struct {
	published []models.RetrainingTrigger
	err       error
}

func (p *capturePublisher) PublishTriggers(_ context.Context, ts []models.RetrainingTrigger) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, ts...)
	return nil
}

func triggerTypes(ts []models.RetrainingTrigger) map[models.TriggerType]bool {
	out := make(map[models.TriggerType]bool, len(ts))
	for _, tr := range ts {
		out[tr.Type] = true
	}
	return out
}

// degradedModel feeds the monitor an error pattern that trips both the
// accuracy and the drift triggers: a tight early error band followed by a
// sustained 50 percent overshoot.
func degradedModel(m *PerformanceMonitor, modelID string) {
	for i := 0; i < 20; i++ {
		m.Ingest(outcome(modelID, 100+float64(i)*0.1, 100))
	}
	for i := 0; i < 20; i++ {
		m.Ingest(outcome(modelID, 150+float64(i), 100))
	}
}

func TestEvaluateHealthyModel(t *testing.T) {
	cfg := lifecycleCfg()
	m := NewPerformanceMonitor(cfg, testLogger(t))
	pub := &capturePublisher{}
	r := NewRetrainingManager(m, pub, cfg, testLogger(t))

	for i := 0; i < 10; i++ {
		m.Ingest(outcome("col:regression", 102, 100))
	}
	if got := r.Evaluate(context.Background(), "col:regression"); len(got) != 0 {
		t.Fatalf("healthy model fired %d triggers: %+v", len(got), got)
	}
	if len(pub.published) != 0 {
		t.Fatalf("published %d triggers for a healthy model", len(pub.published))
	}
}

func TestEvaluateUnionOfTriggers(t *testing.T) {
	cfg := lifecycleCfg()
	cfg.RetrainInterval = time.Nanosecond
	cfg.MinDataPoints = 10
	m := NewPerformanceMonitor(cfg, testLogger(t))
	pub := &capturePublisher{}
	r := NewRetrainingManager(m, pub, cfg, testLogger(t))

	degradedModel(m, "col:regression")

	// first sight seeds the schedule clock, so SCHEDULED cannot fire yet
	first := triggerTypes(r.Evaluate(context.Background(), "col:regression"))
	if first[models.TriggerScheduled] {
		t.Fatalf("scheduled trigger fired on first evaluation")
	}
	for _, want := range []models.TriggerType{models.TriggerAccuracy, models.TriggerDrift, models.TriggerDataVolume} {
		if !first[want] {
			t.Fatalf("missing %v in first evaluation: %v", want, first)
		}
	}

	second := triggerTypes(r.Evaluate(context.Background(), "col:regression"))
	for _, want := range []models.TriggerType{
		models.TriggerAccuracy, models.TriggerDrift,
		models.TriggerScheduled, models.TriggerDataVolume,
	} {
		if !second[want] {
			t.Fatalf("missing %v in second evaluation: %v", want, second)
		}
	}
	if len(second) != 4 {
		t.Fatalf("expected exactly 4 trigger types, got %v", second)
	}
}

func TestRecordRetrainingResetsClockAndCounter(t *testing.T) {
	cfg := lifecycleCfg()
	cfg.RetrainInterval = time.Nanosecond
	cfg.MinDataPoints = 10
	m := NewPerformanceMonitor(cfg, testLogger(t))
	r := NewRetrainingManager(m, &capturePublisher{}, cfg, testLogger(t))

	degradedModel(m, "col:timeseries")
	r.Evaluate(context.Background(), "col:timeseries")
	r.Evaluate(context.Background(), "col:timeseries")
	r.RecordRetraining("col:timeseries")

	got := triggerTypes(r.Evaluate(context.Background(), "col:timeseries"))
	if got[models.TriggerDataVolume] {
		t.Fatalf("data-volume trigger fired with no fresh outcomes since retraining")
	}
	// accuracy and drift still reflect the window; only the bookkeeping resets
	if !got[models.TriggerAccuracy] || !got[models.TriggerDrift] {
		t.Fatalf("accuracy/drift triggers lost after retraining record: %v", got)
	}
}

func TestEvaluatePopulatesTriggerFields(t *testing.T) {
	cfg := lifecycleCfg()
	m := NewPerformanceMonitor(cfg, testLogger(t))
	r := NewRetrainingManager(m, &capturePublisher{}, cfg, testLogger(t))

	degradedModel(m, "col:comparable")
	ts := r.Evaluate(context.Background(), "col:comparable")
	if len(ts) == 0 {
		t.Fatalf("expected triggers")
	}
	for _, tr := range ts {
		if tr.ID == "" {
			t.Fatalf("trigger missing id: %+v", tr)
		}
		if tr.ModelID != "col:comparable" {
			t.Fatalf("trigger model id %q", tr.ModelID)
		}
		if tr.Timestamp.IsZero() {
			t.Fatalf("trigger missing timestamp")
		}
		if tr.Threshold == 0 {
			t.Fatalf("trigger missing threshold: %+v", tr)
		}
	}
}

func TestPublishFailureDoesNotMaskTriggers(t *testing.T) {
	cfg := lifecycleCfg()
	m := NewPerformanceMonitor(cfg, testLogger(t))
	pub := &capturePublisher{err: errors.New("broker down")}
	r := NewRetrainingManager(m, pub, cfg, testLogger(t))

	degradedModel(m, "col:regression")
	if got := r.Evaluate(context.Background(), "col:regression"); len(got) == 0 {
		t.Fatalf("publish failure swallowed the triggers")
	}
}

func TestEvaluateAllCoversTrackedModels(t *testing.T) {
	cfg := lifecycleCfg()
	m := NewPerformanceMonitor(cfg, testLogger(t))
	pub := &capturePublisher{}
	r := NewRetrainingManager(m, pub, cfg, testLogger(t))

	degradedModel(m, "a:regression")
	degradedModel(m, "b:rarity")

	all := r.EvaluateAll(context.Background())
	byModel := make(map[string]int)
	for _, tr := range all {
		byModel[tr.ModelID]++
	}
	if byModel["a:regression"] == 0 || byModel["b:rarity"] == 0 {
		t.Fatalf("expected triggers for both models, got %v", byModel)
	}
	if len(pub.published) != len(all) {
		t.Fatalf("published %d of %d triggers", len(pub.published), len(all))
	}
}
