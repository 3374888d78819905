package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"NFTAppraiser/internal/domain/models"
	domservice "NFTAppraiser/internal/domain/service"
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/logger"
)

// RetrainingManager evaluates the four retraining triggers against the
// monitor's state. Triggers are independent; one evaluation can return several.
type RetrainingManager struct {
	monitor   *PerformanceMonitor
	publisher domservice.TriggerPublisher
	cfg       config.LifecycleConfig
	log       *logger.Logger

	mu    sync.Mutex
	marks map[string]retrainMark
}

// retrainMark pins the schedule clock and data counter for one model.
type retrainMark struct {
	at        time.Time
	dataCount int64
}

func NewRetrainingManager(monitor *PerformanceMonitor, publisher domservice.TriggerPublisher, cfg config.LifecycleConfig, log *logger.Logger) *RetrainingManager {
	return &RetrainingManager{
		monitor:   monitor,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		marks:     make(map[string]retrainMark),
	}
}

// Evaluate checks every trigger condition for the model and returns the union
// of those that fire. Fired triggers are published; publish failures are
// logged, never returned, so one slow broker cannot mask a needed retrain.
func (r *RetrainingManager) Evaluate(ctx context.Context, modelID string) []models.RetrainingTrigger {
	now := time.Now()
	mark := r.markFor(modelID, now)

	var triggers []models.RetrainingTrigger

	if alert := r.monitor.CheckDegradation(modelID); alert != nil {
		triggers = append(triggers, r.trigger(models.TriggerAccuracy, modelID, alert.RecentError, r.cfg.DegradationThreshold, now))
	}

	if drift := r.monitor.CheckDrift(modelID); drift.HasDrift {
		triggers = append(triggers, r.trigger(models.TriggerDrift, modelID, drift.Metrics["psi"], r.cfg.DriftThreshold, now))
	}

	if elapsed := now.Sub(mark.at); elapsed >= r.cfg.RetrainInterval {
		triggers = append(triggers, r.trigger(models.TriggerScheduled, modelID, elapsed.Hours(), r.cfg.RetrainInterval.Hours(), now))
	}

	if fresh := r.monitor.WindowSize(modelID) - mark.dataCount; fresh >= r.cfg.MinDataPoints {
		triggers = append(triggers, r.trigger(models.TriggerDataVolume, modelID, float64(fresh), float64(r.cfg.MinDataPoints), now))
	}

	if len(triggers) > 0 {
		r.log.Info("retraining triggers fired",
			logger.String("model_id", modelID),
			logger.Int("count", len(triggers)))
		if r.publisher != nil {
			if err := r.publisher.PublishTriggers(ctx, triggers); err != nil {
				r.log.Error("publish retraining triggers", logger.Error(err),
					logger.String("model_id", modelID))
			}
		}
	}
	return triggers
}

// EvaluateAll runs Evaluate for every tracked model and returns the combined
// trigger set.
func (r *RetrainingManager) EvaluateAll(ctx context.Context) []models.RetrainingTrigger {
	var all []models.RetrainingTrigger
	for _, id := range r.monitor.TrackedModels() {
		all = append(all, r.Evaluate(ctx, id)...)
	}
	return all
}

// RecordRetraining resets the schedule clock and data counter after a model
// has been retrained.
func (r *RetrainingManager) RecordRetraining(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks[modelID] = retrainMark{
		at:        time.Now(),
		dataCount: r.monitor.WindowSize(modelID),
	}
}

// markFor returns the model's retrain mark, seeding the clock at first sight
// so a brand-new model is not immediately flagged as overdue.
func (r *RetrainingManager) markFor(modelID string, now time.Time) retrainMark {
	r.mu.Lock()
	defer r.mu.Unlock()
	mark, ok := r.marks[modelID]
	if !ok {
		mark = retrainMark{at: now}
		r.marks[modelID] = mark
	}
	return mark
}

func (r *RetrainingManager) trigger(t models.TriggerType, modelID string, observed, threshold float64, now time.Time) models.RetrainingTrigger {
	return models.RetrainingTrigger{
		ID:             uuid.NewString(),
		Type:           t,
		ModelID:        modelID,
		ObservedMetric: observed,
		Threshold:      threshold,
		Timestamp:      now,
	}
}
