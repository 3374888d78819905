package models

import "time"

// ModelPerformanceRecord is the exponentially decayed error profile for one
// (collection, model kind) pair. The one piece of long-lived shared mutable
// state in the engine; all mutation goes through the Performance Tracker.
type ModelPerformanceRecord struct {
	CollectionID    string    `json:"collection_id"`
	Kind            ModelKind `json:"model_kind"`
	RecentMAPE      float64   `json:"recent_mape"`
	RecentRMSE      float64   `json:"recent_rmse"`
	PredictionCount int64     `json:"prediction_count"`
	LastUpdated     time.Time `json:"last_updated"`
}

// TriggerType enumerates retraining trigger causes.
type TriggerType string

const (
	TriggerAccuracy   TriggerType = "ACCURACY"
	TriggerDrift      TriggerType = "DRIFT"
	TriggerScheduled  TriggerType = "SCHEDULED"
	TriggerDataVolume TriggerType = "DATA_VOLUME"
)

// RetrainingTrigger is created once and consumed once by the training
// dispatcher. Never mutated.
type RetrainingTrigger struct {
	ID             string      `json:"id"`
	Type           TriggerType `json:"type"`
	ModelID        string      `json:"model_id"`
	ObservedMetric float64     `json:"observed_metric"`
	Threshold      float64     `json:"threshold"`
	Timestamp      time.Time   `json:"timestamp"`
}

// DriftMetrics is the most recent distribution comparison for one model.
type DriftMetrics struct {
	HasDrift bool               `json:"has_drift"`
	Metrics  map[string]float64 `json:"metrics"`
}

// DegradationAlert flags recent error exceeding the configured threshold.
type DegradationAlert struct {
	ModelID     string    `json:"model_id"`
	RecentError float64   `json:"recent_error"`
	Threshold   float64   `json:"threshold"`
	RaisedAt    time.Time `json:"raised_at"`
}

// Outcome pairs a prediction with its ground truth. Units are the asset's
// sale currency.
type Outcome struct {
	ModelID   string    `json:"model_id"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
	Features  []float64 `json:"features,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TestPeriod bounds one backtest window.
type TestPeriod struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TestResult is one backtest window's evaluation. Output-only, immutable.
type TestResult struct {
	ID               string             `json:"id"`
	ModelVersion     string             `json:"model_version"`
	Period           TestPeriod         `json:"period"`
	Metrics          map[string]float64 `json:"metrics"`
	SampleCount      int                `json:"sample_count"`
	MarketConditions string             `json:"market_conditions,omitempty"`
}
