package models

// Requests for valuation and lifecycle HTTP endpoints. Defined in domain for
// consistency and reuse.

type ValuationRequest struct {
	CollectionID string  `query:"collection_id" json:"collection_id" validate:"required"`
	TokenID      string  `query:"token_id" json:"token_id" validate:"required"`
	Category     string  `query:"category" json:"category"`
	CurrentPrice float64 `query:"current_price" json:"current_price" validate:"gte=0"`
}

type RecordOutcomeRequest struct {
	CollectionID string  `json:"collection_id" validate:"required"`
	ModelKind    string  `json:"model_kind" validate:"required,oneof=regression timeseries comparable rarity"`
	Predicted    float64 `json:"predicted" validate:"gt=0"`
	Actual       float64 `json:"actual" validate:"gt=0"`
}

type RetrainingEvaluateRequest struct {
	ModelID string `query:"model_id" json:"model_id" validate:"required"`
}

type SimulationRequest struct {
	CollectionID string `json:"collection_id" validate:"required"`
	ModelVersion string `json:"model_version" validate:"required"`
	From         string `json:"from" validate:"required"`
	To           string `json:"to" validate:"required"`
}

type WalkForwardRequest struct {
	CollectionID string `json:"collection_id" validate:"required"`
	ModelVersion string `json:"model_version" validate:"required"`
	From         string `json:"from" validate:"required"`
	To           string `json:"to" validate:"required"`
	WindowDays   int    `json:"window_days" default:"30" validate:"gte=1,lte=365"`
	StepDays     int    `json:"step_days" default:"15" validate:"gte=1,lte=365"`
}

type StressTestRequest struct {
	CollectionID string   `json:"collection_id" validate:"required"`
	ModelVersion string   `json:"model_version" validate:"required"`
	From         string   `json:"from" validate:"required"`
	To           string   `json:"to" validate:"required"`
	Scenarios    []string `json:"scenarios" validate:"omitempty,dive,oneof=crash rally vol_spike liquidity_drain"`
}

type CompareVersionsRequest struct {
	CollectionID  string   `json:"collection_id" validate:"required"`
	ModelVersions []string `json:"model_versions" validate:"required,min=2,dive,required"`
	From          string   `json:"from" validate:"required"`
	To            string   `json:"to" validate:"required"`
}

type EvaluationRequest struct {
	CollectionID string    `json:"collection_id" validate:"required"`
	Predictions  []float64 `json:"predictions" validate:"required,min=1"`
	Actuals      []float64 `json:"actuals" validate:"required,min=1"`
	HorizonDays  []int     `json:"horizon_days"`
	Categories   []string  `json:"categories"`
	Bins         int       `json:"bins" default:"10" validate:"gte=2,lte=100"`
}
