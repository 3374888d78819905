package models

import "time"

// ConfidenceTier buckets the overall trust in an ensemble output.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "HIGH"
	TierMedium ConfidenceTier = "MEDIUM"
	TierLow    ConfidenceTier = "LOW"
)

// FairValueReport restates the top weighted factors in prose.
type FairValueReport struct {
	CollectionID string         `json:"collection_id"`
	TokenID      string         `json:"token_id"`
	FairValue    float64        `json:"fair_value"`
	Tier         ConfidenceTier `json:"confidence_tier"`
	Summary      string         `json:"summary"`
	TopFactors   []string       `json:"top_factors"`
}

// TrendDirection labels the 7d-to-90d forecast slope.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// HorizonForecast is the projected price at one horizon.
type HorizonForecast struct {
	Days     int                `json:"days"`
	Price    float64            `json:"price"`
	Interval ConfidenceInterval `json:"interval"`
}

// Milestone is a price target with a coarse timeframe and probability.
// Emitted only when the trend direction is up.
type Milestone struct {
	TargetPct   float64 `json:"target_pct"` // e.g. 0.25 for +25%
	TargetPrice float64 `json:"target_price"`
	Timeframe   string  `json:"timeframe"` // "7d", "30d", "90d"
	Probability float64 `json:"probability"`
}

// TrendForecast projects the base price across horizons.
type TrendForecast struct {
	CollectionID  string            `json:"collection_id"`
	TokenID       string            `json:"token_id"`
	MonthlyGrowth float64           `json:"monthly_growth"` // clamped log-ratio estimate
	Horizons      []HorizonForecast `json:"horizons"`
	Direction     TrendDirection    `json:"direction"`
	Strength      float64           `json:"strength"` // [0,1]
	Milestones    []Milestone       `json:"milestones,omitempty"`
}

// ValuationStatus classifies current price against fair value.
type ValuationStatus string

const (
	StatusUndervalued ValuationStatus = "UNDERVALUED"
	StatusOvervalued  ValuationStatus = "OVERVALUED"
	StatusFairValued  ValuationStatus = "FAIR_VALUED"
)

// ValuationAssessment is the undervalued/overvalued classification with an
// opportunity score.
type ValuationAssessment struct {
	CollectionID     string          `json:"collection_id"`
	TokenID          string          `json:"token_id"`
	CurrentPrice     float64         `json:"current_price"`
	FairValue        float64         `json:"fair_value"`
	PctDiff          float64         `json:"pct_diff"` // fraction, not percent
	Status           ValuationStatus `json:"status"`
	OpportunityScore float64         `json:"opportunity_score"` // [0,100]
}

// VolatilityReport carries historical and per-horizon projected volatility.
type VolatilityReport struct {
	CollectionID     string             `json:"collection_id"`
	TokenID          string             `json:"token_id"`
	Historical       float64            `json:"historical"` // annualized
	Future           map[string]float64 `json:"future"`     // horizon label -> sigma
	RiskAdjusted     float64            `json:"risk_adjusted_value"`
	LiquidityFactor  float64            `json:"liquidity_factor"`
	InsufficientData bool               `json:"insufficient_data"`
}

// ConfidenceReport aggregates model agreement into a tier.
type ConfidenceReport struct {
	CollectionID string         `json:"collection_id"`
	TokenID      string         `json:"token_id"`
	Uncertainty  float64        `json:"model_uncertainty"` // coefficient of variation
	Score        float64        `json:"confidence_score"`
	Tier         ConfidenceTier `json:"tier"`
	Suggestions  []string       `json:"suggestions,omitempty"`
}

// ValuationReport bundles the ensemble output with every derived view.
type ValuationReport struct {
	Prediction *EnsemblePrediction  `json:"prediction"`
	FairValue  *FairValueReport     `json:"fair_value"`
	Trend      *TrendForecast       `json:"trend"`
	Assessment *ValuationAssessment `json:"assessment"`
	Volatility *VolatilityReport    `json:"volatility"`
	Confidence *ConfidenceReport    `json:"confidence"`
	Timestamp  time.Time            `json:"timestamp"`
}
