package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers         []string      `yaml:"brokers"`
		OutcomesTopic   string        `yaml:"outcomes_topic"`
		RetrainingTopic string        `yaml:"retraining_topic"`
		RequiredAcks    int           `yaml:"required_acks"`
		Compression     string        `yaml:"compression"`
		GroupID         string        `yaml:"group_id"`
		Workers         int           `yaml:"workers"`
		BufferSize      int           `yaml:"buffer_size"`
		RetryMax        int           `yaml:"retry_max"`
		BackoffMin      time.Duration `yaml:"backoff_min"`
		BackoffMax      time.Duration `yaml:"backoff_max"`
		DLQTopic        string        `yaml:"dlq_topic"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled      bool          `yaml:"enabled"`
		Addr         string        `yaml:"addr"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		SnapshotKey  string        `yaml:"snapshot_key"`
		SnapshotTick time.Duration `yaml:"snapshot_tick"`
	} `yaml:"redis"`
	Marketplace struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Collections    []string      `yaml:"collections"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"marketplace"`
	Providers struct {
		Timeout   time.Duration     `yaml:"timeout"`
		Endpoints map[string]string `yaml:"endpoints"` // model kind -> base URL
	} `yaml:"providers"`
	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Valuation ValuationConfig `yaml:"valuation"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Backtest  BacktestConfig  `yaml:"backtest"`
}

// EnsembleConfig carries the combination thresholds. Kept as configuration so
// the decision logic stays reviewable and testable in isolation.
type EnsembleConfig struct {
	WeightEpsilon      float64                       `yaml:"weight_epsilon"`       // default 0.1
	DefaultMAPE        float64                       `yaml:"default_mape"`         // default 100
	FallbackConfidence float64                       `yaml:"fallback_confidence"`  // default 0.6
	ComparableOverride float64                       `yaml:"comparable_override"`  // default 0.7
	ComparableWeight   float64                       `yaml:"comparable_weight"`    // default 0.6
	FloorBlendWeight   float64                       `yaml:"floor_blend_weight"`   // default 0.7
	RecentBlendWeight  float64                       `yaml:"recent_blend_weight"`  // default 0.6
	RecentSalesWindow  time.Duration                 `yaml:"recent_sales_window"`  // default 30d
	FallbackScore      float64                       `yaml:"fallback_score"`       // default 0.5
	IntervalSpread     float64                       `yaml:"interval_spread"`      // default 0.3
	HighImpactWeight   float64                       `yaml:"high_impact_weight"`   // default 0.4
	MediumImpactWeight float64                       `yaml:"medium_impact_weight"` // default 0.2
	CategoryBoosts     map[string]map[string]float64 `yaml:"category_boosts"`      // category -> kind -> boost
	CacheTTL           time.Duration                 `yaml:"cache_ttl"`
}

// ValuationConfig carries the derived-intelligence thresholds.
type ValuationConfig struct {
	ValuationBand       float64       `yaml:"valuation_band"`       // default 0.15
	TrendBand           float64       `yaml:"trend_band"`           // default 0.05
	GrowthClampMin      float64       `yaml:"growth_clamp_min"`     // default -0.20 monthly
	GrowthClampMax      float64       `yaml:"growth_clamp_max"`     // default 0.50 monthly
	VolatilityWindow    time.Duration `yaml:"volatility_window"`    // default 30d
	RiskAversion        float64       `yaml:"risk_aversion"`        // default 0.5
	LiquiditySaturation int           `yaml:"liquidity_saturation"` // sales/30d for full liquidity, default 20
}

// LifecycleConfig carries monitor and retraining thresholds.
type LifecycleConfig struct {
	DecayAlpha           float64       `yaml:"decay_alpha"`           // default 0.3
	EvaluationWindow     int           `yaml:"evaluation_window"`     // default 100
	DegradationThreshold float64       `yaml:"degradation_threshold"` // MAPE, default 25
	DriftThreshold       float64       `yaml:"drift_threshold"`       // PSI, default 0.2
	DriftBins            int           `yaml:"drift_bins"`            // default 10
	RetrainInterval      time.Duration `yaml:"retrain_interval"`      // default 7d
	MinDataPoints        int64         `yaml:"min_data_points"`       // default 50
	SweepCron            string        `yaml:"sweep_cron"`            // default "0 0 * * * *"
}

// BacktestConfig bounds simulation concurrency.
type BacktestConfig struct {
	Concurrency   int `yaml:"concurrency"`    // default 4
	HistogramBins int `yaml:"histogram_bins"` // default 10
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MARKETPLACE_API_KEY"); v != "" {
		c.Marketplace.APIKey = v
	}
	if v := os.Getenv("COLLECTIONS"); v != "" {
		c.Marketplace.Collections = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	e := &c.Ensemble
	if e.WeightEpsilon == 0 {
		e.WeightEpsilon = 0.1
	}
	if e.DefaultMAPE == 0 {
		e.DefaultMAPE = 100
	}
	if e.FallbackConfidence == 0 {
		e.FallbackConfidence = 0.6
	}
	if e.ComparableOverride == 0 {
		e.ComparableOverride = 0.7
	}
	if e.ComparableWeight == 0 {
		e.ComparableWeight = 0.6
	}
	if e.FloorBlendWeight == 0 {
		e.FloorBlendWeight = 0.7
	}
	if e.RecentBlendWeight == 0 {
		e.RecentBlendWeight = 0.6
	}
	if e.RecentSalesWindow == 0 {
		e.RecentSalesWindow = 30 * 24 * time.Hour
	}
	if e.FallbackScore == 0 {
		e.FallbackScore = 0.5
	}
	if e.IntervalSpread == 0 {
		e.IntervalSpread = 0.3
	}
	if e.HighImpactWeight == 0 {
		e.HighImpactWeight = 0.4
	}
	if e.MediumImpactWeight == 0 {
		e.MediumImpactWeight = 0.2
	}
	if e.CacheTTL == 0 {
		e.CacheTTL = 15 * time.Second
	}

	v := &c.Valuation
	if v.ValuationBand == 0 {
		v.ValuationBand = 0.15
	}
	if v.TrendBand == 0 {
		v.TrendBand = 0.05
	}
	if v.GrowthClampMin == 0 {
		v.GrowthClampMin = -0.20
	}
	if v.GrowthClampMax == 0 {
		v.GrowthClampMax = 0.50
	}
	if v.VolatilityWindow == 0 {
		v.VolatilityWindow = 30 * 24 * time.Hour
	}
	if v.RiskAversion == 0 {
		v.RiskAversion = 0.5
	}
	if v.LiquiditySaturation == 0 {
		v.LiquiditySaturation = 20
	}

	l := &c.Lifecycle
	if l.DecayAlpha == 0 {
		l.DecayAlpha = 0.3
	}
	if l.EvaluationWindow == 0 {
		l.EvaluationWindow = 100
	}
	if l.DegradationThreshold == 0 {
		l.DegradationThreshold = 25
	}
	if l.DriftThreshold == 0 {
		l.DriftThreshold = 0.2
	}
	if l.DriftBins == 0 {
		l.DriftBins = 10
	}
	if l.RetrainInterval == 0 {
		l.RetrainInterval = 7 * 24 * time.Hour
	}
	if l.MinDataPoints == 0 {
		l.MinDataPoints = 50
	}
	if l.SweepCron == "" {
		l.SweepCron = "0 0 * * * *"
	}

	b := &c.Backtest
	if b.Concurrency == 0 {
		b.Concurrency = 4
	}
	if b.HistogramBins == 0 {
		b.HistogramBins = 10
	}

	if c.Providers.Timeout == 0 {
		c.Providers.Timeout = 3 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Providers.Endpoints) == 0 {
		return fmt.Errorf("providers.endpoints cannot be empty")
	}
	if c.Ensemble.FallbackConfidence <= 0 || c.Ensemble.FallbackConfidence > 1 {
		return fmt.Errorf("ensemble.fallback_confidence must be in (0,1], got %v", c.Ensemble.FallbackConfidence)
	}
	if c.Lifecycle.DecayAlpha <= 0 || c.Lifecycle.DecayAlpha >= 1 {
		return fmt.Errorf("lifecycle.decay_alpha must be in (0,1), got %v", c.Lifecycle.DecayAlpha)
	}
	if c.Valuation.GrowthClampMin >= c.Valuation.GrowthClampMax {
		return fmt.Errorf("valuation growth clamp range is inverted")
	}
	return nil
}

// Default returns a config populated with defaults only, for tests and tools
// that do not read a YAML file.
func Default() *Config {
	c := &Config{Environment: "test"}
	c.Providers.Endpoints = map[string]string{"regression": "http://localhost:9000"}
	c.applyDefaults()
	return c
}
