package evaluation

import (
	"fmt"
	"math"

	"NFTAppraiser/pkg/config"
)

// Sample is one prediction/outcome pair with the dimensions used for
// stratification.
type Sample struct {
	Predicted   float64 `json:"predicted"`
	Actual      float64 `json:"actual"`
	Category    string  `json:"category,omitempty"`
	HorizonDays int     `json:"horizon_days,omitempty"`
}

// Bin is one bucket of the relative-error histogram.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Report is the full accuracy breakdown for one sample set.
type Report struct {
	Overall        map[string]float64            `json:"overall"`
	ByHorizon      map[string]map[string]float64 `json:"by_horizon,omitempty"`
	ByCategory     map[string]map[string]float64 `json:"by_category,omitempty"`
	ByPriceBracket map[string]map[string]float64 `json:"by_price_bracket,omitempty"`
	Histogram      []Bin                         `json:"error_histogram"`
	SampleCount    int                           `json:"sample_count"`
}

// PriceBrackets derives the bracket boundaries from collection statistics.
// Zero-valued stats collapse brackets rather than erroring.
type PriceBrackets struct {
	Floor float64
	Avg   float64
	Max   float64
}

func (b PriceBrackets) label(price float64) string {
	mid := (b.Avg + b.Max) / 2
	switch {
	case price < b.Floor:
		return "very_low"
	case price < b.Avg:
		return "low"
	case price < mid:
		return "medium"
	case price < b.Max:
		return "high"
	default:
		return "very_high"
	}
}

// Evaluator computes stratified accuracy metrics over outcome samples.
type Evaluator struct {
	bins int
}

func NewEvaluator(cfg config.BacktestConfig) *Evaluator {
	bins := cfg.HistogramBins
	if bins <= 0 {
		bins = 10
	}
	return &Evaluator{bins: bins}
}

// Evaluate produces the overall metrics plus per-horizon, per-category and
// per-price-bracket breakdowns, and the relative-error histogram with the
// configured bin count.
func (e *Evaluator) Evaluate(samples []Sample, brackets PriceBrackets) *Report {
	return e.EvaluateBins(samples, brackets, e.bins)
}

// EvaluateBins is Evaluate with a per-request histogram bin count.
// A non-positive count falls back to the configured default.
func (e *Evaluator) EvaluateBins(samples []Sample, brackets PriceBrackets, bins int) *Report {
	if bins <= 0 {
		bins = e.bins
	}
	r := &Report{
		Overall:     Metrics(samples),
		SampleCount: len(samples),
	}
	if len(samples) == 0 {
		return r
	}

	byHorizon := map[string][]Sample{}
	byCategory := map[string][]Sample{}
	byBracket := map[string][]Sample{}
	for _, s := range samples {
		if s.HorizonDays > 0 {
			k := fmt.Sprintf("%dd", s.HorizonDays)
			byHorizon[k] = append(byHorizon[k], s)
		}
		if s.Category != "" {
			byCategory[s.Category] = append(byCategory[s.Category], s)
		}
		byBracket[brackets.label(s.Actual)] = append(byBracket[brackets.label(s.Actual)], s)
	}
	r.ByHorizon = strataMetrics(byHorizon)
	r.ByCategory = strataMetrics(byCategory)
	r.ByPriceBracket = strataMetrics(byBracket)
	r.Histogram = e.histogram(samples, bins)
	return r
}

// Metrics computes mae, rmse and mape over the samples. Samples with a
// non-positive actual are skipped for mape only.
func Metrics(samples []Sample) map[string]float64 {
	out := map[string]float64{"mae": 0, "rmse": 0, "mape": 0}
	if len(samples) == 0 {
		return out
	}

	var absSum, sqSum, pctSum float64
	pctN := 0
	for _, s := range samples {
		d := s.Predicted - s.Actual
		absSum += math.Abs(d)
		sqSum += d * d
		if s.Actual > 0 {
			pctSum += math.Abs(d) / s.Actual * 100
			pctN++
		}
	}
	n := float64(len(samples))
	out["mae"] = absSum / n
	out["rmse"] = math.Sqrt(sqSum / n)
	if pctN > 0 {
		out["mape"] = pctSum / float64(pctN)
	}
	return out
}

func strataMetrics(strata map[string][]Sample) map[string]map[string]float64 {
	if len(strata) == 0 {
		return nil
	}
	out := make(map[string]map[string]float64, len(strata))
	for k, ss := range strata {
		out[k] = Metrics(ss)
	}
	return out
}

// histogram buckets signed relative errors over their observed range.
func (e *Evaluator) histogram(samples []Sample, bins int) []Bin {
	errs := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Actual > 0 {
			errs = append(errs, (s.Predicted-s.Actual)/s.Actual)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	lo, hi := errs[0], errs[0]
	for _, v := range errs {
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

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	for _, v := range errs {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
