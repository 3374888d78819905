package evaluation

import (
	"math"
	"testing"

	"NFTAppraiser/pkg/config"
)

func TestMetricsKnownValues(t *testing.T) {
	samples := []Sample{
		{Predicted: 110, Actual: 100}, // +10, 10%
		{Predicted: 90, Actual: 100},  // -10, 10%
		{Predicted: 130, Actual: 100}, // +30, 30%
	}
	got := Metrics(samples)

	if want := (10.0 + 10 + 30) / 3; math.Abs(got["mae"]-want) > 1e-9 {
		t.Fatalf("mae %v, want %v", got["mae"], want)
	}
	if want := math.Sqrt((100.0 + 100 + 900) / 3); math.Abs(got["rmse"]-want) > 1e-9 {
		t.Fatalf("rmse %v, want %v", got["rmse"], want)
	}
	if want := (10.0 + 10 + 30) / 3; math.Abs(got["mape"]-want) > 1e-9 {
		t.Fatalf("mape %v, want %v", got["mape"], want)
	}
}

func TestMetricsSkipsNonPositiveActualForMAPE(t *testing.T) {
	samples := []Sample{
		{Predicted: 110, Actual: 100},
		{Predicted: 5, Actual: 0}, // counts for mae/rmse, not mape
	}
	got := Metrics(samples)
	if math.Abs(got["mape"]-10) > 1e-9 {
		t.Fatalf("mape %v, want 10 (zero-actual sample excluded)", got["mape"])
	}
	if want := (10.0 + 5) / 2; math.Abs(got["mae"]-want) > 1e-9 {
		t.Fatalf("mae %v, want %v", got["mae"], want)
	}
}

func TestMetricsEmpty(t *testing.T) {
	got := Metrics(nil)
	for _, k := range []string{"mae", "rmse", "mape"} {
		if got[k] != 0 {
			t.Fatalf("%s = %v on empty input, want 0", k, got[k])
		}
	}
}

func TestPriceBracketLabels(t *testing.T) {
	b := PriceBrackets{Floor: 1, Avg: 2, Max: 10} // mid = 6
	cases := []struct {
		price float64
		want  string
	}{
		{0.5, "very_low"},
		{1, "low"},
		{1.9, "low"},
		{2, "medium"},
		{5.9, "medium"},
		{6, "high"},
		{9.9, "high"},
		{10, "very_high"},
		{50, "very_high"},
	}
	for _, tc := range cases {
		if got := b.label(tc.price); got != tc.want {
			t.Fatalf("label(%v) = %q, want %q", tc.price, got, tc.want)
		}
	}
}

func TestEvaluateStratification(t *testing.T) {
	e := NewEvaluator(config.BacktestConfig{HistogramBins: 5})
	brackets := PriceBrackets{Floor: 1, Avg: 2, Max: 10}
	samples := []Sample{
		{Predicted: 1.1, Actual: 1.0, Category: "art", HorizonDays: 7},
		{Predicted: 2.4, Actual: 2.0, Category: "art", HorizonDays: 30},
		{Predicted: 8.0, Actual: 10.0, Category: "pfp", HorizonDays: 30},
	}

	r := e.Evaluate(samples, brackets)
	if r.SampleCount != 3 {
		t.Fatalf("sample count %d, want 3", r.SampleCount)
	}
	if len(r.ByHorizon) != 2 {
		t.Fatalf("horizons %v, want 7d and 30d", r.ByHorizon)
	}
	if _, ok := r.ByHorizon["7d"]; !ok {
		t.Fatalf("missing 7d stratum: %v", r.ByHorizon)
	}
	if len(r.ByCategory) != 2 {
		t.Fatalf("categories %v, want art and pfp", r.ByCategory)
	}
	if math.Abs(r.ByCategory["pfp"]["mape"]-20) > 1e-9 {
		t.Fatalf("pfp mape %v, want 20", r.ByCategory["pfp"]["mape"])
	}
	// actuals 1.0 -> low, 2.0 -> medium, 10.0 -> very_high
	for _, bucket := range []string{"low", "medium", "very_high"} {
		if _, ok := r.ByPriceBracket[bucket]; !ok {
			t.Fatalf("missing price bracket %q: %v", bucket, r.ByPriceBracket)
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	e := NewEvaluator(config.BacktestConfig{})
	r := e.Evaluate(nil, PriceBrackets{})
	if r.SampleCount != 0 {
		t.Fatalf("sample count %d, want 0", r.SampleCount)
	}
	if r.Histogram != nil {
		t.Fatalf("histogram %v on empty input, want nil", r.Histogram)
	}
}

func TestHistogramBuckets(t *testing.T) {
	e := NewEvaluator(config.BacktestConfig{HistogramBins: 4})
	// relative errors: -0.2, -0.1, 0.1, 0.2
	samples := []Sample{
		{Predicted: 80, Actual: 100},
		{Predicted: 90, Actual: 100},
		{Predicted: 110, Actual: 100},
		{Predicted: 120, Actual: 100},
	}

	bins := e.histogram(samples, 4)
	if len(bins) != 4 {
		t.Fatalf("bins %d, want 4", len(bins))
	}
	total := 0
	for _, b := range bins {
		total += b.Count
		if b.Upper <= b.Lower {
			t.Fatalf("bin [%v, %v] is not increasing", b.Lower, b.Upper)
		}
	}
	if total != 4 {
		t.Fatalf("histogram holds %d samples, want 4", total)
	}
	if math.Abs(bins[0].Lower-(-0.2)) > 1e-9 || math.Abs(bins[3].Upper-0.2) > 1e-9 {
		t.Fatalf("range [%v, %v], want [-0.2, 0.2]", bins[0].Lower, bins[3].Upper)
	}
	// extremes land in the first and last bins
	if bins[0].Count == 0 || bins[3].Count == 0 {
		t.Fatalf("edge bins empty: %+v", bins)
	}
}

func TestEvaluateBinsOverridesConfiguredCount(t *testing.T) {
	e := NewEvaluator(config.BacktestConfig{HistogramBins: 10})
	samples := []Sample{
		{Predicted: 80, Actual: 100},
		{Predicted: 90, Actual: 100},
		{Predicted: 110, Actual: 100},
		{Predicted: 120, Actual: 100},
	}

	r := e.EvaluateBins(samples, PriceBrackets{}, 5)
	if len(r.Histogram) != 5 {
		t.Fatalf("bins %d, want per-call 5", len(r.Histogram))
	}
	// non-positive falls back to the configured count
	r = e.EvaluateBins(samples, PriceBrackets{}, 0)
	if len(r.Histogram) != 10 {
		t.Fatalf("bins %d, want configured 10", len(r.Histogram))
	}
}

func TestHistogramIdenticalErrors(t *testing.T) {
	e := NewEvaluator(config.BacktestConfig{HistogramBins: 3})
	samples := []Sample{
		{Predicted: 110, Actual: 100},
		{Predicted: 110, Actual: 100},
	}
	bins := e.histogram(samples, 3)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	if total != 2 {
		t.Fatalf("degenerate histogram holds %d, want 2", total)
	}
}
