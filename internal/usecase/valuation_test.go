package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/pkg/config"
)

func newIntel() *ValuationIntelligence {
	return NewValuationIntelligence(config.Default().Valuation)
}

func mkPred(price float64, individual ...float64) *models.EnsemblePrediction {
	preds := make([]models.ModelPrediction, 0, len(individual))
	kinds := models.KnownKinds()
	for i, p := range individual {
		preds = append(preds, models.ModelPrediction{
			PredictedPrice: p,
			Kind:           kinds[i%len(kinds)],
		})
	}
	return &models.EnsemblePrediction{
		ModelPrediction: models.ModelPrediction{
			PredictedPrice:  price,
			Interval:        models.ConfidenceInterval{Lower: price * 0.9, Upper: price * 1.1},
			ConfidenceScore: 0.9,
			Kind:            "ensemble",
		},
		Individual: preds,
	}
}

// mkSales spreads sales evenly over the given span ending now, oldest first.
func mkSales(span time.Duration, prices ...float64) []models.SaleRecord {
	n := len(prices)
	out := make([]models.SaleRecord, 0, n)
	start := time.Now().Add(-span)
	var step time.Duration
	if n > 1 {
		step = span / time.Duration(n-1)
	}
	for i, p := range prices {
		out = append(out, models.SaleRecord{
			CollectionID: "col",
			TokenID:      "x",
			Price:        p,
			Timestamp:    start.Add(time.Duration(i) * step),
		})
	}
	return out
}

func flatCollection(n int) *models.Collection {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 1.0
	}
	return &models.Collection{
		ID:         "col",
		FloorPrice: 0.8,
		AvgRarity:  50,
		Sales:      mkSales(90*24*time.Hour, prices...),
	}
}

func TestAssessmentBoundaries(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	asset := testAsset()
	col := flatCollection(30)

	cases := []struct {
		current float64
		want    models.ValuationStatus
	}{
		{114.99, models.StatusFairValued},
		{115.00, models.StatusOvervalued},
		{115.01, models.StatusOvervalued},
		{85.01, models.StatusFairValued},
		{85.00, models.StatusUndervalued},
		{84.99, models.StatusUndervalued},
		{100.00, models.StatusFairValued},
	}
	for _, tc := range cases {
		got := v.Assessment(pred, asset, col, tc.current)
		if got.Status != tc.want {
			t.Fatalf("price %v: status %v, want %v (pctDiff %v)", tc.current, got.Status, tc.want, got.PctDiff)
		}
	}
}

func TestAssessmentFallsBackToLastSale(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	asset := testAsset()
	asset.LastSalePrice = 120
	col := flatCollection(30)

	got := v.Assessment(pred, asset, col, 0)
	if got.CurrentPrice != 120 {
		t.Fatalf("current price %v, want last sale 120", got.CurrentPrice)
	}
	if got.Status != models.StatusOvervalued {
		t.Fatalf("status %v, want OVERVALUED at +20%%", got.Status)
	}
}

func TestAssessmentOpportunityScore(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	asset := testAsset()
	col := flatCollection(30)

	under := v.Assessment(pred, asset, col, 80)
	over := v.Assessment(pred, asset, col, 130)
	if under.OpportunityScore <= over.OpportunityScore {
		t.Fatalf("undervalued score %v not above overvalued %v",
			under.OpportunityScore, over.OpportunityScore)
	}
	for _, a := range []*models.ValuationAssessment{under, over} {
		if a.OpportunityScore < 0 || a.OpportunityScore > 100 {
			t.Fatalf("opportunity score %v out of [0, 100]", a.OpportunityScore)
		}
	}
}

// A rare asset in a thin collection, end to end through the ensemble: the
// rarity model lifts fair value above the plain comparable average, and a
// listing well under that fair value scores as a strong opportunity.
func TestRareAssetUndervaluedEndToEnd(t *testing.T) {
	sales := mkSales(10*24*time.Hour, 1.0, 1.2, 1.8)
	compAvg := (1.0 + 1.2 + 1.8) / 3

	col := &models.Collection{ID: "col", FloorPrice: 1.5, AvgRarity: 50, Sales: sales}
	asset := &models.Asset{CollectionID: "col", TokenID: "1", RarityScore: 95}

	cfg := config.Default().Ensemble
	e := newIntegrator(t, cfg,
		stub(models.KindComparable, compAvg, 1.2, 1.5, 0.85),
		stub(models.KindRegression, 1.6, 1.4, 1.8, 0.85),
		stub(models.KindRarity, 2.0, 1.8, 2.2, 0.85),
	)

	pred, err := e.Combine(context.Background(), asset, col, "")
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if pred.PredictedPrice <= compAvg {
		t.Fatalf("fair value %v not above comparable average %v",
			pred.PredictedPrice, compAvg)
	}

	v := newIntel()
	current := pred.PredictedPrice * 0.8 // 20% below fair value
	got := v.Assessment(pred, asset, col, current)
	if got.Status != models.StatusUndervalued {
		t.Fatalf("status %v, want UNDERVALUED (pctDiff %v)", got.Status, got.PctDiff)
	}
	if got.OpportunityScore <= 50 {
		t.Fatalf("opportunity score %v, want > 50", got.OpportunityScore)
	}
}

func TestTrendDirectionUp(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	asset := testAsset()
	col := &models.Collection{
		ID: "col", AvgRarity: 50,
		Sales: mkSales(90*24*time.Hour, 1, 1, 1, 1, 1.3, 1.5, 1.7, 2, 2, 2, 2, 2),
	}

	got := v.Trend(pred, asset, col)
	if got.Direction != models.TrendUp {
		t.Fatalf("direction %v, want UP (growth %v)", got.Direction, got.MonthlyGrowth)
	}
	if got.Strength <= 0 || got.Strength > 1 {
		t.Fatalf("strength %v out of (0, 1]", got.Strength)
	}
	if len(got.Milestones) == 0 {
		t.Fatalf("expected milestones on an uptrend")
	}
	if len(got.Horizons) != 3 {
		t.Fatalf("expected 3 horizons, got %d", len(got.Horizons))
	}
	for i, h := range got.Horizons {
		if h.Price < h.Interval.Lower || h.Price > h.Interval.Upper {
			t.Fatalf("horizon %d price %v outside its interval", i, h.Price)
		}
		if i > 0 && h.Price <= got.Horizons[i-1].Price {
			t.Fatalf("uptrend horizons must rise: %v then %v", got.Horizons[i-1].Price, h.Price)
		}
	}
}

func TestTrendDirectionDown(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	col := &models.Collection{
		ID: "col", AvgRarity: 50,
		Sales: mkSales(90*24*time.Hour, 2, 2, 2, 2, 1.7, 1.5, 1.3, 1, 1, 1, 1, 1),
	}

	got := v.Trend(pred, testAsset(), col)
	if got.Direction != models.TrendDown {
		t.Fatalf("direction %v, want DOWN", got.Direction)
	}
	if got.Milestones != nil {
		t.Fatalf("milestones must be absent on a downtrend")
	}
}

func TestTrendDirectionStable(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	col := flatCollection(12)

	got := v.Trend(pred, testAsset(), col)
	if got.Direction != models.TrendStable {
		t.Fatalf("direction %v, want STABLE", got.Direction)
	}
	if got.Strength != 0 {
		t.Fatalf("flat history strength %v, want 0", got.Strength)
	}
}

func TestTrendGrowthClamped(t *testing.T) {
	cfg := config.Default().Valuation
	v := NewValuationIntelligence(cfg)
	pred := mkPred(100)
	// 100x over one month would wildly exceed the monthly clamp
	col := &models.Collection{
		ID:    "col",
		Sales: mkSales(30*24*time.Hour, 1, 1, 1, 100, 100, 100, 100, 100),
	}

	got := v.Trend(pred, testAsset(), col)
	if got.MonthlyGrowth > cfg.GrowthClampMax+1e-9 {
		t.Fatalf("growth %v exceeds clamp %v", got.MonthlyGrowth, cfg.GrowthClampMax)
	}
}

func TestVolatilityInsufficientData(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	col := &models.Collection{
		ID:    "col",
		Sales: mkSales(time.Hour, 1.0),
	}

	got := v.Volatility(pred, testAsset(), col)
	if !got.InsufficientData {
		t.Fatalf("expected insufficient-data flag with one sale")
	}
	if got.Historical != 0 {
		t.Fatalf("historical volatility %v, want 0", got.Historical)
	}
}

func TestVolatilityComputed(t *testing.T) {
	v := newIntel()
	pred := mkPred(100)
	col := &models.Collection{
		ID:    "col",
		Sales: mkSales(20*24*time.Hour, 1, 1.2, 0.9, 1.4, 1.0, 1.3, 0.8, 1.5),
	}

	got := v.Volatility(pred, testAsset(), col)
	if got.InsufficientData {
		t.Fatalf("unexpected insufficient-data flag")
	}
	if got.Historical <= 0 {
		t.Fatalf("historical volatility %v, want > 0", got.Historical)
	}
	for _, k := range []string{"7d", "30d", "90d"} {
		if _, ok := got.Future[k]; !ok {
			t.Fatalf("missing future horizon %q", k)
		}
	}
	if got.Future["90d"] <= got.Future["7d"] {
		t.Fatalf("future vol must widen with horizon: 7d=%v 90d=%v",
			got.Future["7d"], got.Future["90d"])
	}
	if got.RiskAdjusted > pred.PredictedPrice {
		t.Fatalf("risk-adjusted %v above fair value %v", got.RiskAdjusted, pred.PredictedPrice)
	}
	if got.RiskAdjusted < pred.PredictedPrice*0.5 {
		t.Fatalf("risk-adjusted %v below the floor of half fair value", got.RiskAdjusted)
	}
}

func TestConfidenceTiers(t *testing.T) {
	v := newIntel()
	col := flatCollection(30)

	agree := mkPred(100, 99, 100, 101)
	agree.ConfidenceScore = 0.9
	if got := v.Confidence(agree, testAsset(), col); got.Tier != models.TierHigh {
		t.Fatalf("agreeing models: tier %v, want HIGH (uncertainty %v)", got.Tier, got.Uncertainty)
	}

	mid := mkPred(100, 80, 100, 125)
	mid.ConfidenceScore = 0.7
	if got := v.Confidence(mid, testAsset(), col); got.Tier != models.TierMedium {
		t.Fatalf("mid agreement: tier %v, want MEDIUM (uncertainty %v)", got.Tier, got.Uncertainty)
	}

	diverge := mkPred(100, 30, 100, 250)
	diverge.ConfidenceScore = 0.9
	if got := v.Confidence(diverge, testAsset(), col); got.Tier != models.TierLow {
		t.Fatalf("diverging models: tier %v, want LOW (uncertainty %v)", got.Tier, got.Uncertainty)
	}
}

func TestConfidenceSuggestionsOnThinHistory(t *testing.T) {
	v := newIntel()
	pred := mkPred(100, 100, 100)
	col := flatCollection(5)

	got := v.Confidence(pred, testAsset(), col)
	if len(got.Suggestions) == 0 {
		t.Fatalf("expected a thin-history suggestion with %d sales", len(col.Sales))
	}
}

func TestCoefficientOfVariation(t *testing.T) {
	if got := coefficientOfVariation(nil); got != 0 {
		t.Fatalf("nil preds CoV %v, want 0", got)
	}
	preds := []models.ModelPrediction{
		{PredictedPrice: 90}, {PredictedPrice: 110},
	}
	// mean 100, sample std sqrt(2*100) ~ 14.142
	want := math.Sqrt(200) / 100
	if got := coefficientOfVariation(preds); math.Abs(got-want) > 1e-9 {
		t.Fatalf("CoV %v, want %v", got, want)
	}
}

func TestLiquidityAndRarityFactors(t *testing.T) {
	v := newIntel()

	empty := &models.Collection{ID: "col"}
	if got := v.liquidityFactor(empty); got != 0.5 {
		t.Fatalf("no sales liquidity %v, want 0.5", got)
	}
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 1.0
	}
	// all 40 sales inside the 30d window, well past saturation
	busy := &models.Collection{ID: "col", Sales: mkSales(20*24*time.Hour, prices...)}
	if got := v.liquidityFactor(busy); math.Abs(got-1.5) > 0.1 {
		t.Fatalf("saturated liquidity %v, want about 1.5", got)
	}

	col := &models.Collection{ID: "col", AvgRarity: 50}
	plain := &models.Asset{CollectionID: "col", TokenID: "1", RarityScore: 50}
	rare := &models.Asset{CollectionID: "col", TokenID: "2", RarityScore: 200}
	if got := v.rarityBoost(plain, col); got != 1 {
		t.Fatalf("average rarity boost %v, want 1", got)
	}
	if got := v.rarityBoost(rare, col); got != 1.5 {
		t.Fatalf("capped rarity boost %v, want 1.5", got)
	}
}
