package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/internal/services/features"
	"NFTAppraiser/pkg/config"
)

// ValuationIntelligence derives the five report views from one ensemble
// prediction plus the collection's sale history. Stateless; every method is a
// pure function of its inputs up to the current clock.
type ValuationIntelligence struct {
	cfg config.ValuationConfig
}

func NewValuationIntelligence(cfg config.ValuationConfig) *ValuationIntelligence {
	return &ValuationIntelligence{cfg: cfg}
}

// horizonDays are the fixed forecast horizons.
var horizonDays = []int{7, 30, 90}

// intervalScale widens the forecast interval per horizon.
var intervalScale = map[int]float64{7: 1.5, 30: 2, 90: 3}

// futureVolScale adjusts projected volatility per horizon.
var futureVolScale = map[int]float64{7: 0.9, 30: 1.0, 90: 1.2}

// milestone targets with coarse probabilities, emitted only on an up trend.
var milestoneTargets = []struct {
	pct  float64
	prob float64
}{
	{0.25, 0.7},
	{0.50, 0.5},
	{1.00, 0.3},
}

// FairValue restates the top-3 weighted explanation factors in prose,
// qualified by the confidence tier.
func (v *ValuationIntelligence) FairValue(pred *models.EnsemblePrediction, asset *models.Asset, col *models.Collection) *models.FairValueReport {
	conf := v.Confidence(pred, asset, col)

	top := make([]string, 0, 3)
	for _, f := range pred.Factors {
		if len(top) == 3 {
			break
		}
		top = append(top, fmt.Sprintf("%s (%s impact): %s", f.Factor, f.Impact, f.Description))
	}

	var qualifier string
	switch conf.Tier {
	case models.TierHigh:
		qualifier = "The models agree closely; this estimate is reliable."
	case models.TierMedium:
		qualifier = "The models broadly agree; treat this estimate as indicative."
	default:
		qualifier = "The models disagree; treat this estimate with caution."
	}

	summary := fmt.Sprintf("Fair value %.4f, driven by %s. %s",
		pred.PredictedPrice, strings.Join(factorNames(pred.Factors, 3), ", "), qualifier)

	return &models.FairValueReport{
		CollectionID: asset.CollectionID,
		TokenID:      asset.TokenID,
		FairValue:    pred.PredictedPrice,
		Tier:         conf.Tier,
		Summary:      summary,
		TopFactors:   top,
	}
}

// Trend forecasts the price at 7/30/90 days from the collection's quartile
// growth rate, widening the interval per horizon.
func (v *ValuationIntelligence) Trend(pred *models.EnsemblePrediction, asset *models.Asset, col *models.Collection) *models.TrendForecast {
	growth := features.Clamp(
		features.QuartileGrowthRate(col.Sales),
		v.cfg.GrowthClampMin, v.cfg.GrowthClampMax,
	)

	base := pred.PredictedPrice
	halfWidth := (pred.Interval.Upper - pred.Interval.Lower) / 2

	horizons := make([]models.HorizonForecast, 0, len(horizonDays))
	byDays := make(map[int]float64, len(horizonDays))
	for _, d := range horizonDays {
		price := base * math.Pow(1+growth, float64(d)/30)
		w := halfWidth * intervalScale[d]
		horizons = append(horizons, models.HorizonForecast{
			Days:  d,
			Price: price,
			Interval: models.ConfidenceInterval{
				Lower: math.Max(0, price-w),
				Upper: price + w,
			},
		})
		byDays[d] = price
	}

	change := 0.0
	if byDays[7] > 0 {
		change = (byDays[90] - byDays[7]) / byDays[7]
	}
	direction := models.TrendStable
	if change > v.cfg.TrendBand {
		direction = models.TrendUp
	} else if change < -v.cfg.TrendBand {
		direction = models.TrendDown
	}
	strength := math.Min(1, math.Abs(change)*5)

	forecast := &models.TrendForecast{
		CollectionID:  asset.CollectionID,
		TokenID:       asset.TokenID,
		MonthlyGrowth: growth,
		Horizons:      horizons,
		Direction:     direction,
		Strength:      strength,
	}
	if direction == models.TrendUp {
		forecast.Milestones = milestones(base, byDays)
	}
	return forecast
}

// milestones assigns each reached target the first horizon whose forecast
// crosses it. Targets no horizon reaches are not emitted.
func milestones(base float64, byDays map[int]float64) []models.Milestone {
	out := make([]models.Milestone, 0, len(milestoneTargets))
	for _, mt := range milestoneTargets {
		target := base * (1 + mt.pct)
		for _, d := range horizonDays {
			if byDays[d] >= target {
				out = append(out, models.Milestone{
					TargetPct:   mt.pct,
					TargetPrice: target,
					Timeframe:   fmt.Sprintf("%dd", d),
					Probability: mt.prob,
				})
				break
			}
		}
	}
	return out
}

// Assessment classifies the current price against fair value. The ±band
// boundary is inclusive on the breach side: exactly +15% is OVERVALUED.
func (v *ValuationIntelligence) Assessment(pred *models.EnsemblePrediction, asset *models.Asset, col *models.Collection, currentPrice float64) *models.ValuationAssessment {
	fair := pred.PredictedPrice
	if currentPrice <= 0 {
		currentPrice = asset.LastSalePrice
	}

	a := &models.ValuationAssessment{
		CollectionID: asset.CollectionID,
		TokenID:      asset.TokenID,
		CurrentPrice: currentPrice,
		FairValue:    fair,
		Status:       models.StatusFairValued,
	}
	if fair <= 0 || currentPrice <= 0 {
		return a
	}

	pctDiff := (currentPrice - fair) / fair
	a.PctDiff = pctDiff
	switch {
	case pctDiff <= -v.cfg.ValuationBand:
		a.Status = models.StatusUndervalued
	case pctDiff >= v.cfg.ValuationBand:
		a.Status = models.StatusOvervalued
	}

	conf := v.Confidence(pred, asset, col)
	confMult := 0.6
	switch conf.Tier {
	case models.TierHigh:
		confMult = 1
	case models.TierMedium:
		confMult = 0.8
	}
	a.OpportunityScore = features.Clamp(
		(50-pctDiff*100)*confMult*v.rarityBoost(asset, col)*v.liquidityFactor(col),
		0, 100,
	)
	return a
}

// Volatility computes trailing annualized volatility and per-horizon
// projections. Fewer than two sales in the window yields 0 and the
// insufficient-data flag, never an error.
func (v *ValuationIntelligence) Volatility(pred *models.EnsemblePrediction, asset *models.Asset, col *models.Collection) *models.VolatilityReport {
	cutoff := time.Now().Add(-v.cfg.VolatilityWindow)
	window := col.SalesSince(cutoff)
	returns := features.LogReturns(window)
	hist := features.AnnualizedVolatility(returns, features.BarsPerYearDaily)

	liq := v.liquidityFactor(col)
	trend := v.Trend(pred, asset, col)
	trendFactor := 1.0
	switch trend.Direction {
	case models.TrendUp:
		trendFactor = 1 + 0.1*trend.Strength
	case models.TrendDown:
		trendFactor = 1 + 0.3*trend.Strength
	}

	future := make(map[string]float64, len(horizonDays))
	for _, d := range horizonDays {
		future[fmt.Sprintf("%dd", d)] = hist * futureVolScale[d] * (2 - liq) * trendFactor
	}

	riskAdj := pred.PredictedPrice * features.Clamp(1-hist*v.cfg.RiskAversion, 0.5, 1)

	return &models.VolatilityReport{
		CollectionID:     asset.CollectionID,
		TokenID:          asset.TokenID,
		Historical:       hist,
		Future:           future,
		RiskAdjusted:     riskAdj,
		LiquidityFactor:  liq,
		InsufficientData: len(window) < 2,
	}
}

// Confidence reduces model agreement to a tier. Uncertainty is the
// coefficient of variation across the individual predictions' prices.
func (v *ValuationIntelligence) Confidence(pred *models.EnsemblePrediction, asset *models.Asset, col *models.Collection) *models.ConfidenceReport {
	uncertainty := coefficientOfVariation(pred.Individual)
	score := pred.ConfidenceScore

	tier := models.TierLow
	switch {
	case uncertainty < 0.2 && score > 0.8:
		tier = models.TierHigh
	case uncertainty < 0.4 && score > 0.6:
		tier = models.TierMedium
	}

	var suggestions []string
	if uncertainty > 0.3 {
		suggestions = append(suggestions, "model predictions diverge; consider refreshing comparable sales data")
	}
	if len(col.Sales) < 20 {
		suggestions = append(suggestions, "thin sale history for this collection; estimates will sharpen as volume grows")
	}

	return &models.ConfidenceReport{
		CollectionID: asset.CollectionID,
		TokenID:      asset.TokenID,
		Uncertainty:  uncertainty,
		Score:        score,
		Tier:         tier,
		Suggestions:  suggestions,
	}
}

// liquidityFactor scales with recent sale count, saturating at the configured
// volume. Range [0.5, 1.5].
func (v *ValuationIntelligence) liquidityFactor(col *models.Collection) float64 {
	_, n := col.AvgPriceSince(time.Now().Add(-30 * 24 * time.Hour))
	sat := float64(v.cfg.LiquiditySaturation)
	if sat <= 0 {
		sat = 20
	}
	return 0.5 + math.Min(1, float64(n)/sat)
}

// rarityBoost rewards above-average rarity, up to 1.5x.
func (v *ValuationIntelligence) rarityBoost(asset *models.Asset, col *models.Collection) float64 {
	if col.AvgRarity <= 0 {
		return 1
	}
	rel := (asset.RarityScore - col.AvgRarity) / col.AvgRarity
	return 1 + features.Clamp(rel, 0, 1)*0.5
}

func coefficientOfVariation(preds []models.ModelPrediction) float64 {
	if len(preds) < 2 {
		return 0
	}
	sum := 0.0
	for _, p := range preds {
		sum += p.PredictedPrice
	}
	mean := sum / float64(len(preds))
	if mean == 0 {
		return 0
	}
	ss := 0.0
	for _, p := range preds {
		d := p.PredictedPrice - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(preds)-1))
	return std / mean
}

func factorNames(factors []models.ExplanationFactor, n int) []string {
	out := make([]string, 0, n)
	for _, f := range factors {
		if len(out) == n {
			break
		}
		out = append(out, f.Factor)
	}
	if len(out) == 0 {
		out = append(out, "the ensemble consensus")
	}
	return out
}
