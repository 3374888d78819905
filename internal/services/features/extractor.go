package features

import (
	"fmt"
	"math"
	"time"

	"NFTAppraiser/internal/domain/models"
)

// BarsPerYearDaily annualizes statistics computed on daily log returns.
const BarsPerYearDaily = 365.0

// Build flattens an asset plus collection context into the numeric/categorical
// record the model providers consume.
func Build(asset *models.Asset, col *models.Collection) models.FeatureRecord {
	rec := models.FeatureRecord{
		Numeric:     make(map[string]float64, 8),
		Categorical: make(map[string]string, 4),
	}

	rec.Numeric["rarity_score"] = asset.RarityScore
	rec.Numeric["trait_count"] = float64(len(asset.Traits))
	rec.Numeric["floor_price"] = col.FloorPrice
	rec.Numeric["collection_volatility"] = col.Volatility
	rec.Numeric["sale_count"] = float64(len(col.Sales))
	if asset.LastSalePrice > 0 {
		rec.Numeric["last_sale_price"] = asset.LastSalePrice
		rec.Numeric["days_since_sale"] = time.Since(asset.LastSaleAt).Hours() / 24
	}
	if avg, n := col.AvgPriceSince(time.Now().Add(-30 * 24 * time.Hour)); n > 0 {
		rec.Numeric["avg_price_30d"] = avg
		rec.Numeric["sales_30d"] = float64(n)
	}

	rec.Categorical["collection_id"] = col.ID
	rec.Categorical["token_id"] = asset.TokenID
	if asset.Category != "" {
		rec.Categorical["category"] = asset.Category
	}
	if col.Trending {
		rec.Categorical["trending"] = "true"
	}
	for _, t := range asset.Traits {
		rec.Categorical[fmt.Sprintf("trait:%s", t.Type)] = t.Value
	}

	return rec
}

// LogReturns computes r_t = ln(P_t / P_{t-1}) over chronologically ordered
// sales. Returns a slice of length len(sales)-1, or nil if insufficient data.
func LogReturns(sales []models.SaleRecord) []float64 {
	if len(sales) < 2 {
		return nil
	}
	out := make([]float64, 0, len(sales)-1)
	for i := 1; i < len(sales); i++ {
		prev := sales[i-1].Price
		cur := sales[i].Price
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// AnnualizedVolatility computes the annualized standard deviation of the
// given log returns. Fewer than two returns yields 0, never NaN.
func AnnualizedVolatility(logReturns []float64, barsPerYear float64) float64 {
	n := len(logReturns)
	if n < 2 {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for _, r := range logReturns {
		sum += r
		sum2 += r * r
	}
	fn := float64(n)
	mean := sum / fn
	variance := (sum2 - fn*mean*mean) / (fn - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// QuartileGrowthRate estimates a monthly growth rate from the log-ratio of the
// newest-quartile average sale price over the oldest-quartile average,
// normalized by the elapsed span. Returns 0 with fewer than 4 sales.
func QuartileGrowthRate(sales []models.SaleRecord) float64 {
	n := len(sales)
	if n < 4 {
		return 0
	}
	q := n / 4
	if q == 0 {
		q = 1
	}
	oldAvg := avgPrice(sales[:q])
	newAvg := avgPrice(sales[n-q:])
	if oldAvg <= 0 || newAvg <= 0 {
		return 0
	}
	span := sales[n-1].Timestamp.Sub(sales[0].Timestamp)
	months := span.Hours() / (24 * 30)
	if months <= 0 {
		months = 1
	}
	// monthly compounded rate from total log growth
	return math.Expm1(math.Log(newAvg/oldAvg) / months)
}

func avgPrice(sales []models.SaleRecord) float64 {
	if len(sales) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range sales {
		sum += s.Price
	}
	return sum / float64(len(sales))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
