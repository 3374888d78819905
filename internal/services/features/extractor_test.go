package features

import (
	"math"
	"testing"
	"time"

	"NFTAppraiser/internal/domain/models"
)

func sales(prices ...float64) []models.SaleRecord {
	out := make([]models.SaleRecord, len(prices))
	base := time.Now().Add(-time.Duration(len(prices)) * 24 * time.Hour)
	for i, p := range prices {
		out[i] = models.SaleRecord{Price: p, Timestamp: base.Add(time.Duration(i) * 24 * time.Hour)}
	}
	return out
}

func TestLogReturns(t *testing.T) {
	got := LogReturns(sales(1, 2, 1))
	if len(got) != 2 {
		t.Fatalf("returns %d, want 2", len(got))
	}
	if math.Abs(got[0]-math.Log(2)) > 1e-9 {
		t.Fatalf("first return %v, want ln 2", got[0])
	}
	if math.Abs(got[1]+math.Log(2)) > 1e-9 {
		t.Fatalf("second return %v, want -ln 2", got[1])
	}
}

func TestLogReturnsDegenerate(t *testing.T) {
	if got := LogReturns(nil); got != nil {
		t.Fatalf("nil sales returned %v", got)
	}
	if got := LogReturns(sales(1)); got != nil {
		t.Fatalf("single sale returned %v", got)
	}
	// a non-positive price yields a zero return, not a NaN
	got := LogReturns(sales(1, 0, 2))
	for i, r := range got {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			t.Fatalf("return %d is %v", i, r)
		}
	}
	if got[0] != 0 {
		t.Fatalf("return across a zero price %v, want 0", got[0])
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	if got := AnnualizedVolatility(nil, BarsPerYearDaily); got != 0 {
		t.Fatalf("empty returns vol %v, want 0", got)
	}
	if got := AnnualizedVolatility([]float64{0.1}, BarsPerYearDaily); got != 0 {
		t.Fatalf("single return vol %v, want 0", got)
	}
	if got := AnnualizedVolatility([]float64{0.1, 0.1, 0.1}, BarsPerYearDaily); math.Abs(got) > 1e-9 {
		t.Fatalf("constant returns vol %v, want 0", got)
	}
	// sample variance of {-0.1, 0.1} is 0.02
	want := math.Sqrt(0.02 * BarsPerYearDaily)
	if got := AnnualizedVolatility([]float64{-0.1, 0.1}, BarsPerYearDaily); math.Abs(got-want) > 1e-9 {
		t.Fatalf("vol %v, want %v", got, want)
	}
}

func TestQuartileGrowthRate(t *testing.T) {
	if got := QuartileGrowthRate(sales(1, 2, 3)); got != 0 {
		t.Fatalf("growth %v with 3 sales, want 0", got)
	}

	// first quarter avg 1, last quarter avg 2 over about 7 days
	s := sales(1, 1, 1.2, 1.5, 1.7, 1.9, 2, 2)
	got := QuartileGrowthRate(s)
	if got <= 0 {
		t.Fatalf("rising prices growth %v, want > 0", got)
	}

	// flat prices grow by nothing
	if got := QuartileGrowthRate(sales(1, 1, 1, 1, 1, 1, 1, 1)); math.Abs(got) > 1e-9 {
		t.Fatalf("flat growth %v, want 0", got)
	}

	// a zero-priced quarter cannot produce a rate
	if got := QuartileGrowthRate(sales(0, 0, 1, 1, 1, 1, 1, 1)); got != 0 {
		t.Fatalf("zero old average growth %v, want 0", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 1); got != 1 {
		t.Fatalf("clamp above %v, want 1", got)
	}
	if got := Clamp(-5, 0, 1); got != 0 {
		t.Fatalf("clamp below %v, want 0", got)
	}
	if got := Clamp(0.5, 0, 1); got != 0.5 {
		t.Fatalf("clamp inside %v, want 0.5", got)
	}
}

func TestBuildFeatureRecord(t *testing.T) {
	now := time.Now()
	asset := &models.Asset{
		CollectionID:  "col",
		TokenID:       "42",
		RarityScore:   88,
		Category:      "art",
		LastSalePrice: 2.5,
		LastSaleAt:    now.Add(-48 * time.Hour),
		Traits: []models.Trait{
			{Type: "background", Value: "gold"},
			{Type: "eyes", Value: "laser"},
		},
	}
	col := &models.Collection{
		ID:         "col",
		FloorPrice: 1.2,
		Volatility: 0.4,
		Trending:   true,
		Sales:      sales(1, 2, 3),
	}

	rec := Build(asset, col)

	if rec.Numeric["rarity_score"] != 88 {
		t.Fatalf("rarity_score %v", rec.Numeric["rarity_score"])
	}
	if rec.Numeric["trait_count"] != 2 {
		t.Fatalf("trait_count %v", rec.Numeric["trait_count"])
	}
	if rec.Numeric["floor_price"] != 1.2 {
		t.Fatalf("floor_price %v", rec.Numeric["floor_price"])
	}
	if rec.Numeric["last_sale_price"] != 2.5 {
		t.Fatalf("last_sale_price %v", rec.Numeric["last_sale_price"])
	}
	if d := rec.Numeric["days_since_sale"]; d < 1.9 || d > 2.1 {
		t.Fatalf("days_since_sale %v, want about 2", d)
	}
	if rec.Numeric["sales_30d"] != 3 {
		t.Fatalf("sales_30d %v", rec.Numeric["sales_30d"])
	}
	if rec.Categorical["category"] != "art" {
		t.Fatalf("category %q", rec.Categorical["category"])
	}
	if rec.Categorical["trending"] != "true" {
		t.Fatalf("trending %q", rec.Categorical["trending"])
	}
	if rec.Categorical["trait:background"] != "gold" {
		t.Fatalf("trait:background %q", rec.Categorical["trait:background"])
	}
}

func TestBuildOmitsUnknowns(t *testing.T) {
	asset := &models.Asset{CollectionID: "col", TokenID: "1"}
	col := &models.Collection{ID: "col"}

	rec := Build(asset, col)
	if _, ok := rec.Numeric["last_sale_price"]; ok {
		t.Fatalf("last_sale_price present with no sale history")
	}
	if _, ok := rec.Numeric["avg_price_30d"]; ok {
		t.Fatalf("avg_price_30d present with no sales")
	}
	if _, ok := rec.Categorical["category"]; ok {
		t.Fatalf("category present when unset")
	}
}
