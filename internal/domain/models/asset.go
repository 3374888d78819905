package models

import "time"

// Trait is a single attribute pair on an asset.
type Trait struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Asset identifies a single token within a collection. Immutable once fetched
// for a prediction pass.
type Asset struct {
	CollectionID  string
	TokenID       string
	Traits        []Trait
	RarityScore   float64
	Category      string
	LastSalePrice float64   // 0 when never sold
	LastSaleAt    time.Time // zero when never sold
}

// Valid reports whether the asset reference is well-formed.
func (a *Asset) Valid() bool {
	return a != nil && a.CollectionID != "" && a.TokenID != ""
}

// SaleRecord is one completed sale. Append-only source of truth for all
// historical statistics.
type SaleRecord struct {
	CollectionID string
	TokenID      string
	Price        float64
	Timestamp    time.Time
	Buyer        string
	Seller       string
}

// Collection owns assets and a chronologically ordered sale history.
// It mutates only through ingestion of new sales.
type Collection struct {
	ID         string
	Name       string
	FloorPrice float64
	AvgRarity  float64
	Volatility float64
	Trending   bool
	Sales      []SaleRecord // ascending by Timestamp
}

// Valid reports whether the collection reference is well-formed.
func (c *Collection) Valid() bool {
	return c != nil && c.ID != ""
}

// SalesSince returns sales at or after the cutoff, preserving order.
func (c *Collection) SalesSince(cutoff time.Time) []SaleRecord {
	if c == nil {
		return nil
	}
	// sales are ascending, scan from the back
	i := len(c.Sales)
	for i > 0 && !c.Sales[i-1].Timestamp.Before(cutoff) {
		i--
	}
	return c.Sales[i:]
}

// AvgPriceSince returns the mean sale price since cutoff and the sale count.
func (c *Collection) AvgPriceSince(cutoff time.Time) (float64, int) {
	recent := c.SalesSince(cutoff)
	if len(recent) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, s := range recent {
		sum += s.Price
	}
	return sum / float64(len(recent)), len(recent)
}

// FeatureRecord is the flat numeric/categorical map produced by the
// preprocessing pipeline and handed to model providers.
type FeatureRecord struct {
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
}
