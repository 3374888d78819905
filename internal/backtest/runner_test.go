package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/internal/evaluation"
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/logger"
)

type memStore struct {
	col    *models.Collection
	assets map[string]*models.Asset
}

func (s *memStore) GetCollection(_ context.Context, id string) (*models.Collection, error) {
	if s.col == nil || s.col.ID != id {
		return nil, errors.New("collection not found")
	}
	return s.col, nil
}

func (s *memStore) GetAsset(_ context.Context, _, tokenID string) (*models.Asset, error) {
	a, ok := s.assets[tokenID]
	if !ok {
		return nil, errors.New("asset not found")
	}
	return a, nil
}

func (s *memStore) GetSales(_ context.Context, _ string, from, to time.Time) ([]models.SaleRecord, error) {
	var out []models.SaleRecord
	for _, sale := range s.col.Sales {
		if !sale.Timestamp.Before(from) && sale.Timestamp.Before(to) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// averagePredictor guesses the mean of the visible history and records how
// much history each call was allowed to see.
type averagePredictor struct {
	mu        sync.Mutex
	histories []int
}

func (p *averagePredictor) Combine(_ context.Context, _ *models.Asset, col *models.Collection, _ string) (*models.EnsemblePrediction, error) {
	p.mu.Lock()
	p.histories = append(p.histories, len(col.Sales))
	p.mu.Unlock()

	price := 1.0
	if len(col.Sales) > 0 {
		sum := 0.0
		for _, s := range col.Sales {
			sum += s.Price
		}
		price = sum / float64(len(col.Sales))
	}
	return &models.EnsemblePrediction{
		ModelPrediction: models.ModelPrediction{
			PredictedPrice:  price,
			Interval:        models.ConfidenceInterval{Lower: price * 0.8, Upper: price * 1.2},
			ConfidenceScore: 0.8,
			Kind:            "ensemble",
		},
	}, nil
}

type failingPredictor struct{}

func (failingPredictor) Combine(context.Context, *models.Asset, *models.Collection, string) (*models.EnsemblePrediction, error) {
	return nil, errors.New("all providers down")
}

func testRunner(t *testing.T, store *memStore, p Predictor) *Runner {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	cfg := config.Default().Backtest
	return NewRunner(p, store, evaluation.NewEvaluator(cfg), cfg, l)
}

// fixture builds a collection with n daily sales starting at base time,
// prices produced by the given function of the sale index.
func fixture(n int, price func(i int) float64) (*memStore, time.Time) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	col := &models.Collection{ID: "col", FloorPrice: 0.5}
	assets := make(map[string]*models.Asset, n)
	for i := 0; i < n; i++ {
		token := fmt.Sprintf("t%d", i)
		col.Sales = append(col.Sales, models.SaleRecord{
			CollectionID: "col",
			TokenID:      token,
			Price:        price(i),
			Timestamp:    base.Add(time.Duration(i) * 24 * time.Hour),
		})
		assets[token] = &models.Asset{CollectionID: "col", TokenID: token, Category: "art"}
	}
	return &memStore{col: col, assets: assets}, base
}

func TestHistoricalSimulation(t *testing.T) {
	store, base := fixture(10, func(i int) float64 { return 1.0 })
	pred := &averagePredictor{}
	r := testRunner(t, store, pred)

	period := models.TestPeriod{From: base, To: base.Add(10 * 24 * time.Hour)}
	res, err := r.RunHistoricalSimulation(context.Background(), "col", "v1", period)
	require.NoError(t, err)

	assert.Equal(t, 10, res.SampleCount)
	assert.Equal(t, "v1", res.ModelVersion)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, period, res.Period)
	// flat prices, perfect hindsight average: zero error everywhere
	assert.InDelta(t, 0, res.Metrics["mae"], 1e-9)
	assert.InDelta(t, 0, res.Metrics["mape"], 1e-9)
	assert.Equal(t, "sideways", res.MarketConditions)
}

func TestSimulationNeverSeesTheFuture(t *testing.T) {
	store, base := fixture(10, func(i int) float64 { return float64(i + 1) })
	pred := &averagePredictor{}
	r := testRunner(t, store, pred)

	period := models.TestPeriod{From: base, To: base.Add(10 * 24 * time.Hour)}
	_, err := r.RunHistoricalSimulation(context.Background(), "col", "v1", period)
	require.NoError(t, err)

	require.Len(t, pred.histories, 10)
	for i, seen := range pred.histories {
		assert.Equal(t, i, seen, "sale %d saw %d historical sales", i, seen)
	}
}

func TestWalkForwardWindows(t *testing.T) {
	store, base := fixture(90, func(i int) float64 { return 1.0 })
	pred := &averagePredictor{}
	r := testRunner(t, store, pred)

	results, err := r.RunWalkForwardTest(context.Background(), "col", "v1",
		base, base.Add(90*24*time.Hour), 30*24*time.Hour, 15*24*time.Hour)
	require.NoError(t, err)

	// starts at day 0, 15, 30, 45, 60; day 75 would overrun
	require.Len(t, results, 5)
	for i, res := range results {
		wantFrom := base.Add(time.Duration(i) * 15 * 24 * time.Hour)
		assert.Equal(t, wantFrom, res.Period.From, "window %d", i)
		assert.Equal(t, wantFrom.Add(30*24*time.Hour), res.Period.To, "window %d", i)
		assert.Equal(t, 30, res.SampleCount, "window %d", i)
	}
}

func TestWalkForwardRejectsBadArguments(t *testing.T) {
	store, base := fixture(10, func(i int) float64 { return 1.0 })
	r := testRunner(t, store, &averagePredictor{})

	_, err := r.RunWalkForwardTest(context.Background(), "col", "v1",
		base, base.Add(time.Hour), 0, time.Hour)
	assert.Error(t, err)

	// window longer than the whole span: no window fits
	_, err = r.RunWalkForwardTest(context.Background(), "col", "v1",
		base, base.Add(24*time.Hour), 48*time.Hour, 24*time.Hour)
	assert.Error(t, err)
}

func TestStressScenarios(t *testing.T) {
	store, base := fixture(12, func(i int) float64 { return 2.0 })
	pred := &averagePredictor{}
	r := testRunner(t, store, pred)

	period := models.TestPeriod{From: base, To: base.Add(12 * 24 * time.Hour)}
	scenarios := []string{ScenarioCrash, ScenarioRally, ScenarioVolSpike, ScenarioLiquidityDrain}
	out, err := r.RunStressTest(context.Background(), "col", "v1", period, scenarios)
	require.NoError(t, err)

	require.Len(t, out, 4)
	for _, sc := range scenarios {
		require.Contains(t, out, sc)
		assert.Equal(t, sc, out[sc].MarketConditions, "scenario %s", sc)
	}
	// the drain keeps every third sale: indices 0, 3, 6, 9
	assert.Equal(t, 4, out[ScenarioLiquidityDrain].SampleCount)
	// a rally inflates late prices past any history-mean guess
	assert.Greater(t, out[ScenarioRally].Metrics["mape"], out[ScenarioLiquidityDrain].Metrics["mape"])
}

func TestCompareModelVersions(t *testing.T) {
	store, base := fixture(10, func(i int) float64 { return 1.0 })
	r := testRunner(t, store, &averagePredictor{})

	period := models.TestPeriod{From: base, To: base.Add(10 * 24 * time.Hour)}
	results, err := r.CompareModelVersions(context.Background(), "col", []string{"v1", "v2"}, period)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "v1", results[0].ModelVersion)
	assert.Equal(t, "v2", results[1].ModelVersion)
}

func TestSimulationSkipsFailedPredictions(t *testing.T) {
	store, base := fixture(10, func(i int) float64 { return 1.0 })
	r := testRunner(t, store, failingPredictor{})

	period := models.TestPeriod{From: base, To: base.Add(10 * 24 * time.Hour)}
	res, err := r.RunHistoricalSimulation(context.Background(), "col", "v1", period)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SampleCount)
}

func TestUnknownCollection(t *testing.T) {
	store, base := fixture(10, func(i int) float64 { return 1.0 })
	r := testRunner(t, store, &averagePredictor{})

	period := models.TestPeriod{From: base, To: base.Add(24 * time.Hour)}
	_, err := r.RunHistoricalSimulation(context.Background(), "missing", "v1", period)
	assert.Error(t, err)
}

func TestHistoryBefore(t *testing.T) {
	store, base := fixture(5, func(i int) float64 { return 1.0 })
	col := store.col

	view := historyBefore(col, base.Add(2*24*time.Hour))
	require.Len(t, view.Sales, 2)
	for _, s := range view.Sales {
		assert.True(t, s.Timestamp.Before(base.Add(2*24*time.Hour)))
	}
	// the source collection is untouched
	assert.Len(t, col.Sales, 5)
}

func TestClassifyMarket(t *testing.T) {
	mk := func(prices ...float64) []models.SaleRecord {
		out := make([]models.SaleRecord, len(prices))
		for i, p := range prices {
			out[i] = models.SaleRecord{Price: p, Timestamp: time.Now().Add(time.Duration(i) * time.Hour)}
		}
		return out
	}

	assert.Equal(t, "bull", classifyMarket(mk(1, 1, 1, 2, 2, 2)))
	assert.Equal(t, "bear", classifyMarket(mk(2, 2, 2, 1, 1, 1)))
	assert.Equal(t, "sideways", classifyMarket(mk(1, 1, 1, 1.05, 1.05, 1.05)))
	assert.Equal(t, "sideways", classifyMarket(mk(1, 2)))
}
