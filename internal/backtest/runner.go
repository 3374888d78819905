package backtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"NFTAppraiser/internal/domain/models"
	domrepo "NFTAppraiser/internal/domain/repository"
	"NFTAppraiser/internal/evaluation"
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/logger"
)

// Predictor produces one ensemble prediction for an asset against a fixed
// point-in-time view of its collection.
type Predictor interface {
	Combine(ctx context.Context, asset *models.Asset, col *models.Collection, category string) (*models.EnsemblePrediction, error)
}

// Scenario names for stress testing.
const (
	ScenarioCrash          = "crash"
	ScenarioRally          = "rally"
	ScenarioVolSpike       = "vol_spike"
	ScenarioLiquidityDrain = "liquidity_drain"
)

// Runner replays historical sales through the predictor and scores the
// results. All entry points are read-only with respect to live state.
type Runner struct {
	predictor Predictor
	store     domrepo.CollectionStore
	evaluator *evaluation.Evaluator
	cfg       config.BacktestConfig
	log       *logger.Logger
}

func NewRunner(predictor Predictor, store domrepo.CollectionStore, evaluator *evaluation.Evaluator, cfg config.BacktestConfig, log *logger.Logger) *Runner {
	return &Runner{
		predictor: predictor,
		store:     store,
		evaluator: evaluator,
		cfg:       cfg,
		log:       log,
	}
}

// RunHistoricalSimulation replays every sale in the period. Each prediction
// sees only the history strictly before its sale, so no window leaks future
// data into the models' inputs.
func (r *Runner) RunHistoricalSimulation(ctx context.Context, collectionID, modelVersion string, period models.TestPeriod) (*models.TestResult, error) {
	col, sales, err := r.load(ctx, collectionID, period)
	if err != nil {
		return nil, err
	}
	return r.simulate(ctx, col, sales, modelVersion, period)
}

// RunWalkForwardTest slides a fixed window across [from, to] in fixed steps
// and simulates each window independently. Windows run concurrently under the
// configured bound; results come back ordered by window start regardless of
// completion order.
func (r *Runner) RunWalkForwardTest(ctx context.Context, collectionID, modelVersion string, from, to time.Time, window, step time.Duration) ([]*models.TestResult, error) {
	if step <= 0 || window <= 0 {
		return nil, fmt.Errorf("walk-forward window and step must be positive")
	}

	var periods []models.TestPeriod
	for start := from; !start.Add(window).After(to); start = start.Add(step) {
		periods = append(periods, models.TestPeriod{From: start, To: start.Add(window)})
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("no full window fits between %s and %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	results := make([]*models.TestResult, len(periods))
	errs := make([]error, len(periods))
	sem := make(chan struct{}, r.concurrency())

	var wg sync.WaitGroup
	for i, p := range periods {
		wg.Add(1)
		go func(i int, p models.TestPeriod) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = r.RunHistoricalSimulation(ctx, collectionID, modelVersion, p)
		}(i, p)
	}
	wg.Wait()

	out := make([]*models.TestResult, 0, len(periods))
	for i, res := range results {
		if errs[i] != nil {
			r.log.Warn("walk-forward window failed", logger.Error(errs[i]),
				logger.String("collection_id", collectionID),
				logger.Int("window", i))
			continue
		}
		out = append(out, res)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("every walk-forward window failed")
	}
	return out, nil
}

// RunStressTest replays the period under synthetic market scenarios, one
// result per scenario, run concurrently.
func (r *Runner) RunStressTest(ctx context.Context, collectionID, modelVersion string, period models.TestPeriod, scenarios []string) (map[string]*models.TestResult, error) {
	col, sales, err := r.load(ctx, collectionID, period)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		scenario string
		result   *models.TestResult
		err      error
	}
	ch := make(chan outcome, len(scenarios))
	sem := make(chan struct{}, r.concurrency())

	var wg sync.WaitGroup
	for _, sc := range scenarios {
		wg.Add(1)
		go func(sc string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			stressedCol, stressedSales := applyScenario(col, sales, sc)
			res, err := r.simulate(ctx, stressedCol, stressedSales, modelVersion, period)
			if err == nil {
				res.MarketConditions = sc
			}
			ch <- outcome{scenario: sc, result: res, err: err}
		}(sc)
	}
	wg.Wait()
	close(ch)

	out := make(map[string]*models.TestResult, len(scenarios))
	for o := range ch {
		if o.err != nil {
			return nil, fmt.Errorf("scenario %s: %w", o.scenario, o.err)
		}
		out[o.scenario] = o.result
	}
	return out, nil
}

// CompareModelVersions runs the same period once per version. Versions run
// sequentially so their tracker-driven weights cannot interleave.
func (r *Runner) CompareModelVersions(ctx context.Context, collectionID string, versions []string, period models.TestPeriod) ([]*models.TestResult, error) {
	out := make([]*models.TestResult, 0, len(versions))
	for _, v := range versions {
		res, err := r.RunHistoricalSimulation(ctx, collectionID, v, period)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", v, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *Runner) load(ctx context.Context, collectionID string, period models.TestPeriod) (*models.Collection, []models.SaleRecord, error) {
	col, err := r.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load collection %s: %w", collectionID, err)
	}
	sales, err := r.store.GetSales(ctx, collectionID, period.From, period.To)
	if err != nil {
		return nil, nil, fmt.Errorf("load sales %s: %w", collectionID, err)
	}
	return col, sales, nil
}

func (r *Runner) simulate(ctx context.Context, col *models.Collection, sales []models.SaleRecord, modelVersion string, period models.TestPeriod) (*models.TestResult, error) {
	samples := make([]evaluation.Sample, 0, len(sales))
	for _, sale := range sales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asset, err := r.store.GetAsset(ctx, col.ID, sale.TokenID)
		if err != nil {
			r.log.Debug("skipping sale without asset",
				logger.String("collection_id", col.ID),
				logger.String("token_id", sale.TokenID))
			continue
		}

		pred, err := r.predictor.Combine(ctx, asset, historyBefore(col, sale.Timestamp), asset.Category)
		if err != nil {
			r.log.Debug("skipping unpredictable sale", logger.Error(err),
				logger.String("token_id", sale.TokenID))
			continue
		}
		samples = append(samples, evaluation.Sample{
			Predicted: pred.PredictedPrice,
			Actual:    sale.Price,
			Category:  asset.Category,
		})
	}

	return &models.TestResult{
		ID:               uuid.NewString(),
		ModelVersion:     modelVersion,
		Period:           period,
		Metrics:          evaluation.Metrics(samples),
		SampleCount:      len(samples),
		MarketConditions: classifyMarket(sales),
	}, nil
}

// historyBefore returns a view of the collection whose sale history stops
// strictly before t.
func historyBefore(col *models.Collection, t time.Time) *models.Collection {
	i := len(col.Sales)
	for i > 0 && !col.Sales[i-1].Timestamp.Before(t) {
		i--
	}
	view := *col
	view.Sales = col.Sales[:i]
	return &view
}

// classifyMarket compares the first and last third of the period's sales.
func classifyMarket(sales []models.SaleRecord) string {
	if len(sales) < 6 {
		return "sideways"
	}
	third := len(sales) / 3
	early := avgPrice(sales[:third])
	late := avgPrice(sales[len(sales)-third:])
	if early <= 0 {
		return "sideways"
	}
	switch change := (late - early) / early; {
	case change > 0.10:
		return "bull"
	case change < -0.10:
		return "bear"
	default:
		return "sideways"
	}
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

// applyScenario returns a transformed copy of the collection and sales.
func applyScenario(col *models.Collection, sales []models.SaleRecord, scenario string) (*models.Collection, []models.SaleRecord) {
	scale := func(f func(i int, n int) float64) (*models.Collection, []models.SaleRecord) {
		view := *col
		view.Sales = make([]models.SaleRecord, len(col.Sales))
		for i, s := range col.Sales {
			s.Price *= f(i, len(col.Sales))
			view.Sales[i] = s
		}
		out := make([]models.SaleRecord, len(sales))
		for i, s := range sales {
			s.Price *= f(i, len(sales))
			out[i] = s
		}
		return &view, out
	}

	switch scenario {
	case ScenarioCrash:
		// prices decay linearly to half over the sample
		return scale(func(i, n int) float64 { return 1 - 0.5*float64(i)/float64(max(1, n-1)) })
	case ScenarioRally:
		return scale(func(i, n int) float64 { return 1 + 0.8*float64(i)/float64(max(1, n-1)) })
	case ScenarioVolSpike:
		return scale(func(i, n int) float64 {
			if i%2 == 0 {
				return 1.3
			}
			return 0.7
		})
	case ScenarioLiquidityDrain:
		view := *col
		view.Sales = thin(col.Sales, 3)
		return &view, thin(sales, 3)
	default:
		return col, sales
	}
}

// thin keeps every k-th record.
func thin(sales []models.SaleRecord, k int) []models.SaleRecord {
	out := make([]models.SaleRecord, 0, len(sales)/k+1)
	for i, s := range sales {
		if i%k == 0 {
			out = append(out, s)
		}
	}
	return out
}

func (r *Runner) concurrency() int {
	if r.cfg.Concurrency > 0 {
		return r.cfg.Concurrency
	}
	return 4
}
