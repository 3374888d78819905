package performance

import (
	"math"
	"sync"
	"testing"

	"NFTAppraiser/internal/domain/models"
)

func newTestTracker() *Tracker {
	return NewTracker(0.3, 0.1, 100)
}

func TestRecordFirstObservationInitializes(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 110, 100)

	rec, ok := tr.Get("col", models.KindRegression)
	if !ok {
		t.Fatalf("expected record")
	}
	if math.Abs(rec.RecentMAPE-10) > 1e-9 {
		t.Fatalf("expected MAPE 10, got %v", rec.RecentMAPE)
	}
	if math.Abs(rec.RecentRMSE-10) > 1e-9 {
		t.Fatalf("expected RMSE 10, got %v", rec.RecentRMSE)
	}
	if rec.PredictionCount != 1 {
		t.Fatalf("expected count 1, got %d", rec.PredictionCount)
	}
}

func TestRecordDecaysExponentially(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 110, 100) // MAPE 10
	tr.Record("col", models.KindRegression, 120, 100) // APE 20

	rec, _ := tr.Get("col", models.KindRegression)
	// 0.7*10 + 0.3*20
	if math.Abs(rec.RecentMAPE-13) > 1e-9 {
		t.Fatalf("expected MAPE 13, got %v", rec.RecentMAPE)
	}
	// RMSE decays in MSE space: sqrt(0.7*100 + 0.3*400)
	want := math.Sqrt(0.7*100 + 0.3*400)
	if math.Abs(rec.RecentRMSE-want) > 1e-9 {
		t.Fatalf("expected RMSE %v, got %v", want, rec.RecentRMSE)
	}
}

func TestRecordIgnoresNonPositiveActual(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 5, 0)
	if _, ok := tr.Get("col", models.KindRegression); ok {
		t.Fatalf("expected no record for zero actual")
	}
}

func TestWeightsSumToOne(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 101, 100)
	tr.Record("col", models.KindComparable, 150, 100)

	w := tr.Weights("col")
	if len(w) != len(models.KnownKinds()) {
		t.Fatalf("expected a weight per known kind, got %d", len(w))
	}
	sum := 0.0
	for _, v := range w {
		if v < 0 {
			t.Fatalf("negative weight %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("weights sum %v, want 1", sum)
	}
}

func TestWeightsFavorLowerError(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 101, 100) // MAPE 1
	tr.Record("col", models.KindComparable, 150, 100) // MAPE 50

	w := tr.Weights("col")
	if w[models.KindRegression] <= w[models.KindComparable] {
		t.Fatalf("expected regression > comparable, got %v vs %v",
			w[models.KindRegression], w[models.KindComparable])
	}
	// unknown kinds sit at the default (minimum trust) MAPE
	if w[models.KindComparable] <= w[models.KindTimeSeries] {
		t.Fatalf("expected comparable > unknown timeseries, got %v vs %v",
			w[models.KindComparable], w[models.KindTimeSeries])
	}
}

func TestWeightsImproveWithAccuracy(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 150, 100)
	before := tr.Weights("col")[models.KindRegression]

	// a streak of near-perfect predictions should pull the weight up
	for i := 0; i < 10; i++ {
		tr.Record("col", models.KindRegression, 100.5, 100)
	}
	after := tr.Weights("col")[models.KindRegression]
	if after <= before {
		t.Fatalf("expected weight to improve, got %v -> %v", before, after)
	}
}

func TestCollectionsAreIsolated(t *testing.T) {
	tr := newTestTracker()
	tr.Record("a", models.KindRegression, 200, 100)
	if _, ok := tr.Get("b", models.KindRegression); ok {
		t.Fatalf("expected no record for other collection")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	tr := newTestTracker()
	tr.Record("col", models.KindRegression, 110, 100)
	tr.Record("col", models.KindRarity, 90, 100)

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap))
	}

	fresh := newTestTracker()
	fresh.Restore(snap)
	rec, ok := fresh.Get("col", models.KindRegression)
	if !ok || math.Abs(rec.RecentMAPE-10) > 1e-9 {
		t.Fatalf("restored record mismatch: %+v ok=%v", rec, ok)
	}
}

func TestConcurrentRecord(t *testing.T) {
	tr := newTestTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Record("col", models.KindRegression, 105, 100)
				tr.Record("col", models.KindComparable, 95, 100)
				_ = tr.Weights("col")
			}
		}()
	}
	wg.Wait()

	rec, ok := tr.Get("col", models.KindRegression)
	if !ok {
		t.Fatalf("expected record")
	}
	if rec.PredictionCount != 800 {
		t.Fatalf("lost updates: count %d, want 800", rec.PredictionCount)
	}
	// identical observations keep the EMA pinned at the observed error
	if math.Abs(rec.RecentMAPE-5) > 1e-9 {
		t.Fatalf("expected MAPE 5, got %v", rec.RecentMAPE)
	}
}
