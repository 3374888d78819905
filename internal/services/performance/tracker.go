package performance

import (
	"math"
	"sync"
	"time"

	"NFTAppraiser/internal/domain/models"
	domsvc "NFTAppraiser/internal/domain/service"
)

// Tracker maintains per-(collection, model kind) exponentially decayed error
// profiles. Each key owns its own lock, so read-modify-write on one key is
// atomic while distinct keys update in parallel with no coordination.
type Tracker struct {
	alpha       float64
	epsilon     float64
	defaultMAPE float64

	mu      sync.RWMutex // guards the map structure, not record contents
	records map[key]*lockedRecord
}

type key struct {
	collectionID string
	kind         models.ModelKind
}

type lockedRecord struct {
	mu  sync.Mutex
	rec models.ModelPerformanceRecord
}

// NewTracker creates a tracker. alpha is the decay factor for the error EMAs,
// epsilon stabilizes the inverse-MAPE weights, defaultMAPE is the minimum-trust
// error assumed for kinds with no record yet.
func NewTracker(alpha, epsilon, defaultMAPE float64) *Tracker {
	return &Tracker{
		alpha:       alpha,
		epsilon:     epsilon,
		defaultMAPE: defaultMAPE,
		records:     make(map[key]*lockedRecord),
	}
}

func (t *Tracker) locked(k key) *lockedRecord {
	t.mu.RLock()
	lr, ok := t.records[k]
	t.mu.RUnlock()
	if ok {
		return lr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if lr, ok = t.records[k]; ok {
		return lr
	}
	lr = &lockedRecord{rec: models.ModelPerformanceRecord{
		CollectionID: k.collectionID,
		Kind:         k.kind,
	}}
	t.records[k] = lr
	return lr
}

// Record folds one ground-truth observation into the key's decayed errors.
// The first observation initializes the EMAs to the observed values.
func (t *Tracker) Record(collectionID string, kind models.ModelKind, predicted, actual float64) {
	if actual <= 0 {
		return
	}
	ape := math.Abs(predicted-actual) / actual * 100
	se := (predicted - actual) * (predicted - actual)

	lr := t.locked(key{collectionID, kind})
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if lr.rec.PredictionCount == 0 {
		lr.rec.RecentMAPE = ape
		lr.rec.RecentRMSE = math.Sqrt(se)
	} else {
		lr.rec.RecentMAPE = (1-t.alpha)*lr.rec.RecentMAPE + t.alpha*ape
		prevMSE := lr.rec.RecentRMSE * lr.rec.RecentRMSE
		lr.rec.RecentRMSE = math.Sqrt((1-t.alpha)*prevMSE + t.alpha*se)
	}
	lr.rec.PredictionCount++
	lr.rec.LastUpdated = time.Now()
}

// Get returns a copy of the record for the key, if one exists.
func (t *Tracker) Get(collectionID string, kind models.ModelKind) (models.ModelPerformanceRecord, bool) {
	t.mu.RLock()
	lr, ok := t.records[key{collectionID, kind}]
	t.mu.RUnlock()
	if !ok {
		return models.ModelPerformanceRecord{}, false
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.rec.PredictionCount == 0 {
		return models.ModelPerformanceRecord{}, false
	}
	return lr.rec, true
}

// Weights computes inverse-MAPE weights over every known model kind for the
// collection. Kinds without a record get the default (minimum-trust) MAPE.
// The returned weights are non-negative and sum to 1.
func (t *Tracker) Weights(collectionID string) map[models.ModelKind]float64 {
	kinds := models.KnownKinds()
	raw := make(map[models.ModelKind]float64, len(kinds))
	total := 0.0
	for _, k := range kinds {
		mape := t.defaultMAPE
		if rec, ok := t.Get(collectionID, k); ok {
			mape = rec.RecentMAPE
		}
		w := 1 / (mape + t.epsilon)
		raw[k] = w
		total += w
	}
	for k := range raw {
		raw[k] /= total
	}
	return raw
}

// Snapshot copies every record for persistence.
func (t *Tracker) Snapshot() []models.ModelPerformanceRecord {
	t.mu.RLock()
	lrs := make([]*lockedRecord, 0, len(t.records))
	for _, lr := range t.records {
		lrs = append(lrs, lr)
	}
	t.mu.RUnlock()

	out := make([]models.ModelPerformanceRecord, 0, len(lrs))
	for _, lr := range lrs {
		lr.mu.Lock()
		if lr.rec.PredictionCount > 0 {
			out = append(out, lr.rec)
		}
		lr.mu.Unlock()
	}
	return out
}

// Restore loads persisted records, replacing any in-memory state for the same
// keys. Used on boot to warm the tracker from the snapshot store.
func (t *Tracker) Restore(records []models.ModelPerformanceRecord) {
	for _, rec := range records {
		lr := t.locked(key{rec.CollectionID, rec.Kind})
		lr.mu.Lock()
		lr.rec = rec
		lr.mu.Unlock()
	}
}

var _ domsvc.PerformanceTracker = (*Tracker)(nil)
