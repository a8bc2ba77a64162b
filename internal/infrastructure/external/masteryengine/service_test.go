package masteryengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeEngine struct {
	updateErr error
	reportErr error
	report    *ConceptMasteryDTO
	updates   int
	reads     int
}

func (f *fakeEngine) UpdateMastery(ctx context.Context, studentID, conceptID string, correct bool, engagement float64) error {
	f.updates++
	return f.updateErr
}

func (f *fakeEngine) GetConceptMastery(ctx context.Context, studentID, conceptID string) (*ConceptMasteryDTO, error) {
	f.reads++
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return f.report, nil
}

type fakeCache struct {
	records map[string]*mastery.Record
	getErr  error
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{records: make(map[string]*mastery.Record)}
}

func cacheKey(studentID mastery.StudentID, conceptID string) string {
	return studentID.String() + "/" + conceptID
}

func (f *fakeCache) Get(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[cacheKey(studentID, conceptID)]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeCache) Set(ctx context.Context, rec *mastery.Record) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.records[cacheKey(rec.StudentID, rec.ConceptID)] = rec
	return nil
}

type fakeRecordRepo struct {
	records map[string]*mastery.Record
	getErr  error
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[string]*mastery.Record)}
}

func (f *fakeRecordRepo) Upsert(ctx context.Context, rec *mastery.Record) error {
	f.records[cacheKey(rec.StudentID, rec.ConceptID)] = rec
	return nil
}

func (f *fakeRecordRepo) Get(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[cacheKey(studentID, conceptID)]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeRecordRepo) ListByStudents(ctx context.Context, studentIDs []mastery.StudentID) ([]*mastery.Record, error) {
	var out []*mastery.Record
	for _, rec := range f.records {
		for _, id := range studentIDs {
			if rec.StudentID == id {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

type fakeSnapshotRepo struct {
	saved []*mastery.Snapshot
}

func (f *fakeSnapshotRepo) Save(ctx context.Context, snapshot *mastery.Snapshot) error {
	f.saved = append(f.saved, snapshot)
	return nil
}

func (f *fakeSnapshotRepo) ListWindow(ctx context.Context, studentID mastery.StudentID, levelID string, from, to time.Time) ([]*mastery.Snapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotRepo) Latest(ctx context.Context, studentID mastery.StudentID, levelID string) (*mastery.Snapshot, error) {
	return nil, shared.ErrSnapshotNotFound
}

func newTestService(engine *fakeEngine) (*Service, *fakeCache, *fakeRecordRepo, *fakeSnapshotRepo) {
	cache := newFakeCache()
	records := newFakeRecordRepo()
	snapshots := &fakeSnapshotRepo{}
	return NewService(engine, cache, records, snapshots, nil), cache, records, snapshots
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestUpdateMasteryRefreshesStoresAndSnapshot(t *testing.T) {
	engine := &fakeEngine{report: &ConceptMasteryDTO{Concept: "Fractions", MasteryScore: 62, Probability: 0.62}}
	svc, cache, records, snapshots := newTestService(engine)

	rec, err := svc.UpdateMastery(context.Background(), "st-1", "fractions", true, 0.8)
	require.NoError(t, err)

	assert.Equal(t, mastery.StudentID("st-1"), rec.StudentID)
	assert.Equal(t, "fractions", rec.ConceptID)
	assert.InDelta(t, 62.0, rec.MasteryScore, 1e-9)
	assert.InDelta(t, 0.62, rec.Confidence, 1e-9)

	stored, err := records.Get(context.Background(), "st-1", "fractions")
	require.NoError(t, err)
	assert.InDelta(t, 62.0, stored.MasteryScore, 1e-9)

	cached, err := cache.Get(context.Background(), "st-1", "fractions")
	require.NoError(t, err)
	assert.InDelta(t, 62.0, cached.MasteryScore, 1e-9)

	require.Len(t, snapshots.saved, 1)
	snap := snapshots.saved[0]
	assert.Equal(t, mastery.LevelConcept, snap.LevelType)
	assert.Equal(t, "fractions", snap.LevelID)
	assert.InDelta(t, 62.0, snap.MasteryScore, 1e-9)
}

func TestUpdateMasteryEngineFailureIsPropagated(t *testing.T) {
	engine := &fakeEngine{updateErr: shared.ErrEngineUnavailable}
	svc, _, records, snapshots := newTestService(engine)

	_, err := svc.UpdateMastery(context.Background(), "st-1", "fractions", false, 1.0)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)

	assert.Empty(t, records.records)
	assert.Empty(t, snapshots.saved)
}

func TestGetConceptMasteryPrefersEngine(t *testing.T) {
	engine := &fakeEngine{report: &ConceptMasteryDTO{Concept: "Decimals", MasteryScore: 80, Probability: 0.8}}
	svc, cache, records, _ := newTestService(engine)

	rec, err := svc.GetConceptMastery(context.Background(), "st-1", "decimals")
	require.NoError(t, err)
	assert.InDelta(t, 80.0, rec.MasteryScore, 1e-9)

	// Fresh estimates land in both local stores
	assert.Len(t, records.records, 1)
	assert.Len(t, cache.records, 1)
}

func TestGetConceptMasteryFallsBackToCache(t *testing.T) {
	engine := &fakeEngine{reportErr: shared.ErrEngineUnavailable}
	svc, cache, _, _ := newTestService(engine)

	want, err := mastery.NewRecord("st-1", "fractions", 55, 0.55, time.Now())
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), want))

	rec, err := svc.GetConceptMastery(context.Background(), "st-1", "fractions")
	require.NoError(t, err)
	assert.InDelta(t, 55.0, rec.MasteryScore, 1e-9)
}

func TestGetConceptMasteryFallsBackToPostgres(t *testing.T) {
	engine := &fakeEngine{reportErr: shared.ErrEngineTimeout}
	svc, cache, records, _ := newTestService(engine)

	want, err := mastery.NewRecord("st-1", "fractions", 48, 0.48, time.Now())
	require.NoError(t, err)
	require.NoError(t, records.Upsert(context.Background(), want))

	rec, err := svc.GetConceptMastery(context.Background(), "st-1", "fractions")
	require.NoError(t, err)
	assert.InDelta(t, 48.0, rec.MasteryScore, 1e-9)

	// The store hit re-warms the cache
	cached, err := cache.Get(context.Background(), "st-1", "fractions")
	require.NoError(t, err)
	assert.InDelta(t, 48.0, cached.MasteryScore, 1e-9)
}

func TestGetConceptMasteryNothingCachedSurfacesEngineError(t *testing.T) {
	engine := &fakeEngine{reportErr: shared.ErrEngineUnavailable}
	svc, _, _, _ := newTestService(engine)

	_, err := svc.GetConceptMastery(context.Background(), "st-1", "fractions")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestGetConceptMasteryMalformedReportIsRejected(t *testing.T) {
	engine := &fakeEngine{report: &ConceptMasteryDTO{Concept: "Fractions", MasteryScore: 62, Probability: 1.5}}
	svc, _, records, _ := newTestService(engine)

	_, err := svc.GetConceptMastery(context.Background(), "st-1", "fractions")
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
	assert.Empty(t, records.records)
}
