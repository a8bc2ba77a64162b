package masteryengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// EngineAPI is the slice of the client the fallback service depends on.
type EngineAPI interface {
	UpdateMastery(ctx context.Context, studentID, conceptID string, correct bool, engagement float64) error
	GetConceptMastery(ctx context.Context, studentID, conceptID string) (*ConceptMasteryDTO, error)
}

// RecordCache is the hot cache for mastery records. Satisfied by the
// Redis mastery cache; a miss is reported as shared.ErrRecordNotFound.
type RecordCache interface {
	Get(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error)
	Set(ctx context.Context, rec *mastery.Record) error
}

// Service wraps the engine client with read-through fallback to the
// locally stored mastery records. Engine reads refresh both the Redis
// cache and the Postgres record store; when the engine is unreachable
// the dashboards keep serving the last known estimates.
type Service struct {
	engine    EngineAPI
	cache     RecordCache
	records   mastery.RecordRepository
	snapshots mastery.SnapshotRepository
	logger    *slog.Logger
}

// NewService creates a mastery engine service.
func NewService(engine EngineAPI, cache RecordCache, records mastery.RecordRepository, snapshots mastery.SnapshotRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:    engine,
		cache:     cache,
		records:   records,
		snapshots: snapshots,
		logger:    logger,
	}
}

// UpdateMastery submits a graded interaction to the engine, then reads
// back the fresh estimate, refreshes the local record stores and appends
// a concept-level snapshot. Updates have no fallback: if the engine is
// down the interaction is rejected rather than silently dropped.
func (s *Service) UpdateMastery(ctx context.Context, studentID mastery.StudentID, conceptID string, correct bool, engagement float64) (*mastery.Record, error) {
	if err := s.engine.UpdateMastery(ctx, studentID.String(), conceptID, correct, engagement); err != nil {
		return nil, err
	}

	report, err := s.engine.GetConceptMastery(ctx, studentID.String(), conceptID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec, err := report.ToRecord(studentID, conceptID, now)
	if err != nil {
		return nil, err
	}

	s.storeRecord(ctx, rec)

	snapshot, err := mastery.NewSnapshot(uuid.NewString(), studentID, mastery.LevelConcept, conceptID, rec.MasteryScore, now)
	if err != nil {
		return nil, err
	}
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		s.logger.Warn("failed to save mastery snapshot",
			"student_id", studentID.String(),
			"concept_id", conceptID,
			"error", err)
	}

	return rec, nil
}

// GetConceptMastery returns the current mastery record for a student and
// concept. The engine is authoritative; on failure the Redis cache is
// tried, then the Postgres record store. A Postgres hit re-warms the
// cache.
func (s *Service) GetConceptMastery(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error) {
	report, err := s.engine.GetConceptMastery(ctx, studentID.String(), conceptID)
	if err == nil {
		rec, mapErr := report.ToRecord(studentID, conceptID, time.Now())
		if mapErr != nil {
			return nil, mapErr
		}
		s.storeRecord(ctx, rec)
		return rec, nil
	}

	s.logger.Warn("mastery engine unreachable, serving cached record",
		"student_id", studentID.String(),
		"concept_id", conceptID,
		"error", err)

	if rec, cacheErr := s.cache.Get(ctx, studentID, conceptID); cacheErr == nil {
		return rec, nil
	} else if !shared.IsNotFound(cacheErr) {
		s.logger.Warn("mastery cache read failed", "error", cacheErr)
	}

	rec, repoErr := s.records.Get(ctx, studentID, conceptID)
	if repoErr != nil {
		if shared.IsNotFound(repoErr) {
			// Nothing cached locally; surface the engine failure
			return nil, err
		}
		return nil, repoErr
	}

	if cacheErr := s.cache.Set(ctx, rec); cacheErr != nil {
		s.logger.Warn("failed to re-warm mastery cache", "error", cacheErr)
	}
	return rec, nil
}

// storeRecord refreshes both local stores with a fresh engine estimate.
// Failures are logged, not propagated: the engine answered, and the
// caller should get that answer.
func (s *Service) storeRecord(ctx context.Context, rec *mastery.Record) {
	if err := s.records.Upsert(ctx, rec); err != nil {
		s.logger.Warn("failed to upsert mastery record",
			"student_id", rec.StudentID.String(),
			"concept_id", rec.ConceptID,
			"error", err)
	}
	if err := s.cache.Set(ctx, rec); err != nil {
		s.logger.Warn("failed to cache mastery record",
			"student_id", rec.StudentID.String(),
			"concept_id", rec.ConceptID,
			"error", err)
	}
}
