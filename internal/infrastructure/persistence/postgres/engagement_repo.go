package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gyansetu/pulse/internal/domain/engagement"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT SAMPLE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EngagementRepository implements engagement.Repository for PostgreSQL.
type EngagementRepository struct {
	conn *Connection
}

// NewEngagementRepository creates a new EngagementRepository.
func NewEngagementRepository(conn *Connection) *EngagementRepository {
	return &EngagementRepository{conn: conn}
}

// Save appends a sample. Samples are never updated.
func (r *EngagementRepository) Save(ctx context.Context, s *engagement.Sample) error {
	query := `
		INSERT INTO engagement_samples (
			id, student_id, class_id, idle_time_seconds, interactions,
			poll_participation, tab_focus_percent, engagement_index, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		string(s.StudentID),
		string(s.ClassID),
		s.Metrics.IdleTimeSeconds,
		s.Metrics.Interactions,
		s.Metrics.PollParticipation,
		s.Metrics.TabFocusPercent,
		s.Index,
		s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save engagement sample: %w", err)
	}

	return nil
}

// ListByClass returns the most recent samples for a class, newest first.
func (r *EngagementRepository) ListByClass(ctx context.Context, classID engagement.ClassID, limit int) ([]*engagement.Sample, error) {
	query := `
		SELECT id, student_id, class_id, idle_time_seconds, interactions,
			   poll_participation, tab_focus_percent, engagement_index, recorded_at
		FROM engagement_samples
		WHERE class_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, string(classID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query class samples: %w", err)
	}
	defer rows.Close()

	return r.scanSamples(rows)
}

// ListByStudent returns the most recent samples for a student, newest first.
func (r *EngagementRepository) ListByStudent(ctx context.Context, studentID engagement.StudentID, limit int) ([]*engagement.Sample, error) {
	query := `
		SELECT id, student_id, class_id, idle_time_seconds, interactions,
			   poll_participation, tab_focus_percent, engagement_index, recorded_at
		FROM engagement_samples
		WHERE student_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, string(studentID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query student samples: %w", err)
	}
	defer rows.Close()

	return r.scanSamples(rows)
}

// ListByClassSince returns all samples for a class recorded at or after
// the given time, newest first.
func (r *EngagementRepository) ListByClassSince(ctx context.Context, classID engagement.ClassID, since time.Time) ([]*engagement.Sample, error) {
	query := `
		SELECT id, student_id, class_id, idle_time_seconds, interactions,
			   poll_participation, tab_focus_percent, engagement_index, recorded_at
		FROM engagement_samples
		WHERE class_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC
	`

	rows, err := r.conn.Query(ctx, query, string(classID), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent class samples: %w", err)
	}
	defer rows.Close()

	return r.scanSamples(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *EngagementRepository) scanSample(row pgx.Row) (*engagement.Sample, error) {
	var (
		s         engagement.Sample
		studentID string
		classID   string
	)

	err := row.Scan(
		&s.ID,
		&studentID,
		&classID,
		&s.Metrics.IdleTimeSeconds,
		&s.Metrics.Interactions,
		&s.Metrics.PollParticipation,
		&s.Metrics.TabFocusPercent,
		&s.Index,
		&s.Timestamp,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSampleNotFound
		}
		return nil, fmt.Errorf("failed to scan engagement sample: %w", err)
	}

	s.StudentID = engagement.StudentID(studentID)
	s.ClassID = engagement.ClassID(classID)
	return &s, nil
}

func (r *EngagementRepository) scanSamples(rows pgx.Rows) ([]*engagement.Sample, error) {
	samples := make([]*engagement.Sample, 0)
	for rows.Next() {
		s, err := r.scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
