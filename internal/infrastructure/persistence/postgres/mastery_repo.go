package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements mastery.SnapshotRepository for PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// Save appends a snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, s *mastery.Snapshot) error {
	query := `
		INSERT INTO mastery_snapshots (
			id, student_id, level_type, level_id, mastery_score, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		s.SnapshotID,
		string(s.StudentID),
		string(s.LevelType),
		s.LevelID,
		s.MasteryScore,
		s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save mastery snapshot: %w", err)
	}

	return nil
}

// ListWindow returns snapshots inside [from, to], oldest first.
func (r *SnapshotRepository) ListWindow(ctx context.Context, studentID mastery.StudentID, levelID string, from, to time.Time) ([]*mastery.Snapshot, error) {
	query := `
		SELECT id, student_id, level_type, level_id, mastery_score, recorded_at
		FROM mastery_snapshots
		WHERE student_id = $1 AND level_id = $2 AND recorded_at BETWEEN $3 AND $4
		ORDER BY recorded_at ASC
	`

	rows, err := r.conn.Query(ctx, query, string(studentID), levelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot window: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*mastery.Snapshot, 0)
	for rows.Next() {
		s, err := r.scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Latest returns the most recent snapshot for a student and level.
func (r *SnapshotRepository) Latest(ctx context.Context, studentID mastery.StudentID, levelID string) (*mastery.Snapshot, error) {
	query := `
		SELECT id, student_id, level_type, level_id, mastery_score, recorded_at
		FROM mastery_snapshots
		WHERE student_id = $1 AND level_id = $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	row := r.conn.QueryRow(ctx, query, string(studentID), levelID)
	return r.scanSnapshot(row)
}

func (r *SnapshotRepository) scanSnapshot(row pgx.Row) (*mastery.Snapshot, error) {
	var (
		s         mastery.Snapshot
		studentID string
		levelType string
	)

	err := row.Scan(
		&s.SnapshotID,
		&studentID,
		&levelType,
		&s.LevelID,
		&s.MasteryScore,
		&s.Timestamp,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to scan mastery snapshot: %w", err)
	}

	s.StudentID = mastery.StudentID(studentID)
	s.LevelType = mastery.LevelType(levelType)
	return &s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MASTERY RECORD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements mastery.RecordRepository for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

// Upsert creates or replaces the record for (student, concept).
func (r *RecordRepository) Upsert(ctx context.Context, rec *mastery.Record) error {
	query := `
		INSERT INTO mastery_records (student_id, concept_id, mastery_score, confidence, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, concept_id) DO UPDATE SET
			mastery_score = EXCLUDED.mastery_score,
			confidence = EXCLUDED.confidence,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.conn.Exec(ctx, query,
		string(rec.StudentID),
		rec.ConceptID,
		rec.MasteryScore,
		rec.Confidence,
		rec.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mastery record: %w", err)
	}

	return nil
}

// Get returns the record for (student, concept).
func (r *RecordRepository) Get(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error) {
	query := `
		SELECT student_id, concept_id, mastery_score, confidence, last_updated
		FROM mastery_records
		WHERE student_id = $1 AND concept_id = $2
	`

	row := r.conn.QueryRow(ctx, query, string(studentID), conceptID)
	return r.scanRecord(row)
}

// ListByStudents returns all records for the given students.
func (r *RecordRepository) ListByStudents(ctx context.Context, studentIDs []mastery.StudentID) ([]*mastery.Record, error) {
	if len(studentIDs) == 0 {
		return []*mastery.Record{}, nil
	}

	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, len(studentIDs))
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(id)
	}

	query := fmt.Sprintf(`
		SELECT student_id, concept_id, mastery_score, confidence, last_updated
		FROM mastery_records
		WHERE student_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mastery records: %w", err)
	}
	defer rows.Close()

	records := make([]*mastery.Record, 0)
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *RecordRepository) scanRecord(row pgx.Row) (*mastery.Record, error) {
	var (
		rec       mastery.Record
		studentID string
	)

	err := row.Scan(
		&studentID,
		&rec.ConceptID,
		&rec.MasteryScore,
		&rec.Confidence,
		&rec.LastUpdated,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan mastery record: %w", err)
	}

	rec.StudentID = mastery.StudentID(studentID)
	return &rec, nil
}
