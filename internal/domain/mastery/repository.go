// Package mastery contains domain entities and business logic for
// mastery tracking.
package mastery

import (
	"context"
	"time"
)

// SnapshotRepository defines the interface for mastery snapshot
// persistence. Snapshots are append-only; velocity queries read windows
// of them.
type SnapshotRepository interface {
	// Save appends a snapshot.
	Save(ctx context.Context, snapshot *Snapshot) error

	// ListWindow returns the snapshots for a student and level with
	// timestamps inside [from, to], ordered by timestamp ascending.
	ListWindow(ctx context.Context, studentID StudentID, levelID string, from, to time.Time) ([]*Snapshot, error)

	// Latest returns the most recent snapshot for a student and level,
	// or a not-found error when none exist.
	Latest(ctx context.Context, studentID StudentID, levelID string) (*Snapshot, error)
}

// RecordRepository defines the interface for the locally cached
// per-concept mastery estimates.
type RecordRepository interface {
	// Upsert creates or replaces the record for (student, concept).
	Upsert(ctx context.Context, record *Record) error

	// Get returns the record for (student, concept), or a not-found
	// error when none exists.
	Get(ctx context.Context, studentID StudentID, conceptID string) (*Record, error)

	// ListByStudents returns all records for the given students.
	// Used by the mastery alert rule to scan a class roster.
	ListByStudents(ctx context.Context, studentIDs []StudentID) ([]*Record, error)
}
