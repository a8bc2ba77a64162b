// Package mastery contains domain entities and business logic for
// mastery tracking: point-in-time snapshots of mastery scores, cached
// per-concept estimates from the probability engine, and the learning
// velocity computation over snapshot windows.
// This is a pure domain layer with zero external dependencies.
package mastery

import (
	"errors"
	"time"
)

// Domain errors for mastery package.
var (
	ErrInvalidSnapshotID = errors.New("mastery: invalid snapshot ID")
	ErrInvalidStudentID  = errors.New("mastery: invalid student ID")
	ErrInvalidLevelID    = errors.New("mastery: invalid level ID")
	ErrInvalidLevelType  = errors.New("mastery: invalid level type")
	ErrScoreOutOfRange   = errors.New("mastery: score must be between 0 and 100")
)

// StudentID represents a unique identifier for a student.
type StudentID string

// IsValid checks if the student ID is valid.
func (s StudentID) IsValid() bool {
	return s != ""
}

// String returns the string representation of StudentID.
func (s StudentID) String() string {
	return string(s)
}

// LevelType identifies the granularity a mastery score is tracked at.
type LevelType string

const (
	LevelConcept LevelType = "concept"
	LevelModule  LevelType = "module"
	LevelSubject LevelType = "subject"
)

// IsValid checks if the level type is one of the known granularities.
func (l LevelType) IsValid() bool {
	switch l {
	case LevelConcept, LevelModule, LevelSubject:
		return true
	}
	return false
}

// String returns the string representation of LevelType.
func (l LevelType) String() string {
	return string(l)
}

// DefaultLevelID is the synthetic level used for whole-subject pace
// queries when no concrete level is named.
const DefaultLevelID = "global_subject"

// Snapshot is an immutable point-in-time mastery measurement. Snapshots
// are append-only; velocity is computed over windows of them.
type Snapshot struct {
	SnapshotID   string
	StudentID    StudentID
	LevelType    LevelType
	LevelID      string
	MasteryScore float64
	Timestamp    time.Time
}

// NewSnapshot creates a validated mastery snapshot.
func NewSnapshot(snapshotID string, studentID StudentID, levelType LevelType, levelID string, score float64, at time.Time) (*Snapshot, error) {
	if snapshotID == "" {
		return nil, ErrInvalidSnapshotID
	}
	if !studentID.IsValid() {
		return nil, ErrInvalidStudentID
	}
	if !levelType.IsValid() {
		return nil, ErrInvalidLevelType
	}
	if levelID == "" {
		return nil, ErrInvalidLevelID
	}
	if score < 0 || score > 100 {
		return nil, ErrScoreOutOfRange
	}
	if at.IsZero() {
		at = time.Now()
	}

	return &Snapshot{
		SnapshotID:   snapshotID,
		StudentID:    studentID,
		LevelType:    levelType,
		LevelID:      levelID,
		MasteryScore: score,
		Timestamp:    at,
	}, nil
}
