package mastery

import (
	"errors"
	"time"
)

// Domain errors for mastery records.
var (
	ErrInvalidConceptID     = errors.New("mastery: invalid concept ID")
	ErrConfidenceOutOfRange = errors.New("mastery: confidence must be between 0 and 1")
)

// Thresholds used by the mastery alerting rules, in score points.
const (
	// AlertThreshold is the score below which a mastery alert fires.
	AlertThreshold = 50.0

	// SevereThreshold is the score below which a mastery alert is
	// considered severe.
	SevereThreshold = 30.0

	// AtRiskThreshold is the score below which a student counts as
	// low-mastery for risk classification.
	AtRiskThreshold = 40.0
)

// Record is the locally cached per-concept mastery estimate produced by
// the external probability engine. It is refreshed on every engine
// response and serves reads when the engine is unreachable.
type Record struct {
	StudentID    StudentID
	ConceptID    string
	MasteryScore float64
	Confidence   float64
	LastUpdated  time.Time
}

// NewRecord creates a validated mastery record.
func NewRecord(studentID StudentID, conceptID string, score, confidence float64, updatedAt time.Time) (*Record, error) {
	if !studentID.IsValid() {
		return nil, ErrInvalidStudentID
	}
	if conceptID == "" {
		return nil, ErrInvalidConceptID
	}
	if score < 0 || score > 100 {
		return nil, ErrScoreOutOfRange
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrConfidenceOutOfRange
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return &Record{
		StudentID:    studentID,
		ConceptID:    conceptID,
		MasteryScore: score,
		Confidence:   confidence,
		LastUpdated:  updatedAt,
	}, nil
}

// BelowAlertThreshold reports whether the record should trigger a
// mastery threshold alert.
func (r *Record) BelowAlertThreshold() bool {
	return r.MasteryScore < AlertThreshold
}

// IsSevere reports whether the record is below the severe threshold.
func (r *Record) IsSevere() bool {
	return r.MasteryScore < SevereThreshold
}
