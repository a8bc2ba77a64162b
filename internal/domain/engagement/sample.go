// Package engagement contains domain entities and business logic for
// behavioral engagement sampling: raw activity metrics reported by student
// clients and the composite engagement index derived from them.
// This is a pure domain layer with zero external dependencies.
package engagement

import (
	"errors"
	"time"
)

// Domain errors for engagement package.
var (
	ErrInvalidSampleID  = errors.New("engagement: invalid sample ID")
	ErrInvalidStudentID = errors.New("engagement: invalid student ID")
	ErrInvalidClassID   = errors.New("engagement: invalid class ID")
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

// ClassID represents a unique identifier for a class.
type ClassID string

// IsValid checks if the class ID is valid.
func (c ClassID) IsValid() bool {
	return c != ""
}

// String returns the string representation of ClassID.
func (c ClassID) String() string {
	return string(c)
}

// Metrics holds the raw activity counters reported by a student client
// for one sampling interval.
type Metrics struct {
	// IdleTimeSeconds is the time since the last user interaction.
	IdleTimeSeconds float64

	// Interactions is the count of clicks, keystrokes and scrolls
	// during the interval.
	Interactions int

	// PollParticipation is the number of poll responses during the
	// interval. Only presence matters for scoring.
	PollParticipation int

	// TabFocusPercent is the share of the interval the learning tab
	// was focused, 0-100.
	TabFocusPercent float64
}

// Sample is an immutable point-in-time engagement measurement for one
// student in one class. Samples are append-only.
type Sample struct {
	ID        string
	StudentID StudentID
	ClassID   ClassID
	Metrics   Metrics
	Index     float64
	Timestamp time.Time
}

// NewSample creates a sample from raw metrics, computing the composite
// index. Out-of-range metrics are clamped rather than rejected, since
// client clocks and counters are untrusted.
func NewSample(id string, studentID StudentID, classID ClassID, m Metrics, at time.Time) (*Sample, error) {
	if id == "" {
		return nil, ErrInvalidSampleID
	}
	if !studentID.IsValid() {
		return nil, ErrInvalidStudentID
	}
	if !classID.IsValid() {
		return nil, ErrInvalidClassID
	}
	if at.IsZero() {
		at = time.Now()
	}

	if m.IdleTimeSeconds < 0 {
		m.IdleTimeSeconds = 0
	}
	if m.Interactions < 0 {
		m.Interactions = 0
	}
	if m.PollParticipation < 0 {
		m.PollParticipation = 0
	}
	if m.TabFocusPercent < 0 {
		m.TabFocusPercent = 0
	}
	if m.TabFocusPercent > 100 {
		m.TabFocusPercent = 100
	}

	return &Sample{
		ID:        id,
		StudentID: studentID,
		ClassID:   classID,
		Metrics:   m,
		Index:     ComputeIndex(m),
		Timestamp: at,
	}, nil
}

// IsDisengaged reports whether the sample falls below the engagement
// drop threshold used by the alerting rules.
func (s *Sample) IsDisengaged() bool {
	return s.Index < DropThreshold
}
