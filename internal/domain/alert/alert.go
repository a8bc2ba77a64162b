// Package alert contains domain entities and business logic for
// intervention alerts: notifications raised when engagement or mastery
// signals cross configured thresholds, surfaced to classroom staff.
// This is a pure domain layer with zero external dependencies.
package alert

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for alert package.
var (
	ErrInvalidAlertID    = errors.New("alert: invalid alert ID")
	ErrInvalidClassID    = errors.New("alert: invalid class ID")
	ErrInvalidType       = errors.New("alert: invalid alert type")
	ErrInvalidSeverity   = errors.New("alert: invalid severity")
	ErrEmptyResolvedBy   = errors.New("alert: resolvedBy cannot be empty")
)

// Type identifies the detection rule that produced an alert.
type Type string

const (
	TypeConfusion        Type = "CONFUSION"
	TypeEngagementDrop   Type = "ENGAGEMENT_DROP"
	TypeMasteryThreshold Type = "MASTERY_THRESHOLD"
	TypePollConfusion    Type = "POLL_CONFUSION"
)

// IsValid checks if the type is one of the known alert types.
func (t Type) IsValid() bool {
	switch t {
	case TypeConfusion, TypeEngagementDrop, TypeMasteryThreshold, TypePollConfusion:
		return true
	}
	return false
}

// String returns the string representation of Type.
func (t Type) String() string {
	return string(t)
}

// Severity grades the urgency of an alert.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// IsValid checks if the severity is one of the known grades.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// String returns the string representation of Severity.
func (s Severity) String() string {
	return string(s)
}

// Alert is an intervention notification raised for a class, optionally
// tied to a specific student and concept.
type Alert struct {
	ID        string
	ClassID   string
	StudentID string // empty for class-wide alerts
	ConceptID string // set for mastery alerts
	Type      Type
	Severity  Severity
	Message   string
	Resolved  bool
	ResolvedAt *time.Time
	ResolvedBy string
	CreatedAt time.Time
}

// New creates a validated alert.
func New(id, classID, studentID, conceptID string, alertType Type, severity Severity, message string, createdAt time.Time) (*Alert, error) {
	if id == "" {
		return nil, ErrInvalidAlertID
	}
	if classID == "" {
		return nil, ErrInvalidClassID
	}
	if !alertType.IsValid() {
		return nil, ErrInvalidType
	}
	if !severity.IsValid() {
		return nil, ErrInvalidSeverity
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &Alert{
		ID:        id,
		ClassID:   classID,
		StudentID: studentID,
		ConceptID: conceptID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: createdAt,
	}, nil
}

// NewEngagementDrop builds an engagement drop alert from a sample's
// engagement index. Severity escalates when the index is severely low.
func NewEngagementDrop(id, classID, studentID string, index float64, at time.Time) (*Alert, error) {
	severity := SeverityMedium
	if index < 0.3 {
		severity = SeverityHigh
	}
	message := fmt.Sprintf("Student engagement dropped to %.0f%%", index*100)
	return New(id, classID, studentID, "", TypeEngagementDrop, severity, message, at)
}

// NewMasteryThreshold builds a mastery threshold alert from a cached
// mastery score. Severity escalates below the severe threshold.
func NewMasteryThreshold(id, classID, studentID, conceptID string, score float64, at time.Time) (*Alert, error) {
	severity := SeverityMedium
	if score < 30 {
		severity = SeverityHigh
	}
	message := fmt.Sprintf("Student mastery below threshold: %g%%", score)
	return New(id, classID, studentID, conceptID, TypeMasteryThreshold, severity, message, at)
}

// Resolve stamps the alert as handled. Resolving an already resolved
// alert is not an error; the resolution metadata is re-stamped with the
// latest resolver.
func (a *Alert) Resolve(resolvedBy string, at time.Time) error {
	if resolvedBy == "" {
		return ErrEmptyResolvedBy
	}
	if at.IsZero() {
		at = time.Now()
	}

	a.Resolved = true
	a.ResolvedAt = &at
	a.ResolvedBy = resolvedBy
	return nil
}

// IsRecent reports whether the alert was created within the given
// duration before now. The broadcast sweep uses this to re-announce
// fresh unresolved alerts.
func (a *Alert) IsRecent(now time.Time, within time.Duration) bool {
	return a.CreatedAt.After(now.Add(-within))
}
