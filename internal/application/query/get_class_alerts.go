package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyansetu/pulse/internal/domain/alert"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS ALERTS QUERY
// Returns recent alerts for a class, newest first. Resolved alerts are
// hidden unless explicitly requested.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultAlertLimit caps how many alerts a class query returns.
const DefaultAlertLimit = 50

// GetClassAlertsQuery identifies the class and filtering options.
type GetClassAlertsQuery struct {
	ClassID         string
	IncludeResolved bool
	Limit           int
}

// Validate validates the query and applies defaults.
func (q *GetClassAlertsQuery) Validate() error {
	if q.ClassID == "" {
		return errors.New("get_class_alerts: class_id is required")
	}
	if q.Limit <= 0 || q.Limit > DefaultAlertLimit {
		q.Limit = DefaultAlertLimit
	}
	return nil
}

// AlertDTO is the wire representation of an alert.
type AlertDTO struct {
	ID         string     `json:"id"`
	ClassID    string     `json:"classId"`
	StudentID  string     `json:"studentId,omitempty"`
	ConceptID  string     `json:"conceptId,omitempty"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// GetClassAlertsHandler handles the GetClassAlertsQuery.
type GetClassAlertsHandler struct {
	alertRepo alert.Repository
}

// NewGetClassAlertsHandler creates a new GetClassAlertsHandler.
func NewGetClassAlertsHandler(alertRepo alert.Repository) *GetClassAlertsHandler {
	return &GetClassAlertsHandler{alertRepo: alertRepo}
}

// Handle executes the query.
func (h *GetClassAlertsHandler) Handle(ctx context.Context, q GetClassAlertsQuery) ([]AlertDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	alerts, err := h.alertRepo.ListByClass(ctx, q.ClassID, q.IncludeResolved, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_class_alerts: failed to list alerts: %w", err)
	}

	dtos := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		dtos = append(dtos, ToAlertDTO(a))
	}
	return dtos, nil
}

// ToAlertDTO maps an alert entity to its wire representation.
func ToAlertDTO(a *alert.Alert) AlertDTO {
	return AlertDTO{
		ID:         a.ID,
		ClassID:    a.ClassID,
		StudentID:  a.StudentID,
		ConceptID:  a.ConceptID,
		Type:       a.Type.String(),
		Severity:   a.Severity.String(),
		Message:    a.Message,
		Resolved:   a.Resolved,
		ResolvedAt: a.ResolvedAt,
		ResolvedBy: a.ResolvedBy,
		CreatedAt:  a.CreatedAt,
	}
}
