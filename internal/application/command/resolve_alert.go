package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE ALERT COMMAND
// Marks an alert as handled by a staff member. Resolution is
// last-writer-wins: re-resolving stamps the latest resolver.
// ══════════════════════════════════════════════════════════════════════════════

// ResolveAlertCommand identifies the alert and the resolving staff member.
type ResolveAlertCommand struct {
	// AlertID is the alert to resolve.
	AlertID string

	// ResolvedBy is the identity of the resolving staff member.
	ResolvedBy string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ResolveAlertCommand) Validate() error {
	if c.AlertID == "" {
		return errors.New("resolve_alert: alert_id is required")
	}
	if c.ResolvedBy == "" {
		return errors.New("resolve_alert: resolved_by is required")
	}
	return nil
}

// ResolveAlertResult confirms the resolution.
type ResolveAlertResult struct {
	AlertID    string
	ResolvedAt time.Time
}

// ResolveAlertHandler handles the ResolveAlertCommand.
type ResolveAlertHandler struct {
	alertRepo      alert.Repository
	eventPublisher shared.EventPublisher
}

// NewResolveAlertHandler creates a new ResolveAlertHandler.
func NewResolveAlertHandler(alertRepo alert.Repository, eventPublisher shared.EventPublisher) *ResolveAlertHandler {
	return &ResolveAlertHandler{
		alertRepo:      alertRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the resolve alert command.
func (h *ResolveAlertHandler) Handle(ctx context.Context, cmd ResolveAlertCommand) (*ResolveAlertResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("alert", "Resolve", shared.ErrValidation, "invalid command", err)
	}

	a, err := h.alertRepo.GetByID(ctx, cmd.AlertID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrAlertNotFound
		}
		return nil, fmt.Errorf("resolve_alert: failed to load alert: %w", err)
	}

	now := time.Now().UTC()
	if err := a.Resolve(cmd.ResolvedBy, now); err != nil {
		return nil, shared.WrapError("alert", "Resolve", shared.ErrValidation, "cannot resolve alert", err)
	}

	if err := h.alertRepo.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("resolve_alert: failed to save alert: %w", err)
	}

	event := shared.NewAlertResolvedEvent(a.ID, a.ClassID, cmd.ResolvedBy)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &ResolveAlertResult{
		AlertID:    a.ID,
		ResolvedAt: now,
	}, nil
}
