// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gyansetu/pulse/internal/domain/engagement"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG ENGAGEMENT COMMAND
// Ingests one raw engagement sample from a student client, computes the
// composite engagement index and appends it to the sample store.
// ══════════════════════════════════════════════════════════════════════════════

// LogEngagementCommand contains one interval of raw activity metrics.
type LogEngagementCommand struct {
	// StudentID is the reporting student.
	StudentID string

	// ClassID is the class the sample belongs to.
	ClassID string

	// IdleTimeSeconds is the time since the last user interaction.
	IdleTimeSeconds float64

	// Interactions is the interaction count for the interval.
	Interactions int

	// PollParticipation is the poll response count for the interval.
	PollParticipation int

	// TabFocusPercent is the share of the interval the tab was focused.
	TabFocusPercent float64

	// Timestamp is when the sample was taken (defaults to now if zero).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command. Identifier fields must be present;
// numeric fields are clamped downstream, never rejected.
func (c LogEngagementCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("log_engagement: student_id is required")
	}
	if c.ClassID == "" {
		return errors.New("log_engagement: class_id is required")
	}
	return nil
}

// LogEngagementResult contains the result of ingesting a sample.
type LogEngagementResult struct {
	// SampleID is the ID assigned to the stored sample.
	SampleID string

	// EngagementIndex is the computed composite index.
	EngagementIndex float64

	// Disengaged indicates the index fell below the drop threshold.
	Disengaged bool

	// RecordedAt is the sample timestamp.
	RecordedAt time.Time
}

// LogEngagementHandler handles the LogEngagementCommand.
type LogEngagementHandler struct {
	sampleRepo     engagement.Repository
	eventPublisher shared.EventPublisher
}

// NewLogEngagementHandler creates a new LogEngagementHandler.
func NewLogEngagementHandler(sampleRepo engagement.Repository, eventPublisher shared.EventPublisher) *LogEngagementHandler {
	return &LogEngagementHandler{
		sampleRepo:     sampleRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the log engagement command.
func (h *LogEngagementHandler) Handle(ctx context.Context, cmd LogEngagementCommand) (*LogEngagementResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("engagement", "Log", shared.ErrValidation, "invalid sample", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	sample, err := engagement.NewSample(
		uuid.NewString(),
		engagement.StudentID(cmd.StudentID),
		engagement.ClassID(cmd.ClassID),
		engagement.Metrics{
			IdleTimeSeconds:   cmd.IdleTimeSeconds,
			Interactions:      cmd.Interactions,
			PollParticipation: cmd.PollParticipation,
			TabFocusPercent:   cmd.TabFocusPercent,
		},
		timestamp,
	)
	if err != nil {
		return nil, shared.WrapError("engagement", "Log", shared.ErrValidation, "invalid sample", err)
	}

	if err := h.sampleRepo.Save(ctx, sample); err != nil {
		return nil, fmt.Errorf("log_engagement: failed to save sample: %w", err)
	}

	event := shared.NewEngagementSampleLoggedEvent(sample.ID, cmd.StudentID, cmd.ClassID, sample.Index)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &LogEngagementResult{
		SampleID:        sample.ID,
		EngagementIndex: sample.Index,
		Disengaged:      sample.IsDisengaged(),
		RecordedAt:      sample.Timestamp,
	}, nil
}
