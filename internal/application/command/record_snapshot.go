package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SNAPSHOT COMMAND
// Appends a point-in-time mastery snapshot. Called whenever a mastery
// update lands, so that velocity windows always have fresh boundaries.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSnapshotCommand contains the data for one mastery snapshot.
type RecordSnapshotCommand struct {
	// StudentID is the student the snapshot belongs to.
	StudentID string

	// LevelType is the granularity: concept, module or subject.
	LevelType string

	// LevelID names the concept/module/subject being measured.
	LevelID string

	// MasteryScore is the score at snapshot time, 0-100.
	MasteryScore float64

	// Timestamp is when the measurement was taken (defaults to now).
	Timestamp time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordSnapshotCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("record_snapshot: student_id is required")
	}
	if c.LevelID == "" {
		return errors.New("record_snapshot: level_id is required")
	}
	if !mastery.LevelType(c.LevelType).IsValid() {
		return errors.New("record_snapshot: level_type must be concept, module or subject")
	}
	if c.MasteryScore < 0 || c.MasteryScore > 100 {
		return errors.New("record_snapshot: mastery_score must be between 0 and 100")
	}
	return nil
}

// RecordSnapshotResult contains the result of recording a snapshot.
type RecordSnapshotResult struct {
	// SnapshotID is the ID assigned to the stored snapshot.
	SnapshotID string

	// RecordedAt is the snapshot timestamp.
	RecordedAt time.Time
}

// RecordSnapshotHandler handles the RecordSnapshotCommand.
type RecordSnapshotHandler struct {
	snapshotRepo   mastery.SnapshotRepository
	eventPublisher shared.EventPublisher
}

// NewRecordSnapshotHandler creates a new RecordSnapshotHandler.
func NewRecordSnapshotHandler(snapshotRepo mastery.SnapshotRepository, eventPublisher shared.EventPublisher) *RecordSnapshotHandler {
	return &RecordSnapshotHandler{
		snapshotRepo:   snapshotRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the record snapshot command.
func (h *RecordSnapshotHandler) Handle(ctx context.Context, cmd RecordSnapshotCommand) (*RecordSnapshotResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("mastery", "RecordSnapshot", shared.ErrValidation, "invalid snapshot", err)
	}

	timestamp := cmd.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	snapshot, err := mastery.NewSnapshot(
		uuid.NewString(),
		mastery.StudentID(cmd.StudentID),
		mastery.LevelType(cmd.LevelType),
		cmd.LevelID,
		cmd.MasteryScore,
		timestamp,
	)
	if err != nil {
		return nil, shared.WrapError("mastery", "RecordSnapshot", shared.ErrValidation, "invalid snapshot", err)
	}

	if err := h.snapshotRepo.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("record_snapshot: failed to save snapshot: %w", err)
	}

	event := shared.NewMasterySnapshotRecordedEvent(
		snapshot.SnapshotID, cmd.StudentID, cmd.LevelType, cmd.LevelID, cmd.MasteryScore,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &RecordSnapshotResult{
		SnapshotID: snapshot.SnapshotID,
		RecordedAt: snapshot.Timestamp,
	}, nil
}
