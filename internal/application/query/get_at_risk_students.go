package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET AT-RISK STUDENTS QUERY
// Flags students needing intervention based on low current mastery and
// negative learning velocity.
// ══════════════════════════════════════════════════════════════════════════════

// Risk severities.
const (
	RiskSeverityMedium = "Medium"
	RiskSeverityHigh   = "High"
)

// GetAtRiskStudentsQuery carries the roster to classify.
type GetAtRiskStudentsQuery struct {
	StudentIDs []string
	LevelID    string
	WindowDays int
}

// Validate validates the query and applies defaults.
func (q *GetAtRiskStudentsQuery) Validate() error {
	if len(q.StudentIDs) == 0 {
		return errors.New("get_at_risk_students: student_ids are required")
	}
	if q.LevelID == "" {
		q.LevelID = mastery.DefaultLevelID
	}
	if q.WindowDays <= 0 {
		q.WindowDays = mastery.DefaultWindowDays
	}
	return nil
}

// AtRiskStudentDTO describes one flagged student.
type AtRiskStudentDTO struct {
	StudentID string      `json:"studentId"`
	Reasons   []string    `json:"reasons"`
	Severity  string      `json:"severity"`
	Velocity  VelocityDTO `json:"velocity"`
}

// GetAtRiskStudentsHandler handles the GetAtRiskStudentsQuery.
type GetAtRiskStudentsHandler struct {
	snapshotRepo mastery.SnapshotRepository
}

// NewGetAtRiskStudentsHandler creates a new GetAtRiskStudentsHandler.
func NewGetAtRiskStudentsHandler(snapshotRepo mastery.SnapshotRepository) *GetAtRiskStudentsHandler {
	return &GetAtRiskStudentsHandler{snapshotRepo: snapshotRepo}
}

// Handle executes the query. Students with no risk factors are omitted
// from the result.
func (h *GetAtRiskStudentsHandler) Handle(ctx context.Context, q GetAtRiskStudentsQuery) ([]AtRiskStudentDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.AddDate(0, 0, -q.WindowDays)

	atRisk := make([]AtRiskStudentDTO, 0)

	for _, studentID := range q.StudentIDs {
		sid := mastery.StudentID(studentID)

		// A failing read degrades that student, not the whole batch.
		snapshots, err := h.snapshotRepo.ListWindow(ctx, sid, q.LevelID, from, now)
		if err != nil {
			continue
		}
		velocity := mastery.ComputeVelocity(sid, snapshots)

		// A student with no snapshots at all counts as zero mastery,
		// which flags them for review rather than hiding them.
		currentScore := 0.0
		latest, err := h.snapshotRepo.Latest(ctx, sid, q.LevelID)
		if err == nil {
			currentScore = latest.MasteryScore
		} else if !shared.IsNotFound(err) {
			continue
		}

		var reasons []string
		if currentScore < mastery.AtRiskThreshold {
			reasons = append(reasons, fmt.Sprintf("Low Mastery (%g%%)", currentScore))
		}
		if velocity.Velocity != nil && *velocity.Velocity < 0 {
			reasons = append(reasons, fmt.Sprintf("Negative Learning Velocity (%g)", *velocity.Velocity))
		}

		if len(reasons) == 0 {
			continue
		}

		severity := RiskSeverityMedium
		if len(reasons) > 1 {
			severity = RiskSeverityHigh
		}

		atRisk = append(atRisk, AtRiskStudentDTO{
			StudentID: studentID,
			Reasons:   reasons,
			Severity:  severity,
			Velocity:  *toVelocityDTO(velocity),
		})
	}

	return atRisk, nil
}
