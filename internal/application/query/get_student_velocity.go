package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyansetu/pulse/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT VELOCITY QUERY
// Computes learning velocity for one student over a snapshot window.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentVelocityQuery identifies the student and level to analyze.
type GetStudentVelocityQuery struct {
	StudentID  string
	LevelID    string
	WindowDays int
}

// Validate validates the query and applies defaults.
func (q *GetStudentVelocityQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("get_student_velocity: student_id is required")
	}
	if q.LevelID == "" {
		q.LevelID = mastery.DefaultLevelID
	}
	if q.WindowDays <= 0 {
		q.WindowDays = mastery.DefaultWindowDays
	}
	return nil
}

// VelocityDTO is the wire representation of a velocity result.
// Velocity is null when the window held fewer than two snapshots.
type VelocityDTO struct {
	StudentID   string   `json:"studentId"`
	Velocity    *float64 `json:"velocity"`
	Trend       string   `json:"trend"`
	Category    string   `json:"category"`
	Explanation string   `json:"explanation"`
}

// GetStudentVelocityHandler handles the GetStudentVelocityQuery.
type GetStudentVelocityHandler struct {
	snapshotRepo mastery.SnapshotRepository
}

// NewGetStudentVelocityHandler creates a new GetStudentVelocityHandler.
func NewGetStudentVelocityHandler(snapshotRepo mastery.SnapshotRepository) *GetStudentVelocityHandler {
	return &GetStudentVelocityHandler{snapshotRepo: snapshotRepo}
}

// Handle executes the query.
func (h *GetStudentVelocityHandler) Handle(ctx context.Context, q GetStudentVelocityQuery) (*VelocityDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.AddDate(0, 0, -q.WindowDays)

	snapshots, err := h.snapshotRepo.ListWindow(ctx, mastery.StudentID(q.StudentID), q.LevelID, from, now)
	if err != nil {
		return nil, fmt.Errorf("get_student_velocity: failed to list snapshots: %w", err)
	}

	result := mastery.ComputeVelocity(mastery.StudentID(q.StudentID), snapshots)
	return toVelocityDTO(result), nil
}

func toVelocityDTO(r mastery.VelocityResult) *VelocityDTO {
	return &VelocityDTO{
		StudentID:   r.StudentID.String(),
		Velocity:    r.Velocity,
		Trend:       string(r.Trend),
		Category:    string(r.Category),
		Explanation: r.Explanation,
	}
}
