package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyansetu/pulse/internal/domain/engagement"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT ENGAGEMENT QUERY
// Returns one student's recent engagement history and average index.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultStudentSampleLimit caps how many recent samples a student query returns.
const DefaultStudentSampleLimit = 50

// GetStudentEngagementQuery identifies the student to inspect.
type GetStudentEngagementQuery struct {
	StudentID string
	Limit     int
}

// Validate validates the query and applies defaults.
func (q *GetStudentEngagementQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("get_student_engagement: student_id is required")
	}
	if q.Limit <= 0 || q.Limit > DefaultStudentSampleLimit {
		q.Limit = DefaultStudentSampleLimit
	}
	return nil
}

// StudentEngagementDTO summarizes one student's recent engagement.
type StudentEngagementDTO struct {
	StudentID         string                `json:"studentId"`
	AverageEngagement float64               `json:"averageEngagement"`
	SampleCount       int                   `json:"sampleCount"`
	Samples           []EngagementSampleDTO `json:"samples"`
}

// GetStudentEngagementHandler handles the GetStudentEngagementQuery.
type GetStudentEngagementHandler struct {
	sampleRepo engagement.Repository
}

// NewGetStudentEngagementHandler creates a new GetStudentEngagementHandler.
func NewGetStudentEngagementHandler(sampleRepo engagement.Repository) *GetStudentEngagementHandler {
	return &GetStudentEngagementHandler{sampleRepo: sampleRepo}
}

// Handle executes the query.
func (h *GetStudentEngagementHandler) Handle(ctx context.Context, q GetStudentEngagementQuery) (*StudentEngagementDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	samples, err := h.sampleRepo.ListByStudent(ctx, engagement.StudentID(q.StudentID), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_student_engagement: failed to list samples: %w", err)
	}

	return &StudentEngagementDTO{
		StudentID:         q.StudentID,
		AverageEngagement: engagement.AverageIndex(samples),
		SampleCount:       len(samples),
		Samples:           toSampleDTOs(samples),
	}, nil
}
