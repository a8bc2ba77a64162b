// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyansetu/pulse/internal/domain/engagement"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS ENGAGEMENT QUERY
// Returns the recent engagement samples for a class and their average
// index, for the staff dashboard.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultClassSampleLimit caps how many recent samples a class query returns.
const DefaultClassSampleLimit = 100

// GetClassEngagementQuery identifies the class to inspect.
type GetClassEngagementQuery struct {
	ClassID string
	Limit   int
}

// Validate validates the query and applies defaults.
func (q *GetClassEngagementQuery) Validate() error {
	if q.ClassID == "" {
		return errors.New("get_class_engagement: class_id is required")
	}
	if q.Limit <= 0 || q.Limit > DefaultClassSampleLimit {
		q.Limit = DefaultClassSampleLimit
	}
	return nil
}

// EngagementSampleDTO is the wire representation of one sample.
type EngagementSampleDTO struct {
	SampleID          string    `json:"sampleId"`
	StudentID         string    `json:"studentId"`
	ClassID           string    `json:"classId"`
	EngagementIndex   float64   `json:"engagementIndex"`
	IdleTimeSeconds   float64   `json:"idleTime"`
	Interactions      int       `json:"interactions"`
	PollParticipation int       `json:"pollParticipation"`
	TabFocusPercent   float64   `json:"tabFocus"`
	Timestamp         time.Time `json:"timestamp"`
}

// ClassEngagementDTO summarizes recent engagement in one class.
type ClassEngagementDTO struct {
	ClassID           string                `json:"classId"`
	AverageEngagement float64               `json:"averageEngagement"`
	SampleCount       int                   `json:"sampleCount"`
	Samples           []EngagementSampleDTO `json:"samples"`
}

// GetClassEngagementHandler handles the GetClassEngagementQuery.
type GetClassEngagementHandler struct {
	sampleRepo engagement.Repository
}

// NewGetClassEngagementHandler creates a new GetClassEngagementHandler.
func NewGetClassEngagementHandler(sampleRepo engagement.Repository) *GetClassEngagementHandler {
	return &GetClassEngagementHandler{sampleRepo: sampleRepo}
}

// Handle executes the query.
func (h *GetClassEngagementHandler) Handle(ctx context.Context, q GetClassEngagementQuery) (*ClassEngagementDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	samples, err := h.sampleRepo.ListByClass(ctx, engagement.ClassID(q.ClassID), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("get_class_engagement: failed to list samples: %w", err)
	}

	return &ClassEngagementDTO{
		ClassID:           q.ClassID,
		AverageEngagement: engagement.AverageIndex(samples),
		SampleCount:       len(samples),
		Samples:           toSampleDTOs(samples),
	}, nil
}

func toSampleDTOs(samples []*engagement.Sample) []EngagementSampleDTO {
	dtos := make([]EngagementSampleDTO, 0, len(samples))
	for _, s := range samples {
		dtos = append(dtos, EngagementSampleDTO{
			SampleID:          s.ID,
			StudentID:         s.StudentID.String(),
			ClassID:           s.ClassID.String(),
			EngagementIndex:   s.Index,
			IdleTimeSeconds:   s.Metrics.IdleTimeSeconds,
			Interactions:      s.Metrics.Interactions,
			PollParticipation: s.Metrics.PollParticipation,
			TabFocusPercent:   s.Metrics.TabFocusPercent,
			Timestamp:         s.Timestamp,
		})
	}
	return dtos
}
