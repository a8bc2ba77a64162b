package masteryengine

import (
	"fmt"
	"time"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UpdateMasteryRequestDTO is the payload for a mastery update. Each
// payload describes one graded interaction; the engine folds it into the
// student's knowledge estimate.
type UpdateMasteryRequestDTO struct {
	StudentID  string  `json:"student_id"`
	ConceptID  string  `json:"concept_id"`
	Correct    bool    `json:"correct"`
	Engagement float64 `json:"engagement"`
}

// UpdateAckDTO is the engine's acknowledgement of a mastery update.
type UpdateAckDTO struct {
	Status string `json:"status"`
}

// ConceptMasteryDTO is the engine's per-concept report. MasteryScore is
// the learned probability scaled to 0-100; Probability is the raw value.
type ConceptMasteryDTO struct {
	Concept      string  `json:"concept"`
	MasteryScore int     `json:"masteryScore"`
	Probability  float64 `json:"probability"`
}

// ModuleMasteryDTO is the engine's per-module rollup.
type ModuleMasteryDTO struct {
	Module       string   `json:"module"`
	Mastery      float64  `json:"mastery"`
	WeakConcepts []string `json:"weakConcepts"`
}

// SubjectModuleDTO is one module line inside a subject report.
type SubjectModuleDTO struct {
	Module  string  `json:"module"`
	Mastery float64 `json:"mastery"`
	Status  string  `json:"status"`
}

// SubjectMasteryDTO is the engine's per-subject rollup.
type SubjectMasteryDTO struct {
	Subject        string             `json:"subject"`
	SubjectMastery float64            `json:"subjectMastery"`
	Modules        []SubjectModuleDTO `json:"modules"`
}

// StudentMasteryDTO is the engine's whole-student summary.
type StudentMasteryDTO struct {
	StudentID      string  `json:"studentId"`
	OverallMastery float64 `json:"overallMastery"`
}

// PracticeBucketsDTO groups a module's concepts by recommended practice
// intensity.
type PracticeBucketsDTO struct {
	Remedial []string `json:"remedial"`
	Core     []string `json:"core"`
	Stretch  []string `json:"stretch"`
}

// PracticePlanDTO maps module IDs to their practice buckets.
type PracticePlanDTO map[string]PracticeBucketsDTO

// APIErrorDTO represents an error response from the engine.
type APIErrorDTO struct {
	// Status is the HTTP status code the error arrived with
	Status int `json:"-"`

	// Code is the error code, when the engine provides one
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// ToRecord converts a concept report into a domain mastery record. The
// engine reports the concept name, not its ID, so the caller supplies the
// identifiers it asked about.
func (d *ConceptMasteryDTO) ToRecord(studentID mastery.StudentID, conceptID string, at time.Time) (*mastery.Record, error) {
	rec, err := mastery.NewRecord(studentID, conceptID, float64(d.MasteryScore), d.Probability, at)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrEngineInvalidResponse, err)
	}
	return rec, nil
}
