// Package engagement contains domain entities and business logic for
// behavioral engagement sampling.
package engagement

import (
	"context"
	"time"
)

// Repository defines the interface for engagement sample persistence.
// This interface is implemented by the infrastructure layer.
// The domain layer has no knowledge of the actual storage mechanism.
type Repository interface {
	// Save appends a sample. Samples are never updated or deleted.
	Save(ctx context.Context, sample *Sample) error

	// ListByClass returns the most recent samples for a class,
	// newest first.
	ListByClass(ctx context.Context, classID ClassID, limit int) ([]*Sample, error)

	// ListByStudent returns the most recent samples for a student,
	// newest first.
	ListByStudent(ctx context.Context, studentID StudentID, limit int) ([]*Sample, error)

	// ListByClassSince returns all samples for a class recorded at or
	// after the given time, newest first. Used by the alert sweep to
	// inspect the recent window.
	ListByClassSince(ctx context.Context, classID ClassID, since time.Time) ([]*Sample, error)
}

// AverageIndex computes the mean engagement index over a set of samples.
// Returns 0 for an empty set.
func AverageIndex(samples []*Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Index
	}
	return sum / float64(len(samples))
}
