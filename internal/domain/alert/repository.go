// Package alert contains domain entities and business logic for
// intervention alerts.
package alert

import (
	"context"
	"time"
)

// Repository defines the interface for alert persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Save persists an alert (create or update).
	Save(ctx context.Context, alert *Alert) error

	// GetByID returns an alert by ID, or a not-found error.
	GetByID(ctx context.Context, id string) (*Alert, error)

	// ListByClass returns alerts for a class, newest first, capped at
	// limit. Resolved alerts are excluded unless includeResolved is set.
	ListByClass(ctx context.Context, classID string, includeResolved bool, limit int) ([]*Alert, error)

	// ListUnresolvedSince returns unresolved alerts across all classes
	// created at or after the given time. Used by the broadcast sweep.
	ListUnresolvedSince(ctx context.Context, since time.Time) ([]*Alert, error)
}
