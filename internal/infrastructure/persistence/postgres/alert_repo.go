package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALERT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AlertRepository implements alert.Repository for PostgreSQL.
type AlertRepository struct {
	conn *Connection
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(conn *Connection) *AlertRepository {
	return &AlertRepository{conn: conn}
}

// Save persists an alert. Resolution re-stamps an existing row.
func (r *AlertRepository) Save(ctx context.Context, a *alert.Alert) error {
	query := `
		INSERT INTO alerts (
			id, class_id, student_id, concept_id, alert_type, severity,
			message, resolved, resolved_at, resolved_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			resolved = EXCLUDED.resolved,
			resolved_at = EXCLUDED.resolved_at,
			resolved_by = EXCLUDED.resolved_by
	`

	_, err := r.conn.Exec(ctx, query,
		a.ID,
		a.ClassID,
		nullIfEmpty(a.StudentID),
		nullIfEmpty(a.ConceptID),
		string(a.Type),
		string(a.Severity),
		a.Message,
		a.Resolved,
		a.ResolvedAt,
		nullIfEmpty(a.ResolvedBy),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// GetByID returns an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alert.Alert, error) {
	query := `
		SELECT id, class_id, student_id, concept_id, alert_type, severity,
			   message, resolved, resolved_at, resolved_by, created_at
		FROM alerts
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return r.scanAlert(row)
}

// ListByClass returns alerts for a class, newest first, capped at limit.
// Resolved alerts are excluded unless includeResolved is set.
func (r *AlertRepository) ListByClass(ctx context.Context, classID string, includeResolved bool, limit int) ([]*alert.Alert, error) {
	query := `
		SELECT id, class_id, student_id, concept_id, alert_type, severity,
			   message, resolved, resolved_at, resolved_by, created_at
		FROM alerts
		WHERE class_id = $1 AND ($2 OR resolved = FALSE)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.conn.Query(ctx, query, classID, includeResolved, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query class alerts: %w", err)
	}
	defer rows.Close()

	return r.scanAlerts(rows)
}

// ListUnresolvedSince returns unresolved alerts across all classes
// created at or after the given time.
func (r *AlertRepository) ListUnresolvedSince(ctx context.Context, since time.Time) ([]*alert.Alert, error) {
	query := `
		SELECT id, class_id, student_id, concept_id, alert_type, severity,
			   message, resolved, resolved_at, resolved_by, created_at
		FROM alerts
		WHERE resolved = FALSE AND created_at >= $1
		ORDER BY created_at DESC
	`

	rows, err := r.conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved alerts: %w", err)
	}
	defer rows.Close()

	return r.scanAlerts(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *AlertRepository) scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a          alert.Alert
		studentID  *string
		conceptID  *string
		alertType  string
		severity   string
		resolvedBy *string
	)

	err := row.Scan(
		&a.ID,
		&a.ClassID,
		&studentID,
		&conceptID,
		&alertType,
		&severity,
		&a.Message,
		&a.Resolved,
		&a.ResolvedAt,
		&resolvedBy,
		&a.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}

	if studentID != nil {
		a.StudentID = *studentID
	}
	if conceptID != nil {
		a.ConceptID = *conceptID
	}
	if resolvedBy != nil {
		a.ResolvedBy = *resolvedBy
	}
	a.Type = alert.Type(alertType)
	a.Severity = alert.Severity(severity)
	return &a, nil
}

func (r *AlertRepository) scanAlerts(rows pgx.Rows) ([]*alert.Alert, error) {
	alerts := make([]*alert.Alert, 0)
	for rows.Next() {
		a, err := r.scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// nullIfEmpty maps empty strings to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
