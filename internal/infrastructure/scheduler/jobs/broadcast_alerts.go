package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BROADCAST ALERTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// BroadcastAlertsJob re-announces fresh unresolved alerts on the event
// bus so the realtime layer can push them to class rooms. Staff who
// joined a room after an alert fired still see it within one sweep.
type BroadcastAlertsJob struct {
	alertRepo      alert.Repository
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config BroadcastAlertsConfig

	lastRunStats atomic.Value // *BroadcastAlertsStats
}

// BroadcastAlertsConfig contains configuration for the broadcast sweep.
type BroadcastAlertsConfig struct {
	// Lookback is how far back an unresolved alert may have been
	// created and still be re-announced.
	Lookback time.Duration

	// Timeout is the maximum duration for the sweep.
	Timeout time.Duration
}

// DefaultBroadcastAlertsConfig returns sensible defaults.
func DefaultBroadcastAlertsConfig() BroadcastAlertsConfig {
	return BroadcastAlertsConfig{
		Lookback: time.Minute,
		Timeout:  30 * time.Second,
	}
}

// BroadcastAlertsStats contains statistics from a broadcast run.
type BroadcastAlertsStats struct {
	StartedAt       time.Time
	CompletedAt     time.Time
	Duration        time.Duration
	AlertsFound     int
	AlertsBroadcast int
}

// NewBroadcastAlertsJob creates a new broadcast job.
func NewBroadcastAlertsJob(
	alertRepo alert.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config BroadcastAlertsConfig,
) *BroadcastAlertsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &BroadcastAlertsJob{
		alertRepo:      alertRepo,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *BroadcastAlertsJob) Name() string {
	return "broadcast_alerts"
}

// Description returns a human-readable description.
func (j *BroadcastAlertsJob) Description() string {
	return "Re-announces fresh unresolved alerts to realtime class rooms"
}

// Run executes the broadcast sweep.
func (j *BroadcastAlertsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &BroadcastAlertsStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	since := startedAt.Add(-j.config.Lookback)
	alerts, err := j.alertRepo.ListUnresolvedSince(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list unresolved alerts: %w", err)
	}

	stats.AlertsFound = len(alerts)

	for _, a := range alerts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := j.eventPublisher.Publish(shared.NewAlertBroadcastEvent(
			a.ID,
			a.ClassID,
			a.StudentID,
			a.Type.String(),
			a.Severity.String(),
			a.Message,
			a.CreatedAt,
		))
		if err != nil {
			j.logger.Warn("failed to broadcast alert",
				"alert_id", a.ID,
				"error", err,
			)
			continue
		}
		stats.AlertsBroadcast++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	if stats.AlertsBroadcast > 0 {
		j.logger.Info("broadcast_alerts job completed",
			"duration", stats.Duration.String(),
			"alerts_broadcast", stats.AlertsBroadcast,
		)
	}

	return nil
}

// LastRunStats returns statistics from the last broadcast run.
func (j *BroadcastAlertsJob) LastRunStats() *BroadcastAlertsStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*BroadcastAlertsStats)
}
