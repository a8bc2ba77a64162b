// Package jobs contains implementations of the scheduled sweeps that
// drive intervention alerting.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/engagement"
	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT ALERTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// RosterProvider supplies the set of classes to sweep and their
// enrolled students. Backed by the directory service in production.
type RosterProvider interface {
	ListActiveClasses(ctx context.Context) ([]string, error)
	GetClassRoster(ctx context.Context, classID string) ([]string, error)
}

// DetectAlertsJob scans each active class and raises intervention
// alerts from two rules:
//
//   - engagement: every sample in the recent window whose engagement
//     index sits below the drop threshold produces an ENGAGEMENT_DROP
//     alert for that student
//   - mastery: every cached mastery record on the class roster below
//     the mastery alert threshold produces a MASTERY_THRESHOLD alert
//
// A class that fails to sweep is logged and skipped; the run carries
// on with the remaining classes.
type DetectAlertsJob struct {
	sampleRepo     engagement.Repository
	recordRepo     mastery.RecordRepository
	alertRepo      alert.Repository
	roster         RosterProvider
	eventPublisher shared.EventPublisher
	logger         *slog.Logger

	config DetectAlertsConfig

	lastRunStats atomic.Value // *DetectAlertsStats
}

// DetectAlertsConfig contains configuration for the detection sweep.
type DetectAlertsConfig struct {
	// EngagementWindow is how far back to look for low engagement samples.
	EngagementWindow time.Duration

	// EnableEngagementRule toggles the engagement drop rule.
	EnableEngagementRule bool

	// EnableMasteryRule toggles the mastery threshold rule.
	EnableMasteryRule bool

	// Timeout is the maximum duration for the whole sweep.
	Timeout time.Duration
}

// DefaultDetectAlertsConfig returns sensible defaults.
func DefaultDetectAlertsConfig() DetectAlertsConfig {
	return DetectAlertsConfig{
		EngagementWindow:     15 * time.Minute,
		EnableEngagementRule: true,
		EnableMasteryRule:    true,
		Timeout:              5 * time.Minute,
	}
}

// DetectAlertsStats contains statistics from a detection run.
type DetectAlertsStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	ClassesScanned   int
	ClassesFailed    int
	SamplesChecked   int
	StudentsChecked  int
	EngagementAlerts int
	MasteryAlerts    int
	AlertsCreated    int
	Errors           []error
}

// NewDetectAlertsJob creates a new alert detection job.
func NewDetectAlertsJob(
	sampleRepo engagement.Repository,
	recordRepo mastery.RecordRepository,
	alertRepo alert.Repository,
	roster RosterProvider,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config DetectAlertsConfig,
) *DetectAlertsJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &DetectAlertsJob{
		sampleRepo:     sampleRepo,
		recordRepo:     recordRepo,
		alertRepo:      alertRepo,
		roster:         roster,
		eventPublisher: eventPublisher,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *DetectAlertsJob) Name() string {
	return "detect_alerts"
}

// Description returns a human-readable description.
func (j *DetectAlertsJob) Description() string {
	return "Scans active classes for low engagement and low mastery and raises intervention alerts"
}

// Run executes the detection sweep.
func (j *DetectAlertsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &DetectAlertsStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	j.logger.Info("starting detect_alerts job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	classes, err := j.roster.ListActiveClasses(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active classes: %w", err)
	}

	for _, classID := range classes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats.ClassesScanned++
		if err := j.sweepClass(ctx, classID, stats); err != nil {
			stats.ClassesFailed++
			stats.Errors = append(stats.Errors, err)
			j.logger.Error("failed to sweep class",
				"class_id", classID,
				"error", err,
			)
		}
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastRunStats.Store(stats)

	_ = j.eventPublisher.Publish(shared.NewSweepCompletedEvent(
		stats.ClassesScanned,
		stats.AlertsCreated,
		stats.ClassesFailed,
		stats.Duration,
	))

	j.logger.Info("detect_alerts job completed",
		"duration", stats.Duration.String(),
		"classes_scanned", stats.ClassesScanned,
		"classes_failed", stats.ClassesFailed,
		"engagement_alerts", stats.EngagementAlerts,
		"mastery_alerts", stats.MasteryAlerts,
	)

	return nil
}

// sweepClass applies both detection rules to a single class.
func (j *DetectAlertsJob) sweepClass(ctx context.Context, classID string, stats *DetectAlertsStats) error {
	now := time.Now()

	if j.config.EnableEngagementRule {
		if err := j.sweepEngagement(ctx, classID, now, stats); err != nil {
			return fmt.Errorf("engagement rule: %w", err)
		}
	}

	if j.config.EnableMasteryRule {
		if err := j.sweepMastery(ctx, classID, now, stats); err != nil {
			return fmt.Errorf("mastery rule: %w", err)
		}
	}

	return nil
}

// sweepEngagement raises an alert for every recent sample below the
// drop threshold.
func (j *DetectAlertsJob) sweepEngagement(ctx context.Context, classID string, now time.Time, stats *DetectAlertsStats) error {
	since := now.Add(-j.config.EngagementWindow)
	samples, err := j.sampleRepo.ListByClassSince(ctx, engagement.ClassID(classID), since)
	if err != nil {
		return err
	}

	stats.SamplesChecked += len(samples)

	for _, s := range samples {
		if !s.IsDisengaged() {
			continue
		}

		a, err := alert.NewEngagementDrop(uuid.NewString(), classID, string(s.StudentID), s.Index, now)
		if err != nil {
			return err
		}

		if err := j.createAlert(ctx, a, s.Index, stats); err != nil {
			return err
		}
		stats.EngagementAlerts++
	}

	return nil
}

// sweepMastery raises an alert for every roster member whose cached
// mastery record sits below the alert threshold.
func (j *DetectAlertsJob) sweepMastery(ctx context.Context, classID string, now time.Time, stats *DetectAlertsStats) error {
	rosterIDs, err := j.roster.GetClassRoster(ctx, classID)
	if err != nil {
		return err
	}
	if len(rosterIDs) == 0 {
		return nil
	}

	stats.StudentsChecked += len(rosterIDs)

	studentIDs := make([]mastery.StudentID, len(rosterIDs))
	for i, id := range rosterIDs {
		studentIDs[i] = mastery.StudentID(id)
	}

	records, err := j.recordRepo.ListByStudents(ctx, studentIDs)
	if err != nil {
		return err
	}

	for _, r := range records {
		if !r.BelowAlertThreshold() {
			continue
		}

		a, err := alert.NewMasteryThreshold(uuid.NewString(), classID, string(r.StudentID), r.ConceptID, r.MasteryScore, now)
		if err != nil {
			return err
		}

		if err := j.createAlert(ctx, a, r.MasteryScore, stats); err != nil {
			return err
		}
		stats.MasteryAlerts++
	}

	return nil
}

// createAlert persists an alert and announces it on the event bus.
func (j *DetectAlertsJob) createAlert(ctx context.Context, a *alert.Alert, value float64, stats *DetectAlertsStats) error {
	if err := j.alertRepo.Save(ctx, a); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	stats.AlertsCreated++

	_ = j.eventPublisher.Publish(shared.NewAlertCreatedEvent(
		a.ID,
		a.ClassID,
		a.StudentID,
		a.ConceptID,
		a.Type.String(),
		a.Severity.String(),
		a.Message,
		value,
	))

	return nil
}

// LastRunStats returns statistics from the last detection run.
func (j *DetectAlertsJob) LastRunStats() *DetectAlertsStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*DetectAlertsStats)
}
