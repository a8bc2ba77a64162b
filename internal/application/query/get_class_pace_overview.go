package query

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyansetu/pulse/internal/domain/mastery"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS PACE OVERVIEW QUERY
// Buckets a roster of students by learning pace. Students are analyzed
// concurrently with a bounded worker pool; a failure for one student
// degrades that student to the unknown bucket instead of failing the
// whole overview.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultOverviewWorkers bounds the per-student fan-out.
const DefaultOverviewWorkers = 8

// GetClassPaceOverviewQuery carries the roster to analyze.
type GetClassPaceOverviewQuery struct {
	StudentIDs []string
	LevelID    string
	WindowDays int
	Workers    int
}

// Validate validates the query and applies defaults.
func (q *GetClassPaceOverviewQuery) Validate() error {
	if len(q.StudentIDs) == 0 {
		return errors.New("get_class_pace_overview: student_ids are required")
	}
	if q.LevelID == "" {
		q.LevelID = mastery.DefaultLevelID
	}
	if q.WindowDays <= 0 {
		q.WindowDays = mastery.DefaultWindowDays
	}
	if q.Workers <= 0 {
		q.Workers = DefaultOverviewWorkers
	}
	return nil
}

// PaceOverviewDTO buckets student IDs by pace category.
type PaceOverviewDTO struct {
	FastProgressing []string `json:"fast_progressing"`
	Steady          []string `json:"steady"`
	Plateaued       []string `json:"plateaued"`
	Struggling      []string `json:"struggling"`
	Unknown         []string `json:"unknown"`
}

// GetClassPaceOverviewHandler handles the GetClassPaceOverviewQuery.
type GetClassPaceOverviewHandler struct {
	snapshotRepo mastery.SnapshotRepository
}

// NewGetClassPaceOverviewHandler creates a new GetClassPaceOverviewHandler.
func NewGetClassPaceOverviewHandler(snapshotRepo mastery.SnapshotRepository) *GetClassPaceOverviewHandler {
	return &GetClassPaceOverviewHandler{snapshotRepo: snapshotRepo}
}

// Handle executes the query.
func (h *GetClassPaceOverviewHandler) Handle(ctx context.Context, q GetClassPaceOverviewQuery) (*PaceOverviewDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.AddDate(0, 0, -q.WindowDays)

	// Categories are collected per roster position so bucket contents
	// keep roster order regardless of worker scheduling.
	categories := make([]mastery.Category, len(q.StudentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.Workers)

	for i, studentID := range q.StudentIDs {
		g.Go(func() error {
			snapshots, err := h.snapshotRepo.ListWindow(gctx, mastery.StudentID(studentID), q.LevelID, from, now)
			if err != nil {
				categories[i] = mastery.CategoryUnknown
				return nil
			}
			result := mastery.ComputeVelocity(mastery.StudentID(studentID), snapshots)
			categories[i] = result.Category
			return nil
		})
	}
	_ = g.Wait()

	overview := &PaceOverviewDTO{
		FastProgressing: []string{},
		Steady:          []string{},
		Plateaued:       []string{},
		Struggling:      []string{},
		Unknown:         []string{},
	}

	for i, studentID := range q.StudentIDs {
		switch categories[i] {
		case mastery.CategoryFast:
			overview.FastProgressing = append(overview.FastProgressing, studentID)
		case mastery.CategorySteady:
			overview.Steady = append(overview.Steady, studentID)
		case mastery.CategoryPlateaued:
			overview.Plateaued = append(overview.Plateaued, studentID)
		case mastery.CategoryStruggling:
			overview.Struggling = append(overview.Struggling, studentID)
		default:
			overview.Unknown = append(overview.Unknown, studentID)
		}
	}

	return overview, nil
}
