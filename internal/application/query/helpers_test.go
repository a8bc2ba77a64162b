package query

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/engagement"
	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// In-memory repository fakes shared by the query handler tests.

type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []*mastery.Snapshot
	failFor   map[mastery.StudentID]error
	calls     int32
}

func newMemSnapshotRepo() *memSnapshotRepo {
	return &memSnapshotRepo{failFor: make(map[mastery.StudentID]error)}
}

func (r *memSnapshotRepo) Save(_ context.Context, s *mastery.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *memSnapshotRepo) ListWindow(_ context.Context, studentID mastery.StudentID, levelID string, from, to time.Time) ([]*mastery.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.failFor[studentID]; ok {
		return nil, err
	}

	var out []*mastery.Snapshot
	for _, s := range r.snapshots {
		if s.StudentID == studentID && s.LevelID == levelID &&
			!s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *memSnapshotRepo) Latest(_ context.Context, studentID mastery.StudentID, levelID string) (*mastery.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[studentID]; ok {
		return nil, err
	}

	var latest *mastery.Snapshot
	for _, s := range r.snapshots {
		if s.StudentID == studentID && s.LevelID == levelID {
			if latest == nil || s.Timestamp.After(latest.Timestamp) {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, shared.ErrSnapshotNotFound
	}
	return latest, nil
}

type memSampleRepo struct {
	mu      sync.Mutex
	samples []*engagement.Sample
	err     error
}

func (r *memSampleRepo) Save(_ context.Context, s *engagement.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

func (r *memSampleRepo) ListByClass(_ context.Context, classID engagement.ClassID, limit int) ([]*engagement.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []*engagement.Sample
	for _, s := range r.samples {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSampleRepo) ListByStudent(_ context.Context, studentID engagement.StudentID, limit int) ([]*engagement.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*engagement.Sample
	for _, s := range r.samples {
		if s.StudentID == studentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSampleRepo) ListByClassSince(_ context.Context, classID engagement.ClassID, since time.Time) ([]*engagement.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*engagement.Sample
	for _, s := range r.samples {
		if s.ClassID == classID && !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*alert.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: make(map[string]*alert.Alert)}
}

func (r *memAlertRepo) Save(_ context.Context, a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *memAlertRepo) GetByID(_ context.Context, id string) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, shared.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAlertRepo) ListByClass(_ context.Context, classID string, includeResolved bool, limit int) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.alerts {
		if a.ClassID != classID {
			continue
		}
		if a.Resolved && !includeResolved {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAlertRepo) ListUnresolvedSince(_ context.Context, since time.Time) ([]*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*alert.Alert
	for _, a := range r.alerts {
		if !a.Resolved && !a.CreatedAt.Before(since) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

var errRepoDown = errors.New("repository unavailable")
