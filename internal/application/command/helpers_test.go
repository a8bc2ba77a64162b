package command

import (
	"context"
	"sync"
	"time"

	"github.com/gyansetu/pulse/internal/domain/alert"
	"github.com/gyansetu/pulse/internal/domain/engagement"
	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// In-memory fakes shared by the command handler tests.

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type memSampleRepo struct {
	mu      sync.Mutex
	samples []*engagement.Sample
}

func (r *memSampleRepo) Save(_ context.Context, s *engagement.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

func (r *memSampleRepo) ListByClass(_ context.Context, _ engagement.ClassID, _ int) ([]*engagement.Sample, error) {
	return nil, nil
}

func (r *memSampleRepo) ListByStudent(_ context.Context, _ engagement.StudentID, _ int) ([]*engagement.Sample, error) {
	return nil, nil
}

func (r *memSampleRepo) ListByClassSince(_ context.Context, _ engagement.ClassID, _ time.Time) ([]*engagement.Sample, error) {
	return nil, nil
}

type memSnapshotRepo struct {
	mu        sync.Mutex
	snapshots []*mastery.Snapshot
}

func (r *memSnapshotRepo) Save(_ context.Context, s *mastery.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	return nil
}

func (r *memSnapshotRepo) ListWindow(_ context.Context, _ mastery.StudentID, _ string, _, _ time.Time) ([]*mastery.Snapshot, error) {
	return nil, nil
}

func (r *memSnapshotRepo) Latest(_ context.Context, _ mastery.StudentID, _ string) (*mastery.Snapshot, error) {
	return nil, shared.ErrSnapshotNotFound
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

func (r *memAlertRepo) ListByClass(_ context.Context, _ string, _ bool, _ int) ([]*alert.Alert, error) {
	return nil, nil
}

func (r *memAlertRepo) ListUnresolvedSince(_ context.Context, _ time.Time) ([]*alert.Alert, error) {
	return nil, nil
}
