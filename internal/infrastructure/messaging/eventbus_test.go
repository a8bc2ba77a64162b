package messaging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyansetu/pulse/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus_PublishToTypedHandler(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var received []shared.Event
	err := bus.Subscribe(shared.EventAlertCreated, func(event shared.Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	event := shared.NewAlertCreatedEvent("a1", "class-1", "student-1", "", "ENGAGEMENT_DROP", "HIGH", "msg", 0.2)
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventAlertCreated, received[0].EventType())
}

func TestInMemoryEventBus_TypedHandlerIgnoresOtherTypes(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventAlertCreated, func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewAlertResolvedEvent("a1", "class-1", "teacher-1")))
	assert.Zero(t, calls)
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewAlertResolvedEvent("a1", "class-1", "teacher-1")))
	require.NoError(t, bus.Publish(shared.NewEngagementSampleLoggedEvent("s1", "student-1", "class-1", 0.4)))
	assert.Equal(t, 2, calls)
}

func TestInMemoryEventBus_PanickingHandlerIsContained(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventAlertCreated, func(shared.Event) error {
		panic("boom")
	}))

	delivered := false
	require.NoError(t, bus.Subscribe(shared.EventAlertCreated, func(shared.Event) error {
		delivered = true
		return nil
	}))

	event := shared.NewAlertCreatedEvent("a1", "class-1", "", "", "CONFUSION", "LOW", "msg", 0)
	assert.NotPanics(t, func() {
		require.NoError(t, bus.Publish(event))
	})
	assert.True(t, delivered)

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalHandlerExecs)
	assert.Less(t, snapshot.HandlerSuccessRate, 1.0)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		EnableMetrics:  true,
	})

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewEngagementSampleLoggedEvent("s", "student-1", "class-1", 0.5)))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewAlertResolvedEvent("a1", "class-1", "teacher-1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventAlertCreated, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_HandlerErrorRecordedInMetrics(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		return errors.New("handler failure")
	}))

	require.NoError(t, bus.Publish(shared.NewAlertResolvedEvent("a1", "class-1", "teacher-1")))

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalHandlerExecs)
	assert.Equal(t, 0.0, snapshot.HandlerSuccessRate)
	assert.Equal(t, int64(1), snapshot.TotalPublished)
}
