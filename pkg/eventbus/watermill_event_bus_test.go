package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewatch/platewatch/pkg/channels/gochannel"
	"github.com/platewatch/platewatch/pkg/eventbus"
	"github.com/platewatch/platewatch/pkg/events"
	"github.com/platewatch/platewatch/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBusRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.CheckRequested, 1)

	err := bus.Handle(events.CheckRequestedEvent, func(_ context.Context, event any) error {
		requested, ok := event.(*events.CheckRequested)
		require.True(t, ok)
		received <- requested

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	publish := events.CheckRequested{
		BaseEvent:  events.NewBaseEvent(events.CheckRequestedEvent, "check-1"),
		WorkflowID: "wf-1",
		CityID:     "springfield",
		PlateText:  "WRX 555",
	}
	require.NoError(t, bus.Publish(ctx, "check-1", publish))

	select {
	case got := <-received:
		assert.Equal(t, "check-1", got.CheckID)
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "WRX 555", got.PlateText)
		assert.Equal(t, events.CheckRequestedEvent, got.Type)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusCompletedEvent(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.CheckCompleted, 1)

	err := bus.Handle(events.CheckCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.CheckCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	publish := events.CheckCompleted{
		BaseEvent:  events.NewBaseEvent(events.CheckCompletedEvent, "check-2"),
		WorkflowID: "wf-1",
		Status:     models.CheckStatusAvailable,
		Duration:   3 * time.Second,
	}
	require.NoError(t, bus.Publish(ctx, "check-2", publish))

	select {
	case got := <-received:
		assert.Equal(t, models.CheckStatusAvailable, got.Status)
		assert.Equal(t, 3*time.Second, got.Duration)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered: the message is acked and dropped.
	publish := events.CheckFailed{
		BaseEvent: events.NewBaseEvent(events.CheckFailedEvent, "check-3"),
		Error:     "browser crashed",
	}
	assert.NoError(t, bus.Publish(ctx, "check-3", publish))
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
