package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), Event{Daemon: "alpha", Type: EventDaemonStarted}))

	select {
	case ev := <-ch:
		assert.Equal(t, "alpha", ev.Daemon)
		assert.Equal(t, EventDaemonStarted, ev.Type)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishFansOutToMultipleSubscribers(t *testing.T) {
	bus := New()
	ch1, unsub1 := bus.Subscribe()
	ch2, unsub2 := bus.Subscribe()
	defer unsub1()
	defer unsub2()

	require.NoError(t, bus.Publish(context.Background(), Event{Daemon: "beta", Type: EventDaemonStopped}))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, "beta", ev.Daemon)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), Event{Daemon: "gamma", Type: EventDaemonStarted}))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := New()
	_, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = bus.Publish(context.Background(), Event{Daemon: "delta", Type: EventDaemonStarted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

type fakeBridge struct {
	published []Event
	closed    bool
	publishErr error
}

func (f *fakeBridge) Publish(_ context.Context, ev Event) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeBridge) Close() error {
	f.closed = true
	return nil
}

func TestPublishForwardsToBridge(t *testing.T) {
	bus := New()
	bridge := &fakeBridge{}
	bus.SetBridge(bridge)

	require.NoError(t, bus.Publish(context.Background(), Event{Daemon: "epsilon", Type: EventRestartBudgetExceeded}))
	require.Len(t, bridge.published, 1)
	assert.Equal(t, "epsilon", bridge.published[0].Daemon)
}

func TestPublishReturnsBridgeError(t *testing.T) {
	bus := New()
	bridge := &fakeBridge{publishErr: errors.New("broker unreachable")}
	bus.SetBridge(bridge)

	err := bus.Publish(context.Background(), Event{Daemon: "zeta", Type: EventDaemonStarted})
	assert.ErrorContains(t, err, "broker unreachable")
}

func TestClearBridgeClosesIt(t *testing.T) {
	bus := New()
	bridge := &fakeBridge{}
	bus.SetBridge(bridge)

	require.NoError(t, bus.ClearBridge())
	assert.True(t, bridge.closed)

	require.NoError(t, bus.Publish(context.Background(), Event{Daemon: "eta", Type: EventDaemonStarted}))
	assert.Empty(t, bridge.published, "no further events should reach a cleared bridge")
}

func TestCloseClosesSubscribersAndBridge(t *testing.T) {
	bus := New()
	bridge := &fakeBridge{}
	bus.SetBridge(bridge)
	ch, _ := bus.Subscribe()

	require.NoError(t, bus.Close())
	assert.True(t, bridge.closed)

	_, ok := <-ch
	assert.False(t, ok)
}
