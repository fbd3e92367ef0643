package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, Event{Type: EventProcessSaved, ProcessID: "orders", Revision: 3}))

	got := receive(t, ch)
	assert.Equal(t, "orders", got.ProcessID)
	assert.Equal(t, 3, got.Revision)
}

func TestFilterByProcess(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{ProcessID: "orders"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, Event{Type: EventProcessSaved, ProcessID: "orders"}))
	require.NoError(t, hub.Publish(ctx, Event{Type: EventProcessSaved, ProcessID: "invoices"}))

	assert.Equal(t, "orders", receive(t, ch).ProcessID)
	assertEmpty(t, ch)
}

func TestFilterByType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{Types: []string{EventRevisionsPruned}})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, Event{Type: EventProcessSaved, ProcessID: "orders"}))
	require.NoError(t, hub.Publish(ctx, Event{Type: EventRevisionsPruned, Count: 4}))

	assert.Equal(t, 4, receive(t, ch).Count)
	assertEmpty(t, ch)
}

func TestCancelClosesAndRemoves(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len())

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Len())
	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, hub.Publish(ctx, Event{Type: EventProcessSaved}))
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, hub.Publish(ctx, Event{Type: EventProcessSaved, Revision: i + 1}))
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, 1, receive(t, ch).Revision)
}

func TestCanceledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := hub.Subscribe(ctx, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, hub.Publish(ctx, Event{}), context.Canceled)
}

func TestConcurrentPublish(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, Filter{})
	require.NoError(t, err)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = hub.Publish(ctx, Event{Type: EventProcessSaved})
		}()
	}
	wg.Wait()
	assert.Len(t, ch, 8)
}
