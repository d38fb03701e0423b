package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSender) Send(ctx context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestQueueDeliversEvents(t *testing.T) {
	sender := &captureSender{}
	q := NewQueue(sender, 16)

	ok := q.Enqueue(context.Background(), Event{
		Type:    EventMatchConfirmed,
		UserID:  "u1",
		ActorID: "u2",
	})
	require.True(t, ok)

	q.Close()

	require.Equal(t, 1, sender.count())
	sender.mu.Lock()
	got := sender.events[0]
	sender.mu.Unlock()
	assert.Equal(t, EventMatchConfirmed, got.Type)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.EnqueuedAt.IsZero())
}

func TestQueueDropsWhenFull(t *testing.T) {
	// A sender that blocks until released, so enqueued events back up.
	release := make(chan struct{})
	blocking := senderFunc(func(ctx context.Context, event Event) error {
		<-release
		return nil
	})

	q := NewQueue(blocking, 1)
	ctx := context.Background()

	// First event is picked up by the worker, second fills the buffer.
	q.Enqueue(ctx, Event{Type: EventNewMatchRequest, UserID: "u1"})
	time.Sleep(20 * time.Millisecond)
	q.Enqueue(ctx, Event{Type: EventNewMatchRequest, UserID: "u2"})

	dropped := !q.Enqueue(ctx, Event{Type: EventNewMatchRequest, UserID: "u3"})
	assert.True(t, dropped)

	close(release)
	q.Close()
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(&captureSender{}, 4)
	q.Close()

	assert.False(t, q.Enqueue(context.Background(), Event{Type: EventUnmatched, UserID: "u1"}))
}

type senderFunc func(ctx context.Context, event Event) error

func (f senderFunc) Send(ctx context.Context, event Event) error { return f(ctx, event) }
