package notification

import (
	"context"
	"sync"
	"time"

	"github.com/astromatch/astromatch/internal/telemetry"
)

// Event types enqueued by the matching flows.
const (
	EventNewMatchRequest = "new_match_request"
	EventMatchConfirmed  = "match_confirmed"
	EventUnmatched       = "unmatched"
)

// Event is a fire-and-forget notification payload. Delivery to the user's
// device happens in an external dispatcher; this queue only hands events to
// a Sender.
type Event struct {
	Type       string                 `json:"type"`
	UserID     string                 `json:"user_id"`
	ActorID    string                 `json:"actor_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// Sender delivers a single event. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// Queue is a bounded in-process notification queue drained by a single
// worker goroutine. Enqueue never blocks: when the queue is full the event
// is dropped and logged, since notifications are best-effort.
type Queue struct {
	events chan Event
	sender Sender

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewQueue(sender Sender, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	q := &Queue{
		events: make(chan Event, capacity),
		sender: sender,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.worker()
	return q
}

// Enqueue hands an event to the worker. Returns false if the event was
// dropped because the queue is full or shutting down.
func (q *Queue) Enqueue(ctx context.Context, event Event) bool {
	if event.EnqueuedAt.IsZero() {
		event.EnqueuedAt = time.Now()
	}

	select {
	case <-q.stop:
		return false
	default:
	}

	select {
	case q.events <- event:
		return true
	default:
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation":  "notification_enqueue",
			"event_type": event.Type,
			"user_id":    event.UserID,
		}).Warn("Notification queue full, dropping event")
		return false
	}
}

func (q *Queue) worker() {
	defer close(q.done)

	for {
		select {
		case event := <-q.events:
			q.deliver(event)
		case <-q.stop:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case event := <-q.events:
					q.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := q.sender.Send(ctx, event); err != nil {
		telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
			"operation":  "notification_deliver",
			"event_type": event.Type,
			"user_id":    event.UserID,
		}).WithError(err).Warn("Failed to deliver notification")
	}
}

// Close stops the worker after draining queued events.
func (q *Queue) Close() {
	q.stopOnce.Do(func() { close(q.stop) })
	<-q.done
}

// LogSender writes events to the structured log. It stands in for the
// external push dispatcher in development and tests.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, event Event) error {
	telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation":  "notification_send",
		"event_type": event.Type,
		"user_id":    event.UserID,
		"actor_id":   event.ActorID,
	}).Info("Notification dispatched")
	return nil
}
