// Package events publishes deployment lifecycle events to subscribers
// without ever blocking the publisher.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type names a lifecycle event.
type Type string

const (
	DeploymentStarted   Type = "deployment.started"
	DeploymentSucceeded Type = "deployment.succeeded"
	DeploymentFailed    Type = "deployment.failed"
	CommandFailed       Type = "command.failed"
)

const (
	subscriberBuffer = 128
	maxErrorLength   = 512
)

// Event is delivered to subscribers.
type Event struct {
	Type       Type      `json:"type"`
	Timestamp  time.Time `json:"ts"`
	RunID      string    `json:"run_id,omitempty"`
	Deployment string    `json:"deployment,omitempty"`
	Event      string    `json:"event,omitempty"`
	Command    string    `json:"command,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Emitter publishes events.
type Emitter interface {
	Emit(Event)
}

// Bus fans events out to subscribers. Each subscriber gets a buffered
// channel and its own goroutine; a full buffer drops the event for that
// subscriber only.
type Bus struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers []chan Event
	closed      bool
	wg          sync.WaitGroup
}

// NewBus creates an event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{logger: logger.With().Str("component", "events").Logger()}
}

// Subscribe registers fn. Subscribing to a closed bus is a no-op.
func (b *Bus) Subscribe(fn func(Event)) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subscribers = append(b.subscribers, ch)
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for ev := range ch {
			b.deliver(fn, ev)
		}
	}()
}

func (b *Bus) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("type", string(ev.Type)).Msg("Event subscriber panicked")
		}
	}()
	fn(ev)
}

// Emit publishes ev to every subscriber. It never blocks.
func (b *Bus) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if len(ev.Error) > maxErrorLength {
		ev.Error = ev.Error[:maxErrorLength] + "...(truncated)"
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.logger.Warn().Str("type", string(ev.Type)).Str("deployment", ev.Deployment).Msg("Event subscriber is slow, dropping event")
		}
	}
}

// Close stops delivery and waits for subscribers to drain their buffers.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
	b.wg.Wait()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(Event) {}

// LogSubscriber returns a subscriber that writes events to logger.
func LogSubscriber(logger zerolog.Logger) func(Event) {
	return func(ev Event) {
		entry := logger.Info()
		if ev.Type == DeploymentFailed || ev.Type == CommandFailed {
			entry = logger.Warn()
		}
		entry.
			Str("type", string(ev.Type)).
			Str("run_id", ev.RunID).
			Str("deployment", ev.Deployment).
			Str("event", ev.Event).
			Str("command", ev.Command).
			Str("error", ev.Error).
			Msg("Deployment event")
	}
}
