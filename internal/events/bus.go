// Package events carries game client lifecycle events from the hook layer to
// the collaborators that react to them.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType names an event stream.
type EventType string

const (
	// EventScreenOpened is published after a screen is shown.
	EventScreenOpened EventType = "screen_opened"
	// EventScreenClosed is published after the current screen is dismissed.
	EventScreenClosed EventType = "screen_closed"
	// EventTick is published once per client tick while connected to the server.
	EventTick EventType = "tick"
	// EventTickAlways is published once per client tick, connected or not.
	EventTickAlways EventType = "tick_always"
	// EventDisplayResized is published when the game window changes size.
	EventDisplayResized EventType = "display_resized"
	// EventLootrunBeaconSelected is published when the player picks a beacon
	// during a lootrun.
	EventLootrunBeaconSelected EventType = "lootrun_beacon_selected"
)

// Event is one published occurrence. Payload holds the event's typed data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// Subscriber receives events.
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe bus. Each subscriber has its own
// buffered channel and goroutine; an event is dropped for a subscriber whose
// buffer is full.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
	logger      *zap.Logger
	now         func() time.Time
	wg          sync.WaitGroup

	dropped atomic.Int64
}

// NewBus creates a bus with bufferSize slots per subscriber.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
		logger:      logger,
		now:         time.Now,
	}
}

// Subscribe registers fn for eventType and returns the unsubscribe function.
// fn runs on the subscriber's own goroutine, one event at a time.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for event := range ch {
			b.deliver(fn, event)
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

func (b *Bus) deliver(fn Subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("event", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	fn(event)
}

// Publish sends payload to every subscriber of eventType without blocking.
func (b *Bus) Publish(eventType EventType, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		Timestamp: b.now().UTC(),
		Payload:   payload,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped, subscriber buffer full", zap.String("event", string(eventType)))
		}
	}
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close ends every subscription and waits for the subscriber goroutines to
// finish the events already buffered.
func (b *Bus) Close() {
	b.mu.Lock()
	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
