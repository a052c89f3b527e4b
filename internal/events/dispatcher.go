package events

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// ErrCursorExpired is returned by Since when events after the cursor are no
// longer retained. Callers must fall back to a full refresh.
var ErrCursorExpired = errors.New("events: cursor expired")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	// Publish assigns the event a cursor ID and delivers it.
	Publish(ctx context.Context, event Event) (Event, error)
	// Subscribe registers a handler for the given types, or for every type
	// when none are given. The returned func removes the handler.
	Subscribe(handler EventHandler, types ...EventType) func()
	// Since returns retained events published after cursor, oldest first.
	Since(ctx context.Context, cursor string) ([]Event, error)
	Close() error
}

type subscription struct {
	id      uint64
	types   map[EventType]struct{}
	handler EventHandler
}

func (s *subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// subscribers is the handler registry shared by dispatcher implementations.
type subscribers struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscription
	logger *zap.Logger
}

func (s *subscribers) add(handler EventHandler, types []EventType) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &subscription{id: s.nextID, handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	s.subs = append(s.subs, sub)

	id := sub.id
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *subscribers) deliver(ctx context.Context, event Event) {
	s.mu.RLock()
	handlers := make([]EventHandler, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.wants(event.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			// continue processing other handlers despite errors
			s.logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

// inMemoryDispatcher is a simple synchronous dispatcher with a bounded replay ring.
// Handlers must not publish from within the handler.
type inMemoryDispatcher struct {
	subscribers

	publishMu sync.Mutex
	ringMu    sync.RWMutex
	seq       uint64
	ring      []Event
	capacity  int
	closed    bool
}

// NewInMemoryDispatcher creates a dispatcher instance retaining up to replay events.
func NewInMemoryDispatcher(replay int, logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if replay <= 0 {
		replay = 1024
	}
	return &inMemoryDispatcher{
		subscribers: subscribers{logger: logger},
		capacity:    replay,
	}
}

// Publish synchronously invokes handlers for the given event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) (Event, error) {
	d.publishMu.Lock()
	defer d.publishMu.Unlock()

	d.ringMu.Lock()
	if d.closed {
		d.ringMu.Unlock()
		return Event{}, errors.New("events: dispatcher closed")
	}
	d.seq++
	event.ID = strconv.FormatUint(d.seq, 10)
	if len(d.ring) == d.capacity {
		d.ring = append(d.ring[:0:0], d.ring[1:]...)
	}
	d.ring = append(d.ring, event)
	d.ringMu.Unlock()

	d.deliver(ctx, event)
	return event, nil
}

// Subscribe registers a handler for the given event types.
func (d *inMemoryDispatcher) Subscribe(handler EventHandler, types ...EventType) func() {
	return d.add(handler, types)
}

func (d *inMemoryDispatcher) Since(_ context.Context, cursor string) ([]Event, error) {
	if cursor == "" {
		return nil, nil
	}
	after, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, ErrCursorExpired
	}

	d.ringMu.RLock()
	defer d.ringMu.RUnlock()

	if after > d.seq {
		// cursor from another dispatcher lifetime
		return nil, ErrCursorExpired
	}
	if after == d.seq {
		return nil, nil
	}
	oldest := d.seq - uint64(len(d.ring)) + 1
	if after+1 < oldest {
		return nil, ErrCursorExpired
	}
	start := int(after + 1 - oldest)
	out := make([]Event, len(d.ring)-start)
	copy(out, d.ring[start:])
	return out, nil
}

func (d *inMemoryDispatcher) Close() error {
	d.ringMu.Lock()
	defer d.ringMu.Unlock()
	d.closed = true
	return nil
}
