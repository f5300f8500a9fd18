// Package event fans out fetch session events to subscribers.
package event

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Type identifies the event payload.
type Type string

const (
	// TypeProgress carries the number of running iterations.
	TypeProgress Type = "progress"
	// TypeResults carries a rendered batch of features.
	TypeResults Type = "results"
	// TypeError carries a terminal session error.
	TypeError Type = "error"
	// TypeFinished marks the end of a session.
	TypeFinished Type = "finished"
)

// DefaultDepth is the per-subscriber buffer size.
const DefaultDepth = 256

// Batch describes features appended to one schema group.
type Batch struct {
	GeometryType string
	Ordinal      int
	Created      bool
	Features     int
}

// Event is a single session notification.
type Event struct {
	Type    Type
	Session string
	Active  int
	Batch   Batch
	Err     error
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once

	// mu serializes sends with the close of ch.
	mu     sync.Mutex
	closed bool
}

// send delivers e unless the subscriber is cancelled. Lossy sends never
// block; it reports false when e was dropped.
func (s *subscriber) send(e Event, lossy bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if lossy {
		select {
		case s.ch <- e:
			return true
		default:
			return false
		}
	}
	select {
	case s.ch <- e:
	case <-s.done:
	}
	return true
}

// Bus delivers events to every subscriber. Progress and results events are
// dropped for subscribers whose buffer is full; error and finished events
// wait for the subscriber or its cancellation.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	depth   int
	dropped int64
	logger  zerolog.Logger
}

// New constructs a Bus. depth <= 0 selects DefaultDepth.
func New(depth int) *Bus {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Bus{
		subs:   make(map[*subscriber]struct{}),
		depth:  depth,
		logger: log.With().Str("component", "event").Logger(),
	}
}

// Subscribe registers a subscriber and returns its channel and a cancel
// function. The channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	s := &subscriber{
		ch:   make(chan Event, b.depth),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	b.logger.Debug().Int("subs", count).Msg("Subscribed")

	return s.ch, func() {
		s.once.Do(func() {
			close(s.done)
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()

			s.mu.Lock()
			s.closed = true
			close(s.ch)
			s.mu.Unlock()
		})
	}
}

// Dropped returns the number of events dropped for slow subscribers.
func (b *Bus) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Progress publishes the number of running iterations.
func (b *Bus) Progress(session string, active int) {
	b.publish(Event{Type: TypeProgress, Session: session, Active: active})
}

// Results publishes a rendered batch.
func (b *Bus) Results(session string, batch Batch) {
	b.publish(Event{Type: TypeResults, Session: session, Batch: batch})
}

// Error publishes a terminal error.
func (b *Bus) Error(session string, err error) {
	b.publish(Event{Type: TypeError, Session: session, Err: err})
}

// Finished publishes the end of a session.
func (b *Bus) Finished(session string) {
	b.publish(Event{Type: TypeFinished, Session: session})
}

func (b *Bus) publish(e Event) {
	if b == nil {
		return
	}
	lossy := e.Type == TypeProgress || e.Type == TypeResults

	// Sends happen outside the bus lock so a subscriber may subscribe or
	// cancel from its reader while a lifecycle event waits for it.
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	dropped := 0
	for _, s := range subs {
		if !s.send(e, lossy) {
			dropped++
		}
	}

	if dropped > 0 {
		b.mu.Lock()
		b.dropped += int64(dropped)
		b.mu.Unlock()
		b.logger.Trace().Str("type", string(e.Type)).Int("count", dropped).Msg("Dropped events")
	}
}
