package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/space-sync/pkg/pagination"
	"github.com/Sternrassler/space-sync/pkg/task"
	"github.com/google/uuid"
)

// Status is the state of a fetch session.
type Status string

const (
	StatusLoading    Status = "loading"
	StatusAllFetched Status = "all_fetched"
	StatusMaxReached Status = "max_reached"
	// StatusFinished ends a session that hit a terminal error.
	StatusFinished Status = "finished"
	StatusStopped  Status = "stopped"
)

// Session is one fetch run. Its queue, counters and status are shared by
// the dispatched iterations and guarded by mu.
type Session struct {
	id     string
	conn   Conn
	meta   Meta
	params Params
	done   chan struct{}

	mu       sync.Mutex
	status   Status
	queue    pagination.Queue
	count    int
	inflight int
	changed  chan struct{}
	err      error
}

func newSession(conn Conn, meta Meta, params Params, q pagination.Queue) *Session {
	return &Session{
		id:      uuid.NewString(),
		conn:    conn,
		meta:    meta,
		params:  params,
		done:    make(chan struct{}),
		status:  StatusLoading,
		queue:   q,
		changed: make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Params returns the params the session runs with, defaults applied.
func (s *Session) Params() Params { return s.params }

// Done is closed once every iteration has completed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Count returns the number of stored features.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Err returns the error the session ended with. It is nil while running.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// broadcast wakes iterations waiting for queue changes. Callers hold mu.
func (s *Session) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// next hands out the next request. With an empty queue it waits while other
// requests are in flight, since their responses may queue more pages.
func (s *Session) next(ctx context.Context) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.status != StatusLoading {
			return nil, false, nil
		}
		if s.params.MaxFeatures > 0 && s.count >= s.params.MaxFeatures {
			s.status = StatusMaxReached
			s.broadcast()
			return nil, false, nil
		}
		if p, ok := s.queue.Next(); ok {
			s.inflight++
			return p, true, nil
		}
		if s.inflight == 0 {
			s.status = StatusAllFetched
			s.broadcast()
			return nil, false, nil
		}

		changed := s.changed
		s.mu.Unlock()
		select {
		case <-changed:
			s.mu.Lock()
		case <-ctx.Done():
			s.mu.Lock()
			return nil, false, fmt.Errorf("%w: %w", task.ErrManualInterrupt, ctx.Err())
		}
	}
}

// succeed records a successful request.
func (s *Session) succeed(p pagination.Params, handle *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Succeed(p, handle)
	s.inflight--
	s.broadcast()
}

// release hands a failed request to the queue. A non-nil return is terminal.
func (s *Session) release(p pagination.Params, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	defer s.broadcast()

	if !retryable(p, cause) {
		return cause
	}
	return s.queue.Retry(p, cause)
}

// reserve claims up to n features under the ceiling and returns how many
// may be stored.
func (s *Session) reserve(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit := s.params.MaxFeatures; limit > 0 {
		n = max(0, min(n, limit-s.count))
	}
	s.count += n

	if s.params.MaxFeatures > 0 && s.count >= s.params.MaxFeatures && s.status == StatusLoading {
		s.status = StatusMaxReached
		s.broadcast()
	}
	return n
}

// stop moves a loading session to StatusStopped and reports whether it did.
func (s *Session) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusLoading {
		return false
	}
	s.status = StatusStopped
	s.broadcast()
	return true
}

// fail records the first terminal error and ends a loading session.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	if s.status == StatusLoading {
		s.status = StatusFinished
	}
	s.broadcast()
}

// settle fixes the final status and error after the last iteration. It
// reports whether the session ended empty.
func (s *Session) settle() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := false
	switch {
	case s.err != nil:
	case s.status == StatusStopped:
		s.err = task.ErrManualInterrupt
	case s.count == 0:
		s.err = ErrEmptyResult
		empty = true
	}
	if s.status == StatusLoading {
		s.status = StatusFinished
	}
	return s.status, empty
}
