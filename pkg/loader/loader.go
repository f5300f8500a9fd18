// Package loader drives fetch sessions: it walks a remote collection page by
// page, unifies the decoded features into schema groups and appends them to
// a group store.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sternrassler/space-sync/pkg/client"
	"github.com/Sternrassler/space-sync/pkg/event"
	"github.com/Sternrassler/space-sync/pkg/pagination"
	"github.com/Sternrassler/space-sync/pkg/schema"
	"github.com/Sternrassler/space-sync/pkg/store"
	"github.com/Sternrassler/space-sync/pkg/task"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher reads one page of a collection.
type Fetcher interface {
	Fetch(ctx context.Context, space string, p pagination.Params) (*client.FetchResponse, error)
}

// GroupStore receives unified features.
type GroupStore interface {
	HasGroup(geometryType string, ordinal int) bool
	CreateGroup(geometryType string, ordinal int) (store.Handle, error)
	Append(h store.Handle, rows []store.Row, fields []schema.Field) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithThreshold sets the schema similarity threshold.
func WithThreshold(threshold int) Option {
	return func(l *Loader) { l.unifier = schema.NewUnifier(threshold) }
}

// WithBus publishes session events on bus instead of a private one.
func WithBus(bus *event.Bus) Option {
	return func(l *Loader) { l.bus = bus }
}

// Loader runs one fetch session at a time.
type Loader struct {
	fetcher Fetcher
	store   GroupStore
	unifier *schema.Unifier
	bus     *event.Bus
	logger  zerolog.Logger

	// renderMu keeps unification and appends of concurrent pages apart.
	renderMu sync.Mutex

	mu      sync.Mutex
	session *Session
}

// New creates a loader.
func New(fetcher Fetcher, groups GroupStore, opts ...Option) *Loader {
	l := &Loader{
		fetcher: fetcher,
		store:   groups,
		logger:  log.With().Str("component", "loader").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.unifier == nil {
		l.unifier = schema.NewUnifier(schema.DefaultThreshold)
	}
	if l.bus == nil {
		l.bus = event.New(event.DefaultDepth)
	}
	return l
}

// Subscribe returns a channel of session events and its cancel function.
func (l *Loader) Subscribe() (<-chan event.Event, func()) {
	return l.bus.Subscribe()
}

// Unifier returns the loader's schema unifier.
func (l *Loader) Unifier() *schema.Unifier { return l.unifier }

// Session returns the current or last session, nil before the first Start.
func (l *Loader) Session() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// Start begins a fetch session in the background. ctx bounds every
// iteration of the session.
func (l *Loader) Start(ctx context.Context, conn Conn, meta Meta, params Params) (*Session, error) {
	if conn.Space == "" {
		return nil, fmt.Errorf("%w: missing space", ErrInvalidParams)
	}
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	q, err := params.queue()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session != nil {
		select {
		case <-l.session.done:
		default:
			return nil, ErrSessionActive
		}
	}

	l.unifier.Reset()
	s := newSession(conn, meta, params, q)
	l.session = s

	l.logger.Info().
		Str("session", s.id).
		Str("space", conn.Space).
		Str("layer", meta.Name).
		Str("mode", string(params.Mode)).
		Int("limit", params.Limit).
		Int("max_features", params.MaxFeatures).
		Int("parallel", params.Parallel).
		Msg("Fetch session started")

	l.dispatch(ctx, s)
	return s, nil
}

// Restart stops the current session, waits for it and starts a new one on
// the same collection and layer.
func (l *Loader) Restart(ctx context.Context, params Params) (*Session, error) {
	prev := l.Session()
	if prev == nil {
		return nil, ErrNoSession
	}
	prev.stop()

	select {
	case <-prev.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", task.ErrManualInterrupt, ctx.Err())
	}
	return l.Start(ctx, prev.conn, prev.meta, params)
}

// Stop ends the current session after its in-flight iterations. The
// interrupt is published once per session.
func (l *Loader) Stop() {
	s := l.Session()
	if s == nil {
		return
	}
	if s.stop() {
		l.logger.Info().Str("session", s.id).Msg("Fetch session stopped")
		l.bus.Error(s.id, task.ErrManualInterrupt)
	}
}

// Wait blocks until the current session has finished and returns its error.
func (l *Loader) Wait() error {
	s := l.Session()
	if s == nil {
		return ErrNoSession
	}
	<-s.done
	return s.Err()
}

func (l *Loader) dispatch(ctx context.Context, s *Session) {
	chain := l.chain(s)
	d := task.NewDispatcher(task.Hooks{
		OnProgress: func(active int) { l.bus.Progress(s.id, active) },
		OnError: func(err error) {
			s.fail(err)
			l.logger.Error().Err(err).Str("session", s.id).Msg("Fetch iteration failed")
			l.bus.Error(s.id, err)
		},
		OnFinished: func() { l.finish(s) },
	})

	d.Dispatch(ctx, s.params.Parallel, func(ctx context.Context, worker int) error {
		loop := task.NewLoop(chain, s.next, l.onError(s))
		n, err := loop.Run(ctx, nil)
		iterations, _ := n.(int)
		l.logger.Debug().Str("session", s.id).Int("worker", worker).Int("iterations", iterations).Msg("Worker done")
		return err
	})
}

// onError hands failed requests back to the queue. Everything else ends the
// session.
func (l *Loader) onError(s *Session) task.ErrorFunc {
	return func(_ any, err error) error {
		var fe *fetchError
		if !errors.As(err, &fe) {
			s.fail(err)
			return err
		}

		if rerr := s.release(fe.params, fe.err); rerr != nil {
			var ci *task.ChainInterrupt
			if errors.As(err, &ci) {
				rerr = &task.ChainInterrupt{Err: rerr, Index: ci.Index, Count: ci.Count}
			}
			s.fail(rerr)
			return rerr
		}

		pageRetriesTotal.WithLabelValues(string(s.params.Mode)).Inc()
		l.logger.Warn().Err(fe.err).Str("session", s.id).Stringer("params", fe.params).Msg("Request failed, requeued")
		return nil
	}
}

func (l *Loader) finish(s *Session) {
	status, empty := s.settle()
	if empty {
		l.bus.Error(s.id, ErrEmptyResult)
	}
	sessionsTotal.WithLabelValues(string(status)).Inc()

	l.logger.Info().
		Str("session", s.id).
		Str("status", string(status)).
		Int("features", s.Count()).
		AnErr("error", s.Err()).
		Msg("Fetch session finished")

	l.bus.Finished(s.id)
	close(s.done)
}
