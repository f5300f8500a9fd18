package loader

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/space-sync/pkg/event"
	"github.com/Sternrassler/space-sync/pkg/pagination"
	"github.com/Sternrassler/space-sync/pkg/schema"
	"github.com/Sternrassler/space-sync/pkg/store"
	"github.com/Sternrassler/space-sync/pkg/task"
)

const chainName = "feature-fetch"

// page travels through the steps of one iteration.
type page struct {
	params   pagination.Params
	raw      []json.RawMessage
	features []schema.Feature
}

// chain builds the fetch, decode, render chain of one iteration.
func (l *Loader) chain(s *Session) *task.Chain {
	return task.NewChain(chainName,
		task.StepFunc(func(ctx context.Context, in any) (any, error) {
			return l.fetch(ctx, s, in.(pagination.Params))
		}),
		task.StepFunc(decode),
		task.StepFunc(func(ctx context.Context, in any) (any, error) {
			return l.render(s, in.(*page))
		}),
	)
}

func (l *Loader) fetch(ctx context.Context, s *Session, p pagination.Params) (*page, error) {
	resp, err := l.fetcher.Fetch(ctx, s.conn.Space, p)
	if err != nil {
		return nil, &fetchError{params: p, err: err}
	}
	s.succeed(p, resp.Handle)

	l.logger.Debug().
		Str("session", s.id).
		Stringer("params", p).
		Int("features", len(resp.Features)).
		Bool("last", resp.Handle == nil).
		Msg("Page fetched")

	return &page{params: p, raw: resp.Features}, nil
}

func decode(_ context.Context, in any) (any, error) {
	pg := in.(*page)
	features, err := schema.DecodeAll(pg.raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", pg.params, err)
	}
	pg.features = features
	return pg, nil
}

type pendingGroup struct {
	handle  store.Handle
	fields  []schema.Field
	rows    []store.Row
	created bool
}

// render stores the page's features, trimmed to the session ceiling, and
// publishes one results event per touched group.
func (l *Loader) render(s *Session, pg *page) (int, error) {
	n := s.reserve(len(pg.features))
	if n == 0 {
		return 0, nil
	}

	l.renderMu.Lock()
	defer l.renderMu.Unlock()

	var order []*pendingGroup
	byHandle := make(map[store.Handle]*pendingGroup)
	for _, f := range pg.features[:n] {
		a := l.unifier.Assign(f)
		h := store.Handle{GeometryType: a.GeometryType, Ordinal: a.Ordinal}

		g := byHandle[h]
		if g == nil {
			g = &pendingGroup{handle: h}
			byHandle[h] = g
			order = append(order, g)
		}
		g.fields = a.Fields
		g.created = g.created || a.Created
		g.rows = append(g.rows, store.Row{Values: a.Values, Raw: f.Raw})
	}

	for _, g := range order {
		h := g.handle
		if !l.store.HasGroup(h.GeometryType, h.Ordinal) {
			created, err := l.store.CreateGroup(h.GeometryType, h.Ordinal)
			if err != nil {
				return 0, fmt.Errorf("create group %s: %w", h, err)
			}
			h = created
		}
		if err := l.store.Append(h, g.rows, g.fields); err != nil {
			return 0, fmt.Errorf("append to group %s: %w", h, err)
		}
		l.bus.Results(s.id, event.Batch{
			GeometryType: h.GeometryType,
			Ordinal:      h.Ordinal,
			Created:      g.created,
			Features:     len(g.rows),
		})
	}

	featuresTotal.WithLabelValues(string(s.params.Mode)).Add(float64(n))
	if n < len(pg.features) {
		l.logger.Debug().Str("session", s.id).Int("dropped", len(pg.features)-n).Msg("Page trimmed to feature ceiling")
	}
	return n, nil
}
