package pagination

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// SmartQueue is a cursor queue with an adaptive page limit. The optimal limit
// only ever shrinks within a session.
type SmartQueue struct {
	optimal    int
	queue      []Params
	issued     map[int64]struct{}
	allFetched bool
}

// NewSmartQueue creates a queue seeded with one request at handle.
func NewSmartQueue(limit int, handle int64, tags []string) *SmartQueue {
	if limit < 1 {
		limit = 1
	}
	optimalLimit.Set(float64(limit))
	return &SmartQueue{
		optimal: limit,
		queue:   []Params{{Kind: KindCursor, Limit: limit, Handle: handle, Tags: tags}},
		issued:  make(map[int64]struct{}),
	}
}

// OptimalLimit returns the largest page size known to succeed.
func (q *SmartQueue) OptimalLimit() int { return q.optimal }

// AllFetched reports whether a response without a handle has been seen.
func (q *SmartQueue) AllFetched() bool { return q.allFetched }

// Len returns the number of queued requests.
func (q *SmartQueue) Len() int { return len(q.queue) }

// Next pops the front request. A request predating a size reduction is split
// into optimal-sized pieces and the first piece returned.
func (q *SmartQueue) Next() (Params, bool) {
	if len(q.queue) == 0 {
		return Params{}, false
	}

	p := q.queue[0]
	q.queue = q.queue[1:]

	if p.Limit > q.optimal {
		parts := splitRange(p, q.optimal)
		q.pushFront(parts[1:])
		p = parts[0]
	}
	q.issued[p.Handle] = struct{}{}
	return p, true
}

// Succeed appends the next page when the response carried a handle that is
// neither queued nor already handed out. Pieces of a split page run
// concurrently, so the handle one piece returns may belong to a piece that is
// in flight or done. No handle means everything has been fetched.
func (q *SmartQueue) Succeed(p Params, handle *int64) {
	if handle == nil {
		q.allFetched = true
		return
	}
	if _, ok := q.issued[*handle]; ok {
		return
	}
	for _, queued := range q.queue {
		if queued.Handle == *handle {
			return
		}
	}
	q.queue = append(q.queue, Params{
		Kind:   KindCursor,
		Limit:  q.optimal,
		Handle: *handle,
		Tags:   p.Tags,
	})
}

// Retry halves the failed page and queues the contiguous pieces covering it
// at the front.
func (q *SmartQueue) Retry(p Params, cause error) error {
	if p.Limit <= 1 {
		pageSplitFailuresTotal.WithLabelValues(KindCursor.String()).Inc()
		return fmt.Errorf("%w (limit %d, handle %d): %w", ErrCannotSplit, p.Limit, p.Handle, cause)
	}

	newLimit := max(1, min(q.optimal, p.Limit/2))
	parts := splitRange(p, newLimit)
	q.pushFront(parts)
	q.optimal = newLimit

	pageSplitsTotal.WithLabelValues(KindCursor.String()).Inc()
	optimalLimit.Set(float64(newLimit))
	log.Warn().
		Err(cause).
		Int64("handle", p.Handle).
		Int("failed_limit", p.Limit).
		Int("optimal_limit", newLimit).
		Int("pieces", len(parts)).
		Msg("Page failed, retrying with smaller pages")

	return nil
}

func (q *SmartQueue) pushFront(parts []Params) {
	if len(parts) == 0 {
		return
	}
	q.queue = append(append(make([]Params, 0, len(parts)+len(q.queue)), parts...), q.queue...)
}

// splitRange cuts [handle, handle+limit) into contiguous pieces of size,
// the last one sized to the remainder.
func splitRange(p Params, size int) []Params {
	out := make([]Params, 0, (p.Limit+size-1)/size)
	for off := 0; off < p.Limit; off += size {
		piece := p
		piece.Handle = p.Handle + int64(off)
		piece.Limit = min(size, p.Limit-off)
		out = append(out, piece)
	}
	return out
}
