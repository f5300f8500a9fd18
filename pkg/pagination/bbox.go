package pagination

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/space-sync/pkg/tile"
	"github.com/go-spatial/geom"
	"github.com/rs/zerolog/log"
)

// DefaultMaxDepth bounds the recursive refinement of a failing bbox.
const DefaultMaxDepth = 6

// BBoxQueue splits a bounding box into an nx by ny grid of sub-boxes visited
// centre first. A failed sub-box is split again into nx by ny finer boxes.
type BBoxQueue struct {
	nx, ny   int
	limit    int
	maxDepth int
	tags     []string
	queue    []Params
}

// NewBBoxQueue creates a queue over the grid cells of ext.
func NewBBoxQueue(ext geom.Extent, nx, ny, limit, maxDepth int, tags []string) *BBoxQueue {
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	q := &BBoxQueue{nx: nx, ny: ny, limit: limit, maxDepth: maxDepth, tags: tags}
	q.queue = q.split(ext, 0)
	return q
}

// Len returns the number of queued boxes.
func (q *BBoxQueue) Len() int { return len(q.queue) }

// Next pops the next box.
func (q *BBoxQueue) Next() (Params, bool) {
	if len(q.queue) == 0 {
		return Params{}, false
	}
	p := q.queue[0]
	q.queue = q.queue[1:]
	return p, true
}

// Succeed is a no-op: bbox requests do not paginate.
func (q *BBoxQueue) Succeed(Params, *int64) {}

// Retry refines the failed box and queues the pieces at the front. Boxes
// without data are dropped.
func (q *BBoxQueue) Retry(p Params, cause error) error {
	if errors.Is(cause, ErrNoData) {
		return nil
	}
	if p.Depth >= q.maxDepth {
		pageSplitFailuresTotal.WithLabelValues(KindBBox.String()).Inc()
		return fmt.Errorf("%w (%s, depth %d): %w", ErrCannotSplit, p, p.Depth, cause)
	}

	parts := q.split(p.BBox, p.Depth+1)
	q.queue = append(parts, q.queue...)

	pageSplitsTotal.WithLabelValues(KindBBox.String()).Inc()
	log.Warn().
		Err(cause).
		Str("bbox", p.String()).
		Int("depth", p.Depth+1).
		Msg("BBox failed, retrying with smaller boxes")
	return nil
}

func (q *BBoxQueue) split(ext geom.Extent, depth int) []Params {
	w := (ext.MaxX() - ext.MinX()) / float64(q.nx)
	h := (ext.MaxY() - ext.MinY()) / float64(q.ny)

	cells := tile.Spiral(tile.Range{RowMin: 0, RowMax: q.ny - 1, ColMin: 0, ColMax: q.nx - 1})
	out := make([]Params, 0, len(cells))
	for _, c := range cells {
		minX := ext.MinX() + float64(c.Col)*w
		minY := ext.MinY() + float64(c.Row)*h
		out = append(out, Params{
			Kind:  KindBBox,
			BBox:  geom.Extent{minX, minY, minX + w, minY + h},
			Limit: q.limit,
			Depth: depth,
			Tags:  q.tags,
		})
	}
	return out
}
