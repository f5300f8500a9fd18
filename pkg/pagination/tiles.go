package pagination

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// TileQueue hands out a fixed list of tiles once. Failed tiles are not
// retried.
type TileQueue struct {
	schema string
	tags   []string
	ids    []string
}

// NewTileQueue creates a queue over tile ids in the given order.
func NewTileQueue(ids []string, schema string, tags []string) *TileQueue {
	return &TileQueue{
		schema: schema,
		tags:   tags,
		ids:    append([]string(nil), ids...),
	}
}

// Len returns the number of tiles not yet handed out.
func (q *TileQueue) Len() int { return len(q.ids) }

// Next pops the next tile.
func (q *TileQueue) Next() (Params, bool) {
	if len(q.ids) == 0 {
		return Params{}, false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return Params{Kind: KindTile, TileID: id, TileSchema: q.schema, Tags: q.tags}, true
}

// Succeed is a no-op: tiles do not paginate.
func (q *TileQueue) Succeed(Params, *int64) {}

// Retry ignores tiles without data and surfaces every other failure.
func (q *TileQueue) Retry(p Params, cause error) error {
	if errors.Is(cause, ErrNoData) {
		log.Debug().Str("tile", p.TileID).Msg("Tile has no data, skipping")
		return nil
	}
	pageSplitFailuresTotal.WithLabelValues(KindTile.String()).Inc()
	return fmt.Errorf("tile %s: %w", p.TileID, cause)
}
