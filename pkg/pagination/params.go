package pagination

import (
	"errors"
	"fmt"

	"github.com/go-spatial/geom"
)

var (
	// ErrCannotSplit is returned when a failed request cannot be retried with
	// a smaller size.
	ErrCannotSplit = errors.New("request cannot be split further")

	// ErrNoData marks a failure caused by a tile without data. Transport
	// errors match it via errors.Is.
	ErrNoData = errors.New("no data in tile")
)

// Kind selects the request form.
type Kind int

const (
	// KindCursor requests {limit, handle}.
	KindCursor Kind = iota
	// KindTile requests {tile_id, tile_schema}.
	KindTile
	// KindBBox requests {bbox, limit}.
	KindBBox
)

func (k Kind) String() string {
	switch k {
	case KindCursor:
		return "cursor"
	case KindTile:
		return "tile"
	case KindBBox:
		return "bbox"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Params are the request parameters of one page. Tags are passed through to
// the transport untouched.
type Params struct {
	Kind Kind

	Limit  int
	Handle int64

	TileID     string
	TileSchema string

	BBox  geom.Extent
	Depth int

	Tags []string
}

func (p Params) String() string {
	switch p.Kind {
	case KindTile:
		return fmt.Sprintf("tile %s/%s", p.TileSchema, p.TileID)
	case KindBBox:
		return fmt.Sprintf("bbox %.6f,%.6f,%.6f,%.6f limit %d", p.BBox[0], p.BBox[1], p.BBox[2], p.BBox[3], p.Limit)
	default:
		return fmt.Sprintf("limit %d handle %d", p.Limit, p.Handle)
	}
}

// Queue hands out request parameters and absorbs their outcomes.
type Queue interface {
	// Next pops the next request, if any.
	Next() (Params, bool)

	// Len returns the number of queued requests.
	Len() int

	// Succeed records a successful request. handle is the response's
	// pagination cursor, nil when the response carried none.
	Succeed(p Params, handle *int64)

	// Retry absorbs a failed request. A nil return means the failure was
	// absorbed (requeued or ignored); otherwise the error is terminal.
	Retry(p Params, cause error) error
}
