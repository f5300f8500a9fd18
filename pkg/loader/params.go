package loader

import (
	"fmt"

	"github.com/Sternrassler/space-sync/pkg/pagination"
	"github.com/Sternrassler/space-sync/pkg/tile"
	"github.com/go-spatial/geom"
)

// Mode selects how a collection is walked.
type Mode string

const (
	// ModeIterate pages through the whole collection with a cursor.
	ModeIterate Mode = "iterate"
	// ModeTile fetches the tiles covering an extent, centre first.
	ModeTile Mode = "tile"
	// ModeBBox fetches a grid of boxes over an extent, refining boxes that fail.
	ModeBBox Mode = "bbox"
)

const (
	DefaultLimit     = 100
	DefaultParallel  = 1
	DefaultTileLevel = 12
)

// Conn identifies the remote collection.
type Conn struct {
	Space string
}

// Meta describes the local layer a session fills.
type Meta struct {
	Name string
}

// Params configure one fetch session.
type Params struct {
	Mode Mode

	// Limit is the initial page size for iterate and bbox requests.
	Limit  int
	Handle int64

	// MaxFeatures caps the number of stored features. 0 means no ceiling.
	MaxFeatures int

	// Parallel is the number of concurrently running iterations.
	Parallel int

	Tags []string

	Extent     geom.Extent
	TileLevel  int
	TileSchema tile.Schema

	GridX, GridY int
	MaxDepth     int
}

func (p Params) withDefaults() Params {
	if p.Mode == "" {
		p.Mode = ModeIterate
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Parallel <= 0 {
		p.Parallel = DefaultParallel
	}
	if p.TileLevel <= 0 {
		p.TileLevel = DefaultTileLevel
	}
	if p.TileSchema == "" {
		p.TileSchema = tile.SchemaHere
	}
	if p.GridX <= 0 {
		p.GridX = 1
	}
	if p.GridY <= 0 {
		p.GridY = 1
	}
	return p
}

func (p Params) validate() error {
	if p.MaxFeatures < 0 {
		return fmt.Errorf("%w: max features %d", ErrInvalidParams, p.MaxFeatures)
	}
	if p.Handle < 0 {
		return fmt.Errorf("%w: handle %d", ErrInvalidParams, p.Handle)
	}
	switch p.Mode {
	case ModeIterate:
	case ModeTile, ModeBBox:
		if p.Extent.MinX() >= p.Extent.MaxX() || p.Extent.MinY() >= p.Extent.MaxY() {
			return fmt.Errorf("%w: empty extent %v", ErrInvalidParams, p.Extent)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidParams, p.Mode)
	}
	return nil
}

// queue builds the pagination queue for the session.
func (p Params) queue() (pagination.Queue, error) {
	switch p.Mode {
	case ModeTile:
		ids, err := tile.Decompose(p.Extent, p.TileLevel, p.TileSchema)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		return pagination.NewTileQueue(ids, string(p.TileSchema), p.Tags), nil
	case ModeBBox:
		return pagination.NewBBoxQueue(p.Extent, p.GridX, p.GridY, p.Limit, p.MaxDepth, p.Tags), nil
	default:
		return pagination.NewSmartQueue(p.Limit, p.Handle, p.Tags), nil
	}
}
