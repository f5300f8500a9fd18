package tile

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-spatial/geom"
)

// Schema selects the projection and grid layout.
type Schema string

const (
	// SchemaHere is the linear equirectangular grid.
	SchemaHere Schema = "here"

	// SchemaWeb is the spherical mercator grid.
	SchemaWeb Schema = "web"
)

// MaxLatitude is the latitude limit of the spherical mercator projection.
const MaxLatitude = 85.05112878

var (
	// ErrUnknownSchema is returned for schemas other than SchemaHere and SchemaWeb.
	ErrUnknownSchema = errors.New("unknown tile schema")

	// ErrInvalidExtent is returned when min coordinates exceed max coordinates.
	ErrInvalidExtent = errors.New("invalid extent")
)

// Range is an inclusive block of grid cells.
type Range struct {
	RowMin, RowMax int
	ColMin, ColMax int
}

// Rows returns the number of rows in the range.
func (r Range) Rows() int { return r.RowMax - r.RowMin + 1 }

// Cols returns the number of columns in the range.
func (r Range) Cols() int { return r.ColMax - r.ColMin + 1 }

// Contains reports whether the cell lies inside the range.
func (r Range) Contains(row, col int) bool {
	return row >= r.RowMin && row <= r.RowMax && col >= r.ColMin && col <= r.ColMax
}

// GridSize returns the number of rows and columns at the given level.
func GridSize(level int, schema Schema) (rows, cols int, err error) {
	if level < 0 || level > MaxLevel {
		return 0, 0, fmt.Errorf("level %d out of range [0, %d]", level, MaxLevel)
	}
	switch schema {
	case SchemaHere:
		return 1 << level, 1 << (level + 1), nil
	case SchemaWeb:
		return 1 << level, 1 << level, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownSchema, schema)
	}
}

// percent maps a coordinate to its fractional position in the grid. y grows
// in the row direction of the schema.
func percent(lon, lat float64, schema Schema) (x, y float64) {
	x = (lon + 180) / 360
	switch schema {
	case SchemaWeb:
		lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
		phi := lat * math.Pi / 180
		y = 0.5 - math.Log(math.Tan(math.Pi/4+phi/2))/(2*math.Pi)
	default:
		y = (lat + 90) / 180
	}
	return x, y
}

func cell(p float64, n int) int {
	i := int(math.Floor(p * float64(n)))
	if i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Bounds returns the clamped block of cells covering the extent.
func Bounds(ext geom.Extent, level int, schema Schema) (Range, error) {
	rows, cols, err := GridSize(level, schema)
	if err != nil {
		return Range{}, err
	}
	if ext.MinX() > ext.MaxX() || ext.MinY() > ext.MaxY() {
		return Range{}, fmt.Errorf("%w: %v", ErrInvalidExtent, ext)
	}

	x1, y1 := percent(ext.MinX(), ext.MinY(), schema)
	x2, y2 := percent(ext.MaxX(), ext.MaxY(), schema)

	r1, r2 := cell(y1, rows), cell(y2, rows)
	if r1 > r2 {
		r1, r2 = r2, r1
	}

	return Range{
		RowMin: r1,
		RowMax: r2,
		ColMin: cell(x1, cols),
		ColMax: cell(x2, cols),
	}, nil
}

// Decompose returns the ids of all tiles covering the extent, centre first.
func Decompose(ext geom.Extent, level int, schema Schema) ([]string, error) {
	r, err := Bounds(ext, level, schema)
	if err != nil {
		return nil, err
	}

	cells := Spiral(r)
	ids := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = Tile{Level: level, Col: c.Col, Row: c.Row}.ID()
	}
	return ids, nil
}
