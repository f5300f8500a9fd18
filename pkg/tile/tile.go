package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when a tile id cannot be parsed.
var ErrInvalidID = errors.New("invalid tile id")

// MaxLevel is the deepest zoom level accepted by Bounds.
const MaxLevel = 30

// Tile addresses one cell of the tile grid.
type Tile struct {
	Level int
	Col   int
	Row   int
}

// ID returns the "{level}_{col}_{row}" form of the tile.
func (t Tile) ID() string {
	return fmt.Sprintf("%d_%d_%d", t.Level, t.Col, t.Row)
}

// String implements fmt.Stringer.
func (t Tile) String() string {
	return t.ID()
}

// Quadkey returns the web-mercator quadkey of the tile.
// Level 0 has the empty quadkey.
func (t Tile) Quadkey() string {
	var b strings.Builder
	b.Grow(t.Level)
	for i := t.Level; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if t.Col&mask != 0 {
			digit++
		}
		if t.Row&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

// ParseID parses a "{level}_{col}_{row}" tile id.
func ParseID(id string) (Tile, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return Tile{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Tile{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
		nums[i] = n
	}

	return Tile{Level: nums[0], Col: nums[1], Row: nums[2]}, nil
}
