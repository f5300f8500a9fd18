package tile

// Cell is a grid position.
type Cell struct {
	Row int
	Col int
}

// right, up, left, down
var spiralDirs = [4][2]int{{0, 1}, {-1, 0}, {0, -1}, {1, 0}}

// Spiral walks the range in a square spiral starting at its centre cell and
// returns every cell exactly once. Cells outside the range on one axis are
// skipped until the spiral has grown wide enough on the other.
func Spiral(r Range) []Cell {
	if r.Rows() <= 0 || r.Cols() <= 0 {
		return nil
	}

	total := r.Rows() * r.Cols()
	out := make([]Cell, 0, total)

	row := (r.RowMin + r.RowMax) / 2
	col := (r.ColMin + r.ColMax) / 2
	out = append(out, Cell{Row: row, Col: col})

	leg := 1
	for turn := 0; len(out) < total; turn++ {
		d := spiralDirs[turn%4]
		for i := 0; i < leg && len(out) < total; i++ {
			row += d[0]
			col += d[1]
			if r.Contains(row, col) {
				out = append(out, Cell{Row: row, Col: col})
			}
		}
		if turn%2 == 1 {
			leg++
		}
	}

	return out
}
