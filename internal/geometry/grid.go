package geometry

import "math"

// Point is an integer map coordinate in pixels.
type Point struct {
	X int32 `cbor:"1,keyasint" json:"x"`
	Y int32 `cbor:"2,keyasint" json:"y"`
}

// Position is where a user stands and how it is moving.
type Position struct {
	X         int32     `cbor:"1,keyasint" json:"x"`
	Y         int32     `cbor:"2,keyasint" json:"y"`
	Direction Direction `cbor:"3,keyasint" json:"direction"`
	Moving    bool      `cbor:"4,keyasint,omitempty" json:"moving"`
}

// Point drops the facing information.
func (p Position) Point() Point { return Point{X: p.X, Y: p.Y} }

// Viewport is the visible rectangle of a client, in pixels.
type Viewport struct {
	Left   int32 `cbor:"1,keyasint" json:"left"`
	Top    int32 `cbor:"2,keyasint" json:"top"`
	Right  int32 `cbor:"3,keyasint" json:"right"`
	Bottom int32 `cbor:"4,keyasint" json:"bottom"`
}

// Valid reports whether the rectangle is not inverted.
func (v Viewport) Valid() bool {
	return v.Left <= v.Right && v.Top <= v.Bottom
}

// Cell identifies one zone of the grid.
type Cell struct {
	X int32 `cbor:"1,keyasint" json:"x"`
	Y int32 `cbor:"2,keyasint" json:"y"`
}

// CellOf returns the cell containing (x, y) for square cells of the given
// size.
func CellOf(x, y, size int32) Cell {
	return Cell{X: floorDiv(x, size), Y: floorDiv(y, size)}
}

// CellAt is CellOf for fractional coordinates such as group centroids.
func CellAt(x, y float64, size int32) Cell {
	return Cell{
		X: int32(math.Floor(x / float64(size))),
		Y: int32(math.Floor(y / float64(size))),
	}
}

// CellCount returns how many cells the viewport overlaps. It is zero for
// an inverted viewport.
func (v Viewport) CellCount(size int32) int64 {
	if !v.Valid() {
		return 0
	}
	topLeft := CellOf(v.Left, v.Top, size)
	bottomRight := CellOf(v.Right, v.Bottom, size)
	return (int64(bottomRight.X) - int64(topLeft.X) + 1) * (int64(bottomRight.Y) - int64(topLeft.Y) + 1)
}

// Cells returns every cell the viewport overlaps, row by row. Callers bound
// the viewport with CellCount first; an inverted viewport has no cells.
func (v Viewport) Cells(size int32) []Cell {
	n := v.CellCount(size)
	if n == 0 {
		return nil
	}
	topLeft := CellOf(v.Left, v.Top, size)
	bottomRight := CellOf(v.Right, v.Bottom, size)

	cells := make([]Cell, 0, min(n, maxCellsPrealloc))
	for y := int64(topLeft.Y); y <= int64(bottomRight.Y); y++ {
		for x := int64(topLeft.X); x <= int64(bottomRight.X); x++ {
			cells = append(cells, Cell{X: int32(x), Y: int32(y)})
		}
	}
	return cells
}

const maxCellsPrealloc = 1024

// Neighborhood returns the inclusive cell range a circle of the given radius
// around (x, y) can touch.
func Neighborhood(x, y, radius float64, size int32) (min, max Cell) {
	return CellAt(x-radius, y-radius, size), CellAt(x+radius, y+radius, size)
}

// Distance is the euclidean distance between two points.
func Distance(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x1-x2, y1-y2)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
