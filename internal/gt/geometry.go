package gt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Geometry maps physical positions onto the bucket grid.
// Cell centres sit at Origin + (x, y, z)*VoxelSize for integer x, y, z.
type Geometry struct {
	Origin    r3.Vec
	VoxelSize r3.Vec
	Dims      [3]int
}

// NumCells returns the number of buckets covered by the geometry.
func (g Geometry) NumCells() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Cell returns the integer cell coordinates nearest to pos.
// The result is not bounds-checked; use Contains or PosToIndex for that.
func (g Geometry) Cell(pos r3.Vec) (x, y, z int) {
	x = int(math.Round((pos.X - g.Origin.X) / g.VoxelSize.X))
	y = int(math.Round((pos.Y - g.Origin.Y) / g.VoxelSize.Y))
	z = int(math.Round((pos.Z - g.Origin.Z) / g.VoxelSize.Z))
	return x, y, z
}

// Contains reports whether (x, y, z) addresses a cell inside the grid.
func (g Geometry) Contains(x, y, z int) bool {
	return x >= 0 && x < g.Dims[0] &&
		y >= 0 && y < g.Dims[1] &&
		z >= 0 && z < g.Dims[2]
}

// XYZToIndex returns the flat bucket index of cell (x, y, z).
// ok is false when the cell lies outside the grid.
func (g Geometry) XYZToIndex(x, y, z int) (idx int, ok bool) {
	if !g.Contains(x, y, z) {
		return -1, false
	}
	return x + g.Dims[0]*(y+g.Dims[1]*z), true
}

// PosToIndex returns the flat bucket index of the cell containing pos.
// ok is false for positions outside the grid or with non-finite coordinates.
func (g Geometry) PosToIndex(pos r3.Vec) (idx int, ok bool) {
	if !finite(pos) {
		return -1, false
	}
	return g.XYZToIndex(g.Cell(pos))
}

func (g Geometry) validate() error {
	for i, d := range g.Dims {
		if d <= 0 {
			return fmt.Errorf("dims[%d] must be positive, got %d", i, d)
		}
	}
	v := g.VoxelSize
	if !(v.X > 0 && v.Y > 0 && v.Z > 0) || !finite(v) {
		return fmt.Errorf("voxel size must be positive and finite, got %v", v)
	}
	if !finite(g.Origin) {
		return fmt.Errorf("origin must be finite, got %v", g.Origin)
	}
	return nil
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
