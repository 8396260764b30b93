package gt

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// testGeometry is a 10x10x10 grid of unit cells with cell centres at
// integer coordinates 0..9.
var testGeometry = Geometry{
	Origin:    r3.Vec{},
	VoxelSize: r3.Vec{X: 1, Y: 1, Z: 1},
	Dims:      [3]int{10, 10, 10},
}

func newTestGrid(t *testing.T) *ParticleGrid {
	t.Helper()
	g, err := NewParticleGrid(Config{
		Geometry:       testGeometry,
		ParticleLength: 1,
		Seed:           7,
		BucketStripes:  8,
	})
	require.NoError(t, err)
	return g
}

func vec(x, y, z float64) r3.Vec { return r3.Vec{X: x, Y: y, Z: z} }

var xAxis = vec(1, 0, 0)

func mustAdd(t *testing.T, g *ParticleGrid, pos, dir r3.Vec) ParticleID {
	t.Helper()
	id, err := g.Add(pos, dir)
	require.NoError(t, err)
	return id
}

// checkInvariants asserts that every live particle sits in exactly one
// live-list slot and exactly one bucket, the one its position maps to.
func checkInvariants(t *testing.T, g *ParticleGrid) {
	t.Helper()
	g.mu.RLock()
	defer g.mu.RUnlock()

	require.Equal(t, len(g.list), g.pool.live(), "pool and live-list disagree")

	total := 0
	for _, b := range g.buckets {
		total += len(b)
	}
	require.Equal(t, len(g.list), total, "bucket entries vs live particles")

	for i, id := range g.list {
		s := g.pool.lookup(id)
		require.NotNil(t, s, "live-list holds stale %v", id)
		require.Equal(t, i, s.listIdx, "listIdx of %v", id)
		require.False(t, s.p.visited, "%v left visited", id)

		want, ok := g.geom.PosToIndex(s.p.Position)
		require.True(t, ok)
		require.Equal(t, want, s.bucket, "bucket of %v", id)

		n := 0
		for _, other := range g.buckets[s.bucket] {
			if other == id {
				n++
			}
		}
		require.Equal(t, 1, n, "%v appears %d times in its bucket", id, n)
	}
}

// collect returns a writer that records deep copies of every track.
func collect(tracks *[][]r3.Vec) TrackWriter {
	return TrackWriterFunc(func(points []r3.Vec) error {
		*tracks = append(*tracks, append([]r3.Vec(nil), points...))
		return nil
	})
}
