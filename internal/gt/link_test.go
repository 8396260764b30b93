package gt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain adds particles along the x axis at y=z=5 and links each one's
// successor to the next one's predecessor.
func chain(t *testing.T, g *ParticleGrid, xs ...float64) []ParticleID {
	t.Helper()
	ids := make([]ParticleID, len(xs))
	for i, x := range xs {
		ids[i] = mustAdd(t, g, vec(x, 5, 5), xAxis)
	}
	for i := 1; i < len(ids); i++ {
		require.NoError(t, g.Link(ids[i-1], Successor, ids[i], Predecessor))
	}
	return ids
}

func TestLinkSetsBothSides(t *testing.T) {
	t.Parallel()
	g := newTestGrid(t)
	ids := chain(t, g, 1, 2)

	a, _ := g.Get(ids[0])
	b, _ := g.Get(ids[1])
	assert.Equal(t, ids[1], a.Successor())
	assert.Equal(t, NoParticle, a.Predecessor())
	assert.Equal(t, ids[0], b.Predecessor())
	assert.Equal(t, NoParticle, b.Successor())
}

func TestLinkErrors(t *testing.T) {
	t.Parallel()
	g := newTestGrid(t)
	ids := chain(t, g, 1, 2, 3)
	loose := mustAdd(t, g, vec(8, 8, 8), xAxis)
	gone := mustAdd(t, g, vec(8, 1, 1), xAxis)
	require.NoError(t, g.RemoveParticle(gone))

	tests := []struct {
		name    string
		a       ParticleID
		alphaA  int
		b       ParticleID
		alphaB  int
		wantErr error
	}{
		{"bad side", ids[0], 0, loose, Predecessor, ErrBadSide},
		{"self", loose, Successor, loose, Predecessor, ErrSelfLink},
		{"stale first", gone, Successor, loose, Predecessor, ErrStaleParticle},
		{"stale second", loose, Successor, gone, Predecessor, ErrStaleParticle},
		{"occupied first", ids[0], Successor, loose, Predecessor, ErrSideOccupied},
		{"occupied second", loose, Successor, ids[1], Predecessor, ErrSideOccupied},
		{"closes loop", ids[2], Successor, ids[0], Predecessor, ErrCycle},
		{"closes loop head to head", ids[0], Predecessor, ids[2], Successor, ErrCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Link(tt.a, tt.alphaA, tt.b, tt.alphaB)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	pl, _ := g.Get(loose)
	assert.False(t, pl.HasPredecessor())
	assert.False(t, pl.HasSuccessor())
}

func TestLinkHeadToHead(t *testing.T) {
	t.Parallel()
	g := newTestGrid(t)
	a := mustAdd(t, g, vec(1, 5, 5), xAxis)
	b := mustAdd(t, g, vec(2, 5, 5), vec(-1, 0, 0))

	require.NoError(t, g.Link(a, Successor, b, Successor))

	pa, _ := g.Get(a)
	pb, _ := g.Get(b)
	assert.Equal(t, b, pa.Successor())
	assert.Equal(t, a, pb.Successor())
}

func TestUnlink(t *testing.T) {
	t.Parallel()
	g := newTestGrid(t)
	ids := chain(t, g, 1, 2, 3)

	require.NoError(t, g.Unlink(ids[1], Successor))

	b, _ := g.Get(ids[1])
	c, _ := g.Get(ids[2])
	assert.False(t, b.HasSuccessor())
	assert.True(t, b.HasPredecessor())
	assert.False(t, c.HasPredecessor())

	// Free side: no-op.
	require.NoError(t, g.Unlink(ids[1], Successor))
	assert.ErrorIs(t, g.Unlink(ids[1], 2), ErrBadSide)

	// The broken chain no longer forms a loop when closed the other way.
	require.NoError(t, g.Link(ids[2], Successor, ids[0], Predecessor))
}

func TestUnlinkStale(t *testing.T) {
	t.Parallel()
	g := newTestGrid(t)
	id := mustAdd(t, g, vec(1, 1, 1), xAxis)
	require.NoError(t, g.RemoveParticle(id))

	assert.ErrorIs(t, g.Unlink(id, Successor), ErrStaleParticle)
}

func TestRemoveByOrdinalDetaches(t *testing.T) {
	t.Parallel()
	g := newTestGrid(t)
	ids := chain(t, g, 1, 2)

	require.NoError(t, g.Remove(0))

	b, ok := g.Get(ids[1])
	require.True(t, ok)
	assert.False(t, b.HasPredecessor())
	checkInvariants(t, g)
}
