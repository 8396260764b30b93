package gt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocRelease(t *testing.T) {
	t.Parallel()
	var pl pool

	a, _ := pl.alloc()
	b, _ := pl.alloc()
	assert.NotEqual(t, NoParticle, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, pl.live())

	require.NotNil(t, pl.lookup(a))
	pl.release(a)
	assert.Nil(t, pl.lookup(a), "released handle must be stale")
	assert.Equal(t, 1, pl.live())

	// The freed slot is reused under a new generation.
	c, _ := pl.alloc()
	assert.Equal(t, a.slot(), c.slot())
	assert.NotEqual(t, a, c)
	assert.Nil(t, pl.lookup(a))
	assert.NotNil(t, pl.lookup(c))
}

func TestPoolLookupRejectsUnknown(t *testing.T) {
	t.Parallel()
	var pl pool

	assert.Nil(t, pl.lookup(NoParticle))
	assert.Nil(t, pl.lookup(makeID(5, 1)), "slot never allocated")

	id, _ := pl.alloc()
	assert.Nil(t, pl.lookup(makeID(id.slot(), id.generation()+1)))
}

func TestPoolDoubleReleaseIsHarmless(t *testing.T) {
	t.Parallel()
	var pl pool

	id, _ := pl.alloc()
	pl.release(id)
	pl.release(id)
	assert.Len(t, pl.free, 1)
}

func TestParticleIDString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "p<none>", NoParticle.String())
	assert.Equal(t, "p3.2", makeID(3, 2).String())
}
