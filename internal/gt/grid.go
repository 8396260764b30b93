package gt

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// ParticleGrid owns a particle population and indexes it spatially.
//
// Locking: structural operations (Add, Remove, RemoveParticle, Clear, Link,
// Unlink, ExportTracks) hold mu exclusively, which also covers the bucket
// edits they make. Shift and the read accessors hold mu shared; concurrent
// shifts are serialised per bucket by bucketLocks and per particle payload
// by particleLocks. Lock order is particle stripe, then bucket stripes in
// ascending order.
type ParticleGrid struct {
	geom   Geometry
	length float64

	mu      sync.RWMutex
	pool    pool
	list    []ParticleID   // live-list; order only matters for export and ordinal removal
	buckets [][]ParticleID // non-owning, one per cell

	bucketLocks   stripes
	particleLocks stripes

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewParticleGrid creates an empty grid with the given configuration.
func NewParticleGrid(cfg Config) (*ParticleGrid, error) {
	if err := cfg.Geometry.validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	if !(cfg.ParticleLength > 0) {
		return nil, fmt.Errorf("particle length must be positive, got %v", cfg.ParticleLength)
	}

	return &ParticleGrid{
		geom:          cfg.Geometry,
		length:        cfg.ParticleLength,
		buckets:       make([][]ParticleID, cfg.Geometry.NumCells()),
		bucketLocks:   newStripes(cfg.BucketStripes),
		particleLocks: newStripes(cfg.BucketStripes),
		rng:           rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Geometry returns the grid's coordinate mapping.
func (g *ParticleGrid) Geometry() Geometry { return g.geom }

// ParticleLength returns the endpoint extension used for exported tracks.
func (g *ParticleGrid) ParticleLength() float64 { return g.length }

// Add creates a particle at pos with direction dir and indexes it in the
// bucket containing pos and in the live-list.
func (g *ParticleGrid) Add(pos, dir r3.Vec) (ParticleID, error) {
	gidx, ok := g.geom.PosToIndex(pos)
	if !ok {
		return NoParticle, fmt.Errorf("add at %v: %w", pos, ErrOutOfBounds)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id, s := g.pool.alloc()
	s.p = Particle{Position: pos, Direction: dir, length: g.length}
	s.bucket = gidx
	s.listIdx = len(g.list)
	g.buckets[gidx] = append(g.buckets[gidx], id)
	g.list = append(g.list, id)

	tracef("add %v bucket=%d live=%d", id, gidx, len(g.list))
	return id, nil
}

// Remove deletes the particle at live-list ordinal idx. The last live-list
// entry moves into idx, so ordinals obtained earlier may no longer name the
// same particle; goroutines sharing a grid should use RemoveParticle.
func (g *ParticleGrid) Remove(idx int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if idx < 0 || idx >= len(g.list) {
		return fmt.Errorf("remove ordinal %d of %d: %w", idx, len(g.list), ErrIndexOutOfRange)
	}
	id := g.list[idx]
	g.removeLocked(id, g.pool.lookup(id))
	return nil
}

// RemoveParticle deletes the particle behind id.
func (g *ParticleGrid) RemoveParticle(id ParticleID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.pool.lookup(id)
	if s == nil {
		return fmt.Errorf("remove %v: %w", id, ErrStaleParticle)
	}
	g.removeLocked(id, s)
	return nil
}

func (g *ParticleGrid) removeLocked(id ParticleID, s *slot) {
	g.detachLocked(id, s)
	g.unbucket(id, s.bucket)

	last := len(g.list) - 1
	moved := g.list[last]
	g.list[s.listIdx] = moved
	g.pool.lookup(moved).listIdx = s.listIdx
	g.list = g.list[:last]

	tracef("remove %v bucket=%d live=%d", id, s.bucket, len(g.list))
	g.pool.release(id)
}

// detachLocked clears the back-links neighbours hold to id.
func (g *ParticleGrid) detachLocked(id ParticleID, s *slot) {
	for _, alpha := range [2]int{Successor, Predecessor} {
		n := s.p.Neighbour(alpha)
		if n == NoParticle {
			continue
		}
		if ns := g.pool.lookup(n); ns != nil {
			if ns.p.predecessor == id {
				ns.p.predecessor = NoParticle
			}
			if ns.p.successor == id {
				ns.p.successor = NoParticle
			}
		}
		s.p.setNeighbour(alpha, NoParticle)
	}
}

// unbucket removes id from bucket gidx. The caller holds either mu
// exclusively or the bucket's stripe.
func (g *ParticleGrid) unbucket(id ParticleID, gidx int) {
	b := g.buckets[gidx]
	for i, other := range b {
		if other == id {
			last := len(b) - 1
			b[i] = b[last]
			g.buckets[gidx] = b[:last]
			return
		}
	}
	opsf("invariant violated: %v missing from bucket %d (%d entries)", id, gidx, len(b))
	panic(fmt.Sprintf("gt: %v missing from bucket %d", id, gidx))
}

// Clear removes every particle. The grid is reusable afterwards.
func (g *ParticleGrid) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.buckets {
		g.buckets[i] = g.buckets[i][:0]
	}
	n := len(g.list)
	for _, id := range g.list {
		g.pool.release(id)
	}
	g.list = g.list[:0]

	diagf("cleared %d particles", n)
}

// Shift moves the particle behind id to pos with direction dir,
// re-bucketing it when the cell changes. Identity and live-list position
// are unchanged.
func (g *ParticleGrid) Shift(id ParticleID, pos, dir r3.Vec) error {
	gidx1, ok := g.geom.PosToIndex(pos)
	if !ok {
		return fmt.Errorf("shift %v to %v: %w", id, pos, ErrOutOfBounds)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	s := g.pool.lookup(id)
	if s == nil {
		return fmt.Errorf("shift %v: %w", id, ErrStaleParticle)
	}

	pslot := int(id.slot())
	g.particleLocks.lock(pslot)
	defer g.particleLocks.unlock(pslot)

	gidx0 := s.bucket
	if gidx0 != gidx1 {
		g.bucketLocks.lockPair(gidx0, gidx1)
		g.unbucket(id, gidx0)
		g.buckets[gidx1] = append(g.buckets[gidx1], id)
		g.bucketLocks.unlockPair(gidx0, gidx1)
		s.bucket = gidx1
	}
	s.p.Position = pos
	s.p.Direction = dir

	tracef("shift %v bucket %d->%d", id, gidx0, gidx1)
	return nil
}

// At returns a snapshot of the bucket at cell (x, y, z). ok is false when
// the cell lies outside the grid, which callers scanning a neighbourhood at
// the domain boundary should expect.
func (g *ParticleGrid) At(x, y, z int) (bucket []ParticleID, ok bool) {
	gidx, ok := g.geom.XYZToIndex(x, y, z)
	if !ok {
		return nil, false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.appendBucket(nil, gidx), true
}

// Neighbours appends to dst the particles indexed in the 3x3x3 block of
// cells centred on the cell containing pos, and returns the extended slice.
func (g *ParticleGrid) Neighbours(pos r3.Vec, dst []ParticleID) []ParticleID {
	if !finite(pos) {
		return dst
	}
	cx, cy, cz := g.geom.Cell(pos)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if gidx, ok := g.geom.XYZToIndex(cx+dx, cy+dy, cz+dz); ok {
					dst = g.appendBucket(dst, gidx)
				}
			}
		}
	}
	return dst
}

func (g *ParticleGrid) appendBucket(dst []ParticleID, gidx int) []ParticleID {
	g.bucketLocks.lock(gidx)
	defer g.bucketLocks.unlock(gidx)
	return append(dst, g.buckets[gidx]...)
}

// GetRandom draws a uniformly random live particle. It also reports the
// live-list ordinal that was drawn. ok is false when the grid is empty.
func (g *ParticleGrid) GetRandom() (id ParticleID, idx int, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.list) == 0 {
		return NoParticle, -1, false
	}
	g.rngMu.Lock()
	idx = g.rng.IntN(len(g.list))
	g.rngMu.Unlock()
	return g.list[idx], idx, true
}

// Get returns a snapshot of the particle behind id.
func (g *ParticleGrid) Get(id ParticleID) (Particle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := g.pool.lookup(id)
	if s == nil {
		return Particle{}, false
	}
	return g.snapshot(id, s), true
}

func (g *ParticleGrid) snapshot(id ParticleID, s *slot) Particle {
	pslot := int(id.slot())
	g.particleLocks.lock(pslot)
	defer g.particleLocks.unlock(pslot)
	return s.p
}

// IDAt returns the handle stored at live-list ordinal idx.
func (g *ParticleGrid) IDAt(idx int) (ParticleID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if idx < 0 || idx >= len(g.list) {
		return NoParticle, false
	}
	return g.list[idx], true
}

// Len returns the number of live particles.
func (g *ParticleGrid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.list)
}

// Range calls fn for every live particle in live-list order until fn
// returns false. fn sees a snapshot taken before the first call, so it may
// freely call back into the grid.
func (g *ParticleGrid) Range(fn func(id ParticleID, p Particle) bool) {
	g.mu.RLock()
	ids := make([]ParticleID, len(g.list))
	copy(ids, g.list)
	ps := make([]Particle, len(ids))
	for i, id := range ids {
		ps[i] = g.snapshot(id, g.pool.lookup(id))
	}
	g.mu.RUnlock()

	for i, id := range ids {
		if !fn(id, ps[i]) {
			return
		}
	}
}
