package gt

// slot is one arena entry. The particle payload stays in place for the
// lifetime of the slot; only the generation changes when it is recycled.
type slot struct {
	p       Particle
	gen     uint32
	live    bool
	listIdx int // position in the live-list
	bucket  int // bucket currently indexing the particle
}

// pool is the arena owning every particle. It is not safe for concurrent
// use; ParticleGrid serialises alloc/release under its structural lock.
type pool struct {
	slots []slot
	free  []uint32
}

// alloc returns a fresh handle and its slot. The returned pointer is valid
// until the next alloc (the slot slice may grow).
func (pl *pool) alloc() (ParticleID, *slot) {
	var idx uint32
	if n := len(pl.free); n > 0 {
		idx = pl.free[n-1]
		pl.free = pl.free[:n-1]
	} else {
		idx = uint32(len(pl.slots))
		pl.slots = append(pl.slots, slot{gen: 1})
	}
	s := &pl.slots[idx]
	s.live = true
	return makeID(idx, s.gen), s
}

// release returns the slot behind id to the free list and invalidates id.
func (pl *pool) release(id ParticleID) {
	s := pl.lookup(id)
	if s == nil {
		return
	}
	s.live = false
	s.p = Particle{}
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	pl.free = append(pl.free, id.slot())
}

// lookup resolves id to its slot, or nil if id is stale or was never issued.
func (pl *pool) lookup(id ParticleID) *slot {
	idx := id.slot()
	if id == NoParticle || int(idx) >= len(pl.slots) {
		return nil
	}
	s := &pl.slots[idx]
	if !s.live || s.gen != id.generation() {
		return nil
	}
	return s
}

func (pl *pool) live() int {
	return len(pl.slots) - len(pl.free)
}
