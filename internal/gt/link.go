package gt

import "fmt"

// Link connects side alphaA of a to side alphaB of b. Links carry no
// canonical orientation: a successor may point at a particle whose
// successor points back. Both sides must be free and the particles must
// not already belong to the same chain, so chains stay open.
func (g *ParticleGrid) Link(a ParticleID, alphaA int, b ParticleID, alphaB int) error {
	if !validSide(alphaA) || !validSide(alphaB) {
		return ErrBadSide
	}
	if a == b {
		return fmt.Errorf("link %v: %w", a, ErrSelfLink)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sa := g.pool.lookup(a)
	if sa == nil {
		return fmt.Errorf("link %v: %w", a, ErrStaleParticle)
	}
	sb := g.pool.lookup(b)
	if sb == nil {
		return fmt.Errorf("link %v: %w", b, ErrStaleParticle)
	}
	if sa.p.Neighbour(alphaA) != NoParticle {
		return fmt.Errorf("link %v side %+d: %w", a, alphaA, ErrSideOccupied)
	}
	if sb.p.Neighbour(alphaB) != NoParticle {
		return fmt.Errorf("link %v side %+d: %w", b, alphaB, ErrSideOccupied)
	}
	// a's alphaA side is free, so its whole chain lies on the other side.
	if g.reachesLocked(a, sa, -alphaA, b) {
		return fmt.Errorf("link %v to %v: %w", a, b, ErrCycle)
	}

	sa.p.setNeighbour(alphaA, b)
	sb.p.setNeighbour(alphaB, a)
	tracef("link %v%+d <-> %v%+d", a, alphaA, b, alphaB)
	return nil
}

// Unlink removes the link on side alpha of a, clearing the back-link held
// by the neighbour. Unlinking a free side is a no-op.
func (g *ParticleGrid) Unlink(a ParticleID, alpha int) error {
	if !validSide(alpha) {
		return ErrBadSide
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	sa := g.pool.lookup(a)
	if sa == nil {
		return fmt.Errorf("unlink %v: %w", a, ErrStaleParticle)
	}
	n := sa.p.Neighbour(alpha)
	if n == NoParticle {
		return nil
	}
	if ns := g.pool.lookup(n); ns != nil {
		if ns.p.predecessor == a {
			ns.p.predecessor = NoParticle
		} else if ns.p.successor == a {
			ns.p.successor = NoParticle
		}
	}
	sa.p.setNeighbour(alpha, NoParticle)
	tracef("unlink %v%+d from %v", a, alpha, n)
	return nil
}

// step follows side alpha of cur. It returns the next particle and the
// walk's direction sign re-derived at that particle: Successor when next
// was entered through its predecessor side, Predecessor otherwise.
func (g *ParticleGrid) step(cur ParticleID, cs *slot, alpha int) (next ParticleID, ns *slot, nextAlpha int, ok bool) {
	next = cs.p.Neighbour(alpha)
	if next == NoParticle {
		return NoParticle, nil, alpha, false
	}
	ns = g.pool.lookup(next)
	if ns == nil {
		opsf("%v links to stale %v", cur, next)
		return NoParticle, nil, alpha, false
	}
	if ns.p.predecessor == cur {
		return next, ns, Successor, true
	}
	return next, ns, Predecessor, true
}

// reachesLocked walks from start along alpha and reports whether target is
// met. A walk longer than the population is treated as reaching it.
func (g *ParticleGrid) reachesLocked(start ParticleID, s *slot, alpha int, target ParticleID) bool {
	cur, cs := start, s
	for steps := 0; ; steps++ {
		next, ns, nextAlpha, ok := g.step(cur, cs, alpha)
		if !ok {
			return false
		}
		if next == target {
			return true
		}
		if steps > len(g.list) {
			opsf("chain walk from %v exceeded %d steps", start, len(g.list))
			return true
		}
		cur, cs, alpha = next, ns, nextAlpha
	}
}
