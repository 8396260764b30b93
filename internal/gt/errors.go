package gt

import "errors"

var (
	// ErrOutOfBounds is returned when a position maps outside the grid.
	ErrOutOfBounds = errors.New("gt: position outside grid")
	// ErrIndexOutOfRange is returned for a live-list ordinal that does not exist.
	ErrIndexOutOfRange = errors.New("gt: live-list index out of range")
	// ErrStaleParticle is returned for a handle whose particle has been removed.
	ErrStaleParticle = errors.New("gt: stale particle handle")
	// ErrSideOccupied is returned by Link when the requested side already has a neighbour.
	ErrSideOccupied = errors.New("gt: particle side already linked")
	// ErrSelfLink is returned by Link when both ends are the same particle.
	ErrSelfLink = errors.New("gt: cannot link particle to itself")
	// ErrCycle is returned by Link when the two particles already share a chain.
	ErrCycle = errors.New("gt: link would close a cycle")
	// ErrBadSide is returned for a side other than Successor or Predecessor.
	ErrBadSide = errors.New("gt: side must be +1 or -1")
)
