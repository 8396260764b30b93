package gt

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sides of a particle. A walk along a chain carries one of these as its
// direction sign; EndPoint extrapolates along it.
const (
	Successor   = +1
	Predecessor = -1
)

// ParticleID is a stable handle to a pooled particle.
// The low 32 bits select the pool slot, the high 32 bits carry the slot
// generation at allocation time. Removing a particle bumps the generation,
// so an old handle never aliases a particle that later reuses the slot.
type ParticleID uint64

// NoParticle is the zero handle. It never refers to a live particle and
// marks an empty predecessor/successor side.
const NoParticle ParticleID = 0

func makeID(slot, gen uint32) ParticleID {
	return ParticleID(uint64(gen)<<32 | uint64(slot))
}

func (id ParticleID) slot() uint32       { return uint32(id) }
func (id ParticleID) generation() uint32 { return uint32(id >> 32) }

func (id ParticleID) String() string {
	if id == NoParticle {
		return "p<none>"
	}
	return fmt.Sprintf("p%d.%d", id.slot(), id.generation())
}

// Particle is one position+direction sample along a candidate fibre.
// Values returned by ParticleGrid are snapshots; mutate through the grid.
type Particle struct {
	Position  r3.Vec
	Direction r3.Vec

	predecessor ParticleID
	successor   ParticleID

	length  float64 // endpoint extension, copied from the owning grid
	visited bool    // set only during ExportTracks
}

// Predecessor returns the linked predecessor, or NoParticle.
func (p *Particle) Predecessor() ParticleID { return p.predecessor }

// Successor returns the linked successor, or NoParticle.
func (p *Particle) Successor() ParticleID { return p.successor }

// HasPredecessor reports whether the predecessor side is linked.
func (p *Particle) HasPredecessor() bool { return p.predecessor != NoParticle }

// HasSuccessor reports whether the successor side is linked.
func (p *Particle) HasSuccessor() bool { return p.successor != NoParticle }

// Neighbour returns the particle linked on side alpha (Successor or Predecessor).
func (p *Particle) Neighbour(alpha int) ParticleID {
	if alpha == Successor {
		return p.successor
	}
	return p.predecessor
}

func (p *Particle) setNeighbour(alpha int, id ParticleID) {
	if alpha == Successor {
		p.successor = id
	} else {
		p.predecessor = id
	}
}

// EndPoint extrapolates the particle along its direction: Position + alpha*L*Direction.
// It is the terminal point of an exported track on the alpha side of a chain end.
func (p *Particle) EndPoint(alpha int) r3.Vec {
	return r3.Add(p.Position, r3.Scale(float64(alpha)*p.length, p.Direction))
}

func validSide(alpha int) bool {
	return alpha == Successor || alpha == Predecessor
}
