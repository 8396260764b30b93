package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fibretrack/internal/config"
	"github.com/banshee-data/fibretrack/internal/gt"
)

// samplerStats counts proposals made by the synthetic sampler.
type samplerStats struct {
	Seeded          int64
	ShiftsAccepted  int64
	ShiftsRejected  int64
	Removed         int64
	RemovesRejected int64
}

func (s *samplerStats) String() string {
	return fmt.Sprintf("seeded=%d shifts=%d/%d removed=%d/%d",
		s.Seeded,
		s.ShiftsAccepted, s.ShiftsAccepted+s.ShiftsRejected,
		s.Removed, s.Removed+s.RemovesRejected)
}

// sampler drives a ParticleGrid the way a tracking sampler would: it lays
// down straight jittered fibres, then runs concurrent workers proposing
// shifts and removals against the shared grid.
type sampler struct {
	g     *gt.ParticleGrid
	cfg   *config.GridConfig
	stats samplerStats
}

func newSampler(g *gt.ParticleGrid, cfg *config.GridConfig) *sampler {
	return &sampler{g: g, cfg: cfg}
}

// bounds returns the min and max corners of the grid's cell centres.
func (s *sampler) bounds() (lo, hi r3.Vec) {
	geom := s.g.Geometry()
	lo = geom.Origin
	hi = r3.Vec{
		X: geom.Origin.X + float64(geom.Dims[0]-1)*geom.VoxelSize.X,
		Y: geom.Origin.Y + float64(geom.Dims[1]-1)*geom.VoxelSize.Y,
		Z: geom.Origin.Z + float64(geom.Dims[2]-1)*geom.VoxelSize.Z,
	}
	return lo, hi
}

func (s *sampler) randomPoint(rng *rand.Rand) r3.Vec {
	lo, hi := s.bounds()
	return r3.Vec{
		X: lo.X + rng.Float64()*(hi.X-lo.X),
		Y: lo.Y + rng.Float64()*(hi.Y-lo.Y),
		Z: lo.Z + rng.Float64()*(hi.Z-lo.Z),
	}
}

func randomDirection(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if n := r3.Norm(v); n > 1e-9 {
			return r3.Scale(1/n, v)
		}
	}
}

func jitter(rng *rand.Rand, sigma float64) r3.Vec {
	return r3.Vec{X: rng.NormFloat64() * sigma, Y: rng.NormFloat64() * sigma, Z: rng.NormFloat64() * sigma}
}

// seedFibres adds the configured number of fibres, each a chain of particles
// stepped along a random direction and linked successor to predecessor.
// A fibre stops early when it leaves the grid.
func (s *sampler) seedFibres() error {
	seed := s.cfg.GetSeed()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	step := s.cfg.GetStep()
	sigma := s.cfg.GetJitter()

	for f := 0; f < s.cfg.GetFibres(); f++ {
		start := s.randomPoint(rng)
		dir := randomDirection(rng)

		prev := gt.NoParticle
		for k := 0; k < s.cfg.GetParticlesPerFibre(); k++ {
			pos := r3.Add(r3.Add(start, r3.Scale(float64(k)*step, dir)), jitter(rng, sigma))
			id, err := s.g.Add(pos, dir)
			if errors.Is(err, gt.ErrOutOfBounds) {
				break
			}
			if err != nil {
				return fmt.Errorf("seed fibre %d: %w", f, err)
			}
			s.stats.Seeded++
			if prev != gt.NoParticle {
				if err := s.g.Link(prev, gt.Successor, id, gt.Predecessor); err != nil {
					return fmt.Errorf("link fibre %d particle %d: %w", f, k, err)
				}
			}
			prev = id
		}
	}
	return nil
}

// run splits the shift and removal proposals across the configured number
// of workers. Each worker has its own RNG; the grid is shared.
func (s *sampler) run(ctx context.Context) error {
	workers := max(s.cfg.GetWorkers(), 1)
	shifts := s.cfg.GetShiftProposals()
	removes := s.cfg.GetRemoveProposals()
	seed := s.cfg.GetSeed()

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		nShift := share(shifts, workers, w)
		nRemove := share(removes, workers, w)
		rng := rand.New(rand.NewPCG(seed, uint64(w)+100))
		eg.Go(func() error {
			return s.work(ctx, rng, nShift, nRemove)
		})
	}
	return eg.Wait()
}

// share returns worker w's portion of n proposals.
func share(n, workers, w int) int {
	q := n / workers
	if w < n%workers {
		q++
	}
	return q
}

func (s *sampler) work(ctx context.Context, rng *rand.Rand, nShift, nRemove int) error {
	sigma := s.cfg.GetJitter()
	total := nShift + nRemove
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Interleave removals evenly among the shifts.
		remove := nRemove > 0 && rng.IntN(total-i) < nRemove
		id, _, ok := s.g.GetRandom()
		if !ok {
			return nil
		}

		if remove {
			nRemove--
			if err := s.g.RemoveParticle(id); err != nil {
				if !errors.Is(err, gt.ErrStaleParticle) {
					return err
				}
				atomic.AddInt64(&s.stats.RemovesRejected, 1)
				continue
			}
			atomic.AddInt64(&s.stats.Removed, 1)
			continue
		}

		p, ok := s.g.Get(id)
		if !ok {
			atomic.AddInt64(&s.stats.ShiftsRejected, 1)
			continue
		}
		pos := r3.Add(p.Position, jitter(rng, sigma))
		dir := r3.Add(p.Direction, jitter(rng, sigma))
		if n := r3.Norm(dir); n > 1e-9 && !math.IsNaN(n) {
			dir = r3.Scale(1/n, dir)
		} else {
			dir = p.Direction
		}

		err := s.g.Shift(id, pos, dir)
		switch {
		case err == nil:
			atomic.AddInt64(&s.stats.ShiftsAccepted, 1)
		case errors.Is(err, gt.ErrStaleParticle), errors.Is(err, gt.ErrOutOfBounds):
			atomic.AddInt64(&s.stats.ShiftsRejected, 1)
		default:
			return err
		}
	}
	return nil
}
