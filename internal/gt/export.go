package gt

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// TrackWriter consumes exported tracks, one ordered polyline per call.
// The slice is reused between calls; implementations must copy what they keep.
type TrackWriter interface {
	WriteTrack(points []r3.Vec) error
}

// TrackWriterFunc adapts a function to TrackWriter.
type TrackWriterFunc func(points []r3.Vec) error

// WriteTrack calls f(points).
func (f TrackWriterFunc) WriteTrack(points []r3.Vec) error { return f(points) }

// ExportStats summarises one ExportTracks call.
type ExportStats struct {
	Particles  int     // live particles scanned
	Tracks     int     // tracks handed to the writer
	Points     int     // points across all tracks, endpoints included
	Discarded  int     // single-point chains dropped
	MeanLength float64 // mean polyline arc length
	MaxLength  float64 // longest polyline arc length
}

// ExportTracks reconstructs every maximal chain and hands it to w as a
// polyline: the far end of the successor walk, back through the seed, to
// the far end of the predecessor walk, bracketed by extrapolated endpoints.
// Chains are seeded in live-list order. The whole call holds the structural
// lock. If w fails the scan stops and the error is returned; visited flags
// are reset either way.
func (g *ParticleGrid) ExportTracks(w TrackWriter) (ExportStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.resetVisitedLocked()

	stats := ExportStats{Particles: len(g.list)}
	var (
		track   []r3.Vec
		lengths []float64
	)

	for _, seed := range g.list {
		ss := g.pool.lookup(seed)
		if ss.p.visited {
			continue
		}
		ss.p.visited = true

		track = append(track[:0], ss.p.Position)
		track = g.walkLocked(track, seed, ss, Successor)
		slices.Reverse(track)
		track = g.walkLocked(track, seed, ss, Predecessor)

		if len(track) <= 1 {
			stats.Discarded++
			continue
		}
		if err := w.WriteTrack(track); err != nil {
			return stats, fmt.Errorf("write track %d: %w", stats.Tracks, err)
		}
		stats.Tracks++
		stats.Points += len(track)
		lengths = append(lengths, ArcLength(track))
	}

	if len(lengths) > 0 {
		stats.MeanLength = stat.Mean(lengths, nil)
		stats.MaxLength = floats.Max(lengths)
	}
	diagf("exported %d tracks (%d points) from %d particles, mean length %.3f",
		stats.Tracks, stats.Points, stats.Particles, stats.MeanLength)
	return stats, nil
}

// walkLocked appends the positions met walking from cur along alpha, then
// the extrapolated endpoint of the last particle reached.
func (g *ParticleGrid) walkLocked(track []r3.Vec, cur ParticleID, cs *slot, alpha int) []r3.Vec {
	for {
		next, ns, nextAlpha, ok := g.step(cur, cs, alpha)
		if !ok {
			break
		}
		if ns.p.visited {
			opsf("cycle detected at %v while exporting from %v", next, cur)
			break
		}
		ns.p.visited = true
		track = append(track, ns.p.Position)
		cur, cs, alpha = next, ns, nextAlpha
	}
	return append(track, cs.p.EndPoint(alpha))
}

func (g *ParticleGrid) resetVisitedLocked() {
	for _, id := range g.list {
		g.pool.lookup(id).p.visited = false
	}
}

// ArcLength returns the summed segment length of a polyline.
func ArcLength(track []r3.Vec) float64 {
	var l float64
	for i := 1; i < len(track); i++ {
		l += r3.Norm(r3.Sub(track[i], track[i-1]))
	}
	return l
}
