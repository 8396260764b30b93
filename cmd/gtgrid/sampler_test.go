package main

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fibretrack/internal/config"
	"github.com/banshee-data/fibretrack/internal/gt"
	"github.com/banshee-data/fibretrack/internal/trackio"
)

func intp(v int) *int { return &v }

func testConfig() *config.GridConfig {
	cfg := config.DefaultGridConfig()
	cfg.Dims = []int{16, 16, 16}
	cfg.Sampler.Fibres = intp(8)
	cfg.Sampler.ParticlesPerFibre = intp(8)
	cfg.Sampler.Workers = intp(3)
	cfg.Sampler.ShiftProposals = intp(300)
	cfg.Sampler.RemoveProposals = intp(4)
	return cfg
}

func newTestSampler(t *testing.T, cfg *config.GridConfig) *sampler {
	t.Helper()
	g, err := gt.NewParticleGrid(gt.ConfigFromGrid(cfg))
	require.NoError(t, err)
	return newSampler(g, cfg)
}

func TestShare(t *testing.T) {
	t.Parallel()
	total := 0
	for w := 0; w < 4; w++ {
		total += share(10, 4, w)
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 3, share(10, 4, 0))
	assert.Equal(t, 2, share(10, 4, 3))
	assert.Equal(t, 0, share(0, 4, 1))
}

func TestRandomDirectionIsUnit(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		assert.InDelta(t, 1.0, r3.Norm(randomDirection(rng)), 1e-12)
	}
}

func TestSeedFibresBuildsChains(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	s := newTestSampler(t, cfg)
	require.NoError(t, s.seedFibres())

	assert.Equal(t, int(s.stats.Seeded), s.g.Len())
	assert.LessOrEqual(t, s.g.Len(), 8*8)
	assert.Positive(t, s.g.Len())

	var c trackio.Collector
	stats, err := s.g.ExportTracks(&c)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.Tracks, 8, "no more tracks than fibres")
	// Every particle appears once, plus two endpoints per track.
	assert.Equal(t, s.g.Len()+2*stats.Tracks, stats.Points)
}

func TestSeedFibresDeterministic(t *testing.T) {
	t.Parallel()
	export := func() [][]r3.Vec {
		s := newTestSampler(t, testConfig())
		require.NoError(t, s.seedFibres())
		var c trackio.Collector
		_, err := s.g.ExportTracks(&c)
		require.NoError(t, err)
		return c.Tracks
	}
	assert.Equal(t, export(), export())
}

func TestSamplerRun(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	s := newTestSampler(t, cfg)
	require.NoError(t, s.seedFibres())
	before := s.g.Len()

	require.NoError(t, s.run(context.Background()))

	st := s.stats
	assert.Equal(t, int64(300), st.ShiftsAccepted+st.ShiftsRejected)
	assert.Equal(t, int64(4), st.Removed+st.RemovesRejected)
	assert.Equal(t, before-int(st.Removed), s.g.Len())
	assert.Contains(t, st.String(), "seeded=")

	var c trackio.Collector
	stats, err := s.g.ExportTracks(&c)
	require.NoError(t, err)
	assert.Equal(t, s.g.Len()+2*stats.Tracks, stats.Points)
}

func TestSamplerRunCancelled(t *testing.T) {
	t.Parallel()
	s := newTestSampler(t, testConfig())
	require.NoError(t, s.seedFibres())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.run(ctx), context.Canceled)
}

func TestSamplerEmptyGrid(t *testing.T) {
	t.Parallel()
	s := newTestSampler(t, testConfig())
	require.NoError(t, s.run(context.Background()))
	assert.Zero(t, s.stats.ShiftsAccepted)
}
