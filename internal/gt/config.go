package gt

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/fibretrack/internal/config"
)

// Config holds construction parameters for a ParticleGrid.
type Config struct {
	Geometry       Geometry
	ParticleLength float64 // endpoint extension along the particle direction
	Seed           uint64  // seed for GetRandom
	BucketStripes  int     // lock stripes for buckets and particle payloads (rounded up to a power of two)
}

// DefaultConfig returns the grid configuration from the canonical defaults
// file (config/grid.defaults.json). Panics if the file cannot be found;
// intended for tests and binaries that have already validated the config.
func DefaultConfig() Config {
	return ConfigFromGrid(config.MustLoadDefaultConfig())
}

// ConfigFromGrid builds a Config from a loaded GridConfig.
func ConfigFromGrid(cfg *config.GridConfig) Config {
	o := cfg.GetOrigin()
	v := cfg.GetVoxelSize()
	return Config{
		Geometry: Geometry{
			Origin:    r3.Vec{X: o[0], Y: o[1], Z: o[2]},
			VoxelSize: r3.Vec{X: v[0], Y: v[1], Z: v[2]},
			Dims:      cfg.GetDims(),
		},
		ParticleLength: cfg.GetParticleLength(),
		Seed:           cfg.GetSeed(),
		BucketStripes:  cfg.GetBucketStripes(),
	}
}
