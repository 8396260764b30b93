package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical grid defaults file.
const DefaultConfigPath = "config/grid.defaults.json"

// GridConfig is the root configuration for a particle grid and the
// synthetic sampler driving it. Every field is optional; the Get* methods
// fall back to built-in defaults for anything left unset, so partial files
// are safe.
type GridConfig struct {
	// Grid geometry: cell centres at origin + (x, y, z) * voxel_size.
	Origin    []float64 `json:"origin,omitempty" yaml:"origin,omitempty"`
	VoxelSize []float64 `json:"voxel_size,omitempty" yaml:"voxel_size,omitempty"`
	Dims      []int     `json:"dims,omitempty" yaml:"dims,omitempty"`

	// Particle params
	ParticleLength *float64 `json:"particle_length,omitempty" yaml:"particle_length,omitempty"`
	Seed           *uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	BucketStripes  *int     `json:"bucket_stripes,omitempty" yaml:"bucket_stripes,omitempty"`

	Sampler *SamplerConfig `json:"sampler,omitempty" yaml:"sampler,omitempty"`
}

// SamplerConfig holds parameters for the synthetic sampler in cmd/gtgrid.
type SamplerConfig struct {
	Fibres            *int     `json:"fibres,omitempty" yaml:"fibres,omitempty"`
	ParticlesPerFibre *int     `json:"particles_per_fibre,omitempty" yaml:"particles_per_fibre,omitempty"`
	Workers           *int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	ShiftProposals    *int     `json:"shift_proposals,omitempty" yaml:"shift_proposals,omitempty"`
	RemoveProposals   *int     `json:"remove_proposals,omitempty" yaml:"remove_proposals,omitempty"`
	Step              *float64 `json:"step,omitempty" yaml:"step,omitempty"` // spacing between particles along a fibre
	Jitter            *float64 `json:"jitter,omitempty" yaml:"jitter,omitempty"` // std dev of per-axis position and direction noise
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyGridConfig returns a GridConfig with every field unset.
func EmptyGridConfig() *GridConfig {
	return &GridConfig{}
}

// DefaultGridConfig returns a GridConfig with every field set to its
// built-in default.
func DefaultGridConfig() *GridConfig {
	return &GridConfig{
		Origin:         []float64{0, 0, 0},
		VoxelSize:      []float64{1, 1, 1},
		Dims:           []int{32, 32, 32},
		ParticleLength: ptrFloat64(1.0),
		Seed:           ptrUint64(1),
		BucketStripes:  ptrInt(64),
		Sampler: &SamplerConfig{
			Fibres:            ptrInt(16),
			ParticlesPerFibre: ptrInt(24),
			Workers:           ptrInt(4),
			ShiftProposals:    ptrInt(2000),
			RemoveProposals:   ptrInt(64),
			Step:              ptrFloat64(1.0),
			Jitter:            ptrFloat64(0.1),
		},
	}
}

// LoadGridConfig loads a GridConfig from a JSON or YAML file, chosen by
// extension (.json, .yaml, .yml). The file must be under 1MB.
func LoadGridConfig(path string) (*GridConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyGridConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical grid defaults from DefaultConfigPath.
// It searches the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *GridConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config, cmd/gtgrid
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadGridConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *GridConfig) Validate() error {
	if c.Origin != nil && len(c.Origin) != 3 {
		return fmt.Errorf("origin must have 3 components, got %d", len(c.Origin))
	}
	if c.VoxelSize != nil {
		if len(c.VoxelSize) != 3 {
			return fmt.Errorf("voxel_size must have 3 components, got %d", len(c.VoxelSize))
		}
		for i, v := range c.VoxelSize {
			if v <= 0 {
				return fmt.Errorf("voxel_size[%d] must be positive, got %f", i, v)
			}
		}
	}
	if c.Dims != nil {
		if len(c.Dims) != 3 {
			return fmt.Errorf("dims must have 3 components, got %d", len(c.Dims))
		}
		for i, d := range c.Dims {
			if d <= 0 {
				return fmt.Errorf("dims[%d] must be positive, got %d", i, d)
			}
		}
	}
	if c.ParticleLength != nil && *c.ParticleLength <= 0 {
		return fmt.Errorf("particle_length must be positive, got %f", *c.ParticleLength)
	}
	if c.BucketStripes != nil && *c.BucketStripes < 0 {
		return fmt.Errorf("bucket_stripes must be non-negative, got %d", *c.BucketStripes)
	}

	if s := c.Sampler; s != nil {
		if s.Workers != nil && *s.Workers <= 0 {
			return fmt.Errorf("sampler.workers must be positive, got %d", *s.Workers)
		}
		if s.Step != nil && *s.Step <= 0 {
			return fmt.Errorf("sampler.step must be positive, got %f", *s.Step)
		}
		if s.Jitter != nil && *s.Jitter < 0 {
			return fmt.Errorf("sampler.jitter must be non-negative, got %f", *s.Jitter)
		}
		for name, v := range map[string]*int{
			"fibres":              s.Fibres,
			"particles_per_fibre": s.ParticlesPerFibre,
			"shift_proposals":     s.ShiftProposals,
			"remove_proposals":    s.RemoveProposals,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("sampler.%s must be non-negative, got %d", name, *v)
			}
		}
	}

	return nil
}

// GetOrigin returns the grid origin or the default.
func (c *GridConfig) GetOrigin() [3]float64 {
	if len(c.Origin) != 3 {
		return [3]float64{0, 0, 0} // default
	}
	return [3]float64{c.Origin[0], c.Origin[1], c.Origin[2]}
}

// GetVoxelSize returns the per-axis cell size or the default.
func (c *GridConfig) GetVoxelSize() [3]float64 {
	if len(c.VoxelSize) != 3 {
		return [3]float64{1, 1, 1} // default
	}
	return [3]float64{c.VoxelSize[0], c.VoxelSize[1], c.VoxelSize[2]}
}

// GetDims returns the per-axis cell count or the default.
func (c *GridConfig) GetDims() [3]int {
	if len(c.Dims) != 3 {
		return [3]int{32, 32, 32} // default
	}
	return [3]int{c.Dims[0], c.Dims[1], c.Dims[2]}
}

// GetParticleLength returns the particle_length value or the default.
func (c *GridConfig) GetParticleLength() float64 {
	if c.ParticleLength == nil {
		return 1.0 // default
	}
	return *c.ParticleLength
}

// GetSeed returns the seed value or the default.
func (c *GridConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 1 // default
	}
	return *c.Seed
}

// GetBucketStripes returns the bucket_stripes value or the default.
func (c *GridConfig) GetBucketStripes() int {
	if c.BucketStripes == nil || *c.BucketStripes == 0 {
		return 64 // default
	}
	return *c.BucketStripes
}

func (c *GridConfig) sampler() *SamplerConfig {
	if c.Sampler == nil {
		return &SamplerConfig{}
	}
	return c.Sampler
}

// GetFibres returns the sampler.fibres value or the default.
func (c *GridConfig) GetFibres() int {
	if v := c.sampler().Fibres; v != nil {
		return *v
	}
	return 16 // default
}

// GetParticlesPerFibre returns the sampler.particles_per_fibre value or the default.
func (c *GridConfig) GetParticlesPerFibre() int {
	if v := c.sampler().ParticlesPerFibre; v != nil {
		return *v
	}
	return 24 // default
}

// GetWorkers returns the sampler.workers value or the default.
func (c *GridConfig) GetWorkers() int {
	if v := c.sampler().Workers; v != nil {
		return *v
	}
	return 4 // default
}

// GetShiftProposals returns the sampler.shift_proposals value or the default.
func (c *GridConfig) GetShiftProposals() int {
	if v := c.sampler().ShiftProposals; v != nil {
		return *v
	}
	return 2000 // default
}

// GetRemoveProposals returns the sampler.remove_proposals value or the default.
func (c *GridConfig) GetRemoveProposals() int {
	if v := c.sampler().RemoveProposals; v != nil {
		return *v
	}
	return 64 // default
}

// GetStep returns the sampler.step value or the default.
func (c *GridConfig) GetStep() float64 {
	if v := c.sampler().Step; v != nil {
		return *v
	}
	return 1.0 // default
}

// GetJitter returns the sampler.jitter value or the default.
func (c *GridConfig) GetJitter() float64 {
	if v := c.sampler().Jitter; v != nil {
		return *v
	}
	return 0.1 // default
}
