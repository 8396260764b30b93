package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGridConfig(t *testing.T) {
	cfg := DefaultGridConfig()

	if cfg.ParticleLength == nil || *cfg.ParticleLength != 1.0 {
		t.Errorf("Expected ParticleLength 1.0, got %v", cfg.ParticleLength)
	}
	if cfg.Seed == nil || *cfg.Seed != 1 {
		t.Errorf("Expected Seed 1, got %v", cfg.Seed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}

	if cfg.GetDims() != [3]int{32, 32, 32} {
		t.Errorf("GetDims() = %v, want [32 32 32]", cfg.GetDims())
	}
	if cfg.GetVoxelSize() != [3]float64{1, 1, 1} {
		t.Errorf("GetVoxelSize() = %v, want [1 1 1]", cfg.GetVoxelSize())
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
}

func TestEmptyGridConfigGetters(t *testing.T) {
	// Every getter must agree with DefaultGridConfig when nothing is set.
	empty := EmptyGridConfig()
	def := DefaultGridConfig()

	assert.Equal(t, def.GetOrigin(), empty.GetOrigin())
	assert.Equal(t, def.GetVoxelSize(), empty.GetVoxelSize())
	assert.Equal(t, def.GetDims(), empty.GetDims())
	assert.Equal(t, def.GetParticleLength(), empty.GetParticleLength())
	assert.Equal(t, def.GetSeed(), empty.GetSeed())
	assert.Equal(t, def.GetBucketStripes(), empty.GetBucketStripes())
	assert.Equal(t, def.GetFibres(), empty.GetFibres())
	assert.Equal(t, def.GetParticlesPerFibre(), empty.GetParticlesPerFibre())
	assert.Equal(t, def.GetWorkers(), empty.GetWorkers())
	assert.Equal(t, def.GetShiftProposals(), empty.GetShiftProposals())
	assert.Equal(t, def.GetRemoveProposals(), empty.GetRemoveProposals())
	assert.Equal(t, def.GetStep(), empty.GetStep())
	assert.Equal(t, def.GetJitter(), empty.GetJitter())
}

func TestLoadGridConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "grid.json")

	testJSON := `{
  "origin": [-10, -10, -5],
  "voxel_size": [2, 2, 2.5],
  "dims": [10, 10, 4],
  "particle_length": 0.5,
  "seed": 42,
  "sampler": {"workers": 8}
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadGridConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, [3]float64{-10, -10, -5}, cfg.GetOrigin())
	assert.Equal(t, [3]float64{2, 2, 2.5}, cfg.GetVoxelSize())
	assert.Equal(t, [3]int{10, 10, 4}, cfg.GetDims())
	assert.Equal(t, 0.5, cfg.GetParticleLength())
	assert.Equal(t, uint64(42), cfg.GetSeed())
	assert.Equal(t, 8, cfg.GetWorkers())
	// Unset sampler fields keep defaults.
	assert.Equal(t, 16, cfg.GetFibres())
	assert.Equal(t, 64, cfg.GetBucketStripes())
}

func TestLoadGridConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "grid.yaml")

	testYAML := `
dims: [8, 16, 4]
particle_length: 2
sampler:
  fibres: 3
  step: 0.75
`
	require.NoError(t, os.WriteFile(configPath, []byte(testYAML), 0644))

	cfg, err := LoadGridConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, [3]int{8, 16, 4}, cfg.GetDims())
	assert.Equal(t, 2.0, cfg.GetParticleLength())
	assert.Equal(t, 3, cfg.GetFibres())
	assert.Equal(t, 0.75, cfg.GetStep())
}

func TestLoadGridConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"wrong extension", write("grid.txt", `{}`)},
		{"missing file", filepath.Join(tmpDir, "nope.json")},
		{"bad json", write("bad.json", `{"dims": [1, 2`)},
		{"short dims", write("short.json", `{"dims": [1, 2]}`)},
		{"zero voxel", write("voxel.json", `{"voxel_size": [1, 0, 1]}`)},
		{"negative length", write("length.json", `{"particle_length": -1}`)},
		{"zero workers", write("workers.yaml", "sampler:\n  workers: 0\n")},
		{"negative jitter", write("jitter.json", `{"sampler": {"jitter": -0.5}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGridConfig(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestLoadGridConfigTooLarge(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "huge.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	require.NoError(t, os.WriteFile(configPath, big, 0644))

	_, err := LoadGridConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	def := DefaultGridConfig()

	// The canonical defaults file must agree with the built-in defaults.
	assert.Equal(t, def.GetDims(), cfg.GetDims())
	assert.Equal(t, def.GetParticleLength(), cfg.GetParticleLength())
	assert.Equal(t, def.GetShiftProposals(), cfg.GetShiftProposals())
	assert.Equal(t, def.GetJitter(), cfg.GetJitter())
}
