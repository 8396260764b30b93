// Package gt owns the particle population used by global fibre tracking.
//
// Responsibilities: the pooled particle arena (generation-checked handles),
// the flat live-list used for whole-population operations, the bucketed 3D
// spatial index, predecessor/successor links between particles, and the
// traversal that turns the particle graph into exported tracks.
// Key types: ParticleGrid, Particle, ParticleID, Geometry, TrackWriter.
//
// Dependency rule: gt never imports a track writer implementation; writers
// live in trackio, trackdb and trackplot and only see []r3.Vec polylines.
// No SQL/database code is allowed in this package.
package gt
