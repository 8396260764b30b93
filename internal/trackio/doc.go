// Package trackio provides track writers for ParticleGrid exports: CSV
// point rows, MRtrix .tck streamlines and a length-delimited protobuf
// stream, plus fan-out and in-memory collection.
package trackio
