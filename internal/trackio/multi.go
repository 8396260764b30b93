package trackio

import (
	"github.com/banshee-data/fibretrack/internal/gt"
	"gonum.org/v1/gonum/spatial/r3"
)

type multiWriter []gt.TrackWriter

// MultiWriter duplicates each track to every writer in order. The first
// error stops the fan-out and is returned.
func MultiWriter(ws ...gt.TrackWriter) gt.TrackWriter {
	all := make(multiWriter, 0, len(ws))
	for _, w := range ws {
		if mw, ok := w.(multiWriter); ok {
			all = append(all, mw...)
		} else if w != nil {
			all = append(all, w)
		}
	}
	return all
}

func (m multiWriter) WriteTrack(points []r3.Vec) error {
	for _, w := range m {
		if err := w.WriteTrack(points); err != nil {
			return err
		}
	}
	return nil
}

// Collector keeps a copy of every track in memory.
type Collector struct {
	Tracks [][]r3.Vec
}

// WriteTrack appends a copy of points, so callers may reuse the slice.
func (c *Collector) WriteTrack(points []r3.Vec) error {
	c.Tracks = append(c.Tracks, append([]r3.Vec(nil), points...))
	return nil
}

// Points returns the total number of points collected.
func (c *Collector) Points() int {
	n := 0
	for _, t := range c.Tracks {
		n += len(t)
	}
	return n
}
