package trackio

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"
)

// PointRecord is one CSV row: a single point of an exported track.
type PointRecord struct {
	Track int     `csv:"track"`
	Point int     `csv:"point"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
	Z     float64 `csv:"z"`
}

// CSVWriter writes tracks as point rows. The header is emitted with the
// first track.
type CSVWriter struct {
	w             io.Writer
	headerWritten bool
	track         int
	rows          []PointRecord
}

// NewCSVWriter returns a CSVWriter writing to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// WriteTrack appends one row per point, numbering tracks from zero.
func (c *CSVWriter) WriteTrack(points []r3.Vec) error {
	c.rows = c.rows[:0]
	for i, p := range points {
		c.rows = append(c.rows, PointRecord{Track: c.track, Point: i, X: p.X, Y: p.Y, Z: p.Z})
	}

	var err error
	if !c.headerWritten {
		err = gocsv.Marshal(c.rows, c.w)
		c.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(c.rows, c.w)
	}
	if err != nil {
		return fmt.Errorf("write csv track %d: %w", c.track, err)
	}
	c.track++
	return nil
}

// ReadCSV reads rows written by CSVWriter and regroups them into tracks,
// in order of first appearance.
func ReadCSV(r io.Reader) ([][]r3.Vec, error) {
	var rows []*PointRecord
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read csv tracks: %w", err)
	}

	var (
		tracks [][]r3.Vec
		index  = map[int]int{}
	)
	for _, row := range rows {
		i, ok := index[row.Track]
		if !ok {
			i = len(tracks)
			index[row.Track] = i
			tracks = append(tracks, nil)
		}
		tracks[i] = append(tracks[i], r3.Vec{X: row.X, Y: row.Y, Z: row.Z})
	}
	return tracks, nil
}
