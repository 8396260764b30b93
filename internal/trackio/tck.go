package trackio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// countWidth fixes the width of the count field so Close can patch it in
// place.
const countWidth = 10

// TCKWriter writes MRtrix .tck streamline files: a text header followed by
// little-endian float32 triplets, a NaN triplet after each track and an
// Inf triplet at the end of the file.
type TCKWriter struct {
	w           io.WriteSeeker
	countOffset int64
	count       int
	buf         bytes.Buffer
	closed      bool
}

// NewTCKWriter writes the header to w and returns a writer positioned at
// the start of the data section.
func NewTCKWriter(w io.WriteSeeker) (*TCKWriter, error) {
	head, countOffset := tckHeader()
	if _, err := io.WriteString(w, head); err != nil {
		return nil, fmt.Errorf("write tck header: %w", err)
	}
	return &TCKWriter{w: w, countOffset: countOffset}, nil
}

// tckHeader builds the header and returns it with the byte offset of the
// count value. The data offset names the header's own length, so it is
// recomputed until the digit count settles.
func tckHeader() (string, int64) {
	prefix := "mrtrix tracks\ndatatype: Float32LE\ncount: "
	count := fmt.Sprintf("%0*d\n", countWidth, 0)
	offset := 0
	for {
		head := fmt.Sprintf("%s%sfile: . %d\nEND\n", prefix, count, offset)
		if len(head) == offset {
			return head, int64(len(prefix))
		}
		offset = len(head)
	}
}

// WriteTrack appends one streamline.
func (t *TCKWriter) WriteTrack(points []r3.Vec) error {
	if t.closed {
		return errors.New("tck writer closed")
	}
	t.buf.Reset()
	for _, p := range points {
		putTriplet(&t.buf, float32(p.X), float32(p.Y), float32(p.Z))
	}
	nan := float32(math.NaN())
	putTriplet(&t.buf, nan, nan, nan)
	if _, err := t.w.Write(t.buf.Bytes()); err != nil {
		return fmt.Errorf("write tck track %d: %w", t.count, err)
	}
	t.count++
	return nil
}

// Close writes the terminator and patches the track count. It does not
// close the underlying writer.
func (t *TCKWriter) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	t.buf.Reset()
	inf := float32(math.Inf(1))
	putTriplet(&t.buf, inf, inf, inf)
	if _, err := t.w.Write(t.buf.Bytes()); err != nil {
		return fmt.Errorf("write tck terminator: %w", err)
	}

	end, err := t.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("tck seek: %w", err)
	}
	if _, err := t.w.Seek(t.countOffset, io.SeekStart); err != nil {
		return fmt.Errorf("tck seek count: %w", err)
	}
	if _, err := fmt.Fprintf(t.w, "%0*d", countWidth, t.count); err != nil {
		return fmt.Errorf("write tck count: %w", err)
	}
	if _, err := t.w.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("tck seek end: %w", err)
	}
	return nil
}

// Count returns the number of tracks written so far.
func (t *TCKWriter) Count() int { return t.count }

func putTriplet(buf *bytes.Buffer, x, y, z float32) {
	var b [12]byte
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(z))
	buf.Write(b[:])
}

// ReadTCK parses a Float32LE .tck stream. The header count is checked
// against the tracks found.
func ReadTCK(r io.Reader) ([][]r3.Vec, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read tck magic: %w", err)
	}
	if strings.TrimSpace(magic) != "mrtrix tracks" {
		return nil, fmt.Errorf("not a tck file: %q", strings.TrimSpace(magic))
	}
	read := int64(len(magic))

	var (
		offset   int64 = -1
		count          = -1
		datatype string
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read tck header: %w", err)
		}
		read += int64(len(line))
		line = strings.TrimSpace(line)
		if line == "END" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "datatype":
			datatype = value
		case "count":
			if count, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("tck count %q: %w", value, err)
			}
		case "file":
			f := strings.Fields(value)
			if len(f) != 2 || f[0] != "." {
				return nil, fmt.Errorf("unsupported tck file field %q", value)
			}
			if offset, err = strconv.ParseInt(f[1], 10, 64); err != nil {
				return nil, fmt.Errorf("tck offset %q: %w", f[1], err)
			}
		}
	}
	if datatype != "Float32LE" {
		return nil, fmt.Errorf("unsupported tck datatype %q", datatype)
	}
	if offset < read {
		return nil, fmt.Errorf("tck data offset %d inside header (%d bytes)", offset, read)
	}
	if _, err := br.Discard(int(offset - read)); err != nil {
		return nil, fmt.Errorf("skip to tck data: %w", err)
	}

	var (
		tracks  [][]r3.Vec
		current []r3.Vec
		b       [12]byte
	)
	for {
		if _, err := io.ReadFull(br, b[:]); err != nil {
			return nil, fmt.Errorf("read tck data: %w", err)
		}
		x := math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
		z := math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
		switch {
		case math.IsInf(float64(x), 0):
			if count >= 0 && count != len(tracks) {
				return tracks, fmt.Errorf("tck header count %d, found %d tracks", count, len(tracks))
			}
			return tracks, nil
		case math.IsNaN(float64(x)):
			tracks = append(tracks, current)
			current = nil
		default:
			current = append(current, r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})
		}
	}
}
