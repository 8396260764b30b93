package trackio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoWriter writes each track as a length-delimited structpb.Struct of
// the form {"track": n, "points": [[x, y, z], ...]}.
type ProtoWriter struct {
	w     io.Writer
	track int
}

// NewProtoWriter returns a ProtoWriter writing to w.
func NewProtoWriter(w io.Writer) *ProtoWriter {
	return &ProtoWriter{w: w}
}

// WriteTrack encodes and writes one track message.
func (p *ProtoWriter) WriteTrack(points []r3.Vec) error {
	msg, err := TrackMessage(p.track, points)
	if err != nil {
		return fmt.Errorf("encode track %d: %w", p.track, err)
	}
	if _, err := protodelim.MarshalTo(p.w, msg); err != nil {
		return fmt.Errorf("write track %d: %w", p.track, err)
	}
	p.track++
	return nil
}

// TrackMessage encodes track number n as {"track": n, "points": [[x, y, z], ...]}.
func TrackMessage(n int, points []r3.Vec) (*structpb.Struct, error) {
	pts := make([]interface{}, len(points))
	for i, v := range points {
		pts[i] = []interface{}{v.X, v.Y, v.Z}
	}
	return structpb.NewStruct(map[string]interface{}{
		"track":  n,
		"points": pts,
	})
}

// ReadProtoTracks decodes a stream written by ProtoWriter.
func ReadProtoTracks(r io.Reader) ([][]r3.Vec, error) {
	br := bufio.NewReader(r)

	var tracks [][]r3.Vec
	for {
		msg := &structpb.Struct{}
		err := protodelim.UnmarshalFrom(br, msg)
		if errors.Is(err, io.EOF) {
			return tracks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read track %d: %w", len(tracks), err)
		}

		track, err := ParseTrackMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", len(tracks), err)
		}
		tracks = append(tracks, track)
	}
}

// ParseTrackMessage decodes the points of a message built by TrackMessage.
func ParseTrackMessage(msg *structpb.Struct) ([]r3.Vec, error) {
	var track []r3.Vec
	for i, v := range msg.GetFields()["points"].GetListValue().GetValues() {
		xyz := v.GetListValue().GetValues()
		if len(xyz) != 3 {
			return nil, fmt.Errorf("point %d has %d coordinates", i, len(xyz))
		}
		track = append(track, r3.Vec{
			X: xyz[0].GetNumberValue(),
			Y: xyz[1].GetNumberValue(),
			Z: xyz[2].GetNumberValue(),
		})
	}
	return track, nil
}
