package trackrpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/fibretrack/internal/trackio"
)

// FetchRun streams every track of runID from the service behind cc.
// Server failures are returned as gRPC status errors.
func FetchRun(ctx context.Context, cc grpc.ClientConnInterface, runID string) ([][]r3.Vec, error) {
	stream, err := cc.NewStream(ctx, &serviceDesc.Streams[0], StreamTracksMethod)
	if err != nil {
		return nil, err
	}

	req, err := structpb.NewStruct(map[string]interface{}{"run_id": runID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	var tracks [][]r3.Vec
	for {
		msg := &structpb.Struct{}
		err := stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			return tracks, nil
		}
		if err != nil {
			return nil, err
		}
		track, err := trackio.ParseTrackMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", len(tracks), err)
		}
		tracks = append(tracks, track)
	}
}
