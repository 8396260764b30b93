// Package trackrpc streams stored export runs over gRPC.
//
// Requests and responses are structpb.Struct messages:
//
//	service TrackService {
//	  // request {"run_id": "<id>"}, one response per track in export order
//	  rpc StreamTracks(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	}
package trackrpc

import (
	"errors"
	"log"

	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/fibretrack/internal/trackdb"
	"github.com/banshee-data/fibretrack/internal/trackio"
)

const (
	serviceName      = "fibretrack.TrackService"
	streamTracksName = "StreamTracks"

	// StreamTracksMethod is the full method name of the track stream.
	StreamTracksMethod = "/" + serviceName + "/" + streamTracksName
)

// RunLoader loads every track of a stored run. *trackdb.DB implements it.
type RunLoader interface {
	LoadRun(runID string) ([][]r3.Vec, error)
}

// trackService is the handler type checked by grpc.Server.RegisterService.
type trackService interface {
	streamTracks(req *structpb.Struct, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*trackService)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamTracksName,
			Handler:       streamTracksHandler,
			ServerStreams: true,
		},
	},
	Metadata: "fibretrack/tracks.proto",
}

func streamTracksHandler(srv any, stream grpc.ServerStream) error {
	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(trackService).streamTracks(req, stream)
}

// Server implements TrackService on top of a RunLoader.
type Server struct {
	runs RunLoader
}

var _ trackService = (*Server)(nil)

// NewServer creates a server reading runs from runs.
func NewServer(runs RunLoader) *Server {
	return &Server{runs: runs}
}

// Register adds the track service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) streamTracks(req *structpb.Struct, stream grpc.ServerStream) error {
	runID := req.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return status.Error(codes.InvalidArgument, "run_id is required")
	}

	tracks, err := s.runs.LoadRun(runID)
	if errors.Is(err, trackdb.ErrRunNotFound) {
		return status.Errorf(codes.NotFound, "run %s not found", runID)
	}
	if err != nil {
		log.Printf("[gRPC] StreamTracks run=%s: %v", runID, err)
		return status.Errorf(codes.Internal, "load run %s: %v", runID, err)
	}

	ctx := stream.Context()
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		msg, err := trackio.TrackMessage(i, track)
		if err != nil {
			return status.Errorf(codes.Internal, "encode track %d: %v", i, err)
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	log.Printf("[gRPC] StreamTracks run=%s sent %d tracks", runID, len(tracks))
	return nil
}
