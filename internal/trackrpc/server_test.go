package trackrpc

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/banshee-data/fibretrack/internal/gt"
	"github.com/banshee-data/fibretrack/internal/trackdb"
)

var storedTracks = [][]r3.Vec{
	{{X: 4, Y: 5, Z: 5}, {X: 3, Y: 5, Z: 5}, {X: 2, Y: 5, Z: 5}},
	{{X: 8, Y: 8, Z: 9}, {X: 8, Y: 8, Z: 8}, {X: 8, Y: 8, Z: 7}},
}

// dialServer serves runs over an in-memory listener and returns a client
// connection to it.
func dialServer(t *testing.T, runs RunLoader) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(runs).Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type loaderFunc func(runID string) ([][]r3.Vec, error)

func (f loaderFunc) LoadRun(runID string) ([][]r3.Vec, error) { return f(runID) }

func TestStreamTracksFromDB(t *testing.T) {
	t.Parallel()
	db, err := trackdb.Open(filepath.Join(t.TempDir(), "tracks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runID, err := db.BeginRun("rpc")
	require.NoError(t, err)
	w := db.Writer(runID)
	for _, tr := range storedTracks {
		require.NoError(t, w.WriteTrack(tr))
	}
	require.NoError(t, db.FinishRun(runID, gt.ExportStats{Tracks: len(storedTracks)}))

	conn := dialServer(t, db)
	got, err := FetchRun(context.Background(), conn, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(storedTracks, got); diff != "" {
		t.Errorf("streamed tracks (-want +got):\n%s", diff)
	}

	_, err = FetchRun(context.Background(), conn, "nope")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStreamTracksEmptyRun(t *testing.T) {
	t.Parallel()
	conn := dialServer(t, loaderFunc(func(string) ([][]r3.Vec, error) { return nil, nil }))

	got, err := FetchRun(context.Background(), conn, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStreamTracksErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		runID string
		err   error
		want  codes.Code
	}{
		{"missing run id", "", nil, codes.InvalidArgument},
		{"unknown run", "gone", trackdb.ErrRunNotFound, codes.NotFound},
		{"wrapped unknown run", "gone", errors.Join(errors.New("lookup"), trackdb.ErrRunNotFound), codes.NotFound},
		{"loader failure", "broken", errors.New("disk on fire"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn := dialServer(t, loaderFunc(func(string) ([][]r3.Vec, error) { return nil, tt.err }))
			_, err := FetchRun(context.Background(), conn, tt.runID)
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err), err)
		})
	}
}

func TestFetchRunCancelled(t *testing.T) {
	t.Parallel()
	conn := dialServer(t, loaderFunc(func(string) ([][]r3.Vec, error) { return storedTracks, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FetchRun(ctx, conn, "any")
	assert.Equal(t, codes.Canceled, status.Code(err))
}
