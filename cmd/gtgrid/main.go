// Command gtgrid runs a synthetic fibre sampler against a particle grid and
// exports the resulting tracks to files, a SQLite database and plots.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/banshee-data/fibretrack/internal/config"
	"github.com/banshee-data/fibretrack/internal/gt"
	"github.com/banshee-data/fibretrack/internal/trackdb"
	"github.com/banshee-data/fibretrack/internal/trackio"
	"github.com/banshee-data/fibretrack/internal/trackplot"
	"github.com/banshee-data/fibretrack/internal/trackrpc"
	"github.com/banshee-data/fibretrack/internal/version"
)

var (
	configPath = flag.String("config", "", "Grid config file (.json, .yaml); built-in defaults when empty")
	csvPath    = flag.String("csv", "", "Write track points as CSV to this file")
	tckPath    = flag.String("tck", "", "Write tracks as an MRtrix .tck file")
	protoPath  = flag.String("proto", "", "Write tracks as length-delimited protobuf messages")
	dbPath     = flag.String("db", "", "Store the export run in this SQLite database")
	notes      = flag.String("notes", "", "Notes recorded with the database run")
	pngPath    = flag.String("png", "", "Save a PNG projection of the tracks")
	plane      = flag.String("plane", "xy", "Projection plane for -png (xy, xz, yz)")
	htmlPath   = flag.String("html", "", "Write an interactive 3D HTML chart of the tracks")
	listen     = flag.String("listen", "", "Serve debug routes (requires -db) on this address after export")
	grpcListen = flag.String("grpc", "", "Serve the gRPC track stream (requires -db) on this address after export")
	trace      = flag.Bool("trace", false, "Log per-particle operations")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}
	log.Printf("Starting %s", version.String())

	var traceW io.Writer
	if *trace {
		traceW = os.Stderr
	}
	gt.SetLogWriters(os.Stderr, os.Stderr, traceW)

	if (*listen != "" || *grpcListen != "") && *dbPath == "" {
		log.Fatal("-listen and -grpc require -db")
	}

	cfg := config.DefaultGridConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadGridConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("gtgrid: %v", err)
	}
}

func run(ctx context.Context, cfg *config.GridConfig) error {
	g, err := gt.NewParticleGrid(gt.ConfigFromGrid(cfg))
	if err != nil {
		return fmt.Errorf("create grid: %w", err)
	}

	s := newSampler(g, cfg)
	start := time.Now()
	if err := s.seedFibres(); err != nil {
		return err
	}
	if err := s.run(ctx); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	log.Printf("Sampler finished in %v: %s, %d particles live", time.Since(start).Round(time.Millisecond), &s.stats, g.Len())

	var db *trackdb.DB
	if *dbPath != "" {
		if db, err = trackdb.Open(*dbPath); err != nil {
			return err
		}
		defer db.Close()
	}

	var collected trackio.Collector
	sinks, err := openSinks(db)
	if err != nil {
		return err
	}
	stats, exportErr := g.ExportTracks(trackio.MultiWriter(append(sinks.writers, &collected)...))
	if err := sinks.close(); err != nil && exportErr == nil {
		exportErr = err
	}
	if exportErr != nil {
		return fmt.Errorf("export: %w", exportErr)
	}
	log.Printf("Exported %d tracks, %d points (mean length %.2f, max %.2f)",
		stats.Tracks, stats.Points, stats.MeanLength, stats.MaxLength)

	if db != nil {
		if err := db.FinishRun(sinks.runID, stats); err != nil {
			return err
		}
		log.Printf("Stored run %s in %s", sinks.runID, *dbPath)
	}

	if *pngPath != "" {
		p, err := trackplot.ParsePlane(*plane)
		if err != nil {
			return err
		}
		if err := trackplot.SavePNG(collected.Tracks, p, *pngPath); err != nil {
			return err
		}
	}
	if *htmlPath != "" {
		if err := writeFile(*htmlPath, func(w io.Writer) error {
			return trackplot.WriteHTML(collected.Tracks, w)
		}); err != nil {
			return err
		}
	}

	if *listen != "" || *grpcListen != "" {
		return serve(ctx, db, *listen, *grpcListen)
	}
	return nil
}

// sinks holds the file-backed track writers opened for one export.
type sinks struct {
	writers []gt.TrackWriter
	closers []func() error
	runID   string
}

func openSinks(db *trackdb.DB) (*sinks, error) {
	s := &sinks{}
	fail := func(err error) (*sinks, error) {
		s.close()
		return nil, err
	}

	if *csvPath != "" {
		f, bw, err := createBuffered(*csvPath)
		if err != nil {
			return fail(err)
		}
		s.writers = append(s.writers, trackio.NewCSVWriter(bw))
		s.closers = append(s.closers, flushClose(bw, f))
	}
	if *protoPath != "" {
		f, bw, err := createBuffered(*protoPath)
		if err != nil {
			return fail(err)
		}
		s.writers = append(s.writers, trackio.NewProtoWriter(bw))
		s.closers = append(s.closers, flushClose(bw, f))
	}
	if *tckPath != "" {
		f, err := os.Create(*tckPath)
		if err != nil {
			return fail(err)
		}
		tw, err := trackio.NewTCKWriter(f)
		if err != nil {
			f.Close()
			return fail(err)
		}
		s.writers = append(s.writers, tw)
		s.closers = append(s.closers, func() error {
			return errors.Join(tw.Close(), f.Close())
		})
	}
	if db != nil {
		runID, err := db.BeginRun(*notes)
		if err != nil {
			return fail(err)
		}
		s.runID = runID
		s.writers = append(s.writers, db.Writer(runID))
	}
	return s, nil
}

func (s *sinks) close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func createBuffered(path string) (*os.File, *bufio.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, bufio.NewWriter(f), nil
}

func flushClose(bw *bufio.Writer, f *os.File) func() error {
	return func() error {
		return errors.Join(bw.Flush(), f.Close())
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// serve runs the debug HTTP server and the gRPC track stream, whichever
// has an address, until ctx is cancelled.
func serve(ctx context.Context, db *trackdb.DB, httpAddr, grpcAddr string) error {
	var mux *http.ServeMux
	if httpAddr != "" {
		mux = http.NewServeMux()
		if err := db.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	var lis net.Listener
	if grpcAddr != "" {
		var err error
		if lis, err = net.Listen("tcp", grpcAddr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	if mux != nil {
		server := &http.Server{Addr: httpAddr, Handler: mux}

		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
			return nil
		})
		eg.Go(func() error {
			log.Printf("Serving debug routes on http://%s/debug/", httpAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if lis != nil {
		eg.Go(func() error { return serveGRPC(ctx, db, lis) })
	}
	return eg.Wait()
}

// serveGRPC serves the track stream on lis until ctx is cancelled, then
// drains in-flight streams.
func serveGRPC(ctx context.Context, runs trackrpc.RunLoader, lis net.Listener) error {
	gs := grpc.NewServer()
	trackrpc.NewServer(runs).Register(gs)

	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	log.Printf("Serving gRPC track stream on %s", lis.Addr())
	err := gs.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
