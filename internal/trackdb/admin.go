package trackdb

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"gonum.org/v1/gonum/spatial/r3"
	"tailscale.com/tsweb"

	"github.com/banshee-data/fibretrack/internal/httputil"
)

// runDetail is the /debug/run response: a run's tracks with their points.
type runDetail struct {
	RunID  string       `json:"run_id"`
	Tracks []trackPoint `json:"tracks"`
}

type trackPoint struct {
	Track
	Points []r3.Vec `json:"points"`
}

// AttachAdminRoutes mounts the debug index, a live SQL console over the
// track database and JSON views of stored runs under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Track DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("runs", "Stored export runs (JSON)", http.HandlerFunc(db.handleRuns))
	debug.Handle("run", "Tracks of one run, ?id=<run_id> (JSON)", http.HandlerFunc(db.handleRun))
	return nil
}

func (db *DB) handleRuns(w http.ResponseWriter, r *http.Request) {
	if httputil.MethodNotAllowed(w, r) {
		return
	}
	runs, err := db.Runs()
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

func (db *DB) handleRun(w http.ResponseWriter, r *http.Request) {
	if httputil.MethodNotAllowed(w, r) {
		return
	}
	runID := r.URL.Query().Get("id")
	if runID == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	tracks, err := db.Tracks(runID)
	if errors.Is(err, ErrRunNotFound) {
		httputil.WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := runDetail{RunID: runID, Tracks: make([]trackPoint, 0, len(tracks))}
	for _, t := range tracks {
		pts, err := db.TrackPoints(t.TrackID)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out.Tracks = append(out.Tracks, trackPoint{Track: t, Points: pts})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
