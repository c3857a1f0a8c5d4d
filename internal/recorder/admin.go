package recorder

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/cybot.radar/internal/httputil"
	"github.com/banshee-data/cybot.radar/internal/monitoring"
)

// AttachAdminRoutes mounts the SQL console, a recent-sweeps listing and a
// backup download under /debug/.
func (r *Recorder) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("recorder: tailsql unavailable: %v", err)
	} else {
		tsql.SetDB("sqlite://"+filepath.Base(r.path), r.db, &tailsql.DBOptions{
			Label: "CyBot session recorder",
		})
		debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	}

	debug.Handle("sweeps", "Recently recorded sweeps (JSON, ?limit=N&session=ID)", http.HandlerFunc(r.handleSweeps))
	debug.Handle("recorder-backup", "Create and download a backup of the session database now", http.HandlerFunc(r.handleBackup))
}

func (r *Recorder) handleSweeps(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit := 20
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	session := req.URL.Query().Get("session")
	if session == "current" {
		session = r.sessionID
	}

	sweeps, err := r.ListSweeps(session, limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sweeps == nil {
		sweeps = []SweepRecord{}
	}
	httputil.WriteJSONOK(w, sweeps)
}

func (r *Recorder) handleBackup(w http.ResponseWriter, req *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("cybot-backup-%d.db", time.Now().UnixNano()))
	if _, err := r.db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("recorder: failed to remove backup file: %v", err)
		}
	}()

	f, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Logf("recorder: failed to stream backup: %v", err)
	}
}
