package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/galaxycore/galaxyview/internal/archive"
	"github.com/galaxycore/galaxyview/internal/snapshot"
	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/gorilla/mux"
)

// debugDeps is what the local status server reads.
type debugDeps struct {
	Status         func() snapshot.Status
	PollerRunning  func() bool
	NotifyUp       func() bool
	LogState       func() (int, string)
	Archive        archive.Store // nil when disabled
	DefaultViewer  core.PlayerID
	TriggerRefresh func()
}

type statusResponse struct {
	Loaded      bool      `json:"loaded"`
	Stale       bool      `json:"stale"`
	Turn        int       `json:"turn"`
	LastError   string    `json:"lastError,omitempty"`
	LastAttempt time.Time `json:"lastAttempt"`
	LastSuccess time.Time `json:"lastSuccess"`
	Polling     bool      `json:"polling"`
	Notify      bool      `json:"notify"`
	Selection   string    `json:"selection,omitempty"`
}

func newDebugRouter(d debugDeps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := d.Status()
		resp := statusResponse{
			Loaded:      st.Loaded,
			Stale:       st.Stale,
			Turn:        st.Turn,
			LastAttempt: st.LastAttempt,
			LastSuccess: st.LastSuccess,
			Polling:     d.PollerRunning(),
			Notify:      d.NotifyUp(),
		}
		if st.LastError != nil {
			resp.LastError = st.LastError.Error()
		}
		_, resp.Selection = d.LogState()
		writeJSON(w, http.StatusOK, resp)
	}).Methods("GET")

	r.HandleFunc("/refresh", func(w http.ResponseWriter, r *http.Request) {
		d.TriggerRefresh()
		w.WriteHeader(http.StatusAccepted)
	}).Methods("POST")

	listArchive := func(w http.ResponseWriter, r *http.Request) {
		if d.Archive == nil {
			http.Error(w, "archive disabled", http.StatusNotFound)
			return
		}
		viewer := core.PlayerID(mux.Vars(r)["viewer"])
		if viewer == "" {
			viewer = d.DefaultViewer
		}
		entries, err := d.Archive.List(r.Context(), viewer)
		if err != nil && !errors.Is(err, archive.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []archive.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
	r.HandleFunc("/archive", listArchive).Methods("GET")
	r.HandleFunc("/archive/{viewer}", listArchive).Methods("GET")

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Warn("Failed to write debug response", "error", err)
	}
}

func newDebugServer(addr string) *http.Server {
	d := debugDeps{
		Status:         snapshotCache.Status,
		PollerRunning:  pollerService.IsRunning,
		NotifyUp:       func() bool { return notifyListener != nil && notifyListener.Connected() },
		LogState:       gameSession.LogState,
		Archive:        archiveStore,
		DefaultViewer:  playerID,
		TriggerRefresh: pollerService.Trigger,
	}
	return &http.Server{
		Addr:              addr,
		Handler:           newDebugRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveDebug runs srv until ctx is done.
func serveDebug(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		Logger.Info("Debug server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
