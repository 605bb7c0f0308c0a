package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/synchronize"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type reporter interface {
	LastReport() *synchronize.Report
}

type statusResponse struct {
	RunID     string                            `json:"run_id,omitempty"`
	Summaries map[string]model.OperationSummary `json:"summaries,omitempty"`
	Errors    map[string]string                 `json:"errors,omitempty"`
}

// newHealthHandler serves /healthz (database reachability) and /status
// (the last scheduled cycle).
func newHealthHandler(db pinger, sched reporter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		report := sched.LastReport()
		if report == nil {
			writeJSON(w, http.StatusOK, statusResponse{})
			return
		}
		resp := statusResponse{RunID: report.RunID, Summaries: report.Summaries}
		for unit, err := range report.Errors {
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[unit] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
