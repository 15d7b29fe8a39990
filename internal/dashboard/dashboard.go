// Package dashboard keeps the latest published record and serves it, along
// with the polling toggle, over HTTP.
package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"vocacare-intake-go/internal/detector"
	"vocacare-intake-go/internal/logger"
	"vocacare-intake-go/internal/pipeline"
)

// Board is a pipeline observer holding what the intake screen displays.
type Board struct {
	now func() time.Time

	mu         sync.RWMutex
	latest     *pipeline.Update
	lastUpdate time.Time
}

func NewBoard() *Board {
	return &Board{now: time.Now}
}

func (b *Board) Publish(u pipeline.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = &u
	b.lastUpdate = b.now()
}

// Latest returns the last published update and when it arrived.
func (b *Board) Latest() (pipeline.Update, time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return pipeline.Update{}, time.Time{}, false
	}
	return *b.latest, b.lastUpdate, true
}

// Controller is the part of the pipeline the dashboard drives.
type Controller interface {
	State() detector.PollState
	SetEnabled(bool)
}

type Status struct {
	detector.PollState
	Connected  bool       `json:"connected"`
	LastUpdate *time.Time `json:"lastUpdate"`
}

type latestResponse struct {
	pipeline.Update
	ReceivedAt time.Time `json:"receivedAt"`
}

type server struct {
	board *Board
	ctl   Controller
	log   *logger.Logger
}

// NewHandler wires the dashboard routes.
func NewHandler(board *Board, ctl Controller, log *logger.Logger) http.Handler {
	s := &server{board: board, ctl: ctl, log: log.With("component", "dashboard")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("GET /api/latest", s.latest)
	mux.HandleFunc("GET /api/polling", s.status)
	mux.HandleFunc("POST /api/polling", s.setPolling)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *server) latest(w http.ResponseWriter, r *http.Request) {
	u, at, ok := s.board.Latest()
	if !ok {
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{
			"status":  "no_data",
			"message": "No patient record received yet",
		})
		return
	}
	s.writeJSON(w, r, http.StatusOK, latestResponse{Update: u, ReceivedAt: at})
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.currentStatus())
}

func (s *server) setPolling(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r)
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil || req.Enabled == nil {
		reqLog.Warn("invalid polling request")
		http.Error(w, `body must be {"enabled": true|false}`, http.StatusBadRequest)
		return
	}
	s.ctl.SetEnabled(*req.Enabled)
	reqLog.WithField("enabled", *req.Enabled).Info("polling toggled")
	s.writeJSON(w, r, http.StatusOK, s.currentStatus())
}

func (s *server) currentStatus() Status {
	st := Status{PollState: s.ctl.State()}
	if _, at, ok := s.board.Latest(); ok {
		st.Connected = true
		st.LastUpdate = &at
	}
	return st
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.WithRequest(r).WithError(err).Error("failed to write response")
	}
}
