// Package server exposes the daemon over HTTP: a status snapshot, proof
// and task submission, day submission, the HTML report, and a websocket
// stream of live metrics and events for UI collaborators.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vigil/breath"
	"vigil/enforce"
	"vigil/log"
	"vigil/notify"
	"vigil/report"
	"vigil/scoring"
	"vigil/store"
)

type Server struct {
	sched *enforce.Scheduler
	mon   *breath.Monitor
	st    store.Store

	mu          sync.Mutex
	clients     map[*websocket.Conn]struct{}
	lastMetrics breath.Metrics

	httpSrv *http.Server
}

func New(sched *enforce.Scheduler, mon *breath.Monitor, st store.Store) *Server {
	return &Server{
		sched:   sched,
		mon:     mon,
		st:      st,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler builds the route table. Exposed separately so tests can drive it
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/task", s.handleTask)
	mux.HandleFunc("POST /api/proof", s.handleProof)
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type statusResponse struct {
	enforce.Status
	Monitoring bool           `json:"monitoring"`
	Metrics    breath.Metrics `json:"metrics"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	metrics := s.lastMetrics
	s.mu.Unlock()

	writeJSON(w, statusResponse{
		Status:     s.sched.Snapshot(),
		Monitoring: s.mon.Available(),
		Metrics:    metrics,
	})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	s.sched.UpdateTask(scoring.TaskID(req.Task), req.Value)
	writeJSON(w, s.sched.Day())
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now()
	id := fmt.Sprintf("proof-%s-%s", req.Target, now.Format("20060102-150405"))
	if err := s.st.SaveProof(id, req.Data); err != nil {
		http.Error(w, "storing proof: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := proofResponse{ProofID: id, Accepted: true}
	switch req.Target {
	case proofTargetTask:
		s.sched.AttachProof(scoring.TaskID(req.Task), id)
	case proofTargetLoyalty:
		resp.Accepted = s.sched.SubmitLoyaltyProof(req.CheckID, id, now)
	case proofTargetOrgasm:
		s.sched.RecordOrgasm(id)
	}
	writeJSON(w, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := s.sched.SubmitDay(time.Now())
	if err != nil {
		http.Error(w, "submit: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	items, err := s.st.History()
	if err != nil {
		http.Error(w, "loading history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	snap := s.sched.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.Render(w, items, snap.State, time.Now()); err != nil {
		log.Errorf("render report: %v", err)
	}
}

// BroadcastMetrics feeds the live stream and the status snapshot. Wired as
// a monitor subscriber.
func (s *Server) BroadcastMetrics(m breath.Metrics) {
	s.mu.Lock()
	s.lastMetrics = m
	s.mu.Unlock()
	s.broadcast(streamFrame{Type: "metrics", Metrics: &m})
}

// BroadcastEvent forwards an enforcement event to connected clients.
// Wired as a notifier channel.
func (s *Server) BroadcastEvent(ev notify.Event) {
	s.broadcast(streamFrame{Type: "event", Event: &ev})
}

type streamFrame struct {
	Type    string          `json:"type"`
	Metrics *breath.Metrics `json:"metrics,omitempty"`
	Event   *notify.Event   `json:"event,omitempty"`
}

func (s *Server) broadcast(frame streamFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(frame); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encode response: %v", err)
	}
}
