// Package web provides the HTTP status page, the live phrase display feed
// and the operator controls for the jawtalk daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/sweeney/jawtalk/internal/status"
)

// Controller carries out operator actions requested over HTTP.
type Controller interface {
	// Recalibrate discards the active profile and starts guided calibration.
	Recalibrate()
	// SetSpeechEnabled turns speech output on or off.
	SetSpeechEnabled(enabled bool)
	// ReplayPhrase speaks the last phrase again. It reports false when there
	// is no phrase yet or speech cannot take it.
	ReplayPhrase() bool
}

// Server serves the status page, the JSON status, the websocket feed and
// the control endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	control    Controller
	hub        *Hub
}

// New creates a Server that reads state from the given tracker.
// A nil control disables the POST endpoints.
func New(addr string, tracker *status.Tracker, control Controller) *Server {
	s := &Server{
		tracker: tracker,
		control: control,
		hub:     NewHub(),
	}

	r := httprouter.New()
	r.GET("/", s.handleIndex)
	r.GET("/index.html", s.handleIndex)
	r.GET("/index.json", s.handleJSON)
	r.GET("/ws", s.handleWebsocket)
	r.POST("/calibration", s.handleCalibration)
	r.POST("/speech", s.handleSpeech)
	r.POST("/speech/replay", s.handleReplay)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Hub returns the websocket hub fed by the daemon loop.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and disconnects displays.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleCalibration(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.control == nil {
		http.Error(w, "controls disabled", http.StatusServiceUnavailable)
		return
	}
	s.control.Recalibrate()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.control == nil {
		http.Error(w, "controls disabled", http.StatusServiceUnavailable)
		return
	}
	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
		return
	}
	s.control.SetSpeechEnabled(enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplay(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.control == nil {
		http.Error(w, "controls disabled", http.StatusServiceUnavailable)
		return
	}
	if !s.control.ReplayPhrase() {
		http.Error(w, "no phrase to replay or speech is off", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
