// Package server provides the HTTP surface of the PoseCam application:
// live session state, model selection, camera controls and the MJPEG
// preview stream.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/devika/posecam/internal/capture"
	"github.com/devika/posecam/internal/model"
	"github.com/devika/posecam/internal/server/api"
	"github.com/devika/posecam/internal/session"
	"github.com/devika/posecam/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Session   *session.Session
	Camera    capture.Camera
	Models    *model.Manager
}

// Server represents the HTTP server for the PoseCam application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Session != nil {
		s.mux.Handle("/api/state", NewStateHandler(s.config.Session))
		s.mux.Handle("/api/state/ws", NewStateSocketHandler(s.config.Session))
	}

	if s.config.Store != nil && s.config.Session != nil {
		modelsHandler := api.NewModelsHandler(s.config.Store, s.config.Session)
		s.mux.Handle("/api/models", modelsHandler)
		s.mux.Handle("/api/models/", modelsHandler)
	}

	if s.config.Session != nil {
		controls := api.NewControlsHandler(s.config.Session, s.config.Camera, s.config.Store)
		s.mux.Handle("/api/controls/", controls)
	}

	if s.config.Camera != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Camera))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
