// Package api provides HTTP API handlers for the PoseCam application.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/devika/posecam/internal/engine"
	"github.com/devika/posecam/internal/session"
	"github.com/devika/posecam/internal/store"
)

// ModelsHandler handles HTTP requests for the model registry and model
// switching.
type ModelsHandler struct {
	store   *store.Store
	session *session.Session
}

// NewModelsHandler creates a new ModelsHandler.
func NewModelsHandler(s *store.Store, sess *session.Session) *ModelsHandler {
	return &ModelsHandler{store: s, session: sess}
}

// ServeHTTP implements the http.Handler interface.
// GET /api/models lists cached models; POST /api/models switches to one.
func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/models")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.sel(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	// Item endpoint: /api/models/{id}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type modelResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Task      string `json:"task"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

type listModelsResponse struct {
	Models []modelResponse `json:"models"`
}

type selectModelRequest struct {
	ID   string `json:"id"`
	Task string `json:"task,omitempty"`
}

type selectModelResponse struct {
	Model string `json:"model"`
	Task  string `json:"task"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *ModelsHandler) list(w http.ResponseWriter, r *http.Request) {
	models, err := h.store.Models().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := listModelsResponse{Models: make([]modelResponse, 0, len(models))}
	for _, m := range models {
		resp.Models = append(resp.Models, toModelResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ModelsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.store.Models().Get(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toModelResponse(m))
}

// sel switches the session to the requested model. The load itself is
// single-flight inside the session; a request arriving mid-load shares the
// outstanding load's outcome.
func (h *ModelsHandler) sel(w http.ResponseWriter, r *http.Request) {
	var req selectModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	task := engine.Task(req.Task)
	if task == "" {
		task = h.taskFor(req.ID)
	}
	if task != engine.TaskDetect && task != engine.TaskPose {
		writeError(w, http.StatusBadRequest, "task must be detect or pose")
		return
	}

	if err := h.session.LoadModel(r.Context(), req.ID, task); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if h.store != nil {
		// The model is already live; a persistence failure only costs the
		// selection surviving a restart.
		if err := h.store.Settings().Set(store.SettingSelectedModel, req.ID); err != nil {
			log.Printf("Failed to persist model selection: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, selectModelResponse{Model: req.ID, Task: string(task)})
}

// taskFor looks the task up in the registry, defaulting to detect for
// unregistered models.
func (h *ModelsHandler) taskFor(id string) engine.Task {
	if m, err := h.store.Models().Get(id); err == nil {
		return engine.Task(m.Task)
	}
	return engine.TaskDetect
}

func toModelResponse(m *store.Model) modelResponse {
	return modelResponse{
		ID:        m.ID,
		Name:      m.Name,
		Task:      m.Task,
		SizeBytes: m.SizeBytes,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
