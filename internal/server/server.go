// Package server exposes the workflow builder's HTTP API: workflow CRUD,
// execution start/poll/cancel, document ingestion, and the component
// catalog, plus health and metrics endpoints.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vk/flowstack/internal/engine"
	"github.com/vk/flowstack/internal/ingest"
	"github.com/vk/flowstack/internal/tracker"
)

// maxUploadBytes bounds a single document upload.
const maxUploadBytes = 32 << 20

// Server wires the HTTP surface over the engine, tracker, and ingestion
// pipeline.
type Server struct {
	router    *mux.Router
	logger    *slog.Logger
	workflows WorkflowStore
	engine    *engine.Engine
	tracker   *tracker.Tracker
	pipeline  *ingest.Pipeline
	documents *ingest.Registry
}

// New assembles the router. All collaborators are required except pipeline
// and documents, which may be nil when ingestion is disabled; the document
// routes then answer 503.
func New(logger *slog.Logger, workflows WorkflowStore, eng *engine.Engine, tr *tracker.Tracker, pipeline *ingest.Pipeline, documents *ingest.Registry) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		workflows: workflows,
		engine:    eng,
		tracker:   tr,
		pipeline:  pipeline,
		documents: documents,
	}
	s.routes()
	return s
}

// Handler returns the fully configured root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.instrument)

	api.HandleFunc("/workflows", s.handleListWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}", s.handlePutWorkflow).Methods(http.MethodPut)
	api.HandleFunc("/workflows/{id}", s.handleGetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/workflows/{id}", s.handleDeleteWorkflow).Methods(http.MethodDelete)
	api.HandleFunc("/workflows/{id}/execute", s.handleExecute).Methods(http.MethodPost)

	api.HandleFunc("/executions/{id}", s.handleGetExecution).Methods(http.MethodGet)
	api.HandleFunc("/executions/{id}/cancel", s.handleCancelExecution).Methods(http.MethodPost)

	api.HandleFunc("/documents", s.handleUploadDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)

	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)

	api.HandleFunc("/components", s.handleComponents).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond writes a JSON body with the given status.
func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response body.", "error", err)
	}
}

// respondError writes the uniform error envelope.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, map[string]string{"error": message})
}
