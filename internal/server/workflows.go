package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vk/flowstack/internal/tracker"
	"github.com/vk/flowstack/internal/workflow"
)

func (s *Server) handlePutWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var g workflow.Graph
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid workflow body: "+err.Error())
		return
	}
	// The path owns the identity; a mismatched body id is rejected rather
	// than silently rewritten.
	if g.ID != "" && g.ID != id {
		s.respondError(w, http.StatusBadRequest, "workflow id in body does not match path")
		return
	}
	g.ID = id

	if _, err := workflow.Validate(&g); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.workflows.Put(&g)
	s.logger.Info("Workflow stored.", "workflowID", id, "nodes", len(g.Nodes), "edges", len(g.Edges))
	s.respond(w, http.StatusOK, &g)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	g, ok := s.workflows.Get(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "workflow not found")
		return
	}
	s.respond(w, http.StatusOK, g)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.workflows.List())
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.workflows.Delete(id) {
		s.respondError(w, http.StatusNotFound, "workflow not found")
		return
	}
	s.logger.Info("Workflow deleted.", "workflowID", id)
	w.WriteHeader(http.StatusNoContent)
}

type executeRequest struct {
	QueryText string `json:"queryText"`
}

type executeResponse struct {
	ExecutionID string         `json:"executionId"`
	Status      tracker.Status `json:"status"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	g, ok := s.workflows.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "workflow not found")
		return
	}

	var req executeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	// Stored workflows were validated on write, but revalidating yields the
	// fresh topological order the engine needs.
	order, err := workflow.Validate(g)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h, err := s.engine.Execute(r.Context(), g, order, req.QueryText)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("Execution started.", "workflowID", id, "executionID", h.ExecutionID)
	s.respond(w, http.StatusAccepted, executeResponse{ExecutionID: h.ExecutionID, Status: tracker.StatusPending})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.tracker.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, tracker.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "execution not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, exec)
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.Cancel(id); err != nil {
		s.respondError(w, http.StatusNotFound, "no running execution with that id")
		return
	}
	s.respond(w, http.StatusAccepted, map[string]string{"executionId": id, "status": "cancelling"})
}
