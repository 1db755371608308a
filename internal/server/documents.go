package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vk/flowstack/internal/ingest"
	"github.com/vk/flowstack/internal/workflow"
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document ingestion is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	if len(fileBytes) > maxUploadBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	credential := r.FormValue("embeddingCredential")
	ref, err := s.pipeline.Ingest(r.Context(), fileBytes, header.Filename, credential)
	if err != nil {
		// The ref survives with an Error status so the client can see and
		// clean up the failed document.
		s.respond(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"document": ref,
		})
		return
	}
	s.respond(w, http.StatusCreated, ref)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.documents == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document ingestion is not configured")
		return
	}
	list := s.documents.List()
	if list == nil {
		list = []workflow.DocumentRef{}
	}
	s.respond(w, http.StatusOK, list)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.documents == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document ingestion is not configured")
		return
	}
	ref, ok := s.documents.Get(mux.Vars(r)["id"])
	if !ok {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respond(w, http.StatusOK, ref)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "document ingestion is not configured")
		return
	}
	id := mux.Vars(r)["id"]
	err := s.pipeline.Delete(r.Context(), id)
	if errors.Is(err, ingest.ErrDocumentNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
