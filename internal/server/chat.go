package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vk/flowstack/internal/adapters"
	"github.com/vk/flowstack/internal/engine"
)

// chatRequest is a direct inference call, bypassing workflow graphs.
type chatRequest struct {
	QueryText    string  `json:"queryText"`
	ModelID      string  `json:"modelId"`
	Credential   string  `json:"credential"`
	SystemPrompt string  `json:"systemPrompt"`
	Context      string  `json:"context"`
	UseWebSearch bool    `json:"useWebSearch"`
	Temperature  float64 `json:"temperature"`
}

type chatResponse struct {
	Response  string   `json:"response"`
	Sources   []string `json:"sources"`
	ModelUsed string   `json:"modelUsed"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.QueryText == "" {
		s.respondError(w, http.StatusBadRequest, "queryText is required")
		return
	}
	if req.ModelID == "" {
		s.respondError(w, http.StatusBadRequest, "modelId is required")
		return
	}

	resp, err := s.engine.Chat(r.Context(), engine.ChatRequest{
		Query:        req.QueryText,
		ModelID:      req.ModelID,
		Credential:   req.Credential,
		SystemPrompt: req.SystemPrompt,
		Context:      req.Context,
		UseWebSearch: req.UseWebSearch,
		Temperature:  req.Temperature,
	})
	if err != nil {
		var infErr *adapters.InferenceError
		if errors.As(err, &infErr) {
			s.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []string{}
	}
	s.respond(w, http.StatusOK, chatResponse{
		Response:  resp.Text,
		Sources:   sources,
		ModelUsed: req.ModelID,
	})
}
