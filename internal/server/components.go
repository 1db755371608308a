package server

import (
	"net/http"

	"github.com/vk/flowstack/internal/workflow"
)

// component describes one node kind to graph-building clients: its default
// configuration and the ports edges can attach to.
type component struct {
	Kind          workflow.NodeKind   `json:"kind"`
	DefaultConfig workflow.NodeConfig `json:"defaultConfig"`
	Inputs        []workflow.Port     `json:"inputs"`
	Outputs       []workflow.Port     `json:"outputs"`
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	kinds := workflow.Kinds()
	out := make([]component, 0, len(kinds))
	for _, kind := range kinds {
		cfg, err := workflow.DefaultConfig(kind)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		inputs := workflow.InputPorts(kind)
		if inputs == nil {
			inputs = []workflow.Port{}
		}
		outputs := workflow.OutputPorts(kind)
		if outputs == nil {
			outputs = []workflow.Port{}
		}
		out = append(out, component{
			Kind:          kind,
			DefaultConfig: cfg,
			Inputs:        inputs,
			Outputs:       outputs,
		})
	}
	s.respond(w, http.StatusOK, out)
}
