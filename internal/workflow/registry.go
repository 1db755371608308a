package workflow

// Port is a named, typed connection point on a node kind. Data enters a node
// through input ports and leaves through output ports; the validator holds
// every edge to the port types declared here.
type Port struct {
	Name     string   `json:"name"`
	Type     PortType `json:"type"`
	Required bool     `json:"required"`
}

// portSpec declares the full port surface of one node kind.
type portSpec struct {
	inputs  []Port
	outputs []Port
}

// portRegistry is the single source of truth for each kind's ports. The
// validator, the default-config construction, and the engine all consult this
// table rather than carrying their own copy of the kind list.
var portRegistry = map[NodeKind]portSpec{
	KindUserQuery: {
		outputs: []Port{{Name: "query-output", Type: TypeQueryText}},
	},
	KindKnowledgeBase: {
		inputs:  []Port{{Name: "query-input", Type: TypeQueryText, Required: true}},
		outputs: []Port{{Name: "context-output", Type: TypeContextBundle}},
	},
	KindLLMEngine: {
		inputs: []Port{
			{Name: "query-input", Type: TypeQueryText, Required: true},
			{Name: "context-input", Type: TypeContextBundle},
		},
		outputs: []Port{{Name: "response-output", Type: TypeResponseBundle}},
	},
	KindOutput: {
		inputs: []Port{{Name: "response-input", Type: TypeResponseBundle, Required: true}},
	},
}

// InputPorts returns the input ports a kind accepts.
func InputPorts(kind NodeKind) []Port {
	return portRegistry[kind].inputs
}

// OutputPorts returns the output ports a kind produces.
func OutputPorts(kind NodeKind) []Port {
	return portRegistry[kind].outputs
}

// InputPort looks up an input port on a kind by handle name.
func InputPort(kind NodeKind, handle string) (Port, bool) {
	for _, p := range portRegistry[kind].inputs {
		if p.Name == handle {
			return p, true
		}
	}
	return Port{}, false
}

// OutputPort looks up an output port on a kind by handle name.
func OutputPort(kind NodeKind, handle string) (Port, bool) {
	for _, p := range portRegistry[kind].outputs {
		if p.Name == handle {
			return p, true
		}
	}
	return Port{}, false
}
