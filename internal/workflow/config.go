package workflow

import (
	"encoding/json"
	"fmt"
)

// NodeConfig is the sum type over per-kind node configuration. Configs are
// immutable values: editing a node replaces its config wholesale, producing a
// new Graph value, so a graph handed to the engine can never be raced against.
type NodeConfig interface {
	Kind() NodeKind
	clone() NodeConfig
}

// UserQueryConfig configures a UserQuery entry node.
type UserQueryConfig struct {
	QueryText string `json:"queryText"`
}

func (UserQueryConfig) Kind() NodeKind { return KindUserQuery }

func (c UserQueryConfig) clone() NodeConfig { return c }

// KnowledgeBaseConfig configures a KnowledgeBase retrieval node.
type KnowledgeBaseConfig struct {
	DocumentRefs        []DocumentRef `json:"documentRefs"`
	EmbeddingCredential string        `json:"embeddingCredential"`
}

func (KnowledgeBaseConfig) Kind() NodeKind { return KindKnowledgeBase }

func (c KnowledgeBaseConfig) clone() NodeConfig {
	out := c
	out.DocumentRefs = make([]DocumentRef, len(c.DocumentRefs))
	copy(out.DocumentRefs, c.DocumentRefs)
	return out
}

// LLMEngineConfig configures an LLMEngine inference node.
type LLMEngineConfig struct {
	ModelID      string  `json:"modelId"`
	Credential   string  `json:"credential"`
	SystemPrompt string  `json:"systemPrompt,omitempty"`
	UseWebSearch bool    `json:"useWebSearch"`
	Temperature  float64 `json:"temperature"`
}

func (LLMEngineConfig) Kind() NodeKind { return KindLLMEngine }

func (c LLMEngineConfig) clone() NodeConfig { return c }

// OutputConfig configures an Output sink node. It carries no settings; the
// node accumulates the terminal response and citation list at run time.
type OutputConfig struct{}

func (OutputConfig) Kind() NodeKind { return KindOutput }

func (c OutputConfig) clone() NodeConfig { return c }

// decodeConfig parses a raw config payload into the concrete type for kind.
// Out-of-range values are rejected here so a malformed graph never reaches
// the validator, let alone the engine.
func decodeConfig(kind NodeKind, raw json.RawMessage) (NodeConfig, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindUserQuery:
		var c UserQueryConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding UserQuery config: %w", err)
		}
		return c, nil
	case KindKnowledgeBase:
		var c KnowledgeBaseConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding KnowledgeBase config: %w", err)
		}
		return c, nil
	case KindLLMEngine:
		var c LLMEngineConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding LLMEngine config: %w", err)
		}
		if c.Temperature < 0 || c.Temperature > 2 {
			return nil, fmt.Errorf("temperature %v out of range [0, 2]", c.Temperature)
		}
		return c, nil
	case KindOutput:
		var c OutputConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding Output config: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}

// DefaultConfig returns the editor-facing default configuration for a kind.
func DefaultConfig(kind NodeKind) (NodeConfig, error) {
	switch kind {
	case KindUserQuery:
		return UserQueryConfig{}, nil
	case KindKnowledgeBase:
		return KnowledgeBaseConfig{DocumentRefs: []DocumentRef{}}, nil
	case KindLLMEngine:
		return LLMEngineConfig{Temperature: 0.7}, nil
	case KindOutput:
		return OutputConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}
