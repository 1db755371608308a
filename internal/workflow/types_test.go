package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphWireFormat(t *testing.T) {
	raw := `{
		"id": "wf-9",
		"name": "support bot",
		"nodes": [
			{"id": "query", "kind": "UserQuery", "config": {"queryText": "hello"}},
			{"id": "kb", "kind": "KnowledgeBase", "config": {
				"documentRefs": [{"id": "d1", "displayName": "faq.pdf", "byteSize": 2048, "ingestionStatus": "Ready"}],
				"embeddingCredential": "sk-embed"
			}},
			{"id": "llm", "kind": "LLMEngine", "config": {"modelId": "gpt-4o", "credential": "sk-llm", "useWebSearch": true, "temperature": 1.2}},
			{"id": "out", "kind": "Output", "config": {}}
		],
		"edges": [
			{"sourceNodeId": "query", "sourceHandle": "query-output", "targetNodeId": "llm", "targetHandle": "query-input"}
		]
	}`

	var g Graph
	require.NoError(t, json.Unmarshal([]byte(raw), &g))

	require.Len(t, g.Nodes, 4)
	assert.Equal(t, UserQueryConfig{QueryText: "hello"}, g.Nodes[0].Config)

	kb, ok := g.Nodes[1].Config.(KnowledgeBaseConfig)
	require.True(t, ok)
	assert.Equal(t, "sk-embed", kb.EmbeddingCredential)
	require.Len(t, kb.DocumentRefs, 1)
	assert.Equal(t, IngestionReady, kb.DocumentRefs[0].IngestionStatus)

	llm, ok := g.Nodes[2].Config.(LLMEngineConfig)
	require.True(t, ok)
	assert.True(t, llm.UseWebSearch)
	assert.InDelta(t, 1.2, llm.Temperature, 1e-9)

	// Round trip preserves the wire spellings.
	out, err := json.Marshal(&g)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"kind":"KnowledgeBase"`)
	assert.Contains(t, string(out), `"sourceNodeId":"query"`)
	assert.Contains(t, string(out), `"ingestionStatus":"Ready"`)
}

func TestNodeDecodeRejectsBadConfig(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		var n Node
		err := json.Unmarshal([]byte(`{"id": "x", "kind": "Mystery", "config": {}}`), &n)
		assert.ErrorContains(t, err, "unknown node kind")
	})

	t.Run("temperature out of range", func(t *testing.T) {
		var n Node
		err := json.Unmarshal([]byte(`{"id": "x", "kind": "LLMEngine", "config": {"modelId": "gpt-4o", "temperature": 3.5}}`), &n)
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("missing config defaults to empty object", func(t *testing.T) {
		var n Node
		require.NoError(t, json.Unmarshal([]byte(`{"id": "x", "kind": "Output"}`), &n))
		assert.Equal(t, OutputConfig{}, n.Config)
	})
}

func TestGraphCloneIsDeep(t *testing.T) {
	g := ragGraph()
	clone := g.Clone()

	clone.Nodes[0].Config = UserQueryConfig{QueryText: "mutated"}
	clone.Edges[0].SourceNodeID = "mutated"
	kb := clone.Nodes[3].Config.(KnowledgeBaseConfig)
	kb.DocumentRefs[0].IngestionStatus = IngestionError

	assert.Equal(t, "capital of France?", g.Nodes[0].Config.(UserQueryConfig).QueryText)
	assert.Equal(t, "query", g.Edges[0].SourceNodeID)
	assert.Equal(t, IngestionReady, g.Nodes[3].Config.(KnowledgeBaseConfig).DocumentRefs[0].IngestionStatus)
}

func TestDefaultConfigCoversEveryKind(t *testing.T) {
	for _, kind := range Kinds() {
		cfg, err := DefaultConfig(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, cfg.Kind())
	}

	_, err := DefaultConfig(NodeKind("Mystery"))
	assert.Error(t, err)
}

func TestPortRegistryLookups(t *testing.T) {
	p, ok := OutputPort(KindUserQuery, "query-output")
	require.True(t, ok)
	assert.Equal(t, TypeQueryText, p.Type)

	p, ok = InputPort(KindLLMEngine, "context-input")
	require.True(t, ok)
	assert.Equal(t, TypeContextBundle, p.Type)
	assert.False(t, p.Required)

	_, ok = InputPort(KindUserQuery, "query-input")
	assert.False(t, ok)

	assert.Empty(t, OutputPorts(KindOutput))
	assert.Len(t, InputPorts(KindLLMEngine), 2)
}
