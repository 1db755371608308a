// Package workflow defines the graph model for AI-pipeline workflows: typed
// nodes, handle-addressed edges, per-kind configuration, and the validator
// that gates a graph before the engine is allowed to execute it.
//
// The JSON field names and enum spellings in this package are a wire
// contract: stored graphs must round-trip byte-compatibly with the editor
// and storage layers that sit outside this repository.
package workflow
