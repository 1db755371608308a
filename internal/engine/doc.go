// Package engine schedules validated workflow graphs. Independent branches
// of the DAG run concurrently on a worker pool; a branch that fails takes
// down only its own dependents, and the run as a whole fails only when the
// Output node can no longer complete. All observable run state lives in the
// tracker; the engine holds no state a caller could read mid-flight.
package engine
