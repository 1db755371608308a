// Package tracker owns execution run records. Every mutation of a live run
// flows through a Tracker, which serializes writers and hands readers deep
// snapshot copies, so no caller can race against in-flight execution state.
package tracker

import (
	"time"
)

// Status is the lifecycle state of an execution run.
// Pending -> Running -> {Completed | Failed}; the last two are terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// LogEntry is one structured line in an execution's log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	NodeID  string    `json:"nodeId,omitempty"`
	Message string    `json:"message"`
}

// ChatMessage records one side of the run's conversation: the user's query
// on the way in, the assistant's response on the way out.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"timestamp"`
}

// Execution is one run of a validated workflow graph. Records are never
// mutated after reaching a terminal status; re-running a graph always mints
// a fresh id.
type Execution struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflowId"`
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	OutputData  map[string]any `json:"outputData,omitempty"`
	Log         []LogEntry     `json:"log"`
	Error       string         `json:"error,omitempty"`
	ChatHistory []ChatMessage  `json:"chatHistory,omitempty"`
}

// Clone returns a deep copy suitable for handing outside the tracker.
func (e *Execution) Clone() *Execution {
	out := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	if e.OutputData != nil {
		out.OutputData = make(map[string]any, len(e.OutputData))
		for k, v := range e.OutputData {
			out.OutputData[k] = v
		}
	}
	out.Log = append([]LogEntry(nil), e.Log...)
	out.ChatHistory = append([]ChatMessage(nil), e.ChatHistory...)
	return &out
}

// AppendLog adds one structured line to the run log.
func (e *Execution) AppendLog(level, nodeID, message string) {
	e.Log = append(e.Log, LogEntry{Time: time.Now().UTC(), Level: level, NodeID: nodeID, Message: message})
}
