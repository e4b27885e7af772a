package models

import (
	"maps"
	"time"
)

// ExecutionStatus is the lifecycle state of a tool execution.
type ExecutionStatus string

const (
	StatusPending            ExecutionStatus = "pending"
	StatusRunning            ExecutionStatus = "running"
	StatusAwaitingPermission ExecutionStatus = "awaiting_permission"
	StatusCompleted          ExecutionStatus = "completed"
	StatusError              ExecutionStatus = "error"
	StatusAborted            ExecutionStatus = "aborted"
)

// IsTerminal reports whether the status permits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusAborted
}

// ExecutionError describes why an execution failed.
type ExecutionError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ToolExecution is one invocation of a named agent capability with a
// tracked lifecycle. Mutable records are owned by the tool execution
// manager; everything handed out is a copy.
//
// Invariants: EndTime is set iff the status is terminal, and
// ExecutionTimeMs equals EndTime − StartTime when both are set. After a
// terminal status the only permitted mutations are attaching PreviewID
// or Summary.
type ToolExecution struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionId"`
	ToolID          string          `json:"toolId"`
	ToolName        string          `json:"toolName"`
	ToolUseID       string          `json:"toolUseId,omitempty"`
	Args            map[string]any  `json:"args,omitempty"`
	Status          ExecutionStatus `json:"status"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         *time.Time      `json:"endTime,omitempty"`
	ExecutionTimeMs *int64          `json:"executionTimeMs,omitempty"`
	Result          any             `json:"result,omitempty"`
	Error           *ExecutionError `json:"error,omitempty"`
	PermissionID    string          `json:"permissionId,omitempty"`
	PreviewID       string          `json:"previewId,omitempty"`
	Summary         string          `json:"summary,omitempty"`
}

// Clone creates a copy safe to hand to other goroutines. Args is copied
// one level deep; values are treated as opaque.
func (e *ToolExecution) Clone() *ToolExecution {
	if e == nil {
		return nil
	}
	out := *e
	if e.Args != nil {
		out.Args = maps.Clone(e.Args)
	}
	if e.EndTime != nil {
		end := *e.EndTime
		out.EndTime = &end
	}
	if e.ExecutionTimeMs != nil {
		ms := *e.ExecutionTimeMs
		out.ExecutionTimeMs = &ms
	}
	if e.Error != nil {
		errCopy := *e.Error
		out.Error = &errCopy
	}
	return &out
}
