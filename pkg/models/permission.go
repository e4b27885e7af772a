package models

import (
	"maps"
	"time"
)

// PermissionRequest is a pending authorization gate attached to a tool
// execution, resolved by a user grant or deny.
//
// Invariants: exactly one active (unresolved) permission per execution;
// once ResolvedTime is set, Granted is set and both are immutable.
type PermissionRequest struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"sessionId"`
	ExecutionID  string         `json:"executionId"`
	ToolID       string         `json:"toolId"`
	ToolName     string         `json:"toolName"`
	Args         map[string]any `json:"args,omitempty"`
	RequestTime  time.Time      `json:"requestTime"`
	ResolvedTime *time.Time     `json:"resolvedTime,omitempty"`
	Granted      *bool          `json:"granted,omitempty"`
	PreviewID    string         `json:"previewId,omitempty"`
}

// Resolved reports whether the request has been granted or denied.
func (p *PermissionRequest) Resolved() bool {
	return p.ResolvedTime != nil
}

// Clone creates a copy safe to hand to other goroutines.
func (p *PermissionRequest) Clone() *PermissionRequest {
	if p == nil {
		return nil
	}
	out := *p
	if p.Args != nil {
		out.Args = maps.Clone(p.Args)
	}
	if p.ResolvedTime != nil {
		t := *p.ResolvedTime
		out.ResolvedTime = &t
	}
	if p.Granted != nil {
		g := *p.Granted
		out.Granted = &g
	}
	return &out
}
