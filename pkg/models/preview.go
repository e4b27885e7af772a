package models

import "maps"

// PreviewContentType tells clients how to render a preview. The set is
// open; unknown values fall back to plain text rendering.
type PreviewContentType string

const (
	PreviewText      PreviewContentType = "text"
	PreviewCode      PreviewContentType = "code"
	PreviewDiff      PreviewContentType = "diff"
	PreviewDirectory PreviewContentType = "directory"
	PreviewImage     PreviewContentType = "image"
)

// Preview is a compact, renderable summary of a tool execution's result
// or a permission request's subject. Generation happens outside the
// core; the core stores, attaches, and forwards these records.
type Preview struct {
	ID           string             `json:"id"`
	SessionID    string             `json:"sessionId"`
	ExecutionID  string             `json:"executionId"`
	PermissionID string             `json:"permissionId,omitempty"`
	ContentType  PreviewContentType `json:"contentType"`
	BriefContent string             `json:"briefContent"`
	FullContent  string             `json:"fullContent,omitempty"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
}

// Clone creates a copy safe to hand to other goroutines.
func (p *Preview) Clone() *Preview {
	if p == nil {
		return nil
	}
	out := *p
	if p.Metadata != nil {
		out.Metadata = maps.Clone(p.Metadata)
	}
	return &out
}
