package api

// CreateSessionRequest is the HTTP request body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// PostMessageRequest is the HTTP request body for POST /api/v1/sessions/:id/messages.
type PostMessageRequest struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}
