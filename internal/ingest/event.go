// Package ingest is the single entry point for lifecycle notifications
// from the external agent runtime. Each event is resolved against durable
// agent and task records, folded through a deterministic reducer, and
// applied as one transaction.
package ingest

// Actions carried by inbound lifecycle events.
const (
	ActionStart    = "start"
	ActionProgress = "progress"
	ActionEnd      = "end"
	ActionError    = "error"
	ActionDocument = "document"
)

// Event is the wire shape of one lifecycle notification. RunID and Action
// are required; everything else is optional and may arrive as JSON null.
type Event struct {
	RunID      string           `json:"runId"`
	Action     string           `json:"action"`
	AgentID    string           `json:"agentId,omitempty"`
	SessionKey string           `json:"sessionKey,omitempty"`
	Timestamp  string           `json:"timestamp,omitempty"`
	Prompt     string           `json:"prompt,omitempty"`
	Message    string           `json:"message,omitempty"`
	Response   string           `json:"response,omitempty"`
	Error      string           `json:"error,omitempty"`
	Source     string           `json:"source,omitempty"`
	EventType  string           `json:"eventType,omitempty"`
	Document   *DocumentPayload `json:"document,omitempty"`
}

// DocumentPayload describes an artifact produced by the agent runtime.
type DocumentPayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
}
