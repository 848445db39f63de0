package state

import "time"

type TaskStatus string

const (
	TaskInbox      TaskStatus = "inbox"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
	TaskArchived   TaskStatus = "archived"
)

const (
	AgentLevelLead = "LEAD"
	AgentLevelInt  = "INT"
	AgentLevelSpec = "SPC"

	AgentIdle    = "idle"
	AgentActive  = "active"
	AgentBlocked = "blocked"
)

type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Level     string    `json:"level"`
	Status    string    `json:"status"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	AssigneeIDs []string   `json:"assignee_ids"`
	Tags        []string   `json:"tags"`
	SessionKey  string     `json:"session_key,omitempty"`
	RunID       string     `json:"run_id,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskPatch is a partial update; nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	AssigneeIDs *[]string
	Tags        *[]string
	StartedAt   *time.Time
}

type Message struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	FromAgentID string    `json:"from_agent_id"`
	Content     string    `json:"content"`
	Attachments []string  `json:"attachments"`
	CreatedAt   time.Time `json:"created_at"`
}

type Activity struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	AgentID   string    `json:"agent_id"`
	Message   string    `json:"message"`
	TargetID  string    `json:"target_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	Type             string    `json:"type"`
	Path             string    `json:"path,omitempty"`
	TaskID           string    `json:"task_id,omitempty"`
	CreatedByAgentID string    `json:"created_by_agent_id"`
	MessageID        string    `json:"message_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
