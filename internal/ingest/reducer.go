package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/narrative"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/state"
)

// RunTag marks every task created from an external agent run.
const RunTag = "openclaw"

// placeholderTitle prefixes titles assigned before a usable prompt arrives.
const placeholderTitle = "Agent task"

// TaskDraft describes a task the reducer wants created.
type TaskDraft struct {
	Title       string
	Description string
	AssigneeIDs []string
	Tags        []string
	SessionKey  string
	RunID       string
	StartedAt   time.Time
}

// MessageDraft is a conversation entry to append to the event's task.
// AttachDocument links the document created by the same decision.
type MessageDraft struct {
	FromAgentID    string
	Content        string
	AttachDocument bool
}

// ActivityDraft is an audit entry. TargetTask selects the event's task
// (resolved or freshly created) as the target.
type ActivityDraft struct {
	Type       string
	AgentID    string
	Message    string
	TargetTask bool
}

// DocumentDraft describes an artifact to persist. LinkTask attaches it to
// the event's task when one was resolved.
type DocumentDraft struct {
	Title            string
	Content          string
	Type             string
	Path             string
	CreatedByAgentID string
	LinkTask         bool
}

// Decision is the reducer's typed output: at most one task mutation plus
// the derived artifacts to append. The zero Decision is a no-op drop.
type Decision struct {
	CreateTask *TaskDraft
	Patch      *state.TaskPatch
	Messages   []MessageDraft
	Activities []ActivityDraft
	Document   *DocumentDraft
}

// IsNoop reports whether the decision has no effects at all.
func (d Decision) IsNoop() bool {
	return d.CreateTask == nil && d.Patch == nil && d.Document == nil &&
		len(d.Messages) == 0 && len(d.Activities) == 0
}

// Decide maps (event, resolved task, resolved agent) to a transition.
// It is a total function: combinations outside the lifecycle table fall
// through to an empty decision, which the handler drops silently.
func Decide(evt Event, task *state.Task, agent *state.Agent, now time.Time) Decision {
	switch evt.Action {
	case ActionStart:
		return decideStart(evt, task, agent, now)
	case ActionProgress:
		return decideProgress(evt, task, agent)
	case ActionEnd:
		return decideEnd(evt, task, agent, now)
	case ActionError:
		return decideError(evt, task, agent, now)
	case ActionDocument:
		return decideDocument(evt, task, agent)
	default:
		return Decision{}
	}
}

func decideStart(evt Event, task *state.Task, agent *state.Agent, now time.Time) Decision {
	if task == nil {
		title := fmt.Sprintf("%s %s", placeholderTitle, shortRunID(evt.RunID))
		if evt.Prompt != "" {
			title = narrative.SummarizeTitle(evt.Prompt)
		}
		description := evt.Prompt
		if description == "" {
			description = fmt.Sprintf("OpenClaw agent task\nRun ID: %s", evt.RunID)
		}

		draft := &TaskDraft{
			Title:       title,
			Description: description,
			Tags:        []string{RunTag},
			SessionKey:  evt.SessionKey,
			RunID:       evt.RunID,
			StartedAt:   now,
		}
		decision := Decision{CreateTask: draft}
		if agent != nil {
			draft.AssigneeIDs = []string{agent.ID}
			prompt := evt.Prompt
			if prompt == "" {
				prompt = "N/A"
			}
			sourcePrefix := ""
			if evt.Source != "" {
				sourcePrefix = fmt.Sprintf("**%s:** ", evt.Source)
			}
			decision.Messages = []MessageDraft{{
				FromAgentID: agent.ID,
				Content:     fmt.Sprintf("🚀 **Started**\n\n%s%s", sourcePrefix, prompt),
			}}
			decision.Activities = []ActivityDraft{{
				Type:       "status_update",
				AgentID:    agent.ID,
				Message:    fmt.Sprintf("started \"%s\"", title),
				TargetTask: true,
			}}
		}
		return decision
	}

	startedAt := now
	if evt.Prompt != "" && hasPlaceholderTitle(task.Title) {
		title := narrative.SummarizeTitle(evt.Prompt)
		return Decision{Patch: &state.TaskPatch{
			Title:       &title,
			Description: &evt.Prompt,
			StartedAt:   &startedAt,
		}}
	}
	// Repeated start: only reset the clock.
	return Decision{Patch: &state.TaskPatch{StartedAt: &startedAt}}
}

func decideProgress(evt Event, task *state.Task, agent *state.Agent) Decision {
	if task == nil || agent == nil {
		return Decision{}
	}
	content := evt.Message
	if content == "" {
		content = "Progress update"
	}
	return Decision{Messages: []MessageDraft{{FromAgentID: agent.ID, Content: content}}}
}

func decideEnd(evt Event, task *state.Task, agent *state.Agent, now time.Time) Decision {
	if task == nil {
		return Decision{}
	}
	status := state.TaskDone
	decision := Decision{Patch: &state.TaskPatch{Status: &status}}
	if agent == nil {
		return decision
	}

	durationStr := narrative.FormatDuration(elapsed(task, now))
	content := fmt.Sprintf("✅ **Completed** in **%s**", durationStr)
	if evt.Response != "" {
		content += "\n\n" + evt.Response
	}
	decision.Messages = []MessageDraft{{FromAgentID: agent.ID, Content: content}}
	decision.Activities = []ActivityDraft{{
		Type:       "status_update",
		AgentID:    agent.ID,
		Message:    fmt.Sprintf("completed \"%s\" in %s", task.Title, durationStr),
		TargetTask: true,
	}}
	return decision
}

func decideError(evt Event, task *state.Task, agent *state.Agent, now time.Time) Decision {
	if task == nil {
		return Decision{}
	}
	status := state.TaskReview
	decision := Decision{Patch: &state.TaskPatch{Status: &status}}
	if agent == nil {
		return decision
	}

	durationStr := narrative.FormatDuration(elapsed(task, now))
	errText := evt.Error
	if errText == "" {
		errText = "Unknown error"
	}
	decision.Messages = []MessageDraft{{
		FromAgentID: agent.ID,
		Content:     fmt.Sprintf("❌ **Error** after **%s**\n\n%s", durationStr, errText),
	}}
	decision.Activities = []ActivityDraft{{
		Type:       "status_update",
		AgentID:    agent.ID,
		Message:    fmt.Sprintf("error on \"%s\" after %s", task.Title, durationStr),
		TargetTask: true,
	}}
	return decision
}

func decideDocument(evt Event, task *state.Task, agent *state.Agent) Decision {
	if agent == nil || evt.Document == nil {
		return Decision{}
	}
	doc := evt.Document
	decision := Decision{Document: &DocumentDraft{
		Title:            doc.Title,
		Content:          doc.Content,
		Type:             doc.Type,
		Path:             doc.Path,
		CreatedByAgentID: agent.ID,
		LinkTask:         task != nil,
	}}

	activityMsg := fmt.Sprintf("created document \"%s\"", doc.Title)
	if task != nil {
		activityMsg += fmt.Sprintf(" for \"%s\"", task.Title)
	}
	decision.Activities = []ActivityDraft{{
		Type:       "document_created",
		AgentID:    agent.ID,
		Message:    activityMsg,
		TargetTask: task != nil,
	}}

	if task != nil {
		content := fmt.Sprintf("📄 Created document: **%s**\n\nType: %s", doc.Title, doc.Type)
		if doc.Path != "" {
			content += fmt.Sprintf("\nPath: `%s`", doc.Path)
		}
		decision.Messages = []MessageDraft{{
			FromAgentID:    agent.ID,
			Content:        content,
			AttachDocument: true,
		}}
	}
	return decision
}

// elapsed measures from the task's started_at, falling back to its
// creation time when the clock was never set.
func elapsed(task *state.Task, now time.Time) time.Duration {
	start := task.CreatedAt
	if task.StartedAt != nil {
		start = *task.StartedAt
	}
	return now.Sub(start)
}

func hasPlaceholderTitle(title string) bool {
	return strings.HasPrefix(title, placeholderTitle)
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
