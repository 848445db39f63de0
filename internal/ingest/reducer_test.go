package ingest_test

import (
	"strings"
	"testing"
	"time"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/ingest"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/state"
)

var (
	testNow   = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	testAgent = &state.Agent{ID: "agent-1", Name: "OpenClaw"}
)

func startedTask(title string, startedAgo time.Duration) *state.Task {
	started := testNow.Add(-startedAgo)
	return &state.Task{
		ID:        "task-1",
		Title:     title,
		Status:    state.TaskInProgress,
		RunID:     "run-abcdef123456",
		StartedAt: &started,
		CreatedAt: started,
	}
}

func TestDecideStartCreatesTask(t *testing.T) {
	evt := ingest.Event{
		RunID:      "run-abcdef123456",
		Action:     ingest.ActionStart,
		Prompt:     "Fix the login flow",
		Source:     "telegram",
		SessionKey: "sess-1",
	}
	decision := ingest.Decide(evt, nil, testAgent, testNow)

	draft := decision.CreateTask
	if draft == nil {
		t.Fatalf("expected a task draft")
	}
	if draft.Title != "Fix the login flow" {
		t.Fatalf("title = %q", draft.Title)
	}
	if draft.Description != "Fix the login flow" {
		t.Fatalf("description = %q", draft.Description)
	}
	if len(draft.Tags) != 1 || draft.Tags[0] != "openclaw" {
		t.Fatalf("tags = %v", draft.Tags)
	}
	if len(draft.AssigneeIDs) != 1 || draft.AssigneeIDs[0] != "agent-1" {
		t.Fatalf("assignees = %v", draft.AssigneeIDs)
	}
	if !draft.StartedAt.Equal(testNow) {
		t.Fatalf("startedAt = %v", draft.StartedAt)
	}
	if len(decision.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(decision.Messages))
	}
	if decision.Messages[0].Content != "🚀 **Started**\n\n**telegram:** Fix the login flow" {
		t.Fatalf("message = %q", decision.Messages[0].Content)
	}
	if len(decision.Activities) != 1 {
		t.Fatalf("expected one activity, got %d", len(decision.Activities))
	}
	act := decision.Activities[0]
	if act.Type != "status_update" || act.Message != `started "Fix the login flow"` || !act.TargetTask {
		t.Fatalf("activity = %+v", act)
	}
}

func TestDecideStartKeepsQuotesInTitleRaw(t *testing.T) {
	evt := ingest.Event{RunID: "run-1", Action: ingest.ActionStart, Prompt: `Say "hi" to the team`}
	decision := ingest.Decide(evt, nil, testAgent, testNow)

	want := `started "Say "hi" to the team"`
	if decision.Activities[0].Message != want {
		t.Fatalf("activity = %q, want %q", decision.Activities[0].Message, want)
	}
}

func TestDecideEndKeepsQuotesInTitleRaw(t *testing.T) {
	task := startedTask(`Fix the "login" flow`, time.Minute)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionEnd}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	want := `completed "Fix the "login" flow" in 1m 0s`
	if decision.Activities[0].Message != want {
		t.Fatalf("activity = %q, want %q", decision.Activities[0].Message, want)
	}
}

func TestDecideStartWithoutPrompt(t *testing.T) {
	evt := ingest.Event{RunID: "run-abcdef123456", Action: ingest.ActionStart}
	decision := ingest.Decide(evt, nil, testAgent, testNow)

	draft := decision.CreateTask
	if draft == nil {
		t.Fatalf("expected a task draft")
	}
	if draft.Title != "Agent task run-abcd" {
		t.Fatalf("title = %q", draft.Title)
	}
	if draft.Description != "OpenClaw agent task\nRun ID: run-abcdef123456" {
		t.Fatalf("description = %q", draft.Description)
	}
	if decision.Messages[0].Content != "🚀 **Started**\n\nN/A" {
		t.Fatalf("message = %q", decision.Messages[0].Content)
	}
}

func TestDecideStartWithoutAgentSkipsArtifacts(t *testing.T) {
	evt := ingest.Event{RunID: "run-1", Action: ingest.ActionStart, Prompt: "do things"}
	decision := ingest.Decide(evt, nil, nil, testNow)

	if decision.CreateTask == nil {
		t.Fatalf("expected a task draft")
	}
	if len(decision.Messages) != 0 || len(decision.Activities) != 0 {
		t.Fatalf("expected no artifacts without an agent")
	}
}

func TestDecideRepeatedStartUpgradesPlaceholderTitle(t *testing.T) {
	task := startedTask("Agent task run-abcd", time.Minute)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionStart, Prompt: "Investigate flaky deploys"}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if decision.CreateTask != nil {
		t.Fatalf("should not create a second task")
	}
	patch := decision.Patch
	if patch == nil || patch.Title == nil || *patch.Title != "Investigate flaky deploys" {
		t.Fatalf("patch = %+v", patch)
	}
	if patch.StartedAt == nil || !patch.StartedAt.Equal(testNow) {
		t.Fatalf("startedAt not reset")
	}
}

func TestDecideRepeatedStartKeepsRealTitle(t *testing.T) {
	task := startedTask("Fix the login flow", time.Minute)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionStart, Prompt: "something else entirely"}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	patch := decision.Patch
	if patch == nil || patch.Title != nil || patch.Description != nil {
		t.Fatalf("real titles must not be overwritten: %+v", patch)
	}
	if patch.StartedAt == nil || !patch.StartedAt.Equal(testNow) {
		t.Fatalf("startedAt not reset")
	}
}

func TestDecideProgress(t *testing.T) {
	task := startedTask("Fix the login flow", time.Minute)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionProgress, Message: "halfway there"}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if len(decision.Messages) != 1 || decision.Messages[0].Content != "halfway there" {
		t.Fatalf("messages = %+v", decision.Messages)
	}
	if decision.Patch != nil || decision.CreateTask != nil {
		t.Fatalf("progress must not mutate the task")
	}
}

func TestDecideProgressDefaultsContent(t *testing.T) {
	task := startedTask("Fix the login flow", time.Minute)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionProgress}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if decision.Messages[0].Content != "Progress update" {
		t.Fatalf("content = %q", decision.Messages[0].Content)
	}
}

func TestDecideProgressUnknownRunIsDropped(t *testing.T) {
	evt := ingest.Event{RunID: "run-unknown", Action: ingest.ActionProgress, Message: "hi"}
	decision := ingest.Decide(evt, nil, testAgent, testNow)
	if !decision.IsNoop() {
		t.Fatalf("expected a drop, got %+v", decision)
	}
}

func TestDecideEnd(t *testing.T) {
	task := startedTask("Fix the login flow", 125*time.Second)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionEnd, Response: "All green."}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if decision.Patch == nil || decision.Patch.Status == nil || *decision.Patch.Status != state.TaskDone {
		t.Fatalf("patch = %+v", decision.Patch)
	}
	if decision.Messages[0].Content != "✅ **Completed** in **2m 5s**\n\nAll green." {
		t.Fatalf("message = %q", decision.Messages[0].Content)
	}
	if decision.Activities[0].Message != `completed "Fix the login flow" in 2m 5s` {
		t.Fatalf("activity = %q", decision.Activities[0].Message)
	}
}

func TestDecideEndWithoutAgentStillCompletes(t *testing.T) {
	task := startedTask("Fix the login flow", time.Minute)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionEnd}
	decision := ingest.Decide(evt, task, nil, testNow)

	if decision.Patch == nil || decision.Patch.Status == nil || *decision.Patch.Status != state.TaskDone {
		t.Fatalf("status transition must survive a missing agent")
	}
	if len(decision.Messages) != 0 || len(decision.Activities) != 0 {
		t.Fatalf("artifacts must be suppressed without an agent")
	}
}

func TestDecideEndUnknownRunIsDropped(t *testing.T) {
	evt := ingest.Event{RunID: "run-unknown", Action: ingest.ActionEnd}
	if decision := ingest.Decide(evt, nil, testAgent, testNow); !decision.IsNoop() {
		t.Fatalf("expected a drop, got %+v", decision)
	}
}

func TestDecideError(t *testing.T) {
	task := startedTask("Fix the login flow", 45*time.Second)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionError, Error: "context deadline exceeded"}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if decision.Patch == nil || decision.Patch.Status == nil || *decision.Patch.Status != state.TaskReview {
		t.Fatalf("patch = %+v", decision.Patch)
	}
	if decision.Messages[0].Content != "❌ **Error** after **45s**\n\ncontext deadline exceeded" {
		t.Fatalf("message = %q", decision.Messages[0].Content)
	}
	if decision.Activities[0].Message != `error on "Fix the login flow" after 45s` {
		t.Fatalf("activity = %q", decision.Activities[0].Message)
	}
}

func TestDecideErrorDefaultsText(t *testing.T) {
	task := startedTask("Fix the login flow", time.Second)
	evt := ingest.Event{RunID: task.RunID, Action: ingest.ActionError}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if !strings.Contains(decision.Messages[0].Content, "Unknown error") {
		t.Fatalf("message = %q", decision.Messages[0].Content)
	}
}

func TestDecideErrorFallsBackToCreatedAt(t *testing.T) {
	created := testNow.Add(-90 * time.Second)
	task := &state.Task{ID: "task-1", Title: "Old task", RunID: "run-1", CreatedAt: created}
	evt := ingest.Event{RunID: "run-1", Action: ingest.ActionError}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	if decision.Activities[0].Message != `error on "Old task" after 1m 30s` {
		t.Fatalf("activity = %q", decision.Activities[0].Message)
	}
}

func TestDecideDocumentWithTask(t *testing.T) {
	task := startedTask("Fix the login flow", time.Minute)
	evt := ingest.Event{
		RunID:  task.RunID,
		Action: ingest.ActionDocument,
		Document: &ingest.DocumentPayload{
			Title:   "Postmortem",
			Content: "# What happened",
			Type:    "markdown",
			Path:    "docs/postmortem.md",
		},
	}
	decision := ingest.Decide(evt, task, testAgent, testNow)

	doc := decision.Document
	if doc == nil || doc.Title != "Postmortem" || !doc.LinkTask || doc.CreatedByAgentID != "agent-1" {
		t.Fatalf("document = %+v", doc)
	}
	want := "📄 Created document: **Postmortem**\n\nType: markdown\nPath: `docs/postmortem.md`"
	if decision.Messages[0].Content != want {
		t.Fatalf("message = %q", decision.Messages[0].Content)
	}
	if !decision.Messages[0].AttachDocument {
		t.Fatalf("message should attach the document")
	}
	if decision.Activities[0].Message != `created document "Postmortem" for "Fix the login flow"` {
		t.Fatalf("activity = %q", decision.Activities[0].Message)
	}
}

func TestDecideDocumentWithoutTask(t *testing.T) {
	evt := ingest.Event{
		RunID:    "run-unknown",
		Action:   ingest.ActionDocument,
		Document: &ingest.DocumentPayload{Title: "Notes", Type: "text"},
	}
	decision := ingest.Decide(evt, nil, testAgent, testNow)

	if decision.Document == nil || decision.Document.LinkTask {
		t.Fatalf("document = %+v", decision.Document)
	}
	if len(decision.Messages) != 0 {
		t.Fatalf("no conversation entry without a task")
	}
	if decision.Activities[0].Message != `created document "Notes"` {
		t.Fatalf("activity = %q", decision.Activities[0].Message)
	}
	if decision.Activities[0].TargetTask {
		t.Fatalf("activity must not target a task")
	}
}

func TestDecideDocumentWithoutPayloadIsDropped(t *testing.T) {
	evt := ingest.Event{RunID: "run-1", Action: ingest.ActionDocument}
	if decision := ingest.Decide(evt, nil, testAgent, testNow); !decision.IsNoop() {
		t.Fatalf("expected a drop, got %+v", decision)
	}
}

func TestDecideDocumentWithoutAgentIsDropped(t *testing.T) {
	task := startedTask("Fix the login flow", time.Minute)
	evt := ingest.Event{
		RunID:    task.RunID,
		Action:   ingest.ActionDocument,
		Document: &ingest.DocumentPayload{Title: "Notes", Type: "text"},
	}
	if decision := ingest.Decide(evt, task, nil, testNow); !decision.IsNoop() {
		t.Fatalf("expected a drop, got %+v", decision)
	}
}

func TestDecideUnknownActionIsDropped(t *testing.T) {
	evt := ingest.Event{RunID: "run-1", Action: "pause"}
	task := startedTask("Fix the login flow", time.Minute)
	if decision := ingest.Decide(evt, task, testAgent, testNow); !decision.IsNoop() {
		t.Fatalf("expected a drop, got %+v", decision)
	}
}
