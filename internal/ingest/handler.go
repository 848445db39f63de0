package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/feed"
	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/state"
)

// DefaultSystemAgentName is the reserved identity used when an event
// carries no resolvable agent reference.
const DefaultSystemAgentName = "OpenClaw"

type Handler struct {
	store *state.Store
	feed  *feed.Feed
	log   *slog.Logger

	systemAgentName string
	nowFn           func() time.Time
}

type HandlerOption func(*Handler)

func WithSystemAgentName(name string) HandlerOption {
	return func(h *Handler) {
		if name != "" {
			h.systemAgentName = name
		}
	}
}

func WithClock(nowFn func() time.Time) HandlerOption {
	return func(h *Handler) {
		if nowFn != nil {
			h.nowFn = nowFn
		}
	}
}

func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func NewHandler(store *state.Store, fd *feed.Feed, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:           store,
		feed:            fd,
		log:             slog.Default(),
		systemAgentName: DefaultSystemAgentName,
		nowFn:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Process folds one lifecycle event into durable state. The resolver
// lookups, the task mutation and every derived artifact for the event
// commit as a single transaction; on storage failure nothing is applied
// and the error propagates so the transport can decide about retries.
func (h *Handler) Process(ctx context.Context, evt Event) error {
	if evt.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	if evt.Action == "" {
		return fmt.Errorf("action is required")
	}

	now := h.nowFn().UTC()
	var committed []state.Activity
	applied := true

	err := h.store.WithTx(ctx, func(tx *state.Store) error {
		agent, err := h.resolveAgent(ctx, tx, evt.AgentID)
		if err != nil {
			return err
		}
		task, err := tx.FindTaskByRunID(ctx, evt.RunID)
		if err != nil {
			return err
		}

		decision := Decide(evt, task, agent, now)
		if decision.IsNoop() {
			h.log.Debug("event dropped",
				"action", evt.Action, "run_id", evt.RunID, "task_found", task != nil)
			applied = false
			return nil
		}

		committed, err = h.apply(ctx, tx, task, decision)
		return err
	})
	if err != nil {
		return fmt.Errorf("process %s event for run %s: %w", evt.Action, evt.RunID, err)
	}

	if !applied {
		return nil
	}
	if h.feed != nil {
		for _, act := range committed {
			h.feed.Broadcast(act)
		}
	}
	h.log.Info("event applied", "action", evt.Action, "run_id", evt.RunID, "activities", len(committed))
	return nil
}

// resolveAgent maps an optional external agent reference to a durable
// agent. The system agent is lazily materialized and is the fallback for
// both missing and unrecognized references; the result is never nil.
func (h *Handler) resolveAgent(ctx context.Context, tx *state.Store, ref string) (*state.Agent, error) {
	system, err := tx.EnsureAgent(ctx, state.Agent{
		Name:   h.systemAgentName,
		Role:   "AI Assistant",
		Level:  state.AgentLevelSpec,
		Status: state.AgentActive,
		Avatar: "🤖",
	})
	if err != nil {
		return nil, err
	}
	if ref == "" {
		return &system, nil
	}
	named, err := tx.FindAgentByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if named != nil {
		return named, nil
	}
	// Unrecognized references are treated as anonymous, never auto-created.
	return &system, nil
}

func (h *Handler) apply(ctx context.Context, tx *state.Store, task *state.Task, decision Decision) ([]state.Activity, error) {
	if decision.CreateTask != nil {
		draft := decision.CreateTask
		startedAt := draft.StartedAt
		created, err := tx.CreateTask(ctx, state.Task{
			Title:       draft.Title,
			Description: draft.Description,
			Status:      state.TaskInProgress,
			AssigneeIDs: draft.AssigneeIDs,
			Tags:        draft.Tags,
			SessionKey:  draft.SessionKey,
			RunID:       draft.RunID,
			StartedAt:   &startedAt,
		})
		if err != nil {
			return nil, err
		}
		task = &created
	} else if decision.Patch != nil {
		if task == nil {
			return nil, fmt.Errorf("patch decision without a task")
		}
		if err := tx.PatchTask(ctx, task.ID, *decision.Patch); err != nil {
			return nil, err
		}
	}

	var docID string
	if decision.Document != nil {
		draft := decision.Document
		doc := state.Document{
			Title:            draft.Title,
			Content:          draft.Content,
			Type:             draft.Type,
			Path:             draft.Path,
			CreatedByAgentID: draft.CreatedByAgentID,
		}
		if draft.LinkTask && task != nil {
			doc.TaskID = task.ID
		}
		created, err := tx.CreateDocument(ctx, doc)
		if err != nil {
			return nil, err
		}
		docID = created.ID
	}

	for _, draft := range decision.Messages {
		if task == nil {
			return nil, fmt.Errorf("message decision without a task")
		}
		msg := state.Message{
			TaskID:      task.ID,
			FromAgentID: draft.FromAgentID,
			Content:     draft.Content,
		}
		if draft.AttachDocument && docID != "" {
			msg.Attachments = []string{docID}
		}
		if _, err := tx.AppendMessage(ctx, msg); err != nil {
			return nil, err
		}
	}

	var committed []state.Activity
	for _, draft := range decision.Activities {
		act := state.Activity{
			Type:    draft.Type,
			AgentID: draft.AgentID,
			Message: draft.Message,
		}
		if draft.TargetTask && task != nil {
			act.TargetID = task.ID
		}
		appended, err := tx.AppendActivity(ctx, act)
		if err != nil {
			return nil, err
		}
		committed = append(committed, appended)
	}
	return committed, nil
}
