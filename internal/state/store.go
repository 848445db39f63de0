package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/idgen"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store
// operations can run standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier

	nowFn func() time.Time
}

type Option func(*Store)

func WithClock(nowFn func() time.Time) Option {
	return func(s *Store) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		q:     db,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) now() time.Time {
	return s.nowFn().UTC()
}

// WithTx runs fn against a store bound to a single transaction. All writes
// made through that store commit together or not at all.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fmt.Errorf("store is not transactional")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	bound := &Store{q: tx, nowFn: s.nowFn}
	if err := fn(bound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Agents ---

// EnsureAgent inserts the named agent unless it already exists and returns
// the durable row either way. The unique index on agents.name makes the
// create-if-absent race-safe under concurrent callers.
func (s *Store) EnsureAgent(ctx context.Context, agent Agent) (Agent, error) {
	if strings.TrimSpace(agent.Name) == "" {
		return Agent{}, fmt.Errorf("agent name is required")
	}
	now := s.now()
	id := agent.ID
	if id == "" {
		id = idgen.New()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO agents (id, name, role, level, status, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, id, agent.Name, agent.Role, agent.Level, agent.Status, agent.Avatar,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Agent{}, fmt.Errorf("ensure agent: %w", err)
	}
	existing, err := s.FindAgentByName(ctx, agent.Name)
	if err != nil {
		return Agent{}, err
	}
	if existing == nil {
		return Agent{}, fmt.Errorf("ensure agent: %q missing after insert", agent.Name)
	}
	return *existing, nil
}

// FindAgentByName returns (nil, nil) when no agent carries the name.
func (s *Store) FindAgentByName(ctx context.Context, name string) (*Agent, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, role, level, status, avatar, created_at, updated_at
		FROM agents WHERE name = ?
	`, name)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find agent by name: %w", err)
	}
	return &agent, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (Agent, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, name, role, level, status, avatar, created_at, updated_at
		FROM agents WHERE id = ?
	`, id)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, fmt.Errorf("agent not found")
	}
	if err != nil {
		return Agent{}, fmt.Errorf("load agent: %w", err)
	}
	return agent, nil
}

func (s *Store) ListAgents(ctx context.Context, limit int) ([]Agent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, role, level, status, avatar, created_at, updated_at
		FROM agents ORDER BY name ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return out, nil
}

// --- Tasks ---

func (s *Store) CreateTask(ctx context.Context, task Task) (Task, error) {
	if strings.TrimSpace(task.Title) == "" {
		return Task{}, fmt.Errorf("task title is required")
	}
	if task.Status == "" {
		task.Status = TaskInbox
	}
	if task.ID == "" {
		task.ID = idgen.New()
	}
	now := s.now()
	task.CreatedAt = now
	task.UpdatedAt = now

	assigneesJSON, err := encodeStrings(task.AssigneeIDs)
	if err != nil {
		return Task{}, fmt.Errorf("encode assignees: %w", err)
	}
	tagsJSON, err := encodeStrings(task.Tags)
	if err != nil {
		return Task{}, fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, assignee_ids, tags, session_key, run_id, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Title, task.Description, task.Status, assigneesJSON, tagsJSON,
		nullString(task.SessionKey), nullString(task.RunID), nullTime(task.StartedAt),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (Task, error) {
	row := s.q.QueryRowContext(ctx, taskSelect+` WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("task not found")
	}
	if err != nil {
		return Task{}, fmt.Errorf("load task: %w", err)
	}
	return task, nil
}

// FindTaskByRunID returns the task presently correlated with the run id,
// or (nil, nil). If duplicates ever exist the earliest created row wins.
func (s *Store) FindTaskByRunID(ctx context.Context, runID string) (*Task, error) {
	if runID == "" {
		return nil, nil
	}
	row := s.q.QueryRowContext(ctx, taskSelect+` WHERE run_id = ? ORDER BY created_at ASC LIMIT 1`, runID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find task by run id: %w", err)
	}
	return &task, nil
}

func (s *Store) PatchTask(ctx context.Context, id string, patch TaskPatch) error {
	if id == "" {
		return fmt.Errorf("task id is required")
	}
	sets := []string{"updated_at = ?"}
	args := []any{s.now().Format(time.RFC3339Nano)}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.AssigneeIDs != nil {
		encoded, err := encodeStrings(*patch.AssigneeIDs)
		if err != nil {
			return fmt.Errorf("encode assignees: %w", err)
		}
		sets = append(sets, "assignee_ids = ?")
		args = append(args, encoded)
	}
	if patch.Tags != nil {
		encoded, err := encodeStrings(*patch.Tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, encoded)
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, patch.StartedAt.UTC().Format(time.RFC3339Nano))
	}

	args = append(args, id)
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("patch task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("patch task rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task not found")
	}
	return nil
}

type TaskFilter struct {
	Status TaskStatus
	Tag    string
	Limit  int
}

func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	query := taskSelect
	var clauses []string
	var args []any

	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if filter.Tag != "" && !containsString(task.Tags, filter.Tag) {
			continue
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// --- Messages (append-only) ---

func (s *Store) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.TaskID == "" {
		return Message{}, fmt.Errorf("task_id is required")
	}
	if msg.FromAgentID == "" {
		return Message{}, fmt.Errorf("from_agent_id is required")
	}
	msg.ID = ulid.Make().String()
	msg.CreatedAt = s.now()
	attachmentsJSON, err := encodeStrings(msg.Attachments)
	if err != nil {
		return Message{}, fmt.Errorf("encode attachments: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO messages (id, task_id, from_agent_id, content, attachments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.TaskID, msg.FromAgentID, msg.Content, attachmentsJSON, msg.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the conversation trail oldest-first.
func (s *Store) ListMessages(ctx context.Context, taskID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, task_id, from_agent_id, content, attachments, created_at
		FROM messages WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var attachmentsStr, createdAtStr string
		if err := rows.Scan(&msg.ID, &msg.TaskID, &msg.FromAgentID, &msg.Content, &attachmentsStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Attachments = decodeStrings(attachmentsStr)
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// --- Activities (append-only) ---

func (s *Store) AppendActivity(ctx context.Context, act Activity) (Activity, error) {
	if act.Type == "" {
		return Activity{}, fmt.Errorf("activity type is required")
	}
	if act.AgentID == "" {
		return Activity{}, fmt.Errorf("agent_id is required")
	}
	act.ID = ulid.Make().String()
	act.CreatedAt = s.now()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO activities (id, type, agent_id, message, target_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, act.ID, act.Type, act.AgentID, act.Message, nullString(act.TargetID), act.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	return act, nil
}

// ListActivities returns the global feed newest-first.
func (s *Store) ListActivities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, type, agent_id, message, target_id, created_at
		FROM activities
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var act Activity
		var targetID sql.NullString
		var createdAtStr string
		if err := rows.Scan(&act.ID, &act.Type, &act.AgentID, &act.Message, &targetID, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if targetID.Valid {
			act.TargetID = targetID.String
		}
		act.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

// --- Documents ---

func (s *Store) CreateDocument(ctx context.Context, doc Document) (Document, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return Document{}, fmt.Errorf("document title is required")
	}
	if doc.CreatedByAgentID == "" {
		return Document{}, fmt.Errorf("created_by_agent_id is required")
	}
	if doc.ID == "" {
		doc.ID = idgen.New()
	}
	doc.CreatedAt = s.now()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, type, path, task_id, created_by_agent_id, message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Title, doc.Content, doc.Type, nullString(doc.Path), nullString(doc.TaskID),
		doc.CreatedByAgentID, nullString(doc.MessageID), doc.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.q.QueryRowContext(ctx, documentSelect+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document not found")
	}
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

type DocumentFilter struct {
	TaskID string
	Type   string
	Limit  int
}

func (s *Store) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	query := documentSelect
	var clauses []string
	var args []any

	if filter.TaskID != "" {
		clauses = append(clauses, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// --- row scanning ---

const taskSelect = `SELECT id, title, description, status, assignee_ids, tags, session_key, run_id, started_at, created_at, updated_at FROM tasks`

const documentSelect = `SELECT id, title, content, type, path, task_id, created_by_agent_id, message_id, created_at FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var agent Agent
	var createdAtStr, updatedAtStr string
	if err := row.Scan(&agent.ID, &agent.Name, &agent.Role, &agent.Level, &agent.Status, &agent.Avatar, &createdAtStr, &updatedAtStr); err != nil {
		return Agent{}, err
	}
	agent.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	agent.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	return agent, nil
}

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var assigneesStr, tagsStr, createdAtStr, updatedAtStr string
	var sessionKey, runID, startedAtStr sql.NullString
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Status, &assigneesStr, &tagsStr, &sessionKey, &runID, &startedAtStr, &createdAtStr, &updatedAtStr); err != nil {
		return Task{}, err
	}
	task.AssigneeIDs = decodeStrings(assigneesStr)
	task.Tags = decodeStrings(tagsStr)
	if sessionKey.Valid {
		task.SessionKey = sessionKey.String
	}
	if runID.Valid {
		task.RunID = runID.String
	}
	if startedAtStr.Valid {
		if parsed, err := time.Parse(time.RFC3339Nano, startedAtStr.String); err == nil {
			task.StartedAt = &parsed
		}
	}
	task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	task.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	return task, nil
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var path, taskID, messageID sql.NullString
	var createdAtStr string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Type, &path, &taskID, &doc.CreatedByAgentID, &messageID, &createdAtStr); err != nil {
		return Document{}, err
	}
	if path.Valid {
		doc.Path = path.String
	}
	if taskID.Valid {
		doc.TaskID = taskID.String
	}
	if messageID.Valid {
		doc.MessageID = messageID.String
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return doc, nil
}
