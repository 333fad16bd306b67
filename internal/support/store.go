package support

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var storeTracer = otel.Tracer("sitelead/support/store")

// Store persists escalations and callback tasks.
type Store interface {
	// CreateEscalation is idempotent on the escalation id.
	CreateEscalation(ctx context.Context, e *Escalation) error
	SetChannelsNotified(ctx context.Context, id uuid.UUID, channels []string) error
	GetEscalation(ctx context.Context, businessID string, id uuid.UUID) (*Escalation, error)
	ListEscalations(ctx context.Context, businessID string, filter EscalationFilter) ([]*Escalation, error)
	// UpdateEscalationStatus applies the change only if the row is still in
	// status from, returning ErrInvalidTransition otherwise.
	UpdateEscalationStatus(ctx context.Context, businessID string, id uuid.UUID, from, to EscalationStatus, at time.Time) (*Escalation, error)

	// CreateTask is idempotent on the task id.
	CreateTask(ctx context.Context, t *Task) error
	ListTasks(ctx context.Context, businessID string, filter TaskFilter) ([]*Task, error)
	CompleteTask(ctx context.Context, businessID string, id uuid.UUID, at time.Time) (*Task, error)
}

// SQLStore keeps escalations and tasks in PostgreSQL.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	if db == nil {
		panic("support: db required")
	}
	return &SQLStore{db: db}
}

const escalationColumns = `id, business_id, conversation_id, reason, priority, urgency, customer_name,
	customer_phone, customer_email, original_message, summary, status, channels_notified,
	created_at, updated_at, resolved_at`

const taskColumns = `id, business_id, conversation_id, kind, customer_name, customer_phone, notes,
	due_at, status, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscalation(row rowScanner) (*Escalation, error) {
	var e Escalation
	var resolvedAt sql.NullTime
	var channels pq.StringArray
	if err := row.Scan(
		&e.ID, &e.BusinessID, &e.ConversationID, &e.Reason, &e.Priority, &e.Urgency, &e.CustomerName,
		&e.CustomerPhone, &e.CustomerEmail, &e.OriginalMessage, &e.Summary, &e.Status, &channels,
		&e.CreatedAt, &e.UpdatedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}
	e.ChannelsNotified = []string(channels)
	if e.ChannelsNotified == nil {
		e.ChannelsNotified = []string{}
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return &e, nil
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var completedAt sql.NullTime
	if err := row.Scan(
		&t.ID, &t.BusinessID, &t.ConversationID, &t.Kind, &t.CustomerName, &t.CustomerPhone, &t.Notes,
		&t.DueAt, &t.Status, &t.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func (s *SQLStore) CreateEscalation(ctx context.Context, e *Escalation) error {
	ctx, span := storeTracer.Start(ctx, "support.escalation.insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("sitelead.business_id", e.BusinessID),
		attribute.String("sitelead.escalation_priority", e.Priority),
	)

	query := `
		INSERT INTO escalations (
			id, business_id, conversation_id, reason, priority, urgency, customer_name,
			customer_phone, customer_email, original_message, summary, status, channels_notified,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.BusinessID, e.ConversationID, e.Reason, e.Priority, e.Urgency, e.CustomerName,
		e.CustomerPhone, e.CustomerEmail, e.OriginalMessage, e.Summary, string(e.Status), pq.Array(e.ChannelsNotified),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("support: insert escalation: %w", err)
	}
	return nil
}

func (s *SQLStore) SetChannelsNotified(ctx context.Context, id uuid.UUID, channels []string) error {
	if channels == nil {
		channels = []string{}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET channels_notified = $1, updated_at = NOW() WHERE id = $2`,
		pq.Array(channels), id)
	if err != nil {
		return fmt.Errorf("support: update channels notified: %w", err)
	}
	return nil
}

func (s *SQLStore) GetEscalation(ctx context.Context, businessID string, id uuid.UUID) (*Escalation, error) {
	e, err := scanEscalation(s.db.QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations WHERE id = $1 AND business_id = $2`, id, businessID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEscalationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("support: get escalation: %w", err)
	}
	return e, nil
}

// ListEscalations returns high priority first, then oldest first.
func (s *SQLStore) ListEscalations(ctx context.Context, businessID string, filter EscalationFilter) ([]*Escalation, error) {
	where := []string{"business_id = $1"}
	args := []any{businessID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	args = append(args, normalizeLimit(filter.Limit))
	query := fmt.Sprintf(`SELECT %s FROM escalations WHERE %s
		ORDER BY CASE priority WHEN 'high' THEN 1 ELSE 2 END, created_at ASC
		LIMIT $%d`, escalationColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("support: list escalations: %w", err)
	}
	defer rows.Close()

	out := []*Escalation{}
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("support: scan escalation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateEscalationStatus(ctx context.Context, businessID string, id uuid.UUID, from, to EscalationStatus, at time.Time) (*Escalation, error) {
	var resolvedAt any
	if to == StatusResolved {
		resolvedAt = at
	}
	e, err := scanEscalation(s.db.QueryRowContext(ctx, `
		UPDATE escalations
		SET status = $1, updated_at = $2, resolved_at = COALESCE($3, resolved_at)
		WHERE id = $4 AND business_id = $5 AND status = $6
		RETURNING `+escalationColumns,
		string(to), at, resolvedAt, id, businessID, string(from)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("support: update escalation status: %w", err)
	}
	return e, nil
}

func (s *SQLStore) CreateTask(ctx context.Context, t *Task) error {
	ctx, span := storeTracer.Start(ctx, "support.task.insert")
	defer span.End()
	span.SetAttributes(attribute.String("sitelead.business_id", t.BusinessID))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, business_id, conversation_id, kind, customer_name, customer_phone, notes, due_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.BusinessID, t.ConversationID, t.Kind, t.CustomerName, t.CustomerPhone, t.Notes, t.DueAt, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("support: insert task: %w", err)
	}
	return nil
}

// ListTasks returns tasks soonest due first.
func (s *SQLStore) ListTasks(ctx context.Context, businessID string, filter TaskFilter) ([]*Task, error) {
	where := []string{"business_id = $1"}
	args := []any{businessID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.DueBefore.IsZero() {
		args = append(args, filter.DueBefore)
		where = append(where, fmt.Sprintf("due_at <= $%d", len(args)))
	}
	args = append(args, normalizeLimit(filter.Limit))
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY due_at ASC LIMIT $%d`,
		taskColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("support: list tasks: %w", err)
	}
	defer rows.Close()

	out := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("support: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) CompleteTask(ctx context.Context, businessID string, id uuid.UUID, at time.Time) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET status = $1, completed_at = $2
		WHERE id = $3 AND business_id = $4 AND status = $5
		RETURNING `+taskColumns,
		string(TaskDone), at, id, businessID, string(TaskPending)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("support: complete task: %w", err)
	}
	return t, nil
}

var _ Store = (*SQLStore)(nil)
