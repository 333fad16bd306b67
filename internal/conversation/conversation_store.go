package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var historyTracer = otel.Tracer("sitelead/conversation/history")

// ConversationStore persists chat transcripts to PostgreSQL for long-term
// history. A nil store is a no-op so callers can run without a database.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	if db == nil {
		return nil
	}
	return &ConversationStore{db: db}
}

// ConversationRecord is one row of the conversations table.
type ConversationRecord struct {
	SessionID            string     `json:"session_id"`
	BusinessID           string     `json:"business_id"`
	Stage                string     `json:"stage"`
	MessageCount         int        `json:"message_count"`
	CustomerMessageCount int        `json:"customer_message_count"`
	AgentMessageCount    int        `json:"agent_message_count"`
	StartedAt            time.Time  `json:"started_at"`
	LastMessageAt        *time.Time `json:"last_message_at,omitempty"`
}

// MessageRecord is one row of the conversation_messages table.
type MessageRecord struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordTurn upserts the conversation row and appends both sides of a turn
// in one transaction.
func (s *ConversationStore) RecordTurn(ctx context.Context, rec TurnRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	ctx, span := historyTracer.Start(ctx, "history.record_turn")
	defer span.End()

	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	agentCount := 0
	if rec.AgentMessage != "" {
		agentCount = 1
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (
			session_id, business_id, stage,
			message_count, customer_message_count, agent_message_count,
			started_at, last_message_at
		) VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			message_count = conversations.message_count + EXCLUDED.message_count,
			customer_message_count = conversations.customer_message_count + 1,
			agent_message_count = conversations.agent_message_count + EXCLUDED.agent_message_count,
			last_message_at = EXCLUDED.last_message_at
	`, rec.SessionID, rec.BusinessID, string(rec.Stage), 1+agentCount, agentCount, at); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: upsert conversation: %w", err)
	}

	insert := `
		INSERT INTO conversation_messages (id, session_id, role, content, agent, intent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, insert,
		uuid.New(), rec.SessionID, string(RoleCustomer), rec.CustomerMessage, "", string(rec.Intent), at,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: insert customer message: %w", err)
	}
	if agentCount > 0 {
		if _, err := tx.ExecContext(ctx, insert,
			uuid.New(), rec.SessionID, string(RoleAgent), rec.AgentMessage, string(rec.Agent), string(rec.Intent), at,
		); err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: insert agent message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit history tx: %w", err)
	}
	return nil
}

// GetConversation returns nil, nil when the session has no stored history.
func (s *ConversationStore) GetConversation(ctx context.Context, sessionID string) (*ConversationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var conv ConversationRecord
	var lastMessageAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, business_id, stage, message_count,
			   customer_message_count, agent_message_count, started_at, last_message_at
		FROM conversations
		WHERE session_id = $1
	`, sessionID).Scan(
		&conv.SessionID, &conv.BusinessID, &conv.Stage, &conv.MessageCount,
		&conv.CustomerMessageCount, &conv.AgentMessageCount, &conv.StartedAt, &lastMessageAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: get conversation: %w", err)
	}
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}
	return &conv, nil
}

// GetMessages returns the transcript oldest first. limit <= 0 means all.
func (s *ConversationStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]MessageRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	query := `
		SELECT id, session_id, role, content, COALESCE(agent, ''), COALESCE(intent, ''), created_at
		FROM conversation_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, role DESC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: get messages: %w", err)
	}
	defer rows.Close()

	var messages []MessageRecord
	for rows.Next() {
		var msg MessageRecord
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Agent, &msg.Intent, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate messages: %w", err)
	}
	return messages, nil
}

// ListConversations returns the most recently active conversations for a business.
func (s *ConversationStore) ListConversations(ctx context.Context, businessID string, limit int) ([]ConversationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, business_id, stage, message_count,
			   customer_message_count, agent_message_count, started_at, last_message_at
		FROM conversations
		WHERE business_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationRecord
	for rows.Next() {
		var conv ConversationRecord
		var lastMessageAt sql.NullTime
		if err := rows.Scan(
			&conv.SessionID, &conv.BusinessID, &conv.Stage, &conv.MessageCount,
			&conv.CustomerMessageCount, &conv.AgentMessageCount, &conv.StartedAt, &lastMessageAt,
		); err != nil {
			return nil, fmt.Errorf("conversation: scan conversation: %w", err)
		}
		if lastMessageAt.Valid {
			t := lastMessageAt.Time
			conv.LastMessageAt = &t
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}
