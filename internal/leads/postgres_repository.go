package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const leadColumns = `id, business_id, session_id, name, email, phone, inquiry, source, status, score, created_at, updated_at`

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q}
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var id uuid.UUID
	var status string
	if err := row.Scan(
		&id,
		&lead.BusinessID,
		&lead.SessionID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Inquiry,
		&lead.Source,
		&status,
		&lead.Score,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.ID = id.String()
	lead.Status = Status(status)
	return &lead, nil
}

// Create inserts a new row, or returns the lead already captured for the
// same session.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO leads (id, business_id, session_id, name, email, phone, inquiry, source, status, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) WHERE session_id <> '' DO NOTHING
		RETURNING ` + leadColumns
	lead, err := scanLead(r.pool.QueryRow(ctx, query,
		uuid.New(),
		req.BusinessID,
		req.SessionID,
		req.Name,
		req.Email,
		req.Phone,
		req.Inquiry,
		sourceOrDefault(req.Source),
		string(StatusNew),
		req.Score,
	))
	if errors.Is(err, pgx.ErrNoRows) && req.SessionID != "" {
		return r.getBySession(ctx, req.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	return lead, nil
}

func (r *PostgresRepository) getBySession(ctx context.Context, sessionID string) (*Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: select by session failed: %w", err)
	}
	return lead, nil
}

// GetByID fetches a lead scoped to the business.
func (r *PostgresRepository) GetByID(ctx context.Context, businessID, id string) (*Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLeadNotFound
	}
	lead, err := scanLead(r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND business_id = $2`, id, businessID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first.
func (r *PostgresRepository) List(ctx context.Context, businessID string, filter ListFilter) ([]*Lead, error) {
	filter = filter.normalized()

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
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		leadColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	return out, nil
}

// UpdateStatus moves a lead along the pipeline.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, businessID, id string, status Status) (*Lead, error) {
	current, err := r.GetByID(ctx, businessID, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(status) {
		return nil, ErrInvalidTransition
	}

	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads SET status = $1, updated_at = NOW()
		WHERE id = $2 AND business_id = $3 AND status = $4
		RETURNING `+leadColumns,
		string(status), id, businessID, string(current.Status)))
	if errors.Is(err, pgx.ErrNoRows) {
		// Changed underneath us.
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("leads: update status failed: %w", err)
	}
	return lead, nil
}
