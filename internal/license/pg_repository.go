package license

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/practice-booking/internal/db"
)

const emailNumberKey = "license_requests_email_number_key"

const requestColumns = `id, practitioner_email, license_number, status, note, superseded_by, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(
		&r.ID,
		&r.PractitionerEmail,
		&r.LicenseNumber,
		&r.Status,
		&r.Note,
		&r.SupersededBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (p *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM license_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (p *PgRepository) GetByEmailNumber(ctx context.Context, email, number string) (*Request, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM license_requests
		WHERE practitioner_email = $1 AND license_number = $2
	`, email, number)
	return scanRequest(row)
}

func (p *PgRepository) Create(ctx context.Context, email, number string) (*Request, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO license_requests (id, practitioner_email, license_number, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+requestColumns, uuid.New(), email, number)
	r, err := scanRequest(row)
	if err != nil {
		if db.IsUniqueViolation(err, emailNumberKey) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("insert license request: %w", err)
	}
	return r, nil
}

func (p *PgRepository) Revive(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE license_requests
		SET status = 'pending',
		    note = NULL,
		    superseded_by = NULL,
		    updated_at = now()
		WHERE id = $1 AND status = 'rejected'
		RETURNING `+requestColumns, id)
	return scanRequest(row)
}

func (p *PgRepository) Approve(ctx context.Context, id uuid.UUID, note *string) (*Request, int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin approve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var email, number string
	err = tx.QueryRow(ctx, `
		SELECT practitioner_email, license_number FROM license_requests WHERE id = $1
	`, id).Scan(&email, &number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrRequestNotFound
		}
		return nil, 0, fmt.Errorf("load license request: %w", err)
	}

	// Serializes approvals per practitioner until commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
		return nil, 0, fmt.Errorf("lock practitioner licenses: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE license_requests
		SET status = 'rejected',
		    note = $3,
		    superseded_by = $2,
		    updated_at = now()
		WHERE practitioner_email = $1
		  AND status = 'approved'
		  AND id <> $2
	`, email, id, RevokeNote(number))
	if err != nil {
		return nil, 0, fmt.Errorf("revoke approved licenses: %w", err)
	}
	revoked := int(tag.RowsAffected())

	row := tx.QueryRow(ctx, `
		UPDATE license_requests
		SET status = 'approved',
		    note = $2,
		    superseded_by = NULL,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns, id, note)
	approved, err := scanRequest(row)
	if err != nil {
		return nil, 0, fmt.Errorf("approve license request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit approve: %w", err)
	}
	return approved, revoked, nil
}

func (p *PgRepository) Reject(ctx context.Context, id uuid.UUID, note *string) (*Request, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE license_requests
		SET status = 'rejected',
		    note = $2,
		    superseded_by = NULL,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns, id, note)
	return scanRequest(row)
}

func (p *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM license_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete license request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (p *PgRepository) ListByEmail(ctx context.Context, email string) ([]Request, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM license_requests
		WHERE practitioner_email = $1
		ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (p *PgRepository) List(ctx context.Context, status *Status) ([]Request, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM license_requests
		WHERE $1::text IS NULL OR status = $1
		ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (p *PgRepository) HasBlocking(ctx context.Context, email string) (bool, error) {
	var blocked bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM license_requests
			WHERE practitioner_email = $1
			  AND (status = 'pending' OR (status = 'rejected' AND superseded_by IS NULL))
		)
	`, email).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check license gate: %w", err)
	}
	return blocked, nil
}
