package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	err := row.Scan(&p.ID, &p.Email, &p.Name, &p.Kind, &p.LicenseNumber, &p.Listed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Email, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (d *PgDirectory) PractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, email, name, kind, license_number, listed
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (d *PgDirectory) ClientByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, email, name
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (d *PgDirectory) ClientByEmail(ctx context.Context, email string) (*Client, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, email, name
		FROM clients
		WHERE lower(email) = lower($1)
	`, email)
	return scanClient(row)
}

func (d *PgDirectory) SetPractitionerLicense(ctx context.Context, email, licenseNumber string) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE practitioners
		SET license_number = $2,
		    listed = true,
		    updated_at = now()
		WHERE lower(email) = lower($1)
	`, email, licenseNumber)
	if err != nil {
		return fmt.Errorf("write back license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPractitionerNotFound
	}
	return nil
}
