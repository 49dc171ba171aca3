package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const upsertSQL = `
	INSERT INTO availability (practitioner_id, avail_date, ranges, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (practitioner_id, avail_date)
	DO UPDATE SET ranges = EXCLUDED.ranges, updated_at = now()
`

func (r *PgRepository) Get(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Range, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT ranges
		FROM availability
		WHERE practitioner_id = $1 AND avail_date = $2
	`, practitionerID, db.Date(date)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var ranges []civil.Range
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return nil, false, fmt.Errorf("decode ranges: %w", err)
	}
	if ranges == nil {
		ranges = []civil.Range{}
	}
	return ranges, true, nil
}

func (r *PgRepository) Upsert(ctx context.Context, practitionerID uuid.UUID, date civil.Date, ranges []civil.Range) error {
	raw, err := encodeRanges(ranges)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertSQL, practitionerID, db.Date(date), raw); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

func (r *PgRepository) UpsertMany(ctx context.Context, practitionerID uuid.UUID, days []Day) error {
	if len(days) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range days {
		raw, err := encodeRanges(d.Ranges)
		if err != nil {
			return err
		}
		batch.Queue(upsertSQL, practitionerID, db.Date(d.Date), raw)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk availability: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("bulk upsert availability: %w", err)
	}
	return tx.Commit(ctx)
}

func encodeRanges(ranges []civil.Range) ([]byte, error) {
	if ranges == nil {
		ranges = []civil.Range{}
	}
	raw, err := json.Marshal(ranges)
	if err != nil {
		return nil, fmt.Errorf("encode ranges: %w", err)
	}
	return raw, nil
}
