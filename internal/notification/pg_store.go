package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const notificationColumns = `id, audience_type, user_id, email, kind, related_appointment_id, body, read, hidden, meta, created_at`

// audienceFilter matches on user id or email so practitioner notices created
// before the ledger knew the practitioner's id still show up.
const audienceFilter = `audience_type = $1 AND (user_id = $2 OR email = $3)`

func audienceArgs(a Audience) []any {
	var userID *uuid.UUID
	if a.UserID != uuid.Nil {
		id := a.UserID
		userID = &id
	}
	var email *string
	if e := NormalizeEmail(a.Email); e != "" {
		email = &e
	}
	return []any{a.Type, userID, email}
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var email *string
	var meta []byte

	err := row.Scan(
		&n.ID,
		&n.AudienceType,
		&n.UserID,
		&email,
		&n.Kind,
		&n.RelatedAppointmentID,
		&n.Text,
		&n.Read,
		&n.Hidden,
		&meta,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if email != nil {
		n.Email = *email
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Meta); err != nil {
			return nil, fmt.Errorf("decode notification meta: %w", err)
		}
	}
	return &n, nil
}

func (s *PgStore) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	meta, err := json.Marshal(n.Meta)
	if err != nil {
		return fmt.Errorf("encode notification meta: %w", err)
	}
	var email *string
	if n.Email != "" {
		email = &n.Email
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, audience_type, user_id, email, kind, related_appointment_id, body, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, n.ID, n.AudienceType, n.UserID, email, n.Kind, n.RelatedAppointmentID, n.Text, meta)
	if err := row.Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PgStore) List(ctx context.Context, a Audience, includeHidden bool, limit int) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE `+audienceFilter+`
		  AND ($4 OR NOT hidden)
		ORDER BY created_at DESC
		LIMIT $5
	`, append(audienceArgs(a), includeHidden, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *PgStore) SetFlags(ctx context.Context, a Audience, ids []uuid.UUID, read, hidden *bool) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = COALESCE($4, read),
		    hidden = COALESCE($5, hidden)
		WHERE `+audienceFilter+`
		  AND id = ANY($6)
	`, append(audienceArgs(a), read, hidden, ids)...)
	if err != nil {
		return 0, fmt.Errorf("update notification flags: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) MarkAllRead(ctx context.Context, a Audience) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET read = true
		WHERE `+audienceFilter+`
		  AND NOT read
	`, audienceArgs(a)...)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}
