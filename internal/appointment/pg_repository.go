package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/db"
)

const activeSlotKey = "appointments_active_slot_key"

const appointmentColumns = `a.id, a.practitioner_id, a.client_id, a.appt_date, a.appt_time, a.status, a.notes, a.rating, a.review, a.cancelled_by, a.created_at, a.updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

// appointmentDest returns scan targets for appointmentColumns plus a
// function that copies the decoded values into a.
func appointmentDest(a *Appointment) ([]any, func()) {
	var (
		date        pgtype.Date
		clock       pgtype.Time
		rating      pgtype.Int2
		cancelledBy *string
	)
	dest := []any{
		&a.ID,
		&a.PractitionerID,
		&a.ClientID,
		&date,
		&clock,
		&a.Status,
		&a.Notes,
		&rating,
		&a.Review,
		&cancelledBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
	finish := func() {
		a.Date = db.CivilDate(date)
		a.Time = db.Clock(clock)
		if rating.Valid {
			r := int(rating.Int16)
			a.Rating = &r
		}
		if cancelledBy != nil {
			role := Role(*cancelledBy)
			a.CancelledBy = &role
		}
	}
	return dest, finish
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	dest, finish := appointmentDest(&a)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	finish()
	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	dest, finish := appointmentDest(&d.Appointment)
	dest = append(dest, &d.PractitionerName, &d.ClientName, &d.ClientEmail)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	finish()
	return &d, nil
}

const detailSelect = `
	SELECT ` + appointmentColumns + `, p.name, c.name, c.email
	FROM appointments a
	JOIN practitioners p ON p.id = a.practitioner_id
	JOIN clients c ON c.id = a.client_id
`

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, scope Scope, f ListFilter) ([]AppointmentDetail, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}
	var date pgtype.Date
	if f.Date != nil {
		date = db.Date(*f.Date)
	}

	rows, err := r.pool.Query(ctx, detailSelect+`
		WHERE ($1::uuid IS NULL OR a.practitioner_id = $1)
		  AND ($2::uuid IS NULL OR a.client_id = $2)
		  AND ($3::text IS NULL OR a.status = $3)
		  AND ($4::date IS NULL OR a.appt_date = $4)
		ORDER BY a.appt_date DESC, a.appt_time DESC
		LIMIT $5 OFFSET $6
	`, scope.PractitionerID, scope.ClientID, status, date, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CountActiveForPair(ctx context.Context, practitionerID, clientID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE practitioner_id = $1
		  AND client_id = $2
		  AND status IN ('pending', 'approved')
	`, practitionerID, clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments AS a (id, practitioner_id, client_id, appt_date, appt_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PractitionerID, a.ClientID, db.Date(a.Date), db.Time(a.Time), a.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotKey) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, cancelledBy *Role) (*Appointment, error) {
	var by *string
	if cancelledBy != nil {
		s := string(*cancelledBy)
		by = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments AS a
		SET status = $2,
		    cancelled_by = COALESCE($4, a.cancelled_by),
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = $3
		RETURNING `+appointmentColumns, id, to, from, by)

	return scanAppointment(row)
}

func (r *PgRepository) SetReview(ctx context.Context, id uuid.UUID, rating int, review string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments AS a
		SET rating = $2,
		    review = $3,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status = 'completed'
		  AND a.rating IS NULL
		RETURNING `+appointmentColumns, id, rating, review)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments AS a
		SET notes = $2,
		    updated_at = now()
		WHERE a.id = $1
		RETURNING `+appointmentColumns, id, notes)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteTerminal(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		  AND status IN ('completed', 'cancelled')
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) BookedStarts(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Clock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appt_time
		FROM appointments
		WHERE practitioner_id = $1
		  AND appt_date = $2
		  AND status IN ('pending', 'approved')
	`, practitionerID, db.Date(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []civil.Clock
	for rows.Next() {
		var t pgtype.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		starts = append(starts, db.Clock(t))
	}
	return starts, rows.Err()
}
