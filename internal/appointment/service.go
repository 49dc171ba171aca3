// Package appointment books appointments and moves them through their
// lifecycle: pending, approved, completed or cancelled.
package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/config"
	"github.com/hackgods/practice-booking/internal/fanout"
	"github.com/hackgods/practice-booking/internal/identity"
	"github.com/hackgods/practice-booking/internal/notification"
	redisclient "github.com/hackgods/practice-booking/internal/redis"
)

var (
	ErrPastDate          = errors.New("appointment time must be in the future")
	ErrLimitReached      = errors.New("active appointment limit reached for this practitioner")
	ErrBookingInProgress = errors.New("another booking for this practitioner is in progress, please retry")

	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrNotDeletable            = errors.New("only completed or cancelled appointments can be deleted")
	ErrNotCompleted            = errors.New("only completed appointments can be reviewed")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
	ErrForbidden               = errors.New("not allowed for this appointment")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// LicenseGate returns an error when the practitioner may not take or
// confirm bookings.
type LicenseGate interface {
	Check(ctx context.Context, email string) error
}

// Notifier queues a notification and/or live event off the request path.
type Notifier interface {
	Notify(n *notification.Notification, ev *fanout.Event) bool
}

type Service struct {
	repo      Repository
	dir       identity.Directory
	gate      LicenseGate
	locker    redisclient.Locker
	notifier  Notifier
	pairLimit int
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, dir identity.Directory, gate LicenseGate, locker redisclient.Locker, notifier Notifier, cfg config.Config, log zerolog.Logger) *Service {
	limit := cfg.PairActiveLimit
	if limit <= 0 {
		limit = 5
	}
	return &Service{
		repo:      repo,
		dir:       dir,
		gate:      gate,
		locker:    locker,
		notifier:  notifier,
		pairLimit: limit,
		log:       log.With().Str("component", "appointment").Logger(),
		now:       time.Now,
	}
}

type BookRequest struct {
	PractitionerID uuid.UUID
	ClientEmail    string
	Date           civil.Date
	Time           civil.Clock
	Notes          string
}

// Book creates a pending appointment. The pair cap is checked under a
// per-pair lock and the exact slot is guarded by a unique index, so
// concurrent requests cannot double-book or exceed the cap.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	practitioner, err := s.dir.PractitionerByID(ctx, req.PractitionerID)
	if err != nil {
		if errors.Is(err, identity.ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}
	client, err := s.dir.ClientByEmail(ctx, req.ClientEmail)
	if err != nil {
		if errors.Is(err, identity.ErrClientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	if !req.Date.At(req.Time).After(s.now()) {
		return nil, ErrPastDate
	}

	if err := s.gate.Check(ctx, practitioner.Email); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PractitionerID: practitioner.ID,
		ClientID:       client.ID,
		Date:           req.Date,
		Time:           req.Time,
		Notes:          req.Notes,
	}

	err = s.locker.WithPairLock(ctx, practitioner.ID, client.ID, func(lockCtx context.Context) error {
		active, err := s.repo.CountActiveForPair(lockCtx, practitioner.ID, client.ID)
		if err != nil {
			return err
		}
		if active >= s.pairLimit {
			return ErrLimitReached
		}
		return s.repo.CreatePendingAppointment(lockCtx, appt)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("practitioner_id", practitioner.ID.String()).
		Str("client_id", client.ID.String()).
		Str("date", appt.Date.String()).
		Str("time", appt.Time.String()).
		Msg("appointment booked")

	s.announceBooked(appt, practitioner, client)
	return appt, nil
}

func (s *Service) announceBooked(a *Appointment, p *identity.Practitioner, c *identity.Client) {
	n := notification.New(
		notification.ForPractitioner(p.ID, p.Email),
		notification.KindAppointmentBooked,
		fmt.Sprintf("%s requested an appointment on %s at %s", c.Name, a.Date, a.Time),
	).WithAppointment(a.ID)
	n.Meta["clientId"] = c.ID.String()

	ev := fanout.NewEvent(fanout.EventAppointmentBooked, BookedPayload{
		AppointmentID:  a.ID,
		PractitionerID: p.ID,
		Client:         ClientInfo{ID: c.ID, Name: c.Name, Email: c.Email},
		Date:           a.Date,
		Time:           a.Time,
	})
	s.notifier.Notify(n, &ev)
}

// authorize checks that actor may act on a. Admins may act on anything.
func authorize(actor Actor, a *Appointment) error {
	if actor.Role == RoleAdmin || a.Involves(actor) {
		return nil
	}
	return ErrForbidden
}

// Transition moves an appointment to a new status. Clients may only cancel.
func (s *Service) Transition(ctx context.Context, actor Actor, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, appt); err != nil {
		return nil, err
	}
	if actor.Role == RoleClient && to != StatusCancelled {
		return nil, ErrForbidden
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidStatusTransition
	}

	practitioner, err := s.dir.PractitionerByID(ctx, appt.PractitionerID)
	if err != nil {
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	if to == StatusApproved {
		if err := s.gate.Check(ctx, practitioner.Email); err != nil {
			return nil, err
		}
	}

	var cancelledBy *Role
	if to == StatusCancelled {
		role := actor.Role
		cancelledBy = &role
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, to, cancelledBy)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// status changed since it was read
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", string(appt.Status)).
		Str("to", string(to)).
		Str("by", string(actor.Role)).
		Msg("appointment status changed")

	s.announceStatus(ctx, actor, updated, practitioner)
	return updated, nil
}

func (s *Service) announceStatus(ctx context.Context, actor Actor, a *Appointment, p *identity.Practitioner) {
	var clientEmail string
	if c, err := s.dir.ClientByID(ctx, a.ClientID); err != nil {
		s.log.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("load client for status notice")
	} else {
		clientEmail = c.Email
	}

	// client-initiated changes are not echoed back as a notification
	var n *notification.Notification
	if actor.Role != RoleClient && clientEmail != "" {
		n = notification.New(
			notification.ForClient(clientEmail),
			notification.KindAppointmentStatus,
			statusText(a, p.Name),
		).WithAppointment(a.ID)
		n.Meta["status"] = string(a.Status)
	}

	ev := fanout.NewEvent(fanout.EventAppointmentStatus, StatusPayload{
		AppointmentID:    a.ID,
		Status:           a.Status,
		PractitionerName: p.Name,
		ClientEmail:      clientEmail,
		CancelledBy:      a.CancelledBy,
	})
	s.notifier.Notify(n, &ev)
}

func statusText(a *Appointment, practitionerName string) string {
	when := a.Date.String() + " " + a.Time.String()
	switch a.Status {
	case StatusApproved:
		return fmt.Sprintf("%s approved your appointment on %s", practitionerName, when)
	case StatusCompleted:
		return fmt.Sprintf("Your appointment with %s on %s is completed", practitionerName, when)
	case StatusCancelled:
		return fmt.Sprintf("Your appointment with %s on %s was cancelled", practitionerName, when)
	}
	return fmt.Sprintf("Your appointment with %s on %s is now %s", practitionerName, when, a.Status)
}

// Delete removes a completed or cancelled appointment.
func (s *Service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, appt); err != nil {
		return err
	}
	if !appt.Status.Terminal() {
		return ErrNotDeletable
	}
	if err := s.repo.DeleteTerminal(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return ErrNotDeletable
		}
		return err
	}
	return nil
}

// Review sets the rating and review once. A second attempt returns the
// appointment unchanged with alreadyReviewed set.
func (s *Service) Review(ctx context.Context, actor Actor, id uuid.UUID, rating int, review string) (appt *Appointment, alreadyReviewed bool, err error) {
	appt, err = s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if actor.Role != RoleClient || !appt.Involves(actor) {
		return nil, false, ErrForbidden
	}
	if rating < 1 || rating > 5 {
		return nil, false, ErrInvalidRating
	}
	if appt.Status != StatusCompleted {
		return nil, false, ErrNotCompleted
	}
	if appt.Rating != nil {
		return appt, true, nil
	}

	updated, err := s.repo.SetReview(ctx, id, rating, review)
	if errors.Is(err, ErrAppointmentNotFound) {
		current, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, current.Rating != nil, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("set review: %w", err)
	}
	return updated, false, nil
}

// UpdateNotes replaces the free-text notes. Either party may edit them.
func (s *Service) UpdateNotes(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, appt); err != nil {
		return nil, err
	}
	return s.repo.UpdateNotes(ctx, id, notes)
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, &detail.Appointment); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListAppointments lists the caller's own appointments; admins see all.
func (s *Service) ListAppointments(ctx context.Context, actor Actor, f ListFilter) ([]AppointmentDetail, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var scope Scope
	switch actor.Role {
	case RolePractitioner:
		id := actor.UserID
		scope.PractitionerID = &id
	case RoleClient:
		id := actor.UserID
		scope.ClientID = &id
	case RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	list, err := s.repo.ListAppointments(ctx, scope, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if list == nil {
		list = []AppointmentDetail{}
	}
	return list, nil
}
