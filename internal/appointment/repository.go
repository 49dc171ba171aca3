package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hackgods/practice-booking/internal/civil"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already has an active appointment")
)

// Scope restricts a listing to one practitioner and/or client. Nil fields
// are unrestricted.
type Scope struct {
	PractitionerID *uuid.UUID
	ClientID       *uuid.UUID
}

type ListFilter struct {
	Status *AppointmentStatus
	Date   *civil.Date
	Limit  int
	Offset int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, scope Scope, f ListFilter) ([]AppointmentDetail, error)

	// Booking
	CountActiveForPair(ctx context.Context, practitionerID, clientID uuid.UUID) (int, error)
	// CreatePendingAppointment returns ErrSlotTaken when the practitioner
	// already has an active appointment at the same date and time.
	CreatePendingAppointment(ctx context.Context, a *Appointment) error

	// Updates. Each returns ErrAppointmentNotFound when no row matched its
	// guard.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, cancelledBy *Role) (*Appointment, error)
	SetReview(ctx context.Context, id uuid.UUID, rating int, review string) (*Appointment, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error)
	DeleteTerminal(ctx context.Context, id uuid.UUID) error

	// Slot resolution
	BookedStarts(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Clock, error)
}
