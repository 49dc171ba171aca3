package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practice-booking/internal/civil"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusApproved  AppointmentStatus = "approved"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func ParseStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusApproved, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// transitions lists the allowed next states. Terminal states have none.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:  {StatusApproved, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Active appointments hold their slot and count toward the pair cap.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Role is who performed an action.
type Role string

const (
	RolePractitioner Role = "practitioner"
	RoleClient       Role = "client"
	RoleAdmin        Role = "admin"
)

// Actor is the authenticated caller as seen by the service.
type Actor struct {
	Role   Role
	UserID uuid.UUID
	Email  string
}

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	PractitionerID uuid.UUID         `json:"practitionerId"`
	ClientID       uuid.UUID         `json:"clientId"`
	Date           civil.Date        `json:"date"`
	Time           civil.Clock       `json:"time"`
	Status         AppointmentStatus `json:"status"`
	Notes          string            `json:"notes"`
	Rating         *int              `json:"rating,omitempty"`
	Review         *string           `json:"review,omitempty"`
	CancelledBy    *Role             `json:"cancelledBy,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Involves reports whether the actor is a party to the appointment.
func (a *Appointment) Involves(actor Actor) bool {
	switch actor.Role {
	case RolePractitioner:
		return a.PractitionerID == actor.UserID
	case RoleClient:
		return a.ClientID == actor.UserID
	}
	return false
}

// AppointmentDetail is an appointment joined with display data for both
// parties.
type AppointmentDetail struct {
	Appointment
	PractitionerName string `json:"practitionerName"`
	ClientName       string `json:"clientName"`
	ClientEmail      string `json:"clientEmail"`
}

type ClientInfo struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// BookedPayload is the data of an appointment_booked event.
type BookedPayload struct {
	AppointmentID  uuid.UUID   `json:"appointmentId"`
	PractitionerID uuid.UUID   `json:"practitionerId"`
	Client         ClientInfo  `json:"client"`
	Date           civil.Date  `json:"date"`
	Time           civil.Clock `json:"time"`
}

// StatusPayload is the data of an appointment_status event.
type StatusPayload struct {
	AppointmentID    uuid.UUID         `json:"appointmentId"`
	Status           AppointmentStatus `json:"status"`
	PractitionerName string            `json:"practitionerName"`
	ClientEmail      string            `json:"clientEmail"`
	CancelledBy      *Role             `json:"cancelledBy,omitempty"`
}
