package api

import (
	"github.com/google/uuid"

	"github.com/hackgods/practice-booking/internal/appointment"
	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/license"
	"github.com/hackgods/practice-booking/internal/notification"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Availability

type SaveAvailabilityRequest struct {
	Date   civil.Date    `json:"date"`
	Ranges []civil.Range `json:"ranges"`
}

type SaveBulkAvailabilityRequest struct {
	Dates  []civil.Date  `json:"dates"`
	Ranges []civil.Range `json:"ranges"`
}

type AvailabilityResponse struct {
	PractitionerID uuid.UUID     `json:"practitionerId"`
	Date           civil.Date    `json:"date"`
	Ranges         []civil.Range `json:"ranges"`
}

type BulkAvailabilityResponse struct {
	Updated int `json:"updated"`
}

type AvailableRangesResponse struct {
	PractitionerID uuid.UUID     `json:"practitionerId"`
	Date           civil.Date    `json:"date"`
	Mode           string        `json:"mode"`
	Ranges         []civil.Range `json:"ranges"`
}

type AvailableSlotsResponse struct {
	PractitionerID uuid.UUID     `json:"practitionerId"`
	Date           civil.Date    `json:"date"`
	Mode           string        `json:"mode"`
	SlotMinutes    int           `json:"slotMinutes"`
	Slots          []civil.Clock `json:"slots"`
}

// Appointments

type CreateAppointmentRequest struct {
	PractitionerID string       `json:"practitionerId"`
	Date           civil.Date   `json:"date"`
	Time           *civil.Clock `json:"time"`
	Notes          string       `json:"notes"`
}

// UpdateAppointmentRequest carries exactly one kind of change: a status
// transition, a review, or new notes.
type UpdateAppointmentRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
	Rating *int    `json:"rating"`
	Review *string `json:"review"`
}

type ReviewResponse struct {
	*appointment.Appointment
	AlreadyReviewed bool `json:"alreadyReviewed"`
}

// License

type SubmitLicenseRequest struct {
	LicenseNumber string `json:"licenseNumber"`
}

type SubmitLicenseResponse struct {
	Request *license.Request `json:"request"`
	Outcome license.Outcome  `json:"outcome"`
}

type DecideLicenseRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

type DecideLicenseResponse struct {
	Request *license.Request `json:"request"`
	Revoked int              `json:"revoked"`
}

// Notifications

type UpdateNotificationsRequest struct {
	IDs    []uuid.UUID `json:"ids"`
	Read   *bool       `json:"read"`
	Hidden *bool       `json:"hidden"`
}

type HideNotificationsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type NotificationsResponse struct {
	Notifications []notification.Notification `json:"notifications"`
}

type CountResponse struct {
	Updated int64 `json:"updated"`
}
