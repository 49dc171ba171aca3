package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AudienceType string

const (
	AudiencePractitioner AudienceType = "practitioner"
	AudienceClient       AudienceType = "client"
)

const (
	KindAppointmentBooked = "appointment_booked"
	KindAppointmentStatus = "appointment_status"
	KindLicensePending    = "license_request_pending"
)

// Audience identifies whose inbox a notification lands in. Practitioners are
// matched by id or email, clients by email.
type Audience struct {
	Type   AudienceType
	UserID uuid.UUID
	Email  string
}

func ForPractitioner(id uuid.UUID, email string) Audience {
	return Audience{Type: AudiencePractitioner, UserID: id, Email: NormalizeEmail(email)}
}

func ForClient(email string) Audience {
	return Audience{Type: AudienceClient, Email: NormalizeEmail(email)}
}

// NormalizeEmail is the form emails are stored and matched in. Tokens carry
// lowercased emails while identity rows may not.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Notification is append-only; only Read and Hidden ever change.
type Notification struct {
	ID                   uuid.UUID      `json:"id"`
	AudienceType         AudienceType   `json:"audienceType"`
	UserID               *uuid.UUID     `json:"userId,omitempty"`
	Email                string         `json:"email,omitempty"`
	Kind                 string         `json:"kind"`
	RelatedAppointmentID *uuid.UUID     `json:"relatedAppointmentId,omitempty"`
	Text                 string         `json:"text"`
	Read                 bool           `json:"read"`
	Hidden               bool           `json:"hidden"`
	Meta                 map[string]any `json:"meta,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
}

// New builds an unsaved notification addressed to a.
func New(a Audience, kind, text string) *Notification {
	n := &Notification{
		AudienceType: a.Type,
		Email:        NormalizeEmail(a.Email),
		Kind:         kind,
		Text:         text,
		Meta:         map[string]any{},
	}
	if a.UserID != uuid.Nil {
		id := a.UserID
		n.UserID = &id
	}
	return n
}

func (n *Notification) WithAppointment(id uuid.UUID) *Notification {
	n.RelatedAppointmentID = &id
	return n
}
