// Package identity reads practitioner and client records and writes back the
// approved license number. Profile management lives elsewhere.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrClientNotFound       = errors.New("client not found")
)

type PractitionerKind string

const (
	KindDoctor    PractitionerKind = "doctor"
	KindTherapist PractitionerKind = "therapist"
)

type Practitioner struct {
	ID            uuid.UUID        `json:"id"`
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	Kind          PractitionerKind `json:"kind"`
	LicenseNumber *string          `json:"licenseNumber,omitempty"`
	Listed        bool             `json:"listed"`
}

type Client struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// Directory is the narrow view of the identity store used by booking and
// licensing.
type Directory interface {
	PractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	ClientByID(ctx context.Context, id uuid.UUID) (*Client, error)
	ClientByEmail(ctx context.Context, email string) (*Client, error)

	// SetPractitionerLicense mirrors an approved license onto the
	// practitioner record and marks them listed.
	SetPractitionerLicense(ctx context.Context, email, licenseNumber string) error
}
