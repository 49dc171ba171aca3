package license

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

// Outcome describes what Submit did.
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeRevived         Outcome = "revived"
	OutcomeAlreadyPending  Outcome = "already_pending"
	OutcomeAlreadyApproved Outcome = "already_approved"
)

type Request struct {
	ID                uuid.UUID  `json:"id"`
	PractitionerEmail string     `json:"practitionerEmail"`
	LicenseNumber     string     `json:"licenseNumber"`
	Status            Status     `json:"status"`
	Note              *string    `json:"note,omitempty"`
	SupersededBy      *uuid.UUID `json:"supersededBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Blocking reports whether this request holds the practitioner's gate shut.
// Rows rejected by a later approval do not.
func (r Request) Blocking() bool {
	switch r.Status {
	case StatusPending:
		return true
	case StatusRejected:
		return r.SupersededBy == nil
	}
	return false
}
