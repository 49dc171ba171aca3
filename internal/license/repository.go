package license

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound      = errors.New("license request not found")
	ErrDuplicateRequest     = errors.New("license request already exists")
	ErrInvalidLicenseFormat = errors.New("license number format is invalid")
	ErrBlocked              = errors.New("a license request is pending or rejected")
	ErrInvalidStatus        = errors.New("status must be approved or rejected")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByEmailNumber(ctx context.Context, email, number string) (*Request, error)

	// Create inserts a pending request; ErrDuplicateRequest if (email, number)
	// already exists.
	Create(ctx context.Context, email, number string) (*Request, error)

	// Revive moves a rejected request back to pending, clearing its note.
	// ErrRequestNotFound if it is no longer rejected.
	Revive(ctx context.Context, id uuid.UUID) (*Request, error)

	// Approve revokes every other approved request for the same email and
	// approves id, atomically. It returns the approved row and the number
	// revoked.
	Approve(ctx context.Context, id uuid.UUID, note *string) (*Request, int, error)

	Reject(ctx context.Context, id uuid.UUID, note *string) (*Request, error)
	Delete(ctx context.Context, id uuid.UUID) error

	ListByEmail(ctx context.Context, email string) ([]Request, error)
	List(ctx context.Context, status *Status) ([]Request, error)

	// HasBlocking reports whether any request for email is blocking.
	HasBlocking(ctx context.Context, email string) (bool, error)
}
