// Package license keeps the per-practitioner ledger of license submissions
// and answers whether a practitioner may currently take bookings.
package license

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/fanout"
	"github.com/hackgods/practice-booking/internal/identity"
	"github.com/hackgods/practice-booking/internal/notification"
)

var numberPattern = regexp.MustCompile(`^[A-Z]{2,5}-?[0-9]{4,10}$`)

// NormalizeNumber trims and upper-cases a license number and checks its
// format.
func NormalizeNumber(raw string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if !numberPattern.MatchString(n) {
		return "", ErrInvalidLicenseFormat
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RevokeNote is the note left on a request revoked by a later approval.
func RevokeNote(number string) *string {
	n := "auto-revoked: superseded by license " + number
	return &n
}

// Notifier queues a notification and/or live event off the request path.
type Notifier interface {
	Notify(n *notification.Notification, ev *fanout.Event) bool
}

type Service struct {
	repo     Repository
	dir      identity.Directory
	notifier Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, dir identity.Directory, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		dir:      dir,
		notifier: notifier,
		log:      log.With().Str("component", "license").Logger(),
	}
}

// Submit records a license number for review. Resubmitting a pending or
// approved number is a no-op; resubmitting a rejected one revives it.
func (s *Service) Submit(ctx context.Context, email, rawNumber string) (*Request, Outcome, error) {
	number, err := NormalizeNumber(rawNumber)
	if err != nil {
		return nil, "", err
	}
	email = normalizeEmail(email)

	req, outcome, err := s.submit(ctx, email, number)
	if errors.Is(err, ErrDuplicateRequest) {
		// lost a race with a concurrent submit of the same number
		req, outcome, err = s.submit(ctx, email, number)
	}
	if err != nil {
		return nil, "", err
	}

	if outcome == OutcomeCreated || outcome == OutcomeRevived {
		s.announcePending(req)
	}
	return req, outcome, nil
}

func (s *Service) submit(ctx context.Context, email, number string) (*Request, Outcome, error) {
	existing, err := s.repo.GetByEmailNumber(ctx, email, number)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return nil, "", fmt.Errorf("load license request: %w", err)
	}

	if existing == nil {
		created, err := s.repo.Create(ctx, email, number)
		if err != nil {
			return nil, "", err
		}
		return created, OutcomeCreated, nil
	}

	switch existing.Status {
	case StatusPending:
		return existing, OutcomeAlreadyPending, nil
	case StatusApproved:
		return existing, OutcomeAlreadyApproved, nil
	}

	revived, err := s.repo.Revive(ctx, existing.ID)
	if errors.Is(err, ErrRequestNotFound) {
		// status moved under us; report what is there now
		current, err := s.repo.GetByID(ctx, existing.ID)
		if err != nil {
			return nil, "", err
		}
		if current.Status == StatusApproved {
			return current, OutcomeAlreadyApproved, nil
		}
		return current, OutcomeAlreadyPending, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("revive license request: %w", err)
	}
	return revived, OutcomeRevived, nil
}

func (s *Service) announcePending(req *Request) {
	if s.notifier == nil {
		return
	}
	n := notification.New(
		notification.Audience{Type: notification.AudiencePractitioner, Email: req.PractitionerEmail},
		notification.KindLicensePending,
		fmt.Sprintf("License %s submitted and awaiting review", req.LicenseNumber),
	)
	n.Meta["licenseRequestId"] = req.ID.String()
	n.Meta["licenseNumber"] = req.LicenseNumber

	ev := fanout.NewEvent(fanout.EventLicensePending, map[string]any{
		"requestId":         req.ID,
		"practitionerEmail": req.PractitionerEmail,
		"licenseNumber":     req.LicenseNumber,
	})
	s.notifier.Notify(n, &ev)
}

// Approve approves id and revokes any other approved license for the same
// practitioner. The license number is then mirrored onto the practitioner
// record; a failed write-back is logged, not returned.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, note *string) (*Request, int, error) {
	approved, revoked, err := s.repo.Approve(ctx, id, note)
	if err != nil {
		return nil, 0, err
	}

	if s.dir != nil {
		if err := s.dir.SetPractitionerLicense(ctx, approved.PractitionerEmail, approved.LicenseNumber); err != nil {
			s.log.Error().Err(err).
				Str("email", approved.PractitionerEmail).
				Str("license_request_id", approved.ID.String()).
				Msg("mirror approved license onto practitioner")
		}
	}

	s.log.Info().
		Str("license_request_id", approved.ID.String()).
		Int("revoked", revoked).
		Msg("license approved")

	return approved, revoked, nil
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, note *string) (*Request, error) {
	return s.repo.Reject(ctx, id, note)
}

// Decide applies an administrative decision. Only approved and rejected are
// accepted.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, status Status, note *string) (*Request, int, error) {
	switch status {
	case StatusApproved:
		return s.Approve(ctx, id, note)
	case StatusRejected:
		r, err := s.Reject(ctx, id, note)
		return r, 0, err
	}
	return nil, 0, ErrInvalidStatus
}

// Gate reports whether email has a pending or unresolved rejected request.
func (s *Service) Gate(ctx context.Context, email string) (bool, error) {
	return s.repo.HasBlocking(ctx, normalizeEmail(email))
}

// Check returns ErrBlocked when the gate is closed.
func (s *Service) Check(ctx context.Context, email string) error {
	blocked, err := s.Gate(ctx, email)
	if err != nil {
		return err
	}
	if blocked {
		return ErrBlocked
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]Request, error) {
	list, err := s.repo.ListByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Request{}
	}
	return list, nil
}

func (s *Service) List(ctx context.Context, status *Status) ([]Request, error) {
	list, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Request{}
	}
	return list, nil
}

// StatusView is what a practitioner sees about their own ledger.
type StatusView struct {
	Blocked  bool      `json:"blocked"`
	Approved *Request  `json:"approved,omitempty"`
	Requests []Request `json:"requests"`
}

func (s *Service) Status(ctx context.Context, email string) (*StatusView, error) {
	list, err := s.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	view := &StatusView{Requests: list}
	for i := range list {
		if list[i].Blocking() {
			view.Blocked = true
		}
		if list[i].Status == StatusApproved {
			view.Approved = &list[i]
		}
	}
	return view, nil
}
