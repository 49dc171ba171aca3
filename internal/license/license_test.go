package license

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/fanout"
	"github.com/hackgods/practice-booking/internal/identity"
	"github.com/hackgods/practice-booking/internal/notification"
)

// =========== Mock Repository ===========

type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Request
	seq  int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*Request)}
}

func (m *memRepo) stamp() time.Time {
	m.seq++
	return time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) GetByEmailNumber(_ context.Context, email, number string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PractitionerEmail == email && r.LicenseNumber == number {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (m *memRepo) Create(_ context.Context, email, number string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PractitionerEmail == email && r.LicenseNumber == number {
			return nil, ErrDuplicateRequest
		}
	}
	ts := m.stamp()
	r := &Request{ID: uuid.New(), PractitionerEmail: email, LicenseNumber: number, Status: StatusPending, CreatedAt: ts, UpdatedAt: ts}
	m.rows[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *memRepo) Revive(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != StatusRejected {
		return nil, ErrRequestNotFound
	}
	r.Status = StatusPending
	r.Note = nil
	r.SupersededBy = nil
	r.UpdatedAt = m.stamp()
	cp := *r
	return &cp, nil
}

func (m *memRepo) Approve(_ context.Context, id uuid.UUID, note *string) (*Request, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.rows[id]
	if !ok {
		return nil, 0, ErrRequestNotFound
	}
	revoked := 0
	for _, r := range m.rows {
		if r.ID != id && r.PractitionerEmail == target.PractitionerEmail && r.Status == StatusApproved {
			r.Status = StatusRejected
			r.Note = RevokeNote(target.LicenseNumber)
			sup := id
			r.SupersededBy = &sup
			revoked++
		}
	}
	target.Status = StatusApproved
	target.Note = note
	target.SupersededBy = nil
	cp := *target
	return &cp, revoked, nil
}

func (m *memRepo) Reject(_ context.Context, id uuid.UUID, note *string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	r.Status = StatusRejected
	r.Note = note
	r.SupersededBy = nil
	cp := *r
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return ErrRequestNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) ListByEmail(_ context.Context, email string) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.rows {
		if r.PractitionerEmail == email {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) List(_ context.Context, status *Status) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, r := range m.rows {
		if status == nil || r.Status == *status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) HasBlocking(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PractitionerEmail == email && r.Blocking() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) approvedCount(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.PractitionerEmail == email && r.Status == StatusApproved {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu     sync.Mutex
	notes  []*notification.Notification
	events []fanout.Event
}

func (r *recordingNotifier) Notify(n *notification.Notification, ev *fanout.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n != nil {
		r.notes = append(r.notes, n)
	}
	if ev != nil {
		r.events = append(r.events, *ev)
	}
	return true
}

func setup() (*Service, *memRepo, *identity.MemoryDirectory, *recordingNotifier) {
	repo := newMemRepo()
	dir := identity.NewMemoryDirectory()
	notifier := &recordingNotifier{}
	return NewService(repo, dir, notifier, zerolog.Nop()), repo, dir, notifier
}

// =========== Format ===========

func TestNormalizeNumber(t *testing.T) {
	valid := map[string]string{
		" md-123456 ":   "MD-123456",
		"ABCDE1234":     "ABCDE1234",
		"ny-0000000001": "NY-0000000001",
	}
	for in, want := range valid {
		got, err := NormalizeNumber(in)
		if err != nil || got != want {
			t.Errorf("NormalizeNumber(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "M-1234", "ABCDEF-1234", "MD-123", "MD--1234", "MD 1234", "12-3456"} {
		if _, err := NormalizeNumber(in); !errors.Is(err, ErrInvalidLicenseFormat) {
			t.Errorf("NormalizeNumber(%q): expected ErrInvalidLicenseFormat, got %v", in, err)
		}
	}
}

// =========== Submit ===========

func TestSubmit_CreatesAndAnnounces(t *testing.T) {
	svc, _, _, notifier := setup()

	req, outcome, err := svc.Submit(context.Background(), "Doc@Example.com", "md-123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCreated || req.Status != StatusPending {
		t.Errorf("outcome=%s status=%s", outcome, req.Status)
	}
	if req.PractitionerEmail != "doc@example.com" || req.LicenseNumber != "MD-123456" {
		t.Errorf("values not normalized: %+v", req)
	}
	if len(notifier.events) != 1 || notifier.events[0].Name != fanout.EventLicensePending {
		t.Errorf("expected one license_request_pending event, got %+v", notifier.events)
	}
	if len(notifier.notes) != 1 || notifier.notes[0].Kind != notification.KindLicensePending {
		t.Errorf("expected one pending notification, got %+v", notifier.notes)
	}
}

func TestSubmit_IdempotentWhilePending(t *testing.T) {
	svc, repo, _, notifier := setup()
	ctx := context.Background()

	first, _, _ := svc.Submit(ctx, "doc@example.com", "MD-123456")
	second, outcome, err := svc.Submit(ctx, "doc@example.com", "MD-123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAlreadyPending || second.ID != first.ID {
		t.Errorf("expected already_pending for the same request, got %s %s", outcome, second.ID)
	}
	if len(repo.rows) != 1 {
		t.Errorf("duplicate document created: %d rows", len(repo.rows))
	}
	if len(notifier.events) != 1 {
		t.Errorf("no-op submit must not announce again, got %d events", len(notifier.events))
	}
}

func TestSubmit_AlreadyApproved(t *testing.T) {
	svc, _, _, _ := setup()
	ctx := context.Background()

	req, _, _ := svc.Submit(ctx, "doc@example.com", "MD-123456")
	if _, _, err := svc.Approve(ctx, req.ID, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, outcome, err := svc.Submit(ctx, "doc@example.com", "MD-123456")
	if err != nil || outcome != OutcomeAlreadyApproved {
		t.Errorf("expected already_approved, got %s %v", outcome, err)
	}
}

func TestSubmit_RevivesRejected(t *testing.T) {
	svc, _, _, notifier := setup()
	ctx := context.Background()

	req, _, _ := svc.Submit(ctx, "doc@example.com", "MD-123456")
	note := "blurry scan"
	if _, err := svc.Reject(ctx, req.ID, &note); err != nil {
		t.Fatalf("reject: %v", err)
	}

	revived, outcome, err := svc.Submit(ctx, "doc@example.com", "MD-123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRevived || revived.Status != StatusPending || revived.Note != nil {
		t.Errorf("expected revived pending with cleared note, got %s %+v", outcome, revived)
	}
	if len(notifier.events) != 2 {
		t.Errorf("revive should announce, got %d events", len(notifier.events))
	}
}

func TestSubmit_InvalidFormat(t *testing.T) {
	svc, repo, _, _ := setup()
	if _, _, err := svc.Submit(context.Background(), "doc@example.com", "bogus"); !errors.Is(err, ErrInvalidLicenseFormat) {
		t.Fatalf("expected ErrInvalidLicenseFormat, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Error("invalid submission must not be stored")
	}
}

// =========== Approve ===========

func TestApprove_RevokesPriorApproval(t *testing.T) {
	svc, repo, dir, _ := setup()
	ctx := context.Background()
	doc := dir.AddPractitioner(identity.Practitioner{Email: "doc@example.com", Name: "Dr. Ada"})

	y, _, _ := svc.Submit(ctx, "doc@example.com", "MD-111111")
	if _, n, err := svc.Approve(ctx, y.ID, nil); err != nil || n != 0 {
		t.Fatalf("first approve: revoked=%d err=%v", n, err)
	}

	x, _, _ := svc.Submit(ctx, "doc@example.com", "MD-222222")
	approved, revoked, err := svc.Approve(ctx, x.ID, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if revoked != 1 || approved.Status != StatusApproved {
		t.Errorf("revoked=%d status=%s", revoked, approved.Status)
	}

	oldY, _ := svc.Get(ctx, y.ID)
	if oldY.Status != StatusRejected || oldY.SupersededBy == nil || *oldY.SupersededBy != x.ID {
		t.Errorf("prior approval not revoked: %+v", oldY)
	}
	if oldY.Note == nil || *oldY.Note != "auto-revoked: superseded by license MD-222222" {
		t.Errorf("unexpected revoke note: %v", oldY.Note)
	}
	if got := repo.approvedCount("doc@example.com"); got != 1 {
		t.Errorf("approved count = %d, want 1", got)
	}

	p, _ := dir.PractitionerByID(ctx, doc.ID)
	if p.LicenseNumber == nil || *p.LicenseNumber != "MD-222222" || !p.Listed {
		t.Errorf("license not mirrored onto practitioner: %+v", p)
	}
}

func TestApprove_WriteBackFailureDoesNotFail(t *testing.T) {
	svc, _, _, _ := setup()
	ctx := context.Background()

	req, _, _ := svc.Submit(ctx, "ghost@example.com", "MD-123456")
	if _, _, err := svc.Approve(ctx, req.ID, nil); err != nil {
		t.Fatalf("missing identity record must not fail approve: %v", err)
	}
}

func TestApprove_NotFound(t *testing.T) {
	svc, _, _, _ := setup()
	if _, _, err := svc.Approve(context.Background(), uuid.New(), nil); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestApprove_ConcurrentKeepsSingleApproval(t *testing.T) {
	svc, repo, _, _ := setup()
	ctx := context.Background()

	var ids []uuid.UUID
	for _, n := range []string{"MD-100001", "MD-100002", "MD-100003", "MD-100004"} {
		r, _, _ := svc.Submit(ctx, "doc@example.com", n)
		ids = append(ids, r.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _, _ = svc.Approve(ctx, id, nil)
		}(id)
	}
	wg.Wait()

	if got := repo.approvedCount("doc@example.com"); got != 1 {
		t.Errorf("approved count = %d, want 1", got)
	}
}

// =========== Decide ===========

func TestDecide(t *testing.T) {
	svc, _, _, _ := setup()
	ctx := context.Background()
	req, _, _ := svc.Submit(ctx, "doc@example.com", "MD-123456")

	if _, _, err := svc.Decide(ctx, req.ID, StatusPending, nil); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	r, _, err := svc.Decide(ctx, req.ID, StatusRejected, nil)
	if err != nil || r.Status != StatusRejected {
		t.Errorf("reject via Decide: %+v %v", r, err)
	}
}

// =========== Gate ===========

func TestGate(t *testing.T) {
	svc, _, _, _ := setup()
	ctx := context.Background()
	email := "doc@example.com"

	if blocked, _ := svc.Gate(ctx, email); blocked {
		t.Error("no requests should pass the gate")
	}

	a, _, _ := svc.Submit(ctx, email, "MD-111111")
	if err := svc.Check(ctx, email); !errors.Is(err, ErrBlocked) {
		t.Errorf("pending request should block, got %v", err)
	}

	_, _, _ = svc.Approve(ctx, a.ID, nil)
	if blocked, _ := svc.Gate(ctx, email); blocked {
		t.Error("only an approved request should pass the gate")
	}

	b, _, _ := svc.Submit(ctx, email, "MD-222222")
	_, _, _ = svc.Approve(ctx, b.ID, nil)
	if blocked, _ := svc.Gate(ctx, email); blocked {
		t.Error("a request revoked by a newer approval should not block")
	}

	c, _, _ := svc.Submit(ctx, email, "MD-333333")
	_, _ = svc.Reject(ctx, c.ID, nil)
	if blocked, _ := svc.Gate(ctx, email); !blocked {
		t.Error("an explicitly rejected request should block")
	}

	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Check(ctx, email); err != nil {
		t.Errorf("gate should reopen after delete, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	svc, _, _, _ := setup()
	ctx := context.Background()

	view, err := svc.Status(ctx, "doc@example.com")
	if err != nil || view.Blocked || view.Approved != nil || len(view.Requests) != 0 {
		t.Fatalf("empty ledger view = %+v err %v", view, err)
	}

	r, _, _ := svc.Submit(ctx, "doc@example.com", "MD-123456")
	_, _, _ = svc.Approve(ctx, r.ID, nil)
	view, _ = svc.Status(ctx, "doc@example.com")
	if view.Blocked || view.Approved == nil || view.Approved.ID != r.ID {
		t.Errorf("unexpected view %+v", view)
	}
}
