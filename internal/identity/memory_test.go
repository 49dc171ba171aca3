package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryDirectory_Lookups(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()

	p := dir.AddPractitioner(Practitioner{Email: "doc@example.com", Name: "Dr. Ada"})
	c := dir.AddClient(Client{Email: "Pat@Example.com", Name: "Pat"})

	got, err := dir.PractitionerByID(ctx, p.ID)
	if err != nil || got.Email != "doc@example.com" {
		t.Fatalf("PractitionerByID: got %+v err %v", got, err)
	}
	if byEmail, err := dir.ClientByEmail(ctx, "pat@example.com"); err != nil || byEmail.ID != c.ID {
		t.Errorf("ClientByEmail should ignore case: got %+v err %v", byEmail, err)
	}
	if got.Kind != KindDoctor {
		t.Errorf("default kind = %s, want doctor", got.Kind)
	}
	if _, err := dir.ClientByID(ctx, c.ID); err != nil {
		t.Errorf("ClientByID: %v", err)
	}
	if _, err := dir.ClientByID(ctx, uuid.New()); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
	if _, err := dir.PractitionerByID(ctx, uuid.New()); !errors.Is(err, ErrPractitionerNotFound) {
		t.Errorf("expected ErrPractitionerNotFound, got %v", err)
	}
}

func TestMemoryDirectory_SetPractitionerLicense(t *testing.T) {
	dir := NewMemoryDirectory()
	ctx := context.Background()
	p := dir.AddPractitioner(Practitioner{Email: "doc@example.com", Name: "Dr. Ada"})

	if err := dir.SetPractitionerLicense(ctx, "doc@example.com", "MD-123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := dir.PractitionerByID(ctx, p.ID)
	if got.LicenseNumber == nil || *got.LicenseNumber != "MD-123456" || !got.Listed {
		t.Errorf("license not mirrored: %+v", got)
	}
	if err := dir.SetPractitionerLicense(ctx, "ghost@example.com", "MD-1"); !errors.Is(err, ErrPractitionerNotFound) {
		t.Errorf("expected ErrPractitionerNotFound, got %v", err)
	}
}
