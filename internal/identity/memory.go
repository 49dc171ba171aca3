package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory used by tests and the load
// simulator.
type MemoryDirectory struct {
	mu            sync.RWMutex
	practitioners map[uuid.UUID]*Practitioner
	clients       map[uuid.UUID]*Client
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		practitioners: make(map[uuid.UUID]*Practitioner),
		clients:       make(map[uuid.UUID]*Client),
	}
}

func (m *MemoryDirectory) AddPractitioner(p Practitioner) *Practitioner {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Kind == "" {
		p.Kind = KindDoctor
	}
	m.practitioners[p.ID] = &p
	cp := p
	return &cp
}

func (m *MemoryDirectory) AddClient(c Client) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.clients[c.ID] = &c
	cp := c
	return &cp
}

func (m *MemoryDirectory) PractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDirectory) ClientByID(_ context.Context, id uuid.UUID) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryDirectory) ClientByEmail(_ context.Context, email string) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrClientNotFound
}

func (m *MemoryDirectory) SetPractitionerLicense(_ context.Context, email, licenseNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.practitioners {
		if strings.EqualFold(p.Email, email) {
			n := licenseNumber
			p.LicenseNumber = &n
			p.Listed = true
			return nil
		}
	}
	return ErrPractitionerNotFound
}
