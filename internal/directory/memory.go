package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
)

// MemoryDirectory is the in-process Directory used by tests and local dev.
// It enforces the same unique-email constraint the Postgres schema does,
// including under concurrent inserts.
type MemoryDirectory struct {
	mu       sync.Mutex
	byID     map[string]*identity.Identity
	byEmail  map[string]string // email -> id
	auth     map[string]*identity.AuthRecord
	profiles map[string]*identity.Profile

	missNextByEmail bool
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:     make(map[string]*identity.Identity),
		byEmail:  make(map[string]string),
		auth:     make(map[string]*identity.AuthRecord),
		profiles: make(map[string]*identity.Profile),
	}
}

func (m *MemoryDirectory) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryDirectory) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missNextByEmail {
		m.missNextByEmail = false
		return nil, ErrNotFound
	}
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryDirectory) Insert(ctx context.Context, in NewIdentity) (*identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := normalizeEmail(in.Email)
	if _, taken := m.byEmail[email]; taken {
		return nil, ErrDuplicateEmail
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, taken := m.byID[id]; taken {
		return nil, ErrDuplicateEmail
	}

	now := time.Now().UTC()
	rec := &identity.Identity{
		ID:        id,
		Email:     email,
		Role:      in.Role,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byID[rec.ID] = rec
	m.byEmail[email] = rec.ID

	cp := *rec
	return &cp, nil
}

func (m *MemoryDirectory) Update(ctx context.Context, rec *identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[rec.ID]
	if !ok {
		return ErrNotFound
	}
	cur.FirstName = rec.FirstName
	cur.LastName = rec.LastName
	cur.Phone = rec.Phone
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryDirectory) AuthRecord(ctx context.Context, userID string) (identity.AuthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[userID]; !ok {
		return identity.AuthRecord{}, ErrNotFound
	}
	rec, ok := m.auth[userID]
	if !ok {
		return identity.AuthRecord{}, nil
	}
	cp := identity.AuthRecord{LegacyProvider: rec.LegacyProvider}
	cp.Linked = append(cp.Linked, rec.Linked...)
	return cp, nil
}

func (m *MemoryDirectory) LinkIdentity(ctx context.Context, userID string, link identity.LinkedIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[userID]; !ok {
		return ErrNotFound
	}
	rec, ok := m.auth[userID]
	if !ok {
		rec = &identity.AuthRecord{}
		m.auth[userID] = rec
	}
	for _, li := range rec.Linked {
		if li.Provider == link.Provider && li.SubjectID == link.SubjectID {
			return nil
		}
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	link.Email = normalizeEmail(link.Email)
	rec.Linked = append(rec.Linked, link)
	return nil
}

// FailNextGetByEmail makes the next GetByEmail miss, simulating the lookup
// racing ahead of another writer's commit. Test helper.
func (m *MemoryDirectory) FailNextGetByEmail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missNextByEmail = true
}

// SetLegacyProvider seeds the legacy single-provider column. Test helper.
func (m *MemoryDirectory) SetLegacyProvider(userID string, p identity.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.auth[userID]
	if !ok {
		rec = &identity.AuthRecord{}
		m.auth[userID] = rec
	}
	rec.LegacyProvider = p
}

func (m *MemoryDirectory) CreateProfile(ctx context.Context, p identity.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.UserID]; ok {
		return nil
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *MemoryDirectory) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDirectory) Ping(ctx context.Context) error { return nil }

func (m *MemoryDirectory) Close() {}

// ProfileCount reports how many profiles exist. Test helper.
func (m *MemoryDirectory) ProfileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

// IdentityCount reports how many directory rows exist. Test helper.
func (m *MemoryDirectory) IdentityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

var _ Directory = (*MemoryDirectory)(nil)
