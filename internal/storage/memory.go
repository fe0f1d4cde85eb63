package storage

import (
	"context"
	"sync"
	"time"

	"github.com/authcore/runtime/internal/autherr"
	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/schema"
	"golang.org/x/crypto/bcrypt"
)

// MemoryAdapter is the reference in-memory implementation of Adapter,
// grounded in the teacher's database/sql user-access idiom but backed by
// plain maps guarded by a mutex instead of a driver.
type MemoryAdapter struct {
	mu       sync.RWMutex
	users    map[string]*authmodel.User
	byEmail  map[string]string // email -> user id
	sessions map[string]*authmodel.Session
	byToken  map[string]string // token -> session id
	accounts map[string]*authmodel.Account
	schema   schema.SchemaDefinition
}

// NewMemoryAdapter returns an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		users:    map[string]*authmodel.User{},
		byEmail:  map[string]string{},
		sessions: map[string]*authmodel.Session{},
		byToken:  map[string]string{},
		accounts: map[string]*authmodel.Account{},
	}
}

func clone[T any](v T) *T { c := v; return &c }

// --- User ---

func (m *MemoryAdapter) CreateUser(ctx context.Context, u *authmodel.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[u.Email]; exists {
		return autherr.DuplicateEntry("user", "email", u.Email)
	}
	m.users[u.ID] = clone(*u)
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryAdapter) GetUserByID(ctx context.Context, id string) (*authmodel.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, autherr.NotFound("user", "id", id)
	}
	return clone(*u), nil
}

func (m *MemoryAdapter) GetUserByEmail(ctx context.Context, email string) (*authmodel.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, autherr.NotFound("user", "email", email)
	}
	return clone(*m.users[id]), nil
}

func (m *MemoryAdapter) UpdateUser(ctx context.Context, u *authmodel.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return autherr.NotFound("user", "id", u.ID)
	}
	if existing.Email != u.Email {
		if _, collides := m.byEmail[u.Email]; collides {
			return autherr.DuplicateEntry("user", "email", u.Email)
		}
		delete(m.byEmail, existing.Email)
		m.byEmail[u.Email] = u.ID
	}
	m.users[u.ID] = clone(*u)
	return nil
}

// DeleteUser removes the user and cascade-deletes its sessions and
// accounts. The whole operation is performed under a single write lock, so
// it is atomic with respect to other Adapter calls.
func (m *MemoryAdapter) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return autherr.NotFound("user", "id", id)
	}
	delete(m.byEmail, u.Email)
	delete(m.users, id)
	for sid, s := range m.sessions {
		if s.UserID == id {
			delete(m.byToken, s.Token)
			delete(m.sessions, sid)
		}
	}
	for aid, a := range m.accounts {
		if a.UserID == id {
			delete(m.accounts, aid)
		}
	}
	return nil
}

func (m *MemoryAdapter) ListUsers(ctx context.Context, offset, limit int) ([]*authmodel.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*authmodel.User
	for _, u := range m.users {
		all = append(all, clone(*u))
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryAdapter) CountUsers(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// SetPassword hashes password with bcrypt and stores it in the user's
// extension bag under "password_hash", the way internal/db/users.go hashes
// passwords before persisting them.
func SetPassword(u *authmodel.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return autherr.Internal("password hashing failed")
	}
	return u.SetExtension("password_hash", string(hash))
}

// CheckPassword verifies password against the stored bcrypt hash.
func CheckPassword(u *authmodel.User, password string) bool {
	var hash string
	found, err := u.GetExtension("password_hash", &hash)
	if err != nil || !found {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// --- Session ---

func (m *MemoryAdapter) CreateSession(ctx context.Context, s *authmodel.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(*s)
	m.byToken[s.Token] = s.ID
	return nil
}

func (m *MemoryAdapter) GetSessionByID(ctx context.Context, id string) (*authmodel.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, autherr.NotFound("session", "id", id)
	}
	return clone(*s), nil
}

func (m *MemoryAdapter) GetSessionByToken(ctx context.Context, token string) (*authmodel.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, autherr.NotFound("session", "token", token)
	}
	return clone(*m.sessions[id]), nil
}

func (m *MemoryAdapter) ListSessionsByUserID(ctx context.Context, userID string) ([]*authmodel.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*authmodel.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, clone(*s))
		}
	}
	return out, nil
}

func (m *MemoryAdapter) UpdateSession(ctx context.Context, s *authmodel.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if !ok {
		return autherr.NotFound("session", "id", s.ID)
	}
	if existing.Token != s.Token {
		delete(m.byToken, existing.Token)
		m.byToken[s.Token] = s.ID
	}
	m.sessions[s.ID] = clone(*s)
	return nil
}

func (m *MemoryAdapter) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return autherr.NotFound("session", "id", id)
	}
	delete(m.byToken, s.Token)
	delete(m.sessions, id)
	return nil
}

func (m *MemoryAdapter) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.byToken, s.Token)
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryAdapter) DeleteExpiredSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.byToken, s.Token)
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

// --- Account ---

func (m *MemoryAdapter) CreateAccount(ctx context.Context, a *authmodel.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Provider == a.Provider && existing.ProviderAccountID == a.ProviderAccountID {
			return autherr.DuplicateEntry("account", "provider_account_id", a.ProviderAccountID)
		}
	}
	m.accounts[a.ID] = clone(*a)
	return nil
}

func (m *MemoryAdapter) GetAccount(ctx context.Context, provider, providerAccountID string) (*authmodel.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			return clone(*a), nil
		}
	}
	return nil, autherr.NotFound("account", "provider_account_id", providerAccountID)
}

func (m *MemoryAdapter) ListAccountsByUserID(ctx context.Context, userID string) ([]*authmodel.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*authmodel.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, clone(*a))
		}
	}
	return out, nil
}

func (m *MemoryAdapter) DeleteAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return autherr.NotFound("account", "id", id)
	}
	delete(m.accounts, id)
	return nil
}

// --- Schema ---

func (m *MemoryAdapter) Migrate(ctx context.Context, models []schema.ModelDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = schema.SchemaDefinition{Models: models}
	return nil
}

func (m *MemoryAdapter) TableExists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.schema.GetModel(name)
	return ok, nil
}

func (m *MemoryAdapter) CurrentSchema(ctx context.Context) (schema.SchemaDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema, nil
}
