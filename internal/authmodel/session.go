package authmodel

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL matches the reference implementation's default expiry.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Session is a user's authenticated session.
//
// Invariant: a session is active iff now < ExpiresAt and it exists in
// storage.
type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Token      string     `json:"token"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	Extensions Extensions `json:"extensions,omitempty"`
}

// NewSession constructs a Session with a fresh ID, opaque token, and the
// default expiry.
func NewSession(userID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Token:      uuid.NewString(),
		ExpiresAt:  now.Add(DefaultSessionTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
		Extensions: Extensions{},
	}
}

// IsExpired reports whether the session has passed its ExpiresAt.
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Refresh extends ExpiresAt by the default TTL from now.
func (s *Session) Refresh() {
	s.ExpiresAt = time.Now().UTC().Add(DefaultSessionTTL)
	s.UpdatedAt = time.Now().UTC()
}

// SetExtension stores value under key and bumps UpdatedAt.
func (s *Session) SetExtension(key string, value interface{}) error {
	if s.Extensions == nil {
		s.Extensions = Extensions{}
	}
	if err := s.Extensions.Set(key, value); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// GetExtension decodes the value stored under key into out.
func (s *Session) GetExtension(key string, out interface{}) (bool, error) {
	if s.Extensions == nil {
		return false, nil
	}
	return s.Extensions.Get(key, out)
}

// ReferentialAction describes the behavior of a foreign key on delete.
type ReferentialAction string

const (
	ActionCascade  ReferentialAction = "cascade"
	ActionSetNull  ReferentialAction = "set_null"
	ActionRestrict ReferentialAction = "restrict"
	ActionNoAction ReferentialAction = "no_action"
)

// Account links a User to an external identity provider.
//
// Invariant: (Provider, ProviderAccountID) is globally unique.
// AccessToken/RefreshToken are private: never emitted in serialized public
// responses (see MarshalJSON).
type Account struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Provider          string     `json:"provider"`
	ProviderAccountID string     `json:"provider_account_id"`
	accessToken       *string
	refreshToken      *string
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewAccount constructs an Account with a fresh ID and timestamps.
func NewAccount(userID, provider, providerAccountID string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:                uuid.NewString(),
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: providerAccountID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SetTokens stores the access/refresh tokens. They are kept unexported so
// that the default JSON encoding of Account never surfaces them.
func (a *Account) SetTokens(access, refresh string) {
	a.accessToken = &access
	a.refreshToken = &refresh
	a.UpdatedAt = time.Now().UTC()
}

// AccessToken returns the stored access token, if any.
func (a *Account) AccessToken() (string, bool) {
	if a.accessToken == nil {
		return "", false
	}
	return *a.accessToken, true
}

// RefreshToken returns the stored refresh token, if any.
func (a *Account) RefreshToken() (string, bool) {
	if a.refreshToken == nil {
		return "", false
	}
	return *a.refreshToken, true
}
