package authmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_DefaultsNotExpired(t *testing.T) {
	s := NewSession("user-1")
	assert.False(t, s.IsExpired())
	assert.WithinDuration(t, time.Now().UTC().Add(DefaultSessionTTL), s.ExpiresAt, time.Second)
}

func TestSession_IsExpired(t *testing.T) {
	s := NewSession("user-1")
	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	assert.True(t, s.IsExpired())
}

func TestSession_Refresh_ExtendsExpiry(t *testing.T) {
	s := NewSession("user-1")
	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.True(t, s.IsExpired())
	s.Refresh()
	assert.False(t, s.IsExpired())
}

func TestAccount_TokensAreUnexported(t *testing.T) {
	a := NewAccount("user-1", "github", "gh-123")
	a.SetTokens("access-tok", "refresh-tok")

	access, ok := a.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "access-tok", access)

	refresh, ok := a.RefreshToken()
	assert.True(t, ok)
	assert.Equal(t, "refresh-tok", refresh)
}

func TestAccount_NoTokensSet(t *testing.T) {
	a := NewAccount("user-1", "google", "g-456")
	_, ok := a.AccessToken()
	assert.False(t, ok)
}
