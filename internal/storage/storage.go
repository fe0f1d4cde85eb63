// Package storage defines the persistence contract (C3) used by the core,
// plus an in-memory reference adapter safe for concurrent use. Only the
// contract's shape is mandated by spec.md; concrete backends (SQL engines,
// key-value stores) are out of scope beyond this one reference adapter and
// the PostgreSQL skeleton in postgres.go.
package storage

import (
	"context"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/schema"
)

// Adapter is the single abstract contract for all persistence operations
// used by the core. All methods are asynchronous (take a context.Context)
// and must be safe to call from many concurrent goroutines. The contract
// makes no atomicity promise across calls except DeleteUser's cascade,
// which MUST be atomic-or-documented by the implementation.
type Adapter interface {
	// User
	CreateUser(ctx context.Context, u *authmodel.User) error
	GetUserByID(ctx context.Context, id string) (*authmodel.User, error)
	GetUserByEmail(ctx context.Context, email string) (*authmodel.User, error)
	UpdateUser(ctx context.Context, u *authmodel.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, offset, limit int) ([]*authmodel.User, error)
	CountUsers(ctx context.Context) (int, error)

	// Session
	CreateSession(ctx context.Context, s *authmodel.Session) error
	GetSessionByID(ctx context.Context, id string) (*authmodel.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*authmodel.Session, error)
	ListSessionsByUserID(ctx context.Context, userID string) ([]*authmodel.Session, error)
	UpdateSession(ctx context.Context, s *authmodel.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsByUserID(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// Account
	CreateAccount(ctx context.Context, a *authmodel.Account) error
	GetAccount(ctx context.Context, provider, providerAccountID string) (*authmodel.Account, error)
	ListAccountsByUserID(ctx context.Context, userID string) ([]*authmodel.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// Schema
	Migrate(ctx context.Context, models []schema.ModelDefinition) error
	TableExists(ctx context.Context, name string) (bool, error)
	CurrentSchema(ctx context.Context) (schema.SchemaDefinition, error)
}
