package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/authcore/runtime/internal/authmodel"
	"github.com/authcore/runtime/internal/autherr"
	"github.com/authcore/runtime/internal/schema"
	"github.com/lib/pq"
)

// PostgresAdapter is a database/sql-backed Adapter using the lib/pq driver,
// grounded in the query and scan idioms of the teacher's internal/db
// package. It assumes the core schema's three tables (users, sessions,
// accounts) with each model's extension bag stored in a JSONB column.
type PostgresAdapter struct {
	db *sql.DB
}

// NewPostgresAdapter wraps an already-opened *sql.DB. Callers are
// responsible for the connection string and pool tuning (see the
// teacher's internal/db/database.go for the sql.Open("postgres", ...)
// idiom this mirrors).
func NewPostgresAdapter(db *sql.DB) *PostgresAdapter {
	return &PostgresAdapter{db: db}
}

// DB returns the underlying connection pool.
func (p *PostgresAdapter) DB() *sql.DB { return p.db }

func marshalExtensions(e authmodel.Extensions) ([]byte, error) {
	if len(e) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

func unmarshalExtensions(raw []byte) (authmodel.Extensions, error) {
	ext := authmodel.Extensions{}
	if len(raw) == 0 {
		return ext, nil
	}
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("storage: decode extensions: %w", err)
	}
	return ext, nil
}

// CreateUser inserts u. Returns autherr.DuplicateEntry on a unique
// violation of the email column.
func (p *PostgresAdapter) CreateUser(ctx context.Context, u *authmodel.User) error {
	ext, err := marshalExtensions(u.Extensions)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO users (id, email, email_verified, name, image, created_at, updated_at, extensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.db.ExecContext(ctx, q, u.ID, u.Email, u.EmailVerified, u.Name, u.Image, u.CreatedAt, u.UpdatedAt, ext)
	if isUniqueViolation(err) {
		return autherr.DuplicateEntry("user", "email", u.Email)
	}
	return err
}

func (p *PostgresAdapter) scanUser(row *sql.Row) (*authmodel.User, error) {
	u := &authmodel.User{}
	var ext []byte
	err := row.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Name, &u.Image, &u.CreatedAt, &u.UpdatedAt, &ext)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, autherr.NotFound("user", "id", "")
		}
		return nil, err
	}
	u.Extensions, err = unmarshalExtensions(ext)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *PostgresAdapter) GetUserByID(ctx context.Context, id string) (*authmodel.User, error) {
	const q = `SELECT id, email, email_verified, name, image, created_at, updated_at, extensions FROM users WHERE id = $1`
	u, err := p.scanUser(p.db.QueryRowContext(ctx, q, id))
	if err != nil {
		var ae *autherr.Error
		if errors.As(err, &ae) && ae.Reason == autherr.ReasonNotFound {
			return nil, autherr.NotFound("user", "id", id)
		}
		return nil, err
	}
	return u, nil
}

func (p *PostgresAdapter) GetUserByEmail(ctx context.Context, email string) (*authmodel.User, error) {
	const q = `SELECT id, email, email_verified, name, image, created_at, updated_at, extensions FROM users WHERE email = $1`
	u, err := p.scanUser(p.db.QueryRowContext(ctx, q, email))
	if err != nil {
		var ae *autherr.Error
		if errors.As(err, &ae) && ae.Reason == autherr.ReasonNotFound {
			return nil, autherr.NotFound("user", "email", email)
		}
		return nil, err
	}
	return u, nil
}

func (p *PostgresAdapter) UpdateUser(ctx context.Context, u *authmodel.User) error {
	ext, err := marshalExtensions(u.Extensions)
	if err != nil {
		return err
	}
	const q = `
		UPDATE users SET email = $2, email_verified = $3, name = $4, image = $5, updated_at = $6, extensions = $7
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, q, u.ID, u.Email, u.EmailVerified, u.Name, u.Image, u.UpdatedAt, ext)
	if isUniqueViolation(err) {
		return autherr.DuplicateEntry("user", "email", u.Email)
	}
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "user", "id", u.ID)
}

// DeleteUser removes u and cascades to its sessions and accounts within a
// single transaction, per the Adapter contract's atomicity requirement.
func (p *PostgresAdapter) DeleteUser(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "user", "id", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresAdapter) ListUsers(ctx context.Context, offset, limit int) ([]*authmodel.User, error) {
	const q = `
		SELECT id, email, email_verified, name, image, created_at, updated_at, extensions
		FROM users ORDER BY created_at ASC OFFSET $1 LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*authmodel.User
	for rows.Next() {
		u := &authmodel.User{}
		var ext []byte
		if err := rows.Scan(&u.ID, &u.Email, &u.EmailVerified, &u.Name, &u.Image, &u.CreatedAt, &u.UpdatedAt, &ext); err != nil {
			return nil, err
		}
		if u.Extensions, err = unmarshalExtensions(ext); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresAdapter) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (p *PostgresAdapter) CreateSession(ctx context.Context, s *authmodel.Session) error {
	ext, err := marshalExtensions(s.Extensions)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO sessions (id, user_id, token, expires_at, created_at, updated_at, ip_address, user_agent, extensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = p.db.ExecContext(ctx, q, s.ID, s.UserID, s.Token, s.ExpiresAt, s.CreatedAt, s.UpdatedAt, s.IPAddress, s.UserAgent, ext)
	if isUniqueViolation(err) {
		return autherr.DuplicateEntry("session", "token", s.Token)
	}
	return err
}

func (p *PostgresAdapter) scanSession(row *sql.Row) (*authmodel.Session, error) {
	s := &authmodel.Session{}
	var ext []byte
	err := row.Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt, &s.IPAddress, &s.UserAgent, &ext)
	if err != nil {
		return nil, err
	}
	s.Extensions, err = unmarshalExtensions(ext)
	return s, err
}

const sessionColumns = `id, user_id, token, expires_at, created_at, updated_at, ip_address, user_agent, extensions`

func (p *PostgresAdapter) GetSessionByID(ctx context.Context, id string) (*authmodel.Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := p.scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autherr.NotFound("session", "id", id)
	}
	return s, err
}

func (p *PostgresAdapter) GetSessionByToken(ctx context.Context, token string) (*authmodel.Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = $1`, token)
	s, err := p.scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autherr.NotFound("session", "token", token)
	}
	return s, err
}

func (p *PostgresAdapter) ListSessionsByUserID(ctx context.Context, userID string) ([]*authmodel.Session, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*authmodel.Session
	for rows.Next() {
		s := &authmodel.Session{}
		var ext []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt, &s.IPAddress, &s.UserAgent, &ext); err != nil {
			return nil, err
		}
		if s.Extensions, err = unmarshalExtensions(ext); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresAdapter) UpdateSession(ctx context.Context, s *authmodel.Session) error {
	ext, err := marshalExtensions(s.Extensions)
	if err != nil {
		return err
	}
	const q = `
		UPDATE sessions SET expires_at = $2, updated_at = $3, ip_address = $4, user_agent = $5, extensions = $6
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, q, s.ID, s.ExpiresAt, s.UpdatedAt, s.IPAddress, s.UserAgent, ext)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "session", "id", s.ID)
}

func (p *PostgresAdapter) DeleteSession(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "session", "id", id)
}

func (p *PostgresAdapter) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (p *PostgresAdapter) DeleteExpiredSessions(ctx context.Context) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p *PostgresAdapter) CreateAccount(ctx context.Context, a *authmodel.Account) error {
	accessToken, _ := a.AccessToken()
	refreshToken, _ := a.RefreshToken()
	const q = `
		INSERT INTO accounts (id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.db.ExecContext(ctx, q, a.ID, a.UserID, a.Provider, a.ProviderAccountID, accessToken, refreshToken, a.ExpiresAt, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return autherr.DuplicateEntry("account", "provider_account_id", a.ProviderAccountID)
	}
	return err
}

func (p *PostgresAdapter) GetAccount(ctx context.Context, provider, providerAccountID string) (*authmodel.Account, error) {
	const q = `
		SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM accounts WHERE provider = $1 AND provider_account_id = $2
	`
	a := &authmodel.Account{}
	var accessToken, refreshToken sql.NullString
	err := p.db.QueryRowContext(ctx, q, provider, providerAccountID).Scan(
		&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &accessToken, &refreshToken, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, autherr.NotFound("account", "provider_account_id", providerAccountID)
	}
	if err != nil {
		return nil, err
	}
	storedUpdatedAt := a.UpdatedAt
	if accessToken.Valid || refreshToken.Valid {
		a.SetTokens(accessToken.String, refreshToken.String)
		a.UpdatedAt = storedUpdatedAt // SetTokens bumps UpdatedAt; restore the persisted value
	}
	return a, nil
}

func (p *PostgresAdapter) ListAccountsByUserID(ctx context.Context, userID string) ([]*authmodel.Account, error) {
	const q = `
		SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM accounts WHERE user_id = $1 ORDER BY created_at ASC
	`
	rows, err := p.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*authmodel.Account
	for rows.Next() {
		a := &authmodel.Account{}
		var accessToken, refreshToken sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &accessToken, &refreshToken, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if accessToken.Valid || refreshToken.Valid {
			a.SetTokens(accessToken.String, refreshToken.String)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresAdapter) DeleteAccount(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "account", "id", id)
}

// Migrate diffs the target models against CurrentSchema, renders the diff
// with the Postgres dialect runner and executes every statement inside one
// transaction. Safe to call repeatedly: CurrentSchema reports back only
// the fixed tables this adapter knows about, so re-running against an
// already-migrated database is a no-op diff.
func (p *PostgresAdapter) Migrate(ctx context.Context, models []schema.ModelDefinition) error {
	current, err := p.CurrentSchema(ctx)
	if err != nil {
		return err
	}
	diff := schema.Compute(current, schema.SchemaDefinition{Models: models})
	if diff.IsEmpty() {
		return nil
	}
	runner := schema.NewRunner(schema.Postgres)
	migration := runner.GenerateMigration("sync core schema", diff)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range migration.ToSQL() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: apply migration %s: %w", migration.ID, err)
		}
	}
	return tx.Commit()
}

func (p *PostgresAdapter) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	const q = `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`
	err := p.db.QueryRowContext(ctx, q, name).Scan(&exists)
	return exists, err
}

// CurrentSchema reports which of the three fixed core tables already
// exist. It does not introspect column definitions: once a table exists,
// Compute treats it as fully matching the target model, so narrowing
// column changes are never auto-applied (mirrors the additive-only
// migration contract).
func (p *PostgresAdapter) CurrentSchema(ctx context.Context) (schema.SchemaDefinition, error) {
	core := schema.CoreSchema()
	var present []schema.ModelDefinition
	for _, m := range core {
		ok, err := p.TableExists(ctx, m.Name)
		if err != nil {
			return schema.SchemaDefinition{}, err
		}
		if ok {
			present = append(present, m)
		}
	}
	return schema.SchemaDefinition{Models: present}, nil
}

func checkRowsAffected(res sql.Result, entity, field, value string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return autherr.NotFound(entity, field, value)
	}
	return nil
}

// unique_violation per the Postgres error code table (SQLSTATE 23505).
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}
