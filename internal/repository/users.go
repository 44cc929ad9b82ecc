package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/domain"
)

const userColumns = `id, email, password_hash, name, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const createUser = `
INSERT INTO users (email, password_hash, name)
VALUES ($1, $2, $3)
RETURNING ` + userColumns

// CreateUser inserts a new user. A duplicate email violates the unique
// constraint; the service translates that into a conflict error.
func (q *Queries) CreateUser(ctx context.Context, email, passwordHash, name string) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, createUser, email, passwordHash, name))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

// GetUserByEmail returns the user with the given email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

// GetUserByID returns the user with the given ID.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const createSession = `
INSERT INTO sessions (user_id, token_hash, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, token_hash, expires_at, created_at`

// CreateSession stores a hashed session token for a user.
func (q *Queries) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (domain.Session, error) {
	var s domain.Session
	err := q.db.QueryRowContext(ctx, createSession, userID, tokenHash, expiresAt).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const getUserBySessionTokenHash = `
SELECT u.id, u.email, u.password_hash, u.name, u.created_at, u.updated_at
FROM sessions s
JOIN users u ON u.id = s.user_id
WHERE s.token_hash = $1 AND s.expires_at > now()`

// GetUserBySessionTokenHash resolves a live session to its user.
// Returns sql.ErrNoRows for unknown or expired tokens.
func (q *Queries) GetUserBySessionTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserBySessionTokenHash, tokenHash))
}

const deleteSessionByTokenHash = `DELETE FROM sessions WHERE token_hash = $1`

// DeleteSessionByTokenHash removes a session (logout). Idempotent.
func (q *Queries) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionByTokenHash, tokenHash)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= now()`

// DeleteExpiredSessions removes expired sessions. Called periodically.
func (q *Queries) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
