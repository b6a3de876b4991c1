package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/hbgate/internal/domain/session"
)

var _ session.Repo = (*SessionRepo)(nil)

type SessionRepo struct{ db *DB }

func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

const (
	qSessionFindActive = `
SELECT id, user_id, email, display_name, roles, token_hash, created_at, expires_at, revoked
FROM host_sessions
WHERE token_hash = $1 AND revoked = FALSE AND expires_at > NOW()
LIMIT 1;
`
	qSessionCreate = `
INSERT INTO host_sessions(user_id, email, display_name, roles, token_hash, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at;
`
	qSessionRevoke = `
UPDATE host_sessions SET revoked = TRUE WHERE token_hash = $1;
`
)

func (r *SessionRepo) FindActive(ctx context.Context, tokenHash string) (*session.Session, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s session.Session
	if err := r.db.Pool.QueryRow(ctx, qSessionFindActive, tokenHash).Scan(
		&s.ID, &s.UserID, &s.Email, &s.DisplayName, &s.Roles, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt, &s.Revoked,
	); err != nil {
		if isNoRows(err) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepo) Create(ctx context.Context, s *session.Session) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	if err := r.db.Pool.QueryRow(ctx, qSessionCreate,
		s.UserID, s.Email, s.DisplayName, roles, s.TokenHash, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qSessionRevoke, tokenHash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
