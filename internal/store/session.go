package store

import (
	"context"
	"time"

	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

// SessionRepository records issued login tokens.
type SessionRepository struct {
	db *db.DB
}

func NewSessionRepository(conn *db.DB) *SessionRepository {
	return &SessionRepository{db: conn}
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	session.CreatedAt = time.Now()

	const query = `
		INSERT INTO sessions (user_id, token_hash, ip_address, user_agent, device, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			session.UserID,
			session.TokenHash,
			session.IPAddress,
			session.UserAgent,
			session.Device,
			session.ExpiresAt,
			session.CreatedAt,
		).Scan(&session.ID)
	})
	if err != nil {
		return types.Session{}, mapError(err)
	}
	return session, nil
}

func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	const query = `DELETE FROM sessions WHERE token_hash = $1`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, tokenHash)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

// DeleteExpired removes sessions whose token expired before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at < $1`
	var removed int64
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, now)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	return removed, err
}
