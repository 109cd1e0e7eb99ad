package store

import (
	"context"
	"time"

	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

// ActivityRepository handles persistence for the admin audit trail.
type ActivityRepository struct {
	db *db.DB
}

func NewActivityRepository(conn *db.DB) *ActivityRepository {
	return &ActivityRepository{db: conn}
}

func (r *ActivityRepository) Create(ctx context.Context, entry types.ActivityLog) (types.ActivityLog, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO activity_logs (user_id, action, entity_type, entity_id, description, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			entry.UserID,
			entry.Action,
			entry.EntityType,
			entry.EntityID,
			entry.Description,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt,
		).Scan(&entry.ID)
	})
	if err != nil {
		return types.ActivityLog{}, mapError(err)
	}
	return entry, nil
}

// List returns entries newest first, joined with the acting user's email.
func (r *ActivityRepository) List(ctx context.Context, filter types.ActivityFilter) ([]types.ActivityLog, int, error) {
	var cond conditions
	if filter.UserID != nil {
		cond.add(`a.user_id = $%[1]d`, *filter.UserID)
	}
	if filter.Action != "" {
		cond.add(`a.action = $%[1]d`, filter.Action)
	}
	if filter.EntityType != "" {
		cond.add(`a.entity_type = $%[1]d`, filter.EntityType)
	}

	countQuery := `SELECT COUNT(1) FROM activity_logs a` + cond.where()
	pageClause, args := cond.page(filter.Offset, filter.Limit)
	listQuery := `
		SELECT a.id, a.user_id, COALESCE(u.email, ''), a.action, a.entity_type, a.entity_id,
			a.description, a.ip_address, a.user_agent, a.created_at
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id` + cond.where() +
		` ORDER BY a.created_at DESC, a.id DESC` + pageClause

	var (
		total   int
		entries []types.ActivityLog
	)
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		if err := r.db.QueryRowContext(ctx, countQuery, cond.args...).Scan(&total); err != nil {
			return err
		}
		rows, err := r.db.QueryContext(ctx, listQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		entries = make([]types.ActivityLog, 0)
		for rows.Next() {
			var entry types.ActivityLog
			if err := rows.Scan(
				&entry.ID,
				&entry.UserID,
				&entry.UserEmail,
				&entry.Action,
				&entry.EntityType,
				&entry.EntityID,
				&entry.Description,
				&entry.IPAddress,
				&entry.UserAgent,
				&entry.CreatedAt,
			); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
