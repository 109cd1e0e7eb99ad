package store

import (
	"context"
	"time"

	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

const contactColumns = `id, name, email, phone, subject, message, status, priority,
		assigned_to, notes, ip_address, created_at, updated_at`

// ContactRepository handles persistence for contact messages.
type ContactRepository struct {
	db *db.DB
}

func NewContactRepository(conn *db.DB) *ContactRepository {
	return &ContactRepository{db: conn}
}

func scanContact(row scanner) (types.Contact, error) {
	var c types.Contact
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Subject,
		&c.Message,
		&c.Status,
		&c.Priority,
		&c.AssignedTo,
		&c.Notes,
		&c.IPAddress,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *ContactRepository) List(ctx context.Context, filter types.LeadFilter) ([]types.Contact, int, error) {
	cond := leadConditions(filter, `(name ILIKE $%[1]d OR email ILIKE $%[1]d OR subject ILIKE $%[1]d)`)

	countQuery := `SELECT COUNT(1) FROM contacts` + cond.where()
	pageClause, args := cond.page(filter.Offset, filter.Limit)
	listQuery := `SELECT ` + contactColumns + ` FROM contacts` + cond.where() +
		` ORDER BY created_at DESC, id DESC` + pageClause

	var (
		total int
		items []types.Contact
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

		items = make([]types.Contact, 0)
		for rows.Next() {
			c, err := scanContact(rows)
			if err != nil {
				return err
			}
			items = append(items, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *ContactRepository) Get(ctx context.Context, id int) (types.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	var c types.Contact
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		c, err = scanContact(r.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return types.Contact{}, mapError(err)
	}
	return c, nil
}

func (r *ContactRepository) Create(ctx context.Context, c types.Contact) (types.Contact, error) {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	const query = `
		INSERT INTO contacts (name, email, phone, subject, message, status, priority,
			assigned_to, notes, ip_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			c.Name,
			c.Email,
			c.Phone,
			c.Subject,
			c.Message,
			string(c.Status),
			string(c.Priority),
			c.AssignedTo,
			c.Notes,
			c.IPAddress,
			c.CreatedAt,
			c.UpdatedAt,
		).Scan(&c.ID)
	})
	if err != nil {
		return types.Contact{}, mapError(err)
	}
	return c, nil
}

// Update persists the admin-managed fields of a contact.
func (r *ContactRepository) Update(ctx context.Context, c types.Contact) (types.Contact, error) {
	c.UpdatedAt = time.Now()

	const query = `
		UPDATE contacts
		SET status = $1,
			priority = $2,
			assigned_to = $3,
			notes = $4,
			updated_at = $5
		WHERE id = $6`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, string(c.Status), string(c.Priority), c.AssignedTo, c.Notes, c.UpdatedAt, c.ID)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	if err != nil {
		return types.Contact{}, mapError(err)
	}
	return c, nil
}

func (r *ContactRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM contacts WHERE id = $1`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

func (r *ContactRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, `SELECT status, COUNT(1) FROM contacts GROUP BY status`)
}
