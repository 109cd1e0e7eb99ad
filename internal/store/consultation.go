package store

import (
	"context"
	"time"

	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

const consultationColumns = `id, name, email, phone, company, service, message, preferred_date,
		status, priority, assigned_to, notes, ip_address, created_at, updated_at`

// ConsultationRepository handles persistence for consultation requests.
type ConsultationRepository struct {
	db *db.DB
}

func NewConsultationRepository(conn *db.DB) *ConsultationRepository {
	return &ConsultationRepository{db: conn}
}

func scanConsultation(row scanner) (types.Consultation, error) {
	var c types.Consultation
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Company,
		&c.Service,
		&c.Message,
		&c.PreferredDate,
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

// leadConditions builds the WHERE clause shared by consultation and contact listings.
func leadConditions(filter types.LeadFilter, searchColumns string) conditions {
	var cond conditions
	if filter.Status != "" {
		cond.add(`status = $%[1]d`, filter.Status)
	}
	if filter.Priority != "" {
		cond.add(`priority = $%[1]d`, string(filter.Priority))
	}
	if filter.AssignedTo != nil {
		cond.add(`assigned_to = $%[1]d`, *filter.AssignedTo)
	}
	if filter.Search != "" {
		cond.add(searchColumns, likePattern(filter.Search))
	}
	return cond
}

func (r *ConsultationRepository) List(ctx context.Context, filter types.LeadFilter) ([]types.Consultation, int, error) {
	cond := leadConditions(filter, `(name ILIKE $%[1]d OR email ILIKE $%[1]d OR company ILIKE $%[1]d OR service ILIKE $%[1]d)`)

	countQuery := `SELECT COUNT(1) FROM consultations` + cond.where()
	pageClause, args := cond.page(filter.Offset, filter.Limit)
	listQuery := `SELECT ` + consultationColumns + ` FROM consultations` + cond.where() +
		` ORDER BY created_at DESC, id DESC` + pageClause

	var (
		total int
		items []types.Consultation
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

		items = make([]types.Consultation, 0)
		for rows.Next() {
			c, err := scanConsultation(rows)
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

func (r *ConsultationRepository) Get(ctx context.Context, id int) (types.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`
	var c types.Consultation
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		c, err = scanConsultation(r.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return types.Consultation{}, mapError(err)
	}
	return c, nil
}

func (r *ConsultationRepository) Create(ctx context.Context, c types.Consultation) (types.Consultation, error) {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	const query = `
		INSERT INTO consultations (name, email, phone, company, service, message, preferred_date,
			status, priority, assigned_to, notes, ip_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			c.Name,
			c.Email,
			c.Phone,
			c.Company,
			c.Service,
			c.Message,
			c.PreferredDate,
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
		return types.Consultation{}, mapError(err)
	}
	return c, nil
}

// Update persists the admin-managed fields of a consultation.
func (r *ConsultationRepository) Update(ctx context.Context, c types.Consultation) (types.Consultation, error) {
	c.UpdatedAt = time.Now()

	const query = `
		UPDATE consultations
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
		return types.Consultation{}, mapError(err)
	}
	return c, nil
}

func (r *ConsultationRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM consultations WHERE id = $1`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

func (r *ConsultationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, `SELECT status, COUNT(1) FROM consultations GROUP BY status`)
}
