package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/types"
)

const blogColumns = `id, slug, title, title_ar, excerpt, excerpt_ar, content, content_ar,
		cover_image, category, tags, status, author_id, views, published_at, created_at, updated_at`

// BlogRepository handles persistence for blog posts.
type BlogRepository struct {
	db *db.DB
}

func NewBlogRepository(conn *db.DB) *BlogRepository {
	return &BlogRepository{db: conn}
}

func scanPost(row scanner) (types.BlogPost, error) {
	var post types.BlogPost
	var tagsJSON []byte
	if err := row.Scan(
		&post.ID,
		&post.Slug,
		&post.Title,
		&post.TitleAr,
		&post.Excerpt,
		&post.ExcerptAr,
		&post.Content,
		&post.ContentAr,
		&post.CoverImage,
		&post.Category,
		&tagsJSON,
		&post.Status,
		&post.AuthorID,
		&post.Views,
		&post.PublishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return types.BlogPost{}, err
	}

	_ = json.Unmarshal(tagsJSON, &post.Tags)
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return post, nil
}

func (r *BlogRepository) List(ctx context.Context, filter types.BlogFilter) ([]types.BlogPost, int, error) {
	var cond conditions
	if filter.Status != "" {
		cond.add(`status = $%[1]d`, string(filter.Status))
	}
	if filter.Category != "" {
		cond.add(`category = $%[1]d`, filter.Category)
	}
	if filter.Search != "" {
		cond.add(`(title ILIKE $%[1]d OR title_ar ILIKE $%[1]d OR excerpt ILIKE $%[1]d OR excerpt_ar ILIKE $%[1]d)`, likePattern(filter.Search))
	}

	countQuery := `SELECT COUNT(1) FROM blog_posts` + cond.where()
	pageClause, args := cond.page(filter.Offset, filter.Limit)
	listQuery := `SELECT ` + blogColumns + ` FROM blog_posts` + cond.where() +
		` ORDER BY COALESCE(published_at, created_at) DESC, id DESC` + pageClause

	var (
		total int
		posts []types.BlogPost
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

		posts = make([]types.BlogPost, 0)
		for rows.Next() {
			post, err := scanPost(rows)
			if err != nil {
				return err
			}
			posts = append(posts, post)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *BlogRepository) Get(ctx context.Context, id int) (types.BlogPost, error) {
	query := `SELECT ` + blogColumns + ` FROM blog_posts WHERE id = $1`
	var post types.BlogPost
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		post, err = scanPost(r.db.QueryRowContext(ctx, query, id))
		return err
	})
	if err != nil {
		return types.BlogPost{}, mapError(err)
	}
	return post, nil
}

func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (types.BlogPost, error) {
	query := `SELECT ` + blogColumns + ` FROM blog_posts WHERE slug = $1`
	var post types.BlogPost
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		var err error
		post, err = scanPost(r.db.QueryRowContext(ctx, query, slug))
		return err
	})
	if err != nil {
		return types.BlogPost{}, mapError(err)
	}
	return post, nil
}

// SlugExists reports whether a post other than excludeID uses slug.
func (r *BlogRepository) SlugExists(ctx context.Context, slug string, excludeID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM blog_posts WHERE slug = $1 AND id <> $2)`
	var exists bool
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, query, slug, excludeID).Scan(&exists)
	})
	return exists, err
}

func (r *BlogRepository) Create(ctx context.Context, post types.BlogPost) (types.BlogPost, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	tagsJSON, err := json.Marshal(post.Tags)
	if err != nil {
		return types.BlogPost{}, err
	}

	const query = `
		INSERT INTO blog_posts (slug, title, title_ar, excerpt, excerpt_ar, content, content_ar,
			cover_image, category, tags, status, author_id, views, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $14, $15)
		RETURNING id`
	err = r.db.Retry(ctx, func(ctx context.Context) error {
		return r.db.QueryRowContext(
			ctx,
			query,
			post.Slug,
			post.Title,
			post.TitleAr,
			post.Excerpt,
			post.ExcerptAr,
			post.Content,
			post.ContentAr,
			post.CoverImage,
			post.Category,
			tagsJSON,
			string(post.Status),
			post.AuthorID,
			post.PublishedAt,
			post.CreatedAt,
			post.UpdatedAt,
		).Scan(&post.ID)
	})
	if err != nil {
		return types.BlogPost{}, mapError(err)
	}
	return post, nil
}

func (r *BlogRepository) Update(ctx context.Context, post types.BlogPost) (types.BlogPost, error) {
	post.UpdatedAt = time.Now()

	tagsJSON, err := json.Marshal(post.Tags)
	if err != nil {
		return types.BlogPost{}, err
	}

	const query = `
		UPDATE blog_posts
		SET slug = $1,
			title = $2,
			title_ar = $3,
			excerpt = $4,
			excerpt_ar = $5,
			content = $6,
			content_ar = $7,
			cover_image = $8,
			category = $9,
			tags = $10,
			status = $11,
			published_at = $12,
			updated_at = $13
		WHERE id = $14`
	err = r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(
			ctx,
			query,
			post.Slug,
			post.Title,
			post.TitleAr,
			post.Excerpt,
			post.ExcerptAr,
			post.Content,
			post.ContentAr,
			post.CoverImage,
			post.Category,
			tagsJSON,
			string(post.Status),
			post.PublishedAt,
			post.UpdatedAt,
			post.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	if err != nil {
		return types.BlogPost{}, mapError(err)
	}
	return post, nil
}

func (r *BlogRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM blog_posts WHERE id = $1`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return mapError(err)
}

func (r *BlogRepository) IncrementViews(ctx context.Context, id int) error {
	const query = `UPDATE blog_posts SET views = views + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *BlogRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, r.db, `SELECT status, COUNT(1) FROM blog_posts GROUP BY status`)
}

func countByStatus(ctx context.Context, conn *db.DB, query string) (map[string]int, error) {
	counts := make(map[string]int)
	err := conn.Retry(ctx, func(ctx context.Context) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			counts[status] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
