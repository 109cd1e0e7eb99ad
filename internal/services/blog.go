package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shieldline/siteapi/internal/slug"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
)

const (
	maxTags      = 20
	maxTagLength = 50
)

// BlogRepository defines persistence operations for blog posts.
type BlogRepository interface {
	List(ctx context.Context, filter types.BlogFilter) ([]types.BlogPost, int, error)
	Get(ctx context.Context, id int) (types.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (types.BlogPost, error)
	SlugExists(ctx context.Context, slug string, excludeID int) (bool, error)
	Create(ctx context.Context, post types.BlogPost) (types.BlogPost, error)
	Update(ctx context.Context, post types.BlogPost) (types.BlogPost, error)
	Delete(ctx context.Context, id int) error
	IncrementViews(ctx context.Context, id int) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// PostInput creates or partially updates a post. Nil fields are left
// unchanged on update.
type PostInput struct {
	Slug       *string           `json:"slug" validate:"omitempty,max=200"`
	Title      *string           `json:"title" validate:"omitempty,max=255"`
	TitleAr    *string           `json:"title_ar" validate:"omitempty,max=255"`
	Excerpt    *string           `json:"excerpt" validate:"omitempty,max=1000"`
	ExcerptAr  *string           `json:"excerpt_ar" validate:"omitempty,max=1000"`
	Content    *string           `json:"content"`
	ContentAr  *string           `json:"content_ar"`
	CoverImage *string           `json:"cover_image" validate:"omitempty,max=2048"`
	Category   *string           `json:"category" validate:"omitempty,max=100"`
	Tags       *[]string         `json:"tags"`
	Status     *types.PostStatus `json:"status"`
}

// BlogService encapsulates blog use-cases.
type BlogService struct {
	repo   BlogRepository
	policy *bluemonday.Policy
	logger *slog.Logger
	now    func() time.Time
}

func NewBlogService(repo BlogRepository, logger *slog.Logger) *BlogService {
	if logger == nil {
		logger = slog.Default()
	}
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &BlogService{
		repo:   repo,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// List returns posts in any status for the admin panel.
func (s *BlogService) List(ctx context.Context, filter types.BlogFilter) ([]types.BlogPost, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *BlogService) Get(ctx context.Context, id int) (types.BlogPost, error) {
	return s.repo.Get(ctx, id)
}

// ListPublished returns published posts only, whatever status the filter asks for.
func (s *BlogService) ListPublished(ctx context.Context, filter types.BlogFilter) ([]types.BlogPost, int, error) {
	filter.Status = types.PostPublished
	return s.repo.List(ctx, filter)
}

// GetPublished returns a published post by slug and counts the view.
// Drafts and archived posts are reported as not found.
func (s *BlogService) GetPublished(ctx context.Context, postSlug string) (types.BlogPost, error) {
	post, err := s.repo.GetBySlug(ctx, postSlug)
	if err != nil {
		return types.BlogPost{}, err
	}
	if post.Status != types.PostPublished {
		return types.BlogPost{}, store.ErrNotFound
	}
	if err := s.repo.IncrementViews(ctx, post.ID); err != nil {
		s.logger.Warn("increment post views", "post_id", post.ID, "error", err)
	} else {
		post.Views++
	}
	return post, nil
}

func (s *BlogService) Create(ctx context.Context, authorID int, in PostInput) (types.BlogPost, error) {
	post := types.BlogPost{
		Status: types.PostDraft,
		Tags:   []string{},
	}
	if authorID > 0 {
		post.AuthorID = &authorID
	}

	verr := &ValidationError{}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		verr.Add("title", "is required")
	}
	if in.TitleAr == nil || strings.TrimSpace(*in.TitleAr) == "" {
		verr.Add("title_ar", "is required")
	}
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		verr.Add("content", "is required")
	}
	if err := verr.Err(); err != nil {
		return types.BlogPost{}, err
	}

	if err := s.apply(&post, in); err != nil {
		return types.BlogPost{}, err
	}
	if err := s.assignSlug(ctx, &post, in.Slug); err != nil {
		return types.BlogPost{}, err
	}
	if post.Status == types.PostPublished {
		now := s.now()
		post.PublishedAt = &now
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return types.BlogPost{}, conflictOr(err, "slug already exists")
	}
	return created, nil
}

func (s *BlogService) Update(ctx context.Context, id int, in PostInput) (types.BlogPost, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.BlogPost{}, err
	}

	if err := s.apply(&post, in); err != nil {
		return types.BlogPost{}, err
	}

	verr := &ValidationError{}
	if strings.TrimSpace(post.Title) == "" {
		verr.Add("title", "is required")
	}
	if strings.TrimSpace(post.TitleAr) == "" {
		verr.Add("title_ar", "is required")
	}
	if strings.TrimSpace(post.Content) == "" {
		verr.Add("content", "is required")
	}
	if err := verr.Err(); err != nil {
		return types.BlogPost{}, err
	}

	if in.Slug != nil && *in.Slug != post.Slug {
		if err := s.assignSlug(ctx, &post, in.Slug); err != nil {
			return types.BlogPost{}, err
		}
	}
	s.stampPublished(&post)

	updated, err := s.repo.Update(ctx, post)
	if err != nil {
		return types.BlogPost{}, conflictOr(err, "slug already exists")
	}
	return updated, nil
}

func (s *BlogService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// stampPublished sets published_at the first time a post is published.
// A post that was published before keeps its original date, including
// after being unpublished and republished.
func (s *BlogService) stampPublished(post *types.BlogPost) {
	if post.Status == types.PostPublished && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}
}

// apply copies the non-nil input fields into post, cleaning them first.
func (s *BlogService) apply(post *types.BlogPost, in PostInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.Status != nil && !in.Status.Valid() {
		return fieldError("status", "must be one of: draft, published, archived")
	}

	if in.Title != nil {
		post.Title = plainText(*in.Title)
	}
	if in.TitleAr != nil {
		post.TitleAr = plainText(*in.TitleAr)
	}
	if in.Excerpt != nil {
		post.Excerpt = plainText(*in.Excerpt)
	}
	if in.ExcerptAr != nil {
		post.ExcerptAr = plainText(*in.ExcerptAr)
	}
	if in.Content != nil {
		post.Content = strings.TrimSpace(s.policy.Sanitize(*in.Content))
	}
	if in.ContentAr != nil {
		post.ContentAr = strings.TrimSpace(s.policy.Sanitize(*in.ContentAr))
	}
	if in.CoverImage != nil {
		post.CoverImage = strings.TrimSpace(*in.CoverImage)
	}
	if in.Category != nil {
		post.Category = plainText(*in.Category)
	}
	if in.Tags != nil {
		tags, err := cleanTags(*in.Tags)
		if err != nil {
			return err
		}
		post.Tags = tags
	}
	if in.Status != nil {
		post.Status = *in.Status
	}
	return nil
}

// assignSlug sets post.Slug from requested, or from the title when
// requested is empty, and checks it is free.
func (s *BlogService) assignSlug(ctx context.Context, post *types.BlogPost, requested *string) error {
	var candidate string
	if requested != nil && strings.TrimSpace(*requested) != "" {
		candidate = strings.TrimSpace(*requested)
		if !slug.IsValid(candidate) {
			return fieldError("slug", "must contain only lowercase letters, digits and single hyphens")
		}
	} else {
		candidate = slug.Make(post.Title)
		if candidate == "" {
			candidate = slug.Make(post.TitleAr)
		}
		if candidate == "" {
			return fieldError("slug", "could not be generated from the title")
		}
	}

	exists, err := s.repo.SlugExists(ctx, candidate, post.ID)
	if err != nil {
		return err
	}
	if exists {
		return &ConflictError{Message: "slug already exists"}
	}
	post.Slug = candidate
	return nil
}

func cleanTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = plainText(tag)
		if tag == "" {
			continue
		}
		if len([]rune(tag)) > maxTagLength {
			return nil, fieldError("tags", "each tag must be at most 50 characters")
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	if len(out) > maxTags {
		return nil, fieldError("tags", "at most 20 tags are allowed")
	}
	return out, nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
