package types

import "time"

// PostStatus is the publication state of a blog post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	}
	return false
}

// Supported content languages.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

// BlogPost is a bilingual article. English fields carry no suffix,
// Arabic fields carry the Ar suffix.
type BlogPost struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Slug is the unique URL identifier of the post.
	Slug string `json:"slug" db:"slug"`

	// Title is the English title.
	Title string `json:"title" db:"title"`

	// TitleAr is the Arabic title.
	TitleAr string `json:"title_ar" db:"title_ar"`

	// Excerpt is a short English summary shown in listings.
	Excerpt string `json:"excerpt" db:"excerpt"`

	// ExcerptAr is a short Arabic summary shown in listings.
	ExcerptAr string `json:"excerpt_ar" db:"excerpt_ar"`

	// Content is the sanitized English HTML body.
	Content string `json:"content" db:"content"`

	// ContentAr is the sanitized Arabic HTML body.
	ContentAr string `json:"content_ar" db:"content_ar"`

	// CoverImage is the public URL of the cover image, if any.
	CoverImage string `json:"cover_image" db:"cover_image"`

	// Category groups posts for filtering.
	Category string `json:"category" db:"category"`

	// Tags are free-form labels.
	Tags []string `json:"tags" db:"tags"`

	// Status is the publication state.
	Status PostStatus `json:"status" db:"status"`

	// AuthorID references the user who created the post.
	AuthorID *int `json:"author_id,omitempty" db:"author_id"`

	// Views counts public reads of the post.
	Views int `json:"views" db:"views"`

	// PublishedAt is set on the first transition to published and kept afterwards.
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LocalizedPost is the public, single-language view of a BlogPost.
type LocalizedPost struct {
	ID          int        `json:"id"`
	Slug        string     `json:"slug"`
	Lang        string     `json:"lang"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content,omitempty"`
	CoverImage  string     `json:"cover_image"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Views       int        `json:"views"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Localize projects the post into lang. Empty Arabic fields fall back to
// their English counterparts.
func (p BlogPost) Localize(lang string, withContent bool) LocalizedPost {
	out := LocalizedPost{
		ID:          p.ID,
		Slug:        p.Slug,
		Lang:        LangEnglish,
		Title:       p.Title,
		Excerpt:     p.Excerpt,
		CoverImage:  p.CoverImage,
		Category:    p.Category,
		Tags:        p.Tags,
		Views:       p.Views,
		PublishedAt: p.PublishedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if withContent {
		out.Content = p.Content
	}
	if lang != LangArabic {
		return out
	}

	out.Lang = LangArabic
	out.Title = fallback(p.TitleAr, p.Title)
	out.Excerpt = fallback(p.ExcerptAr, p.Excerpt)
	if withContent {
		out.Content = fallback(p.ContentAr, p.Content)
	}
	return out
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// BlogFilter narrows blog listings.
type BlogFilter struct {
	Status   PostStatus
	Category string
	Search   string
	Offset   int
	Limit    int
}
