package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/slug"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func statusPtr(s types.PostStatus) *types.PostStatus { return &s }

func newBlogFixture() (*BlogService, *fakeBlogRepo, *time.Time) {
	repo := newFakeBlogRepo()
	svc := NewBlogService(repo, logging.Discard())
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, repo, &now
}

func validPost() PostInput {
	return PostInput{
		Title:     strPtr("Zero Trust: A Primer"),
		TitleAr:   strPtr("مقدمة في الثقة المعدومة"),
		Content:   strPtr("<p>Never trust, always verify.</p>"),
		ContentAr: strPtr("<p>لا تثق أبدا</p>"),
	}
}

func TestBlogCreateGeneratesSlug(t *testing.T) {
	svc, _, _ := newBlogFixture()

	post, err := svc.Create(context.Background(), 3, validPost())
	require.NoError(t, err)
	assert.Equal(t, "zero-trust-a-primer", post.Slug)
	assert.Equal(t, types.PostDraft, post.Status)
	assert.Nil(t, post.PublishedAt)
	require.NotNil(t, post.AuthorID)
	assert.Equal(t, 3, *post.AuthorID)
	assert.Equal(t, []string{}, post.Tags)
}

func TestBlogCreateArabicOnlyTitleSlug(t *testing.T) {
	svc, _, _ := newBlogFixture()
	in := validPost()
	in.Title = strPtr("؟؟")

	post, err := svc.Create(context.Background(), 0, in)
	require.NoError(t, err)
	assert.NotEmpty(t, post.Slug)
	assert.True(t, slug.IsValid(post.Slug), post.Slug)
	assert.Nil(t, post.AuthorID)
}

func TestBlogCreateRequiresBothTitlesAndContent(t *testing.T) {
	svc, _, _ := newBlogFixture()

	_, err := svc.Create(context.Background(), 1, PostInput{Title: strPtr("Only English")})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title_ar")
	assert.Contains(t, verr.Fields, "content")
	assert.NotContains(t, verr.Fields, "title")
}

func TestBlogSlugConflict(t *testing.T) {
	svc, _, _ := newBlogFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, validPost())
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, validPost())
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "slug already exists", conflict.Message)

	in := validPost()
	in.Slug = strPtr("zero-trust-a-primer")
	_, err = svc.Create(ctx, 1, in)
	assert.ErrorIs(t, err, store.ErrConflict)

	in.Slug = strPtr("Not A Slug")
	_, err = svc.Create(ctx, 1, in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "slug")

	in.Slug = strPtr("zero-trust-part-2")
	post, err := svc.Create(ctx, 1, in)
	require.NoError(t, err)
	assert.Equal(t, "zero-trust-part-2", post.Slug)
}

func TestBlogUpdateKeepsOwnSlug(t *testing.T) {
	svc, _, _ := newBlogFixture()
	ctx := context.Background()
	post, err := svc.Create(ctx, 1, validPost())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, post.ID, PostInput{
		Slug:  strPtr(post.Slug),
		Title: strPtr("Zero Trust, Revised"),
	})
	require.NoError(t, err)
	assert.Equal(t, post.Slug, updated.Slug)
	assert.Equal(t, "Zero Trust, Revised", updated.Title)

	_, err = svc.Update(ctx, post.ID, PostInput{Title: strPtr("  ")})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")

	_, err = svc.Update(ctx, 999, PostInput{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBlogPublishedAtTransitions(t *testing.T) {
	svc, _, clock := newBlogFixture()
	ctx := context.Background()
	first := *clock

	in := validPost()
	in.Status = statusPtr(types.PostPublished)
	post, err := svc.Create(ctx, 1, in)
	require.NoError(t, err)
	require.NotNil(t, post.PublishedAt)
	assert.Equal(t, first, *post.PublishedAt)

	*clock = first.Add(24 * time.Hour)
	post, err = svc.Update(ctx, post.ID, PostInput{Status: statusPtr(types.PostDraft)})
	require.NoError(t, err)
	require.NotNil(t, post.PublishedAt)

	*clock = first.Add(48 * time.Hour)
	post, err = svc.Update(ctx, post.ID, PostInput{Status: statusPtr(types.PostPublished)})
	require.NoError(t, err)
	assert.Equal(t, first, *post.PublishedAt)

	draft, err := svc.Create(ctx, 1, PostInput{
		Title:   strPtr("Later"),
		TitleAr: strPtr("لاحقا"),
		Content: strPtr("body"),
	})
	require.NoError(t, err)
	assert.Nil(t, draft.PublishedAt)
	draft, err = svc.Update(ctx, draft.ID, PostInput{Status: statusPtr(types.PostPublished)})
	require.NoError(t, err)
	require.NotNil(t, draft.PublishedAt)
	assert.Equal(t, first.Add(48*time.Hour), *draft.PublishedAt)

	_, err = svc.Update(ctx, draft.ID, PostInput{Status: statusPtr("deleted")})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "status")
}

func TestBlogSanitizesContent(t *testing.T) {
	svc, _, _ := newBlogFixture()
	in := validPost()
	in.Title = strPtr("<script>alert(1)</script>Threat Intel")
	in.Content = strPtr(`<p onclick="x()">Hi <a href="https://example.com">link</a></p><script>alert(1)</script>`)
	in.Tags = &[]string{"OSINT", "osint", " ", "<b>Red Team</b>"}

	post, err := svc.Create(context.Background(), 1, in)
	require.NoError(t, err)
	assert.Equal(t, "Threat Intel", post.Title)
	assert.NotContains(t, post.Content, "script")
	assert.NotContains(t, post.Content, "onclick")
	assert.Contains(t, post.Content, "nofollow")
	assert.Equal(t, []string{"OSINT", "Red Team"}, post.Tags)
}

func TestBlogTagLimits(t *testing.T) {
	tags := make([]string, 21)
	for i := range tags {
		tags[i] = string(rune('a'+i)) + "-tag"
	}
	_, err := cleanTags(tags)
	assert.Error(t, err)

	_, err = cleanTags([]string{strings.Repeat("x", 51)})
	assert.Error(t, err)

	tags, err = cleanTags([]string{strings.Repeat("x", 50)})
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestBlogGetPublished(t *testing.T) {
	svc, _, _ := newBlogFixture()
	ctx := context.Background()

	draft, err := svc.Create(ctx, 1, validPost())
	require.NoError(t, err)
	_, err = svc.GetPublished(ctx, draft.Slug)
	assert.True(t, IsNotFound(err))

	in := validPost()
	in.Slug = strPtr("live-post")
	in.Status = statusPtr(types.PostPublished)
	_, err = svc.Create(ctx, 1, in)
	require.NoError(t, err)

	got, err := svc.GetPublished(ctx, "live-post")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)
	got, err = svc.GetPublished(ctx, "live-post")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)

	_, err = svc.GetPublished(ctx, "missing")
	assert.True(t, IsNotFound(err))

	posts, total, err := svc.ListPublished(ctx, types.BlogFilter{Status: types.PostDraft})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "live-post", posts[0].Slug)
}
