//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm/logger"
)

// newTestStore поднимает PostgreSQL в контейнере и наполняет справочники
func newTestStore(t *testing.T) (*Store, domain.User, domain.Language, []domain.Category) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:alpine",
		tcpostgres.WithDatabase("content"),
		tcpostgres.WithUsername("content"),
		tcpostgres.WithPassword("content"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := New(dsn, logger.Silent)
	require.NoError(t, err)

	author := domain.User{DisplayName: "Jane Doe", Status: domain.StatusActive}
	require.NoError(t, store.DB().Create(&author).Error)
	lang := domain.Language{Locale: "en", Name: "English", Status: domain.StatusActive}
	require.NoError(t, store.DB().Create(&lang).Error)
	cats := []domain.Category{
		{Name: "Go", Status: domain.StatusActive},
		{Name: "Databases", Status: domain.StatusActive},
		{Name: "Legacy", Status: domain.StatusDisabled},
	}
	require.NoError(t, store.DB().Create(&cats).Error)

	return store, author, lang, cats
}

func TestStore_Integration_SearchAndCategories(t *testing.T) {
	store, author, lang, cats := newTestStore(t)
	ctx := context.Background()

	create := func(title, body string, catIDs ...int64) *domain.Post {
		p, err := store.CreatePost(ctx, &domain.Post{
			Title: title, Body: body, Status: domain.PostStatusApproved,
			AuthorID: author.ID, LanguageID: lang.ID,
		}, catIDs)
		require.NoError(t, err)
		return p
	}

	both := create("Quick fox", "The quick brown fox jumps", cats[0].ID, cats[1].ID)
	onlyGo := create("Slow dog", "A lazy dog sleeps", cats[0].ID)
	legacy := create("Old news", "Nothing here", cats[2].ID)

	require.Len(t, both.Categories, 2)
	assert.Equal(t, "Jane Doe", both.Author.DisplayName)
	assert.Empty(t, legacy.Categories)

	posts, total, err := store.SearchPosts(ctx, storage.PostQuery{
		Where: []storage.Predicate{storage.CategoryMatch{IDs: []int64{cats[0].ID, cats[1].ID}, All: true}},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, both.ID, posts[0].ID)

	posts, _, err = store.SearchPosts(ctx, storage.PostQuery{Where: []storage.Predicate{storage.Uncategorized{}}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, legacy.ID, posts[0].ID)

	rel := storage.TextRelevance{Target: storage.TargetTitleBody, Query: "fox"}
	posts, total, err = store.SearchPosts(ctx, storage.PostQuery{
		Where: []storage.Predicate{rel}, RankBy: []storage.TextRelevance{rel}, Limit: 10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, both.ID, posts[0].ID)

	posts, _, err = store.SearchPosts(ctx, storage.PostQuery{
		Where: []storage.Predicate{storage.TextRelevance{Target: storage.TargetAuthorName, Mode: storage.ModeBooleanPrefix, Query: "ja do"}},
		Sort:  storage.SortDateAsc,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, both.ID, posts[0].ID)
	assert.Equal(t, onlyGo.ID, posts[1].ID)

	_, err = store.UpdatePost(ctx, &domain.Post{ID: onlyGo.ID, Title: "Changed", Body: "x", LanguageID: lang.ID}, []int64{cats[1].ID, 9999})
	var missing *storage.MissingCategoriesError
	require.ErrorAs(t, err, &missing)
	unchanged, err := store.GetPostByID(ctx, onlyGo.ID)
	require.NoError(t, err)
	assert.Equal(t, "Slow dog", unchanged.Title)
	require.Len(t, unchanged.Categories, 1)
	assert.Equal(t, cats[0].ID, unchanged.Categories[0].ID)
}

func TestStore_Integration_Comments(t *testing.T) {
	store, author, lang, _ := newTestStore(t)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, &domain.Post{
		Title: "Thread", Body: "Body", Status: domain.PostStatusApproved,
		AuthorID: author.ID, LanguageID: lang.ID,
	}, nil)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 3; i++ {
		c, err := store.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: author.ID, Content: "top"})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	reply, err := store.CreateComment(ctx, &domain.Comment{PostID: post.ID, ParentID: &ids[0], AuthorID: author.ID, Content: "reply"})
	require.NoError(t, err)

	page, err := store.ListComments(ctx, storage.CommentQuery{PostID: post.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	require.NotNil(t, page[0].Author)

	counts, err := store.CountRepliesByParentIDs(ctx, ids)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[ids[0]])

	require.NoError(t, store.DeleteComment(ctx, ids[0]))
	_, err = store.GetCommentByID(ctx, reply.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
