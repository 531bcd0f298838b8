package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *Store
	author *domain.User
	lang   *domain.Language
	catA   *domain.Category
	catB   *domain.Category
}

// newTestStore создает хранилище с автором, языком и двумя категориями
func newTestStore(t *testing.T) fixture {
	t.Helper()
	store := New()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return fixture{
		store:  store,
		author: store.AddUser(domain.User{DisplayName: "Jane Doe"}),
		lang:   store.AddLanguage(domain.Language{Locale: "en", Name: "English"}),
		catA:   store.AddCategory(domain.Category{Name: "Go"}),
		catB:   store.AddCategory(domain.Category{Name: "Databases"}),
	}
}

func (f fixture) post(t *testing.T, title, body string, status domain.PostStatus, cats ...int64) *domain.Post {
	t.Helper()
	p, err := f.store.CreatePost(context.Background(), &domain.Post{
		Title:      title,
		Body:       body,
		Status:     status,
		AuthorID:   f.author.ID,
		LanguageID: f.lang.ID,
	}, cats)
	require.NoError(t, err)
	return p
}

func TestStore_CreateAndGetPost(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()

	post := f.post(t, "Hello", "World", domain.PostStatusApproved, f.catA.ID)

	retrieved, err := f.store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", retrieved.Title)
	require.NotNil(t, retrieved.Author)
	assert.Equal(t, "Jane Doe", retrieved.Author.DisplayName)
	require.NotNil(t, retrieved.Language)
	assert.Equal(t, "en", retrieved.Language.Locale)
	require.Len(t, retrieved.Categories, 1)
	assert.Equal(t, f.catA.ID, retrieved.Categories[0].ID)

	_, err = f.store.GetPostByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_CreatePost_UnknownCategory(t *testing.T) {
	f := newTestStore(t)

	_, err := f.store.CreatePost(context.Background(), &domain.Post{
		Title: "x", Body: "y", AuthorID: f.author.ID, LanguageID: f.lang.ID,
	}, []int64{f.catA.ID, 42})
	require.Error(t, err)

	var missing *storage.MissingCategoriesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []int64{42}, missing.IDs)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, total, err := f.store.SearchPosts(context.Background(), storage.PostQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStore_UpdatePost_CategoriesAtomic(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	post := f.post(t, "Old", "Body", domain.PostStatusApproved, f.catA.ID)

	_, err := f.store.UpdatePost(ctx, &domain.Post{ID: post.ID, Title: "New", Body: "Body", LanguageID: f.lang.ID}, []int64{f.catB.ID, 77})
	require.Error(t, err)

	unchanged, err := f.store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old", unchanged.Title)
	require.Len(t, unchanged.Categories, 1)
	assert.Equal(t, f.catA.ID, unchanged.Categories[0].ID)

	updated, err := f.store.UpdatePost(ctx, &domain.Post{ID: post.ID, Title: "New", Body: "Body", LanguageID: f.lang.ID, Status: domain.PostStatusPendingReview}, []int64{f.catB.ID, f.catB.ID})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	require.Len(t, updated.Categories, 1)
	assert.Equal(t, f.catB.ID, updated.Categories[0].ID)
}

func TestStore_SearchPosts_CategoryMatch(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	disabled := f.store.AddCategory(domain.Category{Name: "Old", Status: domain.StatusDisabled})

	both := f.post(t, "both", "", domain.PostStatusApproved, f.catA.ID, f.catB.ID)
	onlyA := f.post(t, "onlyA", "", domain.PostStatusApproved, f.catA.ID)
	none := f.post(t, "none", "", domain.PostStatusApproved)
	onlyDisabled := f.post(t, "disabled", "", domain.PostStatusApproved, disabled.ID)

	ids := func(q storage.PostQuery) []int64 {
		posts, _, err := f.store.SearchPosts(ctx, q)
		require.NoError(t, err)
		out := make([]int64, len(posts))
		for i, p := range posts {
			out[i] = p.ID
		}
		return out
	}

	assert.ElementsMatch(t, []int64{both.ID, onlyA.ID},
		ids(storage.PostQuery{Where: []storage.Predicate{storage.CategoryMatch{IDs: []int64{f.catA.ID, f.catB.ID}}}}))
	assert.ElementsMatch(t, []int64{both.ID},
		ids(storage.PostQuery{Where: []storage.Predicate{storage.CategoryMatch{IDs: []int64{f.catA.ID, f.catB.ID}, All: true}}}))
	assert.ElementsMatch(t, []int64{none.ID, onlyDisabled.ID},
		ids(storage.PostQuery{Where: []storage.Predicate{storage.Uncategorized{}}}))

	// Выключенная категория не попадает в выдачу поста
	got, err := f.store.GetPostByID(ctx, onlyDisabled.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Categories)
}

func TestStore_SearchPosts_RankingAndPaging(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()

	weak := f.post(t, "fox", "nothing else", domain.PostStatusApproved)
	strong := f.post(t, "fox fox", "the quick brown fox", domain.PostStatusApproved)
	f.post(t, "dog", "lazy", domain.PostStatusApproved)

	rel := storage.TextRelevance{Target: storage.TargetTitleBody, Mode: storage.ModeNatural, Query: "fox"}
	posts, total, err := f.store.SearchPosts(ctx, storage.PostQuery{
		Where:  []storage.Predicate{rel},
		RankBy: []storage.TextRelevance{rel},
		Limit:  10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, posts, 2)
	assert.Equal(t, strong.ID, posts[0].ID)
	assert.Equal(t, weak.ID, posts[1].ID)

	page, total, err := f.store.SearchPosts(ctx, storage.PostQuery{Sort: storage.SortDateAsc, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "dog", page[0].Title)

	page, total, err = f.store.SearchPosts(ctx, storage.PostQuery{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Empty(t, page)
}

func TestStore_SearchPosts_TextContainsAndAuthor(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	f.post(t, "Report 100%", "", domain.PostStatusApproved)
	f.post(t, "Weekly notes", "", domain.PostStatusApproved)

	posts, _, err := f.store.SearchPosts(ctx, storage.PostQuery{Where: []storage.Predicate{
		storage.TextContains{Target: storage.TargetTitle, Query: "100%"},
	}})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Report 100%", posts[0].Title)

	posts, _, err = f.store.SearchPosts(ctx, storage.PostQuery{Where: []storage.Predicate{
		storage.TextRelevance{Target: storage.TargetAuthorName, Mode: storage.ModeBooleanPrefix, Query: "ja do"},
	}})
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, _, err = f.store.SearchPosts(ctx, storage.PostQuery{Where: []storage.Predicate{
		storage.TextRelevance{Target: storage.TargetAuthorName, Mode: storage.ModeBooleanPrefix, Query: "jane smith"},
	}})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestStore_CreateComment_Success(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	post := f.post(t, "Hello", "World", domain.PostStatusApproved)

	comment, err := f.store.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: f.author.ID, Content: "First comment!"})
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)
	require.NotNil(t, comment.Author)

	comments, err := f.store.ListComments(ctx, storage.CommentQuery{PostID: post.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	assert.Equal(t, "First comment!", comments[0].Content)

	_, err = f.store.CreateComment(ctx, &domain.Comment{PostID: 999, AuthorID: f.author.ID, Content: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListComments_Keyset(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	post := f.post(t, "Hello", "World", domain.PostStatusApproved)

	var ids []int64
	for i := 0; i < 5; i++ {
		c, err := f.store.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: f.author.ID, Content: "c"})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	parent := ids[0]
	_, err := f.store.CreateComment(ctx, &domain.Comment{PostID: post.ID, ParentID: &parent, AuthorID: f.author.ID, Content: "reply"})
	require.NoError(t, err)

	page, err := f.store.ListComments(ctx, storage.CommentQuery{PostID: post.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	before := page[1].ID
	page, err = f.store.ListComments(ctx, storage.CommentQuery{PostID: post.ID, Before: &before, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[2], page[0].ID)

	replies, err := f.store.ListComments(ctx, storage.CommentQuery{ParentID: &parent, Limit: 10})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "reply", replies[0].Content)

	counts, err := f.store.CountRepliesByParentIDs(ctx, []int64{ids[0], ids[1]})
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[ids[0]])
	assert.EqualValues(t, 0, counts[ids[1]])
}

func TestStore_DeleteComment_Cascade(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	post := f.post(t, "Hello", "World", domain.PostStatusApproved)

	top, err := f.store.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: f.author.ID, Content: "top"})
	require.NoError(t, err)
	reply, err := f.store.CreateComment(ctx, &domain.Comment{PostID: post.ID, ParentID: &top.ID, AuthorID: f.author.ID, Content: "reply"})
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteComment(ctx, top.ID))

	_, err = f.store.GetCommentByID(ctx, reply.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.store.DeleteComment(ctx, top.ID), domain.ErrNotFound)
}

func TestStore_Comment_DisabledAuthorIsNil(t *testing.T) {
	f := newTestStore(t)
	ctx := context.Background()
	post := f.post(t, "Hello", "World", domain.PostStatusApproved)
	ghost := f.store.AddUser(domain.User{DisplayName: "Ghost", Status: domain.StatusDisabled})

	c, err := f.store.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: ghost.ID, Content: "boo"})
	require.NoError(t, err)
	assert.Nil(t, c.Author)
	assert.Equal(t, ghost.ID, c.AuthorID)
}
