package dataloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	storage.Storage
	calls atomic.Int32
}

func (s *countingStore) CountRepliesByParentIDs(ctx context.Context, ids []int64) (map[int64]int64, error) {
	s.calls.Add(1)
	return s.Storage.CountRepliesByParentIDs(ctx, ids)
}

func seed(t *testing.T) (*countingStore, []int64) {
	t.Helper()
	ctx := context.Background()
	mem := inmemory.New()
	user := mem.AddUser(domain.User{DisplayName: "Jane"})
	lang := mem.AddLanguage(domain.Language{Locale: "en", Name: "English"})
	post, err := mem.CreatePost(ctx, &domain.Post{Title: "t", Body: "b", Status: domain.PostStatusApproved, AuthorID: user.ID, LanguageID: lang.ID}, nil)
	require.NoError(t, err)

	var tops []int64
	for i := 0; i < 3; i++ {
		c, err := mem.CreateComment(ctx, &domain.Comment{PostID: post.ID, AuthorID: user.ID, Content: "top"})
		require.NoError(t, err)
		tops = append(tops, c.ID)
	}
	for i := 0; i < 2; i++ {
		_, err := mem.CreateComment(ctx, &domain.Comment{PostID: post.ID, ParentID: &tops[0], AuthorID: user.ID, Content: "reply"})
		require.NoError(t, err)
	}
	return &countingStore{Storage: mem}, tops
}

func TestLoaders_ReplyCounts(t *testing.T) {
	store, tops := seed(t)
	ctx := context.Background()
	loaders := NewLoaders(store)

	counts, err := loaders.ReplyCounts(ctx, tops)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[tops[0]])
	assert.EqualValues(t, 0, counts[tops[1]])
	assert.EqualValues(t, 0, counts[tops[2]])
	assert.EqualValues(t, 1, store.calls.Load())

	// Повторная загрузка берется из кэша запроса
	_, err = loaders.ReplyCounts(ctx, tops[:1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, store.calls.Load())
}

func TestMiddleware(t *testing.T) {
	store, tops := seed(t)

	var got map[int64]int64
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := For(r.Context())
		require.NotNil(t, l)
		var err error
		got, err = l.ReplyCounts(r.Context(), tops)
		require.NoError(t, err)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.EqualValues(t, 2, got[tops[0]])

	assert.Nil(t, For(context.Background()))
}
