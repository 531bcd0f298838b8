package post

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/storage/inmemory"

	"github.com/stretchr/testify/require"
)

// countingStore считает обращения к SearchPosts, чтобы видеть запуск второй фазы
type countingStore struct {
	storage.Storage
	searches atomic.Int32
}

func (s *countingStore) SearchPosts(ctx context.Context, q storage.PostQuery) ([]*domain.Post, int64, error) {
	s.searches.Add(1)
	return s.Storage.SearchPosts(ctx, q)
}

type world struct {
	store    *inmemory.Store
	counting *countingStore
	composer *Composer
	service  *Service

	jane, bob *domain.User
	en, fr    *domain.Language
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := inmemory.New()
	w := &world{
		store: store,
		jane:  store.AddUser(domain.User{DisplayName: "Jane Doe"}),
		bob:   store.AddUser(domain.User{DisplayName: "Bob Stone"}),
		en:    store.AddLanguage(domain.Language{Locale: "en", Name: "English"}),
		fr:    store.AddLanguage(domain.Language{Locale: "fr", Name: "French"}),
	}
	w.counting = &countingStore{Storage: store}
	w.composer = NewComposer(w.counting, nil, nil, Limits{})
	w.service = NewService(store, nil)
	return w
}

func (w *world) caller(u *domain.User) domain.Caller {
	return domain.Caller{UserID: u.ID, Role: domain.RoleUser}
}

// addPost создает пост напрямую в хранилище с нужным статусом
func (w *world) addPost(t *testing.T, author *domain.User, title, body string, status domain.PostStatus, cats ...int64) *domain.Post {
	t.Helper()
	ctx := context.Background()
	p, err := w.store.CreatePost(ctx, &domain.Post{
		Title:      title,
		Body:       body,
		Status:     domain.PostStatusPendingReview,
		AuthorID:   author.ID,
		LanguageID: w.en.ID,
	}, cats)
	require.NoError(t, err)
	if status != p.Status {
		p, err = w.store.SetPostStatus(ctx, p.ID, status)
		require.NoError(t, err)
	}
	return p
}

func ids(posts []*domain.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
