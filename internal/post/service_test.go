package post

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreatePost(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	cat := w.store.AddCategory(domain.Category{Name: "Go"})

	p, err := w.service.CreatePost(ctx, w.caller(w.jane), Input{
		Title: "  Hello  ", Body: "World", LanguageID: w.en.ID, CategoryIDs: []int64{cat.ID, cat.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, domain.PostStatusPendingReview, p.Status)
	assert.Equal(t, w.jane.ID, p.AuthorID)
	require.Len(t, p.Categories, 1)

	draft, err := w.service.CreatePost(ctx, w.caller(w.jane), Input{Title: "Draft", Body: "x", LanguageID: w.en.ID, Draft: true})
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusDraft, draft.Status)

	tests := []struct {
		name   string
		caller domain.Caller
		in     Input
		want   error
	}{
		{"anonymous", domain.Anonymous, Input{Title: "t", Body: "b", LanguageID: w.en.ID}, domain.ErrUnauthorized},
		{"blank title", w.caller(w.jane), Input{Title: "   ", Body: "b", LanguageID: w.en.ID}, domain.ErrInvalidArgument},
		{"long title", w.caller(w.jane), Input{Title: strings.Repeat("я", 256), Body: "b", LanguageID: w.en.ID}, domain.ErrInvalidArgument},
		{"empty body", w.caller(w.jane), Input{Title: "t", Body: " ", LanguageID: w.en.ID}, domain.ErrInvalidArgument},
		{"unknown language", w.caller(w.jane), Input{Title: "t", Body: "b", LanguageID: 999}, domain.ErrInvalidArgument},
		{"unknown category", w.caller(w.jane), Input{Title: "t", Body: "b", LanguageID: w.en.ID, CategoryIDs: []int64{cat.ID, 404}}, domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.service.CreatePost(ctx, tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = w.service.CreatePost(ctx, w.caller(w.jane), Input{Title: "t", Body: "b", LanguageID: w.en.ID, CategoryIDs: []int64{404, 405}})
	var missing *storage.MissingCategoriesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []int64{404, 405}, missing.IDs)
}

func TestService_TranslationLinks(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	jane := w.caller(w.jane)

	root, err := w.service.CreatePost(ctx, jane, Input{Title: "Root", Body: "b", LanguageID: w.en.ID})
	require.NoError(t, err)

	translation, err := w.service.CreatePost(ctx, jane, Input{Title: "Racine", Body: "b", LanguageID: w.fr.ID, OriginalID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, translation.OriginalID)
	assert.Equal(t, root.ID, *translation.OriginalID)

	missingID := int64(999)
	_, err = w.service.CreatePost(ctx, jane, Input{Title: "x", Body: "b", LanguageID: w.fr.ID, OriginalID: &missingID})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// Цепочки переводов запрещены
	_, err = w.service.CreatePost(ctx, jane, Input{Title: "x", Body: "b", LanguageID: w.en.ID, OriginalID: &translation.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = w.service.CreatePost(ctx, jane, Input{Title: "x", Body: "b", LanguageID: w.en.ID, OriginalID: &root.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	other, err := w.service.CreatePost(ctx, jane, Input{Title: "Other", Body: "b", LanguageID: w.fr.ID})
	require.NoError(t, err)

	// Пост с переводами сам не может стать переводом
	_, err = w.service.UpdatePost(ctx, jane, root.ID, Input{Title: "Root", Body: "b", LanguageID: w.en.ID, OriginalID: &other.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = w.service.UpdatePost(ctx, jane, other.ID, Input{Title: "Other", Body: "b", LanguageID: w.fr.ID, OriginalID: &other.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestService_UpdatePost(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	go1 := w.store.AddCategory(domain.Category{Name: "Go"})
	db := w.store.AddCategory(domain.Category{Name: "Databases"})
	p := w.addPost(t, w.jane, "Old", "body", domain.PostStatusApproved, go1.ID)

	updated, err := w.service.UpdatePost(ctx, w.caller(w.jane), p.ID, Input{Title: "New", Body: "body", LanguageID: w.en.ID, CategoryIDs: []int64{db.ID}})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, domain.PostStatusPendingReview, updated.Status)
	require.Len(t, updated.Categories, 1)
	assert.Equal(t, db.ID, updated.Categories[0].ID)

	// Неизвестная категория не меняет ни поля, ни категории
	_, err = w.service.UpdatePost(ctx, w.caller(w.jane), p.ID, Input{Title: "Broken", Body: "body", LanguageID: w.en.ID, CategoryIDs: []int64{go1.ID, 777}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	current, err := w.store.GetPostByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", current.Title)
	require.Len(t, current.Categories, 1)
	assert.Equal(t, db.ID, current.Categories[0].ID)

	// Пост на модерации чужому пользователю не виден
	_, err = w.service.UpdatePost(ctx, w.caller(w.bob), p.ID, Input{Title: "Hack", Body: "b", LanguageID: w.en.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	approved := w.addPost(t, w.jane, "Public", "body", domain.PostStatusApproved)
	_, err = w.service.UpdatePost(ctx, w.caller(w.bob), approved.ID, Input{Title: "Hack", Body: "b", LanguageID: w.en.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Модератор видит пост, но редактировать может только автор
	_, err = w.service.UpdatePost(ctx, domain.Caller{UserID: w.bob.ID, Role: domain.RoleModerator}, p.ID, Input{Title: "Hack", Body: "b", LanguageID: w.en.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestService_DisableAndModerate(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	p := w.addPost(t, w.jane, "Post", "body", domain.PostStatusApproved)

	_, err := w.service.DisablePost(ctx, w.caller(w.bob), p.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	disabled, err := w.service.DisablePost(ctx, w.caller(w.jane), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusDisabled, disabled.Status)

	_, err = w.service.UpdatePost(ctx, w.caller(w.jane), p.ID, Input{Title: "Back", Body: "b", LanguageID: w.en.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	rejected, err := w.service.SetPostStatus(ctx, p.ID, domain.PostStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusRejected, rejected.Status)

	_, err = w.service.SetPostStatus(ctx, p.ID, "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = w.service.SetPostStatus(ctx, 12345, domain.PostStatusApproved)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
