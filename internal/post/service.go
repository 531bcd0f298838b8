package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/UkralStul/content-engine/internal/access"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
)

const maxTitleLen = 255

// Input - данные для создания или редактирования поста.
// CategoryIDs - полный новый набор категорий поста.
type Input struct {
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	LanguageID  int64   `json:"languageId"`
	OriginalID  *int64  `json:"originalId,omitempty"`
	CategoryIDs []int64 `json:"categoryIds"`
	Draft       bool    `json:"draft,omitempty"` // только при создании
}

// Service - запись постов: создание, редактирование, выключение, модерация.
type Service struct {
	store storage.Storage
	log   *slog.Logger
}

func NewService(store storage.Storage, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, log: log}
}

// CreatePost создает пост вызывающего в статусе PendingReview (или Draft).
func (s *Service) CreatePost(ctx context.Context, caller domain.Caller, in Input) (*domain.Post, error) {
	if !caller.Authenticated() {
		return nil, fmt.Errorf("create post: %w", domain.ErrUnauthorized)
	}
	in, cats, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkTranslation(ctx, 0, in.LanguageID, in.OriginalID); err != nil {
		return nil, err
	}

	status := domain.PostStatusPendingReview
	if in.Draft {
		status = domain.PostStatusDraft
	}
	created, err := s.store.CreatePost(ctx, &domain.Post{
		Title:      in.Title,
		Body:       in.Body,
		Status:     status,
		AuthorID:   caller.UserID,
		LanguageID: in.LanguageID,
		OriginalID: in.OriginalID,
	}, cats)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "post created", "post_id", created.ID, "author_id", caller.UserID)
	return created, nil
}

// UpdatePost заменяет поля и набор категорий поста. Каждое успешное изменение
// возвращает пост на модерацию.
func (s *Service) UpdatePost(ctx context.Context, caller domain.Caller, id int64, in Input) (*domain.Post, error) {
	existing, err := s.ownedPost(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == domain.PostStatusDisabled {
		return nil, fmt.Errorf("post %d is disabled: %w", id, domain.ErrInvalidArgument)
	}
	in, cats, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkTranslation(ctx, id, in.LanguageID, in.OriginalID); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdatePost(ctx, &domain.Post{
		ID:         id,
		Title:      in.Title,
		Body:       in.Body,
		Status:     domain.PostStatusPendingReview,
		LanguageID: in.LanguageID,
		OriginalID: in.OriginalID,
	}, cats)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "post updated", "post_id", id)
	return updated, nil
}

// DisablePost выключает пост владельца. Посты не удаляются физически.
func (s *Service) DisablePost(ctx context.Context, caller domain.Caller, id int64) (*domain.Post, error) {
	if _, err := s.ownedPost(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.store.SetPostStatus(ctx, id, domain.PostStatusDisabled)
}

// SetPostStatus - модерация. Роль проверяет вызывающий слой (access.CanModerate).
func (s *Service) SetPostStatus(ctx context.Context, id int64, status domain.PostStatus) (*domain.Post, error) {
	if id <= 0 {
		return nil, fmt.Errorf("post id must be positive: %w", domain.ErrInvalidArgument)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, domain.ErrInvalidArgument)
	}
	p, err := s.store.SetPostStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "post status changed", "post_id", id, "status", status)
	return p, nil
}

// ownedPost загружает пост для изменения: невидимый пост - NotFound, чужой - Unauthorized.
func (s *Service) ownedPost(ctx context.Context, caller domain.Caller, id int64) (*domain.Post, error) {
	if !caller.Authenticated() {
		return nil, fmt.Errorf("modify post: %w", domain.ErrUnauthorized)
	}
	if id <= 0 {
		return nil, fmt.Errorf("post id must be positive: %w", domain.ErrInvalidArgument)
	}
	p, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanViewPost(caller, p) {
		return nil, fmt.Errorf("post with id %d: %w", id, domain.ErrNotFound)
	}
	if !access.CanMutate(caller, p.AuthorID) {
		return nil, fmt.Errorf("post %d belongs to another user: %w", id, domain.ErrUnauthorized)
	}
	return p, nil
}

func (s *Service) validate(ctx context.Context, in Input) (Input, []int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || utf8.RuneCountInString(in.Title) > maxTitleLen {
		return in, nil, fmt.Errorf("title must be 1..%d characters: %w", maxTitleLen, domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Body) == "" {
		return in, nil, fmt.Errorf("body must not be empty: %w", domain.ErrInvalidArgument)
	}
	if in.LanguageID <= 0 {
		return in, nil, fmt.Errorf("language is required: %w", domain.ErrInvalidArgument)
	}
	lang, err := s.store.GetLanguageByID(ctx, in.LanguageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return in, nil, fmt.Errorf("unknown language %d: %w", in.LanguageID, domain.ErrInvalidArgument)
		}
		return in, nil, err
	}
	if lang.Status != domain.StatusActive {
		return in, nil, fmt.Errorf("language %d is disabled: %w", in.LanguageID, domain.ErrInvalidArgument)
	}
	cats, err := dedupeIDs(in.CategoryIDs)
	if err != nil {
		return in, nil, err
	}
	return in, cats, nil
}

// checkTranslation проверяет связь перевода: оригинал существует, сам не является
// переводом и написан на другом языке. selfID == 0 при создании.
func (s *Service) checkTranslation(ctx context.Context, selfID, languageID int64, originalID *int64) error {
	if originalID == nil {
		return nil
	}
	if *originalID <= 0 {
		return fmt.Errorf("original id must be positive: %w", domain.ErrInvalidArgument)
	}
	if *originalID == selfID {
		return fmt.Errorf("post cannot be a translation of itself: %w", domain.ErrInvalidArgument)
	}

	orig, err := s.store.GetPostByID(ctx, *originalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("original post %d does not exist: %w", *originalID, domain.ErrInvalidArgument)
		}
		return err
	}
	if orig.OriginalID != nil {
		return fmt.Errorf("post %d is already a translation: %w", orig.ID, domain.ErrConflict)
	}
	if orig.LanguageID == languageID {
		return fmt.Errorf("translation must use a different language than post %d: %w", orig.ID, domain.ErrConflict)
	}

	if selfID != 0 {
		n, err := s.store.CountTranslations(ctx, selfID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("post %d has translations and cannot become one: %w", selfID, domain.ErrConflict)
		}
	}
	return nil
}
