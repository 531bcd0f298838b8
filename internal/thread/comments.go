package thread

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/UkralStul/content-engine/internal/access"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/metrics"
	"github.com/UkralStul/content-engine/internal/storage"
)

// MaxContentLen - предел длины комментария в символах.
const MaxContentLen = 2000

// CreateInput - новый комментарий; ParentID задается для ответа.
type CreateInput struct {
	PostID   int64  `json:"postId"`
	ParentID *int64 `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

// Service изменяет комментарии и уведомляет подписчиков о новых.
type Service struct {
	store    storage.Storage
	observer *Observer
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewService создает сервис комментариев. observer, log и m могут быть nil.
func NewService(store storage.Storage, observer *Observer, log *slog.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, observer: observer, log: log, metrics: m}
}

// Create добавляет комментарий к одобренному посту. Ответ на ответ отклоняется:
// вложенность не глубже одного уровня.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (*domain.Comment, error) {
	if !caller.Authenticated() {
		return nil, fmt.Errorf("create comment: %w", domain.ErrUnauthorized)
	}
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}

	post, err := visiblePost(ctx, s.store, caller, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.Status != domain.PostStatusApproved {
		return nil, fmt.Errorf("post %d is not open for comments: %w", post.ID, domain.ErrInvalidArgument)
	}

	if in.ParentID != nil {
		parent, err := s.store.GetCommentByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, fmt.Errorf("parent comment %d belongs to another post: %w", parent.ID, domain.ErrInvalidArgument)
		}
		if !parent.IsTopLevel() {
			return nil, fmt.Errorf("replies to replies are not allowed: %w", domain.ErrInvalidArgument)
		}
	}

	created, err := s.store.CreateComment(ctx, &domain.Comment{
		PostID:   post.ID,
		ParentID: in.ParentID,
		AuthorID: caller.UserID,
		Content:  content,
	})
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.Publish(created)
	}
	s.metrics.IncCommentMutation("create")
	s.log.DebugContext(ctx, "comment created", "comment_id", created.ID, "post_id", post.ID)
	return created, nil
}

// Update меняет текст комментария. Только автор.
func (s *Service) Update(ctx context.Context, caller domain.Caller, id int64, content string) (*domain.Comment, error) {
	if !caller.Authenticated() {
		return nil, fmt.Errorf("update comment: %w", domain.ErrUnauthorized)
	}
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}
	comment, err := visibleComment(ctx, s.store, caller, id)
	if err != nil {
		return nil, err
	}
	if !access.CanMutate(caller, comment.AuthorID) {
		return nil, fmt.Errorf("comment %d belongs to another user: %w", id, domain.ErrUnauthorized)
	}

	updated, err := s.store.UpdateCommentContent(ctx, id, content)
	if err != nil {
		return nil, err
	}
	s.metrics.IncCommentMutation("update")
	return updated, nil
}

// Delete удаляет комментарий вместе с ответами. Автор или администратор.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id int64) error {
	if !caller.Authenticated() {
		return fmt.Errorf("delete comment: %w", domain.ErrUnauthorized)
	}
	comment, err := visibleComment(ctx, s.store, caller, id)
	if err != nil {
		return err
	}
	if !access.CanDeleteComment(caller, comment) {
		return fmt.Errorf("comment %d cannot be deleted by user %d: %w", id, caller.UserID, domain.ErrUnauthorized)
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.metrics.IncCommentMutation("delete")
	s.log.InfoContext(ctx, "comment deleted", "comment_id", id, "by", caller.UserID)
	return nil
}

// Watch подписывает вызывающего на новые комментарии видимого ему поста.
func (s *Service) Watch(ctx context.Context, caller domain.Caller, postID int64) (<-chan *domain.Comment, error) {
	if s.observer == nil {
		return nil, fmt.Errorf("live comments are disabled: %w", domain.ErrNotFound)
	}
	if _, err := visiblePost(ctx, s.store, caller, postID); err != nil {
		return nil, err
	}
	return s.observer.Subscribe(ctx, postID), nil
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("comment content cannot be empty: %w", domain.ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return "", fmt.Errorf("comment content is too long: %w", domain.ErrInvalidArgument)
	}
	return content, nil
}
