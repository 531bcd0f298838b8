// Package thread - курсорная пагинация обсуждений постов и изменение комментариев.
package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UkralStul/content-engine/internal/access"
	"github.com/UkralStul/content-engine/internal/dataloader"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/metrics"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageRequest - курсор (id последнего полученного комментария) и размер страницы.
type PageRequest struct {
	Cursor *int64
	Limit  int
}

func (r PageRequest) normalize(defaultLimit int) (PageRequest, error) {
	if r.Limit < 0 {
		return r, fmt.Errorf("limit must not be negative: %w", domain.ErrInvalidArgument)
	}
	if r.Cursor != nil && *r.Cursor <= 0 {
		return r, fmt.Errorf("cursor must be positive: %w", domain.ErrInvalidArgument)
	}
	switch {
	case r.Limit == 0:
		r.Limit = defaultLimit
	case r.Limit > MaxLimit:
		r.Limit = MaxLimit
	}
	return r, nil
}

// Page - страница комментариев от новых к старым.
type Page struct {
	Comments   []*domain.Comment `json:"comments"`
	NextCursor *int64            `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
}

// Paginator читает комментарии верхнего уровня и ответы с учетом видимости поста.
type Paginator struct {
	store        storage.Storage
	log          *slog.Logger
	metrics      *metrics.Metrics
	defaultLimit int
}

// NewPaginator создает пагинатор. defaultLimit <= 0 означает DefaultLimit.
func NewPaginator(store storage.Storage, log *slog.Logger, m *metrics.Metrics, defaultLimit int) *Paginator {
	if log == nil {
		log = slog.Default()
	}
	if defaultLimit <= 0 || defaultLimit > MaxLimit {
		defaultLimit = DefaultLimit
	}
	return &Paginator{store: store, log: log, metrics: m, defaultLimit: defaultLimit}
}

// ListTopLevel возвращает комментарии верхнего уровня поста с числом ответов.
func (p *Paginator) ListTopLevel(ctx context.Context, caller domain.Caller, postID int64, req PageRequest) (page *Page, err error) {
	ctx, end := tracing.StartSpan(ctx, "thread.list_top_level", attribute.Int64("post.id", postID))
	defer func() { end(err) }()

	req, err = req.normalize(p.defaultLimit)
	if err != nil {
		return nil, err
	}
	if _, err = visiblePost(ctx, p.store, caller, postID); err != nil {
		return nil, err
	}

	page, err = p.fetch(ctx, storage.CommentQuery{PostID: postID, Before: req.Cursor}, req.Limit)
	if err != nil {
		return nil, err
	}
	if err = p.attachReplyCounts(ctx, page.Comments); err != nil {
		return nil, err
	}
	p.metrics.IncCommentPage("top_level", page.HasMore)
	return page, nil
}

// ListReplies возвращает ответы на комментарий parentID.
func (p *Paginator) ListReplies(ctx context.Context, caller domain.Caller, parentID int64, req PageRequest) (page *Page, err error) {
	ctx, end := tracing.StartSpan(ctx, "thread.list_replies", attribute.Int64("comment.id", parentID))
	defer func() { end(err) }()

	req, err = req.normalize(p.defaultLimit)
	if err != nil {
		return nil, err
	}
	if parentID <= 0 {
		return nil, fmt.Errorf("comment id must be positive: %w", domain.ErrInvalidArgument)
	}
	parent, err := visibleComment(ctx, p.store, caller, parentID)
	if err != nil {
		return nil, err
	}

	page, err = p.fetch(ctx, storage.CommentQuery{PostID: parent.PostID, ParentID: &parent.ID, Before: req.Cursor}, req.Limit)
	if err != nil {
		return nil, err
	}
	p.metrics.IncCommentPage("replies", page.HasMore)
	return page, nil
}

// fetch запрашивает на одну запись больше, чтобы узнать о следующей странице без COUNT.
func (p *Paginator) fetch(ctx context.Context, q storage.CommentQuery, limit int) (*Page, error) {
	q.Limit = limit + 1
	comments, err := p.store.ListComments(ctx, q)
	if err != nil {
		p.log.WarnContext(ctx, "failed to list comments", "post_id", q.PostID, "error", err)
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	page := &Page{Comments: comments}
	if len(comments) > limit {
		page.Comments = comments[:limit]
		next := page.Comments[limit-1].ID
		page.NextCursor = &next
		page.HasMore = true
	}
	if page.Comments == nil {
		page.Comments = []*domain.Comment{}
	}
	return page, nil
}

func (p *Paginator) attachReplyCounts(ctx context.Context, comments []*domain.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	var counts map[int64]int64
	var err error
	if loaders := dataloader.For(ctx); loaders != nil {
		counts, err = loaders.ReplyCounts(ctx, ids)
	} else {
		counts, err = p.store.CountRepliesByParentIDs(ctx, ids)
	}
	if err != nil {
		return fmt.Errorf("failed to count replies: %w", err)
	}

	for _, c := range comments {
		n := counts[c.ID]
		c.ReplyCount = &n
	}
	return nil
}

// visiblePost загружает пост и проверяет, что обсуждение видно вызывающему.
// Скрытый пост дает ту же ошибку, что и отсутствующий.
func visiblePost(ctx context.Context, store storage.Storage, caller domain.Caller, postID int64) (*domain.Post, error) {
	if postID <= 0 {
		return nil, fmt.Errorf("post id must be positive: %w", domain.ErrInvalidArgument)
	}
	post, err := store.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !access.CanViewPost(caller, post) {
		return nil, fmt.Errorf("post with id %d: %w", postID, domain.ErrNotFound)
	}
	return post, nil
}

// visibleComment загружает комментарий, если виден его пост. Комментарий скрытого поста
// дает ту же ошибку, что и отсутствующий комментарий.
func visibleComment(ctx context.Context, store storage.Storage, caller domain.Caller, id int64) (*domain.Comment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("comment id must be positive: %w", domain.ErrInvalidArgument)
	}
	comment, err := store.GetCommentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := visiblePost(ctx, store, caller, comment.PostID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("comment with id %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return comment, nil
}
