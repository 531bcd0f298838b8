// Package post - поиск постов с фильтрами и ранжированием, а также запись постов.
package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/content-engine/internal/access"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/metrics"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome - какая фаза поиска дала результат.
type Outcome string

const (
	OutcomeRanked   Outcome = "ranked"   // первая фаза нашла посты
	OutcomeFallback Outcome = "fallback" // первая фаза пуста, подстрока что-то нашла
	OutcomeEmpty    Outcome = "empty"
)

// Pagination - метаданные страницы поиска.
type Pagination struct {
	TotalRecords int64 `json:"totalRecords"`
	TotalPages   int   `json:"totalPages"`
	CurrentPage  int   `json:"currentPage"`
	Limit        int   `json:"limit"`
}

// SearchResult - страница найденных постов.
type SearchResult struct {
	Posts      []*domain.Post `json:"rows"`
	Pagination Pagination     `json:"pagination"`
	Outcome    Outcome        `json:"outcome"`
}

// Composer выполняет поиск постов. Не хранит состояния между вызовами.
type Composer struct {
	store   storage.Storage
	log     *slog.Logger
	metrics *metrics.Metrics
	limits  Limits
}

// NewComposer создает поисковик. log и m могут быть nil.
func NewComposer(store storage.Storage, log *slog.Logger, m *metrics.Metrics, limits Limits) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{store: store, log: log, metrics: m, limits: limits.withDefaults()}
}

// Search выполняет двухфазный поиск. Вторая фаза (подстрока) запускается,
// только если ранжированная фаза не нашла ни одного поста и задан title или text.
func (c *Composer) Search(ctx context.Context, crit Criteria) (res *SearchResult, err error) {
	started := time.Now()
	ctx, end := tracing.StartSpan(ctx, "post.search")
	defer func() { end(err) }()

	crit, err = crit.normalize(c.limits)
	if err != nil {
		return nil, err
	}

	posts, total, err := c.store.SearchPosts(ctx, rankedPlan(crit))
	if err != nil {
		c.log.WarnContext(ctx, "ranked search failed", "error", err)
		return nil, fmt.Errorf("ranked search: %w", err)
	}
	outcome := OutcomeRanked

	if total == 0 && crit.hasFreeText() {
		c.log.DebugContext(ctx, "ranked search matched nothing, falling back to substring match",
			"title", crit.Title, "text", crit.Text)
		posts, total, err = c.store.SearchPosts(ctx, fallbackPlan(crit))
		if err != nil {
			c.log.WarnContext(ctx, "fallback search failed", "error", err)
			return nil, fmt.Errorf("fallback search: %w", err)
		}
		outcome = OutcomeFallback
	}
	if total == 0 {
		outcome = OutcomeEmpty
	}

	tracing.SetAttributes(ctx,
		attribute.String("search.outcome", string(outcome)),
		attribute.Int64("search.total", total),
	)
	c.metrics.ObserveSearch(string(outcome), time.Since(started))

	if posts == nil {
		posts = []*domain.Post{}
	}
	return &SearchResult{
		Posts:      posts,
		Pagination: paginate(total, crit.Page, crit.Limit),
		Outcome:    outcome,
	}, nil
}

func paginate(total int64, page, limit int) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{TotalRecords: total, TotalPages: pages, CurrentPage: page, Limit: limit}
}

// ApprovedPosts - публичная лента: поиск только среди одобренных постов.
func (c *Composer) ApprovedPosts(ctx context.Context, crit Criteria) (*SearchResult, error) {
	crit.Status = domain.PostStatusApproved
	return c.Search(ctx, crit)
}

// OwnPosts - поиск среди постов вызывающего.
func (c *Composer) OwnPosts(ctx context.Context, caller domain.Caller, crit Criteria) (*SearchResult, error) {
	if !caller.Authenticated() {
		return nil, fmt.Errorf("own posts require authentication: %w", domain.ErrUnauthorized)
	}
	crit.AuthorID = caller.UserID
	return c.Search(ctx, crit)
}

// PostByID возвращает пост, если он виден вызывающему. Скрытый пост неотличим от отсутствующего.
func (c *Composer) PostByID(ctx context.Context, caller domain.Caller, id int64) (*domain.Post, error) {
	p, err := c.findOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanViewPost(caller, p) {
		return nil, fmt.Errorf("post with id %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// ApprovedPostByID возвращает пост, только если он одобрен.
func (c *Composer) ApprovedPostByID(ctx context.Context, id int64) (*domain.Post, error) {
	return c.findOne(ctx, id, storage.StatusEquals{Status: domain.PostStatusApproved})
}

// OwnPostByID возвращает пост вызывающего в любом статусе.
func (c *Composer) OwnPostByID(ctx context.Context, caller domain.Caller, id int64) (*domain.Post, error) {
	if !caller.Authenticated() {
		return nil, fmt.Errorf("own posts require authentication: %w", domain.ErrUnauthorized)
	}
	return c.findOne(ctx, id, storage.AuthorEquals{AuthorID: caller.UserID})
}

func (c *Composer) findOne(ctx context.Context, id int64, extra ...storage.Predicate) (*domain.Post, error) {
	if id <= 0 {
		return nil, fmt.Errorf("post id must be positive: %w", domain.ErrInvalidArgument)
	}
	where := append([]storage.Predicate{storage.IDEquals{ID: id}}, extra...)
	posts, _, err := c.store.SearchPosts(ctx, storage.PostQuery{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("post with id %d: %w", id, domain.ErrNotFound)
	}
	return posts[0], nil
}
