package dataloader

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры запроса.
type Loaders struct {
	ReplyCountByCommentID *dataloader.Loader
}

// NewLoaders создает лоадеры с кэшем на время одного запроса.
func NewLoaders(store storage.Storage) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		parentIDs := make([]int64, len(keys))
		for i, k := range keys {
			id, err := strconv.ParseInt(k.String(), 10, 64)
			if err != nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("bad comment key %q: %w", k.String(), err)}
				continue
			}
			parentIDs[i] = id
		}

		// Один запрос к хранилищу на всю пачку ключей
		counts, err := store.CountRepliesByParentIDs(ctx, parentIDs)
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Результат в том же порядке, что и ключи
		for i, id := range parentIDs {
			if results[i] == nil {
				results[i] = &dataloader.Result{Data: counts[id]}
			}
		}
		return results
	}

	return &Loaders{
		ReplyCountByCommentID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware внедряет лоадеры в контекст запроса.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLoaders кладет готовые лоадеры в контекст.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For извлекает лоадеры из контекста; nil, если middleware не подключен.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// ReplyCounts загружает число ответов для каждого комментария.
func (l *Loaders) ReplyCounts(ctx context.Context, commentIDs []int64) (map[int64]int64, error) {
	keys := make(dataloader.Keys, len(commentIDs))
	for i, id := range commentIDs {
		keys[i] = dataloader.StringKey(strconv.FormatInt(id, 10))
	}

	values, errs := l.ReplyCountByCommentID.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	counts := make(map[int64]int64, len(commentIDs))
	for i, v := range values {
		n, _ := v.(int64)
		counts[commentIDs[i]] = n
	}
	return counts, nil
}
