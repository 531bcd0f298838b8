package thread

import (
	"context"
	"sync"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/google/uuid"
)

// Observer хранит каналы подписчиков на новые комментарии постов.
type Observer struct {
	mu sync.RWMutex
	//   map[postID] map[subscriberID] channel
	subs   map[int64]map[string]chan *domain.Comment
	buffer int
}

// NewObserver - конструктор наблюдателя.
func NewObserver() *Observer {
	return &Observer{
		subs:   make(map[int64]map[string]chan *domain.Comment),
		buffer: 16,
	}
}

// Subscribe регистрирует подписчика поста. Канал закрывается после отмены ctx.
func (o *Observer) Subscribe(ctx context.Context, postID int64) <-chan *domain.Comment {
	ch := make(chan *domain.Comment, o.buffer)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[postID] == nil {
		o.subs[postID] = make(map[string]chan *domain.Comment)
	}
	o.subs[postID][subID] = ch
	o.mu.Unlock()

	// Очистка при отключении клиента
	go func() {
		<-ctx.Done()
		o.mu.Lock()
		if postSubs, ok := o.subs[postID]; ok {
			delete(postSubs, subID)
			if len(postSubs) == 0 {
				delete(o.subs, postID)
			}
		}
		close(ch)
		o.mu.Unlock()
	}()

	return ch
}

// Publish рассылает комментарий подписчикам его поста, не блокируясь на медленных.
func (o *Observer) Publish(c *domain.Comment) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[c.PostID] {
		select {
		case ch <- c:
		default:
			// Клиент не успевает читать - пропускаем
		}
	}
}

// Subscribers возвращает число подписчиков поста.
func (o *Observer) Subscribers(postID int64) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[postID])
}
