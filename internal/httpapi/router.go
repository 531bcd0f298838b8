// Package httpapi - HTTP-обвязка движка: маршруты chi, конверт ответа,
// аутентификация по JWT и websocket-поток новых комментариев.
package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/UkralStul/content-engine/internal/dataloader"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/post"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/thread"
)

// Deps - зависимости обработчиков.
type Deps struct {
	Store     storage.Storage
	Composer  *post.Composer
	Posts     *post.Service
	Paginator *thread.Paginator
	Comments  *thread.Service
	Logger    *slog.Logger
	JWTSecret []byte
	// Gatherer для /metrics; nil - маршрут не регистрируется.
	Gatherer prometheus.Gatherer
}

type handler struct {
	Deps
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

// NewRouter собирает все маршруты.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handler{
		Deps: d,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pingInterval: 10 * time.Second,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Identity(d.JWTSecret))
	r.Use(Logging(d.Logger))

	r.Get("/health", h.health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", h.searchPosts)
		r.Post("/", h.createPost)
		r.Get("/approved", h.approvedPosts)
		r.Get("/mine", h.ownPosts)
		r.Get("/mine/{id}", h.ownPostByID)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.postByID)
			r.Put("/", h.updatePost)
			r.Delete("/", h.disablePost)
			r.Get("/approved", h.approvedPostByID)
			r.Put("/status", h.setPostStatus)

			r.With(dataloader.Middleware(d.Store)).Get("/comments", h.listComments)
			r.Post("/comments", h.createComment)
			r.Get("/comments/live", h.liveComments)
		})
	})

	r.Route("/comments/{id}", func(r chi.Router) {
		r.Get("/replies", h.listReplies)
		r.Put("/", h.updateComment)
		r.Delete("/", h.deleteComment)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"}, "ok")
}

// pathID читает положительный {id} из маршрута.
func pathID(r *http.Request) (int64, error) {
	return positiveInt("id", chi.URLParam(r, "id"))
}

func positiveInt(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(name, raw)
	}
	return id, nil
}

func invalidParam(name, raw string) error {
	return fmt.Errorf("invalid %s %q: %w", name, raw, domain.ErrInvalidArgument)
}
