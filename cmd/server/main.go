package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/content-engine/internal/config"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/httpapi"
	"github.com/UkralStul/content-engine/internal/metrics"
	"github.com/UkralStul/content-engine/internal/post"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/storage/inmemory"
	"github.com/UkralStul/content-engine/internal/storage/postgres"
	"github.com/UkralStul/content-engine/internal/thread"
	"github.com/UkralStul/content-engine/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	log := httpapi.NewLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting content engine", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "content-engine",
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		Insecure:     !cfg.IsProduction(),
	})
	if err != nil {
		log.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		log.Error("failed to open storage", "error", err, "storage", cfg.Storage)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics()
	if err := m.Register(reg); err != nil {
		log.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Store: store,
		Composer: post.NewComposer(store, log, m, post.Limits{
			Default: cfg.SearchDefaultLimit,
			Max:     cfg.SearchMaxLimit,
		}),
		Posts:     post.NewService(store, log),
		Paginator: thread.NewPaginator(store, log, m, cfg.CommentPageLimit),
		Comments:  thread.NewService(store, thread.NewObserver(), log, m),
		Logger:    log,
		JWTSecret: []byte(cfg.JWTSecret),
		Gatherer:  reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "error", err)
	}
}

func openStore(cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.Storage == config.StoragePostgres {
		level := logger.Warn
		if cfg.Env == config.DefaultEnv {
			level = logger.Info
		}
		return postgres.New(cfg.DatabaseURL, level)
	}

	store := inmemory.New()
	// Заполним данными для ручной проверки
	if err := fillWithMockData(store); err != nil {
		return nil, err
	}
	log.Info("in-memory storage seeded with demo data")
	return store, nil
}

func fillWithMockData(s *inmemory.Store) error {
	ctx := context.Background()

	jane := s.AddUser(domain.User{DisplayName: "Jane Doe"})
	bob := s.AddUser(domain.User{DisplayName: "Bob Stone"})
	en := s.AddLanguage(domain.Language{Locale: "en", Name: "English"})
	ru := s.AddLanguage(domain.Language{Locale: "ru", Name: "Русский"})
	golang := s.AddCategory(domain.Category{Name: "go"})
	databases := s.AddCategory(domain.Category{Name: "databases"})

	// 1. Одобренный пост с двумя категориями
	original, err := s.CreatePost(ctx, &domain.Post{
		Title:      "Keyset pagination in Go",
		Body:       "Offset pagination degrades on deep pages; keyset pagination keeps every page cheap.",
		Status:     domain.PostStatusApproved,
		AuthorID:   jane.ID,
		LanguageID: en.ID,
	}, []int64{golang.ID, databases.ID})
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	// 2. Перевод первого поста, ждет модерации
	if _, err := s.CreatePost(ctx, &domain.Post{
		Title:      "Keyset-пагинация в Go",
		Body:       "Пагинация по смещению медленнее на дальних страницах.",
		Status:     domain.PostStatusPendingReview,
		AuthorID:   jane.ID,
		LanguageID: ru.ID,
		OriginalID: &original.ID,
	}, nil); err != nil {
		return fmt.Errorf("create translation: %w", err)
	}

	// 3. Пост без категорий
	if _, err := s.CreatePost(ctx, &domain.Post{
		Title:      "Full-text search with PostgreSQL",
		Body:       "tsvector columns and GIN indexes make ranked search fast.",
		Status:     domain.PostStatusApproved,
		AuthorID:   bob.ID,
		LanguageID: en.ID,
	}, nil); err != nil {
		return fmt.Errorf("create uncategorized post: %w", err)
	}

	// 4. Ветка комментариев с ответом
	c1, err := s.CreateComment(ctx, &domain.Comment{
		PostID:   original.ID,
		AuthorID: bob.ID,
		Content:  "Great write-up, thanks!",
	})
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	if _, err := s.CreateComment(ctx, &domain.Comment{
		PostID:   original.ID,
		ParentID: &c1.ID,
		AuthorID: jane.ID,
		Content:  "Glad it helped.",
	}); err != nil {
		return fmt.Errorf("create reply: %w", err)
	}
	return nil
}
