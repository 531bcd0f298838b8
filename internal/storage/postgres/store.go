package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
	"github.com/UkralStul/content-engine/internal/tracing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// Индексы полнотекстового поиска. AutoMigrate не умеет создавать индексы по выражениям.
var ftsIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_posts_title_fts ON posts USING GIN (to_tsvector('english', title))`,
	`CREATE INDEX IF NOT EXISTS idx_posts_title_body_fts ON posts USING GIN (to_tsvector('english', coalesce(title, '') || ' ' || coalesce(body, '')))`,
	`CREATE INDEX IF NOT EXISTS idx_users_display_name_fts ON users USING GIN (to_tsvector('simple', display_name))`,
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string, logLevel logger.LogLevel) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(&domain.User{}, &domain.Language{}, &domain.Category{}, &domain.Post{}, &domain.Comment{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, ddl := range ftsIndexes {
		if err := db.Exec(ddl).Error; err != nil {
			return nil, fmt.Errorf("failed to create search index: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// DB отдает соединение для наполнения справочников.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// === Post Methods ===

func (s *Store) SearchPosts(ctx context.Context, q storage.PostQuery) (posts []*domain.Post, total int64, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { end(err) }()

	query := s.db.WithContext(ctx).Model(&domain.Post{})
	for _, pred := range q.Where {
		sql, args, perr := predicateSQL(pred)
		if perr != nil {
			return nil, 0, perr
		}
		query = query.Where(sql, args...)
	}
	// Сессия позволяет выполнить на одной цепочке и COUNT, и выборку страницы.
	query = query.Session(&gorm.Session{})

	if err = query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 || (q.Limit > 0 && q.Offset >= int(total)) {
		return []*domain.Post{}, total, nil
	}

	page := query.Scopes(withPostRelations).Order(orderClause(q))
	if q.Limit > 0 {
		page = page.Limit(q.Limit)
	}
	if q.Offset > 0 {
		page = page.Offset(q.Offset)
	}
	if err = page.Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *Store) GetPostByID(ctx context.Context, id int64) (post *domain.Post, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { end(err) }()

	return s.getPost(s.db.WithContext(ctx), id)
}

func (s *Store) getPost(db *gorm.DB, id int64) (*domain.Post, error) {
	var post domain.Post
	if err := db.Scopes(withPostRelations).First(&post, id).Error; err != nil {
		return nil, notFound(err, "post", id)
	}
	return &post, nil
}

func (s *Store) CountTranslations(ctx context.Context, originalID int64) (n int64, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { end(err) }()

	err = s.db.WithContext(ctx).Model(&domain.Post{}).Where("original_id = ?", originalID).Count(&n).Error
	return n, err
}

func (s *Store) GetLanguageByID(ctx context.Context, id int64) (lang *domain.Language, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "languages", tracing.DBOperationQuery)
	defer func() { end(err) }()

	var l domain.Language
	if err = s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, notFound(err, "language", id)
	}
	return &l, nil
}

func (s *Store) CreatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (created *domain.Post, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationInsert)
	defer func() { end(err) }()

	row := domain.Post{
		Title:      post.Title,
		Body:       post.Body,
		Status:     post.Status,
		AuthorID:   post.AuthorID,
		LanguageID: post.LanguageID,
		OriginalID: post.OriginalID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cats, err := resolveCategories(tx, categoryIDs)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}
		if len(cats) == 0 {
			return nil
		}
		return tx.Model(&row).Association("Categories").Append(cats)
	})
	if err != nil {
		return nil, err
	}
	return s.getPost(s.db.WithContext(ctx), row.ID)
}

func (s *Store) UpdatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (updated *domain.Post, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	// Поля и набор категорий меняются в одной транзакции: либо все, либо ничего
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Post
		if err := tx.Select("id").First(&existing, post.ID).Error; err != nil {
			return notFound(err, "post", post.ID)
		}
		cats, err := resolveCategories(tx, categoryIDs)
		if err != nil {
			return err
		}
		if err := tx.Model(&existing).Updates(map[string]any{
			"title":       post.Title,
			"body":        post.Body,
			"status":      post.Status,
			"language_id": post.LanguageID,
			"original_id": post.OriginalID,
			"updated_at":  time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		assoc := tx.Model(&existing).Association("Categories")
		if len(cats) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(cats)
	})
	if err != nil {
		return nil, err
	}
	return s.getPost(s.db.WithContext(ctx), post.ID)
}

func (s *Store) SetPostStatus(ctx context.Context, id int64, status domain.PostStatus) (updated *domain.Post, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	res := s.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", id).Updates(map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("post with id %d: %w", id, domain.ErrNotFound)
	}
	return s.getPost(s.db.WithContext(ctx), id)
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (created *domain.Comment, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationInsert)
	defer func() { end(err) }()

	row := domain.Comment{
		PostID:   comment.PostID,
		ParentID: comment.ParentID,
		AuthorID: comment.AuthorID,
		Content:  comment.Content,
	}
	// Проверяем существование поста и родителя в одной транзакции с вставкой
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.Post{}).Where("id = ?", row.PostID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("post with id %d: %w", row.PostID, domain.ErrNotFound)
		}
		if row.ParentID != nil {
			if err := tx.Model(&domain.Comment{}).Where("id = ?", *row.ParentID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("parent comment %d: %w", *row.ParentID, domain.ErrNotFound)
			}
		}
		return tx.Omit(clause.Associations).Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return s.getComment(s.db.WithContext(ctx), row.ID)
}

func (s *Store) GetCommentByID(ctx context.Context, id int64) (comment *domain.Comment, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { end(err) }()

	return s.getComment(s.db.WithContext(ctx), id)
}

func (s *Store) getComment(db *gorm.DB, id int64) (*domain.Comment, error) {
	var comment domain.Comment
	if err := db.Scopes(withActiveAuthor).First(&comment, id).Error; err != nil {
		return nil, notFound(err, "comment", id)
	}
	return &comment, nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id int64, content string) (updated *domain.Comment, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	res := s.db.WithContext(ctx).Model(&domain.Comment{}).Where("id = ?", id).Updates(map[string]any{
		"content":    content,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("comment with id %d: %w", id, domain.ErrNotFound)
	}
	return s.getComment(s.db.WithContext(ctx), id)
}

func (s *Store) DeleteComment(ctx context.Context, id int64) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationDelete)
	defer func() { end(err) }()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Ответы удаляются явно, не полагаясь на наличие внешнего ключа с каскадом
		if err := tx.Where("parent_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("comment with id %d: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

// === Pagination Methods ===

func (s *Store) ListComments(ctx context.Context, q storage.CommentQuery) (comments []*domain.Comment, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { end(err) }()

	query := s.db.WithContext(ctx).Scopes(withActiveAuthor)
	if q.PostID != 0 {
		query = query.Where("post_id = ?", q.PostID)
	}
	if q.ParentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *q.ParentID)
	}
	// Курсор - id последнего полученного комментария; новые записи его не сдвигают
	if q.Before != nil {
		query = query.Where("id < ?", *q.Before)
	}
	query = query.Order("id DESC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	err = query.Find(&comments).Error
	return comments, err
}

// === Dataloader Method ===

func (s *Store) CountRepliesByParentIDs(ctx context.Context, parentIDs []int64) (counts map[int64]int64, err error) {
	counts = make(map[int64]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}
	ctx, end := tracing.StartDBSpan(ctx, "comments", tracing.DBOperationQuery)
	defer func() { end(err) }()

	var rows []struct {
		ParentID int64
		N        int64
	}
	// Считаем ответы для всех родителей одним запросом
	err = s.db.WithContext(ctx).
		Model(&domain.Comment{}).
		Select("parent_id, COUNT(*) AS n").
		Where("parent_id IN ?", parentIDs).
		Group("parent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ParentID] = r.N
	}
	return counts, nil
}

// === Helpers ===

func withPostRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Language", "status = ?", domain.StatusActive).
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", domain.StatusActive).Order("categories.id")
		})
}

// withActiveAuthor подгружает автора комментария; выключенный автор остается nil.
func withActiveAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", "status = ?", domain.StatusActive)
}

// resolveCategories загружает категории по id без повторов или возвращает *MissingCategoriesError.
func resolveCategories(tx *gorm.DB, ids []int64) ([]domain.Category, error) {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, nil
	}

	var found []domain.Category
	if err := tx.Where("id IN ?", unique).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Category, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	cats := make([]domain.Category, 0, len(unique))
	var missing []int64
	for _, id := range unique {
		c, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		cats = append(cats, c)
	}
	if len(missing) > 0 {
		return nil, &storage.MissingCategoriesError{IDs: missing}
	}
	return cats, nil
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s with id %d: %w", entity, id, domain.ErrNotFound)
	}
	return err
}

// === SQL translation ===

const (
	titleDoc     = `posts.title`
	titleBodyDoc = `coalesce(posts.title, '') || ' ' || coalesce(posts.body, '')`
	authorDoc    = `u.display_name`
	matchNothing = `1 = 0`
)

func predicateSQL(pred storage.Predicate) (string, []any, error) {
	switch v := pred.(type) {
	case storage.IDEquals:
		return "posts.id = ?", []any{v.ID}, nil
	case storage.AuthorEquals:
		return "posts.author_id = ?", []any{v.AuthorID}, nil
	case storage.LanguageEquals:
		return "posts.language_id = ?", []any{v.LanguageID}, nil
	case storage.OriginalEquals:
		return "posts.original_id = ?", []any{v.OriginalID}, nil
	case storage.StatusEquals:
		return "posts.status = ?", []any{v.Status}, nil
	case storage.StatusNotEquals:
		return "posts.status <> ?", []any{v.Status}, nil
	case storage.LocaleEquals:
		return "posts.language_id IN (SELECT id FROM languages WHERE locale = ? AND status = ?)",
			[]any{v.Locale, domain.StatusActive}, nil
	case storage.Uncategorized:
		return `NOT EXISTS (SELECT 1 FROM post_categories pc JOIN categories c ON c.id = pc.category_id
			WHERE pc.post_id = posts.id AND c.status = ?)`, []any{domain.StatusActive}, nil
	case storage.CategoryMatch:
		if len(v.IDs) == 0 {
			return matchNothing, nil, nil
		}
		sub := `posts.id IN (SELECT pc.post_id FROM post_categories pc JOIN categories c ON c.id = pc.category_id
			WHERE c.status = ? AND pc.category_id IN ?`
		if !v.All {
			return sub + ")", []any{domain.StatusActive, v.IDs}, nil
		}
		return sub + " GROUP BY pc.post_id HAVING COUNT(DISTINCT pc.category_id) = ?)",
			[]any{domain.StatusActive, v.IDs, len(v.IDs)}, nil
	case storage.TextRelevance:
		return matchSQL(v)
	case storage.TextContains:
		pattern := "%" + storage.EscapeLike(v.Query) + "%"
		switch v.Target {
		case storage.TargetTitle:
			return "posts.title ILIKE ?", []any{pattern}, nil
		case storage.TargetTitleBody:
			return "(posts.title ILIKE ? OR posts.body ILIKE ?)", []any{pattern, pattern}, nil
		case storage.TargetAuthorName:
			return "EXISTS (SELECT 1 FROM users u WHERE u.id = posts.author_id AND u.display_name ILIKE ?)",
				[]any{pattern}, nil
		}
	}
	return "", nil, fmt.Errorf("postgres: unsupported predicate %#v", pred)
}

// tsQuery возвращает выражение tsquery и его аргумент; ok=false, если запрос не дает токенов.
func tsQuery(r storage.TextRelevance) (config, expr string, arg any, ok bool) {
	config = "english"
	if r.Target == storage.TargetAuthorName {
		config = "simple"
	}
	if r.Mode == storage.ModeBooleanPrefix {
		terms := storage.PrefixTerms(r.Query)
		if len(terms) == 0 {
			return config, "", nil, false
		}
		for i, t := range terms {
			terms[i] = t + ":*"
		}
		return config, fmt.Sprintf("to_tsquery('%s', ?)", config), strings.Join(terms, " & "), true
	}
	return config, fmt.Sprintf("plainto_tsquery('%s', ?)", config), r.Query, true
}

func matchSQL(r storage.TextRelevance) (string, []any, error) {
	config, q, arg, ok := tsQuery(r)
	if !ok {
		return matchNothing, nil, nil
	}
	switch r.Target {
	case storage.TargetTitle:
		return fmt.Sprintf("to_tsvector('%s', %s) @@ %s", config, titleDoc, q), []any{arg}, nil
	case storage.TargetTitleBody:
		return fmt.Sprintf("to_tsvector('%s', %s) @@ %s", config, titleBodyDoc, q), []any{arg}, nil
	case storage.TargetAuthorName:
		return fmt.Sprintf("EXISTS (SELECT 1 FROM users u WHERE u.id = posts.author_id AND to_tsvector('%s', %s) @@ %s)",
			config, authorDoc, q), []any{arg}, nil
	}
	return "", nil, fmt.Errorf("postgres: unsupported text target %d", r.Target)
}

func rankSQL(r storage.TextRelevance) (string, []any) {
	config, q, arg, ok := tsQuery(r)
	if !ok {
		return "0", nil
	}
	switch r.Target {
	case storage.TargetTitle:
		return fmt.Sprintf("ts_rank(to_tsvector('%s', %s), %s)", config, titleDoc, q), []any{arg}
	case storage.TargetTitleBody:
		return fmt.Sprintf("ts_rank(to_tsvector('%s', %s), %s)", config, titleBodyDoc, q), []any{arg}
	default:
		return fmt.Sprintf("coalesce((SELECT ts_rank(to_tsvector('%s', %s), %s) FROM users u WHERE u.id = posts.author_id), 0)",
			config, authorDoc, q), []any{arg}
	}
}

func orderClause(q storage.PostQuery) clause.OrderBy {
	var parts []string
	var vars []any
	for _, r := range q.RankBy {
		sql, args := rankSQL(r)
		parts = append(parts, sql+" DESC")
		vars = append(vars, args...)
	}
	switch q.Sort {
	case storage.SortDateAsc:
		parts = append(parts, "posts.created_at ASC", "posts.id ASC")
	case storage.SortDateDesc:
		parts = append(parts, "posts.created_at DESC", "posts.id DESC")
	case storage.SortTitleAsc:
		parts = append(parts, "lower(posts.title) ASC", "posts.id ASC")
	case storage.SortTitleDesc:
		parts = append(parts, "lower(posts.title) DESC", "posts.id DESC")
	default:
		parts = append(parts, "posts.id DESC")
	}
	return clause.OrderBy{Expression: clause.Expr{SQL: strings.Join(parts, ", "), Vars: vars, WithoutParentheses: true}}
}
