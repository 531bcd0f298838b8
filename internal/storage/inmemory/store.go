package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
)

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu             sync.RWMutex
	users          map[int64]*domain.User
	languages      map[int64]*domain.Language
	categories     map[int64]*domain.Category
	posts          map[int64]*domain.Post
	postCategories map[int64][]int64 // map[postID][]categoryID
	comments       map[int64]*domain.Comment

	lastPostID    int64
	lastCommentID int64
	lastRefID     int64 // пользователи, языки, категории
	now           func() time.Time
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{
		users:          make(map[int64]*domain.User),
		languages:      make(map[int64]*domain.Language),
		categories:     make(map[int64]*domain.Category),
		posts:          make(map[int64]*domain.Post),
		postCategories: make(map[int64][]int64),
		comments:       make(map[int64]*domain.Comment),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

var _ storage.Storage = (*Store)(nil)

// === Справочники ===
// Пользователи, языки и категории принадлежат внешним модулям; здесь только наполнение.

func (s *Store) AddUser(u domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.refID(u.ID)
	if u.Status == "" {
		u.Status = domain.StatusActive
	}
	s.users[u.ID] = &u
	cp := u
	return &cp
}

func (s *Store) AddLanguage(l domain.Language) *domain.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.refID(l.ID)
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	s.languages[l.ID] = &l
	cp := l
	return &cp
}

func (s *Store) AddCategory(c domain.Category) *domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.refID(c.ID)
	if c.Status == "" {
		c.Status = domain.StatusActive
	}
	s.categories[c.ID] = &c
	cp := c
	return &cp
}

func (s *Store) refID(id int64) int64 {
	if id == 0 {
		s.lastRefID++
		return s.lastRefID
	}
	if id > s.lastRefID {
		s.lastRefID = id
	}
	return id
}

// === Post Methods ===

func (s *Store) SearchPosts(ctx context.Context, q storage.PostQuery) ([]*domain.Post, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type ranked struct {
		post  *domain.Post
		ranks []float64
	}
	var matched []ranked

	for _, p := range s.posts {
		ok, err := s.matchesAll(p, q.Where)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		ranks := make([]float64, len(q.RankBy))
		for i, r := range q.RankBy {
			ranks[i] = s.relevance(p, r)
		}
		matched = append(matched, ranked{post: p, ranks: ranks})
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		for k := range a.ranks {
			if a.ranks[k] != b.ranks[k] {
				return a.ranks[k] > b.ranks[k]
			}
		}
		if c := comparePosts(a.post, b.post, q.Sort); c != 0 {
			return c < 0
		}
		return a.post.ID > b.post.ID
	})

	total := int64(len(matched))
	start := q.Offset
	if start >= len(matched) {
		return []*domain.Post{}, total, nil
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	result := make([]*domain.Post, 0, end-start)
	for _, m := range matched[start:end] {
		result = append(result, s.hydratePost(m.post))
	}
	return result, total, nil
}

func (s *Store) GetPostByID(ctx context.Context, id int64) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %d: %w", id, domain.ErrNotFound)
	}
	return s.hydratePost(post), nil
}

func (s *Store) CountTranslations(ctx context.Context, originalID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.posts {
		if p.OriginalID != nil && *p.OriginalID == originalID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetLanguageByID(ctx context.Context, id int64) (*domain.Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lang, ok := s.languages[id]
	if !ok {
		return nil, fmt.Errorf("language with id %d: %w", id, domain.ErrNotFound)
	}
	cp := *lang
	return &cp, nil
}

func (s *Store) CreatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.resolveCategories(categoryIDs)
	if err != nil {
		return nil, err
	}

	s.lastPostID++
	now := s.now()
	row := domain.Post{
		ID:         s.lastPostID,
		Title:      post.Title,
		Body:       post.Body,
		Status:     post.Status,
		AuthorID:   post.AuthorID,
		LanguageID: post.LanguageID,
		OriginalID: copyID(post.OriginalID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.posts[row.ID] = &row
	s.postCategories[row.ID] = cats
	return s.hydratePost(&row), nil
}

func (s *Store) UpdatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[post.ID]
	if !ok {
		return nil, fmt.Errorf("post with id %d: %w", post.ID, domain.ErrNotFound)
	}
	// Категории проверяются до любых изменений строки.
	cats, err := s.resolveCategories(categoryIDs)
	if err != nil {
		return nil, err
	}

	existing.Title = post.Title
	existing.Body = post.Body
	existing.Status = post.Status
	existing.LanguageID = post.LanguageID
	existing.OriginalID = copyID(post.OriginalID)
	existing.UpdatedAt = s.now()
	s.postCategories[existing.ID] = cats
	return s.hydratePost(existing), nil
}

func (s *Store) SetPostStatus(ctx context.Context, id int64, status domain.PostStatus) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post with id %d: %w", id, domain.ErrNotFound)
	}
	post.Status = status
	post.UpdatedAt = s.now()
	return s.hydratePost(post), nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, fmt.Errorf("post with id %d: %w", comment.PostID, domain.ErrNotFound)
	}
	if comment.ParentID != nil {
		if _, ok := s.comments[*comment.ParentID]; !ok {
			return nil, fmt.Errorf("parent comment %d: %w", *comment.ParentID, domain.ErrNotFound)
		}
	}

	s.lastCommentID++
	now := s.now()
	row := domain.Comment{
		ID:        s.lastCommentID,
		PostID:    comment.PostID,
		ParentID:  copyID(comment.ParentID),
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.comments[row.ID] = &row
	return s.hydrateComment(&row), nil
}

func (s *Store) GetCommentByID(ctx context.Context, id int64) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment with id %d: %w", id, domain.ErrNotFound)
	}
	return s.hydrateComment(comment), nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id int64, content string) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment with id %d: %w", id, domain.ErrNotFound)
	}
	comment.Content = content
	comment.UpdatedAt = s.now()
	return s.hydrateComment(comment), nil
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return fmt.Errorf("comment with id %d: %w", id, domain.ErrNotFound)
	}
	delete(s.comments, id)
	// Каскадное удаление ответов, как ON DELETE CASCADE в базе.
	for cid, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

// === Pagination Methods ===

func (s *Store) ListComments(ctx context.Context, q storage.CommentQuery) ([]*domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var page []*domain.Comment
	for _, c := range s.comments {
		if q.PostID != 0 && c.PostID != q.PostID {
			continue
		}
		if q.ParentID == nil {
			if c.ParentID != nil {
				continue
			}
		} else if c.ParentID == nil || *c.ParentID != *q.ParentID {
			continue
		}
		if q.Before != nil && c.ID >= *q.Before {
			continue
		}
		page = append(page, c)
	}

	sort.Slice(page, func(i, j int) bool { return page[i].ID > page[j].ID })
	if q.Limit > 0 && len(page) > q.Limit {
		page = page[:q.Limit]
	}

	result := make([]*domain.Comment, len(page))
	for i, c := range page {
		result[i] = s.hydrateComment(c)
	}
	return result, nil
}

// === Dataloader Methods ===

func (s *Store) CountRepliesByParentIDs(ctx context.Context, parentIDs []int64) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = struct{}{}
	}
	counts := make(map[int64]int64, len(parentIDs))
	for _, c := range s.comments {
		if c.ParentID == nil {
			continue
		}
		if _, ok := wanted[*c.ParentID]; ok {
			counts[*c.ParentID]++
		}
	}
	return counts, nil
}

// === Внутренние помощники (вызываются под мьютексом) ===

func (s *Store) matchesAll(p *domain.Post, preds []storage.Predicate) (bool, error) {
	for _, pred := range preds {
		ok, err := s.matches(p, pred)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) matches(p *domain.Post, pred storage.Predicate) (bool, error) {
	switch v := pred.(type) {
	case storage.IDEquals:
		return p.ID == v.ID, nil
	case storage.AuthorEquals:
		return p.AuthorID == v.AuthorID, nil
	case storage.LanguageEquals:
		return p.LanguageID == v.LanguageID, nil
	case storage.OriginalEquals:
		return p.OriginalID != nil && *p.OriginalID == v.OriginalID, nil
	case storage.StatusEquals:
		return p.Status == v.Status, nil
	case storage.StatusNotEquals:
		return p.Status != v.Status, nil
	case storage.LocaleEquals:
		lang, ok := s.languages[p.LanguageID]
		return ok && lang.Status == domain.StatusActive && lang.Locale == v.Locale, nil
	case storage.Uncategorized:
		return len(s.activeCategoryIDs(p.ID)) == 0, nil
	case storage.CategoryMatch:
		active := make(map[int64]struct{})
		for _, id := range s.activeCategoryIDs(p.ID) {
			active[id] = struct{}{}
		}
		hits := 0
		for _, id := range v.IDs {
			if _, ok := active[id]; ok {
				hits++
			}
		}
		if v.All {
			return len(v.IDs) > 0 && hits == len(v.IDs), nil
		}
		return hits > 0, nil
	case storage.TextRelevance:
		return s.relevance(p, v) > 0, nil
	case storage.TextContains:
		needle := strings.ToLower(v.Query)
		for _, text := range s.targetTexts(p, v.Target) {
			if strings.Contains(strings.ToLower(text), needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("inmemory: unsupported predicate %T", pred)
	}
}

func (s *Store) relevance(p *domain.Post, r storage.TextRelevance) float64 {
	texts := s.targetTexts(p, r.Target)
	if len(texts) == 0 {
		return 0
	}
	if r.Mode == storage.ModeBooleanPrefix {
		return prefixScore(r.Query, strings.Join(texts, " "))
	}
	return naturalScore(r.Query, texts...)
}

func (s *Store) targetTexts(p *domain.Post, target storage.TextTarget) []string {
	switch target {
	case storage.TargetTitle:
		return []string{p.Title}
	case storage.TargetTitleBody:
		return []string{p.Title, p.Body}
	case storage.TargetAuthorName:
		if u, ok := s.users[p.AuthorID]; ok {
			return []string{u.DisplayName}
		}
	}
	return nil
}

func (s *Store) activeCategoryIDs(postID int64) []int64 {
	var ids []int64
	for _, id := range s.postCategories[postID] {
		if c, ok := s.categories[id]; ok && c.Status == domain.StatusActive {
			ids = append(ids, id)
		}
	}
	return ids
}

// resolveCategories проверяет существование всех категорий и убирает повторы.
func (s *Store) resolveCategories(ids []int64) ([]int64, error) {
	seen := make(map[int64]struct{}, len(ids))
	resolved := make([]int64, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := s.categories[id]; !ok {
			missing = append(missing, id)
			continue
		}
		resolved = append(resolved, id)
	}
	if len(missing) > 0 {
		return nil, &storage.MissingCategoriesError{IDs: missing}
	}
	return resolved, nil
}

func (s *Store) hydratePost(p *domain.Post) *domain.Post {
	cp := *p
	cp.OriginalID = copyID(p.OriginalID)
	if u, ok := s.users[p.AuthorID]; ok {
		author := *u
		cp.Author = &author
	}
	if lang, ok := s.languages[p.LanguageID]; ok && lang.Status == domain.StatusActive {
		l := *lang
		cp.Language = &l
	}
	cp.Categories = []domain.Category{}
	ids := s.activeCategoryIDs(p.ID)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cp.Categories = append(cp.Categories, *s.categories[id])
	}
	return &cp
}

// hydrateComment присоединяет автора как LEFT JOIN: отсутствующий или выключенный автор дает nil.
func (s *Store) hydrateComment(c *domain.Comment) *domain.Comment {
	cp := *c
	cp.ParentID = copyID(c.ParentID)
	cp.Author = nil
	if u, ok := s.users[c.AuthorID]; ok && u.Status == domain.StatusActive {
		author := *u
		cp.Author = &author
	}
	return &cp
}

// comparePosts возвращает <0, если a идет раньше b при явной сортировке.
func comparePosts(a, b *domain.Post, order storage.SortOrder) int {
	switch order {
	case storage.SortDateAsc:
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmpID(a.ID, b.ID)
	case storage.SortDateDesc:
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpID(b.ID, a.ID)
	case storage.SortTitleAsc:
		if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return cmpID(a.ID, b.ID)
	case storage.SortTitleDesc:
		if c := strings.Compare(strings.ToLower(b.Title), strings.ToLower(a.Title)); c != 0 {
			return c
		}
		return cmpID(b.ID, a.ID)
	}
	return 0
}

func cmpID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
