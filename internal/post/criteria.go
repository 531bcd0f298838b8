package post

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// CategoryOther - значение фильтра категорий "без активных категорий".
	CategoryOther = "other"
)

// CategorySelector - выбор по категориям: либо "other", либо набор id.
type CategorySelector struct {
	Uncategorized bool
	IDs           []int64
}

// IsZero сообщает, что фильтр по категориям не задан.
func (s CategorySelector) IsZero() bool {
	return !s.Uncategorized && len(s.IDs) == 0
}

// ParseCategorySelector разбирает "other" или список id через запятую.
func ParseCategorySelector(raw string) (CategorySelector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CategorySelector{}, nil
	}
	if strings.EqualFold(raw, CategoryOther) {
		return CategorySelector{Uncategorized: true}, nil
	}
	var sel CategorySelector
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return CategorySelector{}, fmt.Errorf("category id %q: %w", part, domain.ErrInvalidArgument)
		}
		sel.IDs = append(sel.IDs, id)
	}
	return sel, nil
}

// Criteria - параметры поиска постов. Нулевые значения означают "фильтр не задан".
type Criteria struct {
	AuthorID   int64
	LanguageID int64
	OriginalID int64
	Status     domain.PostStatus // пусто - любой статус, кроме disabled
	Locale     string
	AuthorName string
	Title      string
	Text       string
	Categories CategorySelector
	MatchAll   bool
	Sort       storage.SortOrder
	Page       int
	Limit      int
}

// hasFreeText сообщает, задан ли текстовый фильтр, допускающий запасной поиск по подстроке.
func (c Criteria) hasFreeText() bool {
	return c.Title != "" || c.Text != ""
}

func (c Criteria) offset() int {
	return (c.Page - 1) * c.Limit
}

// Limits - размеры страницы поиска.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) withDefaults() Limits {
	if l.Max <= 0 || l.Max > MaxLimit {
		l.Max = MaxLimit
	}
	if l.Default <= 0 {
		l.Default = DefaultLimit
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// normalize проверяет критерии и приводит их к каноническому виду.
func (c Criteria) normalize(limits Limits) (Criteria, error) {
	limits = limits.withDefaults()

	if c.AuthorID < 0 || c.LanguageID < 0 || c.OriginalID < 0 {
		return c, fmt.Errorf("ids must be positive: %w", domain.ErrInvalidArgument)
	}
	if c.Status != "" && !c.Status.Valid() {
		return c, fmt.Errorf("unknown status %q: %w", c.Status, domain.ErrInvalidArgument)
	}
	if c.Sort != "" && !c.Sort.Valid() {
		return c, fmt.Errorf("unknown sort %q: %w", c.Sort, domain.ErrInvalidArgument)
	}
	if c.Page < 0 {
		return c, fmt.Errorf("page must not be negative: %w", domain.ErrInvalidArgument)
	}
	if c.Limit < 0 {
		return c, fmt.Errorf("limit must not be negative: %w", domain.ErrInvalidArgument)
	}
	if c.Page == 0 {
		c.Page = 1
	}
	switch {
	case c.Limit == 0:
		c.Limit = limits.Default
	case c.Limit > limits.Max:
		c.Limit = limits.Max
	}

	c.Locale = strings.TrimSpace(c.Locale)
	c.AuthorName = strings.TrimSpace(c.AuthorName)
	c.Title = strings.TrimSpace(c.Title)
	c.Text = strings.TrimSpace(c.Text)

	if c.Categories.Uncategorized && len(c.Categories.IDs) > 0 {
		return c, fmt.Errorf("category filter is either %q or a list of ids: %w", CategoryOther, domain.ErrInvalidArgument)
	}
	ids, err := dedupeIDs(c.Categories.IDs)
	if err != nil {
		return c, err
	}
	c.Categories.IDs = ids
	return c, nil
}

// dedupeIDs убирает повторы, сохраняя порядок первого появления.
// Без этого условие "все категории" с повтором в запросе не выполнялось бы никогда.
func dedupeIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("category id %d: %w", id, domain.ErrInvalidArgument)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
