package storage

import (
	"fmt"

	"github.com/UkralStul/content-engine/internal/domain"
)

// Predicate - независимый фрагмент условия выборки постов.
// Фрагменты запроса объединяются через AND; каждое хранилище переводит их по-своему.
type Predicate interface {
	isPredicate()
}

// TextTarget - набор индексированных колонок для текстового поиска.
type TextTarget int

const (
	TargetTitle      TextTarget = iota // posts.title
	TargetTitleBody                    // posts.title + posts.body
	TargetAuthorName                   // users.display_name автора
)

// TextMode - режим оценки релевантности.
type TextMode int

const (
	// ModeNatural - естественный язык: короткие слова и стоп-слова не участвуют.
	ModeNatural TextMode = iota
	// ModeBooleanPrefix - каждый токен запроса обязателен и совпадает как префикс слова.
	ModeBooleanPrefix
)

// SortOrder - явная сортировка результатов поиска.
type SortOrder string

const (
	SortDateAsc   SortOrder = "date_asc"
	SortDateDesc  SortOrder = "date_desc"
	SortTitleAsc  SortOrder = "title_asc"
	SortTitleDesc SortOrder = "title_desc"
)

// Valid сообщает, является ли сортировка известной.
func (s SortOrder) Valid() bool {
	switch s {
	case SortDateAsc, SortDateDesc, SortTitleAsc, SortTitleDesc:
		return true
	}
	return false
}

type (
	IDEquals         struct{ ID int64 }
	AuthorEquals     struct{ AuthorID int64 }
	LanguageEquals   struct{ LanguageID int64 }
	OriginalEquals   struct{ OriginalID int64 }
	StatusEquals     struct{ Status domain.PostStatus }
	StatusNotEquals  struct{ Status domain.PostStatus }
	LocaleEquals     struct{ Locale string } // только активные языки
	Uncategorized    struct{}                // нет ни одной активной категории
	CategoryMatch    struct {
		IDs []int64 // без повторов
		All bool    // true - все категории, false - хотя бы одна
	}
	// TextRelevance требует положительной релевантности запроса Query по колонкам Target.
	TextRelevance struct {
		Target TextTarget
		Mode   TextMode
		Query  string
	}
	// TextContains - регистронезависимое вхождение подстроки.
	TextContains struct {
		Target TextTarget
		Query  string
	}
)

func (IDEquals) isPredicate()        {}
func (AuthorEquals) isPredicate()    {}
func (LanguageEquals) isPredicate()  {}
func (OriginalEquals) isPredicate()  {}
func (StatusEquals) isPredicate()    {}
func (StatusNotEquals) isPredicate() {}
func (LocaleEquals) isPredicate()    {}
func (Uncategorized) isPredicate()   {}
func (CategoryMatch) isPredicate()   {}
func (TextRelevance) isPredicate()   {}
func (TextContains) isPredicate()    {}

// PostQuery - собранный план выборки постов.
// Where объединяются через AND. RankBy упорядочивает по убыванию релевантности
// в порядке приоритета, затем применяется Sort (если задан), затем id по убыванию.
type PostQuery struct {
	Where  []Predicate
	RankBy []TextRelevance
	Sort   SortOrder
	Limit  int
	Offset int
}

// MissingCategoriesError возвращается, когда часть идентификаторов категорий не найдена.
type MissingCategoriesError struct {
	IDs []int64
}

func (e *MissingCategoriesError) Error() string {
	return fmt.Sprintf("unknown category ids: %v", e.IDs)
}

// Unwrap позволяет errors.Is(err, domain.ErrInvalidArgument).
func (e *MissingCategoriesError) Unwrap() error {
	return domain.ErrInvalidArgument
}
