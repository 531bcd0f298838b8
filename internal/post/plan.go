package post

import (
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"
)

// filter переводит часть критериев в независимые фрагменты условия.
// Фрагменты всех фильтров объединяются через AND.
type filter func(Criteria) []storage.Predicate

func scalarFilters(c Criteria) []storage.Predicate {
	var preds []storage.Predicate
	if c.AuthorID > 0 {
		preds = append(preds, storage.AuthorEquals{AuthorID: c.AuthorID})
	}
	if c.LanguageID > 0 {
		preds = append(preds, storage.LanguageEquals{LanguageID: c.LanguageID})
	}
	if c.OriginalID > 0 {
		preds = append(preds, storage.OriginalEquals{OriginalID: c.OriginalID})
	}
	return preds
}

// statusFilter: выключенные посты видны только при явном запросе статуса.
func statusFilter(c Criteria) []storage.Predicate {
	if c.Status == "" {
		return []storage.Predicate{storage.StatusNotEquals{Status: domain.PostStatusDisabled}}
	}
	return []storage.Predicate{storage.StatusEquals{Status: c.Status}}
}

func localeFilter(c Criteria) []storage.Predicate {
	if c.Locale == "" {
		return nil
	}
	return []storage.Predicate{storage.LocaleEquals{Locale: c.Locale}}
}

func categoryFilter(c Criteria) []storage.Predicate {
	switch {
	case c.Categories.Uncategorized:
		return []storage.Predicate{storage.Uncategorized{}}
	case len(c.Categories.IDs) > 0:
		return []storage.Predicate{storage.CategoryMatch{IDs: c.Categories.IDs, All: c.MatchAll}}
	}
	return nil
}

// authorNameFilter участвует в обеих фазах: в запасной фазе теряется только порядок по релевантности.
func authorNameFilter(c Criteria) []storage.Predicate {
	if r, ok := authorNameRelevance(c); ok {
		return []storage.Predicate{r}
	}
	return nil
}

func relevanceFilters(c Criteria) []storage.Predicate {
	var preds []storage.Predicate
	for _, r := range textRelevance(c) {
		preds = append(preds, r)
	}
	return preds
}

func substringFilters(c Criteria) []storage.Predicate {
	var preds []storage.Predicate
	if c.Title != "" {
		preds = append(preds, storage.TextContains{Target: storage.TargetTitle, Query: c.Title})
	}
	if c.Text != "" {
		preds = append(preds, storage.TextContains{Target: storage.TargetTitleBody, Query: c.Text})
	}
	return preds
}

func textRelevance(c Criteria) []storage.TextRelevance {
	var rs []storage.TextRelevance
	if c.Title != "" {
		rs = append(rs, storage.TextRelevance{Target: storage.TargetTitle, Mode: storage.ModeNatural, Query: c.Title})
	}
	if c.Text != "" {
		rs = append(rs, storage.TextRelevance{Target: storage.TargetTitleBody, Mode: storage.ModeNatural, Query: c.Text})
	}
	return rs
}

func authorNameRelevance(c Criteria) (storage.TextRelevance, bool) {
	if c.AuthorName == "" {
		return storage.TextRelevance{}, false
	}
	return storage.TextRelevance{Target: storage.TargetAuthorName, Mode: storage.ModeBooleanPrefix, Query: c.AuthorName}, true
}

var baseFilters = []filter{scalarFilters, statusFilter, localeFilter, categoryFilter, authorNameFilter}

// compose собирает базовые фильтры и фильтр текста конкретной фазы.
func compose(c Criteria, text filter) []storage.Predicate {
	var where []storage.Predicate
	for _, f := range baseFilters {
		where = append(where, f(c)...)
	}
	return append(where, text(c)...)
}

// rankedPlan - первая фаза: полнотекстовое совпадение обязательно, порядок по релевантности.
func rankedPlan(c Criteria) storage.PostQuery {
	rank := textRelevance(c)
	if r, ok := authorNameRelevance(c); ok {
		rank = append(rank, r)
	}
	sort := c.Sort
	if sort == "" && len(rank) == 0 {
		sort = storage.SortDateDesc
	}
	return storage.PostQuery{
		Where:  compose(c, relevanceFilters),
		RankBy: rank,
		Sort:   sort,
		Limit:  c.Limit,
		Offset: c.offset(),
	}
}

// fallbackPlan - вторая фаза: вхождение подстроки вместо релевантности, без ранжирования.
func fallbackPlan(c Criteria) storage.PostQuery {
	sort := c.Sort
	if sort == "" {
		sort = storage.SortDateDesc
	}
	return storage.PostQuery{
		Where:  compose(c, substringFilters),
		Sort:   sort,
		Limit:  c.Limit,
		Offset: c.offset(),
	}
}
