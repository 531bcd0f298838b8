package inmemory

import (
	"unicode/utf8"

	"github.com/UkralStul/content-engine/internal/storage"
)

// minTermLen - слова короче не индексируются полнотекстовым поиском.
const minTermLen = 3

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "who": {}, "will": {}, "with": {},
}

// naturalScore - релевантность в режиме естественного языка:
// сумма вхождений значимых слов запроса в документ целыми словами.
func naturalScore(query string, docs ...string) float64 {
	terms := make(map[string]struct{})
	for _, tok := range storage.Tokenize(query) {
		if utf8.RuneCountInString(tok) < minTermLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		terms[tok] = struct{}{}
	}
	if len(terms) == 0 {
		return 0
	}

	var score float64
	for _, doc := range docs {
		for _, word := range storage.Tokenize(doc) {
			if _, ok := terms[word]; ok {
				score++
			}
		}
	}
	return score
}

// prefixScore - булев режим: каждый токен обязателен и должен быть префиксом какого-либо слова.
func prefixScore(query string, doc string) float64 {
	terms := storage.PrefixTerms(query)
	if len(terms) == 0 {
		return 0
	}
	words := storage.Tokenize(doc)
	for _, term := range terms {
		if !anyHasPrefix(words, term) {
			return 0
		}
	}
	return float64(len(terms))
}

func anyHasPrefix(words []string, prefix string) bool {
	for _, w := range words {
		if len(w) >= len(prefix) && w[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
