package storage

import (
	"strings"
	"unicode"
)

// Tokenize разбивает текст на слова в нижнем регистре по всем не-буквенно-цифровым символам.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// PrefixTerms возвращает уникальные токены запроса для булевого префиксного режима.
func PrefixTerms(query string) []string {
	tokens := Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	terms := tokens[:0]
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// EscapeLike экранирует спецсимволы шаблона LIKE.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
