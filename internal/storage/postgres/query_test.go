package postgres

import (
	"testing"

	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestPredicateSQL_Categories(t *testing.T) {
	sql, args, err := predicateSQL(storage.CategoryMatch{IDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.NotContains(t, sql, "HAVING")
	assert.Equal(t, []any{domain.StatusActive, []int64{1, 2}}, args)

	sql, args, err = predicateSQL(storage.CategoryMatch{IDs: []int64{1, 2}, All: true})
	require.NoError(t, err)
	assert.Contains(t, sql, "HAVING COUNT(DISTINCT pc.category_id) = ?")
	assert.Equal(t, []any{domain.StatusActive, []int64{1, 2}, 2}, args)

	sql, _, err = predicateSQL(storage.CategoryMatch{})
	require.NoError(t, err)
	assert.Equal(t, matchNothing, sql)

	sql, _, err = predicateSQL(storage.Uncategorized{})
	require.NoError(t, err)
	assert.Contains(t, sql, "NOT EXISTS")
}

func TestPredicateSQL_Text(t *testing.T) {
	sql, args, err := predicateSQL(storage.TextRelevance{Target: storage.TargetAuthorName, Mode: storage.ModeBooleanPrefix, Query: "Jane  jane D!"})
	require.NoError(t, err)
	assert.Contains(t, sql, "to_tsquery('simple', ?)")
	assert.Equal(t, []any{"jane:* & d:*"}, args)

	sql, _, err = predicateSQL(storage.TextRelevance{Target: storage.TargetAuthorName, Mode: storage.ModeBooleanPrefix, Query: "!!"})
	require.NoError(t, err)
	assert.Equal(t, matchNothing, sql)

	sql, args, err = predicateSQL(storage.TextRelevance{Target: storage.TargetTitleBody, Mode: storage.ModeNatural, Query: "quick fox"})
	require.NoError(t, err)
	assert.Contains(t, sql, "plainto_tsquery('english', ?)")
	assert.Equal(t, []any{"quick fox"}, args)

	sql, args, err = predicateSQL(storage.TextContains{Target: storage.TargetTitleBody, Query: "50%_off"})
	require.NoError(t, err)
	assert.Equal(t, "(posts.title ILIKE ? OR posts.body ILIKE ?)", sql)
	assert.Equal(t, []any{`%50\%\_off%`, `%50\%\_off%`}, args)
}

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name string
		q    storage.PostQuery
		want string
	}{
		{"default", storage.PostQuery{}, "posts.id DESC"},
		{"date asc", storage.PostQuery{Sort: storage.SortDateAsc}, "posts.created_at ASC, posts.id ASC"},
		{"title desc", storage.PostQuery{Sort: storage.SortTitleDesc}, "lower(posts.title) DESC, posts.id DESC"},
		{
			"ranked",
			storage.PostQuery{RankBy: []storage.TextRelevance{{Target: storage.TargetTitle, Query: "fox"}}},
			"ts_rank(to_tsvector('english', posts.title), plainto_tsquery('english', ?)) DESC, posts.id DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, ok := orderClause(tt.q).Expression.(clause.Expr)
			require.True(t, ok)
			assert.Equal(t, tt.want, expr.SQL)
			assert.Len(t, expr.Vars, len(tt.q.RankBy))
		})
	}
}
