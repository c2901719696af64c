package joinql_test

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/clause"
)

func TestCriteriaBuilderClauses(t *testing.T) {
	tests := []struct {
		name     string
		build    func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "default select",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d")
			},
			wantSQL: "SELECT d FROM Document d",
		},
		{
			name: "distinct",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").Select("d.name").Distinct()
			},
			wantSQL: "SELECT DISTINCT d.name FROM Document d",
		},
		{
			name: "limit and offset",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").Limit(10).Offset(20)
			},
			wantSQL: "SELECT d FROM Document d LIMIT 10 OFFSET 20",
		},
		{
			name: "select alias in order by",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").
					SelectAs("d.owner.name", "ownerName").
					OrderByAsc("ownerName")
			},
			wantSQL: "SELECT owner_1.name AS ownerName FROM Document d LEFT JOIN d.owner owner_1 ORDER BY owner_1.name",
		},
		{
			name: "implied group by",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").Select("d.owner.name", "COUNT(d.id)")
			},
			wantSQL: "SELECT owner_1.name, COUNT(d.id) FROM Document d LEFT JOIN d.owner owner_1 GROUP BY owner_1.name",
		},
		{
			name: "group by entity expands to id",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").Select("d.owner", "COUNT(d.id)")
			},
			wantSQL: "SELECT owner_1, COUNT(d.id) FROM Document d LEFT JOIN d.owner owner_1 GROUP BY owner_1.id",
		},
		{
			name: "having",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").
					Select("d.owner.name", "COUNT(d.id)").
					Having("COUNT(d.id)").Gt(5)
			},
			wantSQL:  "SELECT owner_1.name, COUNT(d.id) FROM Document d LEFT JOIN d.owner owner_1 GROUP BY owner_1.name HAVING COUNT(d.id) > ?1",
			wantArgs: []any{5},
		},
		{
			name: "order by descending",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.From("Document", "d").OrderByDesc("d.age").OrderByAsc("d.id")
			},
			wantSQL: "SELECT d FROM Document d ORDER BY d.age DESC, d.id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := tt.build(newBuilder(joinql.JPA))
			query, args := mustBuild(t, cb)
			assert.Equal(t, tt.wantSQL, query)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestCriteriaBuilderStickyError(t *testing.T) {
	cb := newBuilder(joinql.JPA).
		From("Nope", "n").
		Where("n.name").Eq("x").
		OrderByAsc("n.id")
	assert.ErrorIs(t, cb.Err(), joinql.ErrUnknownEntity)

	_, _, err := cb.Build()
	assert.ErrorIs(t, err, joinql.ErrUnknownEntity)

	copied := cb.Copy()
	assert.ErrorIs(t, copied.Err(), joinql.ErrUnknownEntity)
}

func TestSelectAliasDereference(t *testing.T) {
	cb := newBuilder(joinql.JPA).
		From("Document", "d").
		SelectAs("d.owner.name", "ownerName").
		Where("ownerName.length").Eq(1)
	assert.ErrorIs(t, cb.Err(), joinql.ErrSelectAliasDereference)
}

func TestInSubquery(t *testing.T) {
	cb := newBuilder(joinql.JPA).From("Document", "d")
	sub := cb.Subquery().
		From("Person", "p").
		Select("p.id").
		Where("p.age").Gt(65)
	cb.Where("d.owner.id").InExpression(sub)

	query, args, err := sub.Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT p.id FROM Person p WHERE p.age > ?", query)
	assert.Equal(t, []any{65}, args)

	query, args = mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d LEFT JOIN d.owner owner_1 WHERE owner_1.id IN (SELECT p.id FROM Person p WHERE p.age > ?1)", query)
	assert.Equal(t, []any{65}, args)
	assert.Same(t, cb, sub.Parent())
}

func TestSubqueryErrorSurfacesInOuterQuery(t *testing.T) {
	cb := newBuilder(joinql.JPA).From("Document", "d")
	sub := cb.Subquery().From("Nope", "n")
	cb.WhereExpr(joinql.Exists(sub))

	_, _, err := cb.Build()
	assert.ErrorIs(t, err, joinql.ErrUnknownEntity)
}

func TestBuildCount(t *testing.T) {
	cb := newBuilder(joinql.JPA).
		From("Document", "d").
		Select("d.owner.name").
		LeftJoin("d.versions", "v").
		Where("d.age").Gt(18).
		OrderByAsc("d.owner.age")

	query, args, err := cb.BuildCount()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(DISTINCT d) FROM Document d LEFT JOIN d.versions v WHERE d.age > ?1", query)
	assert.Equal(t, []any{18}, args)

	// the full query still joins the owner
	query, _ = mustBuild(t, cb)
	assert.Contains(t, query, "LEFT JOIN d.owner owner_1")

	grouped := newBuilder(joinql.JPA).
		From("Document", "d").
		Select("d.name", "COUNT(d.id)").
		GroupBy("d.name")
	_, _, err = grouped.BuildCount()
	assert.ErrorIs(t, err, joinql.ErrInvalidExpression)
}

func TestBuildCountKeepsJoinsOfSubqueries(t *testing.T) {
	t.Run("subquery attached after its paths", func(t *testing.T) {
		cb := newBuilder(joinql.JPA).From("Document", "d")
		sub := cb.Subquery().From("Person", "p").Select("d.owner.name")
		cb.Where("d.name").InExpression(sub)

		query, _, err := cb.BuildCount()
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(DISTINCT d) FROM Document d LEFT JOIN d.owner owner_1 WHERE d.name IN (SELECT owner_1.name FROM Person p)", query)

		owner := nodeByAlias(t, cb.JoinManager(), "owner_1")
		assert.Equal(t, joinql.ClauseWhere, owner.ClauseDependencies())

		cb.JoinManager().RemoveSelectOnlyNodes([]clause.NodeID{owner.ID()})
		assert.False(t, owner.IsRemoved())
	})

	t.Run("subquery attached before its paths", func(t *testing.T) {
		cb := newBuilder(joinql.JPA).From("Document", "d")
		sub := cb.Subquery().From("Person", "p")
		cb.WhereExpr(joinql.Exists(sub))
		sub.Where("p.age").EqExpression("d.owner.age")

		query, _, err := cb.BuildCount()
		require.NoError(t, err)
		assert.Equal(t, "SELECT COUNT(DISTINCT d) FROM Document d LEFT JOIN d.owner owner_1 WHERE EXISTS (SELECT p FROM Person p WHERE p.age = owner_1.age)", query)
	})
}

func TestCopy(t *testing.T) {
	base := newBuilder(joinql.JPA).
		From("Document", "d").
		Where("d.owner.name").Eq("Alice")
	baseSQL, baseArgs := mustBuild(t, base)

	page := base.Copy().OrderByAsc("d.id").Limit(10)
	require.NoError(t, page.Err())
	assert.NotEqual(t, base.ID(), page.ID())

	query, args := mustBuild(t, page)
	assert.Equal(t, "SELECT d FROM Document d LEFT JOIN d.owner owner_1 WHERE owner_1.name = ?1 ORDER BY d.id LIMIT 10", query)
	assert.Equal(t, []any{"Alice"}, args)

	// the copy reuses the copied implicit join
	owner := nodeByAlias(t, page.JoinManager(), "owner_1")
	assert.NotSame(t, nodeByAlias(t, base.JoinManager(), "owner_1"), owner)

	query, args = mustBuild(t, base)
	assert.Equal(t, baseSQL, query)
	assert.Equal(t, baseArgs, args)
}

func TestCopyWithSubquery(t *testing.T) {
	base := newBuilder(joinql.Hibernate).From("Document", "d")
	sub := base.Subquery().
		FromCorrelated("d.versions", "v").
		Where("v.number").Gt(3)
	base.WhereExpr(joinql.Exists(sub))
	want, wantArgs := mustBuild(t, base)

	copied := base.Copy()
	query, args := mustBuild(t, copied)
	assert.Equal(t, want, query)
	assert.Equal(t, wantArgs, args)

	// changing the copy leaves the original alone
	copied.Where("d.age").Gt(1)
	query, _ = mustBuild(t, base)
	assert.Equal(t, want, query)
}

func TestAggregateSelectItems(t *testing.T) {
	tests := []struct {
		name  string
		build func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder
		want  string
	}{
		{
			name: "sum over collection",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.Select("d.owner.name").SelectSum("d.versions.number", "total")
			},
			want: "SELECT owner_1.name, SUM(versions_1.number) AS total FROM Document d" +
				" LEFT JOIN d.owner owner_1 LEFT JOIN d.versions versions_1 GROUP BY owner_1.name",
		},
		{
			name: "count distinct",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.Select("d.name").SelectCountDistinct("d.partners.name", "")
			},
			want: "SELECT d.name, COUNT(DISTINCT partners_1.name) FROM Document d LEFT JOIN d.partners partners_1 GROUP BY d.name",
		},
		{
			name: "min max avg without grouping",
			build: func(cb *joinql.CriteriaBuilder) *joinql.CriteriaBuilder {
				return cb.SelectMin("d.age", "").SelectMax("d.age", "").SelectAvg("d.age", "").SelectCount("d.id", "")
			},
			want: "SELECT MIN(d.age), MAX(d.age), AVG(d.age), COUNT(d.id) FROM Document d",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := tt.build(newBuilder(joinql.JPA).From("Document", "d"))
			query, _ := mustBuild(t, cb)
			assert.Equal(t, tt.want, query)
		})
	}

	cb := newBuilder(joinql.JPA).From("Document", "d").SelectSum("d.age +", "")
	assert.ErrorIs(t, cb.Err(), joinql.ErrInvalidExpression)
}

func TestStringLiteralWithQuestionMark(t *testing.T) {
	tests := []struct {
		name    string
		dialect joinql.Dialect
		want    string
	}{
		{"ordinal", joinql.JPA, "SELECT d FROM Document d WHERE d.name = 'why?' AND d.age = ?1"},
		{"question", joinql.NewDialect("jpa-question", sq.Question, joinql.JPA.Capabilities()), "SELECT d FROM Document d WHERE d.name = 'why?' AND d.age = ?"},
		{"dollar", joinql.NewDialect("jpa-dollar", sq.Dollar, joinql.JPA.Capabilities()), "SELECT d FROM Document d WHERE d.name = 'why?' AND d.age = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := newBuilder(tt.dialect).
				From("Document", "d").
				WhereExpression("d.name = 'why?'").
				Where("d.age").Eq(3)
			query, args := mustBuild(t, cb)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, []any{3}, args)
		})
	}

	cb := newBuilder(joinql.JPA).From("Document", "d")
	sub := cb.Subquery().
		From("Person", "p").
		WhereExpression("p.name = 'a?'").
		Where("p.age").Gt(1)
	cb.WhereExpr(joinql.Exists(sub)).Where("d.age").Eq(2)

	query, args := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d WHERE EXISTS (SELECT p FROM Person p WHERE p.name = 'a?' AND p.age > ?1) AND d.age = ?2", query)
	assert.Equal(t, []any{1, 2}, args)
}
