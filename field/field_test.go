package field_test

import (
	"testing"
	"time"

	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, e clause.Expression) (string, []any) {
	t.Helper()
	sql, args, err := e.Build()
	require.NoError(t, err)
	return sql, args
}

func TestStringField(t *testing.T) {
	name := field.String{}.WithAlias("d").WithPath("owner.name")

	tests := []struct {
		name     string
		expr     clause.Expression
		wantSQL  string
		wantArgs []any
	}{
		{"eq", name.Eq("alice"), "d.owner.name = ?", []any{"alice"}},
		{"neq", name.Neq("bob"), "d.owner.name <> ?", []any{"bob"}},
		{"like", name.Like("%a%"), "d.owner.name LIKE ?", []any{"%a%"}},
		{"not like", name.NotLike("%a%"), "d.owner.name NOT LIKE ?", []any{"%a%"}},
		{"in", name.In("a", "b", "c"), "d.owner.name IN (?, ?, ?)", []any{"a", "b", "c"}},
		{"not in", name.NotIn("a", "b"), "NOT (d.owner.name IN (?, ?))", []any{"a", "b"}},
		{"is null", name.IsNull(), "d.owner.name IS NULL", nil},
		{"eq path", name.EqPath(field.String{}.WithAlias("d").WithPath("name")), "d.owner.name = d.name", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := build(t, tt.expr)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestNumberField(t *testing.T) {
	age := field.Number[int]{}.WithPath("age").WithAlias("p")

	sql, args := build(t, age.Gt(18))
	assert.Equal(t, "p.age > ?", sql)
	assert.Equal(t, []any{18}, args)

	sql, args = build(t, age.Between(18, 65))
	assert.Equal(t, "p.age BETWEEN ? AND ?", sql)
	assert.Equal(t, []any{18, 65}, args)

	sql, args = build(t, age.EqLiteral(3))
	assert.Equal(t, "p.age = 3", sql)
	assert.Empty(t, args)

	sql, _ = build(t, age.Sum())
	assert.Equal(t, "SUM(p.age)", sql)
	assert.True(t, age.Max().IsAggregate())

	price := field.Number[float64]{}.WithPath("price")
	sql, args = build(t, price.In(1.5, 2))
	assert.Equal(t, "price IN (?, ?)", sql)
	assert.Equal(t, []any{1.5, 2.0}, args)
}

func TestBoolField(t *testing.T) {
	active := field.Bool{}.WithAlias("u").WithPath("active")

	sql, args := build(t, active.IsTrue())
	assert.Equal(t, "u.active = TRUE", sql)
	assert.Empty(t, args)

	sql, _ = build(t, active.IsFalse())
	assert.Equal(t, "u.active = FALSE", sql)

	sql, args = build(t, active.Eq(true))
	assert.Equal(t, "u.active = ?", sql)
	assert.Equal(t, []any{true}, args)
}

func TestTimeField(t *testing.T) {
	created := field.Time{}.WithAlias("d").WithPath("created")
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	sql, args := build(t, created.Before(now))
	assert.Equal(t, "d.created < ?", sql)
	assert.Equal(t, []any{now}, args)

	sql, _ = build(t, created.Desc())
	assert.Equal(t, "d.created DESC", sql)
}

func TestPathField(t *testing.T) {
	versions := field.Path{}.WithAlias("d").WithPath("versions")

	sql, _ := build(t, versions.IsEmpty())
	assert.Equal(t, "d.versions IS EMPTY", sql)

	sql, _ = build(t, versions.Size())
	assert.Equal(t, "SIZE(d.versions)", sql)

	sql, args := build(t, versions.Contains(clause.Param{Name: "v"}))
	assert.Equal(t, ":v MEMBER OF d.versions", sql)
	assert.Empty(t, args)

	sql, _ = build(t, versions.Dot("number").Eq(1))
	assert.Equal(t, "d.versions.number = ?", sql)

	owner := field.Path{}.WithAlias("d").WithPath("owner")
	sql, _ = build(t, owner.Association("partner").Dot("name").IsNotNull())
	assert.Equal(t, "d.owner.partner.name IS NOT NULL", sql)

	root := field.Path{}.WithAlias("d")
	assert.Equal(t, "d.owner", root.Association("owner").String())
}

func TestFieldReturnsFreshPaths(t *testing.T) {
	name := field.String{}.WithAlias("d").WithPath("name")

	a, b := name.Path(), name.Path()
	require.NotSame(t, a, b)
	a.SetRef(&clause.PathRef{Node: 1, Field: "name"})
	assert.Nil(t, b.Ref())
}

func TestComplexExpression(t *testing.T) {
	age := field.Number[int]{}.WithPath("age")
	status := field.String{}.WithPath("status")
	role := field.String{}.WithPath("role")

	// (age > 18 AND status = 'active') OR role = 'admin'
	expr := clause.Or{
		clause.And{
			age.Gt(18),
			status.Eq("active"),
		},
		role.Eq("admin"),
	}

	sql, args := build(t, expr)
	assert.Equal(t, "(age > ? AND status = ?) OR role = ?", sql)
	assert.Equal(t, []any{18, "active", "admin"}, args)
}

func TestOrderBy(t *testing.T) {
	created := field.Field{}.WithPath("createdAt")

	sql, _ := build(t, created.Asc())
	assert.Equal(t, "createdAt", sql)

	sql, _ = build(t, created.Desc())
	assert.Equal(t, "createdAt DESC", sql)

	sql, _ = build(t, created.Count())
	assert.Equal(t, "COUNT(createdAt)", sql)
}
