package field

import (
	"time"

	"github.com/arllen133/joinql/clause"
)

// Time represents a temporal attribute.
type Time struct {
	attr attribute
}

// Path returns a new path expression for this field
func (t Time) Path() *clause.Path { return t.attr.path() }

// String returns the dotted path
func (t Time) String() string { return t.attr.String() }

// WithPath creates a new Time field with the specified attribute path.
func (t Time) WithPath(name string) Time { return Time{attr: t.attr.withName(name)} }

// WithAlias creates a new Time field with the specified alias.
func (t Time) WithAlias(alias string) Time { return Time{attr: t.attr.withAlias(alias)} }

// Query functions

// Eq creates an equality comparison expression (field = value).
func (t Time) Eq(value time.Time) clause.Expression {
	return clause.Eq{Left: t.attr.path(), Value: value}
}

// Neq creates a not equal comparison expression (field <> value).
func (t Time) Neq(value time.Time) clause.Expression {
	return clause.Neq{Left: t.attr.path(), Value: value}
}

// After creates a greater than comparison expression (field > value).
func (t Time) After(value time.Time) clause.Expression {
	return clause.Gt{Left: t.attr.path(), Value: value}
}

// Before creates a less than comparison expression (field < value).
func (t Time) Before(value time.Time) clause.Expression {
	return clause.Lt{Left: t.attr.path(), Value: value}
}

// Between creates a range comparison expression (field BETWEEN v1 AND v2).
func (t Time) Between(v1, v2 time.Time) clause.Expression {
	return clause.Between{Left: t.attr.path(), Min: v1, Max: v2}
}

// IsNull creates a NULL check expression (field IS NULL).
func (t Time) IsNull() clause.Expression {
	return clause.IsNull{Expr: t.attr.path()}
}

// IsNotNull creates a NOT NULL check expression (field IS NOT NULL).
func (t Time) IsNotNull() clause.Expression {
	return clause.IsNotNull{Expr: t.attr.path()}
}

// Asc creates an ascending order expression for ORDER BY clauses.
func (t Time) Asc() clause.OrderBy {
	return clause.OrderBy{Expr: t.attr.path()}
}

// Desc creates a descending order expression for ORDER BY clauses.
func (t Time) Desc() clause.OrderBy {
	return clause.OrderBy{Expr: t.attr.path(), Desc: true}
}

// Max creates a MAX(field) aggregate.
func (t Time) Max() clause.Func { return clause.Max(t.attr.path()) }
