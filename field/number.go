package field

import (
	"github.com/arllen133/joinql/clause"
	"golang.org/x/exp/constraints"
)

// Number represents a numeric attribute that supports both integer and float types.
// It provides type-safe operations for building restrictions.
type Number[T constraints.Integer | constraints.Float] struct {
	attr attribute
}

// Path returns a new path expression for this field
func (n Number[T]) Path() *clause.Path { return n.attr.path() }

// String returns the dotted path
func (n Number[T]) String() string { return n.attr.String() }

// WithPath creates a new Number field with the specified attribute path.
func (n Number[T]) WithPath(name string) Number[T] { return Number[T]{attr: n.attr.withName(name)} }

// WithAlias creates a new Number field with the specified alias.
func (n Number[T]) WithAlias(alias string) Number[T] {
	return Number[T]{attr: n.attr.withAlias(alias)}
}

// Query functions

// Eq creates an equality comparison expression (field = value).
func (n Number[T]) Eq(value T) clause.Expression {
	return clause.Eq{Left: n.attr.path(), Value: value}
}

// Neq creates a not equal comparison expression (field <> value).
func (n Number[T]) Neq(value T) clause.Expression {
	return clause.Neq{Left: n.attr.path(), Value: value}
}

// Gt creates a greater than comparison expression (field > value).
func (n Number[T]) Gt(value T) clause.Expression {
	return clause.Gt{Left: n.attr.path(), Value: value}
}

// Gte creates a greater than or equal comparison expression (field >= value).
func (n Number[T]) Gte(value T) clause.Expression {
	return clause.Gte{Left: n.attr.path(), Value: value}
}

// Lt creates a less than comparison expression (field < value).
func (n Number[T]) Lt(value T) clause.Expression {
	return clause.Lt{Left: n.attr.path(), Value: value}
}

// Lte creates a less than or equal comparison expression (field <= value).
func (n Number[T]) Lte(value T) clause.Expression {
	return clause.Lte{Left: n.attr.path(), Value: value}
}

// Between creates a range comparison expression (field BETWEEN v1 AND v2).
func (n Number[T]) Between(v1, v2 T) clause.Expression {
	return clause.Between{Left: n.attr.path(), Min: v1, Max: v2}
}

// EqLiteral compares the field with an inline literal (field = 3).
func (n Number[T]) EqLiteral(value T) clause.Expression {
	return clause.Eq{Left: n.attr.path(), Value: clause.Num[T]{Value: value}}
}

// In creates an IN comparison expression (field IN (values...)).
func (n Number[T]) In(values ...T) clause.Expression {
	return clause.IN{Left: n.attr.path(), Values: anySlice(values)}
}

// NotIn creates a NOT IN comparison expression (field NOT IN (values...)).
func (n Number[T]) NotIn(values ...T) clause.Expression {
	return clause.Not{Expr: clause.IN{Left: n.attr.path(), Values: anySlice(values)}}
}

// IsNull creates a NULL check expression (field IS NULL).
func (n Number[T]) IsNull() clause.Expression {
	return clause.IsNull{Expr: n.attr.path()}
}

// IsNotNull creates a NOT NULL check expression (field IS NOT NULL).
func (n Number[T]) IsNotNull() clause.Expression {
	return clause.IsNotNull{Expr: n.attr.path()}
}

// Order expressions for sorting operations

// Asc creates an ascending order expression for ORDER BY clauses.
func (n Number[T]) Asc() clause.OrderBy {
	return clause.OrderBy{Expr: n.attr.path()}
}

// Desc creates a descending order expression for ORDER BY clauses.
func (n Number[T]) Desc() clause.OrderBy {
	return clause.OrderBy{Expr: n.attr.path(), Desc: true}
}

// Aggregates

// Sum creates a SUM(field) aggregate.
func (n Number[T]) Sum() clause.Func { return clause.Sum(n.attr.path()) }

// Avg creates an AVG(field) aggregate.
func (n Number[T]) Avg() clause.Func { return clause.Avg(n.attr.path()) }

// Min creates a MIN(field) aggregate.
func (n Number[T]) Min() clause.Func { return clause.Min(n.attr.path()) }

// Max creates a MAX(field) aggregate.
func (n Number[T]) Max() clause.Func { return clause.Max(n.attr.path()) }

// InExpr creates an IN expression with a subquery (field IN (SELECT ...)).
func (n Number[T]) InExpr(expr clause.Expression) clause.Expression {
	return clause.InExpr{Left: n.attr.path(), Expr: expr}
}

// NotInExpr creates a NOT IN expression with a subquery (field NOT IN (SELECT ...)).
func (n Number[T]) NotInExpr(expr clause.Expression) clause.Expression {
	return clause.NotInExpr{Left: n.attr.path(), Expr: expr}
}
