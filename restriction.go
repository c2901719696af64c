// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements RestrictionBuilder, the fluent predicate builder
// shared by WHERE, HAVING and ON clauses.
//
// A restriction starts at an expression and ends with a comparison that
// hands the finished predicate back to whoever started it:
//
//	cb.Where("d.owner.name").Eq("Alice")              // returns *CriteriaBuilder
//	cb.Where("d.age").Between(18, 65)
//	cb.Where("d.partners").IsNotEmpty()
//	cb.Where("d.owner").EqExpression("d.creator")
//
//	cb.LeftJoinOn("d.versions", "v").
//	    On("v.number").Gt(3).                         // returns *JoinOnBuilder
//	    End()
//
// Values become positional arguments. A clause.Expression value, e.g.
// clause.Param{Name: "name"}, is rendered inline instead.
package joinql

import (
	"github.com/arllen133/joinql/clause"
)

// RestrictionBuilder completes a predicate on a left-hand expression and
// returns T, the builder the restriction was started from.
//
// Usage example:
//
//	cb.Where("d.name").Like("A%").
//	    Where("d.owner.age").Ge(clause.Param{Name: "minAge"})
//
// Note:
//   - Parse errors of the left-hand expression surface when the
//     restriction completes
//   - Every predicate is ANDed to the predicates already present
type RestrictionBuilder[T any] struct {
	left clause.Expression
	err  error
	end  func(pred clause.Expression, err error) T
}

func newRestriction[T any](expr string, end func(clause.Expression, error) T) *RestrictionBuilder[T] {
	left, err := clause.ParseExpression(expr)
	return &RestrictionBuilder[T]{left: left, err: err, end: end}
}

func newRestrictionExpr[T any](left clause.Expression, end func(clause.Expression, error) T) *RestrictionBuilder[T] {
	return &RestrictionBuilder[T]{left: left, end: end}
}

func (r *RestrictionBuilder[T]) done(pred clause.Expression) T {
	if r.err != nil {
		return r.end(nil, r.err)
	}
	return r.end(pred, nil)
}

// rightExpr parses the right-hand side of an *Expression comparison.
func (r *RestrictionBuilder[T]) rightExpr(expr string) clause.Expression {
	e, err := clause.ParseExpression(expr)
	if err != nil && r.err == nil {
		r.err = err
	}
	return e
}

// collection marks a path operand as the argument of a collection
// predicate, which must not join the collection.
func (r *RestrictionBuilder[T]) collection() clause.Expression {
	if p, ok := r.left.(*clause.Path); ok {
		p.Collection = true
	}
	return r.left
}

// Eq restricts to left = value.
func (r *RestrictionBuilder[T]) Eq(value any) T {
	return r.done(clause.Eq{Left: r.left, Value: value})
}

// NotEq restricts to left <> value.
func (r *RestrictionBuilder[T]) NotEq(value any) T {
	return r.done(clause.Neq{Left: r.left, Value: value})
}

// Gt restricts to left > value.
func (r *RestrictionBuilder[T]) Gt(value any) T {
	return r.done(clause.Gt{Left: r.left, Value: value})
}

// Ge restricts to left >= value.
func (r *RestrictionBuilder[T]) Ge(value any) T {
	return r.done(clause.Gte{Left: r.left, Value: value})
}

// Lt restricts to left < value.
func (r *RestrictionBuilder[T]) Lt(value any) T {
	return r.done(clause.Lt{Left: r.left, Value: value})
}

// Le restricts to left <= value.
func (r *RestrictionBuilder[T]) Le(value any) T {
	return r.done(clause.Lte{Left: r.left, Value: value})
}

// Between restricts to lo <= left <= hi.
func (r *RestrictionBuilder[T]) Between(lo, hi any) T {
	return r.done(clause.Between{Left: r.left, Min: lo, Max: hi})
}

// NotBetween restricts to left outside [lo, hi].
func (r *RestrictionBuilder[T]) NotBetween(lo, hi any) T {
	return r.done(clause.Between{Left: r.left, Min: lo, Max: hi, Not: true})
}

// In restricts to left being one of values. An empty list matches nothing.
func (r *RestrictionBuilder[T]) In(values ...any) T {
	return r.done(clause.IN{Left: r.left, Values: values})
}

// NotIn restricts to left being none of values.
func (r *RestrictionBuilder[T]) NotIn(values ...any) T {
	return r.done(clause.Not{Expr: clause.IN{Left: r.left, Values: values}})
}

// InExpression restricts to left IN (expr), typically a subquery.
func (r *RestrictionBuilder[T]) InExpression(expr clause.Expression) T {
	return r.done(clause.InExpr{Left: r.left, Expr: expr})
}

// NotInExpression restricts to left NOT IN (expr).
func (r *RestrictionBuilder[T]) NotInExpression(expr clause.Expression) T {
	return r.done(clause.NotInExpr{Left: r.left, Expr: expr})
}

// IsNull restricts to left IS NULL.
func (r *RestrictionBuilder[T]) IsNull() T {
	return r.done(clause.IsNull{Expr: r.left})
}

// IsNotNull restricts to left IS NOT NULL.
func (r *RestrictionBuilder[T]) IsNotNull() T {
	return r.done(clause.IsNotNull{Expr: r.left})
}

// IsEmpty restricts to an empty collection.
func (r *RestrictionBuilder[T]) IsEmpty() T {
	return r.done(clause.IsEmpty{Expr: r.collection()})
}

// IsNotEmpty restricts to a non-empty collection.
func (r *RestrictionBuilder[T]) IsNotEmpty() T {
	return r.done(clause.IsEmpty{Expr: r.collection(), Not: true})
}

// IsMemberOf restricts to left being an element of the collection path.
func (r *RestrictionBuilder[T]) IsMemberOf(collection string) T {
	c := r.rightExpr(collection)
	if p, ok := c.(*clause.Path); ok {
		p.Collection = true
	}
	return r.done(clause.MemberOf{Value: r.left, Collection: c})
}

// IsNotMemberOf restricts to left not being an element of the collection path.
func (r *RestrictionBuilder[T]) IsNotMemberOf(collection string) T {
	c := r.rightExpr(collection)
	if p, ok := c.(*clause.Path); ok {
		p.Collection = true
	}
	return r.done(clause.MemberOf{Value: r.left, Collection: c, Not: true})
}

// Like restricts to left LIKE pattern.
func (r *RestrictionBuilder[T]) Like(pattern any) T {
	return r.done(clause.Like{Left: r.left, Value: pattern})
}

// NotLike restricts to left NOT LIKE pattern.
func (r *RestrictionBuilder[T]) NotLike(pattern any) T {
	return r.done(clause.NotLike{Left: r.left, Value: pattern})
}

// EqExpression restricts to left = expr, where expr is parsed, e.g. a path.
func (r *RestrictionBuilder[T]) EqExpression(expr string) T {
	return r.done(clause.Eq{Left: r.left, Value: r.rightExpr(expr)})
}

// NotEqExpression restricts to left <> expr.
func (r *RestrictionBuilder[T]) NotEqExpression(expr string) T {
	return r.done(clause.Neq{Left: r.left, Value: r.rightExpr(expr)})
}

// GtExpression restricts to left > expr.
func (r *RestrictionBuilder[T]) GtExpression(expr string) T {
	return r.done(clause.Gt{Left: r.left, Value: r.rightExpr(expr)})
}

// GeExpression restricts to left >= expr.
func (r *RestrictionBuilder[T]) GeExpression(expr string) T {
	return r.done(clause.Gte{Left: r.left, Value: r.rightExpr(expr)})
}

// LtExpression restricts to left < expr.
func (r *RestrictionBuilder[T]) LtExpression(expr string) T {
	return r.done(clause.Lt{Left: r.left, Value: r.rightExpr(expr)})
}

// LeExpression restricts to left <= expr.
func (r *RestrictionBuilder[T]) LeExpression(expr string) T {
	return r.done(clause.Lte{Left: r.left, Value: r.rightExpr(expr)})
}

// LikeExpression restricts to left LIKE expr.
func (r *RestrictionBuilder[T]) LikeExpression(expr string) T {
	return r.done(clause.Like{Left: r.left, Value: r.rightExpr(expr)})
}
