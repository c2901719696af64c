// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements subqueries and copies of a CriteriaBuilder.
//
// A subquery has its own join tree and alias scope, nested in the scope of
// its outer query. Paths starting with an outer alias resolve against the
// outer join tree, and correlated roots navigate from outer nodes:
//
//	sub := cb.Subquery().
//	    FromCorrelated("d.versions", "v").
//	    Where("v.number").Gt(3)
//	cb.WhereExpr(joinql.Exists(sub))
//	// WHERE EXISTS (SELECT v FROM d.versions v WHERE v.number > ?)
//
// Copy derives an independent builder. The FROM clause is cloned with its
// aliases, every other clause is cloned and resolved again against the
// copied join tree, and subqueries are copied along with it:
//
//	base := cb.From("Document", "d").Where("d.owner.name").Eq("Alice")
//	count := base.Copy().Select("COUNT(d.id)")
//	page := base.Copy().OrderByAsc("d.id").Limit(10)
package joinql

import (
	"log/slog"
	"maps"

	"github.com/arllen133/joinql/clause"
)

// Subquery creates a builder for a subquery of cb. Use it as an expression
// in the predicates of cb, e.g. with Exists or InExpression.
//
// Usage example:
//
//	sub := cb.Subquery().From("Person", "p").
//	    Select("p.id").
//	    Where("p.age").Gt(65)
//	cb.Where("d.owner.id").InExpression(sub)
//
// Note:
//   - Errors of the subquery surface when the outer query is built
//   - The subquery renders with ? placeholders, numbered by the outer query
func (cb *CriteriaBuilder) Subquery() *CriteriaBuilder {
	sub := &CriteriaBuilder{
		id:     cb.id,
		model:  cb.model,
		parent: cb,
		obs:    cb.obs,
	}
	sub.jm = cb.jm.NewSubqueryManager()
	sub.sm = NewSelectManager(sub.jm)
	return sub
}

// Parent returns the outer query of a subquery or nil.
func (cb *CriteriaBuilder) Parent() *CriteriaBuilder { return cb.parent }

// Copy returns an independent builder with the same clauses. A failed
// builder yields a copy carrying the same error. A copied subquery becomes
// a top level query, which fails if it references its outer query.
//
// Usage example:
//
//	page := cb.Copy().Limit(10).Offset(20)
//	total := cb.Copy().Select("COUNT(d.id)")
func (cb *CriteriaBuilder) Copy() *CriteriaBuilder {
	dst := NewCriteriaBuilder(cb.model, cb.jm.Dialect(), withObservability(cb.obs))
	if err := cb.copyInto(dst, nil); err != nil {
		return dst.fail(err)
	}
	cb.jm.mq.debug("copied builder", slog.String("from", cb.id), slog.String("to", dst.id))
	return dst
}

// copyInto copies every clause of cb into dst, which has no roots yet.
// outer maps the nodes of the enclosing source query to their copies.
func (cb *CriteriaBuilder) copyInto(dst *CriteriaBuilder, outer map[clause.NodeID]clause.NodeID) error {
	if cb.err != nil {
		return cb.err
	}
	ids, err := dst.jm.applyFrom(cb.jm, BuildOptions{}, outer)
	if err != nil {
		return err
	}
	scope := make(map[clause.NodeID]clause.NodeID, len(ids)+len(outer))
	maps.Copy(scope, outer)
	maps.Copy(scope, ids)

	var subErr error
	subs := map[*CriteriaBuilder]*CriteriaBuilder{}
	replace := func(e clause.Expression) (clause.Expression, bool) {
		src, ok := e.(*CriteriaBuilder)
		if !ok || src.parent != cb {
			return nil, false
		}
		if c, ok := subs[src]; ok {
			return c, true
		}
		c := dst.Subquery()
		if err := src.copyInto(c, scope); err != nil && subErr == nil {
			subErr = err
		}
		subs[src] = c
		return c, true
	}
	clone := func(e clause.Expression) clause.Expression {
		return clause.CloneFunc(e, replace)
	}

	for _, item := range cb.sm.items {
		dst.SelectExpr(clone(item.Expr), item.Alias)
	}
	if cb.sm.distinct {
		dst.sm.Distinct()
	}
	for _, w := range cb.where {
		dst.WhereExpr(clone(w))
	}
	for _, g := range cb.sm.groupBy {
		e := clone(g)
		if err := dst.jm.ImplicitJoin(e, ImplicitJoinOptions{Clause: ClauseGroupBy}); err != nil {
			return err
		}
		dst.sm.groupBy = append(dst.sm.groupBy, e)
	}
	for _, h := range cb.sm.having {
		dst.HavingExpr(clone(h))
	}
	for _, o := range cb.orderBy {
		dst.OrderByExpr(clone(o).(clause.OrderBy))
	}
	if cb.limit != nil {
		dst.Limit(*cb.limit)
	}
	if cb.offset != nil {
		dst.Offset(*cb.offset)
	}
	if subErr != nil {
		return subErr
	}
	return dst.err
}
