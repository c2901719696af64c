// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements the ON clause builder of explicit and entity joins and
// the EXISTS helpers.
//
// An ON clause is collected as a conjunction and only applied when End is
// called. Applying it resolves the paths the predicate references and records
// the nodes they resolve to as dependencies of the joined node, so those
// nodes are rendered before it:
//
//	cb.From("Document", "d").
//	    LeftJoinOn("d.versions", "v").
//	        On("v.number").Gt(3).
//	        On("v.author").EqExpression("d.owner").
//	    End().
//	    Where("d.name").Like("A%")
//
//	// FROM Document d
//	//   LEFT JOIN d.owner owner_1
//	//   LEFT JOIN d.versions v ON (v.number > ?1 AND v.author = owner_1)
//
// Usage example:
//
//	// correlated EXISTS subquery
//	sub := cb.Subquery().From("Person", "p").
//	    Where("p.name").EqExpression("d.owner.name")
//	cb.WhereExpr(joinql.Exists(sub))
package joinql

import (
	"github.com/arllen133/joinql/clause"
)

// JoinOnBuilder collects the ON clause of one join node and returns T, the
// builder the join was started from, when End is called.
//
// Usage example:
//
//	on, err := jm.JoinOn("d.partners", "p1", joinql.LeftJoin, false)
//	if err != nil {
//	    return err
//	}
//	err = on.On("p1.name").Eq("Alice").End()
//
// Note:
//   - Predicates are ANDed in the order they were added
//   - Errors of any predicate are reported by End
//   - A builder without predicates leaves the node without ON clause
type JoinOnBuilder[T any] struct {
	m      *JoinManager
	node   clause.NodeID
	preds  clause.And
	err    error
	finish func(error) T
}

func newJoinOnBuilder(m *JoinManager, id clause.NodeID) *JoinOnBuilder[error] {
	return &JoinOnBuilder[error]{m: m, node: id, finish: func(err error) error { return err }}
}

// failedJoinOn returns a builder that only reports err.
func failedJoinOn[T any](err error, finish func(error) T) *JoinOnBuilder[T] {
	return &JoinOnBuilder[T]{node: clause.NoNode, err: err, finish: finish}
}

// Node returns the id of the joined node, NoNode if the join failed.
func (b *JoinOnBuilder[T]) Node() clause.NodeID { return b.node }

// On starts a restriction on expr, usually a path, and adds it to the ON
// clause when it completes.
func (b *JoinOnBuilder[T]) On(expr string) *RestrictionBuilder[*JoinOnBuilder[T]] {
	return newRestriction(expr, b.add)
}

// OnExpression adds a complete predicate, e.g. "v.number > 3 OR v.draft = true".
func (b *JoinOnBuilder[T]) OnExpression(expr string) *JoinOnBuilder[T] {
	pred, err := clause.ParseExpression(expr)
	return b.add(pred, err)
}

// OnPredicate adds an already built predicate.
func (b *JoinOnBuilder[T]) OnPredicate(pred clause.Expression) *JoinOnBuilder[T] {
	return b.add(pred, nil)
}

func (b *JoinOnBuilder[T]) add(pred clause.Expression, err error) *JoinOnBuilder[T] {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.preds = append(b.preds, pred)
	return b
}

// End applies the collected predicates to the node and returns the builder
// the join was started from.
func (b *JoinOnBuilder[T]) End() T {
	if b.err == nil && b.m != nil {
		b.err = b.m.setOnPredicate(b.node, b.preds)
	}
	return b.finish(b.err)
}

// Exists creates an EXISTS subquery expression.
//
// Usage example:
//
//	sub := cb.Subquery().From("Version", "v").
//	    Where("v.document").EqExpression("d")
//	cb.WhereExpr(joinql.Exists(sub))
//
// Note:
//   - EXISTS stops at the first matching row of the subquery
func Exists(expr clause.Expression) clause.Expression {
	return clause.ExistsExpr{Expr: expr}
}

// NotExists creates a NOT EXISTS subquery expression.
//
// Usage example:
//
//	sub := cb.Subquery().From("Version", "v").
//	    Where("v.document").EqExpression("d")
//	cb.WhereExpr(joinql.NotExists(sub))
func NotExists(expr clause.Expression) clause.Expression {
	return clause.NotExistsExpr{Expr: expr}
}
