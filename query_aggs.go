// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements aggregate select items: COUNT, SUM, AVG, MIN and MAX.
//
// Aggregates resolve their argument like any other select expression, so
// an aggregate over an association path joins the association. Once an
// aggregate is selected, the other select items form the GROUP BY clause:
//
//	cb.From("Document", "d").
//	    Select("d.owner.name").
//	    SelectSum("d.versions.number", "total")
//	// SELECT owner_1.name, SUM(versions_1.number) AS total
//	// FROM Document d LEFT JOIN d.owner owner_1 LEFT JOIN d.versions versions_1
//	// GROUP BY owner_1.name
//
// Design considerations:
//   - The argument may be any expression the parser accepts
//   - An alias registers a select alias usable in ORDER BY and HAVING
//   - NULL handling is left to the provider
package joinql

import (
	"fmt"

	"github.com/arllen133/joinql/clause"
)

// SelectCount adds COUNT(expr) to the SELECT clause.
//
// Usage example:
//
//	cb.From("Document", "d").
//	    Select("d.owner.name").
//	    SelectCount("d.id", "documents")
func (cb *CriteriaBuilder) SelectCount(expr, alias string) *CriteriaBuilder {
	return cb.selectAggregate("COUNT", expr, alias, false)
}

// SelectCountDistinct adds COUNT(DISTINCT expr) to the SELECT clause.
//
// Usage example:
//
//	// number of distinct authors per document
//	cb.From("Document", "d").
//	    Select("d.id").
//	    SelectCountDistinct("d.versions.author", "authors")
func (cb *CriteriaBuilder) SelectCountDistinct(expr, alias string) *CriteriaBuilder {
	return cb.selectAggregate("COUNT", expr, alias, true)
}

// SelectSum adds SUM(expr) to the SELECT clause.
func (cb *CriteriaBuilder) SelectSum(expr, alias string) *CriteriaBuilder {
	return cb.selectAggregate("SUM", expr, alias, false)
}

// SelectAvg adds AVG(expr) to the SELECT clause.
func (cb *CriteriaBuilder) SelectAvg(expr, alias string) *CriteriaBuilder {
	return cb.selectAggregate("AVG", expr, alias, false)
}

// SelectMin adds MIN(expr) to the SELECT clause.
//
// Usage example:
//
//	// earliest version number per owner
//	cb.From("Document", "d").
//	    Select("d.owner.name").
//	    SelectMin("d.versions.number", "first")
func (cb *CriteriaBuilder) SelectMin(expr, alias string) *CriteriaBuilder {
	return cb.selectAggregate("MIN", expr, alias, false)
}

// SelectMax adds MAX(expr) to the SELECT clause.
func (cb *CriteriaBuilder) SelectMax(expr, alias string) *CriteriaBuilder {
	return cb.selectAggregate("MAX", expr, alias, false)
}

// selectAggregate is a helper that parses expr and selects fn over it
func (cb *CriteriaBuilder) selectAggregate(fn, expr, alias string, distinct bool) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	arg, err := clause.ParseExpression(expr)
	if err != nil {
		return cb.fail(fmt.Errorf("%w: %s argument %q: %w", ErrInvalidExpression, fn, expr, err))
	}
	return cb.SelectExpr(clause.Func{Name: fn, Args: []clause.Expression{arg}, Distinct: distinct}, alias)
}
