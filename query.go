// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements the CriteriaBuilder type, the fluent query surface on
// top of the join, select and restriction machinery.
//
// CriteriaBuilder resolves every path the moment it is added to the query,
// so the join tree always reflects the clauses built so far. It supports:
//   - Roots (From, FromValues, FromCorrelated)
//   - Explicit joins (Join, LeftJoin, ..., the *Default and *On variants)
//   - Entity joins (EntityJoinOn)
//   - Fetch joins (Fetch, JoinFetch)
//   - Restrictions (Where, Having)
//   - Projections (Select, SelectAs, Distinct, GroupBy)
//   - Sorting and pagination (OrderBy, Limit, Offset)
//   - Subqueries (Subquery, Exists)
//   - Copies (Copy)
//
// Usage examples:
//
//	cb := joinql.NewCriteriaBuilder(mm, joinql.Hibernate)
//
//	// Implicit joins
//	query, args, err := cb.From("Document", "d").
//	    Select("d.owner.name").
//	    LeftJoin("d.versions", "v").
//	    Build()
//	// SELECT owner_1.name FROM Document d LEFT JOIN d.owner owner_1 LEFT JOIN d.versions v
//
//	// Restrictions
//	query, args, err = cb.From("Document", "d").
//	    Where("d.owner.name").Eq("Alice").
//	    Where("d.age").Between(18, 65).
//	    OrderByDesc("d.id").
//	    Build()
//
// Design principles:
//   - Sticky errors: the first failing call is reported by Build, later
//     calls are no-ops
//   - Determinism: the same calls always render the same query
//   - Composability: subqueries share the join arena of their outer query
package joinql

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/metamodel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CriteriaBuilder is a fluent builder for one query level.
//
// Core features:
//   - Resolves attribute paths into implicit joins as they are added
//   - Renders the query with the placeholder format of its dialect
//   - Can be used as a subquery expression of its outer query
//
// Usage example:
//
//	cb := joinql.NewCriteriaBuilder(mm, joinql.Hibernate,
//	    joinql.WithLogger(slog.Default()),
//	    joinql.WithDefaultTracer(),
//	)
//	query, args, err := cb.From("Document", "d").
//	    LeftJoinOn("d.partners", "p1").On("p1.name").Eq("a").End().
//	    LeftJoinOn("d.partners", "p2").On("p2.name").Eq("b").End().
//	    Build()
//
// Notes:
//   - CriteriaBuilder is mutable, every method changes the receiver
//   - Use Copy to derive an independent query
//   - Not safe for concurrent use
type CriteriaBuilder struct {
	// id identifies the builder in logs and spans
	id string

	// model is the metamodel paths are resolved against
	model metamodel.Resolver

	// jm owns the join tree of this query level
	jm *JoinManager

	// sm owns the select, group by and having clauses
	sm *SelectManager

	// where is the conjunction of WHERE predicates
	where clause.And

	// orderBy lists the ORDER BY items in declaration order
	orderBy []clause.OrderBy

	limit  *uint64
	offset *uint64

	// parent is the enclosing query of a subquery
	parent *CriteriaBuilder

	obs *ObservabilityConfig

	// err stores the first error that occurred during query building
	err error
}

// NewCriteriaBuilder creates a builder for a top level query.
//
// Parameters:
//   - model: The metamodel paths are resolved against
//   - dialect: The provider the query is rendered for
//   - opts: Logging, tracing and metrics options
//
// Usage example:
//
//	mm := metamodel.MustNew(documentType, personType, versionType)
//	cb := joinql.NewCriteriaBuilder(mm, joinql.Hibernate, joinql.WithDefaultMeter())
func NewCriteriaBuilder(model metamodel.Resolver, dialect Dialect, opts ...BuilderOption) *CriteriaBuilder {
	cb := &CriteriaBuilder{
		id:    uuid.NewString(),
		model: model,
		obs:   defaultObservabilityConfig(),
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.jm = NewJoinManager(model, dialect, cb.obs.Logger)
	cb.sm = NewSelectManager(cb.jm)
	return cb
}

// ID returns the builder id used in logs and spans.
func (cb *CriteriaBuilder) ID() string { return cb.id }

// JoinManager returns the join manager of this query level.
func (cb *CriteriaBuilder) JoinManager() *JoinManager { return cb.jm }

// SelectManager returns the select manager of this query level.
func (cb *CriteriaBuilder) SelectManager() *SelectManager { return cb.sm }

// Err returns the first error that occurred while building.
func (cb *CriteriaBuilder) Err() error { return cb.err }

// fail records err unless an earlier error is recorded.
func (cb *CriteriaBuilder) fail(err error) *CriteriaBuilder {
	if err != nil && cb.err == nil {
		cb.err = err
	}
	return cb
}

// From adds an entity root. An empty alias is derived from the entity name.
//
// Usage example:
//
//	cb.From("Document", "d")
//	cb.From("Document", "")   // alias "document"
//	cb.From("Document", "").From("Person", "")
func (cb *CriteriaBuilder) From(entity, alias string) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	_, err := cb.jm.AddRoot(entity, alias)
	return cb.fail(err)
}

// FromValues adds a VALUES root of count rows of typeName.
//
// Usage example:
//
//	cb.FromValues("Long", "ids", 3)   // Long(3 VALUES) ids
func (cb *CriteriaBuilder) FromValues(typeName, alias string, count int) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	_, err := cb.jm.AddRootValues(typeName, alias, count)
	return cb.fail(err)
}

// FromCorrelated adds a root correlated with the enclosing query. It is only
// meaningful for subqueries.
//
// Usage example:
//
//	sub := cb.Subquery().FromCorrelated("d.versions", "v")
func (cb *CriteriaBuilder) FromCorrelated(path, alias string) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	_, err := cb.jm.AddCorrelatedRoot(path, alias, false)
	return cb.fail(err)
}

// FromLateral is like FromCorrelated but renders a LATERAL root.
func (cb *CriteriaBuilder) FromLateral(path, alias string) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	_, err := cb.jm.AddCorrelatedRoot(path, alias, true)
	return cb.fail(err)
}

// Join adds an explicit join of path with the given alias.
//
// Parameters:
//   - path: Attribute path, TREAT(path AS Type) or KEY(path)
//   - alias: Alias of the joined node
//   - joinType: Join type, zero derives it from the metamodel
//
// Usage example:
//
//	cb.Join("d.versions", "v", joinql.LeftJoin)
//	cb.Join("TREAT(d.owner AS Employee)", "e", joinql.InnerJoin)
//
// Note:
//   - Implicit joins of the same relation keep their own node, use
//     JoinDefault to make them reuse this one
//   - Joining the same path and alias twice is a no-op
func (cb *CriteriaBuilder) Join(path, alias string, joinType JoinType) *CriteriaBuilder {
	return cb.join(path, alias, joinType, false, false)
}

// InnerJoin adds an INNER join.
func (cb *CriteriaBuilder) InnerJoin(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, InnerJoin, false, false)
}

// LeftJoin adds a LEFT join.
func (cb *CriteriaBuilder) LeftJoin(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, LeftJoin, false, false)
}

// RightJoin adds a RIGHT join.
func (cb *CriteriaBuilder) RightJoin(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, RightJoin, false, false)
}

// FullJoin adds a FULL join.
func (cb *CriteriaBuilder) FullJoin(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, FullJoin, false, false)
}

// JoinDefault is like Join but also makes the node the default join of its
// relation, so implicit joins of the same path reuse it.
//
// Usage example:
//
//	cb.JoinDefault("d.owner", "o", joinql.LeftJoin).
//	    Where("d.owner.name").Eq("Alice")   // o.name = ?
func (cb *CriteriaBuilder) JoinDefault(path, alias string, joinType JoinType) *CriteriaBuilder {
	return cb.join(path, alias, joinType, false, true)
}

// InnerJoinDefault adds an INNER default join.
func (cb *CriteriaBuilder) InnerJoinDefault(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, InnerJoin, false, true)
}

// LeftJoinDefault adds a LEFT default join.
func (cb *CriteriaBuilder) LeftJoinDefault(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, LeftJoin, false, true)
}

// RightJoinDefault adds a RIGHT default join.
func (cb *CriteriaBuilder) RightJoinDefault(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, RightJoin, false, true)
}

// FullJoinDefault adds a FULL default join.
func (cb *CriteriaBuilder) FullJoinDefault(path, alias string) *CriteriaBuilder {
	return cb.join(path, alias, FullJoin, false, true)
}

// JoinFetch adds an explicit fetch join. The node and its parents are
// rendered with FETCH.
func (cb *CriteriaBuilder) JoinFetch(path, alias string, joinType JoinType) *CriteriaBuilder {
	return cb.join(path, alias, joinType, true, false)
}

func (cb *CriteriaBuilder) join(path, alias string, joinType JoinType, fetch, defaultJoin bool) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	_, err := cb.jm.Join(path, alias, joinType, fetch, defaultJoin)
	return cb.fail(err)
}

// Fetch fetch-joins every path, creating the implicit joins it needs.
//
// Usage example:
//
//	cb.From("Document", "d").Fetch("d.owner", "d.versions")
//	// FROM Document d LEFT JOIN FETCH d.owner owner_1 LEFT JOIN FETCH d.versions versions_1
func (cb *CriteriaBuilder) Fetch(paths ...string) *CriteriaBuilder {
	for _, path := range paths {
		if cb.err != nil {
			return cb
		}
		p, err := clause.ParsePath(path)
		if err != nil {
			return cb.fail(err)
		}
		cb.fail(cb.jm.ImplicitJoin(p, ImplicitJoinOptions{Clause: ClauseSelect, Fetch: true, JoinRequired: true}))
	}
	return cb
}

// JoinOn adds an explicit join and returns a builder for its ON clause.
// End returns to cb.
//
// Usage example:
//
//	cb.JoinOn("d.versions", "v", joinql.LeftJoin).
//	    On("v.number").Gt(3).
//	    On("v.draft").Eq(false).
//	End()
func (cb *CriteriaBuilder) JoinOn(path, alias string, joinType JoinType) *JoinOnBuilder[*CriteriaBuilder] {
	return cb.joinOn(path, alias, joinType, false)
}

// InnerJoinOn adds an INNER join with an ON clause.
func (cb *CriteriaBuilder) InnerJoinOn(path, alias string) *JoinOnBuilder[*CriteriaBuilder] {
	return cb.joinOn(path, alias, InnerJoin, false)
}

// LeftJoinOn adds a LEFT join with an ON clause.
func (cb *CriteriaBuilder) LeftJoinOn(path, alias string) *JoinOnBuilder[*CriteriaBuilder] {
	return cb.joinOn(path, alias, LeftJoin, false)
}

// RightJoinOn adds a RIGHT join with an ON clause.
func (cb *CriteriaBuilder) RightJoinOn(path, alias string) *JoinOnBuilder[*CriteriaBuilder] {
	return cb.joinOn(path, alias, RightJoin, false)
}

// FullJoinOn adds a FULL join with an ON clause.
func (cb *CriteriaBuilder) FullJoinOn(path, alias string) *JoinOnBuilder[*CriteriaBuilder] {
	return cb.joinOn(path, alias, FullJoin, false)
}

// JoinDefaultOn adds a default join with an ON clause.
func (cb *CriteriaBuilder) JoinDefaultOn(path, alias string, joinType JoinType) *JoinOnBuilder[*CriteriaBuilder] {
	return cb.joinOn(path, alias, joinType, true)
}

func (cb *CriteriaBuilder) joinOn(path, alias string, joinType JoinType, defaultJoin bool) *JoinOnBuilder[*CriteriaBuilder] {
	if cb.err != nil {
		return failedJoinOn(cb.err, cb.fail)
	}
	id, err := cb.jm.Join(path, alias, joinType, false, defaultJoin)
	if err != nil {
		return failedJoinOn(err, cb.fail)
	}
	return &JoinOnBuilder[*CriteriaBuilder]{m: cb.jm, node: id, finish: cb.fail}
}

// EntityJoinOn joins entity, unrelated to any attribute, below the node base
// denotes and returns a builder for the ON clause.
//
// Usage example:
//
//	cb.From("Document", "d").
//	    EntityJoinOn("d", "Person", "p", joinql.LeftJoin).
//	        On("p.name").EqExpression("d.name").
//	    End()
//	// FROM Document d LEFT JOIN Person p ON (p.name = d.name)
//
// Note:
//   - Dialects without entity joins render an INNER entity join as a cross
//     join with the ON clause moved to WHERE and reject outer ones
func (cb *CriteriaBuilder) EntityJoinOn(base, entity, alias string, joinType JoinType) *JoinOnBuilder[*CriteriaBuilder] {
	if cb.err != nil {
		return failedJoinOn(cb.err, cb.fail)
	}
	on, err := cb.jm.EntityJoinOn(base, entity, alias, joinType)
	if err != nil {
		return failedJoinOn(err, cb.fail)
	}
	return &JoinOnBuilder[*CriteriaBuilder]{m: cb.jm, node: on.node, finish: cb.fail}
}

// Where starts a restriction on expr that is ANDed to the WHERE clause.
//
// Usage example:
//
//	cb.Where("d.owner.name").Eq("Alice").
//	    Where("d.versions").IsNotEmpty().
//	    Where("d.created").Between(from, to)
func (cb *CriteriaBuilder) Where(expr string) *RestrictionBuilder[*CriteriaBuilder] {
	return newRestriction(expr, cb.addWhere)
}

// WhereExpression parses a complete predicate and ANDs it to the WHERE
// clause.
//
// Usage example:
//
//	cb.WhereExpression("d.age > 18 OR d.owner.name = 'Alice'")
func (cb *CriteriaBuilder) WhereExpression(expr string) *CriteriaBuilder {
	return cb.addWhere(clause.ParseExpression(expr))
}

// WhereExpr ANDs an already built predicate to the WHERE clause.
//
// Usage example:
//
//	cb.WhereExpr(joinql.Exists(sub))
//	cb.WhereExpr(field.String{}.WithAlias("d").WithPath("name").Like("A%"))
func (cb *CriteriaBuilder) WhereExpr(pred clause.Expression) *CriteriaBuilder {
	return cb.addWhere(pred, nil)
}

func (cb *CriteriaBuilder) addWhere(pred clause.Expression, err error) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	if err != nil {
		return cb.fail(err)
	}
	if err := cb.jm.ImplicitJoin(pred, ImplicitJoinOptions{Clause: ClauseWhere}); err != nil {
		return cb.fail(err)
	}
	cb.where = append(cb.where, pred)
	return cb
}

// Select adds expressions to the SELECT clause.
//
// Usage example:
//
//	cb.Select("d.name", "d.owner.name", "COUNT(v)")
func (cb *CriteriaBuilder) Select(exprs ...string) *CriteriaBuilder {
	for _, expr := range exprs {
		if cb.err != nil {
			return cb
		}
		cb.fail(cb.sm.Select(expr, ""))
	}
	return cb
}

// SelectAs adds an aliased expression to the SELECT clause. Later clauses
// can reference the alias.
//
// Usage example:
//
//	cb.SelectAs("d.owner.name", "ownerName").OrderByAsc("ownerName")
func (cb *CriteriaBuilder) SelectAs(expr, alias string) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	return cb.fail(cb.sm.Select(expr, alias))
}

// SelectExpr adds an already built expression to the SELECT clause.
func (cb *CriteriaBuilder) SelectExpr(expr clause.Expression, alias string) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	return cb.fail(cb.sm.SelectExpression(expr, alias))
}

// Distinct adds DISTINCT to the SELECT clause.
func (cb *CriteriaBuilder) Distinct() *CriteriaBuilder {
	cb.sm.Distinct()
	return cb
}

// GroupBy adds explicit GROUP BY expressions. Grouping by the non-aggregate
// select items is implied and needs no call.
//
// Usage example:
//
//	cb.Select("d.owner.name", "COUNT(d.id)").GroupBy("d.age")
//	// GROUP BY d.age, owner_1.name
func (cb *CriteriaBuilder) GroupBy(exprs ...string) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	return cb.fail(cb.sm.GroupBy(exprs...))
}

// Having starts a restriction on expr that is ANDed to the HAVING clause.
//
// Usage example:
//
//	cb.Select("d.owner").Having("COUNT(d.id)").Gt(5)
func (cb *CriteriaBuilder) Having(expr string) *RestrictionBuilder[*CriteriaBuilder] {
	return newRestriction(expr, cb.addHaving)
}

// HavingExpression parses a complete predicate and ANDs it to the HAVING
// clause.
func (cb *CriteriaBuilder) HavingExpression(expr string) *CriteriaBuilder {
	return cb.addHaving(clause.ParseExpression(expr))
}

// HavingExpr ANDs an already built predicate to the HAVING clause.
func (cb *CriteriaBuilder) HavingExpr(pred clause.Expression) *CriteriaBuilder {
	return cb.addHaving(pred, nil)
}

func (cb *CriteriaBuilder) addHaving(pred clause.Expression, err error) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	if err != nil {
		return cb.fail(err)
	}
	return cb.fail(cb.sm.Having(pred))
}

// OrderBy adds an ORDER BY item. expr may be a select alias.
//
// Usage example:
//
//	cb.OrderBy("d.owner.name", false).OrderBy("d.id", true)
func (cb *CriteriaBuilder) OrderBy(expr string, desc bool) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	e, err := clause.ParseExpression(expr)
	if err != nil {
		return cb.fail(err)
	}
	return cb.OrderByExpr(clause.OrderBy{Expr: e, Desc: desc})
}

// OrderByAsc adds an ascending ORDER BY item.
func (cb *CriteriaBuilder) OrderByAsc(expr string) *CriteriaBuilder {
	return cb.OrderBy(expr, false)
}

// OrderByDesc adds a descending ORDER BY item.
func (cb *CriteriaBuilder) OrderByDesc(expr string) *CriteriaBuilder {
	return cb.OrderBy(expr, true)
}

// OrderByExpr adds an already built ORDER BY item, e.g. one with NULLS FIRST.
func (cb *CriteriaBuilder) OrderByExpr(o clause.OrderBy) *CriteriaBuilder {
	if cb.err != nil {
		return cb
	}
	if err := cb.jm.ImplicitJoin(o.Expr, ImplicitJoinOptions{Clause: ClauseOrderBy}); err != nil {
		return cb.fail(err)
	}
	cb.orderBy = append(cb.orderBy, o)
	return cb
}

// Limit limits the number of rows returned.
func (cb *CriteriaBuilder) Limit(n uint64) *CriteriaBuilder {
	cb.limit = &n
	return cb
}

// Offset skips the first n rows.
func (cb *CriteriaBuilder) Offset(n uint64) *CriteriaBuilder {
	cb.offset = &n
	return cb
}

// HasCollections reports whether the query joins nodes that can multiply
// its rows, taking the WHERE clause into account.
func (cb *CriteriaBuilder) HasCollections() bool {
	return cb.jm.HasCollections(cb.where)
}

// Build implements clause.Expression, enabling a subquery to be used in the
// predicates of its outer query. For a top level query it renders with the
// placeholder format of the dialect and records logs, traces and metrics.
//
// Returns:
//   - string: The query
//   - []any: Positional arguments in placeholder order
//   - error: The first error of any call on the builder or a render error
//
// Usage example:
//
//	query, args, err := cb.Build()
//	if err != nil {
//	    return err
//	}
//	rows, err := em.CreateQuery(query, args...)
func (cb *CriteriaBuilder) Build() (string, []any, error) {
	if cb.parent != nil {
		query, args, _, err := cb.toSQL(sq.Question, false)
		return query, args, err
	}
	return cb.BuildContext(context.Background())
}

// BuildContext is like Build for a top level query with a context for
// tracing.
func (cb *CriteriaBuilder) BuildContext(ctx context.Context) (string, []any, error) {
	start := time.Now()
	ctx, span := cb.startSpan(ctx, "joinql.Build",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("joinql.builder", cb.id),
			attribute.String("joinql.dialect", cb.jm.Dialect().Name()),
			attribute.Int("joinql.roots", len(cb.jm.roots)),
		),
	)
	defer span.End()

	query, args, nodes, err := cb.toSQL(cb.jm.Dialect().PlaceholderFormat(), false)
	duration := time.Since(start)

	span.SetAttributes(attribute.Int("joinql.nodes", nodes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	cb.recordMetrics(ctx, duration, nodes, err)
	cb.logBuild(ctx, query, duration, err)
	return query, args, err
}

// BuildCount renders a query counting the distinct rows of the first root
// that match the WHERE clause. Joins referenced only from the SELECT and
// ORDER BY clauses are left out unless they change the number of rows.
//
// Usage example:
//
//	query, args, err := cb.BuildCount()
//	// SELECT COUNT(DISTINCT d) FROM Document d WHERE ...
func (cb *CriteriaBuilder) BuildCount() (string, []any, error) {
	query, args, _, err := cb.toSQL(cb.placeholderFormat(), true)
	return query, args, err
}

func (cb *CriteriaBuilder) placeholderFormat() sq.PlaceholderFormat {
	if cb.parent != nil {
		return sq.Question
	}
	return cb.jm.Dialect().PlaceholderFormat()
}

// toSQL assembles the statement and returns the number of rendered join
// nodes.
func (cb *CriteriaBuilder) toSQL(format sq.PlaceholderFormat, count bool) (string, []any, int, error) {
	if cb.err != nil {
		return "", nil, 0, cb.err
	}
	cb.jm.ReorderSimpleValuesClauses()
	opts := BuildOptions{}
	if count {
		if len(cb.sm.groupBy) > 0 || len(cb.sm.having) > 0 {
			return "", nil, 0, fmt.Errorf("%w: can't count a grouped query", ErrInvalidExpression)
		}
		opts.Exclusions = ClauseSelect | ClauseOrderBy
	}
	from, err := cb.jm.BuildClause(opts)
	if err != nil {
		return "", nil, 0, err
	}
	var sel string
	var selArgs []any
	if count {
		sel = "COUNT(DISTINCT " + cb.jm.mq.node(cb.jm.roots[0]).Alias() + ")"
	} else if sel, selArgs, err = cb.sm.BuildSelect(); err != nil {
		return "", nil, 0, err
	}

	// squirrel's From takes no arguments, ON clauses may have some
	b := sq.Select().
		Column(sq.Expr(sel, selArgs...)).
		JoinClause(sq.Expr("FROM "+from.SQL, from.Args...)).
		PlaceholderFormat(format)
	if cb.sm.IsDistinct() && !count {
		b = b.Distinct()
	}

	where := append(clause.And{}, from.WhereConjuncts...)
	where = append(where, cb.where...)
	if len(where) > 0 {
		sql, args, err := where.Build()
		if err != nil {
			return "", nil, 0, err
		}
		b = b.Where(sq.Expr(sql, args...))
	}
	if count {
		query, args, err := b.ToSql()
		if err != nil {
			return "", nil, 0, fmt.Errorf("joinql: assemble count query: %w", err)
		}
		return cb.unescape(format, query), args, len(from.Nodes), nil
	}

	orderBy := make([]clause.Expression, len(cb.orderBy))
	for i, o := range cb.orderBy {
		orderBy[i] = o
	}
	groupBy, err := cb.sm.BuildGroupByClauses(orderBy...)
	if err != nil {
		return "", nil, 0, err
	}
	if len(groupBy) > 0 {
		b = b.GroupBy(groupBy...)
	}
	if having := cb.sm.HavingPredicate(); len(having) > 0 {
		sql, args, err := having.Build()
		if err != nil {
			return "", nil, 0, err
		}
		b = b.Having(sq.Expr(sql, args...))
	}
	for _, o := range cb.orderBy {
		sql, args, err := o.Build()
		if err != nil {
			return "", nil, 0, err
		}
		b = b.OrderByClause(sq.Expr(sql, args...))
	}
	if cb.limit != nil {
		b = b.Limit(*cb.limit)
	}
	if cb.offset != nil {
		b = b.Offset(*cb.offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, 0, fmt.Errorf("joinql: assemble query: %w", err)
	}
	return cb.unescape(format, query), args, len(from.Nodes), nil
}

// unescape turns the ?? escapes of string literals back into ? for a top
// level query rendered with sq.Question, which leaves them in place. A
// subquery keeps them for the placeholder pass of its outer query.
func (cb *CriteriaBuilder) unescape(format sq.PlaceholderFormat, query string) string {
	if cb.parent == nil && format == sq.Question {
		return strings.ReplaceAll(query, "??", "?")
	}
	return query
}
