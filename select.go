// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements SelectManager, which owns the SELECT, GROUP BY and
// HAVING clauses of one query level.
//
// Select items are resolved like any other expression and may be given an
// alias. Later clauses can reference the alias as a single-segment path:
//
//	sm.Select("d.owner.name", "ownerName")
//	sm.Select("COUNT(v)", "versions")
//	cb.OrderBy("ownerName", false)  // ORDER BY owner_1.name
//
// Once a query aggregates, the non-aggregate select items are grouped
// implicitly:
//
//	SELECT owner_1, COUNT(v) ...  ->  GROUP BY owner_1.id
//	SELECT d.address, COUNT(v) ... ->  GROUP BY d.address.street, d.address.city
//
// Usage example:
//
//	sm := joinql.NewSelectManager(jm)
//	if err := sm.Select("d.owner", ""); err != nil {
//	    return err
//	}
//	if err := sm.Select("COUNT(d.versions)", "n"); err != nil {
//	    return err
//	}
//	groupBy, err := sm.BuildGroupByClauses() // ["owner_1.id"]
package joinql

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/metamodel"
)

// SelectItem is one item of the SELECT clause.
type SelectItem struct {
	Expr  clause.Expression
	Alias string
}

// SelectManager manages the SELECT, GROUP BY and HAVING clauses of one query
// level. It is not safe for concurrent use.
type SelectManager struct {
	jm       *JoinManager
	items    []SelectItem
	distinct bool
	groupBy  []clause.Expression
	having   clause.And
}

// NewSelectManager creates the select manager of the query level jm manages.
func NewSelectManager(jm *JoinManager) *SelectManager {
	return &SelectManager{jm: jm}
}

// Items returns the select items in declaration order.
func (s *SelectManager) Items() []SelectItem { return slices.Clone(s.items) }

// IsDistinct reports whether Distinct was called.
func (s *SelectManager) IsDistinct() bool { return s.distinct }

// Distinct makes the query return distinct rows.
func (s *SelectManager) Distinct() { s.distinct = true }

// Select parses expr, resolves its paths and adds it to the SELECT clause.
// A non-empty alias registers a select alias in the scope of the query
// level; it fails with ErrAliasConflict if the name is taken.
func (s *SelectManager) Select(expr, alias string) error {
	e, err := clause.ParseExpression(expr)
	if err != nil {
		return err
	}
	return s.SelectExpression(e, alias)
}

// SelectExpression is like Select for an already built expression.
func (s *SelectManager) SelectExpression(e clause.Expression, alias string) error {
	if err := s.jm.ImplicitJoin(e, ImplicitJoinOptions{Clause: ClauseSelect, JoinRequired: true}); err != nil {
		return err
	}
	if alias != "" {
		info := &SelectAliasInfo{alias: alias, expr: e, owner: s.jm.aliases}
		if err := s.jm.aliases.RegisterAliasInfo(info); err != nil {
			return err
		}
	}
	s.items = append(s.items, SelectItem{Expr: e, Alias: alias})
	s.jm.mq.debug("added select item", slog.String("alias", alias))
	return nil
}

// GroupBy adds explicit GROUP BY expressions.
func (s *SelectManager) GroupBy(exprs ...string) error {
	for _, expr := range exprs {
		e, err := clause.ParseExpression(expr)
		if err != nil {
			return err
		}
		if err := s.jm.ImplicitJoin(e, ImplicitJoinOptions{Clause: ClauseGroupBy}); err != nil {
			return err
		}
		s.groupBy = append(s.groupBy, e)
	}
	return nil
}

// Having adds a predicate to the HAVING clause.
func (s *SelectManager) Having(pred clause.Expression) error {
	if err := s.jm.ImplicitJoin(pred, ImplicitJoinOptions{Clause: ClauseHaving}); err != nil {
		return err
	}
	s.having = append(s.having, pred)
	return nil
}

// HavingPredicate returns the HAVING conjunction.
func (s *SelectManager) HavingPredicate() clause.And { return slices.Clone(s.having) }

// BuildSelect renders the select items. Without items the first root is
// selected.
func (s *SelectManager) BuildSelect() (string, []any, error) {
	if len(s.items) == 0 {
		if len(s.jm.roots) == 0 {
			return "", nil, ErrNoRoot
		}
		return s.jm.mq.node(s.jm.roots[0]).Alias(), nil, nil
	}
	var sb strings.Builder
	var args []any
	for i, item := range s.items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sql, a, err := item.Expr.Build()
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(sql)
		if item.Alias != "" {
			sb.WriteString(" AS ")
			sb.WriteString(item.Alias)
		}
		args = append(args, a...)
	}
	return sb.String(), args, nil
}

// HasAggregates reports whether a select item or the HAVING clause contains
// an aggregate function.
func (s *SelectManager) HasAggregates() bool {
	for _, item := range s.items {
		if containsAggregate(item.Expr) {
			return true
		}
	}
	return containsAggregate(s.having)
}

// BuildGroupByClauses returns the GROUP BY items: the explicit ones followed
// by the ones implied by the select items and the given ORDER BY items.
// Items are implied only if the query groups, that is it has explicit GROUP
// BY items, a HAVING clause or aggregate select items. Entity-valued items
// expand to their id paths, embeddable ones to their component paths and
// items containing an aggregate are skipped. Duplicates are dropped.
func (s *SelectManager) BuildGroupByClauses(orderBy ...clause.Expression) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(sql string) {
		if !seen[sql] {
			seen[sql] = true
			out = append(out, sql)
		}
	}
	for _, e := range s.groupBy {
		sql, args, err := e.Build()
		if err != nil {
			return nil, err
		}
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: group by item %s has arguments", ErrInvalidExpression, sql)
		}
		add(sql)
	}
	if len(s.groupBy) == 0 && len(s.having) == 0 && !s.HasAggregates() {
		return out, nil
	}

	implied := make([]clause.Expression, 0, len(s.items)+len(orderBy))
	for _, item := range s.items {
		implied = append(implied, item.Expr)
	}
	for _, o := range orderBy {
		if ob, ok := o.(clause.OrderBy); ok {
			o = ob.Expr
		}
		// select aliases are grouped through their select item
		if p, ok := o.(*clause.Path); ok && p.Ref() != nil && p.Ref().Node == clause.NoNode {
			continue
		}
		implied = append(implied, o)
	}
	for _, e := range implied {
		if containsAggregate(e) {
			continue
		}
		items, err := s.groupByItems(e)
		if err != nil {
			return nil, err
		}
		for _, sql := range items {
			add(sql)
		}
	}
	return out, nil
}

func (s *SelectManager) groupByItems(e clause.Expression) ([]string, error) {
	sql, args, err := e.Build()
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("%w: grouped item %s has arguments", ErrInvalidExpression, sql)
	}
	p, ok := e.(*clause.Path)
	if !ok || p.Ref() == nil || p.Ref().Type == "" {
		return []string{sql}, nil
	}
	t, ok := s.jm.mq.model.Type(p.Ref().Type)
	if !ok {
		return []string{sql}, nil
	}
	switch t.Persistence {
	case metamodel.EntityType:
		var out []string
		for _, id := range t.IDAttributes() {
			out = append(out, s.expandComponents(sql+"."+id, t, id)...)
		}
		if len(out) == 0 {
			return []string{sql}, nil
		}
		return out, nil
	case metamodel.EmbeddableType:
		var out []string
		for _, a := range t.Attributes() {
			out = append(out, s.expandComponents(sql+"."+a.Name, t, a.Name)...)
		}
		return out, nil
	}
	return []string{sql}, nil
}

// expandComponents expands an embedded attribute of owner to its leaf paths.
func (s *SelectManager) expandComponents(prefix string, owner *metamodel.Type, attr string) []string {
	a, t, err := s.jm.mq.model.Attribute(owner, attr)
	if err != nil || a.Kind != metamodel.Embedded || t == nil {
		return []string{prefix}
	}
	var out []string
	for _, c := range t.Attributes() {
		out = append(out, s.expandComponents(prefix+"."+c.Name, t, c.Name)...)
	}
	return out
}

func containsAggregate(e clause.Expression) bool {
	found := false
	clause.Walk(e, func(x clause.Expression) bool {
		switch f := x.(type) {
		case clause.Func:
			found = found || f.IsAggregate()
		case *clause.Func:
			found = found || f.IsAggregate()
		}
		return !found
	})
	return found
}
