// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements rendering of the FROM clause and of resolved path
// references.
//
// Rendering walks the explicit nodes in declaration order with a stack.
// Roots are separated by commas, every rendered node pushes the default
// nodes of its child slots, and a node that is not a default node or that
// depends on other nodes first renders its parent chain and dependencies:
//
//	Document d                       explicit: [d, v]
//	├── owner {owner_1*}
//	└── versions {v}
//
//	Document d LEFT JOIN d.owner owner_1 LEFT JOIN d.versions v
//
// Usage example:
//
//	from, err := jm.BuildClause(joinql.BuildOptions{Exclusions: joinql.ClauseSelect})
//	if err != nil {
//	    return err
//	}
//	sql := "SELECT COUNT(*) FROM " + from.SQL
package joinql

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/metamodel"
)

// BuildOptions controls BuildClause.
type BuildOptions struct {
	// Exclusions are clauses whose references alone don't keep a node in
	// the FROM clause. Nodes that change the number of result rows are
	// rendered anyway. Excluding ClauseSelect also drops FETCH.
	Exclusions ClauseType
	// AlwaysIncluded nodes are rendered regardless of Exclusions.
	AlwaysIncluded []clause.NodeID
}

// FromClause is a rendered FROM clause.
type FromClause struct {
	// SQL is the clause without the FROM keyword.
	SQL  string
	Args []any
	// WhereConjuncts must be ANDed to the WHERE clause of the query. They
	// hold the predicates of emulated entity joins, treat filters and
	// correlation predicates.
	WhereConjuncts []clause.Expression
	// Nodes lists the rendered nodes in rendering order.
	Nodes []clause.NodeID
}

// BuildClause renders the FROM clause of this query level.
func (m *JoinManager) BuildClause(opts BuildOptions) (*FromClause, error) {
	if len(m.roots) == 0 {
		return nil, ErrNoRoot
	}
	r := &fromRenderer{
		q:        m.mq,
		caps:     m.mq.caps,
		opts:     opts,
		fetches:  !opts.Exclusions.Has(ClauseSelect),
		rendered: make(map[clause.NodeID]bool),
		required: make(map[clause.NodeID]bool),
	}

	stack := make([]*JoinNode, 0, len(m.explicit))
	for _, id := range slices.Backward(m.explicit) {
		stack = append(stack, m.mq.node(id))
	}
	first := true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.removed {
			continue
		}
		if !n.root {
			if err := r.addDefaultsAndRender(&stack, n); err != nil {
				return nil, err
			}
			continue
		}
		if !first {
			r.sb.WriteString(", ")
		}
		first = false
		if err := r.renderRoot(n); err != nil {
			return nil, err
		}
		r.pushDefaults(&stack, n)
		for _, v := range n.TreatedNodes() {
			r.pushDefaults(&stack, m.mq.node(v))
		}
	}

	m.mq.debug("rendered from clause",
		slog.Int("nodes", len(r.order)),
		slog.Int("where_conjuncts", len(r.where)),
		slog.String("exclusions", opts.Exclusions.String()),
	)
	return &FromClause{
		SQL:            r.sb.String(),
		Args:           r.args,
		WhereConjuncts: r.where,
		Nodes:          r.order,
	}, nil
}

type fromRenderer struct {
	q       *mainQuery
	caps    Capabilities
	opts    BuildOptions
	fetches bool

	sb    strings.Builder
	args  []any
	where []clause.Expression
	order []clause.NodeID

	rendered map[clause.NodeID]bool
	required map[clause.NodeID]bool
	marked   []string
}

// pushDefaults pushes the default and implicit children of n in reverse,
// so that they pop ordered by relation and alias. Explicit children are
// rendered in declaration order instead.
func (r *fromRenderer) pushDefaults(stack *[]*JoinNode, n *JoinNode) {
	for _, rel := range slices.Backward(n.Relations()) {
		for _, id := range slices.Backward(n.children[rel].Nodes()) {
			c := r.q.node(id)
			if c.removed || !(c.isDef || c.aliasInfo.implicit) {
				continue
			}
			*stack = append(*stack, c)
		}
	}
}

func (r *fromRenderer) addDefaultsAndRender(stack *[]*JoinNode, n *JoinNode) error {
	if r.excluded(n) {
		return nil
	}
	for _, v := range slices.Backward(n.TreatedNodes()) {
		*stack = append(*stack, r.q.node(v))
	}
	if len(n.deps) > 0 || !n.isDef {
		if err := r.renderReverse(n); err != nil {
			return err
		}
	}
	if err := r.renderNode(n); err != nil {
		return err
	}
	r.pushDefaults(stack, n)
	return nil
}

func (r *fromRenderer) excluded(n *JoinNode) bool {
	if r.opts.Exclusions == 0 || !r.opts.Exclusions.Has(n.clauses) {
		return false
	}
	return !r.isRequired(n) && !slices.Contains(r.opts.AlwaysIncluded, n.id)
}

// isRequired reports whether n changes the number of result rows, or has a
// descendant that does.
func (r *fromRenderer) isRequired(n *JoinNode) bool {
	if v, ok := r.required[n.id]; ok {
		return v
	}
	r.required[n.id] = false
	v := r.changesCardinality(n)
	if !v {
		for _, rel := range n.Relations() {
			for _, id := range n.children[rel].Nodes() {
				if c := r.q.node(id); !c.removed && r.isRequired(c) {
					v = true
				}
			}
		}
		for _, id := range n.TreatedNodes() {
			if r.isRequired(r.q.node(id)) {
				v = true
			}
		}
		for _, id := range n.entityJoins {
			if c := r.q.node(id); !c.removed && r.isRequired(c) {
				v = true
			}
		}
	}
	r.required[n.id] = v
	return v
}

func (r *fromRenderer) changesCardinality(n *JoinNode) bool {
	if n.entityJoin || n.joinType == RightJoin || n.joinType == FullJoin {
		return true
	}
	if n.treatedOf != clause.NoNode || n.qualifier != "" || n.parent == clause.NoNode {
		return false
	}
	if t, ok := r.q.node(n.parent).children[n.relation]; ok && t.collection {
		return true
	}
	return n.joinType == InnerJoin && (n.attr == nil || !n.attr.IsSingularAssociation() || n.attr.Optional)
}

// renderReverse renders the parent chain and the dependencies of n before n.
func (r *fromRenderer) renderReverse(n *JoinNode) error {
	if n.parent == clause.NoNode || r.rendered[n.id] {
		return nil
	}
	if err := r.renderReverse(r.q.node(n.parent)); err != nil {
		return err
	}
	if len(n.deps) > 0 {
		r.marked = append(r.marked, n.Alias())
		for _, id := range n.deps {
			dep := r.q.node(id)
			if i := slices.Index(r.marked, dep.Alias()); i >= 0 {
				return &CyclicJoinError{Aliases: slices.Clone(r.marked[i:])}
			}
			if err := r.renderReverse(dep); err != nil {
				return err
			}
		}
		r.marked = r.marked[:len(r.marked)-1]
	}
	return r.renderNode(n)
}

func (r *fromRenderer) renderRoot(n *JoinNode) error {
	switch {
	case n.valueCount > 0:
		fmt.Fprintf(&r.sb, "%s(%d VALUES) %s", entityName(n.typ), n.valueCount, n.Alias())
	case n.correlationParent != clause.NoNode && !n.lateral:
		renderAlias, err := r.renderCorrelation(n)
		if err != nil {
			return err
		}
		if renderAlias {
			r.sb.WriteString(" " + n.Alias())
		}
	default:
		if n.lateral {
			r.sb.WriteString("LATERAL ")
		}
		r.sb.WriteString(entityName(n.Type()) + " " + n.Alias())
	}
	r.done(n)
	return nil
}

// renderCorrelation renders the FROM item of a correlated root and reports
// whether the alias still has to be appended.
func (r *fromRenderer) renderCorrelation(n *JoinNode) (bool, error) {
	parent := r.q.node(n.correlationParent)
	attr := n.correlationAttr
	renderTreat := r.caps.TreatJoin && !r.caps.SubtypeRelationResolving
	if r.caps.NeedsCorrelationPredicateWithWhereClause || (n.treat != nil && !renderTreat && !r.caps.SubtypeRelationResolving) {
		switch {
		case attr.MappedBy != "":
			r.sb.WriteString(entityName(n.Type()))
			left := n.Alias() + "." + attr.MappedBy
			renderAlias := true
			if mapped, _, err := r.q.model.Attribute(n.typ, attr.MappedBy); err == nil && mapped.IsCollection() {
				synthetic := "_synthetic_" + n.Alias()
				r.sb.WriteString(" " + n.Alias() + " JOIN " + left + " " + synthetic)
				left, renderAlias = synthetic, false
			}
			r.correlationPredicate(left, parent)
			return renderAlias, nil
		case attr.Collection == metamodel.List:
			synthetic := "_synthetic_" + n.Alias()
			r.sb.WriteString(entityName(parent.Type()) + " " + synthetic + " JOIN " + synthetic + "." + n.correlationPath)
			r.correlationPredicate(synthetic, parent)
			return true, nil
		}
	}

	if n.treat != nil {
		switch {
		case renderTreat:
			base, err := r.q.baseAlias(parent, r.caps.RootTreat)
			if err != nil {
				return false, err
			}
			r.sb.WriteString("TREAT(" + base + "." + n.correlationPath + " AS " + entityName(n.treat) + ")")
		case r.caps.SubtypeRelationResolving:
			r.sb.WriteString(parent.Alias() + "." + n.correlationPath)
		default:
			return false, fmt.Errorf("%w: treat of correlation %s.%s", ErrUnsupportedCapability, parent.Alias(), n.correlationPath)
		}
		return true, nil
	}
	base, err := r.q.baseAlias(parent, r.caps.RootTreatJoin)
	if err != nil {
		return false, err
	}
	r.sb.WriteString(base + "." + n.correlationPath)
	return true, nil
}

// correlationPredicate adds left[.id] = parent[.id] to the WHERE conjuncts.
func (r *fromRenderer) correlationPredicate(left string, parent *JoinNode) {
	right := parent.Alias()
	ids := parent.Type().IDAttributes()
	if r.caps.SingleValuedAssociationIDExpressions && len(ids) == 1 {
		left += "." + ids[0]
		right += "." + ids[0]
	}
	r.where = append(r.where, clause.Eq{Left: clause.Expr{SQL: left}, Value: clause.Expr{SQL: right}})
}

func (r *fromRenderer) renderNode(n *JoinNode) error {
	if r.rendered[n.id] {
		return nil
	}
	fetch := n.fetch && r.fetches
	if n.qualifier != "" && !fetch {
		r.rendered[n.id] = true
		return nil
	}
	if n.treatedOf != clause.NoNode {
		r.rendered[n.id] = true
		return r.renderReverse(r.q.node(n.treatedOf))
	}
	if n.entityJoin && !r.caps.EntityJoin {
		if n.joinType != InnerJoin {
			return fmt.Errorf("%w: can't emulate %s entity join %s", ErrUnsupportedCapability, n.joinType, n.Alias())
		}
		r.sb.WriteString(", " + entityName(n.typ) + " " + n.Alias())
		if len(n.onPredicate) > 0 {
			r.where = append(r.where, slices.Clone(n.onPredicate))
		}
		r.done(n)
		return nil
	}

	r.sb.WriteString(n.joinType.keyword())
	if n.lateral {
		r.sb.WriteString("LATERAL ")
	}
	if fetch {
		r.sb.WriteString("FETCH ")
	}
	filter, filterOn, err := r.joinPath(n)
	if err != nil {
		return err
	}
	r.sb.WriteString(" " + n.Alias())

	on := make(clause.And, 0, len(n.onPredicate)+1)
	if filter != nil {
		if filterOn {
			on = append(on, filter)
		} else {
			r.where = append(r.where, filter)
		}
	}
	on = append(on, n.onPredicate...)
	if len(on) > 0 {
		var pred clause.Expression = on
		if len(on) == 1 {
			pred = on[0]
		}
		sql, args, err := pred.Build()
		if err != nil {
			return fmt.Errorf("joinql: render on clause of %s: %w", n.Alias(), err)
		}
		r.sb.WriteString(" ON (" + sql + ")")
		r.args = append(r.args, args...)
	}
	r.done(n)
	return nil
}

// joinPath writes the join target of n. For treat joins it also returns
// the TYPE restriction and whether it belongs to the ON clause.
func (r *fromRenderer) joinPath(n *JoinNode) (clause.Expression, bool, error) {
	parent := r.q.node(n.parent)
	switch {
	case n.entityJoin:
		r.sb.WriteString(entityName(n.typ))
		return nil, false, nil
	case n.qualifier != "":
		r.sb.WriteString(string(n.qualifier) + "(" + parent.Alias() + ")")
		return nil, false, nil
	case n.treat == nil:
		base, err := r.q.baseAlias(parent, r.caps.RootTreatJoin)
		if err != nil {
			return nil, false, err
		}
		r.sb.WriteString(base + "." + n.relation)
		return nil, false, nil
	}

	renderTreat := r.caps.TreatJoin && (!r.caps.SubtypeRelationResolving || n.joinType == InnerJoin)
	switch {
	case renderTreat:
		base, err := r.q.baseAlias(parent, r.caps.RootTreatTreatJoin)
		if err != nil {
			return nil, false, err
		}
		r.sb.WriteString("TREAT(" + base + "." + n.relation + " AS " + entityName(n.treat) + ")")
	case r.caps.SubtypeRelationResolving:
		base, err := r.q.baseAlias(parent, r.caps.RootTreatJoin)
		if err != nil {
			return nil, false, err
		}
		r.sb.WriteString(base + "." + n.relation)
	default:
		return nil, false, fmt.Errorf("%w: treat join %s", ErrUnsupportedCapability, n.Alias())
	}

	filter := clause.Eq{Left: clause.Type(clause.Expr{SQL: n.Alias()}), Value: clause.EntityType(entityName(n.treat))}
	switch {
	case r.caps.TreatFilter == TreatFilterOn:
		return filter, true, nil
	case r.caps.TreatFilter == TreatFilterWhere:
		return filter, false, nil
	case !renderTreat:
		// the plain path joins every subtype
		return filter, true, nil
	}
	return nil, false, nil
}

func (r *fromRenderer) done(n *JoinNode) {
	r.rendered[n.id] = true
	r.order = append(r.order, n.id)
}

// baseAlias renders n as the base of a join path or attribute access.
// Treated views render as TREAT(alias AS Type) when treatSupported holds.
func (q *mainQuery) baseAlias(n *JoinNode, treatSupported bool) (string, error) {
	if n.treatedOf == clause.NoNode {
		return n.Alias(), nil
	}
	switch {
	case treatSupported:
		return "TREAT(" + n.Alias() + " AS " + entityName(n.treat) + ")", nil
	case q.caps.SubtypeRelationResolving:
		return n.Alias(), nil
	}
	return "", fmt.Errorf("%w: treat of %s as %s", ErrUnsupportedCapability, n.Alias(), n.treat.Name)
}

// RenderRef renders a resolved path reference.
func (q *mainQuery) RenderRef(ref *clause.PathRef) (string, error) {
	if ref.Node == clause.NoNode {
		return ref.Field, nil
	}
	n := q.node(ref.Node)
	if n == nil {
		return "", fmt.Errorf("%w: unknown node %d", ErrInvalidPath, ref.Node)
	}
	field := ref.Field
	if ref.Kind == clause.RefLazy && field != "" {
		if t, ok := n.children[field]; ok {
			if id, ok := t.DefaultNode(); ok && !q.node(id).removed {
				n, field = q.node(id), ""
			}
		}
	}

	var alias string
	switch {
	case n.qualifier != "":
		alias = string(n.qualifier) + "(" + q.node(n.parent).Alias() + ")"
	default:
		a, err := q.baseAlias(n, q.caps.RootTreat)
		if err != nil {
			return "", err
		}
		alias = a
	}
	if field == "" {
		return alias, nil
	}
	return alias + "." + field, nil
}
