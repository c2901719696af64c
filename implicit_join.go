// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements implicit joining: resolving the paths an expression
// references and caching the resolution on each path.
//
// Resolution of a path proceeds segment by segment:
//   - a leading alias selects the node to start from, otherwise the single
//     root of the query is used
//   - basic and embedded attributes accumulate into a residual field
//   - associations and element collections get or create the default join
//     node of their relation
//   - list[0], map['k'] and list[:p] create one node per distinct index, each
//     restricted by an INDEX or KEY equality in its ON clause
//   - a.assoc.id is rendered without joining assoc when the dialect allows it
//
// Usage example:
//
//	where := clause.Eq{Left: clause.MustParsePath("d.owner.name"), Value: "Alice"}
//	if err := jm.ImplicitJoin(where, joinql.ImplicitJoinOptions{Clause: joinql.ClauseWhere}); err != nil {
//	    return err
//	}
//	sql, args, _ := where.Build() // "owner_1.name = ?", ["Alice"]
package joinql

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/metamodel"
)

// ImplicitJoinOptions controls how ImplicitJoin resolves the paths of an
// expression.
type ImplicitJoinOptions struct {
	// Clause is added to the clause dependencies of every node a path
	// resolves to. Zero records nothing.
	Clause ClauseType

	// ForbidJoins makes resolution fail with ErrImplicitJoinNotAllowed where
	// a new node would be needed. Existing nodes are still reused. No
	// CriteriaBuilder clause sets it; callers resolving expressions against
	// a finished join tree pass it to JoinManager.ImplicitJoin directly.
	ForbidJoins bool

	// JoinType pins the type of created nodes. Zero derives it from the
	// metamodel.
	JoinType JoinType

	// IDRemovable allows a trailing id segment to be dropped, so a.assoc.id
	// resolves to a.assoc even if the dialect cannot express id access.
	IDRemovable bool

	// JoinRequired joins a trailing association instead of referencing it
	// as a field of its parent.
	JoinRequired bool

	// Fetch marks the resolved nodes and their ancestors fetched.
	Fetch bool

	fromSelectAlias bool
}

// ImplicitJoin resolves every path of expr, creating the joins needed to
// dereference them, and caches the resolution on each path. Paths resolved
// before only have their clause dependencies updated.
func (m *JoinManager) ImplicitJoin(expr clause.Expression, opts ImplicitJoinOptions) error {
	return m.implicitJoinExpr(expr, opts, map[string]bool{})
}

func (m *JoinManager) implicitJoinExpr(expr clause.Expression, opts ImplicitJoinOptions, resolving map[string]bool) error {
	var err error
	clause.Walk(expr, func(e clause.Expression) bool {
		if err != nil {
			return false
		}
		if p, ok := e.(*clause.Path); ok {
			err = m.implicitJoinPath(p, opts, resolving)
			return false
		}
		if sub, ok := e.(*CriteriaBuilder); ok {
			err = m.attachSubquery(sub.jm, opts.Clause)
			return false
		}
		return true
	})
	return err
}

// attachSubquery records that sub appears in clause c of m and adds c to the
// nodes of m that paths of sub resolved to.
func (m *JoinManager) attachSubquery(sub *JoinManager, c ClauseType) error {
	if sub.parent != m || c == 0 {
		return nil
	}
	sub.attached |= c
	for _, id := range sub.outerRefs {
		if err := m.updateClauseDependencies(m.mq.node(id), c); err != nil {
			return err
		}
	}
	return nil
}

// resolveOuterPath resolves p against the enclosing manager outer. The
// resolved node depends on the clauses of outer that contain the subquery,
// not on the clause of the subquery that references it.
func (m *JoinManager) resolveOuterPath(outer *JoinManager, p *clause.Path, opts ImplicitJoinOptions, resolving map[string]bool) error {
	level := m
	for level.parent != outer {
		level = level.parent
	}
	opts.Clause = level.attached
	opts.Fetch = false
	if err := outer.implicitJoinPath(p, opts, resolving); err != nil {
		return err
	}
	if ref := p.Ref(); ref != nil && ref.Node != clause.NoNode && !slices.Contains(level.outerRefs, ref.Node) {
		level.outerRefs = append(level.outerRefs, ref.Node)
	}
	return nil
}

func (m *JoinManager) implicitJoinPath(p *clause.Path, opts ImplicitJoinOptions, resolving map[string]bool) error {
	if len(p.Elements) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if ref := p.Ref(); ref != nil {
		if ref.Node == clause.NoNode {
			return nil
		}
		n := m.mq.node(ref.Node)
		if n.aliasInfo.owner != m.aliases {
			// enclosing nodes take the clauses that contain the subquery
			return nil
		}
		if opts.Fetch {
			m.fetchPath(n)
		}
		if opts.Clause != 0 {
			return m.updateClauseDependencies(n, opts.Clause)
		}
		return nil
	}

	// Paths starting at an alias of an enclosing query belong to that query.
	if info, ok := m.aliases.AliasInfo(startAlias(p)); ok && info.Owner() != m.aliases {
		if outer := m.managerOf(info.Owner()); outer != nil {
			return m.resolveOuterPath(outer, p, opts, resolving)
		}
	}

	elems := p.Elements
	size := len(elems)
	joinAllowed := !opts.ForbidJoins

	if size == 1 && !opts.fromSelectAlias {
		if prop, ok := elems[0].(clause.Property); ok && !resolving[prop.Name] {
			if info, ok := m.aliases.AliasInfoForBottomLevel(prop.Name); ok {
				if sel, isSelect := info.(*SelectAliasInfo); isSelect {
					return m.resolveSelectAlias(p, sel, opts, resolving)
				}
			}
		}
	}

	for _, e := range elems {
		if a, ok := e.(clause.ArrayAccess); ok && a.Index != nil {
			if err := m.implicitJoinExpr(a.Index, ImplicitJoinOptions{Clause: ClauseJoin, ForbidJoins: opts.ForbidJoins}, resolving); err != nil {
				return err
			}
		}
	}

	start := 0
	current := clause.NoNode
	if size > 1 {
		if prop, ok := elems[0].(clause.Property); ok {
			if id, ok := m.rootByAlias(prop.Name); ok {
				current, start = id, 1
			}
		}
	}

	var last clause.Element = elems[size-1]
	var res joinResult
	if size > start+1 {
		r, err := m.implicitJoinRange(current, p, start, size-1, opts.JoinType, false, joinAllowed, opts.IDRemovable, resolving)
		if err != nil {
			return err
		}
		res = r
		if res.svaStart >= 0 && !m.mq.caps.SingleValuedAssociationIDExpressions && opts.IDRemovable {
			last = nil
		}
	} else {
		res = joinResult{node: current, svaStart: -1, svaEnd: -1}
		if opts.IDRemovable {
			if current != clause.NoNode {
				if isIDElement(m.mq.node(current), last) {
					last = nil
					res.svaStart, res.svaEnd = start-1, start-1
				}
			} else if prop, ok := last.(clause.Property); ok {
				if _, aliased := m.aliases.AliasInfo(prop.Name); !aliased {
					if root, err := m.RootNodeOrFail("ambiguous path " + p.String()); err == nil && isIDElement(m.mq.node(root), last) {
						last = nil
						res.node = root
					}
				}
			}
		}
	}

	result, err := m.implicitJoinLast(p, last, res, opts, joinAllowed, resolving)
	if err != nil {
		return err
	}
	n := m.mq.node(result.node)
	if opts.Fetch {
		m.fetchPath(n)
	}
	if opts.Clause != 0 {
		if err := m.updateClauseDependencies(n, opts.Clause); err != nil {
			return err
		}
	}
	ref := &clause.PathRef{Kind: clause.RefFixed, Node: result.node, Field: result.field(), Renderer: m.mq}
	if result.lazy {
		ref.Kind = clause.RefLazy
	}
	if result.typ != nil {
		ref.Type = result.typ.Name
	}
	p.SetRef(ref)
	return nil
}

// implicitJoinLast resolves the last element of p given the resolution of
// the elements before it. A nil last means an id segment was dropped.
func (m *JoinManager) implicitJoinLast(p *clause.Path, last clause.Element, res joinResult, opts ImplicitJoinOptions, joinAllowed bool, resolving map[string]bool) (joinResult, error) {
	size := len(p.Elements)
	if last == nil && res.svaStart < 0 {
		return nodeResult(m.mq.node(res.node)), nil
	}
	if res.svaStart >= 0 {
		return m.singleValuedAssociationResult(p, last, res)
	}

	switch e := last.(type) {
	case clause.Qualified:
		if size != 1 {
			return joinResult{}, fmt.Errorf("%w: %s must be the first element of %s", ErrInvalidPath, e, p)
		}
		if e.Qualifier == clause.QualifierValue {
			return m.resolveInner(e.Path, opts, resolving)
		}
		n, err := m.joinQualified(e, "", 0, true, true, joinAllowed)
		if err != nil {
			return joinResult{}, err
		}
		return nodeResult(n), nil

	case clause.Treat:
		if size != 1 {
			return joinResult{}, fmt.Errorf("%w: %s must be the first element of %s", ErrIllegalTreat, e, p)
		}
		n, err := m.implicitJoinTreat(e, opts, resolving)
		if err != nil {
			return joinResult{}, err
		}
		return nodeResult(n), nil

	case clause.ArrayAccess:
		current := m.mq.node(res.node)
		if size == 1 {
			n, err := m.joinAlias(e.Name)
			if err != nil {
				return joinResult{}, err
			}
			if n != nil {
				if err := m.applyArrayPredicate(n, e); err != nil {
					return joinResult{}, err
				}
				return nodeResult(n), nil
			}
		}
		if current == nil {
			root, err := m.RootNodeOrFail("ambiguous path " + p.String())
			if err != nil {
				return joinResult{}, err
			}
			current = m.mq.node(root)
		}
		n, err := m.arrayNode(current, append(res.fields, e.Name), e, opts.JoinType, joinAllowed)
		if err != nil {
			return joinResult{}, err
		}
		return nodeResult(n), nil

	case clause.Property:
		if size == 1 && !opts.fromSelectAlias {
			n, err := m.joinAlias(e.Name)
			if err != nil {
				return joinResult{}, err
			}
			if n != nil {
				return nodeResult(n), nil
			}
		}
		current := m.mq.node(res.node)
		if current == nil {
			root, err := m.RootNodeOrFail("ambiguous path " + p.String())
			if err != nil {
				return joinResult{}, err
			}
			current = m.mq.node(root)
		}
		attrs := append(res.fields, e.Name)
		if p.Collection {
			_, typ, err := m.mq.model.Attribute(current.Type(), strings.Join(attrs, "."))
			if err != nil {
				return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
			}
			return joinResult{node: current.id, fields: attrs, typ: typ, svaStart: -1, svaEnd: -1}, nil
		}
		return m.implicitJoinLeaf(current, attrs, opts, joinAllowed)
	}
	return joinResult{}, fmt.Errorf("%w: unsupported element %s", ErrInvalidPath, last)
}

// singleValuedAssociationResult resolves a path whose elements
// [svaStart, svaEnd] name a to-one association that is not joined.
func (m *JoinManager) singleValuedAssociationResult(p *clause.Path, last clause.Element, res joinResult) (joinResult, error) {
	assoc := p.JoinSegments(res.svaStart, res.svaEnd+1)
	size := len(p.Elements)

	if size == 2 {
		n, err := m.joinAlias(assoc)
		if err != nil {
			return joinResult{}, err
		}
		if n != nil {
			if last == nil {
				return nodeResult(n), nil
			}
			_, typ, err := m.mq.model.Attribute(n.Type(), last.String())
			if err != nil {
				return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
			}
			return joinResult{node: n.id, fields: []string{last.String()}, typ: typ, svaStart: -1, svaEnd: -1}, nil
		}
	}

	current := m.mq.node(res.node)
	if tree, ok := current.children[assoc]; ok {
		if def, ok := tree.DefaultNode(); ok {
			n := m.mq.node(def)
			if last == nil {
				return nodeResult(n), nil
			}
			rest := p.JoinSegments(res.svaEnd+1, size)
			_, typ, err := m.mq.model.Attribute(n.Type(), rest)
			if err != nil {
				return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
			}
			return joinResult{node: n.id, fields: []string{rest}, typ: typ, svaStart: -1, svaEnd: -1}, nil
		}
	}

	field := assoc
	if last != nil {
		field = p.JoinSegments(res.svaStart, size)
	}
	_, typ, err := m.mq.model.Attribute(current.Type(), field)
	if err != nil {
		return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
	}
	return joinResult{node: current.id, fields: []string{field}, typ: typ, svaStart: -1, svaEnd: -1}, nil
}

// implicitJoinRange resolves elements [start, end) of p starting at current,
// or at the alias or root named by the first element when current is NoNode.
func (m *JoinManager) implicitJoinRange(current clause.NodeID, p *clause.Path, start, end int, joinType JoinType, allowParentAliases, joinAllowed, idRemovable bool, resolving map[string]bool) (joinResult, error) {
	elems := p.Elements
	cur := m.mq.node(current)
	var fields []string
	svaStart, svaEnd := -1, -1

loop:
	for i := start; i < end; i++ {
		switch e := elems[i].(type) {
		case clause.ArrayAccess:
			attrs := append(fields, e.Name)
			fields = nil
			if cur == nil && i == 0 {
				n, err := m.joinAlias(e.Name)
				if err != nil {
					return joinResult{}, err
				}
				if n != nil {
					if err := m.applyArrayPredicate(n, e); err != nil {
						return joinResult{}, err
					}
					cur = n
					continue
				}
			}
			if cur == nil {
				root, err := m.RootNodeOrFail("ambiguous path " + p.String())
				if err != nil {
					return joinResult{}, err
				}
				cur = m.mq.node(root)
			}
			n, err := m.arrayNode(cur, attrs, e, joinType, joinAllowed)
			if err != nil {
				return joinResult{}, err
			}
			cur = n

		case clause.Treat:
			if i != 0 || cur != nil {
				return joinResult{}, fmt.Errorf("%w: a treat must be the first element of %s", ErrIllegalTreat, p)
			}
			n, err := m.implicitJoinTreat(e, ImplicitJoinOptions{ForbidJoins: !joinAllowed, JoinType: joinType}, resolving)
			if err != nil {
				return joinResult{}, err
			}
			cur = n

		case clause.Qualified:
			if i != 0 || cur != nil {
				return joinResult{}, fmt.Errorf("%w: %s must be the first element of %s", ErrInvalidPath, e, p)
			}
			if e.Qualifier == clause.QualifierValue {
				r, err := m.resolveInner(e.Path, ImplicitJoinOptions{JoinRequired: true, ForbidJoins: !joinAllowed}, resolving)
				if err != nil {
					return joinResult{}, err
				}
				if r.hasField() {
					return joinResult{}, fmt.Errorf("%w: %s does not denote a collection join", ErrInvalidPath, e)
				}
				cur = m.mq.node(r.node)
				continue
			}
			n, err := m.joinQualified(e, "", 0, true, true, joinAllowed)
			if err != nil {
				return joinResult{}, err
			}
			cur = n

		case clause.Property:
			if cur == nil {
				var info AliasInfo
				var ok bool
				if allowParentAliases {
					info, ok = m.aliases.AliasInfo(e.Name)
				} else {
					info, ok = m.aliases.AliasInfoForBottomLevel(e.Name)
				}
				if ok {
					j, isJoin := info.(*JoinAliasInfo)
					if !isJoin {
						return joinResult{}, fmt.Errorf("%w: %s", ErrSelectAliasDereference, p)
					}
					cur = m.mq.node(j.node)
					if idRemovable && len(elems) == i+2 && isIDElement(cur, elems[i+1]) {
						svaStart, svaEnd = i, i
						break loop
					}
					continue
				}
				root, err := m.RootNodeOrFail("ambiguous path " + p.String())
				if err != nil {
					return joinResult{}, err
				}
				cur = m.mq.node(root)
			}
			if len(fields) == 0 {
				if from, to, ok := m.singleValuedAssociationID(cur, p, i, end, joinType, idRemovable); ok {
					svaStart, svaEnd = from, to
					for j := i; j < end; j++ {
						fields = append(fields, elems[j].String())
					}
					break loop
				}
			}
			r, err := m.createOrUpdateNode(cur, append(fields, e.Name), "", "", joinType, true, true, joinAllowed)
			if err != nil {
				return joinResult{}, err
			}
			cur = m.mq.node(r.node)
			fields = r.fields

		default:
			return joinResult{}, fmt.Errorf("%w: unsupported element %s", ErrInvalidPath, e)
		}
	}

	if cur == nil {
		return joinResult{node: clause.NoNode, svaStart: svaStart, svaEnd: svaEnd}, nil
	}
	res := joinResult{node: cur.id, fields: fields, typ: cur.Type(), svaStart: svaStart, svaEnd: svaEnd}
	if len(fields) > 0 {
		_, typ, err := m.mq.model.Attribute(cur.Type(), strings.Join(fields, "."))
		if err != nil {
			return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
		}
		res.typ = typ
	}
	return res, nil
}

// singleValuedAssociationID reports whether elements [i, len) of p can be
// rendered as an attribute of cur without joining the to-one association
// they pass through. It returns the element range naming the association.
func (m *JoinManager) singleValuedAssociationID(cur *JoinNode, p *clause.Path, i, end int, joinType JoinType, idRemovable bool) (int, int, bool) {
	caps := m.mq.caps
	size := len(p.Elements)
	if joinType == InnerJoin {
		return -1, -1, false
	}
	if !idRemovable && !caps.SingleValuedAssociationIDExpressions {
		return -1, -1, false
	}
	if cur.Type().Persistence != metamodel.EntityType || i+1 >= size {
		return -1, -1, false
	}
	if !p.IsProperties(i) {
		return -1, -1, false
	}
	model := m.mq.model
	owner := cur.Type()
	attr, ok := model.OwnedSingularAttribute(owner, p.JoinSegments(i, size))
	if !ok || attr.IsAssociation() {
		return -1, -1, false
	}
	assocEnd := -1
	var assoc *metamodel.Attribute
	for j := i; j < end; j++ {
		a, _, err := model.Attribute(owner, p.JoinSegments(i, j+1))
		if err != nil {
			return -1, -1, false
		}
		if a.IsAssociation() {
			assoc, assocEnd = a, j
		}
	}
	if assocEnd < 0 {
		return -1, -1, false
	}
	if model.IsForeignJoinColumn(owner, p.JoinSegments(i, assocEnd+1)) {
		return -1, -1, false
	}
	if !caps.SingleValuedAssociationNaturalIDExpressions && !model.AttributeType(assoc).IsIDPath(p.JoinSegments(assocEnd+1, size)) {
		return -1, -1, false
	}
	return i, assocEnd, true
}

// implicitJoinLeaf resolves the last attribute of a path. Collections, and
// associations when a join is required, are joined; anything else becomes a
// lazy field reference that renders the default join of the attribute if
// one appears later.
func (m *JoinManager) implicitJoinLeaf(base *JoinNode, attrs []string, opts ImplicitJoinOptions, joinAllowed bool) (joinResult, error) {
	name := strings.Join(attrs, ".")
	attr, typ, err := m.mq.model.Attribute(base.Type(), name)
	if err != nil {
		return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
	}
	if opts.JoinRequired || attr.IsCollection() {
		r, err := m.createOrUpdateNode(base, attrs, "", "", opts.JoinType, true, true, joinAllowed)
		if err != nil {
			return joinResult{}, err
		}
		if r.node != base.id {
			return nodeResult(m.mq.node(r.node)), nil
		}
		return joinResult{node: base.id, fields: attrs, typ: typ, svaStart: -1, svaEnd: -1}, nil
	}
	return joinResult{node: base.id, fields: attrs, typ: typ, lazy: true, svaStart: -1, svaEnd: -1}, nil
}

// implicitJoinTreat resolves TREAT(path AS Type) to the treated view of the
// node path denotes.
func (m *JoinManager) implicitJoinTreat(t clause.Treat, opts ImplicitJoinOptions, resolving map[string]bool) (*JoinNode, error) {
	var base *JoinNode
	if t.Path.Len() == 1 {
		if prop, ok := t.Path.Elements[0].(clause.Property); ok {
			n, err := m.joinAlias(prop.Name)
			if err != nil {
				return nil, err
			}
			base = n
		}
	}
	if base == nil {
		opts.JoinRequired = true
		opts.Fetch = false
		opts.fromSelectAlias = false
		r, err := m.resolveInner(t.Path, opts, resolving)
		if err != nil {
			return nil, err
		}
		if r.hasField() {
			return nil, fmt.Errorf("%w: %s does not denote an entity", ErrIllegalTreat, t)
		}
		base = m.mq.node(r.node)
	}
	return m.treatedView(base, t.Type)
}

// resolveInner resolves a nested path, like the operand of TREAT or VALUE,
// and returns its resolution.
func (m *JoinManager) resolveInner(p *clause.Path, opts ImplicitJoinOptions, resolving map[string]bool) (joinResult, error) {
	if err := m.implicitJoinPath(p, opts, resolving); err != nil {
		return joinResult{}, err
	}
	ref := p.Ref()
	if ref == nil || ref.Node == clause.NoNode {
		return joinResult{}, fmt.Errorf("%w: %s does not denote a join node", ErrInvalidPath, p)
	}
	n := m.mq.node(ref.Node)
	res := nodeResult(n)
	if ref.Field != "" {
		res.fields = strings.Split(ref.Field, ".")
		if _, typ, err := m.mq.model.Attribute(n.Type(), ref.Field); err == nil {
			res.typ = typ
		}
	}
	return res, nil
}

// resolveSelectAlias resolves a reference to a select alias. A select item
// that is a path shares its resolution; any other item renders as the alias.
func (m *JoinManager) resolveSelectAlias(p *clause.Path, sel *SelectAliasInfo, opts ImplicitJoinOptions, resolving map[string]bool) error {
	resolving[sel.alias] = true
	defer delete(resolving, sel.alias)
	opts.fromSelectAlias = true
	if err := m.implicitJoinExpr(sel.expr, opts, resolving); err != nil {
		return err
	}
	if inner, ok := sel.expr.(*clause.Path); ok && inner.Ref() != nil {
		ref := *inner.Ref()
		p.SetRef(&ref)
		return nil
	}
	p.SetRef(&clause.PathRef{Kind: clause.RefFixed, Node: clause.NoNode, Field: sel.alias, Renderer: m.mq})
	return nil
}

// joinQualified gets or creates the KEY, INDEX or ENTRY node of the
// collection q qualifies. The node is a child of the collection node.
func (m *JoinManager) joinQualified(q clause.Qualified, alias string, joinType JoinType, implicit, defaultJoin, joinAllowed bool) (*JoinNode, error) {
	r, err := m.resolveInner(q.Path, ImplicitJoinOptions{JoinRequired: true, ForbidJoins: !joinAllowed}, map[string]bool{})
	if err != nil {
		return nil, err
	}
	base := m.mq.node(r.node)
	if r.hasField() || base.attr == nil || !base.attr.IsCollection() || base.qualifier != "" {
		return nil, fmt.Errorf("%w: %s does not denote a collection join", ErrInvalidPath, q)
	}
	attr := base.attr
	var typ *metamodel.Type
	switch q.Qualifier {
	case clause.QualifierKey:
		if attr.Collection != metamodel.Map {
			return nil, fmt.Errorf("%w: KEY requires a map, %s is a %s", ErrInvalidPath, q.Path, attr.Collection)
		}
		typ = m.mq.model.AttributeType(&metamodel.Attribute{Kind: metamodel.Basic, Target: attr.KeyType})
	case clause.QualifierEntry:
		if attr.Collection != metamodel.Map {
			return nil, fmt.Errorf("%w: ENTRY requires a map, %s is a %s", ErrInvalidPath, q.Path, attr.Collection)
		}
		typ = m.mq.model.AttributeType(&metamodel.Attribute{Kind: metamodel.Basic, Target: "Entry"})
	case clause.QualifierIndex:
		if attr.Collection != metamodel.List {
			return nil, fmt.Errorf("%w: INDEX requires a list, %s is a %s", ErrInvalidPath, q.Path, attr.Collection)
		}
		typ = m.mq.model.AttributeType(&metamodel.Attribute{Kind: metamodel.Basic, Target: "int64"})
	default:
		return nil, fmt.Errorf("%w: unexpected qualifier %s", ErrInvalidPath, q.Qualifier)
	}
	if alias == "" {
		alias = strings.ReplaceAll(base.relation, ".", "_") + "_" + strings.ToLower(string(q.Qualifier))
	}
	pinned := joinType != 0
	if !pinned {
		joinType = LeftJoin
	}
	return m.getOrCreate(base, joinSpec{
		relation:    string(q.Qualifier) + "(" + base.relation + ")",
		attr:        attr,
		typ:         typ,
		alias:       alias,
		joinType:    joinType,
		pinned:      pinned,
		implicit:    implicit,
		defaultJoin: defaultJoin,
		joinAllowed: joinAllowed,
		qualifier:   q.Qualifier,
	})
}

// arrayNode returns the node of attrs under base restricted to the index of
// e, creating it if no node with that index exists yet.
func (m *JoinManager) arrayNode(base *JoinNode, attrs []string, e clause.ArrayAccess, joinType JoinType, joinAllowed bool) (*JoinNode, error) {
	relation := strings.Join(attrs, ".")
	key, err := indexKey(e)
	if err != nil {
		return nil, err
	}
	if tree, ok := base.children[relation]; ok {
		for _, id := range tree.Nodes() {
			if n := m.mq.node(id); n.arrayIndex == key {
				return n, nil
			}
		}
	}
	attr, typ, err := m.mq.model.Attribute(base.Type(), relation)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
	}
	if !attr.IsCollection() || !attr.IsJoinable() {
		return nil, fmt.Errorf("%w: %s is not an indexed collection", ErrInvalidPath, relation)
	}
	alias, err := arrayJoinAlias(e)
	if err != nil {
		return nil, err
	}
	pinned := joinType != 0
	if !pinned {
		joinType = modelAwareType(base, attr)
	}
	n, err := m.getOrCreate(base, joinSpec{
		relation:    relation,
		attr:        attr,
		typ:         typ,
		alias:       alias,
		joinType:    joinType,
		pinned:      pinned,
		implicit:    true,
		joinAllowed: joinAllowed,
		arrayIndex:  key,
		collection:  true,
	})
	if err != nil {
		return nil, err
	}
	if err := m.applyArrayPredicate(n, e); err != nil {
		return nil, err
	}
	return n, nil
}

// applyArrayPredicate adds INDEX(alias) = idx for lists, KEY(alias) = idx
// otherwise, to the ON clause of n unless it is there already.
func (m *JoinManager) applyArrayPredicate(n *JoinNode, e clause.ArrayAccess) error {
	if n.attr == nil || !n.attr.IsCollection() {
		return fmt.Errorf("%w: %s is not an indexed collection", ErrInvalidPath, n.Alias())
	}
	q := clause.QualifierKey
	if n.attr.Collection == metamodel.List {
		q = clause.QualifierIndex
	}
	pred := clause.Eq{
		Left:  &clause.Path{Elements: []clause.Element{clause.Qualified{Qualifier: q, Path: clause.NewPath(n.Alias())}}},
		Value: e.Index,
	}
	if err := m.ImplicitJoin(pred, ImplicitJoinOptions{Clause: ClauseJoin}); err != nil {
		return err
	}
	sql, args, err := pred.Build()
	if err != nil {
		return err
	}
	for _, c := range n.onPredicate {
		csql, cargs, err := c.Build()
		if err == nil && csql == sql && fmt.Sprint(cargs) == fmt.Sprint(args) {
			return nil
		}
	}
	n.onPredicate = append(n.onPredicate, pred)
	m.registerDependencies(n, pred)
	return m.updateClauseDependencies(n, ClauseJoin)
}

// indexKey identifies the index of an array access independently of how
// its operands resolve.
func indexKey(e clause.ArrayAccess) (string, error) {
	if e.Index == nil {
		return "", fmt.Errorf("%w: %s has no index", ErrInvalidPath, e.Name)
	}
	if p, ok := e.Index.(*clause.Path); ok {
		return "path:" + p.String(), nil
	}
	sql, args, err := e.Index.Build()
	if err != nil {
		return "", err
	}
	if len(args) > 0 {
		return sql + fmt.Sprint(args), nil
	}
	return sql, nil
}

// arrayJoinAlias returns the alias base of an indexed join: list_0,
// map_key, list_param or list_alias_field.
func arrayJoinAlias(e clause.ArrayAccess) (string, error) {
	var suffix string
	switch idx := e.Index.(type) {
	case clause.Param:
		suffix = idx.Name
	case clause.Str:
		suffix = string(idx)
	case *clause.Path:
		ref := idx.Ref()
		if ref == nil || ref.Renderer == nil {
			return "", fmt.Errorf("%w: unresolved index %s", ErrInvalidPath, idx)
		}
		rendered, err := ref.Renderer.RenderRef(ref)
		if err != nil {
			return "", err
		}
		suffix = rendered
	default:
		sql, args, err := e.Index.Build()
		if err != nil {
			return "", err
		}
		if len(args) > 0 || !isNumber(sql) {
			return "", fmt.Errorf("%w: invalid array index %s", ErrInvalidPath, sql)
		}
		suffix = sql
	}
	suffix = strings.NewReplacer(".", "_", "(", "_", ")", "", " ", "_", "-", "_").Replace(suffix)
	return e.Name + "_" + suffix, nil
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isIDElement reports whether e names an id attribute of n's type.
func isIDElement(n *JoinNode, e clause.Element) bool {
	prop, ok := e.(clause.Property)
	if !ok || n.Type().Persistence != metamodel.EntityType {
		return false
	}
	return n.Type().IsIDPath(prop.Name)
}

// joinAlias returns the node registered under name at this level, nil if
// name is not an alias, or ErrSelectAliasDereference for select aliases.
func (m *JoinManager) joinAlias(name string) (*JoinNode, error) {
	info, ok := m.aliases.AliasInfoForBottomLevel(name)
	if !ok {
		return nil, nil
	}
	j, ok := info.(*JoinAliasInfo)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSelectAliasDereference, name)
	}
	return m.mq.node(j.node), nil
}

func (m *JoinManager) rootByAlias(alias string) (clause.NodeID, bool) {
	for _, id := range m.roots {
		if n := m.mq.node(id); !n.removed && n.Alias() == alias {
			return id, true
		}
	}
	return clause.NoNode, false
}

// managerOf returns the manager of this or an enclosing level owning scope.
func (m *JoinManager) managerOf(scope *AliasManager) *JoinManager {
	for cur := m; cur != nil; cur = cur.parent {
		if cur.aliases == scope {
			return cur
		}
	}
	return nil
}
