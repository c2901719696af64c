// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements JoinManager, the owner of the join graph of one query
// level.
//
// A JoinManager creates roots and explicit joins, resolves implicit joins for
// every path a query references (implicit_join.go) and renders the FROM clause
// (join_render.go). Subquery managers share the node arena of the main query
// and chain their alias scope to the enclosing level.
//
// Node lifecycle:
//   - implicit: created while dereferencing a path, alias generated (owner_1)
//   - explicit: created by Join, or promoted from implicit by a default join
//     with an explicit alias; promotion keeps the node id
//   - treated: TREAT creates a view keyed by subtype next to the node, the
//     node itself is never changed
//
// Usage example:
//
//	jm := joinql.NewJoinManager(mm, joinql.Hibernate, slog.Default())
//	if _, err := jm.AddRoot("Document", "d"); err != nil {
//	    return err
//	}
//	if _, err := jm.Join("d.versions", "v", joinql.LeftJoin, false, false); err != nil {
//	    return err
//	}
//	p := clause.MustParsePath("d.owner.name")
//	if err := jm.ImplicitJoin(p, joinql.ImplicitJoinOptions{Clause: joinql.ClauseSelect}); err != nil {
//	    return err
//	}
//	from, err := jm.BuildClause(joinql.BuildOptions{})
//	// from.SQL == "Document d LEFT JOIN d.owner owner_1 LEFT JOIN d.versions v"
package joinql

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/metamodel"
)

// JoinManager manages the join graph of one query level.
// It is not safe for concurrent use.
type JoinManager struct {
	mq          *mainQuery
	parent      *JoinManager
	aliases     *AliasManager
	roots       []clause.NodeID
	explicit    []clause.NodeID
	hasFullJoin bool

	// attached holds the clauses of the enclosing query this subquery
	// appears in, outerRefs the enclosing nodes its paths resolved to.
	attached  ClauseType
	outerRefs []clause.NodeID
}

// NewJoinManager creates the join manager of a top level query.
// A nil logger disables logging.
func NewJoinManager(model metamodel.Resolver, dialect Dialect, logger *slog.Logger) *JoinManager {
	return &JoinManager{
		mq:      newMainQuery(model, dialect, logger),
		aliases: NewAliasManager(),
	}
}

// NewSubqueryManager creates the join manager of a subquery nested in m.
// Paths starting with an alias of m or its ancestors resolve against the
// enclosing levels.
func (m *JoinManager) NewSubqueryManager() *JoinManager {
	return &JoinManager{
		mq:      m.mq,
		parent:  m,
		aliases: m.aliases.NewChild(),
	}
}

// Parent returns the manager of the enclosing query or nil.
func (m *JoinManager) Parent() *JoinManager { return m.parent }

// AliasManager returns the alias scope of this level.
func (m *JoinManager) AliasManager() *AliasManager { return m.aliases }

// Dialect returns the dialect of the main query.
func (m *JoinManager) Dialect() Dialect { return m.mq.dialect }

// Metamodel returns the attribute resolver of the main query.
func (m *JoinManager) Metamodel() metamodel.Resolver { return m.mq.model }

// Node returns the node with the given id or nil.
func (m *JoinManager) Node(id clause.NodeID) *JoinNode { return m.mq.node(id) }

// NodeByAlias returns the node registered under alias at this level.
func (m *JoinManager) NodeByAlias(alias string) (*JoinNode, bool) {
	info, ok := m.aliases.AliasInfoForBottomLevel(alias)
	if !ok {
		return nil, false
	}
	j, ok := info.(*JoinAliasInfo)
	if !ok {
		return nil, false
	}
	return m.mq.node(j.node), true
}

// Roots returns the root nodes in declaration order.
func (m *JoinManager) Roots() []clause.NodeID { return slices.Clone(m.roots) }

// ExplicitJoins returns roots and explicit joins in declaration order.
func (m *JoinManager) ExplicitJoins() []clause.NodeID { return slices.Clone(m.explicit) }

// HasFullJoin reports whether a FULL join was declared.
func (m *JoinManager) HasFullJoin() bool { return m.hasFullJoin }

// RootNodeOrFail returns the only root. It fails with ErrNoRoot or
// ErrAmbiguousRoot otherwise.
func (m *JoinManager) RootNodeOrFail(context string) (clause.NodeID, error) {
	switch len(m.roots) {
	case 0:
		return clause.NoNode, fmt.Errorf("%w: %s", ErrNoRoot, context)
	case 1:
		return m.roots[0], nil
	}
	return clause.NoNode, fmt.Errorf("%w: %s", ErrAmbiguousRoot, context)
}

var keywords = map[string]bool{
	"all": true, "and": true, "any": true, "as": true, "asc": true, "avg": true,
	"between": true, "by": true, "case": true, "count": true, "delete": true,
	"desc": true, "distinct": true, "else": true, "empty": true, "end": true,
	"entry": true, "escape": true, "exists": true, "false": true, "fetch": true,
	"from": true, "full": true, "group": true, "having": true, "in": true,
	"index": true, "inner": true, "is": true, "join": true, "key": true,
	"lateral": true, "left": true, "like": true, "max": true, "member": true,
	"min": true, "new": true, "not": true, "null": true, "of": true, "on": true,
	"or": true, "order": true, "outer": true, "right": true, "select": true,
	"set": true, "size": true, "some": true, "sum": true, "then": true,
	"treat": true, "true": true, "type": true, "update": true, "value": true,
	"values": true, "when": true, "where": true,
}

// AddRoot adds a FROM item for entity and returns its alias.
//
// An empty alias defaults to the lower-cased simple entity name, or a
// generated document_1 style alias if that name is taken, is itself an
// entity name or is a keyword.
func (m *JoinManager) AddRoot(entity, alias string) (string, error) {
	t, ok := m.mq.model.Type(entity)
	if !ok || t.Persistence != metamodel.EntityType {
		return "", fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	alias = m.rootAlias(t.SimpleName(), alias)
	info := &JoinAliasInfo{alias: alias, implicit: true, root: true, path: alias, owner: m.aliases}
	if err := m.aliases.RegisterAliasInfo(info); err != nil {
		return "", err
	}
	n := newJoinNode(info, t)
	n.root = true
	m.addRootNode(n)
	m.mq.debug("added root", slog.String("entity", t.Name), slog.String("alias", alias))
	return alias, nil
}

func (m *JoinManager) rootAlias(simpleName, alias string) string {
	if alias != "" {
		return alias
	}
	alias = strings.ToLower(simpleName)
	_, taken := m.aliases.AliasInfo(alias)
	if taken || m.mq.model.IsEntity(alias) || keywords[alias] {
		alias = m.aliases.GenerateRootAlias(alias)
	}
	return alias
}

func (m *JoinManager) addRootNode(n *JoinNode) {
	id := m.mq.add(n)
	m.roots = append(m.roots, id)
	m.explicit = append(m.explicit, id)
}

// AddRootValues adds a VALUES pseudo-root rendered as Type(count VALUES) alias.
// The type may be an entity or a basic type name like Long.
func (m *JoinManager) AddRootValues(typeName, alias string, count int) (string, error) {
	if count <= 0 {
		return "", fmt.Errorf("%w: values root %s needs at least one value", ErrInvalidPath, typeName)
	}
	t, ok := m.mq.model.Type(typeName)
	if !ok {
		t = m.mq.model.AttributeType(&metamodel.Attribute{Kind: metamodel.Basic, Target: typeName})
	}
	alias = m.rootAlias(t.SimpleName(), alias)
	info := &JoinAliasInfo{alias: alias, implicit: true, root: true, path: alias, owner: m.aliases}
	if err := m.aliases.RegisterAliasInfo(info); err != nil {
		return "", err
	}
	n := newJoinNode(info, t)
	n.root = true
	n.valueCount = count
	m.addRootNode(n)
	return alias, nil
}

// AddCorrelatedRoot adds a root navigating from a node of an enclosing query,
// e.g. "d.versions" inside a subquery of a query rooted at d.
//
// The correlation parent is the node named by the first path segment, or
// the single root of the enclosing query when the path is relative. The
// correlated attribute is the first joinable attribute of the path. Any
// remaining segments are joined from the correlated root, which is then
// aliased alias_base, and the last of them receives alias.
func (m *JoinManager) AddCorrelatedRoot(path, alias string, lateral bool) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: correlated root %s needs an alias", ErrInvalidPath, path)
	}
	p, err := clause.ParsePath(path)
	if err != nil {
		return "", err
	}
	elems := p.Elements
	var rootTreat, endTreat string
	if t, ok := elems[0].(clause.Treat); ok {
		if t.Path.Len() == 1 {
			rootTreat = t.Type
		} else if len(elems) == 1 {
			endTreat = t.Type
		} else {
			return "", fmt.Errorf("%w: treat in correlation path %s", ErrIllegalTreat, path)
		}
		elems = append(slices.Clone(t.Path.Elements), elems[1:]...)
	}
	names := make([]string, len(elems))
	for i, e := range elems {
		prop, ok := e.(clause.Property)
		if !ok {
			return "", fmt.Errorf("%w: correlation path %s may only contain attributes", ErrInvalidPath, path)
		}
		names[i] = prop.Name
	}

	// correlation parent
	parentID := clause.NoNode
	start := 0
	if info, ok := m.aliases.AliasInfo(names[0]); ok {
		j, isJoin := info.(*JoinAliasInfo)
		if !isJoin {
			return "", fmt.Errorf("%w: %s", ErrSelectAliasDereference, names[0])
		}
		parentID, start = j.node, 1
	} else if m.parent != nil {
		if parentID, err = m.parent.RootNodeOrFail("correlation path " + path + " is relative"); err != nil {
			return "", err
		}
	} else {
		return "", fmt.Errorf("%w: correlation path %s does not start with an alias", ErrInvalidPath, path)
	}
	parent := m.mq.node(parentID)
	if rootTreat != "" {
		if parent, err = m.treatedView(parent, rootTreat); err != nil {
			return "", err
		}
	}
	if start >= len(names) {
		return "", fmt.Errorf("%w: correlation path %s names no attribute", ErrInvalidPath, path)
	}

	// correlated attribute
	var corrAttr *metamodel.Attribute
	var corrType *metamodel.Type
	end := start
	for ; end < len(names); end++ {
		a, t, err := m.mq.model.Attribute(parent.Type(), strings.Join(names[start:end+1], "."))
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
		}
		if a.IsJoinable() {
			corrAttr, corrType = a, t
			break
		}
	}
	if corrAttr == nil {
		return "", fmt.Errorf("%w: correlation path %s has no joinable attribute", ErrInvalidPath, path)
	}
	var corrTreat *metamodel.Type
	if endTreat != "" && end == len(names)-1 {
		if corrTreat, err = m.subtype(corrType, endTreat); err != nil {
			return "", err
		}
	}

	rootAlias := alias
	remaining := end < len(names)-1
	if remaining {
		rootAlias = alias + "_base"
		if _, taken := m.aliases.AliasInfo(rootAlias); taken {
			rootAlias = m.aliases.GenerateRootAlias(rootAlias)
		}
	}
	info := &JoinAliasInfo{alias: rootAlias, implicit: remaining, root: true, path: parent.aliasInfo.path + "." + strings.Join(names[start:end+1], "."), owner: m.aliases}
	if err := m.aliases.RegisterAliasInfo(info); err != nil {
		return "", err
	}
	n := newJoinNode(info, corrType)
	n.treat = corrTreat
	n.root = true
	n.lateral = lateral
	n.correlationParent = parent.id
	n.correlationPath = strings.Join(names[start:end+1], ".")
	n.correlationAttr = corrAttr
	m.addRootNode(n)
	if err := m.updateClauseDependencies(parent, ClauseWhere); err != nil {
		return "", err
	}
	m.mq.debug("added correlated root", slog.String("path", path), slog.String("alias", rootAlias))

	if remaining {
		rest := rootAlias + "." + strings.Join(names[end+1:], ".")
		if endTreat != "" {
			rest = "TREAT(" + rest + " AS " + endTreat + ")"
		}
		if _, err := m.Join(rest, alias, InnerJoin, false, true); err != nil {
			return "", err
		}
	}
	return alias, nil
}

// Join creates or promotes the join node for path and returns its id.
//
// The path may be an attribute path, TREAT(path AS Type) or KEY(path). All
// segments but the last are joined implicitly. A default join also becomes
// the node implicit joins of the relation reuse; if an implicit default node
// exists already it is promoted to alias, keeping its identity. Joining the
// same path with the same alias twice returns the same node.
func (m *JoinManager) Join(path, alias string, joinType JoinType, fetch, defaultJoin bool) (clause.NodeID, error) {
	p, err := clause.ParsePath(path)
	if err != nil {
		return clause.NoNode, err
	}
	return m.joinPath(p, alias, joinType, fetch, defaultJoin)
}

func (m *JoinManager) joinPath(p *clause.Path, alias string, joinType JoinType, fetch, defaultJoin bool) (clause.NodeID, error) {
	if alias == "" {
		return clause.NoNode, fmt.Errorf("%w: join of %s needs an alias", ErrInvalidPath, p)
	}
	if joinType == FullJoin {
		m.hasFullJoin = true
	}
	if info, ok := m.aliases.AliasInfo(startAlias(p)); ok {
		if _, sel := info.(*SelectAliasInfo); sel {
			return clause.NoNode, fmt.Errorf("%w: cannot join %s", ErrSelectAliasDereference, p)
		}
		if info.Owner() != m.aliases {
			return clause.NoNode, fmt.Errorf("%w: %s belongs to an enclosing query, use a correlated root", ErrInvalidPath, p)
		}
	}

	for _, e := range p.Elements {
		if _, ok := e.(clause.ArrayAccess); ok {
			return clause.NoNode, fmt.Errorf("%w: array access in join path %s", ErrInvalidPath, p)
		}
	}

	var treat string
	if len(p.Elements) == 1 {
		switch e := p.Elements[0].(type) {
		case clause.Treat:
			treat, p = e.Type, e.Path
		case clause.Qualified:
			if e.Qualifier == clause.QualifierValue {
				p = e.Path
				break
			}
			n, err := m.joinQualified(e, alias, joinType, false, defaultJoin, true)
			if err != nil {
				return clause.NoNode, err
			}
			if fetch {
				m.fetchPath(n)
			}
			return n.id, nil
		}
	}

	current := clause.NoNode
	var fields []string
	if len(p.Elements) > 1 {
		res, err := m.implicitJoinRange(clause.NoNode, p, 0, len(p.Elements)-1, 0, false, true, false, map[string]bool{})
		if err != nil {
			return clause.NoNode, err
		}
		current, fields = res.node, res.fields
	}
	last := p.Elements[len(p.Elements)-1]
	prop, ok := last.(clause.Property)
	if !ok {
		return clause.NoNode, fmt.Errorf("%w: %s is not allowed as the last element of a join path", ErrInvalidPath, last)
	}
	if current == clause.NoNode {
		root, err := m.RootNodeOrFail("could not join " + p.String() + " without an absolute path")
		if err != nil {
			return clause.NoNode, err
		}
		current = root
	}
	res, err := m.createOrUpdateNode(m.mq.node(current), append(fields, prop.Name), treat, alias, joinType, false, defaultJoin, true)
	if err != nil {
		return clause.NoNode, err
	}
	if res.hasField() {
		return clause.NoNode, fmt.Errorf("%w: %s is not a joinable attribute", ErrInvalidPath, p)
	}
	n := m.mq.node(res.node)
	if fetch {
		m.fetchPath(n)
	}
	return n.id, nil
}

// JoinOn is like Join but returns a builder for the ON clause of the node.
// The predicate takes effect when the builder's End is called.
func (m *JoinManager) JoinOn(path, alias string, joinType JoinType, defaultJoin bool) (*JoinOnBuilder[error], error) {
	id, err := m.Join(path, alias, joinType, false, defaultJoin)
	if err != nil {
		return nil, err
	}
	return newJoinOnBuilder(m, id), nil
}

// EntityJoinOn joins entity, unrelated to base by any attribute, under base.
// base is an alias or a path resolving to a join node. Without
// Capabilities.EntityJoin inner entity joins are emulated as cross joins and
// outer ones fail when the FROM clause is built.
func (m *JoinManager) EntityJoinOn(base, entity, alias string, joinType JoinType) (*JoinOnBuilder[error], error) {
	if alias == "" {
		return nil, fmt.Errorf("%w: entity join of %s needs an alias", ErrInvalidPath, entity)
	}
	if joinType == 0 {
		joinType = InnerJoin
	}
	if joinType == FullJoin {
		m.hasFullJoin = true
	}
	t, ok := m.mq.model.Type(entity)
	if !ok || t.Persistence != metamodel.EntityType {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	baseNode, err := m.resolveBaseNode(base)
	if err != nil {
		return nil, err
	}
	if err := m.checkAliasAvailable(alias, alias); err != nil {
		return nil, err
	}
	info := &JoinAliasInfo{alias: alias, path: alias, owner: m.aliases}
	if err := m.aliases.RegisterAliasInfo(info); err != nil {
		return nil, err
	}
	n := newJoinNode(info, t)
	n.entityJoin = true
	n.joinType = joinType
	n.parent = baseNode.id
	m.mq.add(n)
	baseNode.entityJoins = append(baseNode.entityJoins, n.id)
	m.explicit = append(m.explicit, n.id)
	m.mq.debug("added entity join", slog.String("entity", t.Name), slog.String("alias", alias), slog.String("base", baseNode.Alias()))
	return newJoinOnBuilder(m, n.id), nil
}

func (m *JoinManager) resolveBaseNode(base string) (*JoinNode, error) {
	p, err := clause.ParsePath(base)
	if err != nil {
		return nil, err
	}
	if err := m.implicitJoinPath(p, ImplicitJoinOptions{Clause: ClauseJoin, JoinRequired: true}, map[string]bool{}); err != nil {
		return nil, err
	}
	ref := p.Ref()
	if ref == nil || ref.Field != "" {
		return nil, fmt.Errorf("%w: %s does not denote a join node", ErrInvalidPath, base)
	}
	return m.mq.node(ref.Node), nil
}

// setOnPredicate resolves preds and appends them to the ON clause of id.
func (m *JoinManager) setOnPredicate(id clause.NodeID, preds clause.And) error {
	n := m.mq.node(id)
	if len(preds) == 0 {
		return nil
	}
	if err := m.ImplicitJoin(preds, ImplicitJoinOptions{Clause: ClauseJoin}); err != nil {
		return err
	}
	n.onPredicate = append(n.onPredicate, preds...)
	m.registerDependencies(n, preds)
	return m.updateClauseDependencies(n, ClauseJoin)
}

// joinResult is the outcome of resolving (part of) a path.
type joinResult struct {
	node     clause.NodeID
	fields   []string
	typ      *metamodel.Type
	lazy     bool
	svaStart int
	svaEnd   int
}

func (r joinResult) hasField() bool { return len(r.fields) > 0 }

func (r joinResult) field() string { return strings.Join(r.fields, ".") }

func nodeResult(n *JoinNode) joinResult {
	return joinResult{node: n.id, typ: n.Type(), svaStart: -1, svaEnd: -1}
}

type joinSpec struct {
	relation    string
	attr        *metamodel.Attribute
	typ         *metamodel.Type
	treat       string
	alias       string
	joinType    JoinType
	pinned      bool
	implicit    bool
	defaultJoin bool
	joinAllowed bool
	qualifier   clause.Qualifier
	arrayIndex  string
	collection  bool
}

// createOrUpdateNode joins relAttrs from base. A non-joinable attribute
// yields base with relAttrs as residual fields.
func (m *JoinManager) createOrUpdateNode(base *JoinNode, relAttrs []string, treat, alias string, joinType JoinType, implicit, defaultJoin, joinAllowed bool) (joinResult, error) {
	relation := strings.Join(relAttrs, ".")
	attr, typ, err := m.mq.model.Attribute(base.Type(), relation)
	if err != nil {
		return joinResult{}, fmt.Errorf("%w: %w", ErrUnresolvedAttribute, err)
	}
	if !attr.IsJoinable() {
		return joinResult{node: base.id, fields: relAttrs, typ: typ, svaStart: -1, svaEnd: -1}, nil
	}
	pinned := joinType != 0
	if !pinned {
		joinType = modelAwareType(base, attr)
	}
	if implicit && alias == "" {
		alias = attr.Name
	}
	n, err := m.getOrCreate(base, joinSpec{
		relation:    relation,
		attr:        attr,
		typ:         typ,
		treat:       treat,
		alias:       alias,
		joinType:    joinType,
		pinned:      pinned,
		implicit:    implicit,
		defaultJoin: defaultJoin,
		joinAllowed: joinAllowed,
		collection:  attr.IsCollection(),
	})
	if err != nil {
		return joinResult{}, err
	}
	return nodeResult(n), nil
}

func modelAwareType(base *JoinNode, attr *metamodel.Attribute) JoinType {
	if base.joinType == LeftJoin || base.joinType == FullJoin {
		return LeftJoin
	}
	if attr.IsSingularAssociation() && !attr.Optional {
		return InnerJoin
	}
	return LeftJoin
}

// getOrCreate returns the node of relation under base matching the
// requested alias or default slot, creating or promoting it as needed.
func (m *JoinManager) getOrCreate(base *JoinNode, s joinSpec) (*JoinNode, error) {
	tree, ok := base.children[s.relation]
	if !ok {
		tree = newJoinTreeNode(s.relation, s.attr, s.collection)
	}
	id, found := clause.NoNode, false
	if s.defaultJoin || !s.implicit {
		id, found = tree.lookup(s.alias, s.defaultJoin)
	}

	basePath := base.aliasInfo.path
	path := basePath + "." + s.relation
	if s.qualifier != "" {
		path = string(s.qualifier) + "(" + basePath + ")"
	}
	var treatType *metamodel.Type
	if s.treat != "" && !s.defaultJoin {
		tt, err := m.subtype(s.typ, s.treat)
		if err != nil {
			return nil, err
		}
		treatType = tt
		path = "TREAT(" + path + " AS " + entityName(tt) + ")"
	}

	var n *JoinNode
	if !found {
		if !s.joinAllowed {
			return nil, &ImplicitJoinNotAllowedError{Alias: base.Alias(), Type: base.Type().Name, Relation: s.relation}
		}
		alias := s.alias
		if s.implicit {
			alias = m.aliases.GenerateJoinAlias(alias)
		} else if err := m.checkAliasAvailable(alias, path); err != nil {
			return nil, err
		}
		info := &JoinAliasInfo{alias: alias, implicit: s.implicit, path: path, owner: m.aliases}
		if err := m.aliases.RegisterAliasInfo(info); err != nil {
			return nil, err
		}
		n = newJoinNode(info, s.typ)
		n.joinType = s.joinType
		n.typePinned = s.pinned
		n.treat = treatType
		n.parent = base.id
		n.relation = s.relation
		n.attr = s.attr
		n.isDef = s.defaultJoin
		n.qualifier = s.qualifier
		n.arrayIndex = s.arrayIndex
		m.mq.add(n)
		if !ok {
			base.children[s.relation] = tree
		}
		tree.add(alias, n.id, s.defaultJoin)
		if !s.implicit {
			m.explicit = append(m.explicit, n.id)
		}
		m.mq.debug("created join node",
			slog.String("path", path),
			slog.String("alias", alias),
			slog.String("type", n.joinType.String()),
			slog.Bool("implicit", s.implicit),
		)
		return n, nil
	}

	n = m.mq.node(id)
	switch {
	case s.implicit:
		if s.pinned {
			if err := n.pinJoinType(s.joinType); err != nil {
				return nil, err
			}
		}
	case n.aliasInfo.implicit:
		if err := m.promote(n, tree, s, path); err != nil {
			return nil, err
		}
	case n.aliasInfo.alias != s.alias:
		return nil, &AliasConflictError{
			Alias:   s.alias,
			OldPath: n.aliasInfo.alias + "=" + n.aliasInfo.path,
			NewPath: s.alias + "=" + path,
		}
	case s.pinned:
		if err := n.pinJoinType(s.joinType); err != nil {
			return nil, err
		}
	}
	if treatType != nil {
		if n.treat == nil {
			return m.treatedView(n, treatType.Name)
		}
		if n.treat != treatType {
			return nil, fmt.Errorf("%w: %s is treated as %s, not %s", ErrTreatConflict, n.Alias(), n.treat.Name, treatType.Name)
		}
	}
	return n, nil
}

func (m *JoinManager) promote(n *JoinNode, tree *JoinTreeNode, s joinSpec, path string) error {
	alias := s.alias
	info := n.aliasInfo
	old := info.alias
	if alias != old {
		if err := m.checkAliasAvailable(alias, path); err != nil {
			return err
		}
		info.owner.UnregisterAliasInfoForBottomLevel(info)
		tree.rename(old, alias)
		info.alias = alias
		if err := info.owner.RegisterAliasInfo(info); err != nil {
			return err
		}
	}
	info.implicit = false
	if s.pinned {
		if err := n.pinJoinType(s.joinType); err != nil {
			return err
		}
	}
	m.explicit = append(m.explicit, n.id)
	m.mq.debug("promoted implicit join", slog.String("from", old), slog.String("to", alias))
	return nil
}

func (m *JoinManager) checkAliasAvailable(alias, path string) error {
	if alias == "" {
		return fmt.Errorf("%w: empty alias for %s", ErrInvalidPath, path)
	}
	info, ok := m.aliases.AliasInfoForBottomLevel(alias)
	if !ok {
		return nil
	}
	return &AliasConflictError{Alias: alias, OldPath: aliasPath(info), NewPath: path}
}

func (m *JoinManager) subtype(base *metamodel.Type, name string) (*metamodel.Type, error) {
	t, ok := m.mq.model.Type(name)
	if !ok || t.Persistence != metamodel.EntityType {
		return nil, fmt.Errorf("%w: %s is not an entity", ErrIllegalTreat, name)
	}
	if !m.mq.model.IsSubtype(t.Name, base.Name) {
		return nil, fmt.Errorf("%w: %s is not a subtype of %s", ErrIllegalTreat, t.Name, base.Name)
	}
	return t, nil
}

// treatedView returns the view of n treated as subtype, creating it once
// per subtype.
func (m *JoinManager) treatedView(n *JoinNode, subtype string) (*JoinNode, error) {
	if n.treatedOf != clause.NoNode {
		n = m.mq.node(n.treatedOf)
	}
	t, err := m.subtype(n.Type(), subtype)
	if err != nil {
		return nil, err
	}
	if t == n.Type() {
		return n, nil
	}
	if id, ok := n.treated[t.Name]; ok {
		return m.mq.node(id), nil
	}
	v := newJoinNode(n.aliasInfo, n.typ)
	v.treat = t
	v.treatedOf = n.id
	v.parent = n.parent
	v.relation = n.relation
	v.attr = n.attr
	v.joinType = n.joinType
	m.mq.add(v)
	n.treated[t.Name] = v.id
	return v, nil
}

// realNode maps treated views and qualified nodes to the node they stand for.
func (m *JoinManager) realNode(n *JoinNode) *JoinNode {
	for {
		switch {
		case n.treatedOf != clause.NoNode:
			n = m.mq.node(n.treatedOf)
		case n.qualifier != "":
			n = m.mq.node(n.parent)
		default:
			return n
		}
	}
}

func (m *JoinManager) isAncestor(anc, n *JoinNode) bool {
	for cur := n; cur != nil; {
		if cur.id == anc.id {
			return true
		}
		if cur.parent == clause.NoNode {
			return false
		}
		cur = m.realNode(m.mq.node(cur.parent))
	}
	return false
}

// registerDependencies records the nodes referenced by an ON predicate.
// References to the node itself and to joins made through it are not
// dependencies.
func (m *JoinManager) registerDependencies(n *JoinNode, pred clause.Expression) {
	self := m.realNode(n)
	for _, p := range clause.Paths(pred) {
		ref := p.Ref()
		if ref == nil || ref.Node == clause.NoNode {
			continue
		}
		dep := m.realNode(m.mq.node(ref.Node))
		if m.isAncestor(self, dep) || slices.Contains(self.deps, dep.id) {
			continue
		}
		self.deps = append(self.deps, dep.id)
	}
}

// updateClauseDependencies adds c to n, its parents and its dependencies.
func (m *JoinManager) updateClauseDependencies(n *JoinNode, c ClauseType) error {
	return m.propagateClause(n, c, nil)
}

func (m *JoinManager) propagateClause(n *JoinNode, c ClauseType, visiting []clause.NodeID) error {
	if i := slices.Index(visiting, n.id); i >= 0 {
		cycle := visiting[i:]
		aliases := make([]string, len(cycle))
		for k, id := range cycle {
			aliases[k] = m.mq.node(id).Alias()
		}
		return &CyclicJoinError{Aliases: aliases}
	}
	n.clauses |= c
	if n.treatedOf != clause.NoNode {
		return m.propagateClause(m.mq.node(n.treatedOf), c, visiting)
	}
	visiting = append(visiting, n.id)
	if n.parent != clause.NoNode {
		if err := m.propagateClause(m.mq.node(n.parent), c, visiting); err != nil {
			return err
		}
	}
	for _, d := range n.deps {
		if err := m.propagateClause(m.mq.node(d), c, visiting); err != nil {
			return err
		}
	}
	return nil
}

// fetchPath marks n and its ancestors fetched.
func (m *JoinManager) fetchPath(n *JoinNode) {
	for cur := n; cur != nil && !cur.root; {
		cur.fetch = true
		cur.clauses |= ClauseSelect
		if cur.treatedOf != clause.NoNode {
			cur = m.mq.node(cur.treatedOf)
			continue
		}
		if cur.parent == clause.NoNode {
			return
		}
		cur = m.mq.node(cur.parent)
	}
}

// HasNonEmulatableJoins reports whether the query joins anything from its
// roots, which rules out rewriting the roots as plain cross products.
func (m *JoinManager) HasNonEmulatableJoins() bool {
	for _, id := range m.roots {
		r := m.mq.node(id)
		if len(r.children) > 0 {
			return true
		}
		for _, v := range r.treated {
			if len(m.mq.node(v).children) > 0 {
				return true
			}
		}
		for _, e := range r.entityJoins {
			if m.mq.node(e).joinType != InnerJoin {
				return true
			}
		}
	}
	return false
}

// KeyRestrictedLeftJoins returns the LEFT joins whose ON clause restricts
// the KEY or INDEX of the joined collection. Dialects with
// NeedsJoinSubqueryRewrite cannot render these directly.
func (m *JoinManager) KeyRestrictedLeftJoins() []clause.NodeID {
	if !m.mq.caps.NeedsJoinSubqueryRewrite {
		return nil
	}
	var out []clause.NodeID
	m.walk(func(n *JoinNode) {
		if n.joinType != LeftJoin || len(n.onPredicate) == 0 {
			return
		}
		for _, p := range clause.Paths(n.onPredicate) {
			ref := p.Ref()
			if ref == nil {
				continue
			}
			q := m.mq.node(ref.Node)
			if (q.qualifier == clause.QualifierKey || q.qualifier == clause.QualifierIndex) && q.parent == n.id {
				out = append(out, n.id)
				return
			}
		}
	})
	return out
}

// CollectionJoins returns the nodes that can multiply result rows: joins of
// plural relations, entity joins and every root but the first. Nodes
// restricted to one row by an equality on their KEY, INDEX or id, in their
// ON clause or in one of the given predicates, are left out.
func (m *JoinManager) CollectionJoins(where ...clause.Expression) []clause.NodeID {
	constant := map[clause.NodeID]bool{}
	for _, w := range where {
		m.collectConstantified(w, constant)
	}
	var out []clause.NodeID
	m.walk(func(n *JoinNode) {
		if n.treatedOf != clause.NoNode {
			return
		}
		plural := n.entityJoin || (n.root && len(m.roots) > 0 && n.id != m.roots[0])
		if !plural && n.parent != clause.NoNode && n.qualifier == "" {
			if t, ok := m.mq.node(n.parent).children[n.relation]; ok {
				plural = t.collection
			}
		}
		if !plural {
			return
		}
		local := map[clause.NodeID]bool{}
		m.collectConstantified(n.onPredicate, local)
		if constant[n.id] || local[n.id] {
			return
		}
		out = append(out, n.id)
	})
	return out
}

// HasCollections reports whether CollectionJoins is not empty.
func (m *JoinManager) HasCollections(where ...clause.Expression) bool {
	return len(m.CollectionJoins(where...)) > 0
}

func (m *JoinManager) collectConstantified(e clause.Expression, out map[clause.NodeID]bool) {
	switch x := e.(type) {
	case clause.And:
		for _, c := range x {
			m.collectConstantified(c, out)
		}
	case clause.Eq:
		p, ok := x.Left.(*clause.Path)
		if !ok || p.Ref() == nil {
			return
		}
		if vp, isPath := x.Value.(*clause.Path); isPath && vp.Ref() != nil {
			return
		}
		ref := p.Ref()
		n := m.mq.node(ref.Node)
		switch {
		case n.qualifier == clause.QualifierKey || n.qualifier == clause.QualifierIndex:
			out[n.parent] = true
		case ref.Field != "" && n.Type().IsIDPath(ref.Field):
			out[m.realNode(n).id] = true
		}
	}
}

// walk visits the live nodes of this level depth first: roots in order,
// then treated views, child slots by relation and entity joins.
func (m *JoinManager) walk(fn func(*JoinNode)) {
	var visit func(n *JoinNode)
	visit = func(n *JoinNode) {
		if n.removed {
			return
		}
		fn(n)
		for _, v := range n.TreatedNodes() {
			visit(m.mq.node(v))
		}
		for _, r := range n.Relations() {
			for _, c := range n.children[r].Nodes() {
				visit(m.mq.node(c))
			}
		}
		for _, e := range n.entityJoins {
			visit(m.mq.node(e))
		}
	}
	for _, r := range m.roots {
		visit(m.mq.node(r))
	}
}

// Nodes returns the live node ids of this level in walk order.
func (m *JoinManager) Nodes() []clause.NodeID {
	var out []clause.NodeID
	m.walk(func(n *JoinNode) { out = append(out, n.id) })
	return out
}

func startAlias(p *clause.Path) string {
	if len(p.Elements) == 0 {
		return ""
	}
	switch e := p.Elements[0].(type) {
	case clause.Property:
		return e.Name
	case clause.ArrayAccess:
		return e.Name
	case clause.Treat:
		return startAlias(e.Path)
	case clause.Qualified:
		return startAlias(e.Path)
	}
	return ""
}
