// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file defines the join graph: JoinNode, JoinTreeNode and the arena
// that owns them.
//
// The join graph is a forest. Each root node is a FROM item; each child slot
// of a node is a JoinTreeNode keyed by relation name, holding any number of
// aliased join nodes and at most one default node. All nodes live in one
// arena shared by a query and its subqueries, and every cross reference is a
// clause.NodeID:
//
//	Document d                      (root)
//	├── owner    {owner_1*}         (JoinTreeNode, * marks the default node)
//	└── partners {p1, p2}
//
// Usage example:
//
//	jm := joinql.NewJoinManager(mm, joinql.Hibernate, nil)
//	jm.AddRoot("Document", "d")
//	id, _ := jm.Join("d.partners", "p1", joinql.LeftJoin, false, false)
//	fmt.Println(jm.Node(id).Alias()) // p1
package joinql

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/metamodel"
)

// JoinType is the type of a join.
// The zero value lets the engine derive the type from the metamodel: LEFT
// below LEFT or FULL joins, INNER for required to-one associations and LEFT
// for everything else.
type JoinType int

const (
	InnerJoin JoinType = iota + 1
	LeftJoin
	RightJoin
	FullJoin
)

func (t JoinType) String() string {
	switch t {
	case InnerJoin:
		return "INNER"
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	case FullJoin:
		return "FULL"
	}
	return "DEFAULT"
}

func (t JoinType) keyword() string {
	switch t {
	case LeftJoin:
		return " LEFT JOIN "
	case RightJoin:
		return " RIGHT JOIN "
	case FullJoin:
		return " FULL JOIN "
	}
	return " JOIN "
}

// ParseJoinType parses inner, left, right or full. An empty string yields
// the zero JoinType.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(s) {
	case "":
		return 0, nil
	case "inner":
		return InnerJoin, nil
	case "left":
		return LeftJoin, nil
	case "right":
		return RightJoin, nil
	case "full":
		return FullJoin, nil
	}
	return 0, fmt.Errorf("joinql: unknown join type %q", s)
}

// ClauseType is a set of query clauses. Join nodes record the clauses they
// are referenced from, which decides whether a node survives clause
// exclusions and select-only pruning.
type ClauseType uint8

const (
	ClauseSelect ClauseType = 1 << iota
	ClauseWhere
	ClauseGroupBy
	ClauseHaving
	ClauseOrderBy
	ClauseJoin
)

var clauseNames = []string{"SELECT", "WHERE", "GROUP_BY", "HAVING", "ORDER_BY", "JOIN"}

// Has reports whether c contains every clause of o.
func (c ClauseType) Has(o ClauseType) bool { return c&o == o }

func (c ClauseType) String() string {
	var names []string
	for i, n := range clauseNames {
		if c&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	return strings.Join(names, "|")
}

// JoinTreeNode is the child slot of a node for one relation.
type JoinTreeNode struct {
	relation    string
	attr        *metamodel.Attribute
	collection  bool
	nodes       map[string]clause.NodeID
	defaultNode clause.NodeID
}

func newJoinTreeNode(relation string, attr *metamodel.Attribute, collection bool) *JoinTreeNode {
	return &JoinTreeNode{
		relation:    relation,
		attr:        attr,
		collection:  collection,
		nodes:       make(map[string]clause.NodeID),
		defaultNode: clause.NoNode,
	}
}

// Relation returns the relation name, e.g. "owner" or "KEY(contacts)".
func (t *JoinTreeNode) Relation() string { return t.relation }

// Attribute returns the attribute the relation navigates.
func (t *JoinTreeNode) Attribute() *metamodel.Attribute { return t.attr }

// IsCollection reports whether the relation is plural.
func (t *JoinTreeNode) IsCollection() bool { return t.collection }

// DefaultNode returns the node implicit joins of the relation reuse.
func (t *JoinTreeNode) DefaultNode() (clause.NodeID, bool) {
	return t.defaultNode, t.defaultNode != clause.NoNode
}

// Node returns the node registered under alias.
func (t *JoinTreeNode) Node(alias string) (clause.NodeID, bool) {
	id, ok := t.nodes[alias]
	return id, ok
}

// Aliases returns the aliases of the slot in sorted order.
func (t *JoinTreeNode) Aliases() []string {
	out := make([]string, 0, len(t.nodes))
	for a := range t.nodes {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Nodes returns the node ids of the slot ordered by alias.
func (t *JoinTreeNode) Nodes() []clause.NodeID {
	aliases := t.Aliases()
	out := make([]clause.NodeID, len(aliases))
	for i, a := range aliases {
		out[i] = t.nodes[a]
	}
	return out
}

func (t *JoinTreeNode) lookup(alias string, defaultJoin bool) (clause.NodeID, bool) {
	if defaultJoin {
		return t.DefaultNode()
	}
	return t.Node(alias)
}

func (t *JoinTreeNode) add(alias string, id clause.NodeID, defaultJoin bool) {
	t.nodes[alias] = id
	if defaultJoin {
		t.defaultNode = id
	}
}

func (t *JoinTreeNode) rename(oldAlias, newAlias string) {
	id, ok := t.nodes[oldAlias]
	if !ok {
		return
	}
	delete(t.nodes, oldAlias)
	t.nodes[newAlias] = id
}

func (t *JoinTreeNode) remove(alias string) {
	id, ok := t.nodes[alias]
	if !ok {
		return
	}
	delete(t.nodes, alias)
	if t.defaultNode == id {
		t.defaultNode = clause.NoNode
	}
}

// JoinNode is a query root or one joined relation instance.
//
// A treated view is a JoinNode too: it shares the alias of the node it
// views and only changes the type attributes are resolved against. Treating
// never mutates the viewed node.
type JoinNode struct {
	id        clause.NodeID
	aliasInfo *JoinAliasInfo
	joinType  JoinType
	typ       *metamodel.Type
	treat     *metamodel.Type
	// typePinned is set once a caller chose joinType.
	typePinned bool

	parent   clause.NodeID
	relation string
	attr     *metamodel.Attribute
	isDef    bool

	onPredicate clause.And
	clauses     ClauseType
	deps        []clause.NodeID

	root       bool
	lateral    bool
	entityJoin bool
	fetch      bool
	removed    bool
	qualifier  clause.Qualifier
	arrayIndex string
	valueCount int

	correlationParent clause.NodeID
	correlationPath   string
	correlationAttr   *metamodel.Attribute

	treatedOf   clause.NodeID
	treated     map[string]clause.NodeID
	entityJoins []clause.NodeID
	children    map[string]*JoinTreeNode
}

func newJoinNode(info *JoinAliasInfo, typ *metamodel.Type) *JoinNode {
	return &JoinNode{
		aliasInfo:         info,
		typ:               typ,
		parent:            clause.NoNode,
		correlationParent: clause.NoNode,
		treatedOf:         clause.NoNode,
		treated:           make(map[string]clause.NodeID),
		children:          make(map[string]*JoinTreeNode),
	}
}

// ID returns the arena id of the node.
func (n *JoinNode) ID() clause.NodeID { return n.id }

// Alias returns the current alias. Promotion changes it in place.
func (n *JoinNode) Alias() string { return n.aliasInfo.alias }

// AliasInfo returns the alias registration of the node.
func (n *JoinNode) AliasInfo() *JoinAliasInfo { return n.aliasInfo }

// Implicit reports whether the node was created by path dereferencing and
// not promoted since.
func (n *JoinNode) Implicit() bool { return n.aliasInfo.implicit }

// JoinType returns the join type. Roots report the zero value.
func (n *JoinNode) JoinType() JoinType { return n.joinType }

// pinJoinType fixes the join type of n. A type pinned before must match.
func (n *JoinNode) pinJoinType(t JoinType) error {
	if n.typePinned && n.joinType != t {
		return fmt.Errorf("%w: %s joined as %s and %s", ErrJoinTypeConflict, n.Alias(), n.joinType, t)
	}
	n.joinType, n.typePinned = t, true
	return nil
}

// Type returns the type attributes are resolved against: the treat type
// if present, the relation type otherwise.
func (n *JoinNode) Type() *metamodel.Type {
	if n.treat != nil {
		return n.treat
	}
	return n.typ
}

// BaseType returns the untreated type of the node.
func (n *JoinNode) BaseType() *metamodel.Type { return n.typ }

// TreatType returns the treat type or nil.
func (n *JoinNode) TreatType() *metamodel.Type { return n.treat }

// Parent returns the parent node or clause.NoNode for roots.
func (n *JoinNode) Parent() clause.NodeID { return n.parent }

// Relation returns the slot the node is registered under in its parent.
func (n *JoinNode) Relation() string { return n.relation }

// Attribute returns the attribute navigated to reach the node.
func (n *JoinNode) Attribute() *metamodel.Attribute { return n.attr }

// OnPredicate returns the conjuncts of the ON clause.
func (n *JoinNode) OnPredicate() clause.And { return slices.Clone(n.onPredicate) }

// ClauseDependencies returns the clauses referencing the node.
func (n *JoinNode) ClauseDependencies() ClauseType { return n.clauses }

// Dependencies returns the nodes referenced by the ON clause.
func (n *JoinNode) Dependencies() []clause.NodeID { return slices.Clone(n.deps) }

func (n *JoinNode) IsRoot() bool       { return n.root }
func (n *JoinNode) IsLateral() bool    { return n.lateral }
func (n *JoinNode) IsEntityJoin() bool { return n.entityJoin }
func (n *JoinNode) IsFetch() bool      { return n.fetch }
func (n *JoinNode) IsRemoved() bool    { return n.removed }

// IsDefault reports whether the node is the default node of its slot.
func (n *JoinNode) IsDefault() bool { return n.isDef }

// IsTreatedView reports whether the node is a treated view of another node.
func (n *JoinNode) IsTreatedView() bool { return n.treatedOf != clause.NoNode }

// TreatedOf returns the node a treated view views.
func (n *JoinNode) TreatedOf() clause.NodeID { return n.treatedOf }

// Qualifier returns KEY, INDEX or ENTRY for qualified nodes.
func (n *JoinNode) Qualifier() clause.Qualifier { return n.qualifier }

// ValueCount returns the row count of a VALUES root, zero otherwise.
func (n *JoinNode) ValueCount() int { return n.valueCount }

// CorrelationParent returns the outer node a correlated root navigates from.
func (n *JoinNode) CorrelationParent() clause.NodeID { return n.correlationParent }

// CorrelationPath returns the attribute path of a correlated root.
func (n *JoinNode) CorrelationPath() string { return n.correlationPath }

// Relations returns the relation names of the child slots, sorted.
func (n *JoinNode) Relations() []string {
	out := make([]string, 0, len(n.children))
	for r := range n.children {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Child returns the child slot for relation.
func (n *JoinNode) Child(relation string) (*JoinTreeNode, bool) {
	t, ok := n.children[relation]
	return t, ok
}

// TreatedNodes returns the treated views of the node ordered by subtype.
func (n *JoinNode) TreatedNodes() []clause.NodeID {
	names := make([]string, 0, len(n.treated))
	for t := range n.treated {
		names = append(names, t)
	}
	slices.Sort(names)
	out := make([]clause.NodeID, len(names))
	for i, t := range names {
		out[i] = n.treated[t]
	}
	return out
}

// EntityJoins returns the entity joins attached to the node.
func (n *JoinNode) EntityJoins() []clause.NodeID { return slices.Clone(n.entityJoins) }

func (n *JoinNode) isEmbeddable() bool {
	return n.Type().Persistence == metamodel.EmbeddableType
}

// mainQuery is the state shared by a query and all of its subqueries.
type mainQuery struct {
	nodes   []*JoinNode
	model   metamodel.Resolver
	dialect Dialect
	caps    Capabilities
	logger  *slog.Logger
}

func newMainQuery(model metamodel.Resolver, dialect Dialect, logger *slog.Logger) *mainQuery {
	return &mainQuery{
		model:   model,
		dialect: dialect,
		caps:    dialect.Capabilities(),
		logger:  logger,
	}
}

func (q *mainQuery) add(n *JoinNode) clause.NodeID {
	n.id = clause.NodeID(len(q.nodes))
	q.nodes = append(q.nodes, n)
	if n.aliasInfo != nil && n.treatedOf == clause.NoNode {
		n.aliasInfo.node = n.id
	}
	return n.id
}

func (q *mainQuery) node(id clause.NodeID) *JoinNode {
	if id < 0 || int(id) >= len(q.nodes) {
		return nil
	}
	return q.nodes[id]
}

func (q *mainQuery) debug(msg string, args ...any) {
	if q.logger != nil {
		q.logger.Debug(msg, args...)
	}
}

// entityName renders a type as used in FROM items and TREAT.
func entityName(t *metamodel.Type) string {
	return t.SimpleName()
}
