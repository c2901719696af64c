package joinql

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/arllen133/joinql/clause"
)

// ApplyFrom copies the roots and joins of src into m, which must not have
// roots yet. Nodes referenced only from clauses in opts.Exclusions are left
// out unless listed in opts.AlwaysIncluded. Aliases, alias counters and
// declaration order are kept, and ON predicates are cloned and resolved
// against the copy. The returned map takes src node ids to the ids of
// their copies.
func (m *JoinManager) ApplyFrom(src *JoinManager, opts BuildOptions) (map[clause.NodeID]clause.NodeID, error) {
	return m.applyFrom(src, opts, nil)
}

// applyFrom is ApplyFrom for subquery levels: outer maps the node ids of
// the enclosing source query to their copies and resolves correlations.
func (m *JoinManager) applyFrom(src *JoinManager, opts BuildOptions, outer map[clause.NodeID]clause.NodeID) (map[clause.NodeID]clause.NodeID, error) {
	if len(m.roots) > 0 {
		return nil, fmt.Errorf("%w: can't apply a from clause to a query with roots", ErrInvalidPath)
	}
	c := &fromCopier{
		m:     m,
		src:   src,
		opts:  opts,
		ids:   make(map[clause.NodeID]clause.NodeID),
		outer: outer,
	}
	for _, id := range src.roots {
		r := src.mq.node(id)
		if r.removed {
			continue
		}
		if _, err := c.copyNode(r, nil); err != nil {
			return nil, err
		}
	}
	for _, id := range src.explicit {
		if nid, ok := c.ids[id]; ok {
			m.explicit = append(m.explicit, nid)
		}
	}
	m.hasFullJoin = src.hasFullJoin
	maps.Copy(m.aliases.counters, src.aliases.counters)

	for _, p := range c.pending {
		preds := make(clause.And, len(p.from.onPredicate))
		for i, e := range p.from.onPredicate {
			preds[i] = clause.Clone(e)
		}
		if err := m.setOnPredicate(p.to, preds); err != nil {
			return nil, err
		}
	}
	m.mq.debug("applied from clause", slog.Int("nodes", len(c.ids)), slog.String("exclusions", opts.Exclusions.String()))
	return c.ids, nil
}

type pendingPredicate struct {
	from *JoinNode
	to   clause.NodeID
}

type fromCopier struct {
	m       *JoinManager
	src     *JoinManager
	opts    BuildOptions
	ids     map[clause.NodeID]clause.NodeID
	outer   map[clause.NodeID]clause.NodeID
	pending []pendingPredicate
}

func (c *fromCopier) skip(n *JoinNode) bool {
	if n.root || n.removed {
		return n.removed
	}
	return c.opts.Exclusions != 0 && c.opts.Exclusions.Has(n.clauses) && !slices.Contains(c.opts.AlwaysIncluded, n.id)
}

// copyNode copies old below parent, or as a root when parent is nil. It
// returns nil for skipped nodes.
func (c *fromCopier) copyNode(old, parent *JoinNode) (*JoinNode, error) {
	if c.skip(old) {
		return nil, nil
	}
	mq := c.m.mq
	var info *JoinAliasInfo
	if old.treatedOf != clause.NoNode {
		info = mq.node(c.ids[old.treatedOf]).aliasInfo
	} else {
		oi := old.aliasInfo
		info = &JoinAliasInfo{alias: oi.alias, implicit: oi.implicit, root: oi.root, path: oi.path, owner: c.m.aliases}
		if err := c.m.aliases.RegisterAliasInfo(info); err != nil {
			return nil, err
		}
	}

	n := newJoinNode(info, old.typ)
	n.joinType, n.typePinned = old.joinType, old.typePinned
	n.treat = old.treat
	n.relation = old.relation
	n.attr = old.attr
	n.isDef = old.isDef
	n.clauses = old.clauses
	n.root = old.root
	n.lateral = old.lateral
	n.entityJoin = old.entityJoin
	n.fetch = old.fetch
	n.qualifier = old.qualifier
	n.arrayIndex = old.arrayIndex
	n.valueCount = old.valueCount
	n.correlationPath = old.correlationPath
	n.correlationAttr = old.correlationAttr
	if parent != nil {
		n.parent = parent.id
	}
	if old.treatedOf != clause.NoNode {
		n.treatedOf = c.ids[old.treatedOf]
	}
	if old.correlationParent != clause.NoNode {
		id, ok := c.ids[old.correlationParent]
		if !ok {
			id, ok = c.outer[old.correlationParent]
		}
		if !ok {
			return nil, fmt.Errorf("%w: correlated root %s can't be copied without its correlation parent", ErrInvalidPath, old.Alias())
		}
		n.correlationParent = id
	}
	mq.add(n)
	c.ids[old.id] = n.id
	if n.root {
		c.m.roots = append(c.m.roots, n.id)
	}
	if len(old.onPredicate) > 0 {
		c.pending = append(c.pending, pendingPredicate{from: old, to: n.id})
	}

	src := c.src.mq
	for _, rel := range old.Relations() {
		ot := old.children[rel]
		nt := newJoinTreeNode(rel, ot.attr, ot.collection)
		for _, id := range ot.Nodes() {
			child, err := c.copyNode(src.node(id), n)
			if err != nil {
				return nil, err
			}
			if child != nil {
				nt.add(child.Alias(), child.id, ot.defaultNode == id)
			}
		}
		if len(nt.nodes) > 0 {
			n.children[rel] = nt
		}
	}
	for _, id := range old.entityJoins {
		e, err := c.copyNode(src.node(id), n)
		if err != nil {
			return nil, err
		}
		if e != nil {
			n.entityJoins = append(n.entityJoins, e.id)
		}
	}
	for _, id := range old.TreatedNodes() {
		v, err := c.copyNode(src.node(id), parent)
		if err != nil {
			return nil, err
		}
		if v != nil {
			n.treated[v.treat.Name] = v.id
		}
	}
	return n, nil
}

// RemoveSelectOnlyNodes removes the candidate nodes that are referenced
// from the SELECT clause only, together with everything joined through
// them.
func (m *JoinManager) RemoveSelectOnlyNodes(candidates []clause.NodeID) {
	set := make(map[clause.NodeID]bool, len(candidates))
	for _, id := range candidates {
		set[id] = true
	}
	for _, id := range m.roots {
		m.removeSelectOnly(set, m.mq.node(id))
	}
}

func (m *JoinManager) removeSelectOnly(candidates map[clause.NodeID]bool, n *JoinNode) {
	for _, rel := range n.Relations() {
		t := n.children[rel]
		for _, id := range t.Nodes() {
			c := m.mq.node(id)
			if candidates[id] && c.clauses == ClauseSelect {
				t.remove(c.Alias())
				m.removeNode(c)
				continue
			}
			m.removeSelectOnly(candidates, c)
		}
		if len(t.nodes) == 0 {
			delete(n.children, rel)
		}
	}
	n.entityJoins = slices.DeleteFunc(n.entityJoins, func(id clause.NodeID) bool {
		c := m.mq.node(id)
		if candidates[id] && c.clauses == ClauseSelect {
			m.removeNode(c)
			return true
		}
		m.removeSelectOnly(candidates, c)
		return false
	})
	for _, id := range n.treated {
		m.removeSelectOnly(candidates, m.mq.node(id))
	}
}

// removeNode marks n and everything below it removed and releases their
// aliases.
func (m *JoinManager) removeNode(n *JoinNode) {
	if n.removed {
		return
	}
	n.removed = true
	if n.treatedOf == clause.NoNode {
		n.aliasInfo.owner.UnregisterAliasInfoForBottomLevel(n.aliasInfo)
	}
	m.explicit = slices.DeleteFunc(m.explicit, func(id clause.NodeID) bool { return id == n.id })
	for _, t := range n.children {
		for _, id := range t.nodes {
			m.removeNode(m.mq.node(id))
		}
	}
	for _, id := range n.treated {
		m.removeNode(m.mq.node(id))
	}
	for _, id := range n.entityJoins {
		m.removeNode(m.mq.node(id))
	}
	m.mq.debug("removed join node", slog.String("alias", n.Alias()))
}

// RemoveRoot removes the first root and everything joined to it.
func (m *JoinManager) RemoveRoot() error {
	if len(m.roots) == 0 {
		return ErrNoRoot
	}
	n := m.mq.node(m.roots[0])
	m.roots = m.roots[1:]
	m.removeNode(n)
	return nil
}

// ReorderSimpleValuesClauses moves VALUES roots nothing is joined to behind
// all other roots.
func (m *JoinManager) ReorderSimpleValuesClauses() {
	simple := func(id clause.NodeID) bool {
		n := m.mq.node(id)
		return n.root && n.valueCount > 0 && len(n.children) == 0 && len(n.treated) == 0 && len(n.entityJoins) == 0
	}
	partition := func(ids []clause.NodeID) []clause.NodeID {
		var rest, values []clause.NodeID
		for _, id := range ids {
			if simple(id) {
				values = append(values, id)
			} else {
				rest = append(rest, id)
			}
		}
		return append(rest, values...)
	}
	m.roots = partition(m.roots)
	m.explicit = partition(m.explicit)
}
