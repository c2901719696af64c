// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements alias scoping.
//
// Every query level owns an AliasManager. Subqueries create a child manager
// whose lookups fall back to the enclosing levels, which is how correlated
// paths like "d.owner" inside a subquery find the outer "d".
package joinql

import (
	"strconv"

	"github.com/arllen133/joinql/clause"
)

// AliasInfo is a registered alias: either a *JoinAliasInfo or a *SelectAliasInfo.
type AliasInfo interface {
	// Alias returns the alias name.
	Alias() string
	// Owner returns the scope the alias was registered in.
	Owner() *AliasManager
}

// JoinAliasInfo binds an alias to a join node.
type JoinAliasInfo struct {
	alias    string
	node     clause.NodeID
	implicit bool
	root     bool
	// path is the absolute dereference path, e.g. "d.owner".
	path  string
	owner *AliasManager
}

func (j *JoinAliasInfo) Alias() string        { return j.alias }
func (j *JoinAliasInfo) Owner() *AliasManager { return j.owner }

// Node returns the id of the aliased join node.
func (j *JoinAliasInfo) Node() clause.NodeID { return j.node }

// Implicit reports whether the alias was generated.
func (j *JoinAliasInfo) Implicit() bool { return j.implicit }

// Root reports whether the alias names a query root.
func (j *JoinAliasInfo) Root() bool { return j.root }

// Path returns the absolute path the alias was created for.
func (j *JoinAliasInfo) Path() string { return j.path }

// SelectAliasInfo binds an alias to a select item.
type SelectAliasInfo struct {
	alias string
	expr  clause.Expression
	owner *AliasManager
}

func (s *SelectAliasInfo) Alias() string        { return s.alias }
func (s *SelectAliasInfo) Owner() *AliasManager { return s.owner }

// Expression returns the aliased select expression.
func (s *SelectAliasInfo) Expression() clause.Expression { return s.expr }

// AliasManager is the alias registry of one query level.
// It is not safe for concurrent use.
type AliasManager struct {
	parent   *AliasManager
	aliases  map[string]AliasInfo
	counters map[string]int
}

// NewAliasManager creates a top level scope.
func NewAliasManager() *AliasManager {
	return &AliasManager{
		aliases:  make(map[string]AliasInfo),
		counters: make(map[string]int),
	}
}

// NewChild creates a nested scope whose lookups fall back to m.
func (m *AliasManager) NewChild() *AliasManager {
	c := NewAliasManager()
	c.parent = m
	return c
}

// Parent returns the enclosing scope or nil.
func (m *AliasManager) Parent() *AliasManager { return m.parent }

// RegisterAliasInfo adds info to this scope. It fails with an
// *AliasConflictError if the alias is already registered here, unless the
// very same info is registered again.
func (m *AliasManager) RegisterAliasInfo(info AliasInfo) error {
	if old, ok := m.aliases[info.Alias()]; ok {
		if old == info {
			return nil
		}
		return &AliasConflictError{Alias: info.Alias(), OldPath: aliasPath(old), NewPath: aliasPath(info)}
	}
	m.aliases[info.Alias()] = info
	return nil
}

func aliasPath(info AliasInfo) string {
	switch x := info.(type) {
	case *JoinAliasInfo:
		return x.path
	case *SelectAliasInfo:
		if x.expr != nil {
			if sql, _, err := x.expr.Build(); err == nil {
				return sql
			}
		}
	}
	return info.Alias()
}

// AliasInfo looks alias up from the innermost to the outermost scope.
func (m *AliasManager) AliasInfo(alias string) (AliasInfo, bool) {
	for cur := m; cur != nil; cur = cur.parent {
		if info, ok := cur.aliases[alias]; ok {
			return info, true
		}
	}
	return nil, false
}

// AliasInfoForBottomLevel looks alias up in this scope only.
func (m *AliasManager) AliasInfoForBottomLevel(alias string) (AliasInfo, bool) {
	info, ok := m.aliases[alias]
	return info, ok
}

// UnregisterAliasInfoForBottomLevel removes info from this scope if it is
// the registered value of its alias.
func (m *AliasManager) UnregisterAliasInfoForBottomLevel(info AliasInfo) {
	if cur, ok := m.aliases[info.Alias()]; ok && cur == info {
		delete(m.aliases, info.Alias())
	}
}

// GenerateRootAlias returns base_N for the first free N.
func (m *AliasManager) GenerateRootAlias(base string) string {
	return m.generatePostfixedAlias(base)
}

// GenerateJoinAlias returns base_N for the first free N. The counter is kept
// per base, so owner_1 is followed by owner_2 even after owner_1 is removed.
func (m *AliasManager) GenerateJoinAlias(base string) string {
	return m.generatePostfixedAlias(base)
}

func (m *AliasManager) generatePostfixedAlias(base string) string {
	n := m.counters[base]
	for {
		n++
		alias := base + "_" + strconv.Itoa(n)
		if _, taken := m.AliasInfo(alias); !taken {
			m.counters[base] = n
			return alias
		}
	}
}

// Aliases returns the alias infos of this scope, unordered.
func (m *AliasManager) Aliases() []AliasInfo {
	out := make([]AliasInfo, 0, len(m.aliases))
	for _, info := range m.aliases {
		out = append(out, info)
	}
	return out
}
