package joinql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/clause"
)

func selectAndWhereJoins(t *testing.T) *joinql.JoinManager {
	t.Helper()
	jm := newJoinManager(t, joinql.JPA)
	require.NoError(t, jm.ImplicitJoin(clause.MustParsePath("d.owner.name"),
		joinql.ImplicitJoinOptions{Clause: joinql.ClauseSelect}))
	require.NoError(t, jm.ImplicitJoin(clause.Eq{Left: clause.MustParsePath("d.versions.number"), Value: 1},
		joinql.ImplicitJoinOptions{Clause: joinql.ClauseWhere}))
	return jm
}

func TestApplyFrom(t *testing.T) {
	src := selectAndWhereJoins(t)

	dst := joinql.NewJoinManager(documentModel(), joinql.JPA, nil)
	ids, err := dst.ApplyFrom(src, joinql.BuildOptions{})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	want, err := src.BuildClause(joinql.BuildOptions{})
	require.NoError(t, err)
	got, err := dst.BuildClause(joinql.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, want.SQL, got.SQL)
	assert.Equal(t, "Document d LEFT JOIN d.owner owner_1 LEFT JOIN d.versions versions_1", got.SQL)

	owner := nodeByAlias(t, dst, "owner_1")
	assert.Equal(t, ids[nodeByAlias(t, src, "owner_1").ID()], owner.ID())
	assert.True(t, owner.Implicit())
	assert.Equal(t, joinql.ClauseSelect, owner.ClauseDependencies())
}

func TestApplyFromExclusions(t *testing.T) {
	src := selectAndWhereJoins(t)

	dst := joinql.NewJoinManager(documentModel(), joinql.JPA, nil)
	_, err := dst.ApplyFrom(src, joinql.BuildOptions{Exclusions: joinql.ClauseSelect})
	require.NoError(t, err)

	_, ok := dst.NodeByAlias("owner_1")
	assert.False(t, ok)
	nodeByAlias(t, dst, "versions_1")

	// alias counters survive, so a new owner join doesn't reuse the name
	assert.Equal(t, "owner_2", dst.AliasManager().GenerateJoinAlias("owner"))
}

func TestApplyFromCopiesOnClauses(t *testing.T) {
	src := newJoinManager(t, joinql.Hibernate)
	on, err := src.JoinOn("d.partners", "p", joinql.LeftJoin, false)
	require.NoError(t, err)
	require.NoError(t, on.On("p.name").EqExpression("d.name").End())

	dst := joinql.NewJoinManager(documentModel(), joinql.Hibernate, nil)
	_, err = dst.ApplyFrom(src, joinql.BuildOptions{})
	require.NoError(t, err)

	from, err := dst.BuildClause(joinql.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Document d LEFT JOIN d.partners p ON (p.name = d.name)", from.SQL)

	p := nodeByAlias(t, dst, "p")
	assert.Equal(t, []clause.NodeID{nodeByAlias(t, dst, "d").ID()}, p.Dependencies())
	assert.Equal(t, []clause.NodeID{p.ID()}, dst.ExplicitJoins()[1:])
}

func TestApplyFromRequiresEmptyTarget(t *testing.T) {
	src := newJoinManager(t, joinql.JPA)
	dst := newJoinManager(t, joinql.JPA)
	_, err := dst.ApplyFrom(src, joinql.BuildOptions{})
	assert.ErrorIs(t, err, joinql.ErrInvalidPath)
}

func TestRemoveSelectOnlyNodes(t *testing.T) {
	jm := selectAndWhereJoins(t)
	owner := nodeByAlias(t, jm, "owner_1")
	versions := nodeByAlias(t, jm, "versions_1")

	jm.RemoveSelectOnlyNodes([]clause.NodeID{owner.ID(), versions.ID()})
	assert.True(t, owner.IsRemoved())
	assert.False(t, versions.IsRemoved())

	_, ok := jm.NodeByAlias("owner_1")
	assert.False(t, ok)

	from, err := jm.BuildClause(joinql.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Document d LEFT JOIN d.versions versions_1", from.SQL)
}

func TestRemoveRoot(t *testing.T) {
	jm := newJoinManager(t, joinql.JPA)
	_, err := jm.Join("d.owner", "o", joinql.LeftJoin, false, false)
	require.NoError(t, err)
	o := nodeByAlias(t, jm, "o")

	require.NoError(t, jm.RemoveRoot())
	assert.Empty(t, jm.Roots())
	assert.True(t, o.IsRemoved())
	assert.Empty(t, jm.ExplicitJoins())

	assert.ErrorIs(t, jm.RemoveRoot(), joinql.ErrNoRoot)

	// the alias is free again
	_, err = jm.AddRoot("Person", "d")
	require.NoError(t, err)
}

func TestReorderSimpleValuesClauses(t *testing.T) {
	jm := joinql.NewJoinManager(documentModel(), joinql.JPA, nil)
	_, err := jm.AddRootValues("Long", "ids", 2)
	require.NoError(t, err)
	_, err = jm.AddRoot("Document", "d")
	require.NoError(t, err)

	ids := nodeByAlias(t, jm, "ids")
	d := nodeByAlias(t, jm, "d")
	assert.Equal(t, []clause.NodeID{ids.ID(), d.ID()}, jm.Roots())

	jm.ReorderSimpleValuesClauses()
	assert.Equal(t, []clause.NodeID{d.ID(), ids.ID()}, jm.Roots())
}
