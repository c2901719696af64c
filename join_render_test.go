package joinql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/clause"
)

func TestEntityJoin(t *testing.T) {
	tests := []struct {
		name     string
		dialect  joinql.Dialect
		joinType joinql.JoinType
		want     string
		wantErr  error
	}{
		{
			name: "native left", dialect: joinql.Hibernate, joinType: joinql.LeftJoin,
			want: "SELECT d FROM Document d LEFT JOIN Person p ON (p.name = d.name) WHERE d.age > ?1",
		},
		{
			name: "native inner", dialect: joinql.EclipseLink, joinType: joinql.InnerJoin,
			want: "SELECT d FROM Document d JOIN Person p ON (p.name = d.name) WHERE d.age > ?1",
		},
		{
			name: "emulated inner", dialect: joinql.JPA, joinType: joinql.InnerJoin,
			want: "SELECT d FROM Document d, Person p WHERE p.name = d.name AND d.age > ?1",
		},
		{
			name: "emulated left", dialect: joinql.JPA, joinType: joinql.LeftJoin,
			wantErr: joinql.ErrUnsupportedCapability,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := newBuilder(tt.dialect).
				From("Document", "d").
				EntityJoinOn("d", "Person", "p", tt.joinType).
				On("p.name").EqExpression("d.name").
				End().
				Where("d.age").Gt(18)
			require.NoError(t, cb.Err())

			query, args, err := cb.Build()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, []any{18}, args)

			p := nodeByAlias(t, cb.JoinManager(), "p")
			assert.True(t, p.IsEntityJoin())
			assert.Equal(t, []clause.NodeID{p.Parent()}, p.Dependencies())
		})
	}
}

func TestEntityJoinErrors(t *testing.T) {
	cb := newBuilder(joinql.Hibernate).
		From("Document", "d").
		EntityJoinOn("d", "Missing", "m", joinql.InnerJoin).End()
	assert.ErrorIs(t, cb.Err(), joinql.ErrUnknownEntity)

	cb = newBuilder(joinql.Hibernate).
		From("Document", "d").
		EntityJoinOn("d", "Person", "d", joinql.InnerJoin).End()
	assert.ErrorIs(t, cb.Err(), joinql.ErrAliasConflict)

	cb = newBuilder(joinql.Hibernate).
		From("Document", "d").
		EntityJoinOn("d.name", "Person", "p", joinql.InnerJoin).End()
	assert.ErrorIs(t, cb.Err(), joinql.ErrInvalidPath)
}

func TestValuesRoot(t *testing.T) {
	cb := newBuilder(joinql.Hibernate).
		FromValues("Long", "ids", 3).
		From("Document", "d")

	query, _ := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d, Long(3 VALUES) ids", query)

	roots := cb.JoinManager().Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "d", cb.JoinManager().Node(roots[0]).Alias())
	assert.Equal(t, 3, cb.JoinManager().Node(roots[1]).ValueCount())

	cb = newBuilder(joinql.Hibernate).FromValues("Long", "ids", 0)
	assert.ErrorIs(t, cb.Err(), joinql.ErrInvalidPath)
}

func TestCorrelatedSubquery(t *testing.T) {
	tests := []struct {
		dialect joinql.Dialect
		want    string
	}{
		{joinql.Hibernate, "SELECT d FROM Document d WHERE EXISTS (SELECT v FROM d.versions v WHERE v.number > ?1)"},
		{joinql.JPA, "SELECT d FROM Document d WHERE EXISTS (SELECT v FROM d.versions v WHERE v.number > ?1)"},
		{joinql.DataNucleus, "SELECT d FROM Document d WHERE EXISTS (SELECT v FROM Version v WHERE v.document = d AND v.number > ?1)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			cb := newBuilder(tt.dialect).From("Document", "d")
			sub := cb.Subquery().
				FromCorrelated("d.versions", "v").
				Where("v.number").Gt(3)
			require.NoError(t, sub.Err())
			cb.WhereExpr(joinql.Exists(sub))

			query, args := mustBuild(t, cb)
			assert.Equal(t, tt.want, query)
			assert.Equal(t, []any{3}, args)

			v := nodeByAlias(t, sub.JoinManager(), "v")
			assert.True(t, v.IsRoot())
			assert.Equal(t, "versions", v.CorrelationPath())
			assert.Equal(t, nodeByAlias(t, cb.JoinManager(), "d").ID(), v.CorrelationParent())
		})
	}
}

func TestCorrelatedPathWithRemainingSegments(t *testing.T) {
	cb := newBuilder(joinql.Hibernate).From("Document", "d")
	sub := cb.Subquery().
		FromCorrelated("d.owner.friend", "f").
		Select("f.name")
	cb.Where("d.name").InExpression(sub)

	query, _ := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d WHERE d.name IN (SELECT f.name FROM d.owner f_base JOIN f_base.friend f)", query)
}

func TestLateralRoot(t *testing.T) {
	cb := newBuilder(joinql.Hibernate).From("Document", "d")
	sub := cb.Subquery().FromLateral("d.versions", "v")
	cb.WhereExpr(joinql.Exists(sub))

	query, _ := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d WHERE EXISTS (SELECT v FROM LATERAL Version v)", query)
	assert.True(t, nodeByAlias(t, sub.JoinManager(), "v").IsLateral())
}

func TestSubqueryResolvesOuterPaths(t *testing.T) {
	cb := newBuilder(joinql.JPA).From("Document", "d")
	sub := cb.Subquery().
		From("Person", "p").
		Where("p.name").EqExpression("d.owner.name")
	require.NoError(t, sub.Err())
	cb.WhereExpr(joinql.NotExists(sub))

	query, _ := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d LEFT JOIN d.owner owner_1 WHERE NOT EXISTS (SELECT p FROM Person p WHERE p.name = owner_1.name)", query)

	_, ok := sub.JoinManager().NodeByAlias("owner_1")
	assert.False(t, ok)

	// joins from outer aliases need a correlated root
	bad := cb.Subquery().From("Person", "p2").LeftJoin("d.versions", "v")
	assert.ErrorIs(t, bad.Err(), joinql.ErrInvalidPath)
}

func TestFetchJoins(t *testing.T) {
	cb := newBuilder(joinql.Hibernate).
		From("Document", "d").
		Fetch("d.owner", "d.versions")

	query, _ := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d LEFT JOIN FETCH d.owner owner_1 LEFT JOIN FETCH d.versions versions_1", query)
	assert.True(t, nodeByAlias(t, cb.JoinManager(), "owner_1").IsFetch())

	cb = newBuilder(joinql.Hibernate).
		From("Document", "d").
		JoinFetch("d.partners", "p", joinql.LeftJoin)
	query, _ = mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d LEFT JOIN FETCH d.partners p", query)
}

func TestQualifiedJoins(t *testing.T) {
	t.Run("explicit key join", func(t *testing.T) {
		cb := newBuilder(joinql.Hibernate).
			From("Document", "d").
			LeftJoin("KEY(d.contacts)", "k").
			Where("k").Eq(5)

		query, args := mustBuild(t, cb)
		assert.Equal(t, "SELECT d FROM Document d LEFT JOIN d.contacts contacts_1 WHERE KEY(contacts_1) = ?1", query)
		assert.Equal(t, []any{5}, args)
		assert.Equal(t, clause.QualifierKey, nodeByAlias(t, cb.JoinManager(), "k").Qualifier())
	})

	t.Run("key of a list", func(t *testing.T) {
		cb := newBuilder(joinql.Hibernate).
			From("Document", "d").
			LeftJoin("KEY(d.versions)", "k")
		assert.ErrorIs(t, cb.Err(), joinql.ErrInvalidPath)
	})

	t.Run("map access", func(t *testing.T) {
		cb := newBuilder(joinql.Hibernate).
			From("Document", "d").
			Where("d.contacts['home'].name").Eq("x").
			Where("d.contacts[:kind].name").Eq("y")

		query, _ := mustBuild(t, cb)
		assert.Equal(t, "SELECT d FROM Document d"+
			" LEFT JOIN d.contacts contacts_home_1 ON (KEY(contacts_home_1) = 'home')"+
			" LEFT JOIN d.contacts contacts_kind_1 ON (KEY(contacts_kind_1) = :kind)"+
			" WHERE contacts_home_1.name = ?1 AND contacts_kind_1.name = ?2", query)
	})

	t.Run("array access in join path", func(t *testing.T) {
		cb := newBuilder(joinql.Hibernate).
			From("Document", "d").
			LeftJoin("d.versions[0]", "v")
		assert.ErrorIs(t, cb.Err(), joinql.ErrInvalidPath)
	})
}

func TestBuildClauseExclusions(t *testing.T) {
	jm := newJoinManager(t, joinql.JPA)
	selectOnly := joinql.ImplicitJoinOptions{Clause: joinql.ClauseSelect, JoinRequired: true}
	require.NoError(t, jm.ImplicitJoin(clause.MustParsePath("d.owner"), selectOnly))
	require.NoError(t, jm.ImplicitJoin(clause.MustParsePath("d.versions"), selectOnly))
	require.NoError(t, jm.ImplicitJoin(clause.Eq{Left: clause.MustParsePath("d.responsible.name"), Value: "x"},
		joinql.ImplicitJoinOptions{Clause: joinql.ClauseWhere}))

	from, err := jm.BuildClause(joinql.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Document d LEFT JOIN d.owner owner_1 JOIN d.responsible responsible_1 LEFT JOIN d.versions versions_1", from.SQL)
	assert.Len(t, from.Nodes, 4)

	// the collection join changes the row count and stays
	from, err = jm.BuildClause(joinql.BuildOptions{Exclusions: joinql.ClauseSelect})
	require.NoError(t, err)
	assert.Equal(t, "Document d JOIN d.responsible responsible_1 LEFT JOIN d.versions versions_1", from.SQL)

	owner := nodeByAlias(t, jm, "owner_1")
	from, err = jm.BuildClause(joinql.BuildOptions{Exclusions: joinql.ClauseSelect, AlwaysIncluded: []clause.NodeID{owner.ID()}})
	require.NoError(t, err)
	assert.Equal(t, "Document d LEFT JOIN d.owner owner_1 JOIN d.responsible responsible_1 LEFT JOIN d.versions versions_1", from.SQL)
}

func TestBuildClauseWithoutRoot(t *testing.T) {
	jm := joinql.NewJoinManager(documentModel(), joinql.JPA, nil)
	_, err := jm.BuildClause(joinql.BuildOptions{})
	assert.ErrorIs(t, err, joinql.ErrNoRoot)
}
