package joinql_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/metamodel"
)

// documentModel is the metamodel shared by the tests of this package.
func documentModel() *metamodel.Metamodel {
	return metamodel.MustNew(
		metamodel.Entity("Person",
			metamodel.ID("id"),
			metamodel.String("name"),
			metamodel.Int("age"),
			metamodel.EmbeddedAttr("address", "Address"),
			metamodel.ManyToOneAttr("friend", "Person"),
		),
		metamodel.Embeddable("Address",
			metamodel.String("street"),
			metamodel.String("city"),
		),
		metamodel.Entity("Employee",
			metamodel.String("department"),
			metamodel.ManyToOneAttr("manager", "Person"),
		).Extends("Person"),
		metamodel.Entity("Document",
			metamodel.ID("id"),
			metamodel.String("name").NaturalID(),
			metamodel.Int("age"),
			metamodel.ManyToOneAttr("owner", "Person"),
			metamodel.ManyToOneAttr("responsible", "Person").Required(),
			metamodel.ManyToOneAttr("reviewer", "Person").WithForeignJoinColumn(),
			metamodel.OneToManyAttr("versions", "Version").WithMappedBy("document").AsList(),
			metamodel.ManyToManyAttr("partners", "Person").AsSet(),
			metamodel.ManyToManyAttr("contacts", "Person").AsMap("int64"),
			metamodel.ElementCollectionAttr("tags", "string"),
		),
		metamodel.Entity("Version",
			metamodel.ID("id"),
			metamodel.Int("number"),
			metamodel.ManyToOneAttr("document", "Document").Required(),
			metamodel.ManyToOneAttr("author", "Person"),
		),
	)
}

func newBuilder(dialect joinql.Dialect, opts ...joinql.BuilderOption) *joinql.CriteriaBuilder {
	return joinql.NewCriteriaBuilder(documentModel(), dialect, opts...)
}

func newJoinManager(t *testing.T, dialect joinql.Dialect) *joinql.JoinManager {
	t.Helper()
	jm := joinql.NewJoinManager(documentModel(), dialect, nil)
	_, err := jm.AddRoot("Document", "d")
	require.NoError(t, err)
	return jm
}

// mustBuild renders cb and fails the test on error.
func mustBuild(t *testing.T, cb *joinql.CriteriaBuilder) (string, []any) {
	t.Helper()
	query, args, err := cb.Build()
	require.NoError(t, err)
	return query, args
}

// nodeByAlias returns the node registered under alias.
func nodeByAlias(t *testing.T, jm *joinql.JoinManager, alias string) *joinql.JoinNode {
	t.Helper()
	n, ok := jm.NodeByAlias(alias)
	require.True(t, ok, "no node for alias %s", alias)
	return n
}
