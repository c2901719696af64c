package benchmarks

import (
	"testing"

	"github.com/arllen133/joinql"
	"github.com/arllen133/joinql/clause"
	"github.com/arllen133/joinql/field"
	"github.com/arllen133/joinql/metamodel"
)

// Global variable to prevent compiler optimizations
var resultString string

func benchModel() *metamodel.Metamodel {
	return metamodel.MustNew(
		metamodel.Entity("Person",
			metamodel.ID("id"),
			metamodel.String("name"),
			metamodel.ManyToOneAttr("friend", "Person"),
		),
		metamodel.Entity("Document",
			metamodel.ID("id"),
			metamodel.String("name"),
			metamodel.ManyToOneAttr("owner", "Person"),
			metamodel.OneToManyAttr("versions", "Version").WithMappedBy("document").AsList(),
		),
		metamodel.Entity("Version",
			metamodel.ID("id"),
			metamodel.Int("number"),
			metamodel.ManyToOneAttr("document", "Document").Required(),
			metamodel.ManyToOneAttr("author", "Person"),
		),
	)
}

func BenchmarkParsePath(b *testing.B) {
	for b.Loop() {
		p, err := clause.ParsePath("TREAT(d.owner AS Employee).friend.name")
		if err != nil {
			b.Fatal(err)
		}
		resultString = p.String()
	}
}

func BenchmarkImplicitJoin_NewPaths(b *testing.B) {
	mm := benchModel()
	for b.Loop() {
		jm := joinql.NewJoinManager(mm, joinql.JPA, nil)
		if _, err := jm.AddRoot("Document", "d"); err != nil {
			b.Fatal(err)
		}
		for _, p := range []string{"d.owner.name", "d.owner.friend.name", "d.versions.author.name"} {
			if err := jm.ImplicitJoin(clause.MustParsePath(p), joinql.ImplicitJoinOptions{Clause: joinql.ClauseWhere}); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// Paths sharing a prefix resolve to the same nodes, only the first one
// creates joins.
func BenchmarkImplicitJoin_SharedPrefix(b *testing.B) {
	mm := benchModel()
	jm := joinql.NewJoinManager(mm, joinql.JPA, nil)
	if _, err := jm.AddRoot("Document", "d"); err != nil {
		b.Fatal(err)
	}
	for b.Loop() {
		if err := jm.ImplicitJoin(clause.MustParsePath("d.owner.friend.name"), joinql.ImplicitJoinOptions{Clause: joinql.ClauseSelect}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBuild_FieldHandles(b *testing.B) {
	mm := benchModel()
	owner := field.Path{}.WithAlias("d").WithPath("owner")
	number := field.Number[int64]{}.WithAlias("d").WithPath("versions.number")
	for b.Loop() {
		cb := joinql.NewCriteriaBuilder(mm, joinql.Hibernate).
			From("Document", "d").
			WhereExpr(owner.Dot("name").Eq("Alice")).
			WhereExpr(number.Gt(3)).
			OrderByExpr(owner.Dot("id").Asc())
		query, _, err := cb.Build()
		if err != nil {
			b.Fatal(err)
		}
		resultString = query
	}
}

func BenchmarkBuild_CorrelatedSubquery(b *testing.B) {
	mm := benchModel()
	for b.Loop() {
		cb := joinql.NewCriteriaBuilder(mm, joinql.DataNucleus).From("Document", "d")
		sub := cb.Subquery().
			FromCorrelated("d.versions", "v").
			Where("v.author.name").Eq("Bob")
		cb.WhereExpr(joinql.Exists(sub))
		query, _, err := cb.Build()
		if err != nil {
			b.Fatal(err)
		}
		resultString = query
	}
}

func BenchmarkCopy(b *testing.B) {
	mm := benchModel()
	base := joinql.NewCriteriaBuilder(mm, joinql.JPA).
		From("Document", "d").
		Select("d.owner.name").
		Where("d.versions.number").Gt(1)
	for b.Loop() {
		query, _, err := base.Copy().Limit(10).Build()
		if err != nil {
			b.Fatal(err)
		}
		resultString = query
	}
}
