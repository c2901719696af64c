package metamodel_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql/metamodel"
)

type Owner struct {
	ID   int64  `db:"id,primaryKey"`
	Name string `db:"name"`
}

type Item struct {
	ID     int64             `db:"id,primaryKey"`
	Owner  *Owner            `relation:"manyToOne,required"`
	Parts  []*Owner          `relation:"manyToMany"`
	Labels map[string]*Owner `relation:"oneToMany"`
	Notes  []string          `relation:"elementCollection,collection:list"`
	skip   int
}

type SpecialItem struct {
	Item
	Extra string `db:"extra"`
}

func TestRegistry(t *testing.T) {
	r := metamodel.NewRegistry()
	metamodel.MustRegister[Owner](r)
	metamodel.MustRegister[Item](r)
	metamodel.MustRegister[*SpecialItem](r)

	mm, err := r.Build()
	require.NoError(t, err)

	item, ok := mm.Type("Item")
	require.True(t, ok)
	assert.Equal(t, "items", item.Table)
	assert.Equal(t, []string{"id"}, item.IDAttributes())

	owner, ok := item.Attribute("owner")
	require.True(t, ok)
	assert.Equal(t, metamodel.ManyToOne, owner.Kind)
	assert.False(t, owner.Optional)

	parts, _ := item.Attribute("parts")
	assert.Equal(t, metamodel.ManyToMany, parts.Kind)
	assert.True(t, parts.JoinTable)

	labels, _ := item.Attribute("labels")
	assert.Equal(t, metamodel.Map, labels.Collection)
	assert.Equal(t, "string", labels.KeyType)

	notes, _ := item.Attribute("notes")
	assert.Equal(t, metamodel.ElementCollection, notes.Kind)
	assert.Equal(t, metamodel.List, notes.Collection)

	_, ok = item.Attribute("skip")
	assert.False(t, ok)

	special, ok := mm.Type("SpecialItem")
	require.True(t, ok)
	assert.Equal(t, "Item", special.Super)
	assert.True(t, mm.IsSubtype("SpecialItem", "Item"))

	_, ok = r.Lookup(reflectTypeOf[*Item]())
	assert.True(t, ok)
}

func reflectTypeOf[T any]() reflect.Type {
	var t T
	return reflect.TypeOf(t)
}

func TestRegisterRejectsNonStruct(t *testing.T) {
	r := metamodel.NewRegistry()
	assert.ErrorIs(t, metamodel.Register[int](r), metamodel.ErrInvalidModel)
}

func TestParseDir(t *testing.T) {
	mm, err := metamodel.ParseDir("testdata/models")
	require.NoError(t, err)

	var names []string
	for _, typ := range mm.Types() {
		names = append(names, typ.Name)
	}
	assert.Equal(t, []string{"Address", "Document", "Person", "SpecialDocument", "Version"}, names)

	addr, _ := mm.Type("Address")
	assert.Equal(t, metamodel.EmbeddableType, addr.Persistence)

	doc, _ := mm.Type("Document")
	versions, ok := doc.Attribute("versions")
	require.True(t, ok)
	assert.Equal(t, metamodel.List, versions.Collection)
	assert.Equal(t, "document", versions.MappedBy)
	assert.True(t, doc.IsNaturalIDPath("name"))

	_, ok = doc.Attribute("cache")
	assert.False(t, ok)

	version, _ := mm.Type("Version")
	back, _ := version.Attribute("document")
	assert.Equal(t, metamodel.ManyToOne, back.Kind)
}

func TestLoadFile(t *testing.T) {
	mm, err := metamodel.LoadFile("testdata/model.yaml")
	require.NoError(t, err)

	doc, ok := mm.Type("Document")
	require.True(t, ok)
	owner, _ := doc.Attribute("owner")
	assert.False(t, owner.Optional)
	contacts, _ := doc.Attribute("contacts")
	assert.Equal(t, metamodel.Map, contacts.Collection)
	assert.Equal(t, "string", contacts.KeyType)
	assert.True(t, mm.IsSubtype("SpecialDocument", "Document"))

	person, _ := mm.Type("Person")
	_, ok = mm.OwnedSingularAttribute(person, "address.city")
	assert.True(t, ok)
}

func TestFromMapRejectsUnknownKind(t *testing.T) {
	_, err := metamodel.FromMap(map[string]any{
		"types": map[string]any{
			"A": map[string]any{"attributes": map[string]any{"x": map[string]any{"kind": "sideways"}}},
		},
	})
	assert.ErrorIs(t, err, metamodel.ErrInvalidModel)
}

const schema = `
CREATE TABLE persons (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE documents (
	id INTEGER PRIMARY KEY,
	title TEXT,
	owner_id INTEGER NOT NULL REFERENCES persons(id),
	reviewer_id INTEGER REFERENCES persons(id)
);
CREATE TABLE tags (id INTEGER PRIMARY KEY, label TEXT);
CREATE TABLE document_tags (
	document_id INTEGER REFERENCES documents(id),
	tag_id INTEGER REFERENCES tags(id),
	PRIMARY KEY (document_id, tag_id)
);
`

func TestIntrospect(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	mm, err := metamodel.Introspect(context.Background(), db)
	require.NoError(t, err)

	doc, ok := mm.Type("Document")
	require.True(t, ok)
	assert.Equal(t, "documents", doc.Table)

	owner, ok := doc.Attribute("owner")
	require.True(t, ok)
	assert.Equal(t, metamodel.ManyToOne, owner.Kind)
	assert.Equal(t, "Person", owner.Target)
	assert.False(t, owner.Optional)

	reviewer, _ := doc.Attribute("reviewer")
	assert.True(t, reviewer.Optional)

	tags, ok := doc.Attribute("tags")
	require.True(t, ok)
	assert.Equal(t, metamodel.ManyToMany, tags.Kind)

	person, _ := mm.Type("Person")
	inverse, ok := person.Attribute("documents")
	require.True(t, ok)
	assert.Equal(t, metamodel.OneToMany, inverse.Kind)
	assert.Equal(t, "owner", inverse.MappedBy)

	_, ok = mm.Type("DocumentTag")
	assert.False(t, ok, "join tables do not become entities")
}
