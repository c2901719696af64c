package metamodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql/metamodel"
)

func documentModel(t *testing.T) *metamodel.Metamodel {
	t.Helper()
	mm, err := metamodel.New(
		metamodel.Entity("Person",
			metamodel.ID("id"),
			metamodel.String("name"),
			metamodel.EmbeddedAttr("address", "Address"),
			metamodel.OneToOneAttr("profile", "Profile").WithMappedBy("person"),
		),
		metamodel.Embeddable("Address",
			metamodel.String("city"),
			metamodel.ManyToOneAttr("country", "Country"),
		),
		metamodel.Entity("Country", metamodel.ID("code").Of("string")),
		metamodel.Entity("Profile", metamodel.ID("id"), metamodel.OneToOneAttr("person", "Person")),
		metamodel.Entity("Document",
			metamodel.ID("id"),
			metamodel.String("name").NaturalID(),
			metamodel.ManyToOneAttr("owner", "Person"),
			metamodel.OneToManyAttr("versions", "Version").AsList().WithMappedBy("document"),
		),
		metamodel.Entity("Version", metamodel.ID("id"), metamodel.ManyToOneAttr("document", "Document").Required()),
		metamodel.Entity("SpecialDocument", metamodel.String("secret")).Extends("Document"),
	)
	require.NoError(t, err)
	return mm
}

func TestAttributeResolution(t *testing.T) {
	mm := documentModel(t)
	doc, ok := mm.Type("Document")
	require.True(t, ok)

	tests := []struct {
		path     string
		wantName string
		wantType string
		wantErr  bool
	}{
		{path: "name", wantName: "name", wantType: "string"},
		{path: "owner", wantName: "owner", wantType: "Person"},
		{path: "owner.address.city", wantName: "city", wantType: "string"},
		{path: "versions", wantName: "versions", wantType: "Version"},
		{path: "owner.missing", wantErr: true},
		{path: "name.length", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			attr, typ, err := mm.Attribute(doc, tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, metamodel.ErrAttributeNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, attr.Name)
			assert.Equal(t, tt.wantType, typ.Name)
		})
	}
}

func TestOwnedSingularAttribute(t *testing.T) {
	mm := documentModel(t)
	doc, _ := mm.Type("Document")
	person, _ := mm.Type("Person")

	tests := []struct {
		owner *metamodel.Type
		path  string
		want  bool
	}{
		{owner: doc, path: "name", want: true},
		{owner: doc, path: "owner.id", want: true},
		{owner: doc, path: "owner.name", want: false},
		{owner: doc, path: "versions", want: false},
		{owner: person, path: "address.city", want: true},
		{owner: person, path: "address.country.code", want: true},
		{owner: person, path: "profile.id", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.owner.Name+"."+tt.path, func(t *testing.T) {
			_, ok := mm.OwnedSingularAttribute(tt.owner, tt.path)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestInheritance(t *testing.T) {
	mm := documentModel(t)
	special, ok := mm.Type("SpecialDocument")
	require.True(t, ok)

	_, ok = special.Attribute("owner")
	assert.True(t, ok, "inherited attribute")
	assert.Equal(t, []string{"id"}, special.IDAttributes())
	assert.True(t, mm.IsSubtype("SpecialDocument", "Document"))
	assert.False(t, mm.IsSubtype("Document", "SpecialDocument"))

	doc, _ := mm.Type("Document")
	assert.Equal(t, []string{"SpecialDocument"}, doc.Subtypes())
	assert.True(t, doc.IsNaturalIDPath("name"))
	assert.True(t, mm.IsForeignJoinColumn(doc, "versions"))
	assert.False(t, mm.IsForeignJoinColumn(doc, "owner"))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name  string
		types []*metamodel.Type
	}{
		{
			name:  "unknown target",
			types: []*metamodel.Type{metamodel.Entity("A", metamodel.ManyToOneAttr("b", "B"))},
		},
		{
			name:  "unknown supertype",
			types: []*metamodel.Type{metamodel.Entity("A").Extends("B")},
		},
		{
			name: "embedding an entity",
			types: []*metamodel.Type{
				metamodel.Entity("A", metamodel.EmbeddedAttr("b", "B")),
				metamodel.Entity("B", metamodel.ID("id")),
			},
		},
		{
			name:  "duplicate",
			types: []*metamodel.Type{metamodel.Entity("A"), metamodel.Entity("A")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := metamodel.New(tt.types...)
			assert.Error(t, err)
		})
	}
}
