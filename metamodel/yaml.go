package metamodel

import (
	"fmt"
	"slices"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// modelFile is the document layout of a YAML metamodel:
//
//	types:
//	  Document:
//	    id: [id]
//	    attributes:
//	      name: {type: string}
//	      owner: {kind: manyToOne, target: Person}
//	      versions: {kind: oneToMany, target: Version, collection: list, mapped_by: document}
type modelFile struct {
	Types map[string]typeSpec `koanf:"types"`
}

type typeSpec struct {
	Kind       string              `koanf:"kind"`
	Extends    string              `koanf:"extends"`
	Table      string              `koanf:"table"`
	ID         []string            `koanf:"id"`
	NaturalID  []string            `koanf:"natural_id"`
	Attributes map[string]attrSpec `koanf:"attributes"`
}

type attrSpec struct {
	Kind              string `koanf:"kind"`
	Type              string `koanf:"type"`
	Target            string `koanf:"target"`
	Collection        string `koanf:"collection"`
	Key               string `koanf:"key"`
	MappedBy          string `koanf:"mapped_by"`
	Column            string `koanf:"column"`
	Optional          *bool  `koanf:"optional"`
	JoinTable         bool   `koanf:"join_table"`
	ForeignJoinColumn bool   `koanf:"foreign_join_column"`
}

// LoadFile reads a YAML metamodel.
func LoadFile(path string) (*Metamodel, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading metamodel file %s: %w", path, err)
	}
	return fromKoanf(k)
}

// FromMap builds a metamodel from an already decoded document with the same
// layout as LoadFile expects.
func FromMap(doc map[string]any) (*Metamodel, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(doc, ""), nil); err != nil {
		return nil, fmt.Errorf("failed to load metamodel: %w", err)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Metamodel, error) {
	var doc modelFile
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("unable to decode metamodel: %w", err)
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	slices.Sort(names)

	types := make([]*Type, 0, len(names))
	for _, name := range names {
		spec := doc.Types[name]
		t, err := spec.build(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return New(types...)
}

func (s typeSpec) build(name string) (*Type, error) {
	var t *Type
	switch s.Kind {
	case "", "entity":
		t = Entity(name)
	case "embeddable":
		t = Embeddable(name)
	default:
		return nil, fmt.Errorf("%w: type %s has unknown kind %q", ErrInvalidModel, name, s.Kind)
	}
	t.Super = s.Extends
	t.Table = s.Table

	attrNames := make([]string, 0, len(s.Attributes))
	for n := range s.Attributes {
		attrNames = append(attrNames, n)
	}
	slices.Sort(attrNames)
	for _, id := range s.ID {
		if _, ok := s.Attributes[id]; !ok {
			t.AddAttribute(ID(id))
		}
	}

	for _, n := range attrNames {
		a, err := s.Attributes[n].build(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidModel, name, n, err)
		}
		a.isID = slices.Contains(s.ID, n)
		a.isNaturalID = slices.Contains(s.NaturalID, n)
		if a.isID {
			a.Optional = false
		}
		t.AddAttribute(a)
	}
	return t, nil
}

func (s attrSpec) build(name string) (*Attribute, error) {
	kind, ok := ParseAttributeKind(s.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", s.Kind)
	}
	a := &Attribute{
		Name:              name,
		Kind:              kind,
		Target:            s.Target,
		KeyType:           s.Key,
		MappedBy:          s.MappedBy,
		Column:            s.Column,
		Optional:          true,
		JoinTable:         s.JoinTable || kind == ManyToMany,
		ForeignJoinColumn: s.ForeignJoinColumn,
	}
	if s.Optional != nil {
		a.Optional = *s.Optional
	}
	if a.Target == "" {
		a.Target = s.Type
	}
	if a.Target == "" {
		if kind != Basic {
			return nil, fmt.Errorf("missing target")
		}
		a.Target = "string"
	}
	switch kind {
	case OneToMany, ManyToMany, ElementCollection:
		c, ok := ParseCollectionKind(s.Collection)
		if !ok {
			return nil, fmt.Errorf("unknown collection kind %q", s.Collection)
		}
		a.Collection = c
		if c == Map && a.KeyType == "" {
			a.KeyType = "string"
		}
	}
	return a, nil
}
