// Package metamodel describes the managed types a query can navigate:
// entities, embeddables and their attributes. A Metamodel is immutable once
// built and answers the attribute questions the join engine asks.
package metamodel

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrAttributeNotFound is returned when a path segment does not name an
	// attribute of the current type.
	ErrAttributeNotFound = errors.New("metamodel: attribute not found")
	// ErrUnknownType is returned for references to unregistered types.
	ErrUnknownType = errors.New("metamodel: unknown type")
	// ErrInvalidModel is returned when a model fails validation.
	ErrInvalidModel = errors.New("metamodel: invalid model")
)

// PersistenceType classifies a Type.
type PersistenceType int

const (
	EntityType PersistenceType = iota
	EmbeddableType
	BasicType
)

func (p PersistenceType) String() string {
	switch p {
	case EntityType:
		return "entity"
	case EmbeddableType:
		return "embeddable"
	default:
		return "basic"
	}
}

// AttributeKind is the mapping kind of an attribute.
type AttributeKind int

const (
	Basic AttributeKind = iota
	Embedded
	ManyToOne
	OneToOne
	OneToMany
	ManyToMany
	ElementCollection
)

var kindNames = map[AttributeKind]string{
	Basic:             "basic",
	Embedded:          "embedded",
	ManyToOne:         "manyToOne",
	OneToOne:          "oneToOne",
	OneToMany:         "oneToMany",
	ManyToMany:        "manyToMany",
	ElementCollection: "elementCollection",
}

func (k AttributeKind) String() string { return kindNames[k] }

// ParseAttributeKind parses the names used in tags and model files. The
// hasOne, hasMany and belongsTo spellings are accepted as aliases.
func ParseAttributeKind(s string) (AttributeKind, bool) {
	switch strings.ToLower(s) {
	case "basic", "":
		return Basic, true
	case "embedded":
		return Embedded, true
	case "manytoone", "belongsto":
		return ManyToOne, true
	case "onetoone", "hasone":
		return OneToOne, true
	case "onetomany", "hasmany":
		return OneToMany, true
	case "manytomany":
		return ManyToMany, true
	case "elementcollection":
		return ElementCollection, true
	}
	return 0, false
}

// CollectionKind is the collection semantics of a plural attribute.
type CollectionKind int

const (
	NoCollection CollectionKind = iota
	Set
	List
	Map
	Bag
)

func (c CollectionKind) String() string {
	switch c {
	case Set:
		return "set"
	case List:
		return "list"
	case Map:
		return "map"
	case Bag:
		return "bag"
	}
	return ""
}

// ParseCollectionKind parses set, list, map or bag.
func ParseCollectionKind(s string) (CollectionKind, bool) {
	switch strings.ToLower(s) {
	case "set":
		return Set, true
	case "list":
		return List, true
	case "map":
		return Map, true
	case "bag", "":
		return Bag, true
	}
	return NoCollection, false
}

// Attribute is a persistent attribute of a managed type.
type Attribute struct {
	Name       string
	Kind       AttributeKind
	Collection CollectionKind
	// Target is the basic type name for basic attributes and the referenced
	// type name otherwise.
	Target            string
	KeyType           string
	Optional          bool
	MappedBy          string
	Column            string
	JoinTable         bool
	ForeignJoinColumn bool
	Declaring         *Type

	isID        bool
	isNaturalID bool
}

// IsAssociation reports whether the attribute references another entity.
func (a *Attribute) IsAssociation() bool {
	switch a.Kind {
	case ManyToOne, OneToOne, OneToMany, ManyToMany:
		return true
	}
	return false
}

// IsCollection reports whether the attribute is plural.
func (a *Attribute) IsCollection() bool {
	return a.Collection != NoCollection
}

// IsJoinable reports whether navigating the attribute requires a join.
func (a *Attribute) IsJoinable() bool {
	return a.IsAssociation() || a.Kind == ElementCollection
}

// IsSingularAssociation reports whether the attribute is a to-one association.
func (a *Attribute) IsSingularAssociation() bool {
	return a.Kind == ManyToOne || a.Kind == OneToOne
}

// Type is an entity, embeddable or basic type.
type Type struct {
	Name        string
	Persistence PersistenceType
	Table       string
	Super       string
	IDs         []string
	NaturalIDs  []string

	attributes map[string]*Attribute
	order      []string
	super      *Type
	subtypes   []string
}

// Entity declares an entity type.
func Entity(name string, attrs ...*Attribute) *Type {
	return newType(name, EntityType, attrs)
}

// Embeddable declares an embeddable type.
func Embeddable(name string, attrs ...*Attribute) *Type {
	return newType(name, EmbeddableType, attrs)
}

func newType(name string, p PersistenceType, attrs []*Attribute) *Type {
	t := &Type{Name: name, Persistence: p, attributes: make(map[string]*Attribute)}
	for _, a := range attrs {
		t.AddAttribute(a)
	}
	return t
}

// Extends sets the supertype.
func (t *Type) Extends(super string) *Type {
	t.Super = super
	return t
}

// TableName sets the mapped table.
func (t *Type) TableName(name string) *Type {
	t.Table = name
	return t
}

// AddAttribute adds or replaces an attribute. ID and natural id markers on
// the attribute are recorded on the type.
func (t *Type) AddAttribute(a *Attribute) {
	if _, ok := t.attributes[a.Name]; !ok {
		t.order = append(t.order, a.Name)
	}
	a.Declaring = t
	t.attributes[a.Name] = a
	if a.isID && !slices.Contains(t.IDs, a.Name) {
		t.IDs = append(t.IDs, a.Name)
	}
	if a.isNaturalID && !slices.Contains(t.NaturalIDs, a.Name) {
		t.NaturalIDs = append(t.NaturalIDs, a.Name)
	}
}

// Attribute looks up an attribute declared on the type or a supertype.
func (t *Type) Attribute(name string) (*Attribute, bool) {
	for cur := t; cur != nil; cur = cur.super {
		if a, ok := cur.attributes[name]; ok {
			return a, true
		}
	}
	return nil, false
}

// Attributes returns all attributes, supertype attributes first, in
// declaration order.
func (t *Type) Attributes() []*Attribute {
	var out []*Attribute
	if t.super != nil {
		out = t.super.Attributes()
	}
	for _, n := range t.order {
		out = append(out, t.attributes[n])
	}
	return out
}

// IDAttributes returns the id attribute names including inherited ones.
func (t *Type) IDAttributes() []string {
	for cur := t; cur != nil; cur = cur.super {
		if len(cur.IDs) > 0 {
			return cur.IDs
		}
	}
	return nil
}

// IsIDPath reports whether path is, or lies inside, an id attribute.
func (t *Type) IsIDPath(path string) bool {
	return matchesAny(t.IDAttributes(), path)
}

// IsNaturalIDPath reports whether path is, or lies inside, a natural id.
func (t *Type) IsNaturalIDPath(path string) bool {
	for cur := t; cur != nil; cur = cur.super {
		if matchesAny(cur.NaturalIDs, path) {
			return true
		}
	}
	return false
}

func matchesAny(names []string, path string) bool {
	for _, id := range names {
		if path == id || strings.HasPrefix(path, id+".") {
			return true
		}
	}
	return false
}

// SimpleName returns the type name without a package qualifier.
func (t *Type) SimpleName() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// Subtypes returns the direct and indirect subtype names, sorted.
func (t *Type) Subtypes() []string { return t.subtypes }

// SuperType returns the resolved supertype or nil.
func (t *Type) SuperType() *Type { return t.super }

// Metamodel is a validated, immutable set of types.
type Metamodel struct {
	types map[string]*Type
	basic map[string]*Type
	names []string
}

// New validates the given types and links supertypes and targets.
func New(types ...*Type) (*Metamodel, error) {
	m := &Metamodel{
		types: make(map[string]*Type, len(types)),
		basic: make(map[string]*Type),
	}
	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: type without name", ErrInvalidModel)
		}
		if _, dup := m.types[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate type %s", ErrInvalidModel, t.Name)
		}
		m.types[t.Name] = t
		m.names = append(m.names, t.Name)
	}
	slices.Sort(m.names)

	for _, t := range types {
		if t.Super == "" {
			continue
		}
		super, ok := m.types[t.Super]
		if !ok {
			return nil, fmt.Errorf("%w: %s extends %s", ErrUnknownType, t.Name, t.Super)
		}
		t.super = super
	}
	for _, t := range types {
		seen := map[*Type]bool{}
		for cur := t.super; cur != nil; cur = cur.super {
			if cur == t || seen[cur] {
				return nil, fmt.Errorf("%w: cyclic inheritance of %s", ErrInvalidModel, t.Name)
			}
			seen[cur] = true
			cur.subtypes = append(cur.subtypes, t.Name)
		}
	}
	for _, t := range types {
		slices.Sort(t.subtypes)
		for _, a := range t.Attributes() {
			if a.Kind == Basic {
				continue
			}
			target, ok := m.types[a.Target]
			if !ok {
				if a.Kind == ElementCollection {
					continue
				}
				return nil, fmt.Errorf("%w: %s.%s references %s", ErrUnknownType, t.Name, a.Name, a.Target)
			}
			if a.Kind == Embedded && target.Persistence != EmbeddableType {
				return nil, fmt.Errorf("%w: %s.%s embeds non-embeddable %s", ErrInvalidModel, t.Name, a.Name, a.Target)
			}
			if a.IsAssociation() && target.Persistence != EntityType {
				return nil, fmt.Errorf("%w: %s.%s targets non-entity %s", ErrInvalidModel, t.Name, a.Name, a.Target)
			}
		}
	}
	return m, nil
}

// MustNew is like New but panics on error.
func MustNew(types ...*Type) *Metamodel {
	m, err := New(types...)
	if err != nil {
		panic(err)
	}
	return m
}

// Type returns a managed type by name.
func (m *Metamodel) Type(name string) (*Type, bool) {
	t, ok := m.types[name]
	return t, ok
}

// Types returns all managed types sorted by name.
func (m *Metamodel) Types() []*Type {
	out := make([]*Type, len(m.names))
	for i, n := range m.names {
		out[i] = m.types[n]
	}
	return out
}

// IsEntity reports whether name is a registered entity, matching either the
// full or the simple name.
func (m *Metamodel) IsEntity(name string) bool {
	for _, t := range m.types {
		if t.Persistence == EntityType && (t.Name == name || t.SimpleName() == name) {
			return true
		}
	}
	return false
}

// AttributeType returns the type an attribute leads to. Basic attributes
// and basic element collections lead to a synthesized basic type.
func (m *Metamodel) AttributeType(a *Attribute) *Type {
	if t, ok := m.types[a.Target]; ok {
		return t
	}
	bt, ok := m.basic[a.Target]
	if !ok {
		bt = &Type{Name: a.Target, Persistence: BasicType}
		m.basic[a.Target] = bt
	}
	return bt
}

// Attribute resolves a dotted attribute path starting at owner. It returns
// the last attribute and the type that attribute leads to.
func (m *Metamodel) Attribute(owner *Type, path string) (*Attribute, *Type, error) {
	cur := owner
	var attr *Attribute
	for _, seg := range strings.Split(path, ".") {
		if cur == nil || cur.Persistence == BasicType {
			return nil, nil, fmt.Errorf("%w: cannot dereference %q of basic type", ErrAttributeNotFound, seg)
		}
		a, ok := cur.Attribute(seg)
		if !ok {
			return nil, nil, fmt.Errorf("%w: field with name %s was not found within class %s", ErrAttributeNotFound, seg, cur.Name)
		}
		attr = a
		cur = m.AttributeType(a)
	}
	return attr, cur, nil
}

// OwnedSingularAttribute resolves path as a singular attribute reachable
// without a join: plain attributes, attributes of embeddables and the id or
// natural id attributes behind an owning to-one association. Whether such an
// association is backed by a local column is left to IsForeignJoinColumn.
func (m *Metamodel) OwnedSingularAttribute(owner *Type, path string) (*Attribute, bool) {
	segs := strings.Split(path, ".")
	cur := owner
	for i, seg := range segs {
		a, ok := cur.Attribute(seg)
		if !ok || a.IsCollection() {
			return nil, false
		}
		if i == len(segs)-1 {
			return a, true
		}
		switch {
		case a.Kind == Embedded:
			cur = m.AttributeType(a)
		case a.IsSingularAssociation() && a.MappedBy == "" && !a.JoinTable:
			target := m.AttributeType(a)
			rest := strings.Join(segs[i+1:], ".")
			if !target.IsIDPath(rest) && !target.IsNaturalIDPath(rest) {
				return nil, false
			}
			idAttr, _, err := m.Attribute(target, rest)
			if err != nil {
				return nil, false
			}
			return idAttr, true
		default:
			return nil, false
		}
	}
	return nil, false
}

// IsForeignJoinColumn reports whether the association at path is not backed
// by a foreign key column in the table of owner.
func (m *Metamodel) IsForeignJoinColumn(owner *Type, path string) bool {
	a, _, err := m.Attribute(owner, path)
	if err != nil {
		return false
	}
	return a.ForeignJoinColumn || a.JoinTable || a.MappedBy != ""
}

// IsSubtype reports whether sub equals super or inherits from it.
func (m *Metamodel) IsSubtype(sub, super string) bool {
	t, ok := m.types[sub]
	if !ok {
		return false
	}
	for cur := t; cur != nil; cur = cur.super {
		if cur.Name == super {
			return true
		}
	}
	return false
}

// Resolver is the read-only view of a metamodel the join engine depends on.
type Resolver interface {
	Type(name string) (*Type, bool)
	IsEntity(name string) bool
	IsSubtype(sub, super string) bool
	AttributeType(a *Attribute) *Type
	Attribute(owner *Type, path string) (*Attribute, *Type, error)
	OwnedSingularAttribute(owner *Type, path string) (*Attribute, bool)
	IsForeignJoinColumn(owner *Type, path string) bool
}

var _ Resolver = (*Metamodel)(nil)
