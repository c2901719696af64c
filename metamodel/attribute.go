package metamodel

// The constructors below declare attributes for Entity and Embeddable.
// To-one associations are optional unless Required is called.

// ID declares a basic id attribute.
func ID(name string) *Attribute {
	return &Attribute{Name: name, Kind: Basic, Target: "int64", isID: true}
}

// EmbeddedID declares an embedded id attribute.
func EmbeddedID(name, embeddable string) *Attribute {
	return &Attribute{Name: name, Kind: Embedded, Target: embeddable, isID: true}
}

// BasicAttr declares a basic attribute of the given basic type.
func BasicAttr(name, basicType string) *Attribute {
	return &Attribute{Name: name, Kind: Basic, Target: basicType, Optional: true}
}

// String declares a string attribute.
func String(name string) *Attribute { return BasicAttr(name, "string") }

// Int declares an int64 attribute.
func Int(name string) *Attribute { return BasicAttr(name, "int64") }

// EmbeddedAttr declares an embedded attribute.
func EmbeddedAttr(name, embeddable string) *Attribute {
	return &Attribute{Name: name, Kind: Embedded, Target: embeddable}
}

// ManyToOneAttr declares a many-to-one association.
func ManyToOneAttr(name, target string) *Attribute {
	return &Attribute{Name: name, Kind: ManyToOne, Target: target, Optional: true}
}

// OneToOneAttr declares a one-to-one association.
func OneToOneAttr(name, target string) *Attribute {
	return &Attribute{Name: name, Kind: OneToOne, Target: target, Optional: true}
}

// OneToManyAttr declares a one-to-many association, a bag by default.
func OneToManyAttr(name, target string) *Attribute {
	return &Attribute{Name: name, Kind: OneToMany, Target: target, Collection: Bag, Optional: true}
}

// ManyToManyAttr declares a many-to-many association, a bag by default.
func ManyToManyAttr(name, target string) *Attribute {
	return &Attribute{Name: name, Kind: ManyToMany, Target: target, Collection: Bag, Optional: true, JoinTable: true}
}

// ElementCollectionAttr declares a collection of basic or embeddable values.
func ElementCollectionAttr(name, element string) *Attribute {
	return &Attribute{Name: name, Kind: ElementCollection, Target: element, Collection: Bag, Optional: true}
}

// Required marks a to-one association as non-optional.
func (a *Attribute) Required() *Attribute {
	a.Optional = false
	return a
}

// WithMappedBy marks the attribute as the inverse side of target.attr.
func (a *Attribute) WithMappedBy(attr string) *Attribute {
	a.MappedBy = attr
	return a
}

// AsList makes a plural attribute an indexed list.
func (a *Attribute) AsList() *Attribute {
	a.Collection = List
	return a
}

// AsSet makes a plural attribute a set.
func (a *Attribute) AsSet() *Attribute {
	a.Collection = Set
	return a
}

// AsMap makes a plural attribute a map keyed by keyType.
func (a *Attribute) AsMap(keyType string) *Attribute {
	a.Collection = Map
	a.KeyType = keyType
	return a
}

// NaturalID marks the attribute as part of the natural id.
func (a *Attribute) NaturalID() *Attribute {
	a.isNaturalID = true
	return a
}

// WithForeignJoinColumn marks an association whose join column does not
// live in the owner table.
func (a *Attribute) WithForeignJoinColumn() *Attribute {
	a.ForeignJoinColumn = true
	return a
}

// WithColumn sets the mapped column name.
func (a *Attribute) WithColumn(column string) *Attribute {
	a.Column = column
	return a
}

// Of sets the basic type of an id attribute.
func (a *Attribute) Of(basicType string) *Attribute {
	a.Target = basicType
	return a
}
