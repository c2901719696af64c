package field

import "github.com/arllen133/joinql/clause"

// Path represents an association or collection attribute. Dereferencing it
// with Dot yields handles for the attributes of the associated type, whose
// use joins the association implicitly.
type Path struct {
	attr attribute
}

// Path returns a new path expression for this field
func (p Path) Path() *clause.Path { return p.attr.path() }

// String returns the dotted path
func (p Path) String() string { return p.attr.String() }

// WithPath creates a new Path field with the specified attribute path.
func (p Path) WithPath(name string) Path { return Path{attr: p.attr.withName(name)} }

// WithAlias creates a new Path field with the specified alias.
func (p Path) WithAlias(alias string) Path { return Path{attr: p.attr.withAlias(alias)} }

// Dot returns the generic handle of an attribute of the associated type.
func (p Path) Dot(name string) Field { return Field{attr: p.child(name)} }

// Association returns the handle of a nested association.
func (p Path) Association(name string) Path { return Path{attr: p.child(name)} }

func (p Path) child(name string) attribute {
	if p.attr.name == "" {
		return attribute{alias: p.attr.alias, name: name}
	}
	return attribute{alias: p.attr.alias, name: p.attr.name + "." + name}
}

// collection returns a path that does not join the collection.
func (p Path) collection() *clause.Path {
	cp := p.attr.path()
	cp.Collection = true
	return cp
}

// Eq compares the associated entity (field = value).
func (p Path) Eq(value any) clause.Expression {
	return clause.Eq{Left: p.attr.path(), Value: value}
}

// IsNull creates a NULL check expression (field IS NULL).
func (p Path) IsNull() clause.Expression {
	return clause.IsNull{Expr: p.attr.path()}
}

// IsNotNull creates a NOT NULL check expression (field IS NOT NULL).
func (p Path) IsNotNull() clause.Expression {
	return clause.IsNotNull{Expr: p.attr.path()}
}

// IsEmpty creates a collection emptiness check (field IS EMPTY).
func (p Path) IsEmpty() clause.Expression {
	return clause.IsEmpty{Expr: p.collection()}
}

// IsNotEmpty creates a collection emptiness check (field IS NOT EMPTY).
func (p Path) IsNotEmpty() clause.Expression {
	return clause.IsEmpty{Expr: p.collection(), Not: true}
}

// Contains creates a membership check (value MEMBER OF field).
func (p Path) Contains(value any) clause.Expression {
	return clause.MemberOf{Value: value, Collection: p.collection()}
}

// Size creates SIZE(field).
func (p Path) Size() clause.Func {
	return clause.Func{Name: "SIZE", Args: []clause.Expression{p.collection()}}
}

// Count creates a COUNT(field) aggregate, which joins the collection.
func (p Path) Count() clause.Func {
	return clause.Count(p.attr.path())
}

// Type creates TYPE(field) for restricting polymorphic associations.
func (p Path) Type() clause.Func {
	return clause.Type(p.attr.path())
}
