package field

import "github.com/arllen133/joinql/clause"

// Bool represents a boolean attribute.
type Bool struct {
	attr attribute
}

// Path returns a new path expression for this field
func (b Bool) Path() *clause.Path { return b.attr.path() }

// String returns the dotted path
func (b Bool) String() string { return b.attr.String() }

// WithPath creates a new Bool field with the specified attribute path.
func (b Bool) WithPath(name string) Bool { return Bool{attr: b.attr.withName(name)} }

// WithAlias creates a new Bool field with the specified alias.
func (b Bool) WithAlias(alias string) Bool { return Bool{attr: b.attr.withAlias(alias)} }

// Eq creates an equality comparison expression (field = value).
func (b Bool) Eq(value bool) clause.Expression {
	return clause.Eq{Left: b.attr.path(), Value: value}
}

// Neq creates a not equal comparison expression (field <> value).
func (b Bool) Neq(value bool) clause.Expression {
	return clause.Neq{Left: b.attr.path(), Value: value}
}

// IsTrue compares the field with the TRUE literal.
func (b Bool) IsTrue() clause.Expression {
	return clause.Eq{Left: b.attr.path(), Value: clause.Bool(true)}
}

// IsFalse compares the field with the FALSE literal.
func (b Bool) IsFalse() clause.Expression {
	return clause.Eq{Left: b.attr.path(), Value: clause.Bool(false)}
}

// IsNull creates a NULL check expression (field IS NULL).
func (b Bool) IsNull() clause.Expression {
	return clause.IsNull{Expr: b.attr.path()}
}

// IsNotNull creates a NOT NULL check expression (field IS NOT NULL).
func (b Bool) IsNotNull() clause.Expression {
	return clause.IsNotNull{Expr: b.attr.path()}
}

// Asc creates an ascending order expression for ORDER BY clauses.
func (b Bool) Asc() clause.OrderBy {
	return clause.OrderBy{Expr: b.attr.path()}
}

// Desc creates a descending order expression for ORDER BY clauses.
func (b Bool) Desc() clause.OrderBy {
	return clause.OrderBy{Expr: b.attr.path(), Desc: true}
}
