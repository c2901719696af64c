package field

import "github.com/arllen133/joinql/clause"

// attribute is the path a handle refers to: an optional alias followed by
// the dotted attribute names.
type attribute struct {
	alias string
	name  string
}

func (a attribute) String() string {
	if a.alias == "" {
		return a.name
	}
	if a.name == "" {
		return a.alias
	}
	return a.alias + "." + a.name
}

// path returns a fresh unresolved path. Paths cache their resolution, so
// every expression gets its own.
func (a attribute) path() *clause.Path { return clause.NewPath(a.String()) }

func (a attribute) withName(name string) attribute  { return attribute{alias: a.alias, name: name} }
func (a attribute) withAlias(alias string) attribute { return attribute{alias: alias, name: a.name} }

func anySlice[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Field represents a generic attribute of any type.
// Use this for types that don't have a specific field type.
type Field struct {
	attr attribute
}

// Path returns a new path expression for this field
func (f Field) Path() *clause.Path { return f.attr.path() }

// String returns the dotted path
func (f Field) String() string { return f.attr.String() }

// WithPath creates a new Field with the specified attribute path.
func (f Field) WithPath(name string) Field { return Field{attr: f.attr.withName(name)} }

// WithAlias creates a new Field with the specified alias.
func (f Field) WithAlias(alias string) Field { return Field{attr: f.attr.withAlias(alias)} }

// Query functions

// Eq creates an equality comparison expression (field = value).
func (f Field) Eq(value any) clause.Expression {
	return clause.Eq{Left: f.attr.path(), Value: value}
}

// Neq creates a not equal comparison expression (field <> value).
func (f Field) Neq(value any) clause.Expression {
	return clause.Neq{Left: f.attr.path(), Value: value}
}

// In creates an IN comparison expression (field IN (values...)).
func (f Field) In(values ...any) clause.Expression {
	return clause.IN{Left: f.attr.path(), Values: values}
}

// NotIn creates a NOT IN comparison expression (field NOT IN (values...)).
func (f Field) NotIn(values ...any) clause.Expression {
	return clause.Not{Expr: clause.IN{Left: f.attr.path(), Values: values}}
}

// IsNull creates a NULL check expression (field IS NULL).
func (f Field) IsNull() clause.Expression {
	return clause.IsNull{Expr: f.attr.path()}
}

// IsNotNull creates a NOT NULL check expression (field IS NOT NULL).
func (f Field) IsNotNull() clause.Expression {
	return clause.IsNotNull{Expr: f.attr.path()}
}

// Order expressions for sorting operations

// Asc creates an ascending order expression for ORDER BY clauses.
func (f Field) Asc() clause.OrderBy {
	return clause.OrderBy{Expr: f.attr.path()}
}

// Desc creates a descending order expression for ORDER BY clauses.
func (f Field) Desc() clause.OrderBy {
	return clause.OrderBy{Expr: f.attr.path(), Desc: true}
}

// Count creates a COUNT(field) aggregate.
func (f Field) Count() clause.Func {
	return clause.Count(f.attr.path())
}
