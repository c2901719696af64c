package field

import "github.com/arllen133/joinql/clause"

// String represents a string attribute.
type String struct {
	attr attribute
}

// Path returns a new path expression for this field
func (s String) Path() *clause.Path { return s.attr.path() }

// String returns the dotted path
func (s String) String() string { return s.attr.String() }

// WithPath creates a new String field with the specified attribute path.
func (s String) WithPath(name string) String { return String{attr: s.attr.withName(name)} }

// WithAlias creates a new String field with the specified alias.
func (s String) WithAlias(alias string) String { return String{attr: s.attr.withAlias(alias)} }

// Eq creates an equality comparison expression (field = value).
func (s String) Eq(value string) clause.Expression {
	return clause.Eq{Left: s.attr.path(), Value: value}
}

// Neq creates a not equal comparison expression (field <> value).
func (s String) Neq(value string) clause.Expression {
	return clause.Neq{Left: s.attr.path(), Value: value}
}

// Like creates a LIKE pattern matching expression (field LIKE pattern).
func (s String) Like(pattern string) clause.Expression {
	return clause.Like{Left: s.attr.path(), Value: pattern}
}

// NotLike creates a NOT LIKE pattern matching expression (field NOT LIKE pattern).
func (s String) NotLike(pattern string) clause.Expression {
	return clause.NotLike{Left: s.attr.path(), Value: pattern}
}

// In creates an IN comparison expression (field IN (values...)).
func (s String) In(values ...string) clause.Expression {
	return clause.IN{Left: s.attr.path(), Values: anySlice(values)}
}

// NotIn creates a NOT IN comparison expression (field NOT IN (values...)).
func (s String) NotIn(values ...string) clause.Expression {
	return clause.Not{Expr: clause.IN{Left: s.attr.path(), Values: anySlice(values)}}
}

// IsNull creates a NULL check expression (field IS NULL).
func (s String) IsNull() clause.Expression {
	return clause.IsNull{Expr: s.attr.path()}
}

// IsNotNull creates a NOT NULL check expression (field IS NOT NULL).
func (s String) IsNotNull() clause.Expression {
	return clause.IsNotNull{Expr: s.attr.path()}
}

// EqPath compares the field with another attribute path (field = other).
func (s String) EqPath(other String) clause.Expression {
	return clause.Eq{Left: s.attr.path(), Value: other.attr.path()}
}

// Asc creates an ascending order expression for ORDER BY clauses.
func (s String) Asc() clause.OrderBy {
	return clause.OrderBy{Expr: s.attr.path()}
}

// Desc creates a descending order expression for ORDER BY clauses.
func (s String) Desc() clause.OrderBy {
	return clause.OrderBy{Expr: s.attr.path(), Desc: true}
}

// InExpr creates an IN expression with a subquery (field IN (SELECT ...)).
func (s String) InExpr(expr clause.Expression) clause.Expression {
	return clause.InExpr{Left: s.attr.path(), Expr: expr}
}

// NotInExpr creates a NOT IN expression with a subquery (field NOT IN (SELECT ...)).
func (s String) NotInExpr(expr clause.Expression) clause.Expression {
	return clause.NotInExpr{Left: s.attr.path(), Expr: expr}
}
