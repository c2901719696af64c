package clause

import (
	"fmt"
	"strings"
)

// Expression is the base interface for all query expressions
type Expression interface {
	Build() (sql string, args []any, err error)
}

// buildOperand renders a comparison operand. Expressions are rendered inline,
// any other value becomes a positional argument.
func buildOperand(v any) (string, []any, error) {
	if e, ok := v.(Expression); ok {
		return e.Build()
	}
	return "?", []any{v}, nil
}

func buildBinary(left Expression, op string, right any) (string, []any, error) {
	lsql, largs, err := left.Build()
	if err != nil {
		return "", nil, err
	}
	rsql, rargs, err := buildOperand(right)
	if err != nil {
		return "", nil, err
	}
	return lsql + " " + op + " " + rsql, append(largs, rargs...), nil
}

// Eq represents an equality expression (left = value)
type Eq struct {
	Left  Expression
	Value any
}

func (e Eq) Build() (string, []any, error) {
	return buildBinary(e.Left, "=", e.Value)
}

// Neq represents a not equal expression (left <> value)
type Neq struct {
	Left  Expression
	Value any
}

func (n Neq) Build() (string, []any, error) {
	return buildBinary(n.Left, "<>", n.Value)
}

// Gt represents a greater than expression (left > value)
type Gt struct {
	Left  Expression
	Value any
}

func (g Gt) Build() (string, []any, error) {
	return buildBinary(g.Left, ">", g.Value)
}

// Gte represents a greater than or equal expression (left >= value)
type Gte struct {
	Left  Expression
	Value any
}

func (g Gte) Build() (string, []any, error) {
	return buildBinary(g.Left, ">=", g.Value)
}

// Lt represents a less than expression (left < value)
type Lt struct {
	Left  Expression
	Value any
}

func (l Lt) Build() (string, []any, error) {
	return buildBinary(l.Left, "<", l.Value)
}

// Lte represents a less than or equal expression (left <= value)
type Lte struct {
	Left  Expression
	Value any
}

func (l Lte) Build() (string, []any, error) {
	return buildBinary(l.Left, "<=", l.Value)
}

// Like represents a LIKE expression
type Like struct {
	Left  Expression
	Value any
}

func (l Like) Build() (string, []any, error) {
	return buildBinary(l.Left, "LIKE", l.Value)
}

// NotLike represents a NOT LIKE expression
type NotLike struct {
	Left  Expression
	Value any
}

func (n NotLike) Build() (string, []any, error) {
	return buildBinary(n.Left, "NOT LIKE", n.Value)
}

// IsNull represents an IS NULL expression
type IsNull struct {
	Expr Expression
}

func (i IsNull) Build() (string, []any, error) {
	sql, args, err := i.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return sql + " IS NULL", args, nil
}

// IsNotNull represents an IS NOT NULL expression
type IsNotNull struct {
	Expr Expression
}

func (i IsNotNull) Build() (string, []any, error) {
	sql, args, err := i.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return sql + " IS NOT NULL", args, nil
}

// IsEmpty represents a collection emptiness check
type IsEmpty struct {
	Expr Expression
	Not  bool
}

func (i IsEmpty) Build() (string, []any, error) {
	sql, args, err := i.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	if i.Not {
		return sql + " IS NOT EMPTY", args, nil
	}
	return sql + " IS EMPTY", args, nil
}

// MemberOf represents value MEMBER OF collection
type MemberOf struct {
	Value      any
	Collection Expression
	Not        bool
}

func (m MemberOf) Build() (string, []any, error) {
	vsql, vargs, err := buildOperand(m.Value)
	if err != nil {
		return "", nil, err
	}
	csql, cargs, err := m.Collection.Build()
	if err != nil {
		return "", nil, err
	}
	op := " MEMBER OF "
	if m.Not {
		op = " NOT MEMBER OF "
	}
	return vsql + op + csql, append(vargs, cargs...), nil
}

// IN represents an IN expression
type IN struct {
	Left   Expression
	Values []any
}

func (i IN) Build() (string, []any, error) {
	switch len(i.Values) {
	case 0:
		return "1 = 0", nil, nil // IN with empty list is always false
	case 1:
		return buildBinary(i.Left, "=", i.Values[0])
	default:
		lsql, args, err := i.Left.Build()
		if err != nil {
			return "", nil, err
		}
		items := make([]string, len(i.Values))
		for idx, v := range i.Values {
			sql, vargs, err := buildOperand(v)
			if err != nil {
				return "", nil, err
			}
			items[idx] = sql
			args = append(args, vargs...)
		}

		sql := fmt.Sprintf("%s IN (%s)", lsql, strings.Join(items, ", "))
		return sql, args, nil
	}
}

// Between represents a BETWEEN expression
type Between struct {
	Left Expression
	Min  any
	Max  any
	Not  bool
}

func (b Between) Build() (string, []any, error) {
	lsql, args, err := b.Left.Build()
	if err != nil {
		return "", nil, err
	}
	minSQL, minArgs, err := buildOperand(b.Min)
	if err != nil {
		return "", nil, err
	}
	maxSQL, maxArgs, err := buildOperand(b.Max)
	if err != nil {
		return "", nil, err
	}
	op := "BETWEEN"
	if b.Not {
		op = "NOT BETWEEN"
	}
	args = append(args, minArgs...)
	args = append(args, maxArgs...)
	return fmt.Sprintf("%s %s %s AND %s", lsql, op, minSQL, maxSQL), args, nil
}

// And represents an AND expression
type And []Expression

func (a And) Build() (string, []any, error) {
	if len(a) == 0 {
		return "1 = 1", nil, nil // Empty AND is always true
	}
	return joinCompound(a, " AND ")
}

// Or represents an OR expression
type Or []Expression

func (o Or) Build() (string, []any, error) {
	if len(o) == 0 {
		return "1 = 0", nil, nil // Empty OR is always false
	}
	return joinCompound(o, " OR ")
}

// joinCompound wraps nested compound operands in parentheses so that
// precedence survives rendering.
func joinCompound(exprs []Expression, sep string) (string, []any, error) {
	var sqls []string
	var args []any

	for _, expr := range exprs {
		sql, exprArgs, err := expr.Build()
		if err != nil {
			return "", nil, err
		}
		switch e := expr.(type) {
		case And:
			if len(e) > 1 {
				sql = "(" + sql + ")"
			}
		case Or:
			if len(e) > 1 {
				sql = "(" + sql + ")"
			}
		}
		sqls = append(sqls, sql)
		args = append(args, exprArgs...)
	}

	return strings.Join(sqls, sep), args, nil
}

// Not represents a NOT expression
type Not struct {
	Expr Expression
}

func (n Not) Build() (string, []any, error) {
	sql, args, err := n.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// Expr represents a custom expression rendered verbatim
type Expr struct {
	SQL  string
	Vars []any
}

func (e Expr) Build() (string, []any, error) {
	return e.SQL, e.Vars, nil
}

// OrderBy represents an ORDER BY item
type OrderBy struct {
	Expr       Expression
	Desc       bool
	NullsFirst *bool
}

func (o OrderBy) Build() (string, []any, error) {
	sql, args, err := o.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	if o.Desc {
		sql += " DESC"
	}
	if o.NullsFirst != nil {
		if *o.NullsFirst {
			sql += " NULLS FIRST"
		} else {
			sql += " NULLS LAST"
		}
	}
	return sql, args, nil
}

// InExpr represents left IN (expression) - typically used for subqueries
type InExpr struct {
	Left Expression
	Expr Expression
}

func (i InExpr) Build() (string, []any, error) {
	lsql, largs, err := i.Left.Build()
	if err != nil {
		return "", nil, err
	}
	sql, args, err := i.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s IN (%s)", lsql, sql), append(largs, args...), nil
}

// NotInExpr represents left NOT IN (expression) - typically used for subqueries
type NotInExpr struct {
	Left Expression
	Expr Expression
}

func (n NotInExpr) Build() (string, []any, error) {
	lsql, largs, err := n.Left.Build()
	if err != nil {
		return "", nil, err
	}
	sql, args, err := n.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s NOT IN (%s)", lsql, sql), append(largs, args...), nil
}

// ExistsExpr represents EXISTS (expression)
type ExistsExpr struct {
	Expr Expression
}

func (e ExistsExpr) Build() (string, []any, error) {
	sql, args, err := e.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return "EXISTS (" + sql + ")", args, nil
}

// NotExistsExpr represents NOT EXISTS (expression)
type NotExistsExpr struct {
	Expr Expression
}

func (n NotExistsExpr) Build() (string, []any, error) {
	sql, args, err := n.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return "NOT EXISTS (" + sql + ")", args, nil
}
