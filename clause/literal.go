package clause

import (
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Param is a named parameter rendered as :name.
type Param struct {
	Name string
}

func (p Param) Build() (string, []any, error) {
	return ":" + p.Name, nil, nil
}

// Num is a numeric literal rendered inline.
type Num[T constraints.Integer | constraints.Float] struct {
	Value T
}

func (n Num[T]) Build() (string, []any, error) {
	switch v := any(n.Value).(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil, nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil, nil
	default:
		return strconv.FormatInt(int64(n.Value), 10), nil, nil
	}
}

// Int is a shorthand for an inline integer literal.
func Int(v int) Num[int] { return Num[int]{Value: v} }

// Str is a string literal rendered inline with quotes escaped. A question
// mark is doubled so placeholder formats keep it out of the parameter count.
type Str string

var strEscaper = strings.NewReplacer("'", "''", "?", "??")

func (s Str) Build() (string, []any, error) {
	return "'" + strEscaper.Replace(string(s)) + "'", nil, nil
}

// Bool is a boolean literal.
type Bool bool

func (b Bool) Build() (string, []any, error) {
	if b {
		return "TRUE", nil, nil
	}
	return "FALSE", nil, nil
}

// Null is the NULL literal.
type Null struct{}

func (Null) Build() (string, []any, error) {
	return "NULL", nil, nil
}

// Func is a function call such as COUNT(d.id) or TYPE(d).
type Func struct {
	Name     string
	Args     []Expression
	Distinct bool
}

var aggregates = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// IsAggregate reports whether the function is an aggregate.
func (f Func) IsAggregate() bool {
	return aggregates[strings.ToUpper(f.Name)]
}

func (f Func) Build() (string, []any, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString(strings.ToUpper(f.Name))
	sb.WriteByte('(')
	if f.Distinct {
		sb.WriteString("DISTINCT ")
	}
	for i, a := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sql, aargs, err := a.Build()
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(sql)
		args = append(args, aargs...)
	}
	sb.WriteByte(')')
	return sb.String(), args, nil
}

// Count creates COUNT(expr).
func Count(e Expression) Func { return Func{Name: "COUNT", Args: []Expression{e}} }

// Sum creates SUM(expr).
func Sum(e Expression) Func { return Func{Name: "SUM", Args: []Expression{e}} }

// Avg creates AVG(expr).
func Avg(e Expression) Func { return Func{Name: "AVG", Args: []Expression{e}} }

// Min creates MIN(expr).
func Min(e Expression) Func { return Func{Name: "MIN", Args: []Expression{e}} }

// Max creates MAX(expr).
func Max(e Expression) Func { return Func{Name: "MAX", Args: []Expression{e}} }

// Type creates TYPE(expr).
func Type(e Expression) Func { return Func{Name: "TYPE", Args: []Expression{e}} }

// EntityType is an entity literal as used in TYPE(x) = Entity.
type EntityType string

func (e EntityType) Build() (string, []any, error) {
	return string(e), nil, nil
}
