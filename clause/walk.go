package clause

// Parent is implemented by expressions defined outside this package that
// contain nested expressions the walker should visit.
type Parent interface {
	Children() []Expression
}

// Walk traverses an expression tree in depth-first order. If fn returns false
// the children of the visited expression are skipped. Path internals (array
// indexes, treat and qualifier operands) are not visited.
func Walk(e Expression, fn func(Expression) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range children(e) {
		Walk(c, fn)
	}
}

// Paths collects every path of an expression tree in visiting order.
func Paths(e Expression) []*Path {
	var paths []*Path
	Walk(e, func(x Expression) bool {
		if p, ok := x.(*Path); ok {
			paths = append(paths, p)
		}
		return true
	})
	return paths
}

func children(e Expression) []Expression {
	switch x := e.(type) {
	case Eq:
		return binary(x.Left, x.Value)
	case Neq:
		return binary(x.Left, x.Value)
	case Gt:
		return binary(x.Left, x.Value)
	case Gte:
		return binary(x.Left, x.Value)
	case Lt:
		return binary(x.Left, x.Value)
	case Lte:
		return binary(x.Left, x.Value)
	case Like:
		return binary(x.Left, x.Value)
	case NotLike:
		return binary(x.Left, x.Value)
	case IsNull:
		return []Expression{x.Expr}
	case IsNotNull:
		return []Expression{x.Expr}
	case IsEmpty:
		return []Expression{x.Expr}
	case MemberOf:
		return binary(x.Collection, x.Value)
	case IN:
		out := []Expression{x.Left}
		for _, v := range x.Values {
			if ve, ok := v.(Expression); ok {
				out = append(out, ve)
			}
		}
		return out
	case Between:
		out := []Expression{x.Left}
		for _, v := range []any{x.Min, x.Max} {
			if ve, ok := v.(Expression); ok {
				out = append(out, ve)
			}
		}
		return out
	case And:
		return x
	case Or:
		return x
	case Not:
		return []Expression{x.Expr}
	case OrderBy:
		return []Expression{x.Expr}
	case InExpr:
		return []Expression{x.Left, x.Expr}
	case NotInExpr:
		return []Expression{x.Left, x.Expr}
	case ExistsExpr:
		return []Expression{x.Expr}
	case NotExistsExpr:
		return []Expression{x.Expr}
	case Func:
		return x.Args
	case *Func:
		return x.Args
	case Parent:
		return x.Children()
	}
	return nil
}

func binary(left Expression, right any) []Expression {
	if re, ok := right.(Expression); ok {
		return []Expression{left, re}
	}
	return []Expression{left}
}
