package clause

// Cloner is implemented by expressions defined outside this package that
// carry state Clone has to copy.
type Cloner interface {
	CloneExpression() Expression
}

// Clone returns a deep copy of an expression tree. Paths are copied without
// their cached resolution, so the copy can be resolved against another join
// tree. Literals are immutable and shared.
func Clone(e Expression) Expression {
	return CloneFunc(e, nil)
}

// CloneFunc is like Clone but offers every expression to replace first. If
// replace reports true its result is used instead of copying the expression.
func CloneFunc(e Expression, replace func(Expression) (Expression, bool)) Expression {
	c := cloner{replace: replace}
	return c.clone(e)
}

// ClonePath deep copies p without its cached resolution.
func ClonePath(p *Path) *Path {
	c := cloner{}
	return c.path(p)
}

type cloner struct {
	replace func(Expression) (Expression, bool)
}

func (c cloner) clone(e Expression) Expression {
	if e == nil {
		return nil
	}
	if c.replace != nil {
		if r, ok := c.replace(e); ok {
			return r
		}
	}
	switch x := e.(type) {
	case *Path:
		return c.path(x)
	case Eq:
		return Eq{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case Neq:
		return Neq{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case Gt:
		return Gt{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case Gte:
		return Gte{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case Lt:
		return Lt{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case Lte:
		return Lte{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case Like:
		return Like{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case NotLike:
		return NotLike{Left: c.clone(x.Left), Value: c.operand(x.Value)}
	case IsNull:
		return IsNull{Expr: c.clone(x.Expr)}
	case IsNotNull:
		return IsNotNull{Expr: c.clone(x.Expr)}
	case IsEmpty:
		return IsEmpty{Expr: c.clone(x.Expr), Not: x.Not}
	case MemberOf:
		return MemberOf{Value: c.operand(x.Value), Collection: c.clone(x.Collection), Not: x.Not}
	case IN:
		values := make([]any, len(x.Values))
		for i, v := range x.Values {
			values[i] = c.operand(v)
		}
		return IN{Left: c.clone(x.Left), Values: values}
	case Between:
		return Between{Left: c.clone(x.Left), Min: c.operand(x.Min), Max: c.operand(x.Max), Not: x.Not}
	case And:
		return And(c.list(x))
	case Or:
		return Or(c.list(x))
	case Not:
		return Not{Expr: c.clone(x.Expr)}
	case OrderBy:
		return OrderBy{Expr: c.clone(x.Expr), Desc: x.Desc, NullsFirst: x.NullsFirst}
	case InExpr:
		return InExpr{Left: c.clone(x.Left), Expr: c.clone(x.Expr)}
	case NotInExpr:
		return NotInExpr{Left: c.clone(x.Left), Expr: c.clone(x.Expr)}
	case ExistsExpr:
		return ExistsExpr{Expr: c.clone(x.Expr)}
	case NotExistsExpr:
		return NotExistsExpr{Expr: c.clone(x.Expr)}
	case Func:
		return Func{Name: x.Name, Args: c.list(x.Args), Distinct: x.Distinct}
	case *Func:
		return &Func{Name: x.Name, Args: c.list(x.Args), Distinct: x.Distinct}
	case Cloner:
		return x.CloneExpression()
	}
	return e
}

func (c cloner) path(p *Path) *Path {
	elems := make([]Element, len(p.Elements))
	for i, e := range p.Elements {
		switch x := e.(type) {
		case ArrayAccess:
			elems[i] = ArrayAccess{Name: x.Name, Index: c.clone(x.Index)}
		case Treat:
			elems[i] = Treat{Path: c.path(x.Path), Type: x.Type}
		case Qualified:
			elems[i] = Qualified{Qualifier: x.Qualifier, Path: c.path(x.Path)}
		default:
			elems[i] = e
		}
	}
	return &Path{Elements: elems, Collection: p.Collection}
}

func (c cloner) operand(v any) any {
	if e, ok := v.(Expression); ok {
		return c.clone(e)
	}
	return v
}

func (c cloner) list(exprs []Expression) []Expression {
	if exprs == nil {
		return nil
	}
	out := make([]Expression, len(exprs))
	for i, e := range exprs {
		out[i] = c.clone(e)
	}
	return out
}
