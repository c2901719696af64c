package clause

import (
	"strings"
)

// NodeID identifies a join node inside the arena of a query.
type NodeID int

// NoNode marks an absent node reference.
const NoNode NodeID = -1

// Qualifier is a collection qualification function applied to a path.
type Qualifier string

const (
	QualifierKey   Qualifier = "KEY"
	QualifierValue Qualifier = "VALUE"
	QualifierEntry Qualifier = "ENTRY"
	QualifierIndex Qualifier = "INDEX"
)

// Element is one segment of a Path.
type Element interface {
	String() string
	element()
}

// Property is a plain attribute segment.
type Property struct {
	Name string
}

func (p Property) String() string { return p.Name }
func (Property) element()         {}

// ArrayAccess is an indexed attribute segment such as list[0] or map[:key].
type ArrayAccess struct {
	Name  string
	Index Expression
}

func (a ArrayAccess) String() string {
	idx := "?"
	if a.Index != nil {
		if sql, _, err := a.Index.Build(); err == nil {
			idx = sql
		}
	}
	return a.Name + "[" + idx + "]"
}
func (ArrayAccess) element() {}

// Qualified wraps a collection path in KEY, VALUE, ENTRY or INDEX.
// It may only be the first segment of a path.
type Qualified struct {
	Qualifier Qualifier
	Path      *Path
}

func (q Qualified) String() string {
	return string(q.Qualifier) + "(" + q.Path.String() + ")"
}
func (Qualified) element() {}

// Treat downcasts a path to a subtype. It may only be the first segment of a path.
type Treat struct {
	Path *Path
	Type string
}

func (t Treat) String() string {
	return "TREAT(" + t.Path.String() + " AS " + t.Type + ")"
}
func (Treat) element() {}

// RefKind distinguishes fixed from lazily re-checked path references.
type RefKind uint8

const (
	// RefFixed renders the node alias and field as resolved.
	RefFixed RefKind = iota
	// RefLazy re-checks at render time whether the node gained a default
	// child for the field and renders that child instead.
	RefLazy
)

func (k RefKind) String() string {
	if k == RefLazy {
		return "lazy"
	}
	return "fixed"
}

// RefRenderer renders resolved path references. The join manager of the
// query that resolved a path implements it.
type RefRenderer interface {
	RenderRef(ref *PathRef) (string, error)
}

// PathRef is the cached resolution of a path against the join tree.
type PathRef struct {
	Kind     RefKind
	Node     NodeID
	Field    string
	Type     string
	Renderer RefRenderer
}

// Path is a dotted attribute path. Its resolution is cached in place once the
// join manager has processed it.
type Path struct {
	Elements []Element
	// Collection is set when the path is the argument of a collection
	// function like SIZE or IS EMPTY and must not be joined.
	Collection bool
	ref        *PathRef
}

// NewPath creates a property-only path from its segments.
func NewPath(segments ...string) *Path {
	elems := make([]Element, 0, len(segments))
	for _, s := range segments {
		for _, part := range strings.Split(s, ".") {
			if part != "" {
				elems = append(elems, Property{Name: part})
			}
		}
	}
	return &Path{Elements: elems}
}

// Ref returns the cached resolution or nil.
func (p *Path) Ref() *PathRef { return p.ref }

// SetRef caches a resolution.
func (p *Path) SetRef(ref *PathRef) { p.ref = ref }

// Len returns the number of segments.
func (p *Path) Len() int { return len(p.Elements) }

// Sub returns a path over elements [from, to).
func (p *Path) Sub(from, to int) *Path {
	elems := make([]Element, to-from)
	copy(elems, p.Elements[from:to])
	return &Path{Elements: elems}
}

// Clone returns a deep copy without the cached resolution.
func (p *Path) Clone() *Path {
	return ClonePath(p)
}

// IsProperties reports whether elements [from, len) are all plain properties.
func (p *Path) IsProperties(from int) bool {
	for _, e := range p.Elements[from:] {
		if _, ok := e.(Property); !ok {
			return false
		}
	}
	return true
}

// String renders the unresolved path.
func (p *Path) String() string {
	var sb strings.Builder
	for i, e := range p.Elements {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(e.String())
	}
	return sb.String()
}

// Build renders the resolved reference if present, the raw path otherwise.
func (p *Path) Build() (string, []any, error) {
	if p.ref == nil || p.ref.Renderer == nil {
		return p.String(), nil, nil
	}
	sql, err := p.ref.Renderer.RenderRef(p.ref)
	if err != nil {
		return "", nil, err
	}
	return sql, nil, nil
}

// JoinSegments joins property names of elements [from, to) with dots.
func (p *Path) JoinSegments(from, to int) string {
	var sb strings.Builder
	for i := from; i < to; i++ {
		if i > from {
			sb.WriteByte('.')
		}
		sb.WriteString(p.Elements[i].String())
	}
	return sb.String()
}
