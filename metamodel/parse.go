package metamodel

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"reflect"
	"slices"
	"strings"
)

// ParseDir reads the Go model structs of the package in dir, using the same
// tags as Register, and builds a Metamodel from them. Test files and
// generated files are skipped.
func ParseDir(dir string) (*Metamodel, error) {
	types, err := ParseTypes(dir)
	if err != nil {
		return nil, err
	}
	return New(types...)
}

// ParseTypes returns the unvalidated types of the package in dir, sorted by
// name.
func ParseTypes(dir string) ([]*Type, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi fs.FileInfo) bool {
		name := fi.Name()
		return !strings.HasSuffix(name, "_test.go") && !strings.HasSuffix(name, "_gen.go")
	}, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var types []*Type
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			var inspectErr error
			ast.Inspect(file, func(n ast.Node) bool {
				if inspectErr != nil {
					return false
				}
				ts, ok := n.(*ast.TypeSpec)
				if !ok {
					return true
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					return true
				}
				fields := make([]fieldSpec, 0, len(st.Fields.List))
				for _, field := range st.Fields.List {
					spec := fieldSpec{GoType: exprToString(field.Type)}
					if field.Tag != nil {
						spec.Tag = reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
					}
					if len(field.Names) == 0 {
						spec.Anonymous = true
						fields = append(fields, spec)
						continue
					}
					for _, name := range field.Names {
						spec.Name = name.Name
						fields = append(fields, spec)
					}
				}
				if !isModel(fields) {
					return true
				}
				t, err := typeFromFields(ts.Name.Name, fields)
				if err != nil {
					inspectErr = err
					return false
				}
				types = append(types, t)
				return true
			})
			if inspectErr != nil {
				return nil, inspectErr
			}
		}
	}
	slices.SortFunc(types, func(a, b *Type) int { return strings.Compare(a.Name, b.Name) })
	return types, nil
}

// isModel reports whether a struct carries model tags at all.
func isModel(fields []fieldSpec) bool {
	for _, f := range fields {
		if f.Tag.Get("db") != "" || f.Tag.Get("relation") != "" {
			return true
		}
	}
	return false
}

// exprToString converts an AST type expression to its string representation
func exprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		if x, ok := t.X.(*ast.Ident); ok {
			return x.Name + "." + t.Sel.Name
		}
	case *ast.StarExpr:
		return "*" + exprToString(t.X)
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + exprToString(t.Elt)
		}
	case *ast.MapType:
		return "map[" + exprToString(t.Key) + "]" + exprToString(t.Value)
	}
	return ""
}
