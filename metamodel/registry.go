package metamodel

import (
	"fmt"
	"reflect"
)

// Registry collects model structs and builds a Metamodel from their tags.
type Registry struct {
	types map[reflect.Type]*Type
	order []reflect.Type
	extra []*Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[reflect.Type]*Type)}
}

// Register adds the struct type T, named after the Go type.
func Register[T any](r *Registry) error {
	var t T
	return r.RegisterType(reflect.TypeOf(t))
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](r *Registry) {
	if err := Register[T](r); err != nil {
		panic(err)
	}
}

// RegisterType adds a struct type.
func (r *Registry) RegisterType(typ reflect.Type) error {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %v is not a struct", ErrInvalidModel, typ)
	}
	if _, ok := r.types[typ]; ok {
		return nil
	}
	fields := make([]fieldSpec, 0, typ.NumField())
	for i := range typ.NumField() {
		sf := typ.Field(i)
		fields = append(fields, fieldSpec{
			Name:      sf.Name,
			GoType:    sf.Type.String(),
			Tag:       sf.Tag,
			Anonymous: sf.Anonymous && sf.Type.Kind() == reflect.Struct,
		})
	}
	t, err := typeFromFields(typ.Name(), fields)
	if err != nil {
		return err
	}
	r.types[typ] = t
	r.order = append(r.order, typ)
	return nil
}

// Add registers a type declared without a Go struct.
func (r *Registry) Add(t *Type) {
	r.extra = append(r.extra, t)
}

// Lookup returns the managed type registered for a Go type.
func (r *Registry) Lookup(typ reflect.Type) (*Type, bool) {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	t, ok := r.types[typ]
	return t, ok
}

// Build validates the registered types.
func (r *Registry) Build() (*Metamodel, error) {
	types := make([]*Type, 0, len(r.order)+len(r.extra))
	for _, typ := range r.order {
		types = append(types, r.types[typ])
	}
	types = append(types, r.extra...)
	return New(types...)
}
