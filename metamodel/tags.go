package metamodel

import (
	"fmt"
	"reflect"
	"strings"
)

// fieldSpec is a struct field as seen by the reflect and go/ast sources.
type fieldSpec struct {
	Name      string
	GoType    string
	Tag       reflect.StructTag
	Anonymous bool
}

// typeFromFields builds a managed type from struct fields. Fields carry a db
// tag like "column,primaryKey,naturalId" and associations a relation tag like
// "manyToOne,required", "oneToMany,mappedBy:document,collection:list" or
// "embedded". An anonymous field names the supertype. A struct without an id
// that does not extend another struct becomes an embeddable.
func typeFromFields(name string, fields []fieldSpec) (*Type, error) {
	t := &Type{Name: name, Persistence: EntityType, attributes: make(map[string]*Attribute)}
	for _, f := range fields {
		if f.Anonymous {
			t.Super = baseTypeName(f.GoType)
			continue
		}
		attr, ok, err := attributeFromField(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidModel, name, f.Name, err)
		}
		if !ok {
			continue
		}
		if tbl := tagValue(f.Tag.Get("db"), "table"); tbl != "" {
			t.Table = tbl
		}
		t.AddAttribute(attr)
	}
	if len(t.IDs) == 0 && t.Super == "" {
		t.Persistence = EmbeddableType
	}
	if t.Table == "" && t.Persistence == EntityType {
		t.Table = toSnakeCase(name) + "s"
	}
	return t, nil
}

func attributeFromField(f fieldSpec) (*Attribute, bool, error) {
	dbTag := strings.ReplaceAll(f.Tag.Get("db"), ";", ",")
	relTag := f.Tag.Get("relation")
	if dbTag == "-" && relTag == "" {
		return nil, false, nil
	}
	if dbTag == "" && relTag == "" && !isExported(f.Name) {
		return nil, false, nil
	}

	attr := &Attribute{Name: lowerFirst(f.Name), Optional: true}
	parts := strings.Split(dbTag, ",")
	if parts[0] != "" && parts[0] != "-" && !strings.Contains(parts[0], ":") {
		attr.Column = parts[0]
	}
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		switch kv[0] {
		case "primaryKey":
			attr.isID = true
			attr.Optional = false
		case "naturalId":
			attr.isNaturalID = true
		case "required", "notNull":
			attr.Optional = false
		case "column":
			if len(kv) > 1 {
				attr.Column = kv[1]
			}
		case "attr":
			if len(kv) > 1 {
				attr.Name = kv[1]
			}
		}
	}

	if relTag == "" {
		attr.Kind = Basic
		attr.Target = baseTypeName(f.GoType)
		if attr.Column == "" {
			attr.Column = toSnakeCase(f.Name)
		}
		return attr, true, nil
	}

	plural := strings.HasPrefix(f.GoType, "[]") || strings.HasPrefix(f.GoType, "map[")
	kindSet := false
	for part := range strings.SplitSeq(relTag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, ":") {
			kv := strings.SplitN(part, ":", 2)
			key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
			switch key {
			case "mappedBy":
				attr.MappedBy = val
			case "collection":
				c, ok := ParseCollectionKind(val)
				if !ok {
					return nil, false, fmt.Errorf("unknown collection kind %q", val)
				}
				attr.Collection = c
			case "key":
				attr.KeyType = val
			case "target":
				attr.Target = val
			case "foreignKey":
				attr.Column = val
			}
			continue
		}
		switch part {
		case "required":
			attr.Optional = false
		case "optional":
			attr.Optional = true
		case "joinTable":
			attr.JoinTable = true
		case "foreignJoinColumn":
			attr.ForeignJoinColumn = true
		case "id":
			attr.isID = true
		default:
			k, ok := ParseAttributeKind(part)
			if !ok {
				return nil, false, fmt.Errorf("unknown relation %q", part)
			}
			attr.Kind = k
			kindSet = true
		}
	}
	if !kindSet {
		if plural {
			attr.Kind = OneToMany
		} else {
			attr.Kind = ManyToOne
		}
	}
	if attr.Target == "" {
		attr.Target = baseTypeName(f.GoType)
	}
	if strings.HasPrefix(f.GoType, "map[") {
		if attr.KeyType == "" {
			attr.KeyType = baseTypeName(f.GoType[4:strings.IndexByte(f.GoType, ']')])
		}
		attr.Collection = Map
	} else if plural && attr.Collection == NoCollection {
		attr.Collection = Bag
	}
	if attr.Kind == ManyToMany {
		attr.JoinTable = true
	}
	if attr.Kind == Embedded && attr.isID {
		attr.Optional = false
	}
	return attr, true, nil
}

// baseTypeName strips slice, map, pointer and package qualifiers.
func baseTypeName(goType string) string {
	t := goType
	if strings.HasPrefix(t, "map[") {
		t = t[strings.IndexByte(t, ']')+1:]
	}
	t = strings.TrimPrefix(t, "[]")
	t = strings.TrimPrefix(t, "*")
	if lastDot := strings.LastIndex(t, "."); lastDot != -1 {
		t = t[lastDot+1:]
	}
	return t
}

func tagValue(tag, key string) string {
	for part := range strings.SplitSeq(tag, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) == 2 && kv[0] == key {
			return kv[1]
		}
	}
	return ""
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if len(s) >= 2 && strings.ToUpper(s) == s {
		return strings.ToLower(s)
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func isExported(s string) bool {
	return s != "" && s[0] >= 'A' && s[0] <= 'Z'
}

func toSnakeCase(s string) string {
	var res strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				res.WriteRune('_')
			}
			res.WriteRune(r + ('a' - 'A'))
		} else {
			res.WriteRune(r)
		}
	}
	return res.String()
}

func toCamelCase(s string) string {
	var res strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		res.WriteRune(r)
	}
	return res.String()
}
