package metamodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type sqliteColumn struct {
	Name    string `db:"name"`
	Type    string `db:"type"`
	NotNull bool   `db:"notnull"`
	PK      int    `db:"pk"`
}

type sqliteForeignKey struct {
	Table string `db:"table"`
	From  string `db:"from"`
	To    string `db:"to"`
}

type tableInfo struct {
	name    string
	columns []sqliteColumn
	fks     []sqliteForeignKey
}

// Introspect derives a metamodel from a SQLite schema. Every table becomes
// an entity named after the singular camel-cased table name. Foreign key
// columns become optional or required many-to-one associations named after
// the column without its _id suffix, with a one-to-many inverse on the
// target. Tables made only of two foreign keys are treated as join tables
// and become a many-to-many pair instead.
func Introspect(ctx context.Context, db *sqlx.DB) (*Metamodel, error) {
	var tables []string
	if err := db.SelectContext(ctx, &tables,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); err != nil {
		return nil, fmt.Errorf("metamodel: list tables: %w", err)
	}

	infos := make([]*tableInfo, 0, len(tables))
	for _, table := range tables {
		info := &tableInfo{name: table}
		if err := db.SelectContext(ctx, &info.columns,
			`SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table); err != nil {
			return nil, fmt.Errorf("metamodel: columns of %s: %w", table, err)
		}
		if err := db.SelectContext(ctx, &info.fks,
			`SELECT "table", "from", "to" FROM pragma_foreign_key_list(?) ORDER BY "from"`, table); err != nil {
			return nil, fmt.Errorf("metamodel: foreign keys of %s: %w", table, err)
		}
		infos = append(infos, info)
	}

	byTable := make(map[string]*Type, len(infos))
	var types []*Type
	var joinTables []*tableInfo
	for _, info := range infos {
		if info.isJoinTable() {
			joinTables = append(joinTables, info)
			continue
		}
		t := Entity(entityName(info.name)).TableName(info.name)
		fkCols := make(map[string]bool, len(info.fks))
		for _, fk := range info.fks {
			fkCols[fk.From] = true
		}
		for _, col := range info.columns {
			if fkCols[col.Name] {
				continue
			}
			a := BasicAttr(attrName(col.Name), basicType(col.Type)).WithColumn(col.Name)
			if col.PK > 0 {
				a.isID = true
				a.Optional = false
			} else if col.NotNull {
				a.Optional = false
			}
			t.AddAttribute(a)
		}
		byTable[info.name] = t
		types = append(types, t)
	}

	for _, info := range infos {
		owner, ok := byTable[info.name]
		if !ok {
			continue
		}
		for _, fk := range info.fks {
			target, ok := byTable[fk.Table]
			if !ok {
				continue
			}
			name := attrName(strings.TrimSuffix(fk.From, "_id"))
			assoc := ManyToOneAttr(name, target.Name).WithColumn(fk.From)
			if info.notNull(fk.From) {
				assoc.Required()
			}
			owner.AddAttribute(assoc)

			inverse := attrName(info.name)
			if _, exists := target.Attribute(inverse); !exists {
				target.AddAttribute(OneToManyAttr(inverse, owner.Name).AsSet().WithMappedBy(name))
			}
		}
	}

	for _, jt := range joinTables {
		left, lok := byTable[jt.fks[0].Table]
		right, rok := byTable[jt.fks[1].Table]
		if !lok || !rok {
			continue
		}
		lname := attrName(right.Table)
		if _, exists := left.Attribute(lname); !exists {
			left.AddAttribute(ManyToManyAttr(lname, right.Name).AsSet())
		}
		if left == right {
			continue
		}
		rname := attrName(left.Table)
		if _, exists := right.Attribute(rname); !exists {
			right.AddAttribute(ManyToManyAttr(rname, left.Name).AsSet().WithMappedBy(lname))
		}
	}

	return New(types...)
}

func (t *tableInfo) isJoinTable() bool {
	if len(t.fks) != 2 || len(t.columns) != 2 {
		return false
	}
	for _, c := range t.columns {
		if c.PK == 0 {
			return false
		}
	}
	return true
}

func (t *tableInfo) notNull(column string) bool {
	for _, c := range t.columns {
		if c.Name == column {
			return c.NotNull || c.PK > 0
		}
	}
	return false
}

func entityName(table string) string {
	return toCamelCase(singular(table))
}

func attrName(column string) string {
	return lowerFirst(toCamelCase(column))
}

func singular(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "ses"):
		return name[:len(name)-2]
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss"):
		return name[:len(name)-1]
	}
	return name
}

func basicType(sqlType string) string {
	t := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(t, "INT"):
		return "int64"
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"):
		return "string"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return "float64"
	case strings.Contains(t, "BOOL"):
		return "bool"
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return "time.Time"
	case strings.Contains(t, "BLOB"):
		return "[]byte"
	}
	return "string"
}
