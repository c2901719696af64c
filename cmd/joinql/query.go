package main

import (
	"fmt"

	"github.com/arllen133/joinql"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// queryFile is the document layout of a query description:
//
//	from:
//	  - {entity: Document, alias: d}
//	joins:
//	  - {path: d.versions, alias: v, type: left, on: ["v.number > 1"]}
//	  - {base: d, entity: Person, alias: p, type: inner, on: ["p.name = d.name"]}
//	select:
//	  - {expr: d.name}
//	  - {expr: COUNT(v), alias: n}
//	where: ["d.owner.name = :owner"]
//	order_by:
//	  - {expr: d.name, desc: true}
//	limit: 10
type queryFile struct {
	From     []rootSpec   `koanf:"from"`
	Joins    []joinSpec   `koanf:"joins"`
	Fetch    []string     `koanf:"fetch"`
	Select   []selectSpec `koanf:"select"`
	Distinct bool         `koanf:"distinct"`
	Where    []string     `koanf:"where"`
	GroupBy  []string     `koanf:"group_by"`
	Having   []string     `koanf:"having"`
	OrderBy  []orderSpec  `koanf:"order_by"`
	Limit    uint64       `koanf:"limit"`
	Offset   uint64       `koanf:"offset"`
}

type rootSpec struct {
	Entity string `koanf:"entity"`
	Alias  string `koanf:"alias"`
	// Values makes the root a VALUES clause of that many rows.
	Values int `koanf:"values"`
}

type joinSpec struct {
	Path string `koanf:"path"`
	// Base and Entity declare an entity join from the base alias.
	Base    string   `koanf:"base"`
	Entity  string   `koanf:"entity"`
	Alias   string   `koanf:"alias"`
	Type    string   `koanf:"type"`
	Default bool     `koanf:"default"`
	Fetch   bool     `koanf:"fetch"`
	On      []string `koanf:"on"`
}

type selectSpec struct {
	Expr  string `koanf:"expr"`
	Alias string `koanf:"alias"`
}

type orderSpec struct {
	Expr string `koanf:"expr"`
	Desc bool   `koanf:"desc"`
}

func loadQuery(path string) (*queryFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading query file %s: %w", path, err)
	}
	var q queryFile
	if err := k.Unmarshal("", &q); err != nil {
		return nil, fmt.Errorf("unable to decode query file %s: %w", path, err)
	}
	if len(q.From) == 0 {
		return nil, fmt.Errorf("query file %s: %w", path, joinql.ErrNoRoot)
	}
	return &q, nil
}

// apply adds every clause of the description to cb in declaration order.
func (q *queryFile) apply(cb *joinql.CriteriaBuilder) error {
	for _, r := range q.From {
		if r.Values > 0 {
			cb.FromValues(r.Entity, r.Alias, r.Values)
		} else {
			cb.From(r.Entity, r.Alias)
		}
	}
	for _, j := range q.Joins {
		if err := j.apply(cb); err != nil {
			return err
		}
	}
	cb.Fetch(q.Fetch...)
	for _, s := range q.Select {
		cb.SelectAs(s.Expr, s.Alias)
	}
	if q.Distinct {
		cb.Distinct()
	}
	for _, w := range q.Where {
		cb.WhereExpression(w)
	}
	cb.GroupBy(q.GroupBy...)
	for _, h := range q.Having {
		cb.HavingExpression(h)
	}
	for _, o := range q.OrderBy {
		cb.OrderBy(o.Expr, o.Desc)
	}
	if q.Limit > 0 {
		cb.Limit(q.Limit)
	}
	if q.Offset > 0 {
		cb.Offset(q.Offset)
	}
	return cb.Err()
}

func (j joinSpec) apply(cb *joinql.CriteriaBuilder) error {
	jt, err := joinql.ParseJoinType(j.Type)
	if err != nil {
		return err
	}
	if j.Entity != "" {
		on := cb.EntityJoinOn(j.Base, j.Entity, j.Alias, jt)
		for _, e := range j.On {
			on = on.OnExpression(e)
		}
		on.End()
		return cb.Err()
	}
	if jt == 0 {
		jt = joinql.LeftJoin
	}
	switch {
	case len(j.On) > 0:
		on := cb.JoinDefaultOn(j.Path, j.Alias, jt)
		if !j.Default {
			on = cb.JoinOn(j.Path, j.Alias, jt)
		}
		for _, e := range j.On {
			on = on.OnExpression(e)
		}
		on.End()
	case j.Fetch:
		cb.JoinFetch(j.Path, j.Alias, jt)
	case j.Default:
		cb.JoinDefault(j.Path, j.Alias, jt)
	default:
		cb.Join(j.Path, j.Alias, jt)
	}
	return cb.Err()
}
