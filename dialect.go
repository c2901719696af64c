// Package joinql builds object queries over a metamodel and resolves the
// attribute paths they reference into a deduplicated join tree.
// This file implements the dialect abstraction describing what the target
// object query language can express.
//
// Dialect is the key abstraction for joinql to support several persistence
// providers, responsible for:
//   - Provider identification (hibernate, eclipselink, datanucleus, jpa)
//   - Placeholder format (?1, ?2 ordinals vs plain ?)
//   - The Capabilities descriptor the renderer branches on
//
// Usage example:
//
//	cb := joinql.NewCriteriaBuilder(mm, joinql.Hibernate)
//
//	// A provider without entity join support
//	cb := joinql.NewCriteriaBuilder(mm, joinql.JPA)
//
//	// Capabilities tweaked from configuration
//	d := joinql.NewDialect("custom", joinql.Ordinal, caps)
package joinql

import (
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var (
	Hibernate   = HibernateDialect{}
	EclipseLink = EclipseLinkDialect{}
	DataNucleus = DataNucleusDialect{}
	JPA         = JPADialect{}
)

// Ordinal is a squirrel placeholder format rendering ?1, ?2, ... as used by
// positional parameters of object query languages.
var Ordinal sq.PlaceholderFormat = ordinalFormat{}

// TreatFilter selects where a TYPE(alias) = Subtype restriction is rendered
// for a treat join.
type TreatFilter int

const (
	// TreatFilterNone renders no restriction.
	TreatFilterNone TreatFilter = iota
	// TreatFilterOn appends the restriction to the ON clause of the join.
	TreatFilterOn
	// TreatFilterWhere moves the restriction to the WHERE clause.
	TreatFilterWhere
)

func (t TreatFilter) String() string {
	switch t {
	case TreatFilterOn:
		return "on"
	case TreatFilterWhere:
		return "where"
	}
	return "none"
}

// ParseTreatFilter parses none, on or where.
func ParseTreatFilter(s string) (TreatFilter, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return TreatFilterNone, nil
	case "on":
		return TreatFilterOn, nil
	case "where":
		return TreatFilterWhere, nil
	}
	return TreatFilterNone, fmt.Errorf("joinql: unknown treat filter %q", s)
}

// Capabilities enumerates every dialect feature the join engine branches on.
// The zero value describes a provider that supports none of them.
type Capabilities struct {
	// EntityJoin reports support for JOIN Entity alias ON (...). Without it
	// inner entity joins are emulated as cross joins with the predicate
	// moved to WHERE, and outer entity joins fail.
	EntityJoin bool `koanf:"entity_join"`

	// TreatJoin reports support for JOIN TREAT(a.rel AS Sub) alias.
	TreatJoin bool `koanf:"treat_join"`

	// SubtypeRelationResolving reports that subtype attributes can be
	// dereferenced without a TREAT.
	SubtypeRelationResolving bool `koanf:"subtype_relation_resolving"`

	// RootTreat reports support for TREAT(alias AS Sub).attr in expressions.
	RootTreat bool `koanf:"root_treat"`

	// RootTreatJoin reports support for JOIN TREAT(alias AS Sub).rel.
	RootTreatJoin bool `koanf:"root_treat_join"`

	// RootTreatTreatJoin reports support for JOIN TREAT(TREAT(alias AS A).rel AS B).
	RootTreatTreatJoin bool `koanf:"root_treat_treat_join"`

	// SingleValuedAssociationIDExpressions reports that a.assoc.id can be
	// rendered without joining assoc.
	SingleValuedAssociationIDExpressions bool `koanf:"single_valued_association_id"`

	// SingleValuedAssociationNaturalIDExpressions extends the above to
	// non-id attributes owned by the referencing table.
	SingleValuedAssociationNaturalIDExpressions bool `koanf:"single_valued_association_natural_id"`

	// NeedsJoinSubqueryRewrite reports that left joins restricted by a
	// KEY or INDEX predicate must be rewritten by the caller.
	NeedsJoinSubqueryRewrite bool `koanf:"needs_join_subquery_rewrite"`

	// NeedsCorrelationPredicateWithWhereClause reports that correlated roots
	// must be expressed through a WHERE predicate on the inverse side.
	NeedsCorrelationPredicateWithWhereClause bool `koanf:"needs_correlation_predicate"`

	// TreatFilter selects where TYPE restrictions of treat joins go.
	TreatFilter TreatFilter `koanf:"-"`
}

// Dialect abstracts provider specific syntax of the object query language.
//
// Implementations:
//   - HibernateDialect
//   - EclipseLinkDialect
//   - DataNucleusDialect
//   - JPADialect: the portable subset of JPA 2.1
//   - CustomDialect: built from configuration
type Dialect interface {
	// Name returns the provider name.
	// Used for logging, metrics attributes and configuration lookup.
	Name() string

	// PlaceholderFormat returns the format squirrel uses to number
	// positional parameters.
	PlaceholderFormat() sq.PlaceholderFormat

	// Capabilities returns the capability descriptor used while rendering.
	Capabilities() Capabilities
}

// HibernateDialect implements Dialect for Hibernate.
//
// Features:
//   - Native entity joins
//   - Subtype attributes resolve without TREAT, so outer treat joins render
//     as plain association joins
//   - Foreign key id access without joining
type HibernateDialect struct{}

func (HibernateDialect) Name() string { return "hibernate" }

func (HibernateDialect) PlaceholderFormat() sq.PlaceholderFormat { return Ordinal }

func (HibernateDialect) Capabilities() Capabilities {
	return Capabilities{
		EntityJoin:                           true,
		TreatJoin:                            true,
		SubtypeRelationResolving:             true,
		RootTreat:                            true,
		SingleValuedAssociationIDExpressions: true,
	}
}

// EclipseLinkDialect implements Dialect for EclipseLink.
//
// Features:
//   - Full TREAT support including treated join bases
//   - Natural id access without joining
//   - TYPE restriction for treat joins rendered in the ON clause
type EclipseLinkDialect struct{}

func (EclipseLinkDialect) Name() string { return "eclipselink" }

func (EclipseLinkDialect) PlaceholderFormat() sq.PlaceholderFormat { return Ordinal }

func (EclipseLinkDialect) Capabilities() Capabilities {
	return Capabilities{
		EntityJoin:                                  true,
		TreatJoin:                                   true,
		RootTreat:                                   true,
		RootTreatJoin:                               true,
		RootTreatTreatJoin:                          true,
		SingleValuedAssociationIDExpressions:        true,
		SingleValuedAssociationNaturalIDExpressions: true,
		TreatFilter:                                 TreatFilterOn,
	}
}

// DataNucleusDialect implements Dialect for DataNucleus.
//
// Features:
//   - No single valued association id expressions
//   - Left joins restricted by KEY or INDEX need a subquery rewrite
//   - Correlated roots are expressed as WHERE predicates
type DataNucleusDialect struct{}

func (DataNucleusDialect) Name() string { return "datanucleus" }

func (DataNucleusDialect) PlaceholderFormat() sq.PlaceholderFormat { return Ordinal }

func (DataNucleusDialect) Capabilities() Capabilities {
	return Capabilities{
		EntityJoin:                               true,
		TreatJoin:                                true,
		RootTreat:                                true,
		NeedsJoinSubqueryRewrite:                 true,
		NeedsCorrelationPredicateWithWhereClause: true,
		TreatFilter:                              TreatFilterWhere,
	}
}

// JPADialect implements Dialect for the portable JPA 2.1 subset: treat joins
// but no entity joins, so only inner entity joins can be emulated.
type JPADialect struct{}

func (JPADialect) Name() string { return "jpa" }

func (JPADialect) PlaceholderFormat() sq.PlaceholderFormat { return Ordinal }

func (JPADialect) Capabilities() Capabilities {
	return Capabilities{
		TreatJoin: true,
		RootTreat: true,
	}
}

// CustomDialect is a Dialect assembled at runtime, typically from
// configuration.
type CustomDialect struct {
	DialectName string
	Format      sq.PlaceholderFormat
	Caps        Capabilities
}

// NewDialect creates a CustomDialect. A nil format defaults to Ordinal.
func NewDialect(name string, format sq.PlaceholderFormat, caps Capabilities) CustomDialect {
	if format == nil {
		format = Ordinal
	}
	return CustomDialect{DialectName: name, Format: format, Caps: caps}
}

func (d CustomDialect) Name() string { return d.DialectName }

func (d CustomDialect) PlaceholderFormat() sq.PlaceholderFormat { return d.Format }

func (d CustomDialect) Capabilities() Capabilities { return d.Caps }

// DialectByName returns the preset dialect with the given name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "hibernate":
		return Hibernate, nil
	case "eclipselink":
		return EclipseLink, nil
	case "datanucleus":
		return DataNucleus, nil
	case "jpa", "":
		return JPA, nil
	}
	return nil, fmt.Errorf("joinql: unknown dialect %q", name)
}

// PlaceholderFormatByName returns ordinal, question, dollar, colon or atp.
func PlaceholderFormatByName(name string) (sq.PlaceholderFormat, error) {
	switch strings.ToLower(name) {
	case "ordinal", "":
		return Ordinal, nil
	case "question":
		return sq.Question, nil
	case "dollar":
		return sq.Dollar, nil
	case "colon":
		return sq.Colon, nil
	case "atp":
		return sq.AtP, nil
	}
	return nil, fmt.Errorf("joinql: unknown placeholder format %q", name)
}

type ordinalFormat struct{}

// ReplacePlaceholders numbers every ? in order. A doubled ?? is an escaped
// literal question mark.
func (ordinalFormat) ReplacePlaceholders(sql string) (string, error) {
	var sb strings.Builder
	n := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c != '?' {
			sb.WriteByte(c)
			continue
		}
		if i+1 < len(sql) && sql[i+1] == '?' {
			sb.WriteByte('?')
			i++
			continue
		}
		n++
		sb.WriteByte('?')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String(), nil
}
