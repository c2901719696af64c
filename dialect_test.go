package joinql_test

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/joinql"
)

func TestOrdinalPlaceholders(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a = ?", "a = ?1"},
		{"a = ? AND b IN (?, ?)", "a = ?1 AND b IN (?2, ?3)"},
		{"a ?? b = ?", "a ? b = ?1"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := joinql.Ordinal.ReplacePlaceholders(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name string
		want joinql.Dialect
	}{
		{"hibernate", joinql.Hibernate},
		{"EclipseLink", joinql.EclipseLink},
		{"datanucleus", joinql.DataNucleus},
		{"jpa", joinql.JPA},
		{"", joinql.JPA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := joinql.DialectByName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	_, err := joinql.DialectByName("toplink")
	assert.ErrorContains(t, err, "toplink")
}

func TestPlaceholderFormatByName(t *testing.T) {
	for _, name := range []string{"ordinal", "question", "dollar", "colon", "atp"} {
		_, err := joinql.PlaceholderFormatByName(name)
		assert.NoError(t, err, name)
	}
	f, err := joinql.PlaceholderFormatByName("dollar")
	require.NoError(t, err)
	assert.Equal(t, sq.Dollar, f)

	_, err = joinql.PlaceholderFormatByName("percent")
	assert.Error(t, err)
}

func TestParseTreatFilter(t *testing.T) {
	for _, tf := range []joinql.TreatFilter{joinql.TreatFilterNone, joinql.TreatFilterOn, joinql.TreatFilterWhere} {
		got, err := joinql.ParseTreatFilter(tf.String())
		require.NoError(t, err)
		assert.Equal(t, tf, got)
	}
	got, err := joinql.ParseTreatFilter("")
	require.NoError(t, err)
	assert.Equal(t, joinql.TreatFilterNone, got)

	_, err = joinql.ParseTreatFilter("having")
	assert.Error(t, err)
}

func TestCustomDialect(t *testing.T) {
	caps := joinql.JPA.Capabilities()
	caps.EntityJoin = true
	d := joinql.NewDialect("jpa-entity", sq.Dollar, caps)

	cb := joinql.NewCriteriaBuilder(documentModel(), d).
		From("Document", "d").
		EntityJoinOn("d", "Person", "p", joinql.LeftJoin).
		On("p.name").EqExpression("d.name").
		End().
		Where("d.age").Gt(1)

	query, args := mustBuild(t, cb)
	assert.Equal(t, "SELECT d FROM Document d LEFT JOIN Person p ON (p.name = d.name) WHERE d.age > $1", query)
	assert.Equal(t, []any{1}, args)
	assert.Equal(t, "jpa-entity", d.Name())
}
