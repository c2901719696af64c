package clause_test

import (
	"errors"
	"testing"

	"github.com/arllen133/joinql/clause"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		input string
		want  string
		elems int
	}{
		{input: "d", want: "d", elems: 1},
		{input: "d.owner.name", want: "d.owner.name", elems: 3},
		{input: "d.versions[0].number", want: "d.versions[0].number", elems: 3},
		{input: "d.contacts[:key]", want: "d.contacts[:key]", elems: 2},
		{input: "d.contacts['home'].name", want: "d.contacts['home'].name", elems: 3},
		{input: "d.list[d.idx]", want: "d.list[d.idx]", elems: 2},
		{input: "KEY(d.contacts)", want: "KEY(d.contacts)", elems: 1},
		{input: "value(d.contacts).name", want: "VALUE(d.contacts).name", elems: 2},
		{input: "TREAT(d.owner AS Employee).salary", want: "TREAT(d.owner AS Employee).salary", elems: 2},
		{input: "TREAT(d AS SpecialDocument)", want: "TREAT(d AS SpecialDocument)", elems: 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := clause.ParsePath(tt.input)
			if err != nil {
				t.Fatalf("ParsePath() error = %v", err)
			}
			if got := p.String(); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
			if p.Len() != tt.elems {
				t.Errorf("want %d elements, got %d", tt.elems, p.Len())
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, input := range []string{"", "d.", "d..x", "TREAT(d Employee)", "d.list[0", "1 = 1", "d.x y"} {
		t.Run(input, func(t *testing.T) {
			_, err := clause.ParsePath(input)
			if !errors.Is(err, clause.ErrSyntax) {
				t.Errorf("want ErrSyntax, got %v", err)
			}
		})
	}
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "d.age > 18", want: "d.age > 18"},
		{input: "d.name = 'x' AND d.age >= :min", want: "d.name = 'x' AND d.age >= :min"},
		{input: "d.a = 1 OR d.b = 2 AND d.c = 3", want: "d.a = 1 OR (d.b = 2 AND d.c = 3)"},
		{input: "(d.a = 1 OR d.b = 2) AND d.c = 3", want: "(d.a = 1 OR d.b = 2) AND d.c = 3"},
		{input: "d.owner IS NOT NULL", want: "d.owner IS NOT NULL"},
		{input: "d.versions IS EMPTY", want: "d.versions IS EMPTY"},
		{input: "d.status NOT IN ('a', 'b')", want: "NOT (d.status IN ('a', 'b'))"},
		{input: "d.age BETWEEN 1 AND 2", want: "d.age BETWEEN 1 AND 2"},
		{input: "d.name NOT LIKE 'x%'", want: "d.name NOT LIKE 'x%'"},
		{input: ":p MEMBER OF d.tags", want: ":p MEMBER OF d.tags"},
		{input: "NOT d.archived = TRUE", want: "NOT (d.archived = TRUE)"},
		{input: "INDEX(v) = 0", want: "INDEX(v) = 0"},
		{input: "count(distinct d.id)", want: "COUNT(DISTINCT d.id)"},
		{input: "TYPE(d) <> SpecialDocument", want: "TYPE(d) <> SpecialDocument"},
		{input: "d.ratio < 0.5", want: "d.ratio < 0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := clause.ParseExpression(tt.input)
			if err != nil {
				t.Fatalf("ParseExpression() error = %v", err)
			}
			got, _, err := e.Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseMarksCollectionPaths(t *testing.T) {
	e, err := clause.ParseExpression("d.versions IS NOT EMPTY AND SIZE(d.tags) > 1")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range clause.Paths(e) {
		if !p.Collection {
			t.Errorf("path %s should be marked as collection argument", p)
		}
	}
}
