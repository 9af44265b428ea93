package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/projectindex/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		query string
		want  Predicate
	}{
		{"", Any()},
		{"   ", Any()},
		{"name:acme/core", Name("acme/core")},
		{"parent:acme", Parent("acme")},
		{"ancestor:acme", Ancestor("acme")},
		{"prefix:acme/", NamePrefix("acme/")},
		{"substring:core", Substring("core")},
		{"inname:Core", InName("core")},
		{`description:"build tooling"`, Description("build tooling")},
		{"state:read-only", State(types.StateReadOnly)},
		{"name:a parent:b", And(Name("a"), Parent("b"))},
		{"name:a AND parent:b", And(Name("a"), Parent("b"))},
		{"name:a OR name:b", Or(Name("a"), Name("b"))},
		{"-name:a", Not(Name("a"))},
		{"NOT name:a", Not(Name("a"))},
		{"(name:a OR name:b) parent:c", And(Or(Name("a"), Name("b")), Parent("c"))},
		{"core", Or(Substring("core"), Description("core"))},
		{`"a:b"`, Or(Substring("a:b"), Description("a:b"))},
		{`name:"OR"`, Name("OR")},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, q := range []string{
		`description:""`,
		`description:"..."`,
		`state:""`,
		"state:bla",
		"name:",
		"owner:x",
		"(name:a",
		"name:a)",
		"name:a OR",
		`name:"unterminated`,
		"NOT",
		`""`,
	} {
		t.Run(q, func(t *testing.T) {
			_, err := Parse(q)
			assert.ErrorIs(t, err, ErrBadQuery)
		})
	}
}
