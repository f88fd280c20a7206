package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		in   string
		want Expr
	}{
		{"String", Expr{Name: "String"}},
		{"int[]", Expr{Name: "int", Dims: 1}},
		{"Foo[][]", Expr{Name: "Foo", Dims: 2}},
		{"Parameterized<Integer>", Expr{Name: "Parameterized", Args: []Expr{{Name: "Integer"}}}},
		{"Map< String , String[] >", Expr{Name: "Map", Args: []Expr{{Name: "String"}, {Name: "String", Dims: 1}}}},
		{
			"Map<String, Map<String, String>>[]",
			Expr{Name: "Map", Dims: 1, Args: []Expr{
				{Name: "String"},
				{Name: "Map", Args: []Expr{{Name: "String"}, {Name: "String"}}},
			}},
		},
		{"time.Instant", Expr{Name: "time.Instant"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpr(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpr_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"Map<",
		"Map<String",
		"Map<String,>",
		"Foo[",
		"Foo>",
		"1Foo",
		"Foo Bar",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseExpr(in)
			assert.Error(t, err)
		})
	}
}

func TestExpr_String(t *testing.T) {
	e, err := ParseExpr("Map<String,Foo<Integer>[]>")
	require.NoError(t, err)
	assert.Equal(t, "Map<String, Foo<Integer>[]>", e.String())

	var names []string
	e.Walk(func(x Expr) { names = append(names, x.Name) })
	assert.Equal(t, []string{"Map", "String", "Foo", "Integer"}, names)
}
