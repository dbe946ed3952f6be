package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	inputs := map[string]any{"topic": "The rise in global tempratures from 2018 onwards", "n": 5}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "Uncover technologies in {topic}", "Uncover technologies in The rise in global tempratures from 2018 onwards"},
		{"number", "List {n} venues", "List 5 venues"},
		{"unknown kept", "Hello {name}", "Hello {name}"},
		{"json kept", `Return {"a": 1}`, `Return {"a": 1}`},
		{"no placeholders", "plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.in, inputs))
		})
	}

	assert.Equal(t, "{topic}", Interpolate("{topic}", nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"topic", "year"}, Placeholders("{topic} {year} {topic} {1x}"))
	assert.Nil(t, Placeholders("none"))
}

type searchArgs struct {
	Query string `json:"search_query" jsonschema:"description=query"`
	Num   int    `json:"num,omitempty"`
	Mode  string `json:"mode,omitempty" jsonschema:"enum=fast,enum=deep"`
}

func TestCreateSchemaAndValidate(t *testing.T) {
	schema := CreateSchema(searchArgs{})

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.Equal(t, []any{"search_query"}, schema["required"])
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["num"].(map[string]any)["type"])
	assert.Equal(t, "query", props["search_query"].(map[string]any)["description"])
	assert.Equal(t, []any{"fast", "deep"}, props["mode"].(map[string]any)["enum"])

	require.NoError(t, ValidateParameters(map[string]any{"search_query": "x", "num": float64(3)}, schema))

	err := ValidateParameters(map[string]any{"num": float64(3)}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "search_query", vErr.Field)

	assert.Error(t, ValidateParameters(map[string]any{"search_query": "x", "num": 1.5}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"search_query": "x", "mode": "slow"}, schema))
}

func TestValidateParameters_RequiredFromJSON(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"q": map[string]any{"type": "string"}},
		"required":   []any{"q"},
	}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
}
