package json

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcload/internal/records"
)

func TestParse_Array(t *testing.T) {
	in := `[
	  {"code": "P1", "data": {"demographics": {"age": 40, "sex": "F"}}},
	  {"code": "P2", "data": {"demographics": {"age": 12345678901234567}}}
	]`
	rows, err := NewParser(Options{}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "P1", rows[0]["code"])
	demo := rows[1]["data"].(map[string]any)["demographics"].(map[string]any)
	assert.Equal(t, json.Number("12345678901234567"), demo["age"])
}

func TestParse_NDJSON(t *testing.T) {
	in := "{\"id\":1}\n{\"id\":2}\n\n{\"id\":3}\n"
	rows, err := NewParser(Options{}).Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, json.Number("3"), rows[2]["id"])
}

func TestParse_Empty(t *testing.T) {
	rows, err := NewParser(Options{}).Parse(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = NewParser(Options{}).Parse(strings.NewReader("[]"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]struct {
		in  string
		opt Options
		msg string
	}{
		"syntax":          {in: `[{"a":1},`, msg: "document 1"},
		"non_object_elem": {in: `[{"a":1}, 5]`, msg: "element 1 is number"},
		"primitive_root":  {in: `"hello"`, msg: "unsupported top-level string"},
		"array_second":    {in: `{"a":1} [{"b":2}]`, msg: "array after the first document"},
		"require_array":   {in: `{"a":1}`, opt: Options{RequireArray: true}, msg: "array is required"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := NewParser(tc.opt).Parse(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.True(t, records.IsFileError(err))
			assert.ErrorContains(t, err, tc.msg)
		})
	}
}
