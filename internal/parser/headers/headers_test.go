package headers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize(
		[]string{"\uFEFFmeta.userId", " point.value ", "Jme\u0301no", "Old"},
		map[string]string{"Old": "new"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta.userId", "point.value", "Jm\u00e9no", "new"}, got)
}

func TestNormalize_Rejects(t *testing.T) {
	_, err := Normalize([]string{"a", " "}, nil)
	assert.ErrorContains(t, err, "column 2 is empty")

	_, err = Normalize([]string{"a", "b", "a "}, nil)
	assert.ErrorContains(t, err, `header "a" repeated`)
}
