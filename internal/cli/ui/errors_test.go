package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	candidates := []string{"t1w", "t2w", "bold", "dwi"}

	assert.Equal(t, []string{"t1w", "t2w"}, Suggest("T1W", candidates, 2))
	assert.Equal(t, []string{"bold"}, Suggest("blod", candidates, 1))
	assert.Empty(t, Suggest("fieldmap", candidates, 3))
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 0, editDistance("", ""))
	assert.Equal(t, 4, editDistance("", "bold"))
	assert.Equal(t, 1, editDistance("ses", "sés"))
}

func TestNotFound(t *testing.T) {
	var buf bytes.Buffer
	NotFound(&buf, "component", "blod", []string{"bold", "t1w"}, true)
	assert.Equal(t, "component not found: blod\n   Did you mean: bold?\n", buf.String())

	buf.Reset()
	NotFound(&buf, "component", "fieldmap", []string{"bold"}, true)
	assert.Equal(t, "component not found: fieldmap\n", buf.String())
}

func TestSuccessAndWarning(t *testing.T) {
	var buf bytes.Buffer
	Success(&buf, "imported t1w", true)
	Warning(&buf, "no inputs", true)
	assert.Equal(t, "✓ imported t1w\n! no inputs\n", buf.String())
}
