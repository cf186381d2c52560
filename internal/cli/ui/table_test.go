package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"component", "entries"}, &TableOptions{NoColor: true})
	table.AddRow("t1w", "2")
	table.AddRow("bold", "12", "dropped")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "component  entries", lines[0])
	assert.Equal(t, "─────────  ───────", lines[1])
	assert.Equal(t, "t1w        2", lines[2])
	assert.Equal(t, "bold       12", lines[3])
	assert.Equal(t, 2, table.Len())
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, nil).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("name", "t1w")
	kv.AddRow("entries", "2")
	kv.Render()

	assert.Equal(t, "name:    t1w\nentries: 2\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Inputs", true)
	assert.Equal(t, "Inputs\n──────\n", buf.String())
}
