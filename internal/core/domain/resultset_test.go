package domain

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_EmptyResultSet(t *testing.T) {
	rs := &ResultSet{Columns: []string{"id", "name"}}
	assert.Equal(t, "No results found.", rs.Format())
}

func TestFormat_NilResultSet(t *testing.T) {
	var rs *ResultSet
	assert.Equal(t, "No results found.", rs.Format())
}

func TestFormat_TwoRowTable(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"id", "name"},
		Rows: [][]any{
			{1, "Azure Interior"},
			{2, "Deco Addict"},
		},
	}

	out := rs.Format()
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Found 2 result(s):", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "id | name", lines[2])
	assert.Equal(t, strings.Repeat("-", len("id | name")), lines[3])
	assert.Equal(t, "1 | Azure Interior", lines[4])
	assert.Equal(t, "2 | Deco Addict", lines[5])
}

func TestFormat_NullValues(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"id", "email"},
		Rows:    [][]any{{1, nil}},
	}
	assert.Contains(t, rs.Format(), "1 | NULL")
}

func TestFormat_ElidesBeyondTenRows(t *testing.T) {
	rs := &ResultSet{Columns: []string{"id"}}
	for i := 1; i <= 15; i++ {
		rs.Rows = append(rs.Rows, []any{i})
	}

	out := rs.Format()
	assert.Contains(t, out, "Found 15 result(s):")
	assert.Contains(t, out, "... and 5 more results")

	// Header, separator, count line, blank line, elision line, 10 data rows.
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 15)
	assert.Equal(t, "10", lines[13], "last rendered data row should be row 10")
	assert.NotContains(t, out, fmt.Sprintf("\n%d\n", 11))
}

func TestCount(t *testing.T) {
	rs := &ResultSet{Columns: []string{"id"}, Rows: [][]any{{1}, {2}, {3}}}
	assert.Equal(t, 3, rs.Count())
}
