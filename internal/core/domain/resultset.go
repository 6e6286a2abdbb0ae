package domain

import (
	"fmt"
	"strings"
)

// displayRows caps how many rows Format renders before eliding the rest.
const displayRows = 10

// ResultSet is the ordered column/row structure captured from a read-only
// query. Every row has exactly len(Columns) values; values may be nil.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Count returns the number of rows.
func (rs *ResultSet) Count() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Format renders the result set as a compact text table for model
// consumption: a count header, a " | "-joined column line, a separator, at
// most displayRows rows (nil rendered as NULL), and an elision notice when
// rows were cut.
func (rs *ResultSet) Format() string {
	if rs == nil || len(rs.Rows) == 0 {
		return "No results found."
	}

	count := len(rs.Rows)
	lines := []string{fmt.Sprintf("Found %d result(s):", count), ""}

	if len(rs.Columns) > 0 {
		header := strings.Join(rs.Columns, " | ")
		lines = append(lines, header, strings.Repeat("-", len(header)))
	}

	shown := rs.Rows
	if len(shown) > displayRows {
		shown = shown[:displayRows]
	}
	for _, row := range shown {
		vals := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				vals[i] = "NULL"
			} else {
				vals[i] = fmt.Sprintf("%v", v)
			}
		}
		lines = append(lines, strings.Join(vals, " | "))
	}

	if count > displayRows {
		lines = append(lines, fmt.Sprintf("... and %d more results", count-displayRows))
	}

	return strings.Join(lines, "\n")
}
