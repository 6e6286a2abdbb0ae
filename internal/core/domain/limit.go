package domain

import (
	"fmt"
	"strings"
)

// DefaultMaxRows is the row cap applied when the caller does not supply one.
const DefaultMaxRows = 100

// ApplyRowLimit appends a LIMIT clause bounding the result to maxRows. If the
// query already contains a LIMIT keyword it is returned unchanged — the
// caller's own bound wins. Detection is the same upper-cased substring scan
// the validator uses, so a column literally named "limit" also counts.
func ApplyRowLimit(sql string, maxRows int) string {
	if strings.Contains(strings.ToUpper(sql), "LIMIT") {
		return sql
	}
	return fmt.Sprintf("%s LIMIT %d", sql, maxRows)
}
