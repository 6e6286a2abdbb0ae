package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lucasmend/askdb/internal/core/domain"
)

// rowsToResultSet drains pgx.Rows into a ResultSet, preserving the
// statement's projection order for both columns and rows.
func rowsToResultSet(rows pgx.Rows) (*domain.ResultSet, error) {
	fields := rows.FieldDescriptions()
	rs := &domain.ResultSet{
		Columns: make([]string, len(fields)),
	}
	for i, fd := range fields {
		rs.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make([]any, len(vals))
		copy(row, vals)
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return rs, nil
}
