package schemactx

import (
	"context"
	"fmt"

	"github.com/lucasmend/askdb/internal/core/port"
)

// Explorer decorates a SchemaExplorer with data dictionary enrichment. It
// merges business descriptions into explorer responses and hides excluded
// tables entirely.
type Explorer struct {
	inner port.SchemaExplorer
	sc    *Context
}

// NewExplorer wraps an existing SchemaExplorer with context enrichment.
func NewExplorer(inner port.SchemaExplorer, sc *Context) *Explorer {
	return &Explorer{inner: inner, sc: sc}
}

// ListTables filters out excluded tables and fills empty comments from the
// data dictionary. Operator-set COMMENT ON values always take precedence.
func (e *Explorer) ListTables(ctx context.Context) ([]port.TableInfo, error) {
	tables, err := e.inner.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	kept := tables[:0]
	for _, t := range tables {
		if e.sc.excluded(t.Schema, t.Name) {
			continue
		}
		if tc, ok := e.sc.Tables[t.Schema+"."+t.Name]; ok && t.Comment == "" && tc.Description != "" {
			t.Comment = tc.Description
		}
		kept = append(kept, t)
	}
	return kept, nil
}

// DescribeTable refuses excluded tables with the same error shape as an
// unknown table, so the exclusion does not leak the table's existence.
func (e *Explorer) DescribeTable(ctx context.Context, schema, tableName string) (*port.TableDetail, error) {
	detail, err := e.inner.DescribeTable(ctx, schema, tableName)
	if err != nil {
		return nil, err
	}
	if e.sc.excluded(detail.Schema, detail.Name) {
		return nil, fmt.Errorf("table %q not found", tableName)
	}

	tc, ok := e.sc.Tables[detail.Schema+"."+detail.Name]
	if !ok {
		return detail, nil
	}

	if detail.Comment == "" && tc.Description != "" {
		detail.Comment = tc.Description
	}
	for i, col := range detail.Columns {
		if cc, ok := tc.Columns[col.Name]; ok && col.Comment == "" && cc.Description != "" {
			detail.Columns[i].Comment = cc.Description
		}
	}
	return detail, nil
}
