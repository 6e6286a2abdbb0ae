package port

import "context"

type TableInfo struct {
	Schema      string `json:"schema"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	RowEstimate int64  `json:"row_estimate"`
	Comment     string `json:"comment,omitempty"`
}

type ColumnInfo struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	Comment    string `json:"comment,omitempty"`
}

type TableDetail struct {
	Schema  string       `json:"schema"`
	Name    string       `json:"name"`
	Comment string       `json:"comment,omitempty"`
	Columns []ColumnInfo `json:"columns"`
}

// SchemaExplorer reads catalog metadata used both as a discovery tool and as
// prompt context for SQL generation.
type SchemaExplorer interface {
	ListTables(ctx context.Context) ([]TableInfo, error)
	DescribeTable(ctx context.Context, schema, tableName string) (*TableDetail, error)
}
