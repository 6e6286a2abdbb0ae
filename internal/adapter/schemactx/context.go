// Package schemactx loads an operator-written data dictionary and overlays it
// onto live schema introspection. Descriptions feed the LLM prompt, masks feed
// result masking, and the exclude list hides tables from every surface.
package schemactx

import (
	"fmt"

	"github.com/lucasmend/askdb/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Context is the root of the schema context YAML file.
type Context struct {
	Tables  map[string]TableContext `yaml:"tables"`
	Exclude []string                `yaml:"exclude"`
}

// TableContext provides business descriptions and masking rules for a table
// and its columns. Keys in Context.Tables are fully qualified (schema.table).
type TableContext struct {
	Description string                   `yaml:"description"`
	Columns     map[string]ColumnContext `yaml:"columns"`
}

// ColumnContext holds a column's business description and optional mask directive.
type ColumnContext struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML supports both the struct format and a plain-string shorthand:
//
//	columns:
//	  email: "User email"           # shorthand: string → ColumnContext{Description: "User email"}
//	  ssn:                          # full form with optional mask
//	    description: "SSN"
//	    mask: "redact"
func (cc *ColumnContext) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cc.Description = value.Value
		return nil
	}
	// Decode as struct (avoid infinite recursion by using an alias type).
	type alias ColumnContext
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column context: %w", err)
	}
	*cc = ColumnContext(a)
	return nil
}

// Masks extracts a column-name to mask-type map for use in result masking.
// Matching at mask time is by projected column name, so a mask declared on
// any table applies to every column with that name.
func (c *Context) Masks() map[string]domain.MaskType {
	masks := make(map[string]domain.MaskType)
	for _, tc := range c.Tables {
		for col, cc := range tc.Columns {
			if cc.Mask != "" {
				masks[col] = cc.Mask
			}
		}
	}
	return masks
}

func (c *Context) excluded(schema, table string) bool {
	qualified := schema + "." + table
	for _, e := range c.Exclude {
		if e == qualified || e == table {
			return true
		}
	}
	return false
}
