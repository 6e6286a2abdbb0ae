package schemactx

import (
	"fmt"
	"os"

	"github.com/lucasmend/askdb/internal/core/domain"
	"gopkg.in/yaml.v3"
)

type maskOrigin struct {
	table string
	mask  domain.MaskType
}

// LoadFromFile reads a YAML schema context file and returns a validated Context.
func LoadFromFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema context file: %w", err)
	}

	var sc Context
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing schema context YAML: %w", err)
	}

	if err := validate(&sc); err != nil {
		return nil, fmt.Errorf("validating schema context: %w", err)
	}

	return &sc, nil
}

func validate(sc *Context) error {
	// Masking matches on projected column name only, so the same column name
	// must not carry different masks on different tables.
	seen := make(map[string]maskOrigin)
	for key, tc := range sc.Tables {
		if key == "" {
			return fmt.Errorf("tables contains an empty key")
		}
		for col, cc := range tc.Columns {
			if col == "" {
				return fmt.Errorf("tables[%q].columns contains an empty key", key)
			}
			if !cc.Mask.Valid() {
				return fmt.Errorf("tables[%q].columns[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", key, col, cc.Mask)
			}
			if cc.Mask == "" {
				continue
			}
			if prev, ok := seen[col]; ok && prev.mask != cc.Mask {
				return fmt.Errorf("conflicting masks for column %q: %q (in %s) vs %q (in %s)", col, prev.mask, prev.table, cc.Mask, key)
			}
			seen[col] = maskOrigin{table: key, mask: cc.Mask}
		}
	}
	for i, e := range sc.Exclude {
		if e == "" {
			return fmt.Errorf("exclude[%d] is empty", i)
		}
	}
	return nil
}
