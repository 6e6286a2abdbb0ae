package domain

import (
	"crypto/sha256"
	"fmt"
)

// MaskType represents a column masking strategy.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid returns true if the MaskType is a recognised masking strategy
// (including the zero value "", which means "no mask").
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask transforms a value according to the mask type.
// Masked values may change type (e.g. int -> string for hash/partial).
// MaskNull returns nil, which is indistinguishable from SQL NULL.
func ApplyMask(value any, maskType MaskType) any {
	if value == nil {
		return nil
	}

	switch maskType {
	case MaskRedact:
		return "***"
	case MaskHash:
		s := fmt.Sprintf("%v", value)
		h := sha256.Sum256([]byte(s))
		return fmt.Sprintf("%x", h)
	case MaskPartial:
		return maskPartial(value)
	case MaskNull:
		return nil
	default:
		return value
	}
}

// maskPartial reveals only the last 4 characters, replacing the rest with
// asterisks. Works correctly with multi-byte (unicode) strings.
func maskPartial(value any) string {
	s := fmt.Sprintf("%v", value)
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***" + s
	}
	masked := make([]rune, len(runes))
	for i := range masked {
		if i < len(runes)-4 {
			masked[i] = '*'
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}

// MaskResultSet applies column masks to a result set in place. The masks map
// is column-name -> mask-type; matching is by projected column name only,
// with no table qualification.
func MaskResultSet(rs *ResultSet, masks map[string]MaskType) {
	if rs == nil || len(masks) == 0 {
		return
	}
	for i, col := range rs.Columns {
		maskType, ok := masks[col]
		if !ok {
			continue
		}
		for _, row := range rs.Rows {
			if i < len(row) {
				row[i] = ApplyMask(row[i], maskType)
			}
		}
	}
}
