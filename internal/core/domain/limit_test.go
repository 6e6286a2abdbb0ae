package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyRowLimit_AppendsWhenAbsent(t *testing.T) {
	got := ApplyRowLimit("SELECT id, name FROM res_partner", 100)
	assert.Equal(t, "SELECT id, name FROM res_partner LIMIT 100", got)
}

func TestApplyRowLimit_RespectsExistingLimit(t *testing.T) {
	sql := "SELECT id FROM res_partner LIMIT 5"
	assert.Equal(t, sql, ApplyRowLimit(sql, 100))
}

func TestApplyRowLimit_DetectsLowercaseLimit(t *testing.T) {
	sql := "select id from res_partner limit 5"
	assert.Equal(t, sql, ApplyRowLimit(sql, 100))
}

func TestApplyRowLimit_UsesSuppliedCap(t *testing.T) {
	got := ApplyRowLimit("SELECT 1", 7)
	assert.Equal(t, "SELECT 1 LIMIT 7", got)
}
