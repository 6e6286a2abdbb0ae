package port

import (
	"context"

	"github.com/lucasmend/askdb/internal/core/domain"
)

// QueryExecutor runs an already-validated SQL statement and captures the
// projection order and all rows. Driver failures come back as errors, never
// panics.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*domain.ResultSet, error)
}
