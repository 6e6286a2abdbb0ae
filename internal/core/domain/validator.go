package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrNotSelect        = errors.New("only SELECT queries are allowed; query must start with SELECT")
	ErrForbiddenKeyword = errors.New("query contains forbidden keyword")
	ErrMultiStatement   = errors.New("multiple statements are not allowed")
	ErrParseFailed      = errors.New("failed to parse SQL")
)

// denyList holds keywords that mark a statement as mutating or administrative.
// Matching is a substring check on the upper-cased text, not a parse: a query
// that merely mentions one of these words inside a string literal or an
// identifier is rejected too. That imprecision is part of the contract — the
// gate is a cheap lexical filter, and StrictValidator exists for callers that
// want a real parser behind it.
var denyList = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE",
	"ALTER", "TRUNCATE", "GRANT", "REVOKE", "EXEC",
	"EXECUTE", "CALL", "MERGE", "COPY",
}

// KeywordValidator gates SQL statements with a deny-list keyword scan plus a
// must-start-with-SELECT check. It never mutates the statement it inspects.
type KeywordValidator struct{}

func NewKeywordValidator() *KeywordValidator {
	return &KeywordValidator{}
}

func (v *KeywordValidator) Validate(sql string) error {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	if normalized == "" {
		return ErrEmptyQuery
	}

	for _, kw := range denyList {
		if strings.Contains(normalized, kw) {
			return fmt.Errorf("%w: %s", ErrForbiddenKeyword, kw)
		}
	}

	if !strings.HasPrefix(normalized, "SELECT") {
		return ErrNotSelect
	}

	return nil
}

// StrictValidator runs the lexical gate first and then parses the statement
// with PostgreSQL's actual parser, rejecting anything that is not a single
// SELECT. It only ever tightens the contract — a query rejected by the
// keyword scan stays rejected.
type StrictValidator struct {
	lexical KeywordValidator
}

func NewStrictValidator() *StrictValidator {
	return &StrictValidator{}
}

func (v *StrictValidator) Validate(sql string) error {
	if err := v.lexical.Validate(sql); err != nil {
		return err
	}

	tree, err := pg_query.Parse(strings.TrimSpace(sql))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if len(tree.Stmts) == 0 {
		return ErrEmptyQuery
	}
	if len(tree.Stmts) > 1 {
		return ErrMultiStatement
	}

	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return ErrEmptyQuery
	}

	if _, ok := stmt.Node.(*pg_query.Node_SelectStmt); !ok {
		return ErrNotSelect
	}
	return nil
}
