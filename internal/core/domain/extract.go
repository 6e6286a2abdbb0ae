package domain

import "strings"

// ExtractSQL pulls a single SQL statement out of free-form model output.
// Fenced code blocks win over bare text; inside either, the statement must
// start with SELECT or nothing is extracted — the safety gate makes the
// final call, this is only a locator. A trailing semicolon is stripped so
// the limit enforcer can append to the statement.
func ExtractSQL(text string) string {
	if block, ok := fencedBlock(text); ok {
		return selectStatement(block)
	}
	return selectStatement(text)
}

// fencedBlock returns the body of the first ``` fence, minus an optional
// language tag on the opening line.
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	block := rest[:end]
	if nl := strings.IndexByte(block, '\n'); nl >= 0 {
		tag := strings.TrimSpace(block[:nl])
		if tag == "" || strings.EqualFold(tag, "sql") {
			block = block[nl+1:]
		}
	}
	return block, true
}

// selectStatement finds the first line starting with SELECT and collects
// lines until a blank line or a terminating semicolon.
func selectStatement(text string) string {
	lines := strings.Split(text, "\n")
	var stmt []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(stmt) == 0 {
			if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
				continue
			}
			stmt = append(stmt, trimmed)
		} else {
			if trimmed == "" {
				break
			}
			stmt = append(stmt, trimmed)
		}
		if strings.HasSuffix(trimmed, ";") {
			break
		}
	}
	if len(stmt) == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Join(stmt, " "), ";")
}
