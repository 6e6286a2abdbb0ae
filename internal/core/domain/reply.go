package domain

import "errors"

// ErrLLMUnavailable marks the inference server as unreachable or not ready.
// Surfaced to the end user as a blocking condition; never retried.
var ErrLLMUnavailable = errors.New("inference server unavailable")

// Reply is the assembled outcome of one chat turn. It replaces runtime
// probing of heterogeneous agent output with explicit fields: the assistant
// text, the SQL the model authored (if any), and the rows that SQL produced
// (if it passed the gate and executed).
type Reply struct {
	Answer  string     `json:"answer"`
	SQL     string     `json:"sql,omitempty"`
	Results *ResultSet `json:"results,omitempty"`
}
