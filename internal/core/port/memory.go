package port

import "context"

// ConversationStore persists chat turns per session so follow-up questions
// carry context. Append failures are the caller's choice to tolerate;
// History returns turns oldest-first.
type ConversationStore interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	Close() error
}
