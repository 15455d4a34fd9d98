// Package store persists conversation history so the cognition dispatcher
// can load the last N turns for a caller and append new ones as they happen.
package store

import "context"

// ConversationTurn is one role/content pair in a caller's history.
type ConversationTurn struct {
	Role    string
	Content string
}

// ConversationStore reads and appends per-user conversation history.
// userID here is the identity decoded from the auth token, not a caller-
// controlled telephone number, so it is safe to use directly in queries.
type ConversationStore interface {
	ReadHistory(ctx context.Context, userID string, limit int) ([]ConversationTurn, error)
	AppendTurn(ctx context.Context, userID, role, content string, sentiment *float64, latencyMs *int) error
	Close() error
}

// DefaultHistoryLimit is the number of prior turns loaded for a new
// utterance, per the external-interface contract.
const DefaultHistoryLimit = 20
