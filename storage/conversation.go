// Package storage provides conversation storage abstraction.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"

	"github.com/getfairai/sifter/llm"
)

// ConversationStorage defines the interface for storing conversation history.
// Messages are stored whole: tool calls, tool call IDs and skill labels survive
// a round trip so a transcript can be replayed to the model.
type ConversationStorage interface {
	// Save replaces the conversation history of a session.
	Save(ctx context.Context, sessionID string, history []llm.Message) error

	// Load loads conversation history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing sessions.
	Load(ctx context.Context, sessionID string) ([]llm.Message, error)

	// Delete deletes conversation history for a session.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// TokenStore keeps the admin bearer token between CLI invocations.
type TokenStore interface {
	SaveAdminToken(ctx context.Context, token string) error
	// AdminToken returns "" when no token is stored.
	AdminToken(ctx context.Context) (string, error)
	ClearAdminToken(ctx context.Context) error
}
