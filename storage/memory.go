package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/getfairai/sifter/llm"
)

// InMemoryStorage implements ConversationStorage and TokenStore using maps.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu         sync.RWMutex
	sessions   map[string][]llm.Message
	adminToken string
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		sessions: make(map[string][]llm.Message),
	}
}

// Save saves conversation history for a session.
func (s *InMemoryStorage) Save(ctx context.Context, sessionID string, history []llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = cloneMessages(history)
	return nil
}

// Load loads conversation history for a session.
// Returns empty slice if session doesn't exist.
func (s *InMemoryStorage) Load(ctx context.Context, sessionID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.sessions[sessionID]
	if !ok {
		return []llm.Message{}, nil
	}
	return cloneMessages(history), nil
}

// Delete deletes conversation history for a session.
func (s *InMemoryStorage) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// ListSessions lists all session IDs in sorted order.
func (s *InMemoryStorage) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.sessions))
	for sessionID := range s.sessions {
		sessions = append(sessions, sessionID)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Exists checks if a session exists.
func (s *InMemoryStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[sessionID]
	return ok, nil
}

func (s *InMemoryStorage) SaveAdminToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminToken = token
	return nil
}

func (s *InMemoryStorage) AdminToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adminToken, nil
}

func (s *InMemoryStorage) ClearAdminToken(ctx context.Context) error {
	return s.SaveAdminToken(ctx, "")
}

// cloneMessages copies messages and their tool call slices so callers
// cannot mutate stored history.
func cloneMessages(messages []llm.Message) []llm.Message {
	copied := make([]llm.Message, len(messages))
	for i, msg := range messages {
		if msg.ToolCalls != nil {
			msg.ToolCalls = append([]llm.ToolCall(nil), msg.ToolCalls...)
		}
		copied[i] = msg
	}
	return copied
}

var (
	_ ConversationStorage = (*InMemoryStorage)(nil)
	_ TokenStore          = (*InMemoryStorage)(nil)
)
