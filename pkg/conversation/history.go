package conversation

import (
	"context"
	"sync"

	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
)

// HistoryStore persists the message list of each session. Load returns an
// empty list and no error for an unknown session; Delete of an unknown
// session is a no-op.
type HistoryStore interface {
	Load(ctx context.Context, sessionID string) ([]vibeproxy.Message, error)
	Save(ctx context.Context, sessionID string, history []vibeproxy.Message) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryHistory keeps sessions for the lifetime of the process. Stored and
// returned lists are deep copies.
type MemoryHistory struct {
	mu       sync.RWMutex
	sessions map[string][]vibeproxy.Message
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{sessions: make(map[string][]vibeproxy.Message)}
}

func (h *MemoryHistory) Load(_ context.Context, sessionID string) ([]vibeproxy.Message, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return vibeproxy.CloneMessages(h.sessions[sessionID]), nil
}

func (h *MemoryHistory) Save(_ context.Context, sessionID string, history []vibeproxy.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sessionID] = vibeproxy.CloneMessages(history)
	return nil
}

func (h *MemoryHistory) Delete(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
	return nil
}

// Len reports how many sessions are held.
func (h *MemoryHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
