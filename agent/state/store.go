package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrThreadNotFound = errors.New("conversation thread not found")
	ErrInvalidThread  = errors.New("thread id is empty")
)

// Store maps thread ids to conversation threads. Implementations must treat
// Save as a whole-thread commit: either every field and appended turn lands or none does.
type Store interface {
	Load(ctx context.Context, threadID string) (*ConversationThread, error)
	Save(ctx context.Context, t *ConversationThread) error
	Delete(ctx context.Context, threadID string) error
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps threads JSON-encoded in process memory so callers never share pointers.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]byte, 16)}
}

func (m *MemoryStore) Load(ctx context.Context, threadID string) (*ConversationThread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	raw, ok := m.threads[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrThreadNotFound
	}

	var t ConversationThread
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("unmarshal thread: %w", err)
	}
	return &t, nil
}

func (m *MemoryStore) Save(ctx context.Context, t *ConversationThread) error {
	if t == nil {
		return ErrNilThread
	}
	if strings.TrimSpace(t.ThreadID) == "" {
		return ErrInvalidThread
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.threads[t.ThreadID]; ok {
		var stored ConversationThread
		if err := json.Unmarshal(prev, &stored); err == nil && len(stored.Turns) > len(t.Turns) {
			return fmt.Errorf("%w: stored=%d saving=%d", ErrTurnHistoryShort, len(stored.Turns), len(t.Turns))
		}
	}
	m.threads[t.ThreadID] = raw
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	m.mu.Lock()
	delete(m.threads, threadID)
	m.mu.Unlock()
	return nil
}
