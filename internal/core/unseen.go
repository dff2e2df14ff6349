package core

import (
	"context"
	"sync"
)

// UnseenCounter tracks how many messages each sender has waiting for a recipient.
type UnseenCounter interface {
	Increment(ctx context.Context, recipientID, senderID string) (int64, error)
	Reset(ctx context.Context, recipientID, senderID string) error
	Summary(ctx context.Context, recipientID string) (map[string]int64, error)
}

// MemoryUnseen is an in-process UnseenCounter. Counts are lost on restart.
type MemoryUnseen struct {
	mu     sync.Mutex
	counts map[string]map[string]int64
}

var _ UnseenCounter = (*MemoryUnseen)(nil)

// NewMemoryUnseen creates an empty counter.
func NewMemoryUnseen() *MemoryUnseen {
	return &MemoryUnseen{counts: make(map[string]map[string]int64)}
}

func (m *MemoryUnseen) Increment(_ context.Context, recipientID, senderID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySender, ok := m.counts[recipientID]
	if !ok {
		bySender = make(map[string]int64)
		m.counts[recipientID] = bySender
	}
	bySender[senderID]++
	return bySender[senderID], nil
}

func (m *MemoryUnseen) Reset(_ context.Context, recipientID, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bySender, ok := m.counts[recipientID]; ok {
		delete(bySender, senderID)
		if len(bySender) == 0 {
			delete(m.counts, recipientID)
		}
	}
	return nil
}

func (m *MemoryUnseen) Summary(_ context.Context, recipientID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.counts[recipientID]))
	for sender, n := range m.counts[recipientID] {
		out[sender] = n
	}
	return out, nil
}
