package pepper

import (
	"context"
	"sync"
)

// MemoryBackend keeps material in process memory. Used by tests and by
// ephemeral setups where losing the pepper on exit is acceptable.
type MemoryBackend struct {
	mu sync.RWMutex
	m  *Material
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (b *MemoryBackend) Load(_ context.Context) (*Material, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.m == nil {
		return nil, ErrPepperNotFound
	}
	iv := make([]byte, len(b.m.InitialVector))
	copy(iv, b.m.InitialVector)
	return &Material{Key: b.m.Key, InitialVector: iv, CreatedAt: b.m.CreatedAt}, nil
}

func (b *MemoryBackend) Save(_ context.Context, m *Material) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.m != nil {
		return ErrPepperExists
	}
	iv := make([]byte, len(m.InitialVector))
	copy(iv, m.InitialVector)
	b.m = &Material{Key: m.Key, InitialVector: iv, CreatedAt: m.CreatedAt}
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m = nil
	return nil
}
