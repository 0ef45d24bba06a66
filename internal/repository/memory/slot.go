package memory

import (
	"context"
	"sync"

	"github.com/utafrali/storefront/internal/repository"
)

// Provider keeps every slot in a process-local map. Contents are lost on
// restart.
type Provider struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewProvider returns an empty in-memory provider.
func NewProvider() *Provider {
	return &Provider{data: make(map[string][]byte)}
}

// Open returns the slot for key.
func (p *Provider) Open(key string) repository.Slot {
	return &slot{p: p, key: key}
}

// Ping always succeeds.
func (p *Provider) Ping(context.Context) error { return nil }

// Name returns "memory".
func (p *Provider) Name() string { return "memory" }

// Put seeds key with raw bytes, bypassing any encoding.
func (p *Provider) Put(key string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = append([]byte(nil), data...)
}

// Get returns the raw bytes stored under key.
func (p *Provider) Get(key string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.data[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

type slot struct {
	p   *Provider
	key string
}

func (s *slot) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := s.p.Get(s.key)
	if !ok {
		return nil, repository.ErrSlotEmpty
	}
	return b, nil
}

func (s *slot) Store(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.p.Put(s.key, data)
	return nil
}
