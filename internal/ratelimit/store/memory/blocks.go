package memory

import (
	"context"
	"sync"
	"time"

	"bastion/internal/ratelimit/models"
)

// BlockStore keeps blocked addresses until they expire.
type BlockStore struct {
	mu     sync.RWMutex
	blocks map[string]models.Block
	clock  Clock
}

func NewBlockStore(clock Clock) *BlockStore {
	if clock == nil {
		clock = time.Now
	}
	return &BlockStore{blocks: make(map[string]models.Block), clock: clock}
}

func (s *BlockStore) Block(_ context.Context, b models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.IP] = b
	return nil
}

func (s *BlockStore) Unblock(_ context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, ip)
	return nil
}

func (s *BlockStore) Get(_ context.Context, ip string) (*models.Block, error) {
	s.mu.RLock()
	b, ok := s.blocks[ip]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !s.clock().Before(b.ExpiresAt) {
		s.mu.Lock()
		if cur, ok := s.blocks[ip]; ok && cur.ExpiresAt.Equal(b.ExpiresAt) {
			delete(s.blocks, ip)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return &b, nil
}

// OverrideStore keeps adaptive overrides until they expire.
type OverrideStore struct {
	mu        sync.RWMutex
	overrides map[string]models.Override
	clock     Clock
}

func NewOverrideStore(clock Clock) *OverrideStore {
	if clock == nil {
		clock = time.Now
	}
	return &OverrideStore{overrides: make(map[string]models.Override), clock: clock}
}

func (s *OverrideStore) Set(_ context.Context, key string, o models.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = o
	return nil
}

func (s *OverrideStore) Get(_ context.Context, key string) (*models.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[key]
	if !ok || !o.Active(s.clock()) {
		return nil, nil
	}
	return &o, nil
}
