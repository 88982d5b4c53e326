package kyc

import (
	"context"
	"slices"
	"sync"

	"bastion/pkg/platform/sentinel"
)

// InMemoryProfileStore keeps profiles in a map.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{profiles: make(map[string]Profile)}
}

func (s *InMemoryProfileStore) Save(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.RequiredDocuments = slices.Clone(p.RequiredDocuments)
	cp.Factors = slices.Clone(p.Factors)
	s.profiles[p.SubjectID] = cp
	return nil
}

func (s *InMemoryProfileStore) FindBySubject(_ context.Context, subjectID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}
