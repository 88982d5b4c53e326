package compliance

import (
	"context"
	"slices"
	"sync"
	"time"

	"bastion/pkg/platform/sentinel"
)

// InMemoryConsentStore keeps consent records per subject in grant order.
type InMemoryConsentStore struct {
	mu        sync.RWMutex
	bySubject map[string][]*ConsentRecord
	byID      map[string]*ConsentRecord
}

func NewInMemoryConsentStore() *InMemoryConsentStore {
	return &InMemoryConsentStore{
		bySubject: make(map[string][]*ConsentRecord),
		byID:      make(map[string]*ConsentRecord),
	}
}

func (s *InMemoryConsentStore) Save(_ context.Context, r *ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneConsent(r)
	s.bySubject[r.SubjectID] = append(s.bySubject[r.SubjectID], cp)
	s.byID[r.ConsentID] = cp
	return nil
}

func (s *InMemoryConsentStore) MarkWithdrawn(_ context.Context, consentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[consentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.WithdrawnAt == nil {
		r.WithdrawnAt = &at
	}
	return nil
}

func (s *InMemoryConsentStore) ListBySubject(_ context.Context, subjectID string) ([]*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.bySubject[subjectID]
	out := make([]*ConsentRecord, len(records))
	for i, r := range records {
		out[i] = cloneConsent(r)
	}
	return out, nil
}

func cloneConsent(r *ConsentRecord) *ConsentRecord {
	cp := *r
	cp.ConsentTypes = slices.Clone(r.ConsentTypes)
	return &cp
}

// InMemoryRequestStore keeps data subject requests by id.
type InMemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]DataSubjectRequest
}

func NewInMemoryRequestStore() *InMemoryRequestStore {
	return &InMemoryRequestStore{requests: make(map[string]DataSubjectRequest)}
}

func (s *InMemoryRequestStore) Save(_ context.Context, r *DataSubjectRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.RequestID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.RequestID] = *r
	return nil
}

func (s *InMemoryRequestStore) FindByID(_ context.Context, requestID string) (*DataSubjectRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryRequestStore) UpdateStatus(_ context.Context, requestID string, status DSRStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	s.requests[requestID] = r
	return nil
}

func (s *InMemoryRequestStore) ListOverdue(_ context.Context, now time.Time) ([]*DataSubjectRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DataSubjectRequest
	for _, r := range s.requests {
		if r.IsOverdue(now) {
			out = append(out, &r)
		}
	}
	slices.SortFunc(out, func(a, b *DataSubjectRequest) int { return a.Deadline.Compare(b.Deadline) })
	return out, nil
}

// InMemoryBreachStore keeps breaches in recording order.
type InMemoryBreachStore struct {
	mu       sync.RWMutex
	breaches []BreachRecord
}

func NewInMemoryBreachStore() *InMemoryBreachStore {
	return &InMemoryBreachStore{}
}

func (s *InMemoryBreachStore) Save(_ context.Context, r *BreachRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.AffectedDataTypes = slices.Clone(r.AffectedDataTypes)
	s.breaches = append(s.breaches, cp)
	return nil
}

func (s *InMemoryBreachStore) List(_ context.Context) ([]*BreachRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*BreachRecord, len(s.breaches))
	for i := range s.breaches {
		r := s.breaches[i]
		out[i] = &r
	}
	return out, nil
}
