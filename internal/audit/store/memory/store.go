package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"bastion/internal/audit"
)

// Store is an in-memory audit.Store.
type Store struct {
	mu        sync.RWMutex
	events    []audit.SecurityEvent
	records   []audit.AuditRecord
	bySubject map[string][]int
}

func New() *Store {
	return &Store{bySubject: make(map[string][]int)}
}

func (s *Store) AppendEvent(_ context.Context, event audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) AppendRecord(_ context.Context, record audit.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	s.bySubject[record.SubjectID] = append(s.bySubject[record.SubjectID], len(s.records)-1)
	return nil
}

func (s *Store) ListEventsSince(_ context.Context, since time.Time) ([]audit.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Events are appended in timestamp order.
	i, _ := slices.BinarySearchFunc(s.events, since, func(e audit.SecurityEvent, t time.Time) int {
		return e.Timestamp.Compare(t)
	})
	return slices.Clone(s.events[i:]), nil
}

func (s *Store) ListRecordsBySubject(_ context.Context, subjectID string) ([]audit.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.bySubject[subjectID]
	out := make([]audit.AuditRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *Store) ListExpiredRecords(_ context.Context, now time.Time) ([]audit.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.AuditRecord
	for _, r := range s.records {
		if !r.ExpiresAt().After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}
