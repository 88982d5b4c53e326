package audit

import (
	"context"
	"time"
)

// Store persists events and records. Appends must be atomic.
type Store interface {
	AppendEvent(ctx context.Context, event SecurityEvent) error
	AppendRecord(ctx context.Context, record AuditRecord) error
	ListEventsSince(ctx context.Context, since time.Time) ([]SecurityEvent, error)
	ListRecordsBySubject(ctx context.Context, subjectID string) ([]AuditRecord, error)
	ListExpiredRecords(ctx context.Context, now time.Time) ([]AuditRecord, error)
}

// Forwarder ships security events to an external sink (SIEM). It must not
// block the caller.
type Forwarder interface {
	Forward(ctx context.Context, event SecurityEvent)
}
