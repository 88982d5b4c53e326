package compliance

import (
	"context"
	"time"

	"bastion/internal/audit"
)

// ConsentStore persists consent grants. Records are never deleted; withdrawal
// sets WithdrawnAt.
type ConsentStore interface {
	Save(ctx context.Context, record *ConsentRecord) error
	MarkWithdrawn(ctx context.Context, consentID string, at time.Time) error
	ListBySubject(ctx context.Context, subjectID string) ([]*ConsentRecord, error)
}

// RequestStore persists data subject requests.
type RequestStore interface {
	Save(ctx context.Context, req *DataSubjectRequest) error
	FindByID(ctx context.Context, requestID string) (*DataSubjectRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status DSRStatus, at time.Time) error
	ListOverdue(ctx context.Context, now time.Time) ([]*DataSubjectRequest, error)
}

// BreachStore persists breach records.
type BreachStore interface {
	Save(ctx context.Context, record *BreachRecord) error
	List(ctx context.Context) ([]*BreachRecord, error)
}

// Transactor makes a multi-write operation atomic. Stores taking part must
// join the transaction carried by ctx.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// AuditLogger records compliance actions on the audit trail.
type AuditLogger interface {
	LogAuditEvent(ctx context.Context, subjectID, action string, details map[string]any) (*audit.AuditRecord, error)
}

// SecurityEventLogger raises compliance alerts on the security log.
type SecurityEventLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error)
}
