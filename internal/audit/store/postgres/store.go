package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"bastion/internal/audit"
)

// Store implements audit.Store on the audit_records table. Insertion order is
// the BIGSERIAL seq column.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const insertQuery = `
	INSERT INTO audit_records (id, kind, event_type, subject_id, severity, action, retention_days, details, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (s *Store) AppendEvent(ctx context.Context, e audit.SecurityEvent) error {
	return s.insert(ctx, audit.KindSecurity, e, "", 0)
}

func (s *Store) AppendRecord(ctx context.Context, r audit.AuditRecord) error {
	return s.insert(ctx, audit.KindAudit, r.SecurityEvent, r.Action, r.RetentionDays)
}

func (s *Store) insert(ctx context.Context, kind audit.Kind, e audit.SecurityEvent, action string, retention int) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	if e.Details == nil {
		details = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, insertQuery,
		e.ID, string(kind), string(e.EventType), e.SubjectID, string(e.Severity),
		action, retention, details, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, event_type, subject_id, severity, action, retention_days, details, created_at FROM audit_records`

func (s *Store) ListEventsSince(ctx context.Context, since time.Time) ([]audit.SecurityEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE kind = $1 AND created_at >= $2 ORDER BY seq`,
		string(audit.KindSecurity), since)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	events := make([]audit.SecurityEvent, len(records))
	for i, r := range records {
		events[i] = r.SecurityEvent
	}
	return events, nil
}

func (s *Store) ListRecordsBySubject(ctx context.Context, subjectID string) ([]audit.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE kind = $1 AND subject_id = $2 ORDER BY seq`,
		string(audit.KindAudit), subjectID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	return scanRecords(rows)
}

func (s *Store) ListExpiredRecords(ctx context.Context, now time.Time) ([]audit.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+
		` WHERE kind = $1 AND created_at + make_interval(days => retention_days) <= $2 ORDER BY seq`,
		string(audit.KindAudit), now)
	if err != nil {
		return nil, fmt.Errorf("query expired audit records: %w", err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]audit.AuditRecord, error) {
	defer rows.Close()
	var out []audit.AuditRecord
	for rows.Next() {
		var (
			r         audit.AuditRecord
			eventType string
			severity  string
			details   []byte
		)
		if err := rows.Scan(&r.ID, &eventType, &r.SubjectID, &severity, &r.Action, &r.RetentionDays, &details, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.EventType = audit.EventType(eventType)
		r.Severity = audit.Severity(severity)
		if len(details) > 0 && string(details) != "{}" {
			if err := json.Unmarshal(details, &r.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
