// Package postgres persists compliance records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bastion/internal/compliance"
	"bastion/pkg/platform/sentinel"
	"bastion/pkg/platform/tx"
)

// Transactor runs compliance units of work in a database transaction. The
// consent store joins it through the context.
type Transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, t.db, fn)
}

// ConsentStore implements compliance.ConsentStore on consent_records.
type ConsentStore struct {
	db *sql.DB
}

func NewConsentStore(db *sql.DB) *ConsentStore {
	return &ConsentStore{db: db}
}

const insertConsent = `
	INSERT INTO consent_records (consent_id, subject_id, consent_types, legal_basis, source, granted_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (s *ConsentStore) Save(ctx context.Context, r *compliance.ConsentRecord) error {
	types := make([]string, len(r.ConsentTypes))
	for i, t := range r.ConsentTypes {
		types[i] = string(t)
	}
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, insertConsent,
		r.ConsentID, r.SubjectID, pq.Array(types), string(r.LegalBasis), r.Source, r.GrantedAt, nullTime(r.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert consent: %w", err)
	}
	return nil
}

func (s *ConsentStore) MarkWithdrawn(ctx context.Context, consentID string, at time.Time) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE consent_records SET withdrawn_at = COALESCE(withdrawn_at, $2) WHERE consent_id = $1`, consentID, at)
	if err != nil {
		return fmt.Errorf("withdraw consent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *ConsentStore) ListBySubject(ctx context.Context, subjectID string) ([]*compliance.ConsentRecord, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT consent_id, subject_id, consent_types, legal_basis, source, granted_at, expires_at, withdrawn_at
		FROM consent_records WHERE subject_id = $1 ORDER BY granted_at, consent_id`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query consents: %w", err)
	}
	defer rows.Close()

	var out []*compliance.ConsentRecord
	for rows.Next() {
		var (
			r                    compliance.ConsentRecord
			types                []string
			basis                string
			expires, withdrawnAt sql.NullTime
		)
		if err := rows.Scan(&r.ConsentID, &r.SubjectID, pq.Array(&types), &basis, &r.Source, &r.GrantedAt, &expires, &withdrawnAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		r.LegalBasis = compliance.LegalBasis(basis)
		for _, t := range types {
			r.ConsentTypes = append(r.ConsentTypes, compliance.ConsentType(t))
		}
		r.ExpiresAt = timePtr(expires)
		r.WithdrawnAt = timePtr(withdrawnAt)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return out, nil
}

// RequestStore implements compliance.RequestStore on data_subject_requests.
type RequestStore struct {
	db *sql.DB
}

func NewRequestStore(db *sql.DB) *RequestStore {
	return &RequestStore{db: db}
}

const insertRequest = `
	INSERT INTO data_subject_requests (request_id, reference_number, subject_id, type, status, details, created_at, updated_at, deadline)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (request_id) DO NOTHING
`

func (s *RequestStore) Save(ctx context.Context, r *compliance.DataSubjectRequest) error {
	res, err := s.db.ExecContext(ctx, insertRequest,
		r.RequestID, r.ReferenceNumber, r.SubjectID, string(r.Type), string(r.Status), r.Details, r.CreatedAt, r.UpdatedAt, r.Deadline)
	if err != nil {
		return fmt.Errorf("insert data subject request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const selectRequest = `
	SELECT request_id, reference_number, subject_id, type, status, details, created_at, updated_at, deadline
	FROM data_subject_requests`

func (s *RequestStore) FindByID(ctx context.Context, requestID string) (*compliance.DataSubjectRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, selectRequest+` WHERE request_id = $1`, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find data subject request: %w", err)
	}
	return r, nil
}

func (s *RequestStore) UpdateStatus(ctx context.Context, requestID string, status compliance.DSRStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE data_subject_requests SET status = $2, updated_at = $3 WHERE request_id = $1`, requestID, string(status), at)
	if err != nil {
		return fmt.Errorf("update data subject request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RequestStore) ListOverdue(ctx context.Context, now time.Time) ([]*compliance.DataSubjectRequest, error) {
	rows, err := s.db.QueryContext(ctx, selectRequest+
		` WHERE status NOT IN ('completed', 'rejected') AND deadline < $1 ORDER BY deadline`, now)
	if err != nil {
		return nil, fmt.Errorf("query overdue requests: %w", err)
	}
	defer rows.Close()
	var out []*compliance.DataSubjectRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data subject request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overdue requests: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*compliance.DataSubjectRequest, error) {
	var (
		r           compliance.DataSubjectRequest
		typ, status string
	)
	if err := row.Scan(&r.RequestID, &r.ReferenceNumber, &r.SubjectID, &typ, &status, &r.Details, &r.CreatedAt, &r.UpdatedAt, &r.Deadline); err != nil {
		return nil, err
	}
	r.Type = compliance.DSRType(typ)
	r.Status = compliance.DSRStatus(status)
	return &r, nil
}

// BreachStore implements compliance.BreachStore on breach_records.
type BreachStore struct {
	db *sql.DB
}

func NewBreachStore(db *sql.DB) *BreachStore {
	return &BreachStore{db: db}
}

const insertBreach = `
	INSERT INTO breach_records (breach_id, description, severity, affected_record_count, affected_data_types,
		notify_authority, notify_subjects, discovered_at, authority_deadline, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (s *BreachStore) Save(ctx context.Context, r *compliance.BreachRecord) error {
	var deadline *time.Time
	if !r.AuthorityDeadline.IsZero() {
		deadline = &r.AuthorityDeadline
	}
	_, err := s.db.ExecContext(ctx, insertBreach,
		r.BreachID, r.Description, string(r.Severity), r.AffectedRecordCount, pq.Array(append([]string{}, r.AffectedDataTypes...)),
		r.AuthorityNotificationRequired, r.SubjectNotificationRequired, r.DiscoveredAt, nullTime(deadline), r.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert breach: %w", err)
	}
	return nil
}

func (s *BreachStore) List(ctx context.Context) ([]*compliance.BreachRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT breach_id, description, severity, affected_record_count, affected_data_types,
			notify_authority, notify_subjects, discovered_at, authority_deadline, recorded_at
		FROM breach_records ORDER BY recorded_at, breach_id`)
	if err != nil {
		return nil, fmt.Errorf("query breaches: %w", err)
	}
	defer rows.Close()
	var out []*compliance.BreachRecord
	for rows.Next() {
		var (
			r        compliance.BreachRecord
			severity string
			deadline sql.NullTime
		)
		if err := rows.Scan(&r.BreachID, &r.Description, &severity, &r.AffectedRecordCount, pq.Array(&r.AffectedDataTypes),
			&r.AuthorityNotificationRequired, &r.SubjectNotificationRequired, &r.DiscoveredAt, &deadline, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan breach: %w", err)
		}
		r.Severity = compliance.Severity(severity)
		if deadline.Valid {
			r.AuthorityDeadline = deadline.Time
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate breaches: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
