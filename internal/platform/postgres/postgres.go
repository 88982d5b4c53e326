package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"bastion/internal/platform/config"
)

// DB wraps the pooled database handle.
type DB struct {
	*sql.DB
}

// Open connects to Postgres through the pgx stdlib driver. Returns nil when no
// DSN is configured.
func Open(ctx context.Context, cfg config.PostgresConfig) (*DB, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &DB{DB: db}, nil
}

// Check satisfies the dependency health probe.
func (d *DB) Check(ctx context.Context) error {
	return d.PingContext(ctx)
}

// Schema is the DDL for every Postgres-backed store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS token_revocations (
    jti        TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL,
    revoked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_token_revocations_expires ON token_revocations (expires_at);

CREATE TABLE IF NOT EXISTS audit_records (
    seq            BIGSERIAL PRIMARY KEY,
    id             TEXT NOT NULL UNIQUE,
    kind           TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    subject_id     TEXT NOT NULL,
    severity       TEXT NOT NULL,
    action         TEXT NOT NULL DEFAULT '',
    retention_days INT NOT NULL DEFAULT 0,
    details        JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_subject ON audit_records (subject_id, seq);
CREATE INDEX IF NOT EXISTS idx_audit_records_created ON audit_records (created_at);

CREATE TABLE IF NOT EXISTS consent_records (
    consent_id    TEXT PRIMARY KEY,
    subject_id    TEXT NOT NULL,
    consent_types TEXT[] NOT NULL,
    legal_basis   TEXT NOT NULL,
    source        TEXT NOT NULL DEFAULT '',
    granted_at    TIMESTAMPTZ NOT NULL,
    expires_at    TIMESTAMPTZ,
    withdrawn_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_consent_records_subject ON consent_records (subject_id, granted_at);

CREATE TABLE IF NOT EXISTS data_subject_requests (
    request_id       TEXT PRIMARY KEY,
    reference_number TEXT NOT NULL,
    subject_id       TEXT NOT NULL,
    type             TEXT NOT NULL,
    status           TEXT NOT NULL,
    details          TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    deadline         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dsr_open_deadline ON data_subject_requests (deadline)
    WHERE status NOT IN ('completed', 'rejected');

CREATE TABLE IF NOT EXISTS breach_records (
    breach_id             TEXT PRIMARY KEY,
    description           TEXT NOT NULL DEFAULT '',
    severity              TEXT NOT NULL,
    affected_record_count INT NOT NULL,
    affected_data_types   TEXT[] NOT NULL DEFAULT '{}',
    notify_authority      BOOLEAN NOT NULL,
    notify_subjects       BOOLEAN NOT NULL,
    discovered_at         TIMESTAMPTZ NOT NULL,
    authority_deadline    TIMESTAMPTZ,
    recorded_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS kyc_profiles (
    subject_id         TEXT PRIMARY KEY,
    tier               TEXT NOT NULL,
    required_documents TEXT[] NOT NULL,
    risk_score         INT NOT NULL,
    risk_level         TEXT NOT NULL,
    factors            TEXT[] NOT NULL DEFAULT '{}',
    provider_result    TEXT NOT NULL DEFAULT '',
    verified_at        TIMESTAMPTZ,
    updated_at         TIMESTAMPTZ NOT NULL
);
`

// Migrate applies Schema.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
