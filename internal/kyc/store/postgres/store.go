// Package postgres persists KYC profiles in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"bastion/internal/kyc"
	"bastion/pkg/platform/sentinel"
)

// Store implements kyc.ProfileStore on kyc_profiles. A save replaces the
// subject's previous profile in one statement.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const upsertProfile = `
	INSERT INTO kyc_profiles (subject_id, tier, required_documents, risk_score, risk_level, factors, provider_result, verified_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (subject_id) DO UPDATE SET
		tier = EXCLUDED.tier,
		required_documents = EXCLUDED.required_documents,
		risk_score = EXCLUDED.risk_score,
		risk_level = EXCLUDED.risk_level,
		factors = EXCLUDED.factors,
		provider_result = EXCLUDED.provider_result,
		verified_at = EXCLUDED.verified_at,
		updated_at = EXCLUDED.updated_at
`

func (s *Store) Save(ctx context.Context, p *kyc.Profile) error {
	var verified sql.NullTime
	if !p.VerifiedAt.IsZero() {
		verified = sql.NullTime{Time: p.VerifiedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, upsertProfile,
		p.SubjectID, string(p.Tier),
		pq.Array(append([]string{}, p.RequiredDocuments...)),
		p.RiskScore, string(p.RiskLevel),
		pq.Array(append([]string{}, p.Factors...)),
		p.ProviderResult, verified, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save kyc profile: %w", err)
	}
	return nil
}

func (s *Store) FindBySubject(ctx context.Context, subjectID string) (*kyc.Profile, error) {
	var (
		p           kyc.Profile
		tier, level string
		verified    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT subject_id, tier, required_documents, risk_score, risk_level, factors, provider_result, verified_at, updated_at
		FROM kyc_profiles WHERE subject_id = $1`, subjectID).
		Scan(&p.SubjectID, &tier, pq.Array(&p.RequiredDocuments), &p.RiskScore, &level,
			pq.Array(&p.Factors), &p.ProviderResult, &verified, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find kyc profile: %w", err)
	}
	p.Tier = kyc.Tier(tier)
	p.RiskLevel = kyc.RiskLevel(level)
	if verified.Valid {
		p.VerifiedAt = verified.Time
	}
	return &p, nil
}
