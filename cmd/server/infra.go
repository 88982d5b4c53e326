package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"bastion/internal/audit"
	auditmemory "bastion/internal/audit/store/memory"
	auditpostgres "bastion/internal/audit/store/postgres"
	"bastion/internal/compliance"
	compliancepostgres "bastion/internal/compliance/store/postgres"
	"bastion/internal/health"
	"bastion/internal/kyc"
	kycpostgres "bastion/internal/kyc/store/postgres"
	"bastion/internal/platform/config"
	"bastion/internal/platform/kafka"
	"bastion/internal/platform/postgres"
	"bastion/internal/platform/redis"
	rlmetrics "bastion/internal/ratelimit/metrics"
	"bastion/internal/ratelimit/ports"
	rlmemory "bastion/internal/ratelimit/store/memory"
	rlredis "bastion/internal/ratelimit/store/redis"
	"bastion/internal/ratelimit/store/resilient"
	"bastion/internal/token"
	"bastion/internal/token/store/revocation"
)

// infrastructure holds the optional external clients. Each store accessor
// prefers Redis or Postgres when configured and falls back to memory.
type infrastructure struct {
	redis    *redis.Client
	db       *postgres.DB
	kafka    *kafka.Client
	counters *resilient.CounterStore
	primary  *rlredis.CounterStore
	pgTRL    *revocation.PostgresTRL
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infrastructure, error) {
	dialCtx, cancel := context.WithTimeout(ctx, startupDialTimeout)
	defer cancel()

	infra := &infrastructure{}
	var err error
	if infra.redis, err = redis.New(dialCtx, cfg.Redis); err != nil {
		return nil, err
	}
	if infra.db, err = postgres.Open(dialCtx, cfg.Postgres); err != nil {
		infra.Close()
		return nil, err
	}
	if infra.db != nil {
		if err := infra.db.Migrate(dialCtx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if infra.kafka, err = kafka.New(cfg.Kafka); err != nil {
		infra.Close()
		return nil, err
	}
	log.Info("infrastructure connected",
		"redis", infra.redis != nil,
		"postgres", infra.db != nil,
		"kafka", infra.kafka != nil,
	)
	return infra, nil
}

func (i *infrastructure) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
}

func (i *infrastructure) register(checker *health.Checker) {
	if i.redis != nil {
		checker.Register("redis", i.redis)
	}
	if i.db != nil {
		checker.Register("postgres", i.db)
	}
}

func (i *infrastructure) auditStore() audit.Store {
	if i.db != nil {
		return auditpostgres.New(i.db.DB)
	}
	return auditmemory.New()
}

func (i *infrastructure) revocationList() token.RevocationStore {
	switch {
	case i.redis != nil:
		return revocation.NewRedisTRL(i.redis.Client)
	case i.db != nil:
		i.pgTRL = revocation.NewPostgresTRL(i.db.DB)
		return i.pgTRL
	default:
		return revocation.NewInMemoryTRL(nil)
	}
}

func (i *infrastructure) complianceStores() (compliance.ConsentStore, compliance.RequestStore, compliance.BreachStore) {
	if i.db != nil {
		return compliancepostgres.NewConsentStore(i.db.DB),
			compliancepostgres.NewRequestStore(i.db.DB),
			compliancepostgres.NewBreachStore(i.db.DB)
	}
	return compliance.NewInMemoryConsentStore(),
		compliance.NewInMemoryRequestStore(),
		compliance.NewInMemoryBreachStore()
}

// complianceOptions makes consent withdrawal transactional on Postgres.
func (i *infrastructure) complianceOptions() []compliance.Option {
	if i.db == nil {
		return nil
	}
	return []compliance.Option{compliance.WithTransactor(compliancepostgres.NewTransactor(i.db.DB))}
}

func (i *infrastructure) profileStore() kyc.ProfileStore {
	if i.db != nil {
		return kycpostgres.New(i.db.DB)
	}
	return kyc.NewInMemoryProfileStore()
}

// rateLimitStores shares Redis counters across replicas. A Redis outage
// degrades counters to process-local memory instead of failing requests.
func (i *infrastructure) rateLimitStores(log *slog.Logger, m *rlmetrics.Metrics) (ports.CounterStore, ports.BlockStore, ports.OverrideStore) {
	if i.redis == nil {
		return rlmemory.NewCounterStore(nil), rlmemory.NewBlockStore(nil), rlmemory.NewOverrideStore(nil)
	}
	i.primary = rlredis.NewCounterStore(i.redis.Client)
	i.counters = resilient.New(i.primary, rlmemory.NewCounterStore(nil),
		resilient.WithLogger(log),
		resilient.WithStateObserver(m.SetDegraded),
	)
	return i.counters, rlredis.NewBlockStore(i.redis.Client), rlredis.NewOverrideStore(i.redis.Client)
}

func (i *infrastructure) counterProbe(ctx context.Context) error {
	if err := i.primary.Check(ctx); err != nil {
		return err
	}
	if i.counters.Degraded() {
		return health.ErrDegraded
	}
	return nil
}

func randomKey() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawStdEncoding.EncodeToString(b)
}
