package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"bastion/internal/audit"
	auditkafka "bastion/internal/audit/publisher/kafka"
	"bastion/internal/compliance"
	"bastion/internal/credential"
	"bastion/internal/esign"
	"bastion/internal/health"
	"bastion/internal/kyc"
	"bastion/internal/platform/config"
	"bastion/internal/platform/httpserver"
	"bastion/internal/platform/logger"
	platformmetrics "bastion/internal/platform/metrics"
	rlmetrics "bastion/internal/ratelimit/metrics"
	rlmw "bastion/internal/ratelimit/middleware"
	rlservice "bastion/internal/ratelimit/service"
	"bastion/internal/token"
	httptransport "bastion/internal/transport/http"
)

const (
	healthInterval     = 30 * time.Second
	maintenanceEvery   = time.Hour
	shutdownTimeout    = 10 * time.Second
	tokenIssuer        = "bastion"
	tokenAudience      = "bastion-api"
	totpIssuer         = "Bastion"
	startupDialTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies, serves until ctx is cancelled and then drains the
// server and the background workers.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	checker := health.NewChecker(reg, health.WithLogger(log))
	infra.register(checker)
	g, gctx := errgroup.WithContext(ctx)

	// Audit first: every other service reports security events through it.
	auditOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(audit.NewMetrics(reg))}
	if infra.kafka != nil {
		if err := infra.kafka.EnsureTopic(ctx, cfg.Kafka.SecurityTopic, cfg.Kafka.Partitions); err != nil {
			log.Warn("security topic not ensured", "topic", cfg.Kafka.SecurityTopic, "error", err)
		}
		fwd := auditkafka.New(infra.kafka, cfg.Kafka.SecurityTopic, auditkafka.WithLogger(log))
		auditOpts = append(auditOpts, audit.WithForwarder(fwd))
		g.Go(func() error {
			if err := fwd.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		checker.Register("kafka", infra.kafka)
	}
	auditSvc, err := audit.New(infra.auditStore(), auditOpts...)
	if err != nil {
		return err
	}

	hasher, err := credential.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	cipher, err := credential.NewCipher(masterSecret(cfg, log))
	if err != nil {
		return err
	}
	creds, err := credential.New(hasher, cipher,
		credential.WithLogger(log),
		credential.WithSecurityEvents(auditSvc),
		credential.WithCodeGenerator(credential.NewCodeGenerator(totpIssuer)),
	)
	if err != nil {
		return err
	}

	tokens, err := token.New(token.NewSigner(cfg.JWTSigningKey, tokenIssuer, tokenAudience), infra.revocationList(),
		token.WithLogger(log),
		token.WithSecurityEvents(auditSvc),
		token.WithDefaultTTL(cfg.TokenTTL),
	)
	if err != nil {
		return err
	}

	consents, requests, breaches := infra.complianceStores()
	comp, err := compliance.New(consents, requests, breaches,
		append(infra.complianceOptions(),
			compliance.WithLogger(log),
			compliance.WithAuditLogger(auditSvc),
			compliance.WithSecurityEvents(auditSvc),
			compliance.WithMetrics(compliance.NewMetrics(reg)),
		)...,
	)
	if err != nil {
		return err
	}

	rlm := rlmetrics.New(reg)
	counters, blocks, overrides := infra.rateLimitStores(log, rlm)
	limiter, err := rlservice.New(counters, blocks, overrides,
		rlservice.WithLogger(log),
		rlservice.WithSecurityEvents(auditSvc),
		rlservice.WithMetrics(rlm),
		rlservice.WithLimits(routeLimits(cfg.Policy)),
	)
	if err != nil {
		return err
	}
	if infra.counters != nil {
		checker.Register("ratelimit_store", health.ProbeFunc(infra.counterProbe))
	}

	deps := httptransport.Deps{
		Credentials: creds,
		Tokens:      tokens,
		Audit:       auditSvc,
		Compliance:  comp,
		Blocks:      limiter,
		Limiter:     rlmw.New(limiter, log),
		Health:      checker.Handler(),
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		HTTPMetrics: platformmetrics.New(reg),
		AdminToken:  cfg.AdminAPIToken,
	}

	if cfg.Provider.BaseURL != "" {
		client := kyc.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout,
			kyc.WithRateLimit(cfg.Provider.RatePerSec, cfg.Provider.Burst))
		kycSvc, err := kyc.New(client, infra.profileStore(),
			append(kycPolicy(cfg.Policy),
				kyc.WithLogger(log),
				kyc.WithSecurityEvents(auditSvc),
				kyc.WithMetrics(kyc.NewMetrics(reg)),
				kyc.WithProviderTimeout(cfg.Provider.Timeout),
			)...,
		)
		if err != nil {
			return err
		}
		deps.KYC = kycSvc
		checker.Register("kyc_provider", client)
	} else {
		log.Warn("KYC_PROVIDER_URL not set; identity verification routes disabled")
	}

	if cfg.ESign.BaseURL != "" {
		client := esign.NewHTTPClient(cfg.ESign.BaseURL, cfg.ESign.APIKey, cfg.ESign.Timeout)
		esignSvc, err := esign.New(client,
			esign.WithLogger(log),
			esign.WithSecurityEvents(auditSvc),
			esign.WithProviderTimeout(cfg.ESign.Timeout),
		)
		if err != nil {
			return err
		}
		deps.ESign = esignSvc
		checker.Register("esign_provider", client)
	}

	handler, err := httptransport.New(deps, log)
	if err != nil {
		return err
	}

	g.Go(func() error {
		checker.Run(gctx, healthInterval)
		return nil
	})
	g.Go(func() error {
		runMaintenance(gctx, log, comp, auditSvc, infra)
		return nil
	})

	srv := httpserver.New(cfg.Addr, handler.Routes())
	g.Go(func() error {
		log.Info("starting bastion", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runMaintenance flags overdue data subject requests, reports expired audit
// records and prunes the revocation table on a fixed cadence.
func runMaintenance(ctx context.Context, log *slog.Logger, comp *compliance.Service, auditSvc *audit.Service, infra *infrastructure) {
	ticker := time.NewTicker(maintenanceEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if overdue, err := comp.OverdueRequests(ctx); err != nil {
			log.Error("overdue request sweep failed", "error", err)
		} else if len(overdue) > 0 {
			log.Warn("data subject requests past deadline", "count", len(overdue))
		}
		if expired, err := auditSvc.ExpiredRecords(ctx); err != nil {
			log.Error("audit retention sweep failed", "error", err)
		} else if len(expired) > 0 {
			log.Info("audit records past retention", "count", len(expired))
		}
		if infra.pgTRL != nil {
			if n, err := infra.pgTRL.PurgeExpired(ctx); err != nil {
				log.Error("revocation purge failed", "error", err)
			} else if n > 0 {
				log.Debug("purged expired revocations", "count", n)
			}
		}
	}
}

// masterSecret falls back to an ephemeral key outside production; config
// validation already rejects a missing key in production.
func masterSecret(cfg config.Config, log *slog.Logger) []byte {
	if cfg.MasterKey != "" {
		return []byte(cfg.MasterKey)
	}
	log.Warn("ENCRYPTION_MASTER_KEY not set; using an ephemeral key, ciphertexts will not survive a restart")
	return []byte(randomKey())
}
