package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trustscore/internal/audit"
	audithandler "trustscore/internal/audit/handler"
	"trustscore/internal/audit/outbox"
	auditmemory "trustscore/internal/audit/store/memory"
	auditpostgres "trustscore/internal/audit/store/postgres"
	jwttoken "trustscore/internal/jwt_token"
	"trustscore/internal/platform/config"
	"trustscore/internal/platform/httpserver"
	"trustscore/internal/platform/kafka"
	"trustscore/internal/platform/logger"
	"trustscore/internal/platform/metrics"
	"trustscore/internal/platform/postgres"
	redisclient "trustscore/internal/platform/redis"
	scoringhandler "trustscore/internal/scoring/handler"
	scoringmetrics "trustscore/internal/scoring/metrics"
	"trustscore/internal/scoring/registry"
	"trustscore/internal/scoring/service"
	"trustscore/internal/scoring/store"
	httptransport "trustscore/internal/transport/http"
	"trustscore/pkg/platform/tx"
)

const (
	topicPartitions  = 3
	topicReplication = 1
)

// auditStore is both sides of the audit log.
type auditStore interface {
	audit.Appender
	audit.Reader
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the outbox relay when Kafka is configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.UsesDevSigningKey() {
		log.Warn("using the development JWT signing key; set TRUSTSCORE_JWT_SIGNING_KEY")
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	health := map[string]httptransport.HealthCheck{}

	var (
		db      *sql.DB
		runner  tx.Runner
		scores  service.Store
		entries auditStore
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		runner = tx.NewSQLRunner(db, tx.WithTimeout(cfg.TxTimeout))
		scores = store.NewPostgres(db)
		entries = auditpostgres.New(db)
		health["postgres"] = db.PingContext
		log.Info("storage: postgres")
	} else {
		runner = tx.NewMemoryRunner()
		scores = store.NewInMemoryStore()
		entries = auditmemory.NewInMemoryStore()
		log.Warn("storage: in-memory; data is lost on restart")
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(scoringmetrics.New(promReg)),
	}
	if cfg.RedisURL != "" {
		client, err := redisclient.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, service.WithCache(store.NewRedisCache(client, cfg.CacheTTL)))
		health["redis"] = client.Health
	}

	g, gctx := errgroup.WithContext(ctx)

	switch brokers := cfg.Brokers(); {
	case len(brokers) == 0:
	case db == nil:
		log.Warn("kafka brokers configured without a database; the audit outbox relay is disabled")
	default:
		relay, closeRelay, err := newRelay(ctx, cfg, db, runner, brokers, promReg, log, health)
		if err != nil {
			return err
		}
		defer closeRelay()
		g.Go(func() error { return relay.Run(gctx) })
	}

	writer := audit.NewWriter(runner, entries, audit.WithWriterLogger(log))
	scoring := service.New(reg, scores, writer, opts...)
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:      log,
		Scoring:     scoringhandler.New(scoring, log),
		Audit:       audithandler.New(audit.NewService(entries), log),
		Tokens:      jwttoken.NewJWTServiceAdapter(tokens),
		HTTPMetrics: metrics.NewHTTP(promReg),
		Gatherer:    promReg,
		Health:      health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("trustscore listening",
			"addr", cfg.Addr,
			"registry_version", reg.Version(),
		)
		return httpserver.Serve(gctx, srv, cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("trustscore stopped")
	return nil
}

func newRelay(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	runner tx.Runner,
	brokers []string,
	promReg prometheus.Registerer,
	log *slog.Logger,
	health map[string]httptransport.HealthCheck,
) (*outbox.Relay, func(), error) {
	if err := kafka.EnsureTopic(ctx, brokers, cfg.KafkaTopic, topicPartitions, topicReplication); err != nil {
		log.Warn("could not provision kafka topic; relying on broker auto-create",
			"topic", cfg.KafkaTopic,
			"error", err,
		)
	}
	producer, err := kafka.NewProducer(brokers, "trustscore-outbox")
	if err != nil {
		return nil, nil, err
	}
	health["kafka"] = producer.Health

	relay := outbox.NewRelay(runner, outbox.NewPostgresStore(db), producer, cfg.KafkaTopic,
		outbox.WithBatchSize(cfg.OutboxBatch),
		outbox.WithInterval(cfg.OutboxInterval),
		outbox.WithLogger(log),
		outbox.WithMetrics(outbox.NewMetrics(promReg)),
	)
	return relay, producer.Close, nil
}
