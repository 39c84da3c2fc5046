// Command server wires the name registry: stores, balance oracle, event
// publishers, and the HTTP surface. Business logic lives in
// internal/registry; main keeps to lifecycle and dependency wiring.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"namereg/internal/oracle"
	"namereg/internal/platform/config"
	"namereg/internal/platform/httpserver"
	"namereg/internal/platform/logger"
	"namereg/internal/platform/metrics"
	"namereg/internal/platform/middleware"
	platformredis "namereg/internal/platform/redis"
	"namereg/internal/registry/events"
	"namereg/internal/registry/handler"
	"namereg/internal/registry/service"
	"namereg/internal/registry/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Registry.Validate(); err != nil {
		log.Error("invalid registry construction params", "error", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	m := metrics.New()

	records, params, tx, cleanupDB, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("store setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupDB()

	balances, cleanupRedis, err := buildOracle(cfg, log)
	if err != nil {
		log.Error("oracle setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupRedis()

	publisher, cleanupKafka, err := buildPublisher(ctx, cfg, log)
	if err != nil {
		log.Error("publisher setup failed", "error", err.Error())
		os.Exit(1)
	}
	defer cleanupKafka()

	svc := service.New(records, params, tx, balances,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithPublisher(publisher),
	)

	router := chi.NewRouter()
	handler.New(svc, log, m, middleware.NewJWTValidator(cfg.JWTSigningKey)).Register(router)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting namereg", "addr", cfg.Addr, "label", cfg.Registry.Label)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	}
}

func buildStores(ctx context.Context, cfg config.Config) (store.RecordStore, store.ParamsStore, store.Tx, func(), error) {
	if cfg.PostgresURL == "" {
		mem := store.NewMemory(&cfg.Registry)
		return mem, mem, store.NewMemoryTx(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.PostgresURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}

	pg := store.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}
	if err := pg.SeedParams(ctx, &cfg.Registry); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}
	return pg, pg, store.NewSQLTx(db), func() { _ = db.Close() }, nil
}

func buildOracle(cfg config.Config, log *slog.Logger) (oracle.BalanceOracle, func(), error) {
	if cfg.OracleURL == "" {
		log.Warn("no balance oracle configured; all balances read as zero")
		return oracle.NewStatic(nil), func() {}, nil
	}

	var balances oracle.BalanceOracle = oracle.NewHTTPClient(cfg.OracleURL, cfg.Registry.TokenAddress)

	client, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return balances, func() {}, nil
	}
	return oracle.NewCached(balances, client.Client, cfg.OracleCacheTTL),
		func() { _ = client.Close() }, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, log *slog.Logger) (events.Publisher, func(), error) {
	pubs := events.MultiPublisher{events.NewLogPublisher(log)}
	if len(cfg.KafkaBrokers) == 0 {
		return pubs, func() {}, nil
	}

	kafka, err := events.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	return append(pubs, kafka), kafka.Close, nil
}
