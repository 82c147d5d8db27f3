// Package main runs the ledger indexer binary: it polls every configured
// network for IPCM anchor events and ingests them into the timeline store.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/defarm/traceability-core/infrastructure/config"
	"github.com/defarm/traceability-core/infrastructure/logging"
	"github.com/defarm/traceability-core/infrastructure/metrics"
	"github.com/defarm/traceability-core/internal/domain/ledgerindexer"
	"github.com/defarm/traceability-core/internal/storage/postgres"
	"github.com/defarm/traceability-core/internal/storage/postgres/migrations"
)

func main() {
	log := logging.NewFromEnv("ledger-indexer").Entry()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		log.WithError(err).Fatal("apply migrations")
	}

	store := postgres.New(db)
	m := metrics.New("ledger-indexer", "1.0.0")

	syncerCfg := ledgerindexer.Config{Networks: toIndexerNetworks(cfg.Networks)}
	syncer, err := ledgerindexer.NewSyncer(syncerCfg, store)
	if err != nil {
		log.WithError(err).Fatal("build ledger indexer")
	}
	syncer.WithMetrics(m)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := syncer.Start(runCtx); err != nil {
		log.WithError(err).Fatal("start ledger indexer")
	}

	metricsAddr := ":" + envOr("METRICS_PORT", "9102")
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", metricsAddr).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down ledger indexer")
	syncer.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics server shutdown")
	}
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func toIndexerNetworks(networks []config.NetworkConfig) []ledgerindexer.NetworkConfig {
	out := make([]ledgerindexer.NetworkConfig, 0, len(networks))
	for _, n := range networks {
		out = append(out, ledgerindexer.NetworkConfig{
			Network:         n.Name,
			ContractAddress: n.ContractAddress,
			PollInterval:    time.Duration(n.PollIntervalSecs) * time.Second,
			BatchSize:       int64(n.BatchSize),
			RPCURLs:         n.RPCEndpoints,
		})
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
