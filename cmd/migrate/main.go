// Package main applies the platform's embedded SQL migrations against the
// configured Postgres database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/defarm/traceability-core/infrastructure/config"
	"github.com/defarm/traceability-core/infrastructure/logging"
	"github.com/defarm/traceability-core/internal/storage/postgres/migrations"
)

func main() {
	log := logging.NewFromEnv("migrate").Entry()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.WithError(err).Fatal(fmt.Sprintf("ping database at %s", redactDSN(cfg.Database.DSN)))
	}

	if err := migrations.Apply(context.Background(), db); err != nil {
		log.WithError(err).Fatal("apply migrations")
	}
	log.Info("migrations applied")
}

// redactDSN replaces everything before the DSN's first '@' (scheme and
// credentials) with "postgres://***", since it may carry credentials; the
// host, port, database and query after the '@' are kept.
func redactDSN(dsn string) string {
	for i := 0; i < len(dsn); i++ {
		if dsn[i] == '@' {
			return "postgres://***" + dsn[i:]
		}
	}
	return "postgres://***"
}
