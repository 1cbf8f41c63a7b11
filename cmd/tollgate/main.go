// Command tollgate runs the API marketplace gateway: a reverse proxy that
// injects stored upstream credentials and gates paid endpoints behind
// x402 per-request payments.
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

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/xraph/go-utils/metrics"

	tollgate "github.com/tollgate/tollgate"
	"github.com/tollgate/tollgate/api"
	"github.com/tollgate/tollgate/observability"
	"github.com/tollgate/tollgate/payment"
	"github.com/tollgate/tollgate/store"
	"github.com/tollgate/tollgate/store/bunstore"
	"github.com/tollgate/tollgate/store/memory"
	storeredis "github.com/tollgate/tollgate/store/redis"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	facilitatorURL := os.Getenv("FACILITATOR_URL")
	if facilitatorURL == "" {
		return errors.New("FACILITATOR_URL is required")
	}

	facilitator, err := payment.NewHTTPFacilitator(facilitatorURL, 30*time.Second)
	if err != nil {
		return err
	}

	st, err := openStore(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	opts := []tollgate.Option{
		tollgate.WithStore(st),
		tollgate.WithFacilitator(facilitator),
		tollgate.WithLogger(logger),
		tollgate.WithMetrics(observability.NewMetrics(metrics.NewMetricsCollector("tollgate"))),
		tollgate.WithTracer(observability.NewTracer()),
	}
	if network := os.Getenv("NETWORK"); network != "" {
		opts = append(opts, tollgate.WithNetwork(network))
	}

	gw, err := tollgate.New(opts...)
	if err != nil {
		return err
	}

	gw.Start(ctx)
	defer gw.Stop(ctx)

	srv := &http.Server{
		Addr:              ":" + envOrDefault("PORT", "8080"),
		Handler:           api.NewHandler(gw, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", srv.Addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errChan:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore picks the persistence backend from the environment: Postgres via
// DATABASE_URL, Redis via REDIS_URL, in-memory otherwise.
func openStore(logger *slog.Logger) (store.Store, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db := bun.NewDB(sqldb, pgdialect.New())
		logger.Info("using postgres store")
		return bunstore.New(db), nil
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisOpts, err := goredis.ParseURL(redisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis store")
		return storeredis.New(goredis.NewClient(redisOpts)), nil
	}

	logger.Warn("no DATABASE_URL or REDIS_URL set, using in-memory store")
	return memory.New(), nil
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
