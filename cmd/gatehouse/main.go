// Command gatehouse runs the auth service: HTTP API, PostgreSQL credential
// store, and Redis session state.
//
// Usage:
//
//	gatehouse [-migrate] [-seed]
//
// -migrate applies the schema and -seed inserts the base roles and
// permissions before serving. Both are idempotent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-labs/gatehouse"
	"github.com/gatehouse-labs/gatehouse/cache"
	"github.com/gatehouse-labs/gatehouse/httpapi"
	"github.com/gatehouse-labs/gatehouse/metrics"
	"github.com/gatehouse-labs/gatehouse/middleware"
	"github.com/gatehouse-labs/gatehouse/store"
	"github.com/gatehouse-labs/gatehouse/token"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the database schema before serving")
	seed := flag.Bool("seed", false, "seed base roles and permissions before serving")
	flag.Parse()

	if err := run(*migrate, *seed); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(migrate, seed bool) error {
	cfg, err := gatehouse.LoadConfig()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := store.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema migrated")
	}
	if seed {
		if err := store.Seed(ctx, db); err != nil {
			return err
		}
		log.Info("roles and permissions seeded")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	sessions := cache.New(rdb, cache.Config{
		Prefix:       cfg.RedisKeyPrefix,
		BlacklistCap: cfg.BlacklistCap(),
		OTPTTL:       cfg.OTPTTL(),
	})
	if err := sessions.Ping(ctx); err != nil {
		return err
	}

	codec, err := token.NewCodec(cfg.TokenConfig())
	if err != nil {
		return err
	}

	m := metrics.New()
	engine, err := gatehouse.New(gatehouse.Deps{
		Users:    store.NewUsers(db),
		Roles:    store.NewRoles(db),
		Sessions: sessions,
		Codec:    codec,
		Metrics:  m,
		Logger:   log,
	}, cfg.BlacklistCap())
	if err != nil {
		return err
	}

	api := httpapi.New(httpapi.Options{
		Engine:      engine,
		Limiter:     sessions,
		Metrics:     m,
		Logger:      log,
		DBPinger:    httpapi.PingerFunc(db.PingContext),
		CachePinger: sessions,
		WebRateLimit: middleware.RateLimitConfig{
			Bucket: "web",
			Max:    int64(cfg.RateLimitWebMax),
			Window: time.Duration(cfg.RateLimitWebWindowMS) * time.Millisecond,
		},
		MobileRateLimit: middleware.RateLimitConfig{
			Bucket: "mobile",
			Max:    int64(cfg.RateLimitMobileMax),
			Window: time.Duration(cfg.RateLimitMobileWindowMS) * time.Millisecond,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
