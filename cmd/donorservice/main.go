package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/bloodlink/internal/donor/domain"
	"github.com/example/bloodlink/internal/donor/handler"
	"github.com/example/bloodlink/internal/donor/matching"
	"github.com/example/bloodlink/internal/donor/registry"
	donorservice "github.com/example/bloodlink/internal/donor/service"
	"github.com/example/bloodlink/internal/donor/storage"
	outboxworker "github.com/example/bloodlink/internal/outbox"
	"github.com/example/bloodlink/pkg/observability"
	outboxpkg "github.com/example/bloodlink/pkg/outbox"
)

type appConfig struct {
	HTTPAddr    string
	PostgresDSN string
	RedisAddr   string
	NATSURL     string
	OutboxPoll  time.Duration
	OutboxBatch int
	OutboxRetry int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("donor-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "donor-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("donorservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	reg := registry.NewMemoryRegistry()

	var geoIndex matching.GeoIndex
	var holds matching.HoldStore
	if redisClient != nil {
		geoIndex = matching.NewRedisGeoIndex(redisClient, "")
		holds = matching.NewRedisHoldStore(redisClient, "")
	} else {
		holds = matching.NewMemoryHoldStore()
	}

	var store domain.Store
	if db != nil {
		pg := storage.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("ensure schema", zap.Error(err))
		}
		store = pg
	}

	engine := matching.NewEngine(reg, geoIndex, logger.Named("matching"))
	publisher := outboxpkg.NewPublisher(natsConn, "donor.events")

	svc := donorservice.New(reg, engine, publisher, store, domain.SystemClock{})
	if store != nil {
		n, err := svc.Restore(ctx)
		if err != nil {
			logger.Fatal("restore donors", zap.Error(err))
		}
		logger.Info("restored donors from store", zap.Int("count", n))
	}

	donorHTTP := handler.NewHTTP(svc, holds)

	r := chi.NewRouter()
	r.Mount("/", donorHTTP.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if db != nil && natsConn != nil {
		worker := outboxworker.NewWorker(db, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("outbox worker disabled", zap.Bool("db", db != nil), zap.Bool("nats", natsConn != nil))
	}

	go func() {
		logger.Info("donor service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		PostgresDSN: firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		NATSURL:     os.Getenv("NATS_URL"),
		OutboxPoll:  time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch: parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry: parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
