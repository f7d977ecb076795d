package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/example/bloodlink/internal/donor/matching"
	"github.com/example/bloodlink/internal/location"
	"github.com/example/bloodlink/internal/travel/handler"
	travelsvc "github.com/example/bloodlink/internal/travel/service"
	"github.com/example/bloodlink/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("location-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "location-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	// Streamed positions feed the same geo index the donor service
	// widens matches with, when Redis is configured.
	var sink location.Sink
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
			_ = redisClient.Close()
		} else {
			defer redisClient.Close()
			sink = matching.NewRedisGeoIndex(redisClient, "")
		}
	}

	observer := location.NewStreamObserver(sink)
	travelSvc := travelsvc.New(observer)

	go runREST(logger, travelSvc)
	go runGRPC(logger, observer)

	<-ctx.Done()
	logger.Info("shutdown signal received")
}

func runREST(logger *zap.Logger, travelSvc *travelsvc.Service) {
	r := chi.NewRouter()
	r.Mount("/", handler.New(travelSvc).Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{Addr: ":8081", Handler: r, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("travel REST listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("travel rest server", zap.Error(err))
	}
}

func runGRPC(logger *zap.Logger, observer *location.StreamObserver) {
	lis, err := net.Listen("tcp", ":9090")
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	srv := grpc.NewServer()
	location.RegisterDonorLocationServer(srv, location.NewServer(observer))
	logger.Info("donor location grpc listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("grpc serve", zap.Error(err))
	}
}
