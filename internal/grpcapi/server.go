package grpcapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/service"
)

type Config struct {
	Logger    *slog.Logger
	Calendars *service.CalendarService
}

// NewServer собирает gRPC-сервер: health, reflection и проверку слотов.
// Статус health переключает вызывающий код.
func NewServer(cfg Config) (*grpc.Server, *health.Server) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	registerAvailability(srv, &availabilityServer{calendars: cfg.Calendars})
	hs.SetServingStatus(availabilityServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return srv, hs
}

func unaryLogger(base *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		logger := base.With("method", info.FullMethod)
		resp, err := handler(logging.ContextWithLogger(ctx, logger), req)

		code := status.Code(err)
		attrs := []any{"code", code.String(), "duration_ms", time.Since(start).Milliseconds()}
		if code == codes.Internal || code == codes.Unknown {
			logger.ErrorContext(ctx, "grpc call failed", append(attrs, "error", err)...)
		} else {
			logger.InfoContext(ctx, "grpc call", attrs...)
		}
		return resp, err
	}
}
