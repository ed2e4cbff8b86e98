package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mindcare/booking-core/internal/auth"
	"github.com/mindcare/booking-core/internal/cache"
	"github.com/mindcare/booking-core/internal/config"
	"github.com/mindcare/booking-core/internal/db"
	"github.com/mindcare/booking-core/internal/grpcapi"
	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/meeting"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
	"github.com/mindcare/booking-core/internal/service"
	"github.com/mindcare/booking-core/internal/transport/httpapi"
)

func main() {
	if err := run(); err != nil {
		slog.Error("booking core stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Конфиг из env (+ .env, если есть).
	config.LoadEnvFile()
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, appCfg.LogLevel)
	slog.SetDefault(logger)

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		return err
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// 3. Кэш календаря.
	var calendarCache cache.Cache = cache.NewNoop()
	if appCfg.RedisURL != "" {
		rc, err := cache.NewRedisFromURL(appCfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn("redis unavailable, calendar cache errors will be ignored", "error", err)
		}
		cancel()
		calendarCache = rc
	}

	// 4. Провайдер встреч.
	var meetings meeting.Provisioner
	switch appCfg.MeetingProvider {
	case config.MeetingsZoom:
		zc, err := meeting.NewZoomClient(meeting.ZoomConfig{
			AccountID:    appCfg.ZoomAccountID,
			ClientID:     appCfg.ZoomClientID,
			ClientSecret: appCfg.ZoomClientSecret,
			Timezone:     appCfg.Timezone,
		})
		if err != nil {
			return err
		}
		meetings = zc
	case config.MeetingsDisabled:
		meetings = meeting.Disabled{}
	default:
		meetings = meeting.NewMock()
	}

	// 5. Сервисы.
	store := repository.NewStore(gormDB)
	cc := service.NewCalendarCache(calendarCache, appCfg.CacheTTL, logger)
	calendars := service.NewCalendarService(store, cc, logger)

	router := httpapi.NewRouter(httpapi.Config{
		Tokens:         auth.NewVerifier(appCfg.JWTSecret, appCfg.JWTIssuer),
		Actors:         service.NewIdentityService(store),
		Logger:         logger,
		Timeout:        appCfg.RequestTimeout,
		BookingLimiter: httpapi.NewRateLimiter(appCfg.BookingRateLimit, appCfg.BookingRateWindow),
		Health:         sqlDB.PingContext,
		Availability:   service.NewAvailabilityService(store, cc, logger),
		Exceptions:     service.NewExceptionService(store, cc, logger),
		Calendars:      calendars,
		Appointments:   service.NewAppointmentService(store, meetings, appCfg.Location(), logger),
	})

	// 6. HTTP и gRPC.
	httpServer := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer, grpcHealth := grpcapi.NewServer(grpcapi.Config{Logger: logger, Calendars: calendars})

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", appCfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc server listening", "addr", appCfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// 7. Грейсфул-шатдаун по сигналу.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	logger.Info("shutting down")
	grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	return nil
}
