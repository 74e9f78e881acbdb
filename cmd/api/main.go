package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/minelance/minelance-backend/api/routes"
	"github.com/minelance/minelance-backend/internal/notifications"
	"github.com/minelance/minelance-backend/internal/offers"
	"github.com/minelance/minelance-backend/internal/orders"
	"github.com/minelance/minelance-backend/internal/payments"
	"github.com/minelance/minelance-backend/internal/reports"
	"github.com/minelance/minelance-backend/internal/reviews"
	"github.com/minelance/minelance-backend/internal/users"
	"github.com/minelance/minelance-backend/pkg/config"
	"github.com/minelance/minelance-backend/pkg/db"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/metrics"
	"github.com/minelance/minelance-backend/pkg/migrate"
	"github.com/minelance/minelance-backend/pkg/redis"
)

const (
	paymentGuardScope = "payments-webhook"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	workflowMetrics := metrics.NewWorkflowMetrics(registry)

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	offersRepo := offers.NewRepository(conn)
	paymentsRepo := payments.NewRepository(conn)
	reportsRepo := reports.NewRepository(conn)
	reviewsRepo := reviews.NewRepository(conn)
	notificationsRepo := notifications.NewRepository(conn)

	emitter, err := notifications.NewEmitter(notificationsRepo, logg,
		notifications.WithPublisher(redisClient),
		notifications.WithMetrics(workflowMetrics),
	)
	requireService(logg, "notification emitter", err)

	notificationsService, err := notifications.NewService(notificationsRepo)
	requireService(logg, "notifications service", err)
	ordersService, err := orders.NewService(ordersRepo, emitter, logg, workflowMetrics)
	requireService(logg, "orders service", err)
	offersService, err := offers.NewService(offersRepo, ordersRepo, dbClient, emitter, logg, workflowMetrics)
	requireService(logg, "offers service", err)
	paymentsService, err := payments.NewService(paymentsRepo, ordersRepo, offersRepo, dbClient, emitter, logg, workflowMetrics)
	requireService(logg, "payments service", err)
	paymentGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Payment.IdempotencyTTL, paymentGuardScope)
	requireService(logg, "payment idempotency guard", err)
	reportsService, err := reports.NewService(reportsRepo, usersRepo, ordersRepo, dbClient, emitter, logg, workflowMetrics)
	requireService(logg, "reports service", err)
	reviewsService, err := reviews.NewService(reviewsRepo, ordersRepo, offersRepo, dbClient, emitter, logg, workflowMetrics)
	requireService(logg, "reviews service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			registry,
			dbClient,
			redisClient,
			usersRepo,
			ordersService,
			offersService,
			paymentsService,
			paymentGuard,
			reportsService,
			reviewsService,
			notificationsService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
		exitCode = 1
	}

	emitter.Wait()
	if err := multierr.Combine(dbClient.Close(), redisClient.Close()); err != nil {
		logg.Error(ctx, "error closing resources", err)
		exitCode = 1
	}

	logg.Info(ctx, "api server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
