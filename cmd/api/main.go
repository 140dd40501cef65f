package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dealmatch/groupbuy/services/api/internal/app"
	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/config"
	"github.com/dealmatch/groupbuy/services/api/internal/platform/kafka"
	"github.com/dealmatch/groupbuy/services/api/internal/platform/observability"
	"github.com/dealmatch/groupbuy/services/api/internal/platform/payment"
	"github.com/dealmatch/groupbuy/services/api/internal/refund"
	"github.com/dealmatch/groupbuy/services/api/internal/storage/bolt"
	"github.com/dealmatch/groupbuy/services/api/internal/storage/postgres"
	transporthttp "github.com/dealmatch/groupbuy/services/api/internal/transport/http"
	"github.com/dealmatch/groupbuy/services/api/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envPath, envErr := config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("info").Fatal("load config", zap.Error(err))
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", zap.Error(envErr))
	case envPath == "":
		logger.Warn(".env not found in current or parent directories")
	default:
		logger.Info("loaded env", zap.String("path", envPath))
	}
	for _, key := range cfg.Defaulted {
		logger.Warn("variable not set, using default", zap.String("key", key))
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(startupCtx, observability.TracingConfig{
		Endpoint:   cfg.OtelEndpoint,
		AuthHeader: cfg.OtelAuthHeader,
	})
	if err != nil {
		logger.Error("failed to set up tracing", zap.Error(err))
	}

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", zap.Strings("files", applied))
	}

	calendar, err := bolt.Open(cfg.CalendarPath)
	if err != nil {
		logger.Fatal("open calendar", zap.Error(err))
	}
	defer calendar.Close()

	wt, err := clock.NewWorkingTime(clock.WorkingHours{
		Location: cfg.BusinessLocation,
		Start:    cfg.BusinessStart,
		End:      cfg.BusinessEnd,
		Weekend:  []time.Weekday{time.Saturday, time.Sunday},
		Calendar: calendar,
	})
	if err != nil {
		logger.Fatal("working hours", zap.Error(err))
	}

	var publisher app.EventPublisher
	if cfg.KafkaBroker != "" {
		p := kafka.NewPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("close kafka publisher", zap.Error(err))
			}
		}()
		publisher = p
	} else {
		logger.Warn("KAFKA_BROKER not set, events are not published")
	}

	clk := clock.NewSystem()
	gateway := payment.NewSandbox(logger.Named("payment"))
	points := postgres.NewPointsRepository(pool)
	ledger := app.NewInventoryLedger(postgres.NewOfferRepository(pool))

	resOpts := []app.ReservationServiceOption{
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithCoolingDays(cfg.CoolingDays),
		app.WithPointRates(cfg.BuyerPointsPerQty, cfg.SellerPointsPerQty),
		app.WithPaymentGateway(gateway),
		app.WithPointsLedger(points),
		app.WithLogger(logger.Named("reservations")),
	}
	refundOpts := []app.RefundServiceOption{
		app.WithRefundCoolingDays(cfg.CoolingDays),
		app.WithFeeRates(refund.FeeRates{PG: cfg.PGFeeRate, Platform: cfg.PlatformFeeRate}),
		app.WithRefundPointRates(cfg.BuyerPointsPerQty, cfg.SellerPointsPerQty),
		app.WithRefundGateway(gateway),
		app.WithRefundPoints(points),
		app.WithRefundLogger(logger.Named("refunds")),
	}
	if publisher != nil {
		resOpts = append(resOpts, app.WithEventPublisher(publisher))
		refundOpts = append(refundOpts, app.WithRefundPublisher(publisher))
	}

	// The sweeper needs the service and the service wakes the sweeper, so
	// the notifier is bound through a closure.
	var sweeper *app.ExpirySweeper
	resOpts = append(resOpts, app.WithExpiryNotifier(func() { sweeper.Wake() }))
	reservations := app.NewReservationService(postgres.NewReservationRepository(pool), ledger, clk, wt, resOpts...)
	sweeper = app.NewExpirySweeper(reservations, clk,
		app.WithSweepBackoff(cfg.SweepBackoff),
		app.WithSweepLogger(logger.Named("sweeper")),
	)
	refunds := app.NewRefundService(postgres.NewRefundRepository(pool), ledger, clk, refundOpts...)
	admin := app.NewAdminService(postgres.NewAdminRepository(pool), calendar, clk)

	router := transporthttp.NewRouter(transporthttp.Services{
		Reservations: reservations,
		Refunds:      refunds,
		Inventory:    ledger,
		Sweeper:      sweeper,
		Admin:        admin,
		Health:       pool,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: transporthttp.RequestLogger(router, logger.Named("http")),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(stopCtx)
	}()

	logger.Info("api listening", zap.String("port", cfg.Port))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
		stop()
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	<-sweepDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}
