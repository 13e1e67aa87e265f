package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/commerce-pricing/internal/domain/adjustment"
	"github.com/xenking/commerce-pricing/internal/domain/order"
	"github.com/xenking/commerce-pricing/internal/domain/pricing"
	"github.com/xenking/commerce-pricing/internal/handler"
	"github.com/xenking/commerce-pricing/internal/processor"
	"github.com/xenking/commerce-pricing/internal/storage/postgres"
	"github.com/xenking/commerce-pricing/pkg/health"
	"github.com/xenking/commerce-pricing/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.SetReady(true)

	// Adjustment vocabulary and normalization pipeline.
	registry := adjustment.DefaultRegistry()
	transformer := adjustment.NewTransformer(registry)

	// Repositories. The catalog doubles as the base price resolver.
	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool, registry)
	resolver := pricing.NewChainResolver(catalogRepo)

	// Processor registrations shared by refresh and quote calculation.
	var registrations []order.Registration
	surchargeRate, err := cfg.SurchargeRate()
	if err != nil {
		return err
	}
	if !surchargeRate.IsZero() {
		registrations = append(registrations, order.Registration{
			Name:      "surcharge",
			Priority:  20,
			Types:     []string{"fee"},
			Processor: processor.NewSurcharge(registry, cfg.Surcharge.Label, "surcharge", surchargeRate),
		})
	}

	refreshSvc := order.NewRefreshService(orderRepo, resolver, transformer, registrations,
		map[string]order.RefreshPolicy{
			cfg.DefaultOrderType: {
				Frequency:    cfg.Refresh.Frequency,
				CustomerOnly: cfg.Refresh.CustomerOnly,
			},
		}, lg)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			DefaultCurrency:  cfg.DefaultCurrency,
			DefaultOrderType: cfg.DefaultOrderType,
		},
		orderRepo,
		refreshSvc,
		resolver,
		transformer,
		registrations,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	instrumented := otelhttp.NewHandler(mux, "pricing-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
