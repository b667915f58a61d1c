// Package app wires the register core together and runs the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/mock-register/internal/checkout"
	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/discount"
	"github.com/xenking/mock-register/internal/domain/popularity"
	"github.com/xenking/mock-register/internal/handler"
	"github.com/xenking/mock-register/internal/pricebook"
	"github.com/xenking/mock-register/internal/repository"
	"github.com/xenking/mock-register/internal/scanner"
	"github.com/xenking/mock-register/pkg/health"
	"github.com/xenking/mock-register/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	taxRate, err := cfg.ParsedTaxRate()
	if err != nil {
		return errors.Wrap(err, "parse tax rate")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	priceBookRepo := repository.NewPriceBookRepository(pool)
	heldRepo := repository.NewHeldOrderRepository(pool)
	salesRepo := repository.NewSalesRepository(pool)

	// Bloom guard in front of the price book: stray scan bursts resolve
	// to "unknown code" without a database round trip.
	codes, err := priceBookRepo.Codes(ctx)
	if err != nil {
		return errors.Wrap(err, "load price book codes")
	}
	book := pricebook.NewGuard(priceBookRepo, codes)
	lg.Info("Price book loaded", zap.Int("codes", len(codes)))

	// Core components.
	ledger := cart.NewLedger(book, heldRepo, salesRepo, taxRate)
	ranker := popularity.NewRanker(salesRepo, book, cfg.Shortcuts.Slots)
	if err := ranker.Refresh(ctx); err != nil {
		lg.Warn("Initial shortcut refresh failed", zap.Error(err))
	}
	negotiator := discount.NewClient(cfg.Discount.URL, cfg.Discount.Timeout)
	checkoutSvc := checkout.NewService(ledger, negotiator, ranker, taxRate)

	h := handler.NewHandler(ledger, checkoutSvc, ranker, heldRepo, salesRepo)
	classifier := scanner.New(scanner.Config{
		FastGap:          cfg.Scanner.FastGap,
		InactivityCommit: cfg.Scanner.InactivityCommit,
		MinLen:           cfg.Scanner.MinLen,
		MaxLen:           cfg.Scanner.MaxLen,
	}, func(code string) {
		// Committed scans flow into the ledger; unknown codes are logged
		// and leave the cart untouched.
		if _, err := ledger.AddItem(zctx.Base(context.Background(), lg), code); err != nil {
			lg.Info("Scan rejected", zap.String("code", code), zap.Error(err))
		}
	}, h.NotifyRedraw)
	h.SetClassifier(classifier)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("discount-service", 5*time.Second,
		health.HTTPReachableCheck(nil, cfg.Discount.URL))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("register-api", m),
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
