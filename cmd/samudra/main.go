package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/samudra-erp/samudra-erp/internal/accounting/journals"
	"github.com/samudra-erp/samudra-erp/internal/app"
	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/billing"
	"github.com/samudra-erp/samudra-erp/internal/fx"
	"github.com/samudra-erp/samudra-erp/internal/job"
	"github.com/samudra-erp/samudra-erp/internal/masterdata/taxes"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/observability"
	"github.com/samudra-erp/samudra-erp/internal/platform/cache"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
	"github.com/samudra-erp/samudra-erp/internal/procurement"
	"github.com/samudra-erp/samudra-erp/internal/projects"
	"github.com/samudra-erp/samudra-erp/internal/sales/orders"
	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
	"github.com/samudra-erp/samudra-erp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{
		MaxConns:        cfg.PGMaxConns,
		MinConns:        cfg.PGMinConns,
		MaxConnLifetime: cfg.PGConnLifetime,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, rate lookups go straight to the database", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	validate := validator.New()
	now := time.Now

	authService := auth.NewService(auth.NewRepository(pool))
	auditLogger := shared.NewAuditLogger(pool)

	seqRepo := numbering.NewRepository(pool)
	newAllocator := func(prefix string) *numbering.Allocator {
		alloc, err := numbering.NewAllocator(seqRepo, numbering.Defaults{
			Prefix: prefix,
			Format: "{prefix}{year:04d}{month:02d}-{seq:05d}",
			Reset:  numbering.ResetMonthly,
		})
		if err != nil {
			logger.Error("init allocator", slog.String("prefix", prefix), slog.Any("error", err))
			os.Exit(1)
		}
		return alloc
	}

	fxRepo := fx.NewRepository(pool)
	fxResolver := fx.NewResolver(fxRepo, redisClient, cfg.FXCacheTTL)
	fxHandler := fx.NewHandler(logger, fxRepo, fxResolver, validate)

	taxRepo := taxes.NewRepository(pool)
	taxHandler := taxes.NewHandler(logger, taxRepo)

	journalService := journals.NewService(journals.NewRepository(pool), newAllocator("JV"), auditLogger)
	journalHandler := journals.NewHandler(logger, journalService)

	quotationService := quotations.NewService(quotations.NewRepository(pool), newAllocator("FQ"), auditLogger, cfg.QuotationValidDays, now)
	quotationHandler := quotations.NewHandler(logger, quotationService, validate)

	orderService := orders.NewService(orders.NewRepository(pool), quotationService, newAllocator("SO"), auditLogger, now)
	orderHandler := orders.NewHandler(logger, orderService)

	procurementService := procurement.NewService(procurement.NewRepository(pool), newAllocator("PO"), auditLogger, now)
	procurementHandler := procurement.NewHandler(logger, procurementService, validate)

	projectService := projects.NewService(projects.NewRepository(pool), newAllocator("PJ"), auditLogger, now)
	projectHandler := projects.NewHandler(logger, projectService, validate)

	jobService := job.NewService(job.NewRepository(pool), newAllocator("JO"), journalService, auditLogger, now)
	jobHandler := job.NewHandler(logger, jobService, validate)

	billingCalc := billing.NewCalculator(fxResolver)
	billingService := billing.NewService(billing.NewRepository(pool), taxRepo, billingCalc, newAllocator("INV"), journalService, auditLogger, now)
	billingHandler := billing.NewHandler(logger, billingService, validate)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Auth:               authService,
		QuotationHandler:   quotationHandler,
		OrderHandler:       orderHandler,
		ProcurementHandler: procurementHandler,
		ProjectHandler:     projectHandler,
		JobHandler:         jobHandler,
		BillingHandler:     billingHandler,
		JournalHandler:     journalHandler,
		FXHandler:          fxHandler,
		TaxHandler:         taxHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
