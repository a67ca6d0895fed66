package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/samudra-erp/samudra-erp/internal/accounting/journals"
	"github.com/samudra-erp/samudra-erp/internal/app"
	"github.com/samudra-erp/samudra-erp/internal/job"
	"github.com/samudra-erp/samudra-erp/internal/numbering"
	"github.com/samudra-erp/samudra-erp/internal/platform/db"
	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
	"github.com/samudra-erp/samudra-erp/internal/shared"
	"github.com/samudra-erp/samudra-erp/jobs"
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

	now := time.Now
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

	journalService := journals.NewService(journals.NewRepository(pool), newAllocator("JV"), auditLogger)
	quotationService := quotations.NewService(quotations.NewRepository(pool), newAllocator("FQ"), auditLogger, cfg.QuotationValidDays, now)
	jobService := job.NewService(job.NewRepository(pool), newAllocator("JO"), journalService, auditLogger, now)

	expiryJob := jobs.NewQuotationExpiryJob(quotationService, logger)
	feeJob := jobs.NewFeeGenerationJob(jobService, logger)

	expiryTask, err := jobs.NewQuotationExpireTask(jobs.QuotationExpirePayload{Reason: "scheduled sweep"})
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	feeTask, err := jobs.NewFeePeriodGenerateTask(jobs.FeePeriodGeneratePayload{})
	if err != nil {
		logger.Error("build fee task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuotationExpire, Handler: expiryJob.Handle},
			{Type: jobs.TaskFeePeriodGenerate, Handler: feeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "10 0 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 0 1 * *", Task: feeTask, Options: []asynq.Option{asynq.MaxRetry(5)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
