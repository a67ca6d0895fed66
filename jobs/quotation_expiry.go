package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
)

// QuotationExpiryJob expires sent quotations whose validity date has
// passed.
type QuotationExpiryJob struct {
	Quotations *quotations.Service
	Logger     *slog.Logger
}

// NewQuotationExpiryJob wires dependencies for the expiry handler.
func NewQuotationExpiryJob(svc *quotations.Service, logger *slog.Logger) *QuotationExpiryJob {
	return &QuotationExpiryJob{Quotations: svc, Logger: logger}
}

// Handle processes one expiry sweep.
func (j *QuotationExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotations == nil {
		return errors.New("quotation expiry: handler not configured")
	}
	var payload QuotationExpirePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	expired, err := j.Quotations.ExpireDue(ctx)
	if err != nil {
		j.Logger.Error("quotation expiry sweep", slog.Any("error", err))
		return err
	}
	j.Logger.Info("quotation expiry sweep done", slog.Int("expired", expired))
	return nil
}
