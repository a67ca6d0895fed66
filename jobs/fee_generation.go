package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/job"
)

// FeeGenerationJob regenerates the sales fee period for a month. The
// scheduler fires it on the first day of each month for the month just
// closed; an approved period is left untouched.
type FeeGenerationJob struct {
	Jobs   *job.Service
	Logger *slog.Logger
	clock  func() time.Time
}

// NewFeeGenerationJob wires dependencies for the fee generation handler.
func NewFeeGenerationJob(svc *job.Service, logger *slog.Logger) *FeeGenerationJob {
	return &FeeGenerationJob{
		Jobs:   svc,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// systemActor runs scheduled generation with full rights; the approval
// step still requires a human actor through the API.
func systemActor() *auth.User {
	return &auth.User{ID: 0, Name: "system", IsActive: true, Superuser: true}
}

// Handle processes one fee generation task.
func (j *FeeGenerationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Jobs == nil {
		return errors.New("fee generation: handler not configured")
	}
	var payload FeePeriodGeneratePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	year, month := payload.Year, time.Month(payload.Month)
	if year == 0 || payload.Month == 0 {
		prev := j.clock().AddDate(0, -1, 0)
		year, month = prev.Year(), prev.Month()
	}
	if month < time.January || month > time.December {
		return asynq.SkipRetry
	}

	period, err := j.Jobs.GenerateFeePeriod(ctx, year, month, systemActor())
	if err != nil {
		if errors.Is(err, job.ErrFeePeriodFrozen) {
			j.Logger.Info("fee period already approved, skipping",
				slog.Int("year", year), slog.Int("month", int(month)))
			return nil
		}
		j.Logger.Error("fee period generation",
			slog.Int("year", year), slog.Int("month", int(month)), slog.Any("error", err))
		return err
	}
	j.Logger.Info("fee period generated",
		slog.Int("year", year), slog.Int("month", int(month)),
		slog.Int("lines", len(period.Lines)),
		slog.String("total", period.Total.StringFixed(2)))
	return nil
}
