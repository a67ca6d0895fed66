// Package jobs runs the background work the document engine defers:
// quotation expiry sweeps and monthly sales fee generation.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// QueueDefault is the asynq queue every task runs on.
const QueueDefault = "default"

// Task types.
const (
	TaskQuotationExpire   = "quotation:expire"
	TaskFeePeriodGenerate = "fees:generate_period"
)

// QuotationExpirePayload parameterizes an expiry sweep. Empty payload
// sweeps everything due now.
type QuotationExpirePayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewQuotationExpireTask builds the expiry sweep task.
func NewQuotationExpireTask(payload QuotationExpirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpire, data), nil
}

// FeePeriodGeneratePayload names the period to generate. Zero Year and
// Month mean the previous calendar month at execution time.
type FeePeriodGeneratePayload struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// NewFeePeriodGenerateTask builds the fee generation task.
func NewFeePeriodGenerateTask(payload FeePeriodGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeePeriodGenerate, data), nil
}
