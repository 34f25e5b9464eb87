package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskRentalPaymentCompleted activates a rental after its payment cleared.
	TaskRentalPaymentCompleted = "rental:payment_completed"
	// TaskRentalPeriodEnded completes one active rental.
	TaskRentalPeriodEnded = "rental:period_ended"
	// TaskRentalSweep finds active rentals past their end date.
	TaskRentalSweep = "rental:sweep"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// PaymentCompletedPayload is raised by the payment callback.
type PaymentCompletedPayload struct {
	RentalID   int64  `json:"rental_id"`
	PaymentRef string `json:"payment_ref"`
}

// PeriodEndedPayload identifies the rental to complete.
type PeriodEndedPayload struct {
	RentalID int64 `json:"rental_id"`
}

// SweepPayload carries scheduling metadata.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	BatchSize    int       `json:"batch_size,omitempty"`
}

// CleanupPayload configures idempotency retention.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewPaymentCompletedTask constructs the task. The payment reference doubles as
// the task id so duplicate callbacks collapse in the queue.
func NewPaymentCompletedTask(payload PaymentCompletedPayload) (*asynq.Task, error) {
	if payload.RentalID <= 0 || payload.PaymentRef == "" {
		return nil, fmt.Errorf("jobs: rental id and payment reference required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRentalPaymentCompleted, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID("payment:"+payload.PaymentRef),
		asynq.MaxRetry(10),
	), nil
}

// NewPeriodEndedTask constructs the task for one rental.
func NewPeriodEndedTask(rentalID int64) (*asynq.Task, error) {
	if rentalID <= 0 {
		return nil, fmt.Errorf("jobs: rental id required")
	}
	body, err := json.Marshal(PeriodEndedPayload{RentalID: rentalID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRentalPeriodEnded, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("period:%d", rentalID)),
		asynq.MaxRetry(5),
	), nil
}

// NewSweepTask constructs the cron sweep task.
func NewSweepTask(batchSize int) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: time.Now().UTC(), BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRentalSweep, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// NewCleanupTask constructs the idempotency cleanup task.
func NewCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
