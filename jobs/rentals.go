package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/jobs"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/rentals"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// RentalLifecycle is the part of the rental service driven by the worker.
type RentalLifecycle interface {
	CompletePayment(ctx context.Context, id int64, paymentRef string) (rentals.TransitionResult, error)
	CompletePeriod(ctx context.Context, id int64) (rentals.TransitionResult, error)
	Expired(ctx context.Context, limit int) ([]int64, error)
}

// Enqueuer is the subset of *asynq.Client used to fan out sweep results.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RentalJobs handles rental lifecycle tasks.
type RentalJobs struct {
	Rentals   RentalLifecycle
	Queue     Enqueuer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	BatchSize int
}

// Handlers lists the task handlers to register on the worker.
func (j *RentalJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskRentalPaymentCompleted, Handler: j.HandlePaymentCompleted},
		{Type: TaskRentalPeriodEnded, Handler: j.HandlePeriodEnded},
		{Type: TaskRentalSweep, Handler: j.HandleSweep},
	}
}

// HandlePaymentCompleted activates the rental named in the payload.
func (j *RentalJobs) HandlePaymentCompleted(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskRentalPaymentCompleted)
	defer func() { err = tracker.End(err) }()

	var payload PaymentCompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payment payload: %v: %w", err, asynq.SkipRetry)
	}
	res, err := j.Rentals.CompletePayment(ctx, payload.RentalID, payload.PaymentRef)
	if err != nil {
		return j.classify("payment completed", payload.RentalID, err)
	}
	j.logger().Info("rental payment completed",
		slog.Int64("rental_id", payload.RentalID),
		slog.String("payment_ref", payload.PaymentRef),
		slog.Bool("replayed", res.Replayed),
	)
	return nil
}

// HandlePeriodEnded completes the rental named in the payload.
func (j *RentalJobs) HandlePeriodEnded(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskRentalPeriodEnded)
	defer func() { err = tracker.End(err) }()

	var payload PeriodEndedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode period payload: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := j.Rentals.CompletePeriod(ctx, payload.RentalID); err != nil {
		return j.classify("period ended", payload.RentalID, err)
	}
	j.logger().Info("rental completed", slog.Int64("rental_id", payload.RentalID))
	return nil
}

// HandleSweep enqueues completion for every active rental past its end date.
func (j *RentalJobs) HandleSweep(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskRentalSweep)
	defer func() { err = tracker.End(err) }()

	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode sweep payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	limit := payload.BatchSize
	if limit <= 0 {
		limit = j.BatchSize
	}
	ids, err := j.Rentals.Expired(ctx, limit)
	if err != nil {
		return err
	}
	scheduled := 0
	for _, id := range ids {
		task, err := NewPeriodEndedTask(id)
		if err != nil {
			return err
		}
		if _, err := j.Queue.EnqueueContext(ctx, task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			return fmt.Errorf("enqueue period ended for rental %d: %w", id, err)
		}
		scheduled++
	}
	j.Metrics.AddSwept(scheduled)
	j.logger().Info("rental sweep", slog.Int("expired", len(ids)), slog.Int("scheduled", scheduled))
	return nil
}

// classify turns domain refusals into non-retryable failures. Storage faults and
// lost races stay retryable.
func (j *RentalJobs) classify(job string, rentalID int64, err error) error {
	if errors.Is(err, shared.ErrStaleState) {
		return err
	}
	if shared.IsDomainError(err) {
		j.logger().Warn("rental task refused",
			slog.String("job", job),
			slog.Int64("rental_id", rentalID),
			slog.Any("error", err),
		)
		return fmt.Errorf("%s: %w: %w", job, err, asynq.SkipRetry)
	}
	return err
}

func (j *RentalJobs) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

var _ RentalLifecycle = (*rentals.Service)(nil)
