package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskDeliver relays one event to the pub/sub channel.
	TaskDeliver = "notify:deliver"
	// QueueName is the asynq queue used for deliveries.
	QueueName = "notifications"
)

// Enqueuer is the subset of *asynq.Client used by QueueEmitter.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewDeliverTask wraps ev into an asynq task. The event id doubles as the task
// id so duplicate emits collapse in the queue.
func NewDeliverTask(ev Event) (*asynq.Task, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliver, body,
		asynq.Queue(QueueName),
		asynq.TaskID(ev.ID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// QueueEmitter hands events to the worker through asynq.
type QueueEmitter struct {
	client Enqueuer
}

// NewQueueEmitter constructs the emitter.
func NewQueueEmitter(client Enqueuer) *QueueEmitter {
	return &QueueEmitter{client: client}
}

// Emit implements Emitter.
func (q *QueueEmitter) Emit(ctx context.Context, ev Event) error {
	if q == nil || q.client == nil {
		return nil
	}
	task, err := NewDeliverTask(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("notify: enqueue %s: %w", ev.Type, err)
	}
	return nil
}
