// Package worker implements background delivery of broadcast messages over Asynq.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"ratebot/internal/bot"
	"ratebot/internal/metrics"
)

// TaskTypeDeliverBroadcast is the Asynq task type for one broadcast message to one subscriber.
const TaskTypeDeliverBroadcast = "broadcast:deliver"

// DeliveryPayload is the payload of a broadcast delivery task.
type DeliveryPayload struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// TextSender delivers a text message to a chat.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// NewDeliveryHandler returns a function to handle broadcast delivery tasks.
func NewDeliveryHandler(sender TextSender, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload DeliveryPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}

		err := sender.SendText(ctx, payload.UserID, payload.Text)
		switch {
		case errors.Is(err, bot.ErrChatUnavailable):
			metrics.BroadcastDeliveriesTotal.WithLabelValues("unreachable").Inc()
			logger.Warnw("Subscriber unreachable, dropping delivery", "user_id", payload.UserID, "error", err)
			return fmt.Errorf("deliver to %d: %w", payload.UserID, asynq.SkipRetry)
		case err != nil:
			metrics.BroadcastDeliveriesTotal.WithLabelValues(metrics.OutcomeError).Inc()
			logger.Errorw("Delivery failed", "user_id", payload.UserID, "error", err)
			return err
		}

		metrics.BroadcastDeliveriesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
		logger.Infow("Delivery completed", "user_id", payload.UserID)
		return nil
	}
}

// TaskEnqueuer is the part of asynq.Client used by AsynqEnqueuer.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqEnqueuer enqueues delivery tasks with fixed retry and timeout settings.
type AsynqEnqueuer struct {
	client   TaskEnqueuer
	maxRetry int
	timeout  time.Duration
}

// NewAsynqEnqueuer creates a new AsynqEnqueuer with the given client, retry limit, and task timeout duration.
func NewAsynqEnqueuer(client TaskEnqueuer, maxRetry int, timeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

// EnqueueDelivery enqueues one broadcast message for one subscriber.
func (e *AsynqEnqueuer) EnqueueDelivery(ctx context.Context, payload DeliveryPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDeliverBroadcast, data,
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)

	_, err = e.client.EnqueueContext(ctx, task)
	return err
}
