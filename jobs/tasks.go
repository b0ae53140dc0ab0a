package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceiptRender renders a receipt PDF for a confirmed payment.
	TaskReceiptRender = "receipt:render"
	// TaskSlipVerification verifies an uploaded transfer slip.
	TaskSlipVerification = "payment:verify-slip"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

// PaymentTaskPayload identifies the payment a task operates on.
type PaymentTaskPayload struct {
	PaymentID int64 `json:"payment_id"`
}

// NewReceiptRenderTask constructs a receipt render task.
func NewReceiptRenderTask(paymentID int64) (*asynq.Task, error) {
	data, err := json.Marshal(PaymentTaskPayload{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptRender, data, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// NewSlipVerificationTask constructs a slip verification task.
func NewSlipVerificationTask(paymentID int64) (*asynq.Task, error) {
	data, err := json.Marshal(PaymentTaskPayload{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSlipVerification, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task, registered on a
// cron schedule.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// Client submits jobs to the queue. It satisfies the payment service's
// Enqueuer.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueReceiptRender queues a receipt render for the payment.
func (c *Client) EnqueueReceiptRender(ctx context.Context, paymentID int64) error {
	task, err := NewReceiptRenderTask(paymentID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// EnqueueSlipVerification queues a slip verification for the payment.
func (c *Client) EnqueueSlipVerification(ctx context.Context, paymentID int64) error {
	task, err := NewSlipVerificationTask(paymentID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
