package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/helioworks/support-ai-platform/pkg/logging"
)

type sqsReceiveAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Handler processes one delivered event. A returned error leaves the
// message on the queue for redelivery.
type Handler func(ctx context.Context, evt Event) error

// Consumer long-polls an SQS queue for session lifecycle events and hands
// each one to a handler. Malformed bodies are deleted and logged rather
// than poisoning the queue.
type Consumer struct {
	client   sqsReceiveAPI
	queueURL string
	handler  Handler
	logger   *logging.Logger

	waitTime  int32
	batchSize int32
	idleDelay time.Duration
}

// NewConsumer creates an SQS event consumer.
func NewConsumer(client sqsReceiveAPI, queueURL string, handler Handler, logger *logging.Logger) *Consumer {
	if client == nil {
		panic("events: sqs client cannot be nil")
	}
	if handler == nil {
		panic("events: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{
		client:    client,
		queueURL:  queueURL,
		handler:   handler,
		logger:    logger,
		waitTime:  20,
		batchSize: 10,
		idleDelay: time.Second,
	}
}

// Run polls until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := c.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("event consumer receive failed", "error", err)
			select {
			case <-time.After(c.idleDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		if n == 0 {
			select {
			case <-time.After(c.idleDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Poll receives one batch and processes it, returning the number of
// messages received.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.batchSize,
		WaitTimeSeconds:     c.waitTime,
	})
	if err != nil {
		return 0, err
	}

	for _, msg := range out.Messages {
		var evt Event
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
			c.logger.Warn("event consumer dropping malformed message", "error", err)
			c.delete(ctx, msg.ReceiptHandle)
			continue
		}
		if err := c.handler(ctx, evt); err != nil {
			c.logger.Error("event handler failed, leaving message for redelivery",
				"error", err,
				"event_type", evt.Type,
				"session_id", evt.SessionID,
			)
			continue
		}
		c.delete(ctx, msg.ReceiptHandle)
	}
	return len(out.Messages), nil
}

func (c *Consumer) delete(ctx context.Context, receipt *string) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receipt,
	})
	if err != nil {
		c.logger.Warn("event consumer delete failed", "error", err)
	}
}
