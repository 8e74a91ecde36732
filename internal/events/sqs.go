package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sqsSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes events to an SQS queue as JSON bodies.
type SQSSink struct {
	client   sqsSendAPI
	queueURL string
}

// NewSQSSink creates an SQS-backed event sink.
func NewSQSSink(client sqsSendAPI, queueURL string) *SQSSink {
	if client == nil {
		panic("events: sqs client cannot be nil")
	}
	return &SQSSink{client: client, queueURL: queueURL}
}

func (s *SQSSink) Emit(ctx context.Context, evt Event) error {
	if s.queueURL == "" {
		return errors.New("events: sqs queue url not configured")
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("events: send to sqs: %w", err)
	}
	return nil
}
