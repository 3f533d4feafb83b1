package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"alexa-gemini-agent/internal/domain"
)

// sqsAPI is the minimal SQS interface required by Client.
// *sqs.Client from aws-sdk-go-v2 satisfies this interface.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Client submits work items to the requests queue. The worker side consumes
// them through the Lambda SQS event source, so no receive path lives here.
type Client struct {
	api      sqsAPI
	queueURL string
}

// New creates a new queue Client.
func New(api sqsAPI, queueURL string) (*Client, error) {
	if api == nil {
		return nil, errors.New("queue: api must not be nil")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue: queue URL must not be empty")
	}
	return &Client{api: api, queueURL: queueURL}, nil
}

// Submit enqueues the item for detached processing. It returns once SQS has
// durably accepted the message; it does not wait for the worker.
func (c *Client) Submit(ctx context.Context, item domain.WorkItem) error {
	if strings.TrimSpace(item.RequestID) == "" {
		return errors.New("queue: Submit: request ID is required")
	}

	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("queue: Submit marshal: %w", err)
	}

	_, err = c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("queue: Submit send message: %w", err)
	}
	return nil
}
