package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"alexa-gemini-agent/internal/domain"
)

// WorkProcessor defines the worker operation consumed by the SQS handler.
type WorkProcessor interface {
	Process(ctx context.Context, item domain.WorkItem) error
}

// SQSHandler drains delivered work-item batches.
type SQSHandler struct {
	worker WorkProcessor
	logger *slog.Logger
}

func NewSQSHandler(worker WorkProcessor, logger *slog.Logger) (*SQSHandler, error) {
	if worker == nil {
		return nil, errors.New("handler: work processor must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSHandler{worker: worker, logger: logger}, nil
}

// Handle processes one delivered batch. Failed records are reported
// individually through the partial-batch-response contract so only they
// return to the queue for redelivery.
func (h *SQSHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var failures []events.SQSBatchItemFailure
	for _, record := range event.Records {
		var item domain.WorkItem
		if err := json.Unmarshal([]byte(record.Body), &item); err != nil {
			// Redelivery cannot fix a malformed body; drop it.
			h.logger.Error("dropping malformed work item", "messageId", record.MessageId, "err", err)
			continue
		}
		if err := h.worker.Process(ctx, item); err != nil {
			h.logger.Error("work item failed", "messageId", record.MessageId, "requestId", item.RequestID, "err", err)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}
