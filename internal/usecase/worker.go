package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alexa-gemini-agent/internal/domain"
)

const defaultRecordTTL = time.Hour

// Completer is the opaque generative capability the worker invokes.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []domain.Turn) (string, error)
}

// ResultReadWriter is the correlation store contract the worker needs: read
// a prior turn's record and commit this turn's record.
type ResultReadWriter interface {
	GetResult(ctx context.Context, requestID string) (domain.CorrelationRecord, bool, error)
	PutResult(ctx context.Context, rec domain.CorrelationRecord) error
}

// WorkerService processes queued work items: it rebuilds conversational
// context by chasing the back-reference to the prior turn's record, invokes
// the model, and commits the extended history with the answer.
type WorkerService struct {
	store     ResultReadWriter
	llm       Completer
	recordTTL time.Duration
	logger    *slog.Logger
}

// NewWorkerService creates a WorkerService. A non-positive recordTTL falls
// back to one hour; a nil logger falls back to slog.Default().
func NewWorkerService(store ResultReadWriter, llm Completer, recordTTL time.Duration, logger *slog.Logger) (*WorkerService, error) {
	if store == nil {
		return nil, errors.New("usecase: result store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if recordTTL <= 0 {
		recordTTL = defaultRecordTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerService{
		store:     store,
		llm:       llm,
		recordTTL: recordTTL,
		logger:    logger,
	}, nil
}

// nowFn is overridable in TTL tests.
var nowFn = time.Now

// Process handles one delivered work item. Delivery is at-least-once:
// reprocessing the same item overwrites its record, last writer wins. A
// returned error leaves the item unacknowledged so the queue redelivers it.
func (s *WorkerService) Process(ctx context.Context, item domain.WorkItem) error {
	if strings.TrimSpace(item.RequestID) == "" {
		return errors.New("usecase: process: request ID is required")
	}
	if strings.TrimSpace(item.Prompt) == "" {
		return errors.New("usecase: process: prompt is required")
	}

	history := s.priorHistory(ctx, item.PriorRequestID)

	response, err := s.llm.Complete(ctx, item.Prompt, history)
	if err != nil {
		return fmt.Errorf("usecase: complete prompt: %w", err)
	}

	rec := domain.CorrelationRecord{
		RequestID:    item.RequestID,
		ResponseText: response,
		History:      domain.ExtendHistory(history, item.Prompt, response),
		ExpiresAt:    nowFn().Add(s.recordTTL).Unix(),
	}
	if err := s.store.PutResult(ctx, rec); err != nil {
		return fmt.Errorf("usecase: store result: %w", err)
	}
	return nil
}

// priorHistory chases the back-reference to the previous turn. A missing,
// expired, or unreadable prior record degrades to an empty history; the
// turn must not fail because its context is gone.
func (s *WorkerService) priorHistory(ctx context.Context, priorRequestID string) []domain.Turn {
	if priorRequestID == "" {
		return nil
	}
	rec, found, err := s.store.GetResult(ctx, priorRequestID)
	if err != nil {
		s.logger.Warn("failed to load prior history, continuing without context",
			"priorRequestId", priorRequestID, "err", err)
		return nil
	}
	if !found {
		return nil
	}
	return rec.History
}
