package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alexa-gemini-agent/internal/domain"
)

// Poll timings. The ask timeout stays under the voice platform's ~8 second
// response ceiling; the recall timeout is shorter because the caller has
// already waited a full poll for that identifier once.
const (
	defaultAskTimeout    = 7 * time.Second
	defaultRecallTimeout = 2500 * time.Millisecond
	defaultPollInterval  = 500 * time.Millisecond
)

const (
	greetingMessage = "Welcome to Gemini. You can ask me anything."
	goodbyeMessage  = "Goodbye!"
	helpMessage     = "You can ask me any question, for example, 'ask what is the tallest building in the world'. " +
		"If a response takes too long, you can say 'what was the last response'. How can I help?"
	fallbackMessage = "Sorry, I'm not sure how to handle that. You can ask me a question, like 'ask what is the capital of France'. " +
		"For the last response, say 'what was the last response'. How can I help?"
	nothingToRecallMessage = "I don't have a recent request to look for. Please ask a question first."
	notReadyMessage        = "I don't have a response for you yet. Please wait a moment and try again."
	stillWorkingMessage    = "Your request is taking a moment. To hear the response, say 'what was the last response'."
)

// recallPhrases trigger the "last response" flow via case-insensitive
// substring match.
var recallPhrases = []string{
	"last response",
	"what was the last response",
	"get the last response",
	"what did you say",
	"can you repeat that",
	"say that again",
	"i am waiting",
	"so whats the answer",
	"get the answer",
	"still waiting",
	"go ahead",
	"okay waiting",
}

// Submitter enqueues work items for detached processing.
type Submitter interface {
	Submit(ctx context.Context, item domain.WorkItem) error
}

// ResultReader is the point-lookup side of the correlation store.
type ResultReader interface {
	GetResult(ctx context.Context, requestID string) (domain.CorrelationRecord, bool, error)
}

// TurnOutput is one reply to the caller: the spoken text, whether the
// session ends, and the session state to round-trip.
type TurnOutput struct {
	Text       string
	EndSession bool
	Session    domain.SessionState
}

// TurnService implements the gateway's per-turn state machine. Each inbound
// turn runs as one synchronous invocation: it classifies the utterance,
// either submits new work or re-checks a pending identifier, and always
// replies before the poll ceiling.
type TurnService struct {
	queue   Submitter
	results ResultReader

	askTimeout    time.Duration
	recallTimeout time.Duration
	pollInterval  time.Duration
}

// NewTurnService creates a TurnService. Non-positive durations fall back to
// the defaults.
func NewTurnService(queue Submitter, results ResultReader, askTimeout, recallTimeout, pollInterval time.Duration) (*TurnService, error) {
	if queue == nil {
		return nil, errors.New("usecase: submitter must not be nil")
	}
	if results == nil {
		return nil, errors.New("usecase: result reader must not be nil")
	}
	if askTimeout <= 0 {
		askTimeout = defaultAskTimeout
	}
	if recallTimeout <= 0 {
		recallTimeout = defaultRecallTimeout
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &TurnService{
		queue:         queue,
		results:       results,
		askTimeout:    askTimeout,
		recallTimeout: recallTimeout,
		pollInterval:  pollInterval,
	}, nil
}

// Launch greets the caller at conversation start and keeps the session open.
func (s *TurnService) Launch(session domain.SessionState) TurnOutput {
	return TurnOutput{Text: greetingMessage, Session: session}
}

// Help returns usage guidance, leaving the session untouched.
func (s *TurnService) Help(session domain.SessionState) TurnOutput {
	return TurnOutput{Text: helpMessage, Session: session}
}

// Fallback answers an utterance the intent grammar could not place.
func (s *TurnService) Fallback(session domain.SessionState) TurnOutput {
	return TurnOutput{Text: fallbackMessage, Session: session}
}

// Goodbye closes the conversation and discards the session state.
func (s *TurnService) Goodbye() TurnOutput {
	return TurnOutput{Text: goodbyeMessage, EndSession: true}
}

type turnKind int

const (
	kindQuestion turnKind = iota
	kindGoodbye
	kindRecall
	kindHelp
)

func classifyUtterance(prompt string) turnKind {
	switch prompt {
	case "no", "thank you":
		return kindGoodbye
	case "help":
		return kindHelp
	}
	for _, phrase := range recallPhrases {
		if strings.Contains(prompt, phrase) {
			return kindRecall
		}
	}
	return kindQuestion
}

// HandleUtterance runs the free-text turn flow: close phrases end the
// session, recall phrases re-check the pending identifier, "help" explains
// usage, and anything else becomes a new question.
func (s *TurnService) HandleUtterance(ctx context.Context, utterance, sessionID string, session domain.SessionState) (TurnOutput, error) {
	prompt := strings.ToLower(strings.TrimSpace(utterance))
	switch classifyUtterance(prompt) {
	case kindGoodbye:
		return s.Goodbye(), nil
	case kindRecall:
		return s.recall(ctx, session), nil
	case kindHelp:
		return s.Help(session), nil
	}
	return s.ask(ctx, prompt, sessionID, session)
}

// ask submits a new work item linked to the previous turn and polls for its
// result. The new request identifier is recorded in the session whether or
// not the poll succeeds, so a later recall or follow-up can find it.
func (s *TurnService) ask(ctx context.Context, prompt, sessionID string, session domain.SessionState) (TurnOutput, error) {
	requestID := newUUID()
	item := domain.WorkItem{
		RequestID:      requestID,
		SessionID:      sessionID,
		Prompt:         prompt,
		PriorRequestID: session.LastRequestID,
	}
	if err := s.queue.Submit(ctx, item); err != nil {
		return TurnOutput{}, fmt.Errorf("usecase: submit work item: %w", err)
	}

	session.LastRequestID = requestID

	text, found := s.poll(ctx, requestID, s.askTimeout)
	if !found {
		text = stillWorkingMessage
	}
	return TurnOutput{Text: text, Session: session}, nil
}

// recall re-checks the store for the previous turn's identifier with the
// short timeout. Session state is preserved either way.
func (s *TurnService) recall(ctx context.Context, session domain.SessionState) TurnOutput {
	if session.LastRequestID == "" {
		return TurnOutput{Text: nothingToRecallMessage, Session: session}
	}
	text, found := s.poll(ctx, session.LastRequestID, s.recallTimeout)
	if !found {
		text = notReadyMessage
	}
	return TurnOutput{Text: text, Session: session}
}

// poll retries the idempotent point lookup until the record shows up or the
// deadline passes. A lookup error counts as "not yet": a transient read
// failure must not end the turn, the record stays retrievable by recall.
func (s *TurnService) poll(ctx context.Context, requestID string, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		rec, found, err := s.results.GetResult(ctx, requestID)
		if err == nil && found {
			return rec.ResponseText, true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false
		}
		wait := s.pollInterval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(wait):
		}
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
