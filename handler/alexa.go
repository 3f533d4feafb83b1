package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"alexa-gemini-agent/internal/domain"
	"alexa-gemini-agent/internal/usecase"
)

const (
	requestTypeLaunch = "LaunchRequest"
	requestTypeIntent = "IntentRequest"

	intentCatchAll = "CatchAll"
	intentHelp     = "AMAZON.HelpIntent"
	intentStop     = "AMAZON.StopIntent"
	intentCancel   = "AMAZON.CancelIntent"
	intentFallback = "AMAZON.FallbackIntent"

	slotText = "text"

	repromptText = "Is there anything else?"
	apologyText  = "Sorry, I'm not sure how to handle that request. Please start again."
)

// Alexa Skills Kit envelope shapes. aws-lambda-go's events package has no
// Alexa type, so the fields consumed here are declared directly.
type AlexaRequest struct {
	Version string           `json:"version"`
	Session AlexaSession     `json:"session"`
	Request AlexaRequestBody `json:"request"`
}

type AlexaSession struct {
	SessionID  string         `json:"sessionId"`
	Attributes map[string]any `json:"attributes"`
}

type AlexaRequestBody struct {
	Type   string      `json:"type"`
	Intent AlexaIntent `json:"intent"`
}

type AlexaIntent struct {
	Name  string               `json:"name"`
	Slots map[string]AlexaSlot `json:"slots"`
}

type AlexaSlot struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type AlexaResponse struct {
	Version           string            `json:"version"`
	SessionAttributes map[string]any    `json:"sessionAttributes,omitempty"`
	Response          AlexaResponseBody `json:"response"`
}

type AlexaResponseBody struct {
	OutputSpeech     OutputSpeech `json:"outputSpeech"`
	Reprompt         *Reprompt    `json:"reprompt,omitempty"`
	ShouldEndSession bool         `json:"shouldEndSession"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

// TurnUseCase defines the gateway operations consumed by the handler.
type TurnUseCase interface {
	Launch(session domain.SessionState) usecase.TurnOutput
	HandleUtterance(ctx context.Context, utterance, sessionID string, session domain.SessionState) (usecase.TurnOutput, error)
	Help(session domain.SessionState) usecase.TurnOutput
	Fallback(session domain.SessionState) usecase.TurnOutput
	Goodbye() usecase.TurnOutput
}

// AlexaHandler translates the skill envelope to and from turn semantics.
type AlexaHandler struct {
	turns  TurnUseCase
	logger *slog.Logger
}

func NewAlexaHandler(turns TurnUseCase, logger *slog.Logger) (*AlexaHandler, error) {
	if turns == nil {
		return nil, errors.New("handler: turn use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AlexaHandler{turns: turns, logger: logger}, nil
}

// Handle processes one inbound skill request. Every outcome, including an
// unrecognized request shape, is a spoken reply; the error return exists
// only for the Lambda signature and is always nil.
func (h *AlexaHandler) Handle(ctx context.Context, event AlexaRequest) (AlexaResponse, error) {
	session := domain.SessionFromAttributes(event.Session.Attributes)

	switch event.Request.Type {
	case requestTypeLaunch:
		return buildResponse(h.turns.Launch(session)), nil
	case requestTypeIntent:
		return h.handleIntent(ctx, event, session), nil
	}
	return apologyResponse(), nil
}

func (h *AlexaHandler) handleIntent(ctx context.Context, event AlexaRequest, session domain.SessionState) AlexaResponse {
	switch event.Request.Intent.Name {
	case intentCatchAll:
		utterance := event.Request.Intent.Slots[slotText].Value
		if strings.TrimSpace(utterance) == "" {
			return apologyResponse()
		}
		out, err := h.turns.HandleUtterance(ctx, utterance, event.Session.SessionID, session)
		if err != nil {
			h.logger.Error("turn failed", "sessionId", event.Session.SessionID, "err", err)
			return apologyResponse()
		}
		return buildResponse(out)
	case intentHelp:
		return buildResponse(h.turns.Help(session))
	case intentStop, intentCancel:
		return buildResponse(h.turns.Goodbye())
	case intentFallback:
		return buildResponse(h.turns.Fallback(session))
	}
	return apologyResponse()
}

func buildResponse(out usecase.TurnOutput) AlexaResponse {
	resp := AlexaResponse{
		Version: "1.0",
		Response: AlexaResponseBody{
			OutputSpeech:     plainText(out.Text),
			ShouldEndSession: out.EndSession,
		},
	}
	if !out.EndSession {
		resp.Response.Reprompt = &Reprompt{OutputSpeech: plainText(repromptText)}
		resp.SessionAttributes = out.Session.Attributes()
	}
	return resp
}

func apologyResponse() AlexaResponse {
	return AlexaResponse{
		Version: "1.0",
		Response: AlexaResponseBody{
			OutputSpeech:     plainText(apologyText),
			ShouldEndSession: true,
		},
	}
}

func plainText(text string) OutputSpeech {
	return OutputSpeech{Type: "PlainText", Text: text}
}
