package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"alexa-gemini-agent/internal/domain"
)

type fakeQueue struct {
	items []domain.WorkItem
	err   error
}

func (f *fakeQueue) Submit(_ context.Context, item domain.WorkItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

type fakeResults struct {
	records map[string]domain.CorrelationRecord
	err     error
	calls   int
	// readyAfter delays the record's visibility by that many lookups,
	// simulating a worker that has not written yet.
	readyAfter int
}

func (f *fakeResults) GetResult(_ context.Context, requestID string) (domain.CorrelationRecord, bool, error) {
	f.calls++
	if f.err != nil {
		return domain.CorrelationRecord{}, false, f.err
	}
	if f.calls <= f.readyAfter {
		return domain.CorrelationRecord{}, false, nil
	}
	rec, ok := f.records[requestID]
	return rec, ok, nil
}

func newTestTurnService(t *testing.T, queue *fakeQueue, results *fakeResults) *TurnService {
	t.Helper()
	// short real timings keep poll tests fast
	svc, err := NewTurnService(queue, results, 60*time.Millisecond, 30*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	return svc
}

func withFixedUUID(t *testing.T, id string) {
	t.Helper()
	prev := newUUID
	newUUID = func() string { return id }
	t.Cleanup(func() { newUUID = prev })
}

func session(lastRequestID string) domain.SessionState {
	return domain.SessionFromAttributes(map[string]any{"lastRequestId": lastRequestID})
}

func TestNewTurnService_ValidatesDependencies(t *testing.T) {
	_, err := NewTurnService(nil, &fakeResults{}, 0, 0, 0)
	require.Error(t, err)

	_, err = NewTurnService(&fakeQueue{}, nil, 0, 0, 0)
	require.Error(t, err)
}

func TestNewTurnService_DefaultTimings(t *testing.T) {
	svc, err := NewTurnService(&fakeQueue{}, &fakeResults{}, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, defaultAskTimeout, svc.askTimeout)
	require.Equal(t, defaultRecallTimeout, svc.recallTimeout)
	require.Equal(t, defaultPollInterval, svc.pollInterval)
	require.Less(t, svc.recallTimeout, svc.askTimeout)
}

func TestClassifyUtterance(t *testing.T) {
	cases := []struct {
		prompt string
		want   turnKind
	}{
		{"no", kindGoodbye},
		{"thank you", kindGoodbye},
		{"help", kindHelp},
		{"what was the last response", kindRecall},
		{"hey can you repeat that please", kindRecall},
		{"i am waiting", kindRecall},
		{"okay waiting", kindRecall},
		{"what is the capital of france", kindQuestion},
		{"nothing", kindQuestion}, // "no" must not match as a substring
		{"help me move house", kindQuestion},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, classifyUtterance(tc.prompt), "prompt=%q", tc.prompt)
	}
}

func TestLaunch_KeepsSessionOpen(t *testing.T) {
	svc := newTestTurnService(t, &fakeQueue{}, &fakeResults{})
	out := svc.Launch(session("req-1"))
	require.Equal(t, greetingMessage, out.Text)
	require.False(t, out.EndSession)
	require.Equal(t, "req-1", out.Session.LastRequestID)
}

func TestHandleUtterance_Goodbye_EndsSessionAndClearsState(t *testing.T) {
	svc := newTestTurnService(t, &fakeQueue{}, &fakeResults{})

	for _, utterance := range []string{"no", "Thank You", "  NO  "} {
		out, err := svc.HandleUtterance(context.Background(), utterance, "sess-1", session("req-1"))
		require.NoError(t, err)
		require.Equal(t, goodbyeMessage, out.Text)
		require.True(t, out.EndSession)
		require.Nil(t, out.Session.Attributes())
	}
}

func TestHandleUtterance_Help(t *testing.T) {
	svc := newTestTurnService(t, &fakeQueue{}, &fakeResults{})
	out, err := svc.HandleUtterance(context.Background(), "help", "sess-1", session("req-1"))
	require.NoError(t, err)
	require.Equal(t, helpMessage, out.Text)
	require.False(t, out.EndSession)
	require.Equal(t, "req-1", out.Session.LastRequestID)
}

func TestHandleUtterance_Recall_NothingPending(t *testing.T) {
	results := &fakeResults{}
	svc := newTestTurnService(t, &fakeQueue{}, results)

	out, err := svc.HandleUtterance(context.Background(), "what was the last response", "sess-1", domain.SessionState{})
	require.NoError(t, err)
	require.Equal(t, nothingToRecallMessage, out.Text)
	require.False(t, out.EndSession)
	require.Zero(t, results.calls, "no identifier means no store lookup")
}

func TestHandleUtterance_Recall_Found(t *testing.T) {
	results := &fakeResults{records: map[string]domain.CorrelationRecord{
		"req-1": {RequestID: "req-1", ResponseText: "Paris"},
	}}
	svc := newTestTurnService(t, &fakeQueue{}, results)

	out, err := svc.HandleUtterance(context.Background(), "what was the last response", "sess-1", session("req-1"))
	require.NoError(t, err)
	require.Equal(t, "Paris", out.Text)
	require.False(t, out.EndSession)
	require.Equal(t, "req-1", out.Session.LastRequestID, "recall must not change session state")
}

func TestHandleUtterance_Recall_NotReadyYet(t *testing.T) {
	results := &fakeResults{}
	svc := newTestTurnService(t, &fakeQueue{}, results)

	out, err := svc.HandleUtterance(context.Background(), "still waiting", "sess-1", session("req-1"))
	require.NoError(t, err)
	require.Equal(t, notReadyMessage, out.Text)
	require.False(t, out.EndSession)
	require.Equal(t, "req-1", out.Session.LastRequestID)
	require.Greater(t, results.calls, 1, "recall should retry until its timeout")
}

func TestHandleUtterance_Question_ResultReady(t *testing.T) {
	withFixedUUID(t, "req-2")
	queue := &fakeQueue{}
	results := &fakeResults{records: map[string]domain.CorrelationRecord{
		"req-2": {RequestID: "req-2", ResponseText: "It is the Burj Khalifa."},
	}}
	svc := newTestTurnService(t, queue, results)

	out, err := svc.HandleUtterance(context.Background(), "What is the tallest building?", "sess-1", session("req-1"))
	require.NoError(t, err)
	require.Equal(t, "It is the Burj Khalifa.", out.Text)
	require.False(t, out.EndSession)
	require.Equal(t, "req-2", out.Session.LastRequestID)

	require.Len(t, queue.items, 1)
	item := queue.items[0]
	require.Equal(t, "req-2", item.RequestID)
	require.Equal(t, "sess-1", item.SessionID)
	require.Equal(t, "what is the tallest building?", item.Prompt)
	require.Equal(t, "req-1", item.PriorRequestID)
}

func TestHandleUtterance_Question_FreshConversationHasNoPrior(t *testing.T) {
	withFixedUUID(t, "req-1")
	queue := &fakeQueue{}
	svc := newTestTurnService(t, queue, &fakeResults{records: map[string]domain.CorrelationRecord{
		"req-1": {RequestID: "req-1", ResponseText: "ok"},
	}})

	_, err := svc.HandleUtterance(context.Background(), "hello there", "sess-1", domain.SessionState{})
	require.NoError(t, err)
	require.Empty(t, queue.items[0].PriorRequestID)
}

func TestHandleUtterance_Question_TimeoutKeepsIdentifier(t *testing.T) {
	withFixedUUID(t, "req-2")
	queue := &fakeQueue{}
	results := &fakeResults{} // the record never appears
	svc := newTestTurnService(t, queue, results)

	out, err := svc.HandleUtterance(context.Background(), "what is the capital of france", "sess-1", domain.SessionState{})
	require.NoError(t, err)
	require.Equal(t, stillWorkingMessage, out.Text)
	require.False(t, out.EndSession)
	require.Equal(t, "req-2", out.Session.LastRequestID,
		"identifier must be kept so a later recall can fetch the result")
	require.Greater(t, results.calls, 1)
}

func TestHandleUtterance_Question_RespectsDeadline(t *testing.T) {
	withFixedUUID(t, "req-1")
	svc := newTestTurnService(t, &fakeQueue{}, &fakeResults{})

	start := time.Now()
	out, err := svc.HandleUtterance(context.Background(), "a question", "sess-1", domain.SessionState{})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, stillWorkingMessage, out.Text)
	require.Less(t, elapsed, time.Second, "the gateway must reply before its ceiling regardless of backend latency")
}

func TestHandleUtterance_Question_ResultAppearsMidPoll(t *testing.T) {
	withFixedUUID(t, "req-1")
	results := &fakeResults{
		readyAfter: 2,
		records: map[string]domain.CorrelationRecord{
			"req-1": {RequestID: "req-1", ResponseText: "late answer"},
		},
	}
	svc := newTestTurnService(t, &fakeQueue{}, results)

	out, err := svc.HandleUtterance(context.Background(), "slow question", "sess-1", domain.SessionState{})
	require.NoError(t, err)
	require.Equal(t, "late answer", out.Text)
	require.Equal(t, 3, results.calls)
}

func TestHandleUtterance_Question_SubmitError(t *testing.T) {
	queue := &fakeQueue{err: errors.New("queue unavailable")}
	svc := newTestTurnService(t, queue, &fakeResults{})

	_, err := svc.HandleUtterance(context.Background(), "a question", "sess-1", domain.SessionState{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "queue unavailable")
}

func TestPoll_TreatsLookupErrorAsNotYet(t *testing.T) {
	withFixedUUID(t, "req-1")
	results := &fakeResults{err: errors.New("throttled")}
	svc := newTestTurnService(t, &fakeQueue{}, results)

	out, err := svc.HandleUtterance(context.Background(), "a question", "sess-1", domain.SessionState{})
	require.NoError(t, err)
	require.Equal(t, stillWorkingMessage, out.Text)
	require.Greater(t, results.calls, 1, "transient read failures must not stop the poll")
}

func TestPoll_StopsOnContextCancel(t *testing.T) {
	withFixedUUID(t, "req-1")
	svc, err := NewTurnService(&fakeQueue{}, &fakeResults{}, 5*time.Second, time.Second, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	out, err := svc.HandleUtterance(ctx, "a question", "sess-1", domain.SessionState{})
	require.NoError(t, err)
	require.Equal(t, stillWorkingMessage, out.Text)
	require.Less(t, time.Since(start), time.Second)
}
