package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	orchestratorx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	threads     map[string]*statex.ConversationThread
	lastRequest string
	turnErr     error
}

func newFakeService() *fakeService {
	return &fakeService{threads: map[string]*statex.ConversationThread{}}
}

func (f *fakeService) StartThread(ctx context.Context) (*statex.ConversationThread, error) {
	t := statex.NewThread("thread-1", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	t.LastReply = orchestratorx.Greeting
	t.Turns = []contractx.Turn{{ID: "t0", Speaker: contractx.SpeakerAssistant, Content: orchestratorx.Greeting}}
	f.threads[t.ThreadID] = t
	return t, nil
}

func (f *fakeService) HandleTurn(ctx context.Context, threadID, text, requestID string) (orchestratorx.TurnResult, error) {
	f.lastRequest = requestID
	if f.turnErr != nil {
		return orchestratorx.TurnResult{}, f.turnErr
	}
	if strings.TrimSpace(text) == "" {
		return orchestratorx.TurnResult{}, orchestratorx.ErrInvalidMessage
	}
	return orchestratorx.TurnResult{Reply: "echo: " + text, Phase: statex.PhaseAwaitingPreference, Outcome: "ok"}, nil
}

func (f *fakeService) Thread(ctx context.Context, threadID string) (*statex.ConversationThread, error) {
	t, ok := f.threads[threadID]
	if !ok {
		return nil, statex.ErrThreadNotFound
	}
	return t, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartThreadReturnsGreeting(t *testing.T) {
	r := NewRouter(newFakeService())

	rec := do(t, r, http.MethodPost, "/v1/threads", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var got startThreadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "thread-1", got.ThreadID)
	require.Equal(t, orchestratorx.Greeting, got.Reply)
	require.Equal(t, statex.PhaseAwaitingID, got.Phase)
}

func TestPostMessage(t *testing.T) {
	svc := newFakeService()
	r := NewRouter(svc)

	rec := do(t, r, http.MethodPost, "/v1/threads/thread-1/messages", `{"text":"101","request_id":"req-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "echo: 101", got.Reply)
	require.Equal(t, statex.PhaseAwaitingPreference, got.Phase)
	require.Equal(t, "req-1", svc.lastRequest)
}

func TestPostMessageRequestIDHeader(t *testing.T) {
	svc := newFakeService()
	r := NewRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/threads/thread-1/messages", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "hdr-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hdr-7", svc.lastRequest)
}

func TestPostMessageBadInput(t *testing.T) {
	r := NewRouter(newFakeService())

	rec := do(t, r, http.MethodPost, "/v1/threads/thread-1/messages", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/threads/thread-1/messages", `{"text":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "message text is required")
}

func TestPostMessageHidesInternalErrors(t *testing.T) {
	svc := newFakeService()
	svc.turnErr = errors.New("pq: connection refused on 10.0.0.3")
	r := NewRouter(svc)

	rec := do(t, r, http.MethodPost, "/v1/threads/thread-1/messages", `{"text":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestGetThread(t *testing.T) {
	svc := newFakeService()
	r := NewRouter(svc)

	rec := do(t, r, http.MethodGet, "/v1/threads/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	_ = do(t, r, http.MethodPost, "/v1/threads", "")
	rec = do(t, r, http.MethodGet, "/v1/threads/thread-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got threadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, statex.PhaseAwaitingID, got.Phase)
	require.Len(t, got.Turns, 1)
	require.Equal(t, contractx.SpeakerAssistant, got.Turns[0].Speaker)
}

func TestHealthAndMetrics(t *testing.T) {
	r := NewRouter(newFakeService())

	rec := do(t, r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(Config{Addr: ":0"}, nil)
	require.Error(t, err)
}

func TestServerRunStopsOnCancel(t *testing.T) {
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, newFakeService())
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
