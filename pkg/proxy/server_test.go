package proxy

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/amari-ai/go-amari/pkg/augment"
	"github.com/amari-ai/go-amari/pkg/llm"
	"github.com/amari-ai/go-amari/pkg/providers/mock"
	"github.com/amari-ai/go-amari/pkg/search"
)

type cannedRetriever struct{}

func (cannedRetriever) Name() string { return "canned" }

func (cannedRetriever) Search(_ context.Context, _ string, _ search.Options) ([]search.Result, error) {
	return []search.Result{
		{Title: "Weather Report", URL: "https://weather.example", Snippet: "Sunny and 24 degrees."},
	}, nil
}

func newTestServer(t *testing.T, cfg Config) (*Server, *mock.Client) {
	t.Helper()
	base, err := mock.NewClient("test-model", "mock")
	require.NoError(t, err)

	liveSearch, err := augment.NewLiveSearch(augment.Config{Retriever: cannedRetriever{}})
	require.NoError(t, err)

	client := llm.ClientWithMiddleware(base, []llm.Middleware{liveSearch})
	return NewServer(cfg, client), base
}

func postCompletion(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	res := httptest.NewRecorder()
	s.Handler().ServeHTTP(res, req)
	return res
}

func TestChatCompletionPassthrough(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	res := postCompletion(t, s, `{
		"model": "test-model",
		"messages": [{"role": "user", "content": "hello"}],
		"temperature": 0.7
	}`)
	require.Equal(t, http.StatusOK, res.Code)

	var resp chatCompletionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))

	require.Equal(t, "chat.completion", resp.Object)
	require.NotEmpty(t, resp.ID)
	require.NotZero(t, resp.Created)
	require.Len(t, resp.Choices, 1)
	require.Equal(t, "assistant", resp.Choices[0].Message.Role)
	require.NotEmpty(t, resp.Choices[0].Message.Content)
	require.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.NotZero(t, resp.Usage.TotalTokens)
}

func TestChatCompletionAugmented(t *testing.T) {
	s, base := newTestServer(t, Config{})

	res := postCompletion(t, s, `{
		"messages": [{"role": "user", "content": "what is the weather in Berlin today?"}]
	}`)
	require.Equal(t, http.StatusOK, res.Code)

	var resp chatCompletionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	require.Contains(t, resp.Choices[0].Message.Content, "According to the search results")

	last := base.GetLastCall()
	require.NotNil(t, last)
	require.True(t, augment.WasAugmented(last))
}

func TestChatCompletionContentParts(t *testing.T) {
	s, base := newTestServer(t, Config{})

	res := postCompletion(t, s, `{
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "hello"},
			{"type": "text", "text": "there"}
		]}]
	}`)
	require.Equal(t, http.StatusOK, res.Code)

	last := base.GetLastCall()
	require.NotNil(t, last)
	require.Equal(t, "hello\nthere", last.LastUserText())
}

func TestChatCompletionValidation(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	res := postCompletion(t, s, `{"model": "test-model"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &errResp))
	require.Equal(t, llm.ErrTypeInvalidRequest, errResp.Error.Type)
	require.Contains(t, errResp.Error.Message, "messages")

	res = postCompletion(t, s, `{not json`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestChatCompletionUpstreamError(t *testing.T) {
	s, base := newTestServer(t, Config{})
	base.AddError(llm.NewError(llm.ErrCodeInvalidAPIKey, llm.ErrTypeAuthentication, "Incorrect API key provided").WithStatus(http.StatusUnauthorized))

	res := postCompletion(t, s, `{"messages": [{"role": "user", "content": "hello"}]}`)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &errResp))
	require.Equal(t, llm.ErrTypeAuthentication, errResp.Error.Type)
	require.Equal(t, llm.ErrCodeInvalidAPIKey, errResp.Error.Code)
}

func TestChatCompletionStreaming(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	res := postCompletion(t, s, `{
		"messages": [{"role": "user", "content": "hello"}],
		"stream": true
	}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "text/event-stream", res.Header().Get(echo.HeaderContentType))

	var chunks []chatCompletionChunk
	var sawDone bool

	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			break
		}
		var chunk chatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		chunks = append(chunks, chunk)
	}

	require.True(t, sawDone, "stream must end with data: [DONE]")
	require.NotEmpty(t, chunks)

	var text strings.Builder
	var finished bool
	for _, chunk := range chunks {
		require.Equal(t, "chat.completion.chunk", chunk.Object)
		require.Len(t, chunk.Choices, 1)
		text.WriteString(chunk.Choices[0].Delta.Content)
		if chunk.Choices[0].FinishReason != nil {
			finished = true
		}
	}
	require.True(t, finished, "a chunk must carry finish_reason")
	require.NotEmpty(t, text.String())
}

func TestModelsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	res := httptest.NewRecorder()
	s.Handler().ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var list modelList
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &list))
	require.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 1)
	require.Equal(t, "test-model", list.Data[0].ID)
	require.Equal(t, "mock", list.Data[0].OwnedBy)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	s.Handler().ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "mock", body["provider"])
}

func TestRequestIDPropagation(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	s.Handler().ServeHTTP(res, req)

	require.Equal(t, "req-123", res.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res = httptest.NewRecorder()
	s.Handler().ServeHTTP(res, req)

	require.NotEmpty(t, res.Header().Get(requestIDHeader), "missing IDs must be generated")
}

func TestRateLimiting(t *testing.T) {
	s, _ := newTestServer(t, Config{RequestsPerMinute: 1})

	res := postCompletion(t, s, `{"messages": [{"role": "user", "content": "hello"}]}`)
	require.Equal(t, http.StatusOK, res.Code)

	res = postCompletion(t, s, `{"messages": [{"role": "user", "content": "hello"}]}`)
	require.Equal(t, http.StatusTooManyRequests, res.Code)

	var errResp errorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &errResp))
	require.Equal(t, llm.ErrTypeRateLimit, errResp.Error.Type)
}

func TestBodyLimit(t *testing.T) {
	s, _ := newTestServer(t, Config{BodyLimit: "1K"})

	oversized := `{"messages": [{"role": "user", "content": "` + strings.Repeat("x", 2048) + `"}]}`
	res := postCompletion(t, s, oversized)
	require.Equal(t, http.StatusRequestEntityTooLarge, res.Code)
}

func TestConfigFillDefaults(t *testing.T) {
	var cfg Config
	cfg.FillDefaults()

	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	require.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	require.Equal(t, DefaultBodyLimit, cfg.BodyLimit)
	require.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
}

func TestGracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t, Config{ListenAddress: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2)

	require.True(t, rl.Allow("client-a"))
	require.True(t, rl.Allow("client-a"))
	require.False(t, rl.Allow("client-a"))

	// Other clients have their own budget.
	require.True(t, rl.Allow("client-b"))

	// A stale window resets all counters.
	rl.lastReset = time.Now().Add(-2 * time.Minute)
	require.True(t, rl.Allow("client-a"))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for range 100 {
		require.True(t, rl.Allow("client"))
	}
}
