package test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amari-ai/go-amari/pkg/proxy"
)

// newProxyServer starts an HTTP server proxying an augmented mock
// client, as a deployment of cmd/amari-proxy would.
func newProxyServer(t *testing.T) (*httptest.Server, *headlineRetriever) {
	t.Helper()

	retriever := newHeadlineRetriever()
	client := newAugmentedClient(t, retriever)

	server := httptest.NewServer(proxy.NewServer(proxy.Config{}, client.Underlying()).Handler())
	t.Cleanup(server.Close)

	return server, retriever
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestProxyChatCompletionOverHTTP(t *testing.T) {
	t.Parallel()

	server, retriever := newProxyServer(t)

	resp := postJSON(t, server.URL+"/v1/chat/completions", `{
		"model": "test-model",
		"messages": [{"role": "user", "content": "What are the latest market headlines today?"}]
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "chat.completion", body.Object)
	assert.NotEmpty(t, body.ID)
	require.Len(t, body.Choices, 1)
	assert.Equal(t, "assistant", body.Choices[0].Message.Role)
	assert.Contains(t, body.Choices[0].Message.Content, "According to the search results")
	assert.Equal(t, "stop", body.Choices[0].FinishReason)

	require.NotEmpty(t, retriever.Queries(), "the proxy should have searched")
}

func TestProxyStreamingOverHTTP(t *testing.T) {
	t.Parallel()

	server, _ := newProxyServer(t)

	resp := postJSON(t, server.URL+"/v1/chat/completions", `{
		"messages": [{"role": "user", "content": "What are the latest market headlines today?"}],
		"stream": true
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var sawChunk, sawDone bool
	scanner := bufio.NewScanner(resp.Body)
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

		var chunk struct {
			Object string `json:"object"`
		}
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		assert.Equal(t, "chat.completion.chunk", chunk.Object)
		sawChunk = true
	}

	assert.True(t, sawChunk, "should receive at least one chunk")
	assert.True(t, sawDone, "stream should end with [DONE]")
}

func TestProxyModelsOverHTTP(t *testing.T) {
	t.Parallel()

	server, _ := newProxyServer(t)

	resp, err := http.Get(server.URL + "/v1/models")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Object string `json:"object"`
		Data   []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "list", body.Object)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "test-model", body.Data[0].ID)
}

func TestProxyHealthOverHTTP(t *testing.T) {
	t.Parallel()

	server, _ := newProxyServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}
