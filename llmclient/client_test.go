package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power-atlas/config"
	apperrors "power-atlas/errors"
)

func testConfig(host string) *config.Config {
	return &config.Config{
		MainLLMHost:        host,
		EmbeddingLLMHost:   host,
		ChatModel:          "gpt-4o",
		EmbeddingModel:     "text-embedding-ada-002",
		LLMRequestTimeout:  5 * time.Second,
		MaxRetries:         3,
		RetryDelay:         time.Millisecond,
		EmbeddingCacheSize: 8,
	}
}

func TestChatRetriesWhileModelLoads(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	out, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{JSONObject: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrLLMCommunication)
	assert.Contains(t, err.Error(), "boom")
}

func TestChatContextWindowExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "the request exceeds the available context size", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	assert.ErrorIs(t, err, ErrContextWindowExceeded)
}

func TestEmbedCachesByText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	for i := 0; i < 3; i++ {
		vec, err := client.Embed(context.Background(), "same text")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	_, err := client.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, apperrors.ErrLLMCommunication)
}

func TestChatGivesUpWhileUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	assert.ErrorIs(t, err, apperrors.ErrLLMCommunication)
	assert.True(t, apperrors.IsServiceUnavailable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatDoesNotWaitAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 1
	cfg.RetryDelay = 20 * time.Second
	client := New(cfg, nil)

	start := time.Now()
	_, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	assert.True(t, apperrors.IsServiceUnavailable(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEmbedResultIsNotSharedWithCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	client := New(testConfig(srv.URL), nil)
	first, err := client.Embed(context.Background(), "same text")
	require.NoError(t, err)
	first[0] = 9

	second, err := client.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, second)
	second[1] = 9

	third, err := client.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, third)
}
