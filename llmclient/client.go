package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"power-atlas/config"
	apperrors "power-atlas/errors"
)

// ErrContextWindowExceeded is returned when the model reports the prompt
// exceeds the available context size.
var ErrContextWindowExceeded = errors.New("context window exceeded")

// Message is one chat turn in the OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// ChatOptions tunes a single completion call. Zero values use server defaults.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   int
	// JSONObject asks the server for a json_object response format.
	JSONObject bool
}

// Client talks to OpenAI-compatible chat and embedding endpoints.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
	embedCache *lru.Cache
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMRequestTimeout},
		logger:     logger,
	}
	if cfg.EmbeddingCacheSize > 0 {
		cache, err := lru.New(cfg.EmbeddingCacheSize)
		if err != nil {
			logger.Warn("Embedding cache disabled", zap.Error(err))
		} else {
			c.embedCache = cache
		}
	}
	return c
}

// Chat performs a non-streaming chat completion against the main LLM host.
func (c *Client) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	reqBody := chatRequest{
		Model:       c.cfg.ChatModel,
		Messages:    messages,
		Stream:      false,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONObject {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(c.cfg.MainLLMHost, "/"))
	bodyBytes, err := c.post(ctx, url, jsonBody, "chat")
	if err != nil {
		if strings.Contains(err.Error(), "exceeds the available context size") {
			return "", ErrContextWindowExceeded
		}
		return "", err
	}

	var cr chatResponse
	if err := json.Unmarshal(bodyBytes, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", apperrors.WrapError(apperrors.ErrLLMCommunication, "no response choices from llm server")
	}
	return cr.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text from the embedding host. Results are
// cached by exact text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedCache != nil {
		if v, ok := c.embedCache.Get(text); ok {
			return slices.Clone(v.([]float32)), nil
		}
	}

	jsonBody, err := json.Marshal(embeddingRequest{Model: c.cfg.EmbeddingModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/embeddings", strings.TrimRight(c.cfg.EmbeddingLLMHost, "/"))
	bodyBytes, err := c.post(ctx, url, jsonBody, "embedding")
	if err != nil {
		return nil, err
	}

	var er embeddingResponse
	if err := json.Unmarshal(bodyBytes, &er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(er.Data) == 0 || len(er.Data[0].Embedding) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrLLMCommunication, "embedding response was empty")
	}

	embedding := er.Data[0].Embedding
	if c.embedCache != nil {
		c.embedCache.Add(text, slices.Clone(embedding))
	}
	return embedding, nil
}

// post sends body to url, retrying while the server reports 503 (model
// loading) or the transport fails without the context being done.
func (c *Client) post(ctx context.Context, url string, body []byte, kind string) ([]byte, error) {
	attempts := c.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", kind, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.LLMAPIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			if attempt < attempts-1 {
				c.backoffSleep(ctx, attempt)
			}
			continue
		}

		if r.StatusCode == http.StatusServiceUnavailable {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			lastErr = fmt.Errorf("%w: %s server status %s", apperrors.ErrServiceUnavailable, kind, r.Status)
			c.logger.Warn("LLM service unavailable", zap.String("kind", kind), zap.Int("attempt", attempt+1))
			if attempt < attempts-1 {
				c.backoffSleep(ctx, attempt)
			}
			continue
		}

		resp = r
		break
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: no response from %s server: %w", apperrors.ErrLLMCommunication, kind, lastErr)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", kind, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s server status %s: %s", apperrors.ErrLLMCommunication, kind, resp.Status, strings.TrimSpace(string(bodyBytes)))
	}
	return bodyBytes, nil
}

func (c *Client) backoffSleep(ctx context.Context, attempt int) {
	base := c.cfg.RetryDelay
	if base <= 0 {
		base = time.Second
	}
	d := base * time.Duration(1<<attempt)
	if d > 30*time.Second {
		d = 30 * time.Second
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
