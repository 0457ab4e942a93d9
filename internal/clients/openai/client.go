package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/conceptlab-backend/internal/pkg/httpx"
	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
	"github.com/yungbote/conceptlab-backend/internal/platform/envutil"
)

// Client computes text embeddings through the OpenAI REST API.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	EmbedModel() string
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client

	maxRetries  int
	batchSize   int
	concurrency int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(envutil.Str("OPENAI_API_KEY", ""))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(envutil.Str("OPENAI_BASE_URL", "https://api.openai.com")), "/")
	embedModel := strings.TrimSpace(envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-small"))

	timeoutSec := envutil.Int("OPENAI_TIMEOUT_SECONDS", 180)
	if timeoutSec <= 0 {
		timeoutSec = 180
	}
	maxRetries := envutil.Int("OPENAI_MAX_RETRIES", 4)
	if maxRetries < 0 {
		maxRetries = 0
	}
	batchSize := envutil.Int("OPENAI_EMBED_BATCH_SIZE", 128)
	if batchSize <= 0 {
		batchSize = 128
	}
	concurrency := envutil.Int("OPENAI_EMBED_CONCURRENCY", 4)
	if concurrency <= 0 {
		concurrency = 1
	}

	return &client{
		log:         log.With("service", "OpenAIClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		embedModel:  embedModel,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:  maxRetries,
		batchSize:   batchSize,
		concurrency: concurrency,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.Jitter(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		if sErr := httpx.SleepContext(ctx, sleepFor); sErr != nil {
			return sErr
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// EmbedModel reports the embedding model in use, mainly for cache keys.
func (c *client) EmbedModel() string { return c.embedModel }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed returns one vector per input in input order. Large batches are split
// into chunks embedded concurrently; within a chunk the response index field
// maps vectors back to their inputs.
func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	// The embeddings endpoint rejects empty strings.
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	out := make([][]float32, len(clean))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(clean); start += c.batchSize {
		start := start
		end := start + c.batchSize
		if end > len(clean) {
			end = len(clean)
		}
		g.Go(func() error {
			vecs, err := c.embedChunk(gctx, clean[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) embedChunk(ctx context.Context, inputs []string) ([][]float32, error) {
	req := embeddingsRequest{Model: c.embedModel, Input: inputs}

	out, err := c.embedOnce(ctx, req)
	if err != nil {
		return nil, err
	}
	if !hasMissingEmbeddings(out) {
		return out, nil
	}

	c.log.Warn("Embeddings response missing indices; retrying once",
		"requested", len(inputs),
		"model", c.embedModel,
	)

	out, err = c.embedOnce(ctx, req)
	if err != nil {
		return nil, err
	}
	if hasMissingEmbeddings(out) {
		return nil, fmt.Errorf("openai embeddings missing indices after retry: requested=%d model=%s", len(inputs), c.embedModel)
	}
	return out, nil
}

func (c *client) embedOnce(ctx context.Context, req embeddingsRequest) ([][]float32, error) {
	var resp embeddingsResponse
	if err := c.do(ctx, "POST", "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(req.Input))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = toFloat32(d.Embedding)
		}
	}

	// Positional fallback for providers that omit the index field.
	if hasMissingEmbeddings(out) && len(resp.Data) == len(req.Input) {
		for i := range out {
			if out[i] == nil {
				out[i] = toFloat32(resp.Data[i].Embedding)
			}
		}
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func hasMissingEmbeddings(v [][]float32) bool {
	for i := range v {
		if len(v[i]) == 0 {
			return true
		}
	}
	return false
}
