package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sync"
	"testing"

	"github.com/yungbote/conceptlab-backend/internal/pkg/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// recordingTransport captures every request body and serves scripted
// responses in order, repeating the last one.
type recordingTransport struct {
	mu        sync.Mutex
	t         *testing.T
	bodies    []embeddingsRequest
	responses []*http.Response
	calls     int
}

func (rt *recordingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var req embeddingsRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rt.t.Fatalf("decode request body: %v", err)
		}
	}
	rt.bodies = append(rt.bodies, req)

	idx := rt.calls
	if idx >= len(rt.responses) {
		idx = len(rt.responses) - 1
	}
	rt.calls++
	return rt.responses[idx], nil
}

func newTestClient(t *testing.T, transport http.RoundTripper) *client {
	t.Helper()
	return &client{
		log:         newTestLogger(t),
		baseURL:     "https://api.openai.test",
		apiKey:      "test-key",
		embedModel:  "text-embedding-3-small",
		httpClient:  &http.Client{Transport: transport},
		maxRetries:  2,
		batchSize:   16,
		concurrency: 2,
	}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

func embeddingsOKResponse(t *testing.T, data []map[string]any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func TestEmbedRequestShapeAndIndexMapping(t *testing.T) {
	var captured embeddingsRequest
	c := newTestClient(t, roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method: want=%s got=%s", http.MethodPost, r.Method)
		}
		if r.URL.Path != "/v1/embeddings" {
			t.Fatalf("path: want=%q got=%q", "/v1/embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization: got=%q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		// Out-of-order data entries must land back on their inputs.
		return embeddingsOKResponse(t, []map[string]any{
			{"index": 1, "embedding": []float64{2, 2}},
			{"index": 0, "embedding": []float64{1, 1}},
			{"index": 2, "embedding": []float64{3, 3}},
		}), nil
	}))

	got, err := c.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if captured.Model != "text-embedding-3-small" {
		t.Fatalf("request model: got=%q", captured.Model)
	}
	if !reflect.DeepEqual(captured.Input, []string{"one", "two", "three"}) {
		t.Fatalf("request input: got=%v", captured.Input)
	}
	want := [][]float32{{1, 1}, {2, 2}, {3, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("vectors: want=%v got=%v", want, got)
	}
}

func TestEmbedSplitsIntoChunks(t *testing.T) {
	rt := &recordingTransport{t: t, responses: []*http.Response{
		embeddingsOKResponse(t, []map[string]any{
			{"index": 0, "embedding": []float64{1}},
			{"index": 1, "embedding": []float64{2}},
		}),
		embeddingsOKResponse(t, []map[string]any{
			{"index": 0, "embedding": []float64{3}},
			{"index": 1, "embedding": []float64{4}},
		}),
		embeddingsOKResponse(t, []map[string]any{
			{"index": 0, "embedding": []float64{5}},
		}),
	}}
	c := newTestClient(t, rt)
	c.batchSize = 2
	c.concurrency = 1

	got, err := c.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if rt.calls != 3 {
		t.Fatalf("requests: want=3 got=%d", rt.calls)
	}
	if !reflect.DeepEqual(rt.bodies[0].Input, []string{"a", "b"}) ||
		!reflect.DeepEqual(rt.bodies[1].Input, []string{"c", "d"}) ||
		!reflect.DeepEqual(rt.bodies[2].Input, []string{"e"}) {
		t.Fatalf("chunked inputs: got=%v", rt.bodies)
	}
	want := [][]float32{{1}, {2}, {3}, {4}, {5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("vectors: want=%v got=%v", want, got)
	}
}

func TestEmbedRetriesRateLimit(t *testing.T) {
	throttled := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"0"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":{"message":"rate limited"}}`))),
	}
	rt := &recordingTransport{t: t, responses: []*http.Response{
		throttled,
		embeddingsOKResponse(t, []map[string]any{
			{"index": 0, "embedding": []float64{1, 2}},
		}),
	}}
	c := newTestClient(t, rt)
	c.maxRetries = 1

	got, err := c.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if rt.calls != 2 {
		t.Fatalf("requests: want=2 got=%d", rt.calls)
	}
	if !reflect.DeepEqual(got, [][]float32{{1, 2}}) {
		t.Fatalf("vectors: got=%v", got)
	}
}

func TestEmbedDoesNotRetryClientError(t *testing.T) {
	rt := &recordingTransport{t: t, responses: []*http.Response{
		{
			StatusCode: http.StatusBadRequest,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":{"message":"bad input"}}`))),
		},
	}}
	c := newTestClient(t, rt)

	_, err := c.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("Embed: expected error, got nil")
	}
	var httpErr *openAIHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("error: want openai http 400, got %v", err)
	}
	if rt.calls != 1 {
		t.Fatalf("requests: want=1 got=%d", rt.calls)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	rt := &recordingTransport{t: t}
	c := newTestClient(t, rt)

	got, err := c.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("vectors: want empty, got=%v", got)
	}
	if rt.calls != 0 {
		t.Fatalf("requests: want=0 got=%d", rt.calls)
	}
}

func TestEmbedBlankInputsSentAsSpace(t *testing.T) {
	rt := &recordingTransport{t: t, responses: []*http.Response{
		embeddingsOKResponse(t, []map[string]any{
			{"index": 0, "embedding": []float64{1}},
			{"index": 1, "embedding": []float64{2}},
		}),
	}}
	c := newTestClient(t, rt)

	if _, err := c.Embed(context.Background(), []string{"hello", "   "}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(rt.bodies[0].Input, []string{"hello", " "}) {
		t.Fatalf("cleaned inputs: got=%v", rt.bodies[0].Input)
	}
}

func TestEmbedPositionalFallback(t *testing.T) {
	// Indices outside the batch are dropped, forcing the positional path.
	rt := &recordingTransport{t: t, responses: []*http.Response{
		embeddingsOKResponse(t, []map[string]any{
			{"index": -1, "embedding": []float64{1}},
			{"index": -1, "embedding": []float64{2}},
		}),
	}}
	c := newTestClient(t, rt)

	got, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if !reflect.DeepEqual(got, [][]float32{{1}, {2}}) {
		t.Fatalf("vectors: want positional fill, got=%v", got)
	}
	if rt.calls != 1 {
		t.Fatalf("requests: want=1 got=%d", rt.calls)
	}
}
