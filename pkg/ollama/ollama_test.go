package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestEmbedClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "bge-m3" || req.Prompt != "query: vượt đèn đỏ" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResp{Embedding: []float64{0.25, -0.5}})
	}))
	defer srv.Close()

	c := NewEmbedClient(srv.URL, "bge-m3")
	vec, err := c.Embed(context.Background(), "query: vượt đèn đỏ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.25 || vec[1] != -0.5 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestEmbedClient_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewEmbedClient(srv.URL, "bge-m3").Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGenerateClient_JSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Format != "json" || req.Stream {
			t.Errorf("expected non-streaming json mode: %+v", req)
		}
		if req.System == "" {
			t.Error("system prompt missing")
		}
		json.NewEncoder(w).Encode(ollamaGenerateResp{Response: `{"category": null, "intent": null}`})
	}))
	defer srv.Close()

	out, err := NewGenerateClient(srv.URL, "qwen2.5:7b").GenerateJSON(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"category": null, "intent": null}` {
		t.Fatalf("unexpected output: %q", out)
	}
}

type countingEmbedder struct {
	calls atomic.Int64
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{1}, nil
}

func TestCachedEmbedder_Hit(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	for i := 0; i < 3; i++ {
		if _, err := c.Embed(context.Background(), "same text"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", inner.calls.Load())
	}
	if c.Len() != 1 {
		t.Fatalf("cache size: %d", c.Len())
	}
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	c := NewCachedEmbedder(inner, 10)

	c.Embed(context.Background(), "x")
	c.Embed(context.Background(), "x")
	if inner.calls.Load() != 2 {
		t.Fatalf("errors must not be cached, got %d calls", inner.calls.Load())
	}
}

func TestCachedEmbedder_Flush(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	c.Embed(context.Background(), "x")
	c.Flush()
	if c.Len() != 0 {
		t.Fatal("flush did not clear the cache")
	}
	c.Embed(context.Background(), "x")
	if inner.calls.Load() != 2 {
		t.Fatalf("expected refetch after flush, got %d calls", inner.calls.Load())
	}
}

func TestCachedEmbedder_CapacityResets(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 2)

	c.Embed(context.Background(), "a")
	c.Embed(context.Background(), "b")
	c.Embed(context.Background(), "c")
	if c.Len() != 1 {
		t.Fatalf("expected reset at capacity, size %d", c.Len())
	}
}
