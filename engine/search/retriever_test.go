package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/graph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct {
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type indexCall struct {
	k      int
	filter graph.Filter
}

type fakeIndex struct {
	filtered   []domain.ViolationRow
	unfiltered []domain.ViolationRow
	err        error
	calls      []indexCall
}

func (f *fakeIndex) rows(filter graph.Filter) []domain.ViolationRow {
	if len(filter.Categories) == 0 && filter.Document == "" {
		return f.unfiltered
	}
	return f.filtered
}

func (f *fakeIndex) SemanticSearch(_ context.Context, _ []float32, k int, filter graph.Filter) ([]domain.ViolationRow, error) {
	f.calls = append(f.calls, indexCall{k: k, filter: filter})
	return f.rows(filter), f.err
}

func (f *fakeIndex) LexicalSearch(_ context.Context, _ string, k int, filter graph.Filter) ([]domain.ViolationRow, error) {
	f.calls = append(f.calls, indexCall{k: k, filter: filter})
	return f.rows(filter), f.err
}

func row(id string) domain.ViolationRow {
	return domain.ViolationRow{ID: id}
}

func newTestRetriever(sem *fakeIndex, lex *fakeIndex, emb Embedder) *Retriever {
	r := &Retriever{
		embedder: emb,
		semantic: sem,
		lexical:  lex,
		headroom: Headroom,
	}
	r.log = discardLogger()
	return r
}

func TestRetrieve_RunsBothIndexes(t *testing.T) {
	sem := &fakeIndex{unfiltered: []domain.ViolationRow{row("v1")}}
	lex := &fakeIndex{unfiltered: []domain.ViolationRow{row("v2")}}
	emb := &fakeEmbedder{}

	res, err := newTestRetriever(sem, lex, emb).Retrieve(context.Background(), "vượt đèn đỏ", graph.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Semantic) != 1 || len(res.Lexical) != 1 {
		t.Fatalf("unexpected lists: %+v", res)
	}
	if res.FilterFallback {
		t.Fatal("no fallback expected")
	}
	if sem.calls[0].k != Headroom {
		t.Fatalf("headroom not applied: %d", sem.calls[0].k)
	}
}

func TestRetrieve_QueryPrefixApplied(t *testing.T) {
	emb := &fakeEmbedder{}
	r := newTestRetriever(&fakeIndex{}, &fakeIndex{}, emb)

	if _, err := r.Retrieve(context.Background(), "vượt đèn đỏ", graph.Filter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb.calls) != 1 || !strings.HasPrefix(emb.calls[0], domain.QueryPrefix) {
		t.Fatalf("query prefix missing: %v", emb.calls)
	}
}

func TestRetrieve_FilterFallback(t *testing.T) {
	sem := &fakeIndex{unfiltered: []domain.ViolationRow{row("v1")}}
	lex := &fakeIndex{}
	filter := graph.Filter{Categories: []string{"Xe ô tô"}}

	res, err := newTestRetriever(sem, lex, &fakeEmbedder{}).Retrieve(context.Background(), "vượt đèn đỏ", filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.FilterFallback {
		t.Fatal("expected filter fallback flag")
	}
	if len(res.Semantic) != 1 {
		t.Fatalf("unfiltered rerun lost rows: %+v", res)
	}
	// First call filtered, second unfiltered.
	if len(sem.calls) != 2 || len(sem.calls[1].filter.Categories) != 0 {
		t.Fatalf("expected filtered then unfiltered calls: %+v", sem.calls)
	}
}

func TestRetrieve_EmptyUnfilteredIsNotError(t *testing.T) {
	res, err := newTestRetriever(&fakeIndex{}, &fakeIndex{}, &fakeEmbedder{}).
		Retrieve(context.Background(), "vượt đèn đỏ", graph.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Empty() || res.FilterFallback {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("ollama down")}
	_, err := newTestRetriever(&fakeIndex{}, &fakeIndex{}, emb).
		Retrieve(context.Background(), "vượt đèn đỏ", graph.Filter{})
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestRetrieve_StoreError(t *testing.T) {
	lex := &fakeIndex{err: errors.New("neo4j down")}
	_, err := newTestRetriever(&fakeIndex{}, lex, &fakeEmbedder{}).
		Retrieve(context.Background(), "vượt đèn đỏ", graph.Filter{})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
