// Package search runs the dual-index retrieval stage: a vector query and a
// BM25 fulltext query issued concurrently against the store, each returning
// an independently ranked candidate list for fusion.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/pkg/fn"
)

// Headroom is how many candidates each index returns before fusion. Wider
// than the final answer count so fusion can promote items ranked low in one
// list but high in the other.
const Headroom = 50

// Embedder produces a query vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticIndex answers vector queries. graph.Store is the default; the
// Qdrant mirror satisfies the same interface.
type SemanticIndex interface {
	SemanticSearch(ctx context.Context, embedding []float32, k int, filter graph.Filter) ([]domain.ViolationRow, error)
}

// LexicalIndex answers fulltext queries.
type LexicalIndex interface {
	LexicalSearch(ctx context.Context, text string, k int, filter graph.Filter) ([]domain.ViolationRow, error)
}

// Result carries both ranked lists plus retrieval flags.
type Result struct {
	Semantic []domain.ViolationRow
	Lexical  []domain.ViolationRow
	// FilterFallback is set when the filtered retrieval came back empty and
	// the lists are from an unfiltered re-run.
	FilterFallback bool
}

// Empty reports whether both lists are empty.
func (r Result) Empty() bool {
	return len(r.Semantic) == 0 && len(r.Lexical) == 0
}

// Retriever coordinates the two index queries.
type Retriever struct {
	embedder Embedder
	semantic SemanticIndex
	lexical  LexicalIndex
	headroom int
	log      *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithSemanticIndex replaces the semantic side, e.g. with the Qdrant mirror.
func WithSemanticIndex(idx SemanticIndex) Option {
	return func(r *Retriever) { r.semantic = idx }
}

// WithHeadroom overrides the per-index candidate count.
func WithHeadroom(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.headroom = k
		}
	}
}

// New creates a Retriever using the graph store for both indexes.
func New(embedder Embedder, store *graph.Store, log *slog.Logger, opts ...Option) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	r := &Retriever{
		embedder: embedder,
		semantic: store,
		lexical:  store,
		headroom: Headroom,
		log:      log,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve embeds the text and runs both index queries concurrently. When a
// filtered run returns nothing from either index, it re-runs unfiltered and
// flags the result; an empty unfiltered result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, text string, filter graph.Filter) (Result, error) {
	embedding, err := r.embedder.Embed(ctx, domain.QueryPrefix+text)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}

	res, err := r.run(ctx, text, embedding, filter)
	if err != nil {
		return Result{}, err
	}

	filtered := len(filter.Categories) > 0 || filter.Document != ""
	if filtered && res.Empty() {
		r.log.Info("search: filtered retrieval empty, retrying unfiltered",
			"categories", filter.Categories, "document", filter.Document)
		res, err = r.run(ctx, text, embedding, graph.Filter{})
		if err != nil {
			return Result{}, err
		}
		res.FilterFallback = true
	}
	return res, nil
}

func (r *Retriever) run(ctx context.Context, text string, embedding []float32, filter graph.Filter) (Result, error) {
	results := fn.FanOut(
		func() fn.Result[[]domain.ViolationRow] {
			rows, err := r.semantic.SemanticSearch(ctx, embedding, r.headroom, filter)
			if err != nil {
				return fn.Err[[]domain.ViolationRow](err)
			}
			return fn.Ok(rows)
		},
		func() fn.Result[[]domain.ViolationRow] {
			rows, err := r.lexical.LexicalSearch(ctx, text, r.headroom, filter)
			if err != nil {
				return fn.Err[[]domain.ViolationRow](err)
			}
			return fn.Ok(rows)
		},
	)

	semantic, err := results[0].Unwrap()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	lexical, err := results[1].Unwrap()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return Result{Semantic: semantic, Lexical: lexical}, nil
}
