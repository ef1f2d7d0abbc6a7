// Package qa orchestrates the answer pipeline: validate, extract intent,
// retrieve from both indexes, fuse, and assemble cited answers from the
// knowledge graph.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/fusion"
	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/engine/search"
	"github.com/trafficlawvn/lawqa/pkg/metrics"
)

// Kind tags the outcome of an Ask call.
type Kind string

const (
	// KindFound means at least one matching violation was retrieved.
	KindFound Kind = "found"
	// KindNoViolation means the question describes lawful behavior.
	KindNoViolation Kind = "no_violation"
	// KindNoAnswer means retrieval produced nothing usable.
	KindNoAnswer Kind = "no_definitive_answer"
)

// Extractor turns a question into structured retrieval signals.
type Extractor interface {
	Extract(ctx context.Context, question string) (domain.Extraction, error)
}

// Retriever runs the dual-index retrieval stage.
type Retriever interface {
	Retrieve(ctx context.Context, text string, filter graph.Filter) (search.Result, error)
}

// GraphReader is the graph access the orchestrator needs.
type GraphReader interface {
	GetChain(ctx context.Context, behaviorID string) (domain.Chain, error)
	FindSimilar(ctx context.Context, behaviorID string, limit int) ([]graph.SimilarBehavior, error)
	FindByKeywords(ctx context.Context, keywords []string) ([]domain.Behavior, error)
}

// Options tunes the pipeline.
type Options struct {
	// TopK is the number of cases in a response.
	TopK int
	// FusionK is the RRF smoothing constant.
	FusionK int
	// Bands sets the confidence thresholds.
	Bands Bands
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = 3
	}
	if o.FusionK <= 0 {
		o.FusionK = fusion.DefaultK
	}
	o.Bands = o.Bands.withDefaults()
	return o
}

// Service answers traffic-law questions.
type Service struct {
	extractor Extractor
	retriever Retriever
	reader    GraphReader
	opts      Options
	log       *slog.Logger
	met       *metrics.Registry
}

// New creates a Service.
func New(extractor Extractor, retriever Retriever, reader GraphReader, opts Options, log *slog.Logger, met *metrics.Registry) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		extractor: extractor,
		retriever: retriever,
		reader:    reader,
		opts:      opts.withDefaults(),
		log:       log,
		met:       met,
	}
}

// Ask runs the full pipeline for one question. Store failures are returned
// as errors; extractor failures degrade to keyword search instead.
func (s *Service) Ask(ctx context.Context, q domain.Query) (Response, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return Response{}, err
	}
	s.count("qa_questions_total")
	defer s.observe("qa_ask_seconds", time.Now())

	extractStart := time.Now()
	ext, err := s.extractor.Extract(ctx, q.Text)
	s.observe("qa_extract_seconds", extractStart)
	if err != nil {
		if !errors.Is(err, domain.ErrExtraction) {
			return Response{}, err
		}
		s.log.Warn("qa: extraction failed, degrading to keyword search", "error", err)
		s.count("qa_degraded_total")
		return s.keywordFallback(ctx, q)
	}

	if !ext.IsViolation() {
		s.count("qa_lawful_total")
		return Response{
			Kind:       KindNoViolation,
			Question:   q.Text,
			Extraction: ext,
			Confidence: ConfidenceNone,
		}, nil
	}

	text := ext.Intent
	if text == "" {
		text = q.Text
	}
	filter := graph.Filter{Categories: ext.Categories, Document: q.Document}

	retrieveStart := time.Now()
	res, err := s.retriever.Retrieve(ctx, text, filter)
	s.observe("qa_retrieve_seconds", retrieveStart)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			s.log.Warn("qa: embedding failed, degrading to keyword search", "error", err)
			s.count("qa_degraded_total")
			return s.keywordFallback(ctx, q)
		}
		return Response{}, fmt.Errorf("qa: retrieve: %w", err)
	}

	fused := fusion.Fuse(res.Semantic, res.Lexical, fusion.Options{K: s.opts.FusionK})
	if len(fused) == 0 {
		s.count("qa_no_answer_total")
		return Response{
			Kind:           KindNoAnswer,
			Question:       q.Text,
			Extraction:     ext,
			Confidence:     ConfidenceNone,
			FilterFallback: res.FilterFallback,
			Suggestions:    suggestions(ext),
		}, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}
	resp := s.assemble(ctx, q.Text, ext, fusion.Top(fused, topK))
	resp.FilterFallback = res.FilterFallback
	s.count("qa_answered_total")
	return resp, nil
}

// keywordFallback is the degraded path when the extractor or the embedding
// provider is down: plain keyword overlap against behavior keyword sets.
func (s *Service) keywordFallback(ctx context.Context, q domain.Query) (Response, error) {
	keywords := domain.ExtractKeywords(q.Text)
	if len(keywords) == 0 {
		return Response{
			Kind:        KindNoAnswer,
			Question:    q.Text,
			Confidence:  ConfidenceNone,
			Degraded:    true,
			Suggestions: suggestions(domain.Extraction{}),
		}, nil
	}

	behaviors, err := s.reader.FindByKeywords(ctx, keywords)
	if err != nil {
		return Response{}, fmt.Errorf("qa: keyword fallback: %w", err)
	}

	type scored struct {
		behavior domain.Behavior
		overlap  float64
	}
	matches := make([]scored, 0, len(behaviors))
	for _, b := range behaviors {
		if w := domain.Jaccard(keywords, b.Keywords); w > 0 {
			matches = append(matches, scored{behavior: b, overlap: w})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].overlap != matches[j].overlap {
			return matches[i].overlap > matches[j].overlap
		}
		return matches[i].behavior.ID < matches[j].behavior.ID
	})

	if len(matches) == 0 {
		return Response{
			Kind:        KindNoAnswer,
			Question:    q.Text,
			Confidence:  ConfidenceNone,
			Degraded:    true,
			Suggestions: suggestions(domain.Extraction{}),
		}, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	cases := make([]Case, 0, len(matches))
	for _, m := range matches {
		c := s.caseFromChain(ctx, m.behavior.ID, m.overlap)
		if c == nil {
			continue
		}
		cases = append(cases, *c)
	}
	if len(cases) == 0 {
		return Response{
			Kind:        KindNoAnswer,
			Question:    q.Text,
			Confidence:  ConfidenceNone,
			Degraded:    true,
			Suggestions: suggestions(domain.Extraction{}),
		}, nil
	}
	return Response{
		Kind:       KindFound,
		Question:   q.Text,
		Cases:      cases,
		Confidence: ConfidenceLow,
		Degraded:   true,
	}, nil
}

// caseFromChain reconstructs one case via the graph, returning nil when the
// behavior has vanished since retrieval.
func (s *Service) caseFromChain(ctx context.Context, behaviorID string, score float64) *Case {
	chain, err := s.reader.GetChain(ctx, behaviorID)
	if err != nil {
		s.log.Warn("qa: chain reconstruction failed", "behavior_id", behaviorID, "error", err)
		return nil
	}
	c := caseFromChain(chain, score)
	return &c
}

func (s *Service) count(name string) {
	if s.met != nil {
		s.met.Counter(name, "").Inc()
	}
}

// observe records a stage latency. Use with defer:
//
//	defer s.observe("qa_stage_seconds", time.Now())
func (s *Service) observe(name string, start time.Time) {
	if s.met != nil {
		s.met.Histogram(name, "", nil).Observe(time.Since(start).Seconds())
	}
}
