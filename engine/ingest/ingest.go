// Package ingest loads the violation corpus from JSON, embeds descriptions
// and merges everything into the knowledge graph.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/pkg/fn"
)

// Record is one violation entry in the corpus file.
type Record struct {
	ID                  string   `json:"id"`
	Description         string   `json:"description"`
	Category            string   `json:"category"`
	FineMin             int64    `json:"fine_min"`
	FineMax             int64    `json:"fine_max"`
	Currency            string   `json:"currency"`
	FineText            string   `json:"fine_text"`
	Document            string   `json:"document"`
	Article             string   `json:"article"`
	Section             string   `json:"section"`
	FullReference       string   `json:"full_reference"`
	AdditionalPenalties []string `json:"additional_penalties"`
}

// Load reads and validates a corpus file. Records without a description are
// rejected; records without an ID get a deterministic one derived from the
// description, so re-ingesting the same file is idempotent.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	for i := range records {
		records[i].Description = strings.TrimSpace(records[i].Description)
		if records[i].Description == "" {
			return nil, fmt.Errorf("ingest: record %d: empty description", i)
		}
		if records[i].ID == "" {
			records[i].ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(records[i].Description)).String()
		}
		if records[i].FineMin > records[i].FineMax {
			return nil, fmt.Errorf("ingest: record %s: fine_min %d exceeds fine_max %d",
				records[i].ID, records[i].FineMin, records[i].FineMax)
		}
	}
	return records, nil
}

// GraphWriter is the graph access ingest needs.
type GraphWriter interface {
	VerifyIndexes(ctx context.Context) error
	UpsertViolations(ctx context.Context, batch []graph.Upsert) error
}

// Embedder produces passage vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Mirror receives a copy of the rows, e.g. the Qdrant store.
type Mirror interface {
	Upsert(ctx context.Context, rows []domain.ViolationRow, embeddings [][]float32) error
}

// Ingestor drives one corpus load.
type Ingestor struct {
	store    GraphWriter
	embedder Embedder
	mirror   Mirror
	limiter  *rate.Limiter
	retry    fn.RetryOpts
	workers  int
	batch    int
	log      *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithMirror also upserts rows into a secondary vector store.
func WithMirror(m Mirror) Option {
	return func(i *Ingestor) { i.mirror = m }
}

// WithRateLimit caps embedding calls per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(i *Ingestor) { i.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithWorkers sets embedding concurrency.
func WithWorkers(n int) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.workers = n
		}
	}
}

// New creates an Ingestor.
func New(store GraphWriter, embedder Embedder, log *slog.Logger, opts ...Option) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	ing := &Ingestor{
		store:    store,
		embedder: embedder,
		retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 250 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Jitter:      true,
		},
		workers: 4,
		batch:   100,
		log:     log,
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

type embedded struct {
	upsert graph.Upsert
	record Record
	vector []float32
}

// Run embeds all records and merges them into the graph in batches. It
// refuses to run against a store missing the retrieval indexes.
func (i *Ingestor) Run(ctx context.Context, records []Record) (int, error) {
	if err := i.store.VerifyIndexes(ctx); err != nil {
		return 0, err
	}

	// Each record goes through the same stage: acquire a rate token, embed
	// with retry, fold into the upsert shape. A retried attempt re-acquires
	// its token so backoff respects the embed rate limit.
	embedOne := fn.RetryStage(i.retry, fn.Stage[Record, embedded](func(ctx context.Context, r Record) fn.Result[embedded] {
		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				return fn.Err[embedded](err)
			}
		}
		vec, err := i.embedder.Embed(ctx, domain.PassagePrefix+r.Description)
		if err != nil {
			return fn.Errf[embedded]("embed %s: %w", r.ID, err)
		}
		return fn.Ok(embedded{upsert: toUpsert(r, vec), record: r, vector: vec})
	}))
	embedAll := fn.BatchStage(i.workers, fn.TracedStage("ingest.embed", embedOne))

	items, err := embedAll(ctx, records).Unwrap()
	if err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}

	for n, chunk := range fn.Chunk(items, i.batch) {
		batch := fn.Map(chunk, func(e embedded) graph.Upsert { return e.upsert })
		if err := i.store.UpsertViolations(ctx, batch); err != nil {
			return 0, err
		}
		i.log.Info("ingest: batch merged", "batch", n, "size", len(batch))
	}

	if i.mirror != nil {
		rows := make([]domain.ViolationRow, len(items))
		vectors := make([][]float32, len(items))
		for idx, item := range items {
			rows[idx] = toRow(item.record)
			vectors[idx] = item.vector
		}
		if err := i.mirror.Upsert(ctx, rows, vectors); err != nil {
			return 0, fmt.Errorf("ingest: mirror: %w", err)
		}
	}
	return len(items), nil
}

func toUpsert(r Record, vec []float32) graph.Upsert {
	return graph.Upsert{
		Behavior: domain.Behavior{
			ID:          r.ID,
			Description: r.Description,
			Category:    r.Category,
			Keywords:    domain.ExtractKeywords(r.Description),
		},
		Embedding: vec,
		Penalty: domain.Penalty{
			FineMin:  r.FineMin,
			FineMax:  r.FineMax,
			Currency: r.Currency,
			FineText: r.FineText,
		},
		Article: domain.LawArticle{
			Document:      r.Document,
			Article:       r.Article,
			Section:       r.Section,
			FullReference: r.FullReference,
		},
		Measures: r.AdditionalPenalties,
	}
}

func toRow(r Record) domain.ViolationRow {
	return domain.ViolationRow{
		ID:          r.ID,
		Description: r.Description,
		Category:    r.Category,
		FineMin:     r.FineMin,
		FineMax:     r.FineMax,
		Document:    r.Document,
		Article:     r.Article,
		Section:     r.Section,
		FullRef:     r.FullReference,
		Measures:    r.AdditionalPenalties,
	}
}
