// Package graph provides Neo4j knowledge-graph operations for the traffic-law
// corpus: Behavior nodes linked to Penalty, LawArticle, AdditionalMeasure and
// VehicleType nodes, plus the weighted SIMILAR_TO edges written by the offline
// similarity job.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/trafficlawvn/lawqa/engine/domain"
)

// Index names on the external store. Creation is an administrative action;
// the engine only queries (and, in ingest, verifies) them.
const (
	VectorIndexName   = "behavior_index"
	FulltextIndexName = "behavior_text_index"
)

// CypherResult is the minimal read interface over a query result.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner executes a single parameterized Cypher statement.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a session capable of both autocommit reads and managed
// write transactions.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens sessions against the store. The driver-backed opener is
// the production implementation; tests supply fakes.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// Store provides typed graph operations.
type Store struct {
	opener SessionOpener
}

// New creates a Store backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{opener: &driverOpener{driver: driver}}
}

// NewWithOpener creates a Store with a custom session opener. Used by tests.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener}
}

// driverOpener adapts neo4j.DriverWithContext to SessionOpener.
type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o *driverOpener) OpenSession(ctx context.Context) CypherSession {
	return &driverSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// driverSession adapts neo4j.SessionWithContext to CypherSession.
type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&txRunner{tx: tx})
	})
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

// txRunner adapts neo4j.ManagedTransaction to CypherRunner.
type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (r *txRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return r.tx.Run(ctx, cypher, params)
}

// GetBehavior returns one Behavior node by ID.
func (s *Store) GetBehavior(ctx context.Context, id string) (domain.Behavior, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (b:Behavior {id: $id}) RETURN b`, map[string]any{"id": id})
	if err != nil {
		return domain.Behavior{}, fmt.Errorf("graph: get behavior: %w", err)
	}
	if !result.Next(ctx) {
		return domain.Behavior{}, domain.ErrBehaviorNotFound
	}
	return behaviorFromRecord(result.Record(), "b")
}

// ListBehaviors returns Behavior nodes with their keyword sets. Used by the
// similarity batch job and the degraded keyword-search path.
func (s *Store) ListBehaviors(ctx context.Context) ([]domain.Behavior, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, `MATCH (b:Behavior) RETURN b ORDER BY b.id`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: list behaviors: %w", err)
	}
	var out []domain.Behavior
	for result.Next(ctx) {
		b, err := behaviorFromRecord(result.Record(), "b")
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: list behaviors: %w", err)
	}
	return out, nil
}

// FindByCategory returns Behaviors whose VehicleType is in the given set.
func (s *Store) FindByCategory(ctx context.Context, categories []string) ([]domain.Behavior, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (b:Behavior)-[:APPLIES_TO]->(v:VehicleType)
	           WHERE v.name IN $categories
	           RETURN b ORDER BY b.id`
	result, err := sess.Run(ctx, cypher, map[string]any{"categories": categories})
	if err != nil {
		return nil, fmt.Errorf("graph: find by category: %w", err)
	}
	var out []domain.Behavior
	for result.Next(ctx) {
		b, err := behaviorFromRecord(result.Record(), "b")
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, result.Err()
}

// FindByKeywords returns Behaviors sharing at least one keyword with the given
// set. This is the degraded search path when the extractor or the embedding
// provider is unavailable; callers score the overlap themselves.
func (s *Store) FindByKeywords(ctx context.Context, keywords []string) ([]domain.Behavior, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (b:Behavior)
	           WHERE any(k IN b.keywords WHERE k IN $keywords)
	           RETURN b ORDER BY b.id`
	result, err := sess.Run(ctx, cypher, map[string]any{"keywords": keywords})
	if err != nil {
		return nil, fmt.Errorf("graph: find by keywords: %w", err)
	}
	var out []domain.Behavior
	for result.Next(ctx) {
		b, err := behaviorFromRecord(result.Record(), "b")
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, result.Err()
}
