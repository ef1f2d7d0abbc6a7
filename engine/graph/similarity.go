package graph

import (
	"context"
	"fmt"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

// DefaultSimilarityThreshold is the minimum Jaccard overlap for a
// SIMILAR_TO edge.
const DefaultSimilarityThreshold = 0.3

// SimilarBehavior is a related behavior with its edge weight.
type SimilarBehavior struct {
	Behavior domain.Behavior
	Weight   float64
}

const similarQuery = `
MATCH (b:Behavior {id: $id})-[r:SIMILAR_TO]->(o:Behavior)
RETURN o, r.weight AS weight
ORDER BY weight DESC
LIMIT $limit`

// FindSimilar returns behaviors linked to the given one via SIMILAR_TO edges,
// highest weight first.
func (s *Store) FindSimilar(ctx context.Context, behaviorID string, limit int) ([]SimilarBehavior, error) {
	if limit <= 0 {
		limit = 5
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, similarQuery, map[string]any{"id": behaviorID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("graph: find similar: %w", err)
	}
	var out []SimilarBehavior
	for result.Next(ctx) {
		rec := result.Record()
		b, err := behaviorFromRecord(rec, "o")
		if err != nil {
			return nil, err
		}
		out = append(out, SimilarBehavior{Behavior: b, Weight: recFloat(rec, "weight")})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: find similar: %w", err)
	}
	return out, nil
}

// similarityEdge is one pair above the threshold, written in both directions.
type similarityEdge struct {
	A, B   string
	Weight float64
}

// RebuildSimilarity recomputes all SIMILAR_TO edges from pairwise keyword
// overlap. Existing edges are dropped first so stale pairs do not survive a
// corpus change. Returns the number of edges written (one per direction).
func (s *Store) RebuildSimilarity(ctx context.Context, threshold float64) (int, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	behaviors, err := s.ListBehaviors(ctx)
	if err != nil {
		return 0, err
	}

	var edges []similarityEdge
	for i := 0; i < len(behaviors); i++ {
		for j := i + 1; j < len(behaviors); j++ {
			w := domain.Jaccard(behaviors[i].Keywords, behaviors[j].Keywords)
			if w >= threshold {
				edges = append(edges, similarityEdge{A: behaviors[i].ID, B: behaviors[j].ID, Weight: w})
			}
		}
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err = sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (:Behavior)-[r:SIMILAR_TO]->(:Behavior) DELETE r`, nil); err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			return nil, nil
		}
		pairs := make([]map[string]any, 0, len(edges))
		for _, e := range edges {
			pairs = append(pairs, map[string]any{"a": e.A, "b": e.B, "weight": e.Weight})
		}
		cypher := `UNWIND $pairs AS pair
		           MATCH (a:Behavior {id: pair.a}), (b:Behavior {id: pair.b})
		           MERGE (a)-[r1:SIMILAR_TO]->(b) SET r1.weight = pair.weight
		           MERGE (b)-[r2:SIMILAR_TO]->(a) SET r2.weight = pair.weight`
		_, err := tx.Run(ctx, cypher, map[string]any{"pairs": pairs})
		return nil, err
	})
	if err != nil {
		return 0, fmt.Errorf("graph: rebuild similarity: %w", err)
	}
	return len(edges) * 2, nil
}

// AcquireJobLock claims the named job lock node. Returns false when another
// run holds it. The lock is a graph node so concurrent batch jobs on
// different hosts exclude each other through the store itself.
func (s *Store) AcquireJobLock(ctx context.Context, name string) (bool, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	acquired, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MERGE (l:JobLock {name: $name})
		           WITH l
		           WHERE l.running IS NULL OR l.running = false
		           SET l.running = true, l.started_at = datetime()
		           RETURN l.name AS name`
		result, err := tx.Run(ctx, cypher, map[string]any{"name": name})
		if err != nil {
			return false, err
		}
		return result.Next(ctx), result.Err()
	})
	if err != nil {
		return false, fmt.Errorf("graph: acquire job lock: %w", err)
	}
	got, _ := acquired.(bool)
	return got, nil
}

// ReleaseJobLock releases the named job lock.
func (s *Store) ReleaseJobLock(ctx context.Context, name string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MATCH (l:JobLock {name: $name}) SET l.running = false`
		_, err := tx.Run(ctx, cypher, map[string]any{"name": name})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: release job lock: %w", err)
	}
	return nil
}
