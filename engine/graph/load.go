package graph

import (
	"context"
	"fmt"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

// Upsert is one fully-resolved violation ready to be merged into the graph.
type Upsert struct {
	Behavior  domain.Behavior
	Embedding []float32
	Penalty   domain.Penalty
	Article   domain.LawArticle
	Measures  []string
}

// Penalty and article nodes are merged on their value properties, so two
// behaviors carrying the same fine range share one Penalty node.
const upsertQuery = `
UNWIND $rows AS row
MERGE (b:Behavior {id: row.id})
SET b.description = row.description,
    b.category = row.category,
    b.keywords = row.keywords,
    b.embedding = row.embedding
MERGE (v:VehicleType {name: row.category})
MERGE (b)-[:APPLIES_TO]->(v)
MERGE (p:Penalty {fine_min: row.fine_min, fine_max: row.fine_max, currency: row.currency})
SET p.fine_text = row.fine_text
MERGE (b)-[:LEADS_TO_PENALTY]->(p)
FOREACH (_ IN CASE WHEN row.document <> '' THEN [1] ELSE [] END |
  MERGE (law:LawArticle {document: row.document, article: row.article, section: row.section})
  SET law.full_ref = row.full_reference
  MERGE (p)-[:BASED_ON_LAW]->(law)
)
FOREACH (t IN row.measures |
  MERGE (m:AdditionalMeasure {text: t})
  MERGE (p)-[:HAS_ADDITIONAL]->(m)
)`

// UpsertViolations merges a batch of violations in one write transaction.
func (s *Store) UpsertViolations(ctx context.Context, batch []Upsert) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(batch))
	for _, u := range batch {
		rows = append(rows, map[string]any{
			"id":             u.Behavior.ID,
			"description":    u.Behavior.Description,
			"category":       u.Behavior.Category,
			"keywords":       u.Behavior.Keywords,
			"embedding":      u.Embedding,
			"fine_min":       u.Penalty.FineMin,
			"fine_max":       u.Penalty.FineMax,
			"currency":       u.Penalty.Currency,
			"fine_text":      u.Penalty.FineText,
			"document":       u.Article.Document,
			"article":        u.Article.Article,
			"section":        u.Article.Section,
			"full_reference": u.Article.FullReference,
			"measures":       u.Measures,
		})
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		_, err := tx.Run(ctx, upsertQuery, map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: upsert violations: %w", err)
	}
	return nil
}

// VerifyIndexes checks that the vector and fulltext indexes exist. Index
// creation is administrative; ingest refuses to run against a store missing
// them rather than creating them itself.
func (s *Store) VerifyIndexes(ctx context.Context) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `SHOW INDEXES YIELD name WHERE name IN $names RETURN collect(name) AS names`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"names": []string{VectorIndexName, FulltextIndexName},
	})
	if err != nil {
		return fmt.Errorf("graph: verify indexes: %w", err)
	}
	if !result.Next(ctx) {
		return fmt.Errorf("graph: verify indexes: empty result")
	}
	found := recStrs(result.Record(), "names")
	present := make(map[string]bool, len(found))
	for _, name := range found {
		present[name] = true
	}
	for _, want := range []string{VectorIndexName, FulltextIndexName} {
		if !present[want] {
			return fmt.Errorf("graph: verify indexes: index %q missing", want)
		}
	}
	return nil
}
