package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

// Filter narrows retrieval server-side. Empty fields mean no restriction.
type Filter struct {
	Categories []string
	Document   string
}

const semanticQuery = `
CALL db.index.vector.queryNodes('` + VectorIndexName + `', $k, $embedding)
YIELD node, score
OPTIONAL MATCH (node)-[:APPLIES_TO]->(veh:VehicleType)
OPTIONAL MATCH (node)-[:LEADS_TO_PENALTY]->(p:Penalty)
OPTIONAL MATCH (p)-[:BASED_ON_LAW]->(law:LawArticle)
WITH node, score, veh, p, law
WHERE (size($categories) = 0 OR veh.name IN $categories)
  AND ($document = '' OR law.document = $document)
OPTIONAL MATCH (p)-[:HAS_ADDITIONAL]->(m:AdditionalMeasure)
RETURN node.id AS id,
       node.description AS description,
       coalesce(veh.name, node.category, '') AS category,
       coalesce(p.fine_min, 0) AS fine_min,
       coalesce(p.fine_max, 0) AS fine_max,
       coalesce(law.document, '') AS document,
       coalesce(law.article, '') AS article,
       coalesce(law.section, '') AS section,
       coalesce(law.full_ref, '') AS full_reference,
       collect(DISTINCT m.text) AS measures,
       score AS score
ORDER BY score DESC`

const lexicalQuery = `
CALL db.index.fulltext.queryNodes('` + FulltextIndexName + `', $text)
YIELD node, score
OPTIONAL MATCH (node)-[:APPLIES_TO]->(veh:VehicleType)
OPTIONAL MATCH (node)-[:LEADS_TO_PENALTY]->(p:Penalty)
OPTIONAL MATCH (p)-[:BASED_ON_LAW]->(law:LawArticle)
WITH node, score, veh, p, law
WHERE (size($categories) = 0 OR veh.name IN $categories)
  AND ($document = '' OR law.document = $document)
OPTIONAL MATCH (p)-[:HAS_ADDITIONAL]->(m:AdditionalMeasure)
RETURN node.id AS id,
       node.description AS description,
       coalesce(veh.name, node.category, '') AS category,
       coalesce(p.fine_min, 0) AS fine_min,
       coalesce(p.fine_max, 0) AS fine_max,
       coalesce(law.document, '') AS document,
       coalesce(law.article, '') AS article,
       coalesce(law.section, '') AS section,
       coalesce(law.full_ref, '') AS full_reference,
       collect(DISTINCT m.text) AS measures,
       score AS score
ORDER BY score DESC
LIMIT $k`

// SemanticSearch runs the vector index query, returning rows ranked by cosine
// score. Behaviors with an incomplete penalty chain still produce rows, with
// their citation fields left empty.
func (s *Store) SemanticSearch(ctx context.Context, embedding []float32, k int, filter Filter) ([]domain.ViolationRow, error) {
	params := map[string]any{
		"k":          k,
		"embedding":  embedding,
		"categories": filterCategories(filter),
		"document":   filter.Document,
	}
	return s.searchRows(ctx, semanticQuery, params, "semantic search")
}

// LexicalSearch runs the BM25 fulltext query over descriptions and keywords.
// The query text is escaped so Lucene operators in user input stay literal.
func (s *Store) LexicalSearch(ctx context.Context, text string, k int, filter Filter) ([]domain.ViolationRow, error) {
	escaped := EscapeLucene(text)
	if escaped == "" {
		return nil, nil
	}
	params := map[string]any{
		"k":          k,
		"text":       escaped,
		"categories": filterCategories(filter),
		"document":   filter.Document,
	}
	return s.searchRows(ctx, lexicalQuery, params, "lexical search")
}

func (s *Store) searchRows(ctx context.Context, cypher string, params map[string]any, op string) ([]domain.ViolationRow, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("graph: %s: %w", op, err)
	}
	var rows []domain.ViolationRow
	seen := make(map[string]bool)
	for result.Next(ctx) {
		row := rowFromRecord(result.Record())
		// A behavior with several penalties projects one record per
		// penalty; keep only the first (highest ranked) per ID.
		if row.ID == "" || seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graph: %s: %w", op, err)
	}
	return rows, nil
}

func filterCategories(f Filter) []string {
	if len(f.Categories) == 0 {
		return []string{}
	}
	return f.Categories
}

// luceneSpecials are the characters Lucene query syntax reserves.
const luceneSpecials = `+-&|!(){}[]^"~*?:\/`

// EscapeLucene backslash-escapes Lucene operators so free text parses as
// literal terms.
func EscapeLucene(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
