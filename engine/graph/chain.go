package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/trafficlawvn/lawqa/engine/domain"
)

const chainQuery = `
MATCH (b:Behavior {id: $id})
OPTIONAL MATCH (b)-[:LEADS_TO_PENALTY]->(p:Penalty)
OPTIONAL MATCH (p)-[:BASED_ON_LAW]->(law:LawArticle)
OPTIONAL MATCH (p)-[:HAS_ADDITIONAL]->(m:AdditionalMeasure)
RETURN b,
       collect(DISTINCT p) AS penalties,
       collect(DISTINCT law) AS articles,
       collect(DISTINCT m) AS measures`

// GetChain walks the full penalty chain for one behavior: every penalty, the
// law articles backing them and any additional measures. Articles and
// measures are deduplicated across penalties. Returns ErrBehaviorNotFound
// when the ID does not exist.
func (s *Store) GetChain(ctx context.Context, behaviorID string) (domain.Chain, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, chainQuery, map[string]any{"id": behaviorID})
	if err != nil {
		return domain.Chain{}, fmt.Errorf("graph: get chain: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return domain.Chain{}, fmt.Errorf("graph: get chain: %w", err)
		}
		return domain.Chain{}, domain.ErrBehaviorNotFound
	}
	rec := result.Record()

	behavior, err := behaviorFromRecord(rec, "b")
	if err != nil {
		return domain.Chain{}, err
	}

	chain := domain.Chain{Behavior: behavior}
	for _, node := range nodeList(rec, "penalties") {
		chain.Penalties = append(chain.Penalties, penaltyFromNode(node))
	}
	seenArticle := make(map[string]bool)
	for _, node := range nodeList(rec, "articles") {
		article := articleFromNode(node)
		key := article.Document + "|" + article.Article + "|" + article.Section
		if seenArticle[key] {
			continue
		}
		seenArticle[key] = true
		chain.Articles = append(chain.Articles, article)
	}
	seenMeasure := make(map[string]bool)
	for _, node := range nodeList(rec, "measures") {
		measure := measureFromNode(node)
		if measure.Text == "" || seenMeasure[measure.Text] {
			continue
		}
		seenMeasure[measure.Text] = true
		chain.Measures = append(chain.Measures, measure)
	}
	return chain, nil
}

func nodeList(rec *neo4j.Record, key string) []dbtype.Node {
	raw, ok := rec.Get(key)
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	nodes := make([]dbtype.Node, 0, len(items))
	for _, item := range items {
		if node, ok := item.(dbtype.Node); ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
