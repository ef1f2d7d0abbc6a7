package graph

import (
	"context"
	"fmt"
)

// Stats summarizes the graph for the /api/stats endpoint.
type Stats struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// CollectStats counts nodes per label and relationships per type.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	stats := Stats{
		Nodes:         make(map[string]int64),
		Relationships: make(map[string]int64),
	}

	result, err := sess.Run(ctx, `MATCH (n) RETURN labels(n)[0] AS label, count(*) AS count`, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("graph: collect stats: %w", err)
	}
	for result.Next(ctx) {
		rec := result.Record()
		if label := recStr(rec, "label"); label != "" {
			stats.Nodes[label] = recInt64(rec, "count")
		}
	}
	if err := result.Err(); err != nil {
		return Stats{}, fmt.Errorf("graph: collect stats: %w", err)
	}

	result, err = sess.Run(ctx, `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("graph: collect stats: %w", err)
	}
	for result.Next(ctx) {
		rec := result.Record()
		if typ := recStr(rec, "type"); typ != "" {
			stats.Relationships[typ] = recInt64(rec, "count")
		}
	}
	if err := result.Err(); err != nil {
		return Stats{}, fmt.Errorf("graph: collect stats: %w", err)
	}
	return stats, nil
}
