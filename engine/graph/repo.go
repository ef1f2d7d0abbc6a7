package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/pkg/repo"
)

// NewBehaviorRepo builds a generic repository over Behavior nodes. The API
// uses it for paginated listings; graph traversals go through Store.
func NewBehaviorRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[domain.Behavior, string] {
	return repo.NewNeo4jRepo[domain.Behavior, string](
		driver,
		"Behavior",
		behaviorToMap,
		func(rec *neo4j.Record) (domain.Behavior, error) {
			return behaviorFromRecord(rec, "n")
		},
	)
}

func behaviorToMap(b domain.Behavior) map[string]any {
	return map[string]any{
		"id":          b.ID,
		"description": b.Description,
		"category":    b.Category,
		"keywords":    b.Keywords,
	}
}
