package graph

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/trafficlawvn/lawqa/engine/domain"
)

// Property helpers. Neo4j returns integers as int64, floats as float64 and
// lists as []any; absent properties come back as nil.

func strProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func int64Prop(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func strsProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nodeFromRecord(rec *neo4j.Record, key string) (dbtype.Node, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("graph: record missing key %q", key)
	}
	node, ok := raw.(dbtype.Node)
	if !ok {
		return dbtype.Node{}, fmt.Errorf("graph: record key %q is not a node", key)
	}
	return node, nil
}

func behaviorFromNode(node dbtype.Node) domain.Behavior {
	return domain.Behavior{
		ID:          strProp(node.Props, "id"),
		Description: strProp(node.Props, "description"),
		Category:    strProp(node.Props, "category"),
		Keywords:    strsProp(node.Props, "keywords"),
	}
}

func behaviorFromRecord(rec *neo4j.Record, key string) (domain.Behavior, error) {
	node, err := nodeFromRecord(rec, key)
	if err != nil {
		return domain.Behavior{}, err
	}
	return behaviorFromNode(node), nil
}

func penaltyFromNode(node dbtype.Node) domain.Penalty {
	return domain.Penalty{
		FineMin:  int64Prop(node.Props, "fine_min"),
		FineMax:  int64Prop(node.Props, "fine_max"),
		Currency: strProp(node.Props, "currency"),
		FineText: strProp(node.Props, "fine_text"),
	}
}

func articleFromNode(node dbtype.Node) domain.LawArticle {
	return domain.LawArticle{
		Document:      strProp(node.Props, "document"),
		Article:       strProp(node.Props, "article"),
		Section:       strProp(node.Props, "section"),
		FullReference: strProp(node.Props, "full_ref"),
	}
}

func measureFromNode(node dbtype.Node) domain.AdditionalMeasure {
	return domain.AdditionalMeasure{Text: strProp(node.Props, "text")}
}

// Scalar helpers for flattened RETURN clauses, where the query projects node
// properties directly instead of whole nodes.

func recStr(rec *neo4j.Record, key string) string {
	if raw, ok := rec.Get(key); ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}

func recInt64(rec *neo4j.Record, key string) int64 {
	raw, ok := rec.Get(key)
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func recFloat(rec *neo4j.Record, key string) float64 {
	raw, ok := rec.Get(key)
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func recStrs(rec *neo4j.Record, key string) []string {
	raw, ok := rec.Get(key)
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// rowFromRecord maps one flattened retrieval record to a ViolationRow.
func rowFromRecord(rec *neo4j.Record) domain.ViolationRow {
	return domain.ViolationRow{
		ID:          recStr(rec, "id"),
		Description: recStr(rec, "description"),
		Category:    recStr(rec, "category"),
		FineMin:     recInt64(rec, "fine_min"),
		FineMax:     recInt64(rec, "fine_max"),
		Document:    recStr(rec, "document"),
		Article:     recStr(rec, "article"),
		Section:     recStr(rec, "section"),
		FullRef:     recStr(rec, "full_reference"),
		Measures:    recStrs(rec, "measures"),
		Score:       recFloat(rec, "score"),
	}
}
