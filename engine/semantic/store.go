// Package semantic maintains an optional Qdrant mirror of the behavior
// vectors. Deployments that want ANN search off the graph store point the
// retriever's semantic side here; the graph remains the source of truth.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/graph"
)

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert mirrors violation rows into Qdrant. The payload carries the full
// retrieval row shape so search answers need no graph round trip.
func (v *VectorStore) Upsert(ctx context.Context, rows []domain.ViolationRow, embeddings [][]float32) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) != len(embeddings) {
		return fmt.Errorf("semantic: %d rows but %d embeddings", len(rows), len(embeddings))
	}

	points := make([]*pb.PointStruct, len(rows))
	for i, row := range rows {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(row.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embeddings[i]},
				},
			},
			Payload: rowPayload(row),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(rows), err)
	}
	return nil
}

// SemanticSearch performs k-NN search with the retriever's filter semantics:
// a document filter must match, a category set matches any member.
func (v *VectorStore) SemanticSearch(ctx context.Context, embedding []float32, k int, filter graph.Filter) ([]domain.ViolationRow, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	var must, should []*pb.Condition
	if filter.Document != "" {
		must = append(must, fieldMatch("document", filter.Document))
	}
	for _, c := range filter.Categories {
		should = append(should, fieldMatch("category", c))
	}
	if len(must) > 0 || len(should) > 0 {
		req.Filter = &pb.Filter{Must: must, Should: should}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	rows := make([]domain.ViolationRow, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		row := rowFromPayload(r.GetPayload())
		if row.ID == "" {
			row.ID = r.GetId().GetUuid()
		}
		row.Score = float64(r.GetScore())
		rows[i] = row
	}
	return rows, nil
}

// pointID maps a behavior ID onto the UUID point key Qdrant requires.
// Corpus IDs are arbitrary stable strings, so non-UUID IDs get a
// deterministic name-based UUID; the original ID lives in the payload.
func pointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func rowPayload(row domain.ViolationRow) map[string]*pb.Value {
	measures := make([]*pb.Value, len(row.Measures))
	for i, m := range row.Measures {
		measures[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: m}}
	}
	return map[string]*pb.Value{
		"id":             strValue(row.ID),
		"description":    strValue(row.Description),
		"category":       strValue(row.Category),
		"fine_min":       {Kind: &pb.Value_IntegerValue{IntegerValue: row.FineMin}},
		"fine_max":       {Kind: &pb.Value_IntegerValue{IntegerValue: row.FineMax}},
		"document":       strValue(row.Document),
		"article":        strValue(row.Article),
		"section":        strValue(row.Section),
		"full_reference": strValue(row.FullRef),
		"measures":       {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: measures}}},
	}
}

func rowFromPayload(payload map[string]*pb.Value) domain.ViolationRow {
	row := domain.ViolationRow{
		ID:          payload["id"].GetStringValue(),
		Description: payload["description"].GetStringValue(),
		Category:    payload["category"].GetStringValue(),
		FineMin:     payload["fine_min"].GetIntegerValue(),
		FineMax:     payload["fine_max"].GetIntegerValue(),
		Document:    payload["document"].GetStringValue(),
		Article:     payload["article"].GetStringValue(),
		Section:     payload["section"].GetStringValue(),
		FullRef:     payload["full_reference"].GetStringValue(),
	}
	for _, v := range payload["measures"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			row.Measures = append(row.Measures, s)
		}
	}
	return row
}

func strValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
