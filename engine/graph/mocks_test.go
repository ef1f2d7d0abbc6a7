package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// mockResult replays a fixed set of records.
type mockResult struct {
	records []*neo4j.Record
	idx     int
	err     error
}

func newMockResult(records ...*neo4j.Record) *mockResult {
	return &mockResult{records: records, idx: -1}
}

func (r *mockResult) Next(_ context.Context) bool {
	r.idx++
	return r.idx < len(r.records)
}

func (r *mockResult) Record() *neo4j.Record {
	if r.idx < 0 || r.idx >= len(r.records) {
		return nil
	}
	return r.records[r.idx]
}

func (r *mockResult) Err() error { return r.err }

type runCall struct {
	cypher string
	params map[string]any
}

// mockSession hands out queued results in order and records every statement.
type mockSession struct {
	results   []*mockResult
	runResult *mockResult
	runErr    error
	execErr   error
	calls     []runCall
	closed    bool
}

func (s *mockSession) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	s.calls = append(s.calls, runCall{cypher: cypher, params: params})
	if s.runErr != nil {
		return nil, s.runErr
	}
	if len(s.results) > 0 {
		res := s.results[0]
		s.results = s.results[1:]
		return res, nil
	}
	if s.runResult != nil {
		return s.runResult, nil
	}
	return newMockResult(), nil
}

func (s *mockSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	return work(s)
}

func (s *mockSession) Close(_ context.Context) error {
	s.closed = true
	return nil
}

// mockOpener returns the same session for every open.
type mockOpener struct {
	session *mockSession
}

func (o *mockOpener) OpenSession(_ context.Context) CypherSession { return o.session }

// seqOpener hands out a different session per open, for operations that open
// more than one.
type seqOpener struct {
	sessions []*mockSession
	idx      int
}

func (o *seqOpener) OpenSession(_ context.Context) CypherSession {
	if o.idx >= len(o.sessions) {
		return &mockSession{}
	}
	s := o.sessions[o.idx]
	o.idx++
	return s
}

// nodeWithProps wraps props in a node value.
func nodeWithProps(props map[string]any) dbtype.Node {
	return dbtype.Node{Props: props}
}

// makeNodeRecord builds a record holding one node under the given key.
func makeNodeRecord(key string, props map[string]any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{key},
		Values: []any{dbtype.Node{Props: props}},
	}
}

// makeRecord builds a record from parallel keys and values.
func makeRecord(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}
