package natsutil

import "time"

// Subjects for batch-job coordination between the services.
const (
	// SubjectIngestCompleted announces a finished corpus ingest. The API
	// flushes its embedding cache on it; the similarity job treats it as a
	// trigger to rebuild edges.
	SubjectIngestCompleted = "lawqa.ingest.completed"
	// SubjectSimilarityCompleted announces a finished SIMILAR_TO rebuild.
	SubjectSimilarityCompleted = "lawqa.similarity.completed"
)

// IngestCompleted is the payload on SubjectIngestCompleted.
type IngestCompleted struct {
	Count  int       `json:"count"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// SimilarityCompleted is the payload on SubjectSimilarityCompleted.
type SimilarityCompleted struct {
	Edges int       `json:"edges"`
	At    time.Time `json:"at"`
}
