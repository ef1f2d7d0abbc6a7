// Package domain defines core domain types, constants, and validation for the
// traffic-law QA pipeline. It acts as the validation gate at pipeline entry points.
package domain

// Embedding text conventions. Ingestion and query paths MUST use the same
// constants; a drift between the two silently degrades every similarity score.
const (
	QueryPrefix   = "query: "
	PassagePrefix = "passage: "
)

// Behavior is a single described traffic violation, the central node of the
// knowledge graph. Keywords are derived once at ingestion.
type Behavior struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Penalty is a monetary sanction range. Behaviors with identical ranges share
// one Penalty node in the graph.
type Penalty struct {
	FineMin  int64  `json:"fine_min"`
	FineMax  int64  `json:"fine_max"`
	Currency string `json:"currency"`
	FineText string `json:"fine_text,omitempty"`
}

// Undetermined reports whether the penalty carries no usable fine range.
func (p Penalty) Undetermined() bool {
	return p.FineMin == 0 && p.FineMax == 0
}

// LawArticle is a citation unit. FullReference is composed at ingestion from
// Document+Article+Section and is never synthesised at query time.
type LawArticle struct {
	Document      string `json:"document"`
	Article       string `json:"article"`
	Section       string `json:"section"`
	FullReference string `json:"full_reference"`
}

// Complete reports whether the citation can be shown to a user: at minimum
// the document and the article number. Incomplete citations are rendered as
// unavailable, never filled in.
func (l LawArticle) Complete() bool {
	return l.Document != "" && l.Article != ""
}

// AdditionalMeasure is a supplementary sanction (license suspension,
// confiscation, ...), deduplicated by text.
type AdditionalMeasure struct {
	Text string `json:"text"`
}

// Chain is the full legal justification reachable from one Behavior:
// Behavior → Penalty → {LawArticle, AdditionalMeasure}.
type Chain struct {
	Behavior  Behavior            `json:"behavior"`
	Penalties []Penalty           `json:"penalties"`
	Articles  []LawArticle        `json:"law_articles"`
	Measures  []AdditionalMeasure `json:"additional_measures"`
}

// Extraction is the output of the LLM intent/entity extractor. An empty Intent
// means the extractor judged the described action lawful; no retrieval happens.
// Categories is an allow-list filter: empty means no constraint.
type Extraction struct {
	Categories []string `json:"category"`
	Intent     string   `json:"intent"`
}

// IsViolation reports whether the extractor recognised a violation.
func (e Extraction) IsViolation() bool { return e.Intent != "" }

// ViolationRow is the typed row shape both store indices return: the matched
// Behavior joined with its chain data and a per-index relevance score.
// Optional chain fields stay zero-valued when the graph lacks them so callers
// can mark them unavailable instead of guessing.
type ViolationRow struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	FineMin     int64    `json:"fine_min"`
	FineMax     int64    `json:"fine_max"`
	Document    string   `json:"document"`
	Article     string   `json:"article"`
	Section     string   `json:"section"`
	FullRef     string   `json:"full_reference"`
	Measures    []string `json:"additional_measures"`
	Score       float64  `json:"score"`
}

// LawArticle assembles the citation fields back into a LawArticle value.
func (r ViolationRow) LawArticle() LawArticle {
	return LawArticle{
		Document:      r.Document,
		Article:       r.Article,
		Section:       r.Section,
		FullReference: r.FullRef,
	}
}

// Penalty assembles the fine fields into a Penalty value.
func (r ViolationRow) Penalty() Penalty {
	return Penalty{FineMin: r.FineMin, FineMax: r.FineMax, Currency: "VND"}
}

// Query is a user question plus retrieval options.
type Query struct {
	Text     string `json:"text"`
	TopK     int    `json:"top_k"`
	Document string `json:"document,omitempty"`
}
