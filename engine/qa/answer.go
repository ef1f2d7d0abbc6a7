package qa

import (
	"context"
	"fmt"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

// Confidence bands derived from the top fused score.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

// Bands holds the score thresholds for the confidence bands. RRF scores live
// in a narrow range, so the defaults sit close together.
type Bands struct {
	High   float64
	Medium float64
	Low    float64
}

func (b Bands) withDefaults() Bands {
	if b.High == 0 {
		b.High = 0.025
	}
	if b.Medium == 0 {
		b.Medium = 0.018
	}
	if b.Low == 0 {
		b.Low = 0.012
	}
	return b
}

// Classify maps a fused score to a band.
func (b Bands) Classify(score float64) string {
	switch {
	case score >= b.High:
		return ConfidenceHigh
	case score >= b.Medium:
		return ConfidenceMedium
	case score >= b.Low:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// Case is one violation in a response, with its reconstructed penalty chain.
type Case struct {
	BehaviorID  string              `json:"behavior_id"`
	Description string              `json:"description"`
	Category    string              `json:"category,omitempty"`
	Fine        string              `json:"fine"`
	Citations   []string            `json:"citations,omitempty"`
	Measures    []string            `json:"measures,omitempty"`
	Score       float64             `json:"score"`
	Related     []RelatedBehavior   `json:"related,omitempty"`
}

// RelatedBehavior is a graph neighbor of a case via SIMILAR_TO.
type RelatedBehavior struct {
	BehaviorID  string  `json:"behavior_id"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// Response is the outcome of one Ask call.
type Response struct {
	Kind       Kind              `json:"kind"`
	Question   string            `json:"question"`
	Extraction domain.Extraction `json:"extraction,omitzero"`
	Cases      []Case            `json:"cases,omitempty"`
	Confidence string            `json:"confidence"`
	// FilterFallback is set when the category or document filter had to be
	// dropped to produce results.
	FilterFallback bool `json:"filter_fallback,omitempty"`
	// Degraded is set when the answer came from the keyword path.
	Degraded bool `json:"degraded,omitempty"`
	// Suggestions carries rephrasing hints when no definitive answer exists.
	Suggestions []string `json:"suggestions,omitempty"`
}

// suggestions builds rephrasing hints for a question that produced no answer.
func suggestions(ext domain.Extraction) []string {
	out := []string{
		"Mô tả cụ thể hành vi vi phạm (ví dụ: vượt đèn đỏ, không đội mũ bảo hiểm)",
		"Nêu rõ loại phương tiện (xe máy, ô tô, xe tải...)",
	}
	if len(ext.Categories) > 0 {
		out = append(out, "Thử đặt câu hỏi không kèm loại phương tiện để mở rộng kết quả")
	}
	return out
}

// assemble builds the response for a non-empty fused list. The top case gets
// full chain reconstruction plus its SIMILAR_TO neighbors; the rest are built
// from their retrieval rows.
func (s *Service) assemble(ctx context.Context, question string, ext domain.Extraction, fused []domain.ViolationRow) Response {
	resp := Response{
		Kind:       KindFound,
		Question:   question,
		Extraction: ext,
		Confidence: s.opts.Bands.Classify(fused[0].Score),
	}

	top := s.caseFromChain(ctx, fused[0].ID, fused[0].Score)
	if top == nil {
		fallback := caseFromRow(fused[0])
		top = &fallback
	}
	if similar, err := s.reader.FindSimilar(ctx, fused[0].ID, 5); err != nil {
		s.log.Warn("qa: similar lookup failed", "behavior_id", fused[0].ID, "error", err)
	} else {
		for _, sb := range similar {
			top.Related = append(top.Related, RelatedBehavior{
				BehaviorID:  sb.Behavior.ID,
				Description: sb.Behavior.Description,
				Weight:      sb.Weight,
			})
		}
	}
	resp.Cases = append(resp.Cases, *top)

	// Secondary cases are chain-reconstructed too, so behaviors with several
	// penalties or articles keep their full basis; the retrieval row is only
	// the fallback when the graph lookup fails mid-request.
	for _, row := range fused[1:] {
		if c := s.caseFromChain(ctx, row.ID, row.Score); c != nil {
			resp.Cases = append(resp.Cases, *c)
			continue
		}
		resp.Cases = append(resp.Cases, caseFromRow(row))
	}
	return resp
}

// caseFromChain builds a Case from a reconstructed chain. Articles missing
// either document or article number never become citations.
func caseFromChain(chain domain.Chain, score float64) Case {
	c := Case{
		BehaviorID:  chain.Behavior.ID,
		Description: chain.Behavior.Description,
		Category:    chain.Behavior.Category,
		Fine:        fineText(chain.Penalties),
		Score:       score,
	}
	for _, a := range chain.Articles {
		if cite := citation(a); cite != "" {
			c.Citations = append(c.Citations, cite)
		}
	}
	for _, m := range chain.Measures {
		c.Measures = append(c.Measures, m.Text)
	}
	return c
}

// caseFromRow builds a Case straight from a retrieval row.
func caseFromRow(row domain.ViolationRow) Case {
	c := Case{
		BehaviorID:  row.ID,
		Description: row.Description,
		Category:    row.Category,
		Fine:        fineText([]domain.Penalty{row.Penalty()}),
		Measures:    row.Measures,
		Score:       row.Score,
	}
	if cite := citation(row.LawArticle()); cite != "" {
		c.Citations = append(c.Citations, cite)
	}
	return c
}

// fineText renders the fine range in Vietnamese. An undetermined penalty is
// stated as such, never guessed.
func fineText(penalties []domain.Penalty) string {
	for _, p := range penalties {
		if p.Undetermined() {
			continue
		}
		if p.FineText != "" {
			return p.FineText
		}
		cur := p.Currency
		if cur == "" {
			cur = "đồng"
		}
		if p.FineMin == p.FineMax {
			return fmt.Sprintf("Phạt tiền %s %s", formatVND(p.FineMin), cur)
		}
		return fmt.Sprintf("Phạt tiền từ %s đến %s %s", formatVND(p.FineMin), formatVND(p.FineMax), cur)
	}
	return "Chưa xác định mức phạt"
}

// citation renders one article reference, or "" when the article is too
// incomplete to cite.
func citation(a domain.LawArticle) string {
	if !a.Complete() {
		return ""
	}
	if a.FullReference != "" {
		return a.FullReference
	}
	if a.Section != "" {
		return fmt.Sprintf("%s khoản %s, %s", a.Article, a.Section, a.Document)
	}
	return fmt.Sprintf("%s, %s", a.Article, a.Document)
}

// formatVND groups digits in thousands, the way fines are written in the
// decrees (e.g. 4.000.000).
func formatVND(n int64) string {
	if n < 0 {
		return fmt.Sprintf("%d", n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, '.')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
