// Package extract turns a free-text question into structured retrieval
// signals: the vehicle categories involved and a normalized statement of the
// suspected violation.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

// Generator produces one JSON object for a system/user prompt pair.
type Generator interface {
	GenerateJSON(ctx context.Context, system, prompt string) (string, error)
}

// Extractor extracts categories and violation intent from questions.
type Extractor struct {
	gen Generator
	log *slog.Logger
}

// New creates an Extractor.
func New(gen Generator, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{gen: gen, log: log}
}

const systemPrompt = `Bạn là trợ lý phân tích câu hỏi về luật giao thông đường bộ Việt Nam.
Nhiệm vụ: xác định loại phương tiện hoặc chủ đề liên quan và hành vi vi phạm mà người hỏi mô tả.

Trả lời bằng đúng một đối tượng JSON với hai trường:
  "category": tên loại trong danh sách cho trước, danh sách các tên loại, hoặc null nếu không xác định được
  "intent": mô tả ngắn gọn hành vi vi phạm, hoặc null nếu câu hỏi mô tả hành vi hợp pháp hay không liên quan đến vi phạm

Chỉ dùng các loại trong danh sách sau, giữ nguyên chính tả:
%s

Không thêm trường nào khác, không giải thích.`

// rawExtraction mirrors the model output. category may be a string, a list
// of strings or null.
type rawExtraction struct {
	Category json.RawMessage `json:"category"`
	Intent   *string         `json:"intent"`
}

// Extract analyzes one question. A nil error with an empty Intent means the
// question describes lawful behavior and needs no retrieval. ErrExtraction
// wraps transport failures and unparseable model output.
func (e *Extractor) Extract(ctx context.Context, question string) (domain.Extraction, error) {
	system := fmt.Sprintf(systemPrompt, "- "+strings.Join(domain.CategoryVocabulary, "\n- "))
	out, err := e.gen.GenerateJSON(ctx, system, question)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: malformed model output: %v", domain.ErrExtraction, err)
	}

	ext := domain.Extraction{
		Categories: e.parseCategories(raw.Category),
	}
	if raw.Intent != nil {
		ext.Intent = strings.TrimSpace(*raw.Intent)
	}
	return ext, nil
}

// parseCategories accepts a string, a list of strings or null, and drops any
// value outside the closed vocabulary.
func (e *Extractor) parseCategories(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return e.keepKnown([]string{one})
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return e.keepKnown(many)
	}

	e.log.Warn("extract: unexpected category shape", "raw", string(raw))
	return nil
}

func (e *Extractor) keepKnown(categories []string) []string {
	var kept []string
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !domain.KnownCategory(c) {
			e.log.Warn("extract: category outside vocabulary", "category", c)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
