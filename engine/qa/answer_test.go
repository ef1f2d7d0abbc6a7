package qa

import (
	"testing"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

func TestBandsClassify(t *testing.T) {
	b := Bands{}.withDefaults()
	tests := []struct {
		score float64
		want  string
	}{
		{0.033, ConfidenceHigh},
		{0.025, ConfidenceHigh},
		{0.020, ConfidenceMedium},
		{0.015, ConfidenceLow},
		{0.005, ConfidenceNone},
	}
	for _, tt := range tests {
		if got := b.Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestBandsCustomThresholds(t *testing.T) {
	b := Bands{High: 0.5, Medium: 0.3, Low: 0.1}.withDefaults()
	if b.Classify(0.4) != ConfidenceMedium {
		t.Fatal("custom thresholds ignored")
	}
}

func TestFineText(t *testing.T) {
	tests := []struct {
		name      string
		penalties []domain.Penalty
		want      string
	}{
		{
			"range",
			[]domain.Penalty{{FineMin: 4000000, FineMax: 6000000, Currency: "đồng"}},
			"Phạt tiền từ 4.000.000 đến 6.000.000 đồng",
		},
		{
			"flat",
			[]domain.Penalty{{FineMin: 500000, FineMax: 500000, Currency: "đồng"}},
			"Phạt tiền 500.000 đồng",
		},
		{
			"prepared text wins",
			[]domain.Penalty{{FineMin: 1, FineMax: 2, FineText: "Phạt cảnh cáo hoặc phạt tiền"}},
			"Phạt cảnh cáo hoặc phạt tiền",
		},
		{
			"undetermined",
			[]domain.Penalty{{}},
			"Chưa xác định mức phạt",
		},
		{
			"none",
			nil,
			"Chưa xác định mức phạt",
		},
		{
			"skips undetermined for a determined one",
			[]domain.Penalty{{}, {FineMin: 100000, FineMax: 200000}},
			"Phạt tiền từ 100.000 đến 200.000 đồng",
		},
	}
	for _, tt := range tests {
		if got := fineText(tt.penalties); got != tt.want {
			t.Errorf("%s: fineText = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFormatVND(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{500, "500"},
		{1000, "1.000"},
		{4000000, "4.000.000"},
		{75000000, "75.000.000"},
	}
	for _, tt := range tests {
		if got := formatVND(tt.in); got != tt.want {
			t.Errorf("formatVND(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCitation_NeverFabricated(t *testing.T) {
	if got := citation(domain.LawArticle{Document: "Nghị định 168/2024"}); got != "" {
		t.Fatalf("incomplete article produced a citation: %q", got)
	}
	if got := citation(domain.LawArticle{Article: "Điều 7"}); got != "" {
		t.Fatalf("article without document produced a citation: %q", got)
	}
}

func TestCitation_Rendering(t *testing.T) {
	full := domain.LawArticle{
		Document:      "Nghị định 168/2024",
		Article:       "Điều 7",
		Section:       "9",
		FullReference: "Điều 7 khoản 9, Nghị định 168/2024",
	}
	if got := citation(full); got != full.FullReference {
		t.Fatalf("full reference not preferred: %q", got)
	}

	composed := domain.LawArticle{Document: "Nghị định 168/2024", Article: "Điều 7", Section: "9"}
	if got := citation(composed); got != "Điều 7 khoản 9, Nghị định 168/2024" {
		t.Fatalf("composed citation: %q", got)
	}

	noSection := domain.LawArticle{Document: "Nghị định 168/2024", Article: "Điều 7"}
	if got := citation(noSection); got != "Điều 7, Nghị định 168/2024" {
		t.Fatalf("sectionless citation: %q", got)
	}
}

func TestCaseFromRow_IncompleteCitationOmitted(t *testing.T) {
	c := caseFromRow(domain.ViolationRow{
		ID:          "v1",
		Description: "Hành vi chưa gắn điều luật",
		FineMin:     100000,
		FineMax:     200000,
	})
	if len(c.Citations) != 0 {
		t.Fatalf("citation fabricated: %v", c.Citations)
	}
	if c.Fine == "" {
		t.Fatal("fine text missing")
	}
}

func TestCaseFromChain_CopiesEverything(t *testing.T) {
	c := caseFromChain(testChain("v1", "Vượt đèn đỏ"), 0.03)
	if c.BehaviorID != "v1" || c.Score != 0.03 {
		t.Fatalf("case: %+v", c)
	}
	if len(c.Citations) != 1 || len(c.Measures) != 1 {
		t.Fatalf("chain parts lost: %+v", c)
	}
}
