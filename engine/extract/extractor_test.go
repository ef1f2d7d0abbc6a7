package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/trafficlawvn/lawqa/engine/domain"
)

type fakeGenerator struct {
	out string
	err error
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, _, _ string) (string, error) {
	return f.out, f.err
}

func TestExtract_SingleCategory(t *testing.T) {
	gen := &fakeGenerator{out: `{"category": "Xe mô tô, xe máy", "intent": "vượt đèn đỏ"}`}
	ext, err := New(gen, nil).Extract(context.Background(), "Xe máy vượt đèn đỏ bị phạt bao nhiêu?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ext.IsViolation() || ext.Intent != "vượt đèn đỏ" {
		t.Fatalf("unexpected extraction: %+v", ext)
	}
	if len(ext.Categories) != 1 || ext.Categories[0] != "Xe mô tô, xe máy" {
		t.Fatalf("categories: %v", ext.Categories)
	}
}

func TestExtract_CategoryList(t *testing.T) {
	gen := &fakeGenerator{out: `{"category": ["Xe ô tô", "Nồng độ cồn"], "intent": "lái xe sau khi uống rượu"}`}
	ext, err := New(gen, nil).Extract(context.Background(), "Uống rượu lái ô tô phạt thế nào?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Categories) != 2 {
		t.Fatalf("categories: %v", ext.Categories)
	}
}

func TestExtract_LawfulBehavior(t *testing.T) {
	gen := &fakeGenerator{out: `{"category": null, "intent": null}`}
	ext, err := New(gen, nil).Extract(context.Background(), "Đội mũ bảo hiểm khi đi xe máy có bị phạt không?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.IsViolation() {
		t.Fatalf("null intent must mean lawful: %+v", ext)
	}
	if ext.Categories != nil {
		t.Fatalf("expected no categories: %v", ext.Categories)
	}
}

func TestExtract_UnknownCategoryDropped(t *testing.T) {
	gen := &fakeGenerator{out: `{"category": ["Xe tăng", "Xe đạp"], "intent": "đi vào đường cấm"}`}
	ext, err := New(gen, nil).Extract(context.Background(), "Xe đi vào đường cấm?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ext.Categories) != 1 || ext.Categories[0] != "Xe đạp" {
		t.Fatalf("vocabulary not enforced: %v", ext.Categories)
	}
}

func TestExtract_MalformedOutput(t *testing.T) {
	gen := &fakeGenerator{out: `not json at all`}
	_, err := New(gen, nil).Extract(context.Background(), "Vượt đèn đỏ?")
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtract_TransportError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	_, err := New(gen, nil).Extract(context.Background(), "Vượt đèn đỏ?")
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtract_UnexpectedCategoryShape(t *testing.T) {
	gen := &fakeGenerator{out: `{"category": 42, "intent": "vượt đèn đỏ"}`}
	ext, err := New(gen, nil).Extract(context.Background(), "Vượt đèn đỏ?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Categories != nil {
		t.Fatalf("numeric category should be dropped: %v", ext.Categories)
	}
}

func TestExtract_TrimsIntent(t *testing.T) {
	gen := &fakeGenerator{out: `{"category": null, "intent": "  chạy quá tốc độ  "}`}
	ext, err := New(gen, nil).Extract(context.Background(), "Chạy quá tốc độ phạt bao nhiêu?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ext.Intent != "chạy quá tốc độ" {
		t.Fatalf("intent not trimmed: %q", ext.Intent)
	}
}
