// Package main is a command-line client for asking one traffic-law question
// against a running store. Exit codes: 0 answered, 2 no definitive answer,
// 1 failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/extract"
	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/engine/qa"
	"github.com/trafficlawvn/lawqa/engine/search"
	"github.com/trafficlawvn/lawqa/pkg/ollama"
)

func main() {
	question := flag.String("q", "", "question to ask")
	topK := flag.Int("k", 3, "number of cases to return")
	document := flag.String("d", "", "restrict citations to one legal document")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if strings.TrimSpace(*question) == "" {
		fmt.Fprintln(os.Stderr, "usage: ask -q \"<question>\" [-k N] [-d document]")
		os.Exit(1)
	}

	resp, err := run(*question, *topK, *document, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	render(resp)
	if resp.Kind == qa.KindNoAnswer {
		os.Exit(2)
	}
}

func run(question string, topK int, document string, logger *slog.Logger) (qa.Response, error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(
		envOr("NEO4J_URL", "neo4j://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
	if err != nil {
		return qa.Response{}, fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	ollamaURL := envOr("OLLAMA_URL", "http://localhost:11434")
	store := graph.New(driver)
	embedder := ollama.NewEmbedClient(ollamaURL, envOr("EMBED_MODEL", "bge-m3"))
	extractor := extract.New(ollama.NewGenerateClient(ollamaURL, envOr("GEN_MODEL", "qwen2.5:7b")), logger)
	retriever := search.New(embedder, store, logger)

	svc := qa.New(extractor, retriever, store, qa.Options{TopK: topK}, logger, nil)
	return svc.Ask(ctx, domain.Query{Text: question, TopK: topK, Document: document})
}

func render(resp qa.Response) {
	switch resp.Kind {
	case qa.KindNoViolation:
		fmt.Println("Hành vi được mô tả không phải là vi phạm giao thông.")
		return
	case qa.KindNoAnswer:
		fmt.Println("Không tìm thấy quy định phù hợp với câu hỏi.")
		for _, s := range resp.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
		return
	}

	for i, c := range resp.Cases {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%d. %s\n", i+1, c.Description)
		fmt.Printf("   %s\n", c.Fine)
		for _, cite := range c.Citations {
			fmt.Printf("   Căn cứ: %s\n", cite)
		}
		for _, m := range c.Measures {
			fmt.Printf("   Hình thức bổ sung: %s\n", m)
		}
		for _, rel := range c.Related {
			fmt.Printf("   Liên quan: %s\n", rel.Description)
		}
	}
	fmt.Printf("\nĐộ tin cậy: %s", resp.Confidence)
	if resp.FilterFallback {
		fmt.Print(" (đã bỏ bộ lọc để tìm kết quả)")
	}
	if resp.Degraded {
		fmt.Print(" (chế độ tìm kiếm rút gọn)")
	}
	fmt.Println()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
