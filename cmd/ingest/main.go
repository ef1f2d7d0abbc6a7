// Package main loads a violation corpus file into the knowledge graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/engine/ingest"
	"github.com/trafficlawvn/lawqa/engine/semantic"
	"github.com/trafficlawvn/lawqa/pkg/natsutil"
	"github.com/trafficlawvn/lawqa/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	OllamaURL  string
	EmbedModel string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	NATSURL    string
	Dims       int
	Workers    int
	EmbedRate  float64
}

func loadConfig() Config {
	return Config{
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "bge-m3"),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", ""),
		Collection: envOr("QDRANT_COLLECTION", "lawqa"),
		NATSURL:    envOr("NATS_URL", ""),
		Dims:       envInt("EMBED_DIMS", 1024),
		Workers:    envInt("INGEST_WORKERS", 4),
		EmbedRate:  envFloat("EMBED_RATE", 10),
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	file := flag.String("file", "data/violations.json", "corpus file to ingest")
	flag.Parse()

	if err := run(loadConfig(), *file, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, file string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	records, err := ingest.Load(file)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded", "file", file, "records", len(records))

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.New(driver)
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)

	opts := []ingest.Option{
		ingest.WithWorkers(cfg.Workers),
		ingest.WithRateLimit(cfg.EmbedRate, cfg.Workers),
	}
	if cfg.QdrantURL != "" {
		mirror, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer mirror.Close()
		if err := mirror.EnsureCollection(ctx, cfg.Dims); err != nil {
			return err
		}
		opts = append(opts, ingest.WithMirror(mirror))
	}

	ing := ingest.New(store, embedder, logger, opts...)
	count, err := ing.Run(ctx, records)
	if err != nil {
		return err
	}
	logger.Info("ingest complete", "count", count)

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		ev := natsutil.IngestCompleted{Count: count, Source: file, At: time.Now().UTC()}
		if err := natsutil.Publish(ctx, nc, natsutil.SubjectIngestCompleted, ev); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
