// Package main rebuilds the SIMILAR_TO edges between behaviors from keyword
// overlap. Intended to run after each ingest, from cron or by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/pkg/natsutil"
)

const lockName = "similarity"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	threshold := flag.Float64("threshold", graph.DefaultSimilarityThreshold, "minimum keyword overlap for an edge")
	flag.Parse()

	if err := run(*threshold, logger); err != nil {
		logger.Error("similarity rebuild failed", "err", err)
		os.Exit(1)
	}
}

func run(threshold float64, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	driver, err := neo4j.NewDriverWithContext(url,
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.New(driver)

	acquired, err := store.AcquireJobLock(ctx, lockName)
	if err != nil {
		return err
	}
	if !acquired {
		logger.Info("another similarity run holds the lock, exiting")
		return nil
	}
	defer func() {
		if err := store.ReleaseJobLock(context.Background(), lockName); err != nil {
			logger.Error("release job lock failed", "err", err)
		}
	}()

	start := time.Now()
	edges, err := store.RebuildSimilarity(ctx, threshold)
	if err != nil {
		return err
	}
	logger.Info("similarity rebuilt", "edges", edges, "threshold", threshold, "took", time.Since(start))

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		ev := natsutil.SimilarityCompleted{Edges: edges, At: time.Now().UTC()}
		if err := natsutil.Publish(ctx, nc, natsutil.SubjectSimilarityCompleted, ev); err != nil {
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
