// Package main implements the lawqa API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/trafficlawvn/lawqa/engine/domain"
	"github.com/trafficlawvn/lawqa/engine/extract"
	"github.com/trafficlawvn/lawqa/engine/graph"
	"github.com/trafficlawvn/lawqa/engine/qa"
	"github.com/trafficlawvn/lawqa/engine/search"
	"github.com/trafficlawvn/lawqa/engine/semantic"
	"github.com/trafficlawvn/lawqa/pkg/metrics"
	"github.com/trafficlawvn/lawqa/pkg/mid"
	"github.com/trafficlawvn/lawqa/pkg/natsutil"
	"github.com/trafficlawvn/lawqa/pkg/ollama"
	"github.com/trafficlawvn/lawqa/pkg/repo"
	"github.com/trafficlawvn/lawqa/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	OllamaURL  string
	EmbedModel string
	GenModel   string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string
	QdrantURL  string
	Collection string
	NATSURL    string
	CORSOrigin string
	TopK       int
	FusionK    int
	CacheSize  int
	RateLimit  float64
}

func loadConfig() Config {
	return Config{
		Port:       envOr("PORT", "8080"),
		OllamaURL:  envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel: envOr("EMBED_MODEL", "bge-m3"),
		GenModel:   envOr("GEN_MODEL", "qwen2.5:7b"),
		Neo4jURL:   envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:  envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:  envOr("NEO4J_PASS", "password"),
		QdrantURL:  envOr("QDRANT_URL", ""),
		Collection: envOr("QDRANT_COLLECTION", "lawqa"),
		NATSURL:    envOr("NATS_URL", ""),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		TopK:       envInt("QA_TOP_K", 3),
		FusionK:    envInt("FUSION_K", 60),
		CacheSize:  envInt("EMBED_CACHE_SIZE", 2048),
		RateLimit:  envFloat("HTTP_RATE_LIMIT", 20),
	}
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

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(ctx)

	store := graph.New(driver)
	behaviors := graph.NewBehaviorRepo(driver)

	// --- Ollama clients ---
	embedder := ollama.NewCachedEmbedder(&breakerEmbedder{
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		inner:   ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel),
	}, cfg.CacheSize)
	// The generate endpoint is the slowest upstream; a breaker keeps a dead
	// model server from stalling every request for its full timeout.
	extractor := extract.New(&breakerGenerator{
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		inner:   ollama.NewGenerateClient(cfg.OllamaURL, cfg.GenModel),
	}, logger)

	// --- Retriever, optionally with the Qdrant mirror as semantic side ---
	var searchOpts []search.Option
	if cfg.QdrantURL != "" {
		mirror, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer mirror.Close()
		searchOpts = append(searchOpts, search.WithSemanticIndex(mirror))
		logger.Info("semantic side served by qdrant", "url", cfg.QdrantURL)
	}
	retriever := search.New(embedder, store, logger, searchOpts...)

	met := metrics.New()
	qaSvc := qa.New(extractor, retriever, store, qa.Options{
		TopK:    cfg.TopK,
		FusionK: cfg.FusionK,
	}, logger, met)

	// --- Optional NATS: flush the embedding cache on re-ingest ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		_, err = natsutil.Subscribe(nc, natsutil.SubjectIngestCompleted, func(_ context.Context, ev natsutil.IngestCompleted) {
			logger.Info("corpus re-ingested, flushing embedding cache", "count", ev.Count)
			embedder.Flush()
		})
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
	}

	// --- Build HTTP server ---
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: int(cfg.RateLimit) * 2})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/ask", handleAsk(qaSvc, limiter, logger))
	mux.HandleFunc("GET /api/stats", handleStats(store, logger))
	mux.HandleFunc("GET /api/violations", handleViolations(behaviors, logger))
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.OTel("lawqa-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// breakerGenerator wraps the Ollama generate client with a circuit breaker.
type breakerGenerator struct {
	breaker *resilience.Breaker
	inner   *ollama.GenerateClient
}

func (g *breakerGenerator) GenerateJSON(ctx context.Context, system, prompt string) (string, error) {
	var out string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.GenerateJSON(ctx, system, prompt)
		return err
	})
	return out, err
}

// breakerEmbedder wraps the embeddings client with its own circuit breaker so
// a dead embedding model trips the degraded keyword path immediately.
type breakerEmbedder struct {
	breaker *resilience.Breaker
	inner   *ollama.EmbedClient
}

func (e *breakerEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		vec, err = e.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Document string `json:"document,omitempty"`
}

func handleAsk(svc *qa.Service, limiter *resilience.Limiter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
			return
		}

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		resp, err := svc.Ask(r.Context(), domain.Query{
			Text:     req.Question,
			TopK:     req.TopK,
			Document: req.Document,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidQuery) {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
				return
			}
			logger.Error("ask failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleStats(store *graph.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.CollectStats(r.Context())
		if err != nil {
			logger.Error("stats failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleViolations(behaviors *repo.Neo4jRepo[domain.Behavior, string], logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		items, err := behaviors.List(r.Context(), repo.ListOpts{Offset: offset, Limit: limit})
		if err != nil {
			logger.Error("list violations failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"items": items, "offset": offset})
	}
}
