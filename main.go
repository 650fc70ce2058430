package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	chromem "github.com/philippgille/chromem-go"

	"github.com/bookworm-assistant/server/internal/agent/graph"
	"github.com/bookworm-assistant/server/internal/agent/graph/ordergraph"
	"github.com/bookworm-assistant/server/internal/agent/graph/raggraph"
	"github.com/bookworm-assistant/server/internal/agent/llm"
	"github.com/bookworm-assistant/server/internal/agent/model"
	"github.com/bookworm-assistant/server/internal/agent/repo"
	"github.com/bookworm-assistant/server/internal/retrieval"
	"github.com/bookworm-assistant/server/internal/store"
	pkgpostgres "github.com/bookworm-assistant/server/pkg/postgres"
	pkgredis "github.com/bookworm-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Response     model.ResponseModelConfig
	Embedding    model.EmbeddingConfig
	Retrieval    model.RetrievalConfig
	Conversation model.ConversationConfig
	Order        model.OrderConfig
}

func main() {
	fmt.Println("Starting bookstore assistant conversation...")
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()
	fmt.Println("Connected to Redis successfully")

	db, err := envCfg.Postgres.New()
	if err != nil {
		log.Fatalf("Failed to initialise Postgres client: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to Postgres successfully")

	clients, err := llm.NewClients(ctx, llm.ClientConfig{
		APIKey:     envCfg.APIKey,
		BaseURL:    envCfg.BaseURL,
		Classifier: &envCfg.Classifier,
		Response:   &envCfg.Response,
		Embedding:  &envCfg.Embedding,
	})
	if err != nil {
		log.Fatalf("Failed to create Gemini clients: %v", err)
	}

	classifier := llm.NewGeminiClassifier(clients.Classifier, clients.ClassifierModelName)
	generator := llm.NewGeminiGenerator(clients.Response, clients.ResponseModelName)
	embedder := llm.NewGeminiEmbedder(clients.Genai, clients.EmbeddingModelName)
	reranker := llm.NewGeminiReranker(clients.Classifier, clients.ClassifierModelName)

	products := store.NewProductStore(db)

	var vectorBackend retrieval.VectorSearcher = products
	if envCfg.Retrieval.VectorBackend == "embedded" {
		idx, err := store.NewVectorIndex(chromem.NewDB(), "products", embedder)
		if err != nil {
			log.Fatalf("Failed to open embedded vector index: %v", err)
		}
		catalog, err := products.ListProducts(ctx)
		if err != nil {
			log.Fatalf("Failed to load catalog for embedded index: %v", err)
		}
		for _, p := range catalog {
			if err := idx.IndexProduct(ctx, p); err != nil {
				log.Fatalf("Failed to index product %d: %v", p.ID, err)
			}
		}
		fmt.Printf("Embedded vector index seeded with %d products\n", len(catalog))
		vectorBackend = idx
	}

	retriever := retrieval.NewRetriever(products, vectorBackend, embedder, envCfg.Retrieval)

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	engine, err := graph.NewEngine(graph.Deps{
		Classifier: classifier,
		Generator:  generator,
		Repository: repo.NewRedisStateRepository(rdb, ttl),
		Retrieval:  raggraph.New(classifier, retriever, reranker, envCfg.Retrieval),
		Orders:     ordergraph.New(products),
	}, graph.Config{
		Conversation: envCfg.Conversation,
		Order:        envCfg.Order,
	})
	if err != nil {
		log.Fatalf("Failed to build dialogue engine: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Product discovery",
			query:       "Tôi muốn tìm sách về lập trình Python cho người mới bắt đầu",
		},
		{
			description: "Start an order by product id",
			query:       "Cho mình đặt sản phẩm số 2 nhé",
		},
		{
			description: "Answer the follow-up question",
			query:       "Lấy 1 cuốn thôi",
		},
		{
			description: "Chitchat close",
			query:       "Cảm ơn shop nhiều nha",
		},
	}

	threadID := uuid.NewString()
	fmt.Printf("Thread: %s\n", threadID)

	for i, test := range testQueries {
		fmt.Printf("\nTurn %d: %s\n", i+1, test.description)
		fmt.Printf("Query: %q\n", test.query)

		response, err := engine.ProcessTurn(ctx, model.QueryInput{
			ThreadID: threadID,
			Query:    test.query,
		})
		if err != nil {
			log.Fatalf("Turn %d failed: %v", i+1, err)
		}

		fmt.Printf("Response %d: %s\n", i+1, response)
		fmt.Println("─────────────────────────────────────────────")

		// slight delay between turns for readability
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("Conversation completed.")
}
