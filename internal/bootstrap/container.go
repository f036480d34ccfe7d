package bootstrap

import (
	"context"
	"log"

	"ai-support-router-be/internal/config"
	"ai-support-router-be/internal/configstore"
	"ai-support-router-be/internal/controller"
	"ai-support-router-be/internal/pkg/logger"
	"ai-support-router-be/internal/websocket"
	"ai-support-router-be/pkg/database"
	"ai-support-router-be/pkg/embedding"
	"ai-support-router-be/pkg/embedding/jina"
	"ai-support-router-be/pkg/executor"
	"ai-support-router-be/pkg/index"
	"ai-support-router-be/pkg/index/pgstore"
	"ai-support-router-be/pkg/llm"
	"ai-support-router-be/pkg/llm/factory"
	"ai-support-router-be/pkg/rerank"
	"ai-support-router-be/pkg/router"
	"ai-support-router-be/pkg/session"
	"ai-support-router-be/pkg/synthesis"
	"ai-support-router-be/pkg/telemetry"

	pktNats "ai-support-router-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	ChatController  controller.IChatController
	AdminController controller.IAdminController

	// Core services, exposed for the CLIs
	Engine      *session.Engine
	ConfigStore *configstore.Store
	Searcher    index.Searcher
	Logger      logger.ILogger

	WebSocketHub *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Config store (tools, content, planner, user resources)
	store, err := configstore.NewStore(cfg.App.ConfigDir, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to open config store: %v", err)
	}

	// In-process event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Embedding provider
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Ai.JinaAPIKey)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	}

	// LLM provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.HFAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	structured := llm.NewStructuredClient(llmProvider, sysLogger)

	// Content index: pgvector-backed when a DSN is configured, in-memory otherwise
	var searcher index.Searcher
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Fatalf("[FATAL] Unable to connect to GORM DB: %v", err)
		}
		pg := pgstore.NewStore(db, embeddingProvider, cfg.Planner.MaxDistance, sysLogger)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatalf("[FATAL] Failed to migrate vector store: %v", err)
		}
		searcher = pg
		log.Printf("[INFO] Using Index Backend: PGVECTOR")
	} else {
		searcher = index.NewMemoryIndex(embeddingProvider, cfg.Planner.MaxDistance, sysLogger)
		log.Printf("[INFO] Using Index Backend: MEMORY")
	}

	// Initial build from the stored catalog. A cold embedding backend should
	// not prevent startup; retrieval degrades until the next reindex.
	if err := searcher.RebuildAll(context.Background(), store.LoadContent()); err != nil {
		log.Printf("[WARN] Initial index build failed: %v", err)
	}

	// NATS (optional cross-process telemetry)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// Redis (optional telemetry hub fan-out)
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	telemetryPublisher := telemetry.NewPublisher(pubSub, natsPub, sysLogger)

	// Telemetry websocket hub on an isolated log
	wsLogger := logger.NewIsolatedLogger("logs/telemetry.log")
	wsHub := websocket.NewHub(telemetryPublisher, rdb, wsLogger)
	go wsHub.Run(context.Background())

	// Durable NATS audit trail of completed turns
	if natsSub != nil {
		startAuditConsumer(natsSub, wsLogger)
	}

	// Turn pipeline
	rerankers := rerank.NewRegistry(sysLogger)
	policies := DefaultPolicies()
	exec := executor.NewExecutor(searcher, rerankers, policies, cfg.Planner.SimilarityThreshold, sysLogger)
	RegisterDefaultHandlers(exec, store)

	planner := router.NewPlanner(structured, sysLogger)
	synthesizer := synthesis.NewGenerator(structured, sysLogger)
	sessions := session.NewRepository()

	engine := session.NewEngine(
		sessions,
		planner,
		exec,
		synthesizer,
		configstore.NewSource(store),
		telemetryPublisher,
		sysLogger,
	)

	return &Container{
		ChatController:  controller.NewChatController(engine, sysLogger),
		AdminController: controller.NewAdminController(store, searcher, wsHub, natsPub, sysLogger),
		Engine:          engine,
		ConfigStore:     store,
		Searcher:        searcher,
		Logger:          sysLogger,
		WebSocketHub:    wsHub,
	}
}
