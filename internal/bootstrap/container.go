package bootstrap

import (
	"context"
	"fmt"
	"log"

	"virtualrag-be/internal/config"
	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/handler"
	"virtualrag-be/internal/metrics"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/repository/memory"
	"virtualrag-be/internal/repository/unitofwork"
	"virtualrag-be/internal/service"
	"virtualrag-be/internal/websocket"
	"virtualrag-be/pkg/embedding"
	"virtualrag-be/pkg/llm"
	"virtualrag-be/pkg/llm/factory"
	"virtualrag-be/pkg/loader"
	"virtualrag-be/pkg/lock"
	"virtualrag-be/pkg/rag/prompt"
	"virtualrag-be/pkg/rag/response"
	"virtualrag-be/pkg/utils"
	"virtualrag-be/pkg/vectorstore"

	pktNats "virtualrag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Handlers
	ChatHandler *handler.ChatHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub

	// Metrics registry served on /metrics
	Registry *prometheus.Registry

	Logger logger.ILogger

	sessionLogger logger.ILogger
	natsPub       *pktNats.Publisher
	rdb           *redis.Client
	pubSub        *gochannel.GoChannel
}

// NewContainer wires every component. db is only used by the pgvector backend
// and may be nil otherwise.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	sessionLogger := logger.NewIsolatedLogger(cfg.App.SessionLogFilePath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.LLMBaseURL, cfg.Ai.EmbeddingModel)
	log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.Temperature,
		cfg.Ai.Timeout,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Vector Index
	var index vectorstore.Index
	switch cfg.Rag.VectorBackend {
	case "pgvector":
		if db == nil {
			return nil, fmt.Errorf("pgvector backend needs a database connection")
		}
		index = vectorstore.NewPgvectorStore(unitofwork.NewRepositoryFactory(db), embeddingProvider.Embed)
	default:
		index, err = vectorstore.NewChromemStore(cfg.Rag.VectorDBPath, cfg.Rag.CollectionName, embeddingProvider.Embed)
		if err != nil {
			return nil, err
		}
	}
	log.Printf("[INFO] Using Vector Backend: %s", cfg.Rag.VectorBackend)

	splitter, err := utils.NewTextSplitter(cfg.Rag.ChunkStrategy, cfg.Rag.ChunkSize, cfg.Rag.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	// 5. Infrastructure
	// Redis (optional): a shared lease so several instances on one index never double-ingest
	var (
		locker lock.Locker = lock.NewKeyedMutex()
		rdb    *redis.Client
	)
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Using in-process lock", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			locker = lock.NewRedisLocker(rdb, "virtualrag:ingest:", 0)
		}
	}

	// NATS (optional): forwards indexing events to external observers
	var (
		natsPub   *pktNats.Publisher
		forwarder service.EventForwarder
	)
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		} else {
			forwarder = natsPub
		}
	}

	// 6. Services
	knownHashes := memory.NewKnownHashRepository()

	publisherService := service.NewPublisherService(constant.TopicDocumentIndexed, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		pubSub,
		constant.TopicDocumentIndexed,
		service.ConsumerRetry{
			MaxRetries:      constant.ForwardMaxRetries,
			InitialInterval: constant.ForwardRetryInitialInterval,
			MaxInterval:     constant.ForwardRetryMaxInterval,
		},
		forwarder,
		sysLogger,
		watermillLogger,
	)

	ingestionService := service.NewIngestionService(
		service.IngestionOptions{
			AllowedExtensions: cfg.Document.AllowedExtensions,
			MaxFileSizeBytes:  cfg.MaxFileSizeBytes(),
			MaxFileSizeMB:     cfg.Document.MaxFileSizeMB,
			TempDir:           cfg.Document.TempDir,
		},
		loader.NewDefaultRegistry(),
		splitter,
		index,
		knownHashes,
		locker,
		publisherService,
		m,
		sysLogger,
	)
	retrievalService := service.NewRetrievalService(index, m)

	streamer := response.NewStreamer(
		llmProvider,
		prompt.NewBuilder(cfg.Ai.SystemInstruction),
		cfg.Rag.HistoryWindow,
		m,
		llm.WithTemperature(cfg.Ai.Temperature),
		llm.WithMaxTokens(cfg.Ai.MaxTokens),
	)
	chatService := service.NewChatService(ingestionService, retrievalService, streamer, cfg.Rag.TopK, sysLogger)
	authService := service.NewAuthService(cfg.Auth.Password)

	// WebSocket Hub
	wsHub := websocket.NewHub(m, sessionLogger)
	go wsHub.Run()

	healthService := service.NewHealthService(index, knownHashes, llmProvider, wsHub, sysLogger)

	// 7. Handlers
	chatHandler := handler.NewChatHandler(
		wsHub,
		websocket.SessionDeps{
			Auth:              authService,
			Chat:              chatService,
			Logger:            sessionLogger,
			MaxHistory:        cfg.Chat.MaxHistory,
			FailureCloseDelay: cfg.Auth.FailureCloseDelay,
		},
		healthService,
		int64(cfg.WebSocket.MaxMessageMB)*1024*1024,
		sysLogger,
	)

	return &Container{
		ChatHandler:     chatHandler,
		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
		Registry:        registry,
		Logger:          sysLogger,
		sessionLogger:   sessionLogger,
		natsPub:         natsPub,
		rdb:             rdb,
		pubSub:          pubSub,
	}, nil
}

// Close releases the optional infrastructure and flushes the logs.
func (c *Container) Close() {
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			log.Printf("[WARN] Failed to close Redis: %v", err)
		}
	}
	_ = c.sessionLogger.Sync()
	_ = c.Logger.Sync()
}
