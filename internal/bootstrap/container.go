package bootstrap

import (
	"context"
	"fmt"
	"time"

	"rag-chat-be/internal/config"
	"rag-chat-be/internal/controller"
	"rag-chat-be/internal/handler"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/internal/service"
	"rag-chat-be/internal/websocket"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/llm/factory"
	"rag-chat-be/pkg/lock"
	pktNats "rag-chat-be/pkg/nats"
	"rag-chat-be/pkg/rag/completion"
	"rag-chat-be/pkg/rag/gate"
	"rag-chat-be/pkg/rag/history"
	"rag-chat-be/pkg/rag/pipeline"
	"rag-chat-be/pkg/retrieval"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController    controller.IChatController
	ChatSocketHandler *handler.ChatSocketHandler

	// Services
	ChatService     service.IChatService
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub

	Logger logger.ILogger

	closers []func()
}

type Option func(*options)

type options struct {
	logger logger.ILogger
}

// WithLogger replaces the default stdout+file logger, e.g. for the CLI.
func WithLogger(l logger.ILogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// NewContainer wires the whole service once. ctx bounds the lifetime of
// websocket sessions.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Container{}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := o.logger
	if sysLogger == nil {
		sysLogger = logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	}
	c.Logger = sysLogger

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Model clients
	llmBaseURL := cfg.Ai.LLMBaseURL
	if cfg.Ai.LLMProvider == "ollama" && llmBaseURL == "" {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, llmBaseURL, cfg.Keys.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	sysLogger.Info("BOOTSTRAP", "Using LLM provider", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	completionClient := completion.NewClient(llmProvider, cfg.Pipeline.CompletionTimeout, sysLogger)
	retrievalGate := gate.NewGate(completionClient, cfg.Pipeline.GateTimeout, sysLogger)

	// 4. Retrieval
	backend, index := newRetrieverBackend(cfg, uowFactory, sysLogger)
	retrievalClient := retrieval.NewClient(backend, cfg.Pipeline.RetrieveDocs, cfg.Pipeline.RetrievalTimeout, sysLogger)
	sysLogger.Info("BOOTSTRAP", "Using retriever backend", map[string]interface{}{
		"backend": cfg.Retrieval.Backend,
		"k":       retrievalClient.K(),
	})

	// 5. Infrastructure
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		rdb, err = connectRedis(ctx, cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Redis unavailable, using in-process locks", map[string]interface{}{"error": err.Error()})
			rdb = nil
		} else {
			c.closers = append(c.closers, func() { _ = rdb.Close() })
		}
	}

	var relay service.EventRelay
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS publisher", map[string]interface{}{"error": err.Error()})
		} else {
			relay = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if rdb != nil {
		ttl := cfg.Pipeline.GateTimeout + cfg.Pipeline.RetrievalTimeout + cfg.Pipeline.CompletionTimeout +
			pipeline.DefaultPersistTimeout + 30*time.Second
		locker = lock.NewRedisLocker(rdb, ttl)
	}

	// 6. Pipeline
	store := history.NewGormStore(uowFactory)
	publisherService := service.NewPublisherService(pubSub, service.TurnEventsTopic)

	orchestrator := pipeline.NewOrchestrator(
		store,
		retrievalGate,
		retrievalClient,
		completionClient,
		pipeline.Config{
			HistoryDepth:           cfg.Pipeline.HistoryDepth,
			PersistPartialOnCancel: cfg.Pipeline.PersistPartialOnCancel,
		},
		sysLogger,
		pipeline.WithLocker(locker),
		pipeline.WithPublisher(publisherService),
	)

	// 7. WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.StreamLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)

	// 8. Services
	c.ConsumerService = service.NewConsumerService(pubSub, service.TurnEventsTopic, relay, c.WebSocketHub, sysLogger)
	var chatOpts []service.ChatServiceOption
	if index != nil {
		chatOpts = append(chatOpts, service.WithPassageIndex(index))
	}
	c.ChatService = service.NewChatService(store, orchestrator, publisherService, sysLogger, chatOpts...)

	// 9. Controllers
	c.ChatController = controller.NewChatController(c.ChatService)
	c.ChatSocketHandler = handler.NewChatSocketHandler(ctx, c.WebSocketHub, c.ChatService, wsLogger)

	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

// newRetrieverBackend also returns the local index to report on, if any.
func newRetrieverBackend(cfg *config.Config, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) (retrieval.Retriever, service.PassageCounter) {
	switch cfg.Retrieval.Backend {
	case "pgvector":
		embedder := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Keys.GoogleGemini, cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		pg := retrieval.NewPgvectorRetriever(uowFactory, embedder)
		return pg, pg
	case "qdrant":
		embedder := embedding.NewProvider(cfg.Ai.EmbeddingProvider, cfg.Keys.GoogleGemini, cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		return retrieval.NewQdrantRetriever(retrieval.QdrantConfig{
			URL:        cfg.Retrieval.QdrantURL,
			APIKey:     cfg.Keys.Qdrant,
			Collection: cfg.Retrieval.QdrantCollection,
		}, embedder, log), nil
	default:
		return retrieval.NoopRetriever{}, nil
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
