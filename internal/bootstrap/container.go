package bootstrap

import (
	"context"
	"fmt"
	"log"

	"rag-chat-be/internal/config"
	"rag-chat-be/internal/controller"
	"rag-chat-be/internal/handler"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/repository/memory"
	"rag-chat-be/internal/repository/unitofwork"
	"rag-chat-be/internal/service"
	"rag-chat-be/internal/websocket"
	"rag-chat-be/pkg/blob"
	"rag-chat-be/pkg/embedding"
	"rag-chat-be/pkg/kpi"
	"rag-chat-be/pkg/llm/factory"
	"rag-chat-be/pkg/rag/followup"
	"rag-chat-be/pkg/rag/framing"
	"rag-chat-be/pkg/rag/prompt"
	"rag-chat-be/pkg/rag/retrieval"
	"rag-chat-be/pkg/rag/rewrite"
	"rag-chat-be/pkg/rag/session"
	"rag-chat-be/pkg/rag/stream"
	"rag-chat-be/pkg/sessionstore"

	pktNats "rag-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const turnsTopic = "chat.turns"

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	AdminController   controller.IAdminController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	ChatSocketHandler *handler.ChatSocketHandler
	WebSocketHub      *websocket.Hub

	Logger logger.ILogger

	closers []func() error
}

// NewContainer wires the gateway process: chat pipeline, websocket hub and REST API.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c.Logger = sysLogger
	authorizer := serverutils.NewAuthorizer(cfg.App.JwtSecret, cfg.App.AdminGroup)

	framingMode, err := framing.ParseMode(cfg.Ai.FramingMode)
	if err != nil {
		return nil, err
	}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, pubSub.Close)

	// 3. Infrastructure
	nc, err := pktNats.Connect(cfg.App.NatsURL)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() error { nc.Close(); return nil })

	natsPub, err := pktNats.NewPublisher(nc)
	if err != nil {
		log.Printf("[WARN] JetStream unavailable, turn events stay in-process: %v", err)
	}

	rdb := NewRedisClient(cfg.App.RedisURL)
	c.closers = append(c.closers, rdb.Close)

	templates, closeTemplates, err := blob.NewStore(context.Background(), blob.Config{
		Backend:         cfg.Storage.Backend,
		Bucket:          cfg.Storage.Bucket,
		CredentialsPath: cfg.Storage.CredentialsPath,
		LocalDir:        cfg.Storage.LocalDir,
	})
	if err != nil {
		return nil, fmt.Errorf("prompt storage: %w", err)
	}
	c.closers = append(c.closers, closeTemplates)

	// 4. Providers
	generator, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	aux, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:      cfg.Ai.AuxLLMProvider,
		Model:         cfg.Ai.AuxLLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
	})
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewProvider(embedding.Config{
		Provider:      cfg.Ai.EmbeddingProvider,
		Model:         cfg.Ai.EmbeddingModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OpenAIAPIKey:  cfg.Ai.OpenAIAPIKey,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
	})
	if err != nil {
		return nil, err
	}

	index, err := service.NewKnowledgeIndex(uowFactory, embedder, cfg.Knowledge.Mode)
	if err != nil {
		return nil, err
	}

	// 5. Gateway
	wsLogger := logger.NewIsolatedLogger(cfg.App.GatewayLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, memory.NewConnectionRepository(), wsLogger)

	// 6. Services
	store := sessionstore.NewClient(pktNats.NewRequester(nc), cfg.Sessions.Subject, cfg.Sessions.RequestTimeout)

	publisherService := service.NewPublisherService(turnsTopic, pubSub)
	var relay service.EventRelay
	if natsPub != nil {
		relay = natsPub
	}
	c.ConsumerService = service.NewConsumerService(pubSub, turnsTopic, relay, sysLogger)

	chatbotService := service.NewChatbotService(service.ChatbotDeps{
		Rewriter: rewrite.NewRewriter(aux, cfg.Ai.RewriteTurns),
		Retriever: retrieval.NewRetriever(index, retrieval.Config{
			IndexID:        cfg.Knowledge.IndexID,
			TopK:           cfg.Knowledge.TopK,
			Threshold:      &cfg.Knowledge.Threshold,
			MaxQueryLength: cfg.Knowledge.MaxQueryLength,
			SortByRecency:  cfg.Knowledge.SortByRecency,
		}),
		Prompt:    prompt.NewAssembler(templates, cfg.Storage.TemplateKey),
		Streamer:  stream.NewAdapter(generator, c.WebSocketHub, sysLogger, cfg.Ai.WatchdogTimeout, cfg.Ai.HistoryTurns),
		FollowUps: followup.NewGenerator(aux),
		Recorder:  session.NewRecorder(store, aux, sysLogger),
		Gateway:   c.WebSocketHub,
		Events:    publisherService,
		Framing:   framingMode,
		Logger:    sysLogger,
	})

	sessionService := service.NewSessionService(store, kpi.NewRecorder(rdb))

	// 7. Controllers
	c.SessionController = controller.NewSessionController(sessionService, authorizer)
	c.AdminController = controller.NewAdminController(sessionService, c.WebSocketHub, authorizer)
	c.ChatSocketHandler = handler.NewChatSocketHandler(chatbotService, c.WebSocketHub, authorizer, wsLogger)

	return c, nil
}

// Close releases infrastructure in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("[WARN] Shutdown step failed: %v", err)
		}
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func NewRedisClient(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: url,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return rdb
}
