package bootstrap

import (
	"context"
	"log"

	"redline-be/internal/config"
	"redline-be/internal/controller"
	"redline-be/internal/handler"
	"redline-be/internal/pkg/logger"
	"redline-be/internal/repository/memory"
	"redline-be/internal/repository/unitofwork"
	"redline-be/internal/service"
	"redline-be/internal/session"
	"redline-be/internal/websocket"
	"redline-be/pkg/events"
	"redline-be/pkg/llm/factory"

	pktNats "redline-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ThreadController   controller.IThreadController
	LogController      controller.ILogController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	ActivityService *service.ActivityService

	// WebSockets
	SyncHandler  *handler.SyncHandler
	AgentHandler *handler.AgentHandler
	WebSocketHub *websocket.Hub

	Logger logger.ILogger
}

func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())

	// 2. In-process queue
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.BaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	sessionRepo := memory.NewSessionRepository(cfg.App.SessionTTL)

	// 3. Infrastructure
	// NATS
	var eventPublisher events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Rooms stay local to this instance", err)
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.SocketLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run(ctx)

	// MinIO
	snapshots, err := service.NewMinioSnapshotService(ctx, cfg.MinIO)
	if err != nil {
		log.Printf("[WARN] Failed to connect to MinIO: %v. Snapshots are kept in memory", err)
		snapshots = service.NewMemorySnapshotService()
	}

	// 4. Services
	secret := []byte(cfg.App.JWTSecret)
	opts := session.DefaultOptions()
	opts.Margin = cfg.Layout.Margin
	opts.LineHeight = cfg.Layout.LineHeight
	opts.ThreadHeight = cfg.Layout.ThreadHeight
	opts.CommentHeight = cfg.Layout.CommentHeight

	documentService := service.NewDocumentService(
		uowFactory,
		sessionRepo,
		snapshots,
		wsHub, // Hub implements RoomBroadcaster
		eventPublisher,
		opts,
		secret,
		sysLogger,
	)

	publisherService := service.NewPublisherService(service.AgentExchangeTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		service.AgentExchangeTopic,
		uowFactory,
		sysLogger,
	)
	agentService := service.NewAgentService(
		documentService,
		llmProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.Temperature,
		publisherService,
		sysLogger,
	)
	activityService := service.NewActivityService(natsSub, wsHub, wsLogger)

	// 5. Controllers
	return &Container{
		DocumentController: controller.NewDocumentController(documentService),
		ThreadController:   controller.NewThreadController(documentService),
		LogController:      controller.NewLogController(sysLogger),

		ConsumerService: consumerService,
		ActivityService: activityService,

		SyncHandler:  handler.NewSyncHandler(documentService, wsHub, secret, wsLogger),
		AgentHandler: handler.NewAgentHandler(agentService, wsHub, secret, wsLogger),
		WebSocketHub: wsHub,

		Logger: sysLogger,
	}
}
