package bootstrap

import (
	"context"
	"log"
	"time"

	"subguard-be/internal/config"
	"subguard-be/internal/controller"
	"subguard-be/internal/handler"
	"subguard-be/internal/pkg/logger"
	"subguard-be/internal/pkg/mailer"
	"subguard-be/internal/repository/implementation"
	"subguard-be/internal/repository/unitofwork"
	"subguard-be/internal/service"
	"subguard-be/internal/websocket"
	"subguard-be/pkg/cancellation/analytics"
	"subguard-be/pkg/cancellation/capability"
	"subguard-be/pkg/cancellation/executor"
	"subguard-be/pkg/cancellation/method"
	"subguard-be/pkg/cancellation/orchestrator"
	"subguard-be/pkg/detection"

	pktNats "subguard-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DetectionController    controller.IDetectionController
	CancellationController controller.ICancellationController
	AnalyticsController    controller.IAnalyticsController

	// Background Services (Exposed for main.go to run)
	DispatchWorker     service.IDispatchWorker
	StaleSweepInterval time.Duration

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
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
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/notification.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Domain Components
	matcher := detection.NewPatternMatcher(cfg.Detection)
	synthesizer := detection.NewSynthesizer(nil)

	assessor := capability.NewAssessor(implementation.NewCapabilityRepository(db))
	selector := method.NewSelector()

	machine := orchestrator.NewMachine(
		service.NewOrchestratorStores(uowFactory),
		service.NewTxRunner(uowFactory),
		cfg.Orchestration,
		nil,
		sysLogger,
	)

	registry := executor.NewRegistry(
		executor.NewApiExecutor(cfg.Orchestration.ApiTimeout, sysLogger),
		executor.NewAutomationExecutor(
			executor.NewHTTPAutomationRunner(cfg.Orchestration.AutomationServiceURL),
			cfg.Orchestration.AutomationTimeout,
			sysLogger,
		),
		executor.NewManualExecutor(),
	)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Orchestration.DispatchTopic, pubSub)

	detectionService := service.NewDetectionService(uowFactory, matcher, synthesizer, natsPub, sysLogger)
	cancellationService := service.NewCancellationService(
		uowFactory,
		assessor,
		selector,
		machine,
		publisherService,
		natsPub,
		wsHub,
		sysLogger,
	)
	analyticsService := service.NewAnalyticsService(
		analytics.NewEngine(service.NewAnalyticsStore(uowFactory), cfg.Analytics, nil),
	)

	dispatchWorker := service.NewDispatchWorker(
		pubSub,
		cfg.Orchestration.DispatchTopic,
		uowFactory,
		machine,
		registry,
		assessor,
		publisherService,
		natsPub,
		wsHub,
		sysLogger,
	)

	// Notification Domain
	notifRepo := implementation.NewNotificationRepository(db)
	notifService := service.NewNotificationService(notifRepo, natsSub, wsHub, emailService, wsLogger)

	// Start Service (Worker)
	if natsSub != nil {
		go notifService.Start()
	}

	notifHandler := handler.NewNotificationHandler(notifService, wsHub, wsLogger)

	// 5. Controllers
	return &Container{
		DetectionController:    controller.NewDetectionController(detectionService),
		CancellationController: controller.NewCancellationController(cancellationService),
		AnalyticsController:    controller.NewAnalyticsController(analyticsService),

		DispatchWorker:     dispatchWorker,
		StaleSweepInterval: cfg.Orchestration.StaleSweepInterval,

		NotificationHandler: notifHandler,
		WebSocketHub:        wsHub,
	}
}
