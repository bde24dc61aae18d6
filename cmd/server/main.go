package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/saeid-a/coachmatch/internal/config"
	"github.com/saeid-a/coachmatch/internal/database"
	"github.com/saeid-a/coachmatch/internal/events"
	"github.com/saeid-a/coachmatch/internal/handlers"
	"github.com/saeid-a/coachmatch/internal/keylock"
	"github.com/saeid-a/coachmatch/internal/middleware"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/notify"
	"github.com/saeid-a/coachmatch/internal/repository"
	"github.com/saeid-a/coachmatch/internal/repository/memstore"
	"github.com/saeid-a/coachmatch/internal/routes"
	"github.com/saeid-a/coachmatch/internal/services"
	"github.com/saeid-a/coachmatch/internal/telemetry"
	notifyws "github.com/saeid-a/coachmatch/internal/websocket"
)

type trainerStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.TrainerProfile, error)
	ListAll(ctx context.Context) ([]models.TrainerProfile, error)
	Upsert(ctx context.Context, input repository.UpsertTrainerInput) (*models.TrainerProfile, error)
}

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, "coachmatch", cfg.AppEnv, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	// 2. Connect to storage
	stores, trainers, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeStores()

	// 3. Notification delivery
	hub := notifyws.NewHub()
	go hub.Run(ctx)

	var sinks []services.NotificationSink
	if cfg.AMQPUrl != "" {
		publisher, err := events.NewPublisher(cfg.AMQPUrl, cfg.AMQPExchange)
		if err != nil {
			log.Printf("Domain events disabled: %v", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}

	var retry services.RetryQueue
	if cfg.RedisAddr != "" {
		client, err := database.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()

		queue := notify.NewRetryQueue(client)
		retry = queue

		// Every instance hears every notification over pub/sub, so the hub
		// is fed from the subscription rather than as a direct sink.
		broadcaster := notify.NewBroadcaster(client)
		sinks = append(sinks, broadcaster)
		go broadcaster.Subscribe(ctx, hub.Deliver)

		worker := notify.NewRetryWorker(queue, stores.Notifications, cfg.NotificationRetryMax, cfg.RepositoryTimeout, sinks...)
		go worker.Start(ctx)
	} else {
		sinks = append(sinks, hub)
	}

	// 4. Services
	locks := keylock.New()
	dispatcher := services.NewNotificationDispatcher(stores.Notifications, retry, cfg.RepositoryTimeout, sinks...)
	matchService := services.NewMatchService(stores.MatchRequests, stores.Trainers, dispatcher, locks, cfg.RepositoryTimeout)
	scheduleService := services.NewScheduleService(stores.Appointments, dispatcher, locks, cfg.RepositoryTimeout)
	notificationService := services.NewNotificationService(stores.Notifications, cfg.RepositoryTimeout)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	go limiter.Cleanup(ctx)

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{AppName: "coachmatch"})

	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())
	if cfg.MetricsEnabled() {
		app.Use(middleware.Metrics())
	}

	routes.RegisterRoutes(app, cfg, routes.Handlers{
		MatchRequests: handlers.NewMatchRequestHandler(matchService),
		Appointments:  handlers.NewAppointmentHandler(scheduleService, time.Local),
		Notifications: handlers.NewNotificationHandler(notificationService, hub),
		Trainers:      handlers.NewTrainerHandler(trainers, services.NewMatchmakingService(trainers)),
		Limiter:       limiter,
	})

	// 6. Start Server
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// openStores connects to PostgreSQL, or falls back to the in-memory store
// when no DB_URL is set (allowed in development and test only).
func openStores(ctx context.Context, cfg *config.Config) (services.Stores, trainerStore, func(), error) {
	if cfg.DBUrl == "" {
		log.Println("DB_URL not set, using in-memory store")
		store := memstore.New()
		trainers := store.Trainers()
		return services.Stores{
			MatchRequests: store.MatchRequests(),
			Appointments:  store.Appointments(),
			Notifications: store.Notifications(),
			Trainers:      trainers,
		}, trainers, func() {}, nil
	}

	pool, err := database.ConnectDB(ctx, cfg.DBUrl)
	if err != nil {
		return services.Stores{}, nil, nil, err
	}
	trainers := repository.NewTrainerRepository(pool)
	return services.Stores{
		MatchRequests: repository.NewMatchRequestRepository(pool),
		Appointments:  repository.NewAppointmentRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		Trainers:      trainers,
	}, trainers, pool.Close, nil
}
