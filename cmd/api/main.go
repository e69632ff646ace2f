package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-marketplace/internal/common/api"
	"go-marketplace/internal/config"
	"go-marketplace/internal/database"
	"go-marketplace/internal/features/automation"
	"go-marketplace/internal/features/business"
	"go-marketplace/internal/features/listing"
	"go-marketplace/internal/features/realtime"
	"go-marketplace/internal/features/sync"
	"go-marketplace/internal/features/system"
	"go-marketplace/internal/features/webhook"
	"go-marketplace/internal/logger"
	"go-marketplace/internal/middleware"
	"go-marketplace/pkg/utils"

	_ "go-marketplace/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// @title           Marketplace Sync API
// @version         1.0
// @description     Marketplace backend with listing synchronization, webhooks and automation.

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, history sync.HistoryRepository, webhooks webhook.WebhookRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := history.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("sync history indexes: %w", err)
			}
			if err := webhooks.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("webhook indexes: %w", err)
			}
			return nil
		},
	})
}

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Initialize Repository
			business.NewBusinessRepository,
			sync.NewConfigRepository,
			sync.NewHistoryRepository,
			webhook.NewWebhookRepository,
			webhook.NewDeliveryLogRepository,
			automation.NewAutomationRepository,

			// Initialize Services
			listing.NewHTTPClient,
			business.NewBusinessService,
			webhook.NewWebhookService,
			automation.NewActionExecutor,
			automation.NewAutomationService,
			realtime.NewHub,
			sync.NewSessionRegistry,
			sync.NewEventEmitter,
			sync.NewSyncService,
			sync.NewAutoSyncScheduler,

			// Interface Adapters to satisfy Fx
			func(h *realtime.Hub) sync.RealtimePublisher { return h },
			func(s webhook.WebhookService) sync.WebhookTrigger { return s },
			func(s webhook.WebhookService) sync.SyncWebhookRegistrar { return s },
			func(s automation.AutomationService) sync.RuleRunner { return s },

			// Initialize Controller
			business.NewBusinessController,
			sync.NewSyncController,
			webhook.NewWebhookController,
			automation.NewAutomationController,
			realtime.NewRealtimeController,
			system.NewDebugController,

			// Initialize API Routes
			AsRoute(business.NewBusinessApi),
			AsRoute(sync.NewSyncApi),
			AsRoute(webhook.NewWebhookApi),
			AsRoute(automation.NewAutomationApi),
			AsRoute(realtime.NewRealtimeApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},

			// Register Routes & Start
			InitializeIndexes,
			RegisterAllRoutesWithAnnotation,
			StartServer,

			func(lc fx.Lifecycle, scheduler *sync.AutoSyncScheduler) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return scheduler.Start(ctx)
					},
					OnStop: func(ctx context.Context) error {
						scheduler.Stop()
						return nil
					},
				})
			},
		),
	)

	app.Run()
}
