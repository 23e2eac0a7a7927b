package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "dealerflow/internal/common/api"
	"dealerflow/internal/config"
	"dealerflow/internal/connectors"
	"dealerflow/internal/database"
	"dealerflow/internal/features/audit"
	"dealerflow/internal/features/automation"
	"dealerflow/internal/features/definition"
	"dealerflow/internal/features/escalation"
	"dealerflow/internal/features/instance"
	"dealerflow/internal/features/notification"
	"dealerflow/internal/features/system"
	"dealerflow/internal/features/work"
	"dealerflow/internal/logger"
	"dealerflow/internal/middleware"
	"dealerflow/pkg/utils"

	_ "dealerflow/docs" // Import swagger docs

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
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for _, route := range routes {
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
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

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, defRepo definition.DefinitionRepository, instRepo instance.InstanceRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := defRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure definition indexes: %v", err)
				}
				if err := instRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure instance indexes: %v", err)
				}
			}()
			return nil
		},
	})
}

// @title           DealerFlow API
// @version         1.0
// @description     Dealer operations process orchestration service.

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

			// External subject registry
			connectors.NewSQLSubjectRegistry,

			// Initialize Repository
			audit.NewAuditRepository,
			definition.NewDefinitionRepository,
			instance.NewInstanceRepository,
			notification.NewNotificationRepository,
			automation.NewHookRepository,

			// Initialize Service
			audit.NewAuditService,
			definition.NewDefinitionService,
			instance.NewInstanceService,
			instance.NewEngine,
			work.NewWorkService,
			escalation.NewEscalationService,
			escalation.NewScheduler,
			notification.NewHub,
			notification.NewNotificationService,
			notification.NewEngineEventSink,
			automation.NewPolicyService,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(s automation.PolicyService) instance.RejectionPolicy { return s },
			func(s *notification.EngineEventSink) instance.EventSink { return s },
			func(r *connectors.SQLSubjectRegistry) work.SubjectResolver { return r },

			// Initialize Controller
			audit.NewAuditController,
			definition.NewDefinitionController,
			instance.NewInstanceController,
			work.NewWorkController,
			escalation.NewEscalationController,
			notification.NewNotificationController,
			automation.NewHookController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(definition.NewDefinitionApi),
			AsRoute(instance.NewInstanceApi),
			AsRoute(work.NewWorkApi),
			AsRoute(escalation.NewEscalationApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(automation.NewHookApi),
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
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, scheduler *escalation.Scheduler) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return scheduler.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return scheduler.StopScheduler()
					},
				})
			},
			func(lc fx.Lifecycle, registry *connectors.SQLSubjectRegistry) {
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return registry.Close()
					},
				})
			},
			InitializeIndexes,
		),
	)

	app.Run()
}
