package main

import (
	"context"

	"dealerflow/internal/config"
	"dealerflow/internal/database"
	"dealerflow/internal/features/audit"
	"dealerflow/internal/features/definition"
	"dealerflow/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func defaultDefinitions() []definition.ProcessDefinition {
	return []definition.ProcessDefinition{
		{
			Name:        "Standard Acquisition",
			Description: "Intake through documentation for newly acquired vehicles",
			ProcessType: definition.ProcessTypeAcquisition,
			Steps: []definition.StepTemplate{
				{SequenceNumber: 1, Name: "Intake", Description: "Log the vehicle and key details", ExpectedHours: 2, ResponsibleParty: "sales"},
				{SequenceNumber: 2, Name: "Inspection", Description: "Mechanical and cosmetic inspection", ExpectedHours: 4, ResponsibleParty: "shop", RequiresApproval: true, RequiredDocuments: []string{"inspection_report"}},
				{SequenceNumber: 3, Name: "Documentation", Description: "Title, odometer and disclosure paperwork", ExpectedHours: 1, ResponsibleParty: "office", RequiredDocuments: []string{"title", "odometer_statement"}},
			},
		},
		{
			Name:        "Standard Reconditioning",
			Description: "Shop work before a vehicle goes front-line",
			ProcessType: definition.ProcessTypeReconditioning,
			Steps: []definition.StepTemplate{
				{SequenceNumber: 1, Name: "Estimate", ExpectedHours: 2, ResponsibleParty: "shop"},
				{SequenceNumber: 2, Name: "Repair", ExpectedHours: 16, ResponsibleParty: "shop"},
				{SequenceNumber: 3, Name: "Detail", ExpectedHours: 3, ResponsibleParty: "detail"},
				{SequenceNumber: 4, Name: "Quality Check", ExpectedHours: 1, ResponsibleParty: "shop", RequiresApproval: true},
			},
		},
		{
			Name:        "Aging Review",
			Description: "Review cadence for slow-moving inventory",
			ProcessType: definition.ProcessTypeAging,
			Steps: []definition.StepTemplate{
				{SequenceNumber: 1, Name: "Pricing Review", ExpectedHours: 4, ResponsibleParty: "sales"},
				{SequenceNumber: 2, Name: "Disposition Decision", ExpectedHours: 8, ResponsibleParty: "management", RequiresApproval: true},
			},
		},
	}
}

// Seed publishes the stock definitions and marks each one the default for
// its process type. Re-running is safe: existing active names are skipped.
func Seed(
	lc fx.Lifecycle,
	defService definition.DefinitionService,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("Seeding process definitions...")

				seedCtx := context.Background()
				for _, def := range defaultDefinitions() {
					created, err := defService.Publish(seedCtx, def)
					if err != nil {
						logger.Warn("Skipping definition",
							zap.String("name", def.Name),
							zap.Error(err))
						continue
					}
					if err := defService.SetDefault(seedCtx, created.ProcessType, created.ID.Hex()); err != nil {
						logger.Error("Failed to mark default",
							zap.String("name", created.Name),
							zap.Error(err))
						continue
					}
					logger.Info("Seeded definition",
						zap.String("name", created.Name),
						zap.String("process_type", string(created.ProcessType)))
				}

				logger.Info("Seeding finished")
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,

			audit.NewAuditRepository,
			audit.NewAuditService,
			definition.NewDefinitionRepository,
			definition.NewDefinitionService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
