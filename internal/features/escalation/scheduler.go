package escalation

import (
	"context"
	"fmt"

	"dealerflow/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the escalation scan on the configured cron expression.
type Scheduler struct {
	Service EscalationService
	Config  *config.Config
	Logger  *zap.Logger

	scheduler *cron.Cron
}

func NewScheduler(service EscalationService, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Service: service,
		Config:  cfg,
		Logger:  logger,
	}
}

func (s *Scheduler) InitializeScheduler(ctx context.Context) error {
	s.Logger.Info("Initializing escalation scheduler",
		zap.String("schedule", s.Config.EscalationCron))

	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.Config.EscalationCron, func() {
		if err := s.Service.ProcessEscalations(context.Background()); err != nil {
			s.Logger.Error("Escalation run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid escalation schedule %q: %w", s.Config.EscalationCron, err)
	}

	s.scheduler.Start()
	return nil
}

func (s *Scheduler) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}
