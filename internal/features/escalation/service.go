package escalation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/config"
	"dealerflow/internal/features/audit"
	"dealerflow/internal/features/instance"
	"dealerflow/internal/features/notification"

	"go.uber.org/zap"
)

type EscalationService interface {
	// Scan reports every overdue step as of now. It only reads; running a
	// scan never changes any instance.
	Scan(ctx context.Context, now time.Time) ([]Signal, error)
	// ProcessEscalations scans and pushes a notification per signal. One bad
	// signal never stops the rest.
	ProcessEscalations(ctx context.Context) error
}

type EscalationServiceImpl struct {
	InstanceRepo instance.InstanceRepository
	Notification notification.NotificationService
	Hub          *notification.Hub
	AuditService audit.AuditService
	Thresholds   Thresholds
	Logger       *zap.Logger
}

func NewEscalationService(
	instanceRepo instance.InstanceRepository,
	notificationService notification.NotificationService,
	hub *notification.Hub,
	auditService audit.AuditService,
	cfg *config.Config,
	logger *zap.Logger,
) EscalationService {
	return &EscalationServiceImpl{
		InstanceRepo: instanceRepo,
		Notification: notificationService,
		Hub:          hub,
		AuditService: auditService,
		Thresholds: Thresholds{
			Watch:    cfg.EscalationWatch,
			Warning:  cfg.EscalationWarning,
			Critical: cfg.EscalationCritical,
		},
		Logger: logger,
	}
}

func (s *EscalationServiceImpl) Scan(ctx context.Context, now time.Time) ([]Signal, error) {
	if s.Thresholds.Watch <= 0 {
		return nil, errs.Validationf("watch threshold must be positive, got %v", s.Thresholds.Watch)
	}

	insts, err := s.InstanceRepo.ListByStatuses(ctx, []instance.ProcessStatus{instance.ProcessInProgress})
	if err != nil {
		return nil, err
	}

	var signals []Signal
	for i := range insts {
		sig, ok := s.signalFor(&insts[i], now)
		if !ok {
			continue
		}
		signals = append(signals, sig)
	}

	// Worst first, then the usual queue order.
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Ratio != signals[j].Ratio {
			return signals[i].Ratio > signals[j].Ratio
		}
		if signals[i].Priority != signals[j].Priority {
			return signals[i].Priority < signals[j].Priority
		}
		return signals[i].InstanceID < signals[j].InstanceID
	})
	return signals, nil
}

// signalFor inspects one instance's open step. Steps without an expected
// duration or a start time can never escalate.
func (s *EscalationServiceImpl) signalFor(inst *instance.ProcessInstance, now time.Time) (Signal, bool) {
	step := inst.CurrentStep()
	if step == nil || step.StartedAt == nil || step.ExpectedHours <= 0 {
		return Signal{}, false
	}

	elapsed := now.Sub(*step.StartedAt).Hours()
	if elapsed < 0 {
		return Signal{}, false
	}
	ratio := elapsed / step.ExpectedHours

	var tier Tier
	switch {
	case ratio >= s.Thresholds.Critical:
		tier = TierCritical
	case ratio >= s.Thresholds.Warning:
		tier = TierWarning
	case ratio >= s.Thresholds.Watch:
		tier = TierWatch
	default:
		return Signal{}, false
	}

	return Signal{
		InstanceID:       inst.ID.Hex(),
		SubjectID:        inst.SubjectID,
		ProcessType:      inst.ProcessType,
		Priority:         inst.Priority,
		SequenceNumber:   step.SequenceNumber,
		StepName:         step.Name,
		ResponsibleParty: step.ResponsibleParty,
		AssignedTo:       step.AssignedTo,
		Tier:             tier,
		ExpectedHours:    step.ExpectedHours,
		ElapsedHours:     elapsed,
		Ratio:            ratio,
		StepStartedAt:    *step.StartedAt,
	}, true
}

func (s *EscalationServiceImpl) ProcessEscalations(ctx context.Context) error {
	signals, err := s.Scan(ctx, time.Now())
	if err != nil {
		return err
	}

	s.Logger.Info("Escalation scan finished", zap.Int("signals", len(signals)))

	failed := 0
	for _, sig := range signals {
		if err := s.dispatch(ctx, sig); err != nil {
			failed++
			s.Logger.Error("Failed to dispatch escalation",
				zap.String("instance_id", sig.InstanceID),
				zap.String("tier", string(sig.Tier)),
				zap.Error(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to dispatch %d of %d escalations", failed, len(signals))
	}
	return nil
}

func (s *EscalationServiceImpl) dispatch(ctx context.Context, sig Signal) error {
	if s.Hub != nil {
		s.Hub.Broadcast(sig)
	}

	recipient := sig.AssignedTo
	if recipient == "" {
		recipient = sig.ResponsibleParty
	}
	if recipient != "" && s.Notification != nil {
		n := notification.Notification{
			UserID: recipient,
			Title:  fmt.Sprintf("Step overdue (%s)", sig.Tier),
			Message: fmt.Sprintf("%s on %s has been open %.1fh, expected %.1fh",
				sig.StepName, sig.SubjectID, sig.ElapsedHours, sig.ExpectedHours),
			Type: notification.NotificationTypeEscalation,
			Link: "/instances/" + sig.InstanceID,
		}
		if err := s.Notification.Notify(ctx, n); err != nil {
			return err
		}
	}

	return s.AuditService.LogChange(ctx, common_models.AuditActionEscalation, "process_instances", sig.InstanceID, map[string]common_models.Change{
		"tier": {New: sig.Tier},
		"step": {New: sig.StepName},
	})
}
