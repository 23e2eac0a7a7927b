package automation

import (
	"context"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/features/audit"
	"dealerflow/internal/features/instance"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"
)

// PolicyService manages step hooks and evaluates them for the engine. It is
// the module's instance.RejectionPolicy implementation: a rejection halts its
// process unless an active on_reject hook for the process type says
// otherwise.
type PolicyService interface {
	CreateHook(ctx context.Context, hook StepHook) (*StepHook, error)
	ListHooks(ctx context.Context) ([]StepHook, error)
	DeleteHook(ctx context.Context, id string) error
	ShouldHalt(ctx context.Context, inst *instance.ProcessInstance, step *instance.StepInstance) (bool, error)
}

type PolicyServiceImpl struct {
	Repo         HookRepository
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewPolicyService(repo HookRepository, auditService audit.AuditService, logger *zap.Logger) PolicyService {
	return &PolicyServiceImpl{
		Repo:         repo,
		AuditService: auditService,
		Logger:       logger,
	}
}

func (s *PolicyServiceImpl) CreateHook(ctx context.Context, hook StepHook) (*StepHook, error) {
	if hook.Name == "" {
		return nil, errs.Validationf("hook name is required")
	}
	if hook.ProcessType == "" {
		return nil, errs.Validationf("process type is required")
	}
	if hook.Event == "" {
		hook.Event = HookEventOnReject
	}
	if hook.Event != HookEventOnReject {
		return nil, errs.Validationf("unknown hook event %q", hook.Event)
	}

	// Compile against empty inputs so broken scripts are caught at create
	// time, not at the first rejection.
	if _, err := compileHook(hook.Script, map[string]interface{}{}, map[string]interface{}{}); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "script does not compile", err)
	}

	hook.Active = true
	if err := s.Repo.Create(ctx, &hook); err != nil {
		return nil, err
	}

	s.Logger.Info("Created step hook",
		zap.String("hook_id", hook.ID.Hex()),
		zap.String("process_type", string(hook.ProcessType)),
		zap.String("event", string(hook.Event)))

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "step_hooks", hook.ID.Hex(), map[string]common_models.Change{
		"hook": {New: hook.Name},
	})

	return &hook, nil
}

func (s *PolicyServiceImpl) ListHooks(ctx context.Context) ([]StepHook, error) {
	return s.Repo.List(ctx)
}

func (s *PolicyServiceImpl) DeleteHook(ctx context.Context, id string) error {
	hook, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if hook == nil {
		return errs.NotFoundf("hook %s not found", id)
	}
	return s.Repo.Delete(ctx, id)
}

func compileHook(script string, process, step map[string]interface{}) (*tengo.Compiled, error) {
	if script == "" {
		return nil, errs.Validationf("script content is required")
	}

	sc := tengo.NewScript([]byte(script))
	_ = sc.Add("process", process)
	_ = sc.Add("step", step)
	_ = sc.Add("halt", true)

	return sc.Compile()
}

func (s *PolicyServiceImpl) ShouldHalt(ctx context.Context, inst *instance.ProcessInstance, step *instance.StepInstance) (bool, error) {
	hook, err := s.Repo.FindActive(ctx, inst.ProcessType, HookEventOnReject)
	if err != nil {
		return true, err
	}
	if hook == nil {
		// No policy configured: a rejection halts.
		return true, nil
	}

	processVars := map[string]interface{}{
		"subject_id":   inst.SubjectID,
		"process_type": string(inst.ProcessType),
		"priority":     inst.Priority,
		"status":       string(inst.Status),
	}
	stepVars := map[string]interface{}{
		"name":              step.Name,
		"sequence_number":   step.SequenceNumber,
		"responsible_party": step.ResponsibleParty,
		"requires_approval": step.RequiresApproval,
		"notes":             step.Notes,
	}

	compiled, err := compileHook(hook.Script, processVars, stepVars)
	if err != nil {
		return true, err
	}
	if err := compiled.RunContext(ctx); err != nil {
		return true, err
	}

	halt := compiled.Get("halt").Bool()

	s.Logger.Info("Evaluated rejection hook",
		zap.String("hook_id", hook.ID.Hex()),
		zap.String("instance_id", inst.ID.Hex()),
		zap.String("step", step.Name),
		zap.Bool("halt", halt))

	return halt, nil
}
