package instance

import (
	"context"
	"time"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/features/audit"
	"dealerflow/internal/features/definition"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"
)

// CreateRequest starts a new process for a subject. DefinitionID is optional;
// when empty the default definition for ProcessType is used.
type CreateRequest struct {
	DefinitionID string                 `json:"definition_id"`
	ProcessType  definition.ProcessType `json:"process_type"`
	SubjectID    string                 `json:"subject_id"`
	Priority     int                    `json:"priority"`
}

type InstanceService interface {
	Create(ctx context.Context, req CreateRequest) (*ProcessInstance, error)
	Get(ctx context.Context, id string) (*ProcessInstance, error)
	ListBySubject(ctx context.Context, subjectID string) ([]ProcessInstance, error)
	ListByStatus(ctx context.Context, status ProcessStatus) ([]ProcessInstance, error)
}

type InstanceServiceImpl struct {
	Repo           InstanceRepository
	DefinitionRepo definition.DefinitionRepository
	AuditService   audit.AuditService
	Logger         *zap.Logger
}

func NewInstanceService(repo InstanceRepository, defRepo definition.DefinitionRepository, auditService audit.AuditService, logger *zap.Logger) InstanceService {
	return &InstanceServiceImpl{
		Repo:           repo,
		DefinitionRepo: defRepo,
		AuditService:   auditService,
		Logger:         logger,
	}
}

func (s *InstanceServiceImpl) Create(ctx context.Context, req CreateRequest) (*ProcessInstance, error) {
	if req.SubjectID == "" {
		return nil, errs.Validationf("subject id is required")
	}

	priority := req.Priority
	if priority == 0 {
		priority = 3
	}
	if priority < 1 || priority > 5 {
		return nil, errs.Validationf("priority must be between 1 and 5, got %d", req.Priority)
	}

	def, err := s.resolveDefinition(ctx, req)
	if err != nil {
		return nil, err
	}

	steps, err := snapshotSteps(def.Steps)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	inst := &ProcessInstance{
		DefinitionID: def.ID,
		ProcessType:  def.ProcessType,
		SubjectID:    req.SubjectID,
		Status:       ProcessNotStarted,
		Priority:     priority,
		Steps:        steps,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Steps are embedded, so one insert creates the whole instance. A crash
	// can never leave a half-created process behind.
	if err := s.Repo.Insert(ctx, inst); err != nil {
		return nil, err
	}

	s.Logger.Info("Created process instance",
		zap.String("instance_id", inst.ID.Hex()),
		zap.String("subject_id", inst.SubjectID),
		zap.String("process_type", string(inst.ProcessType)),
		zap.Int("priority", inst.Priority),
		zap.Int("steps", len(inst.Steps)))

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "process_instances", inst.ID.Hex(), map[string]common_models.Change{
		"subject": {New: inst.SubjectID},
	})

	return inst, nil
}

func (s *InstanceServiceImpl) resolveDefinition(ctx context.Context, req CreateRequest) (*definition.ProcessDefinition, error) {
	if req.DefinitionID != "" {
		def, err := s.DefinitionRepo.FindByID(ctx, req.DefinitionID)
		if err != nil {
			return nil, err
		}
		if def == nil || !def.Active {
			return nil, errs.NotFoundf("definition %s not found or inactive", req.DefinitionID)
		}
		return def, nil
	}

	if req.ProcessType == "" {
		return nil, errs.Validationf("either definition_id or process_type is required")
	}
	def, err := s.DefinitionRepo.FindDefault(ctx, req.ProcessType)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errs.NotFoundf("no default definition for process type %q", req.ProcessType)
	}
	return def, nil
}

// snapshotSteps deep-copies the definition's templates into fresh step
// instances. Field names line up between the two structs, so the copier maps
// them directly; slices like RequiredDocuments are duplicated, not shared.
func snapshotSteps(templates []definition.StepTemplate) ([]StepInstance, error) {
	seen := make(map[int]bool, len(templates))
	steps := make([]StepInstance, len(templates))
	for i := range templates {
		if seen[templates[i].SequenceNumber] {
			return nil, errs.Validationf("definition has duplicate sequence number %d", templates[i].SequenceNumber)
		}
		seen[templates[i].SequenceNumber] = true

		if err := deepcopy.Copy(&steps[i], &templates[i]); err != nil {
			return nil, err
		}
		steps[i].Status = StepPending
	}
	return steps, nil
}

func (s *InstanceServiceImpl) Get(ctx context.Context, id string) (*ProcessInstance, error) {
	inst, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, errs.NotFoundf("process instance %s not found", id)
	}
	return inst, nil
}

func (s *InstanceServiceImpl) ListBySubject(ctx context.Context, subjectID string) ([]ProcessInstance, error) {
	return s.Repo.ListBySubject(ctx, subjectID)
}

func (s *InstanceServiceImpl) ListByStatus(ctx context.Context, status ProcessStatus) ([]ProcessInstance, error) {
	return s.Repo.ListByStatuses(ctx, []ProcessStatus{status})
}
