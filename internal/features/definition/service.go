package definition

import (
	"context"
	"sort"
	"sync"
	"time"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/features/audit"

	"go.uber.org/zap"
)

type DefinitionService interface {
	Publish(ctx context.Context, def ProcessDefinition) (*ProcessDefinition, error)
	Get(ctx context.Context, id string) (*ProcessDefinition, error)
	List(ctx context.Context, includeInactive bool) ([]ProcessDefinition, error)
	ListByType(ctx context.Context, processType ProcessType, includeInactive bool) ([]ProcessDefinition, error)
	GetDefault(ctx context.Context, processType ProcessType) (*ProcessDefinition, error)
	SetDefault(ctx context.Context, processType ProcessType, id string) error
	Deactivate(ctx context.Context, id string) error
}

type DefinitionServiceImpl struct {
	Repo         DefinitionRepository
	AuditService audit.AuditService
	Logger       *zap.Logger

	// Serializes default swaps so two definitions can never both hold the
	// default flag for one process type.
	defaultMu sync.Mutex
}

func NewDefinitionService(repo DefinitionRepository, auditService audit.AuditService, logger *zap.Logger) DefinitionService {
	return &DefinitionServiceImpl{
		Repo:         repo,
		AuditService: auditService,
		Logger:       logger,
	}
}

func (s *DefinitionServiceImpl) Publish(ctx context.Context, def ProcessDefinition) (*ProcessDefinition, error) {
	if def.Name == "" {
		return nil, errs.Validationf("definition name is required")
	}
	if def.ProcessType == "" {
		return nil, errs.Validationf("process type is required")
	}
	if err := validateSteps(def.Steps); err != nil {
		return nil, err
	}

	existing, err := s.Repo.FindActiveByName(ctx, def.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errs.Conflictf("an active definition named %q already exists", def.Name)
	}

	def.Active = true
	def.IsDefault = false
	def.CreatedAt = time.Now()
	def.UpdatedAt = def.CreatedAt

	sort.Slice(def.Steps, func(i, j int) bool {
		return def.Steps[i].SequenceNumber < def.Steps[j].SequenceNumber
	})

	if err := s.Repo.Insert(ctx, &def); err != nil {
		return nil, err
	}

	s.Logger.Info("Published process definition",
		zap.String("definition_id", def.ID.Hex()),
		zap.String("name", def.Name),
		zap.String("process_type", string(def.ProcessType)),
		zap.Int("steps", len(def.Steps)))

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionPublish, "process_definitions", def.ID.Hex(), map[string]common_models.Change{
		"definition": {New: def.Name},
	})

	return &def, nil
}

// validateSteps checks sequence numbers are unique and contiguous from 1.
func validateSteps(steps []StepTemplate) error {
	if len(steps) == 0 {
		return errs.Validationf("a definition needs at least one step")
	}

	seen := make(map[int]bool, len(steps))
	for _, st := range steps {
		if st.Name == "" {
			return errs.Validationf("step %d has no name", st.SequenceNumber)
		}
		if st.ExpectedHours < 0 {
			return errs.Validationf("step %q has a negative expected duration", st.Name)
		}
		if seen[st.SequenceNumber] {
			return errs.Validationf("duplicate sequence number %d", st.SequenceNumber)
		}
		seen[st.SequenceNumber] = true
	}
	for i := 1; i <= len(steps); i++ {
		if !seen[i] {
			return errs.Validationf("sequence numbers must run 1..%d without gaps, missing %d", len(steps), i)
		}
	}
	return nil
}

func (s *DefinitionServiceImpl) Get(ctx context.Context, id string) (*ProcessDefinition, error) {
	def, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errs.NotFoundf("definition %s not found", id)
	}
	return def, nil
}

func (s *DefinitionServiceImpl) List(ctx context.Context, includeInactive bool) ([]ProcessDefinition, error) {
	return s.Repo.List(ctx, includeInactive)
}

func (s *DefinitionServiceImpl) ListByType(ctx context.Context, processType ProcessType, includeInactive bool) ([]ProcessDefinition, error) {
	return s.Repo.ListByType(ctx, processType, includeInactive)
}

func (s *DefinitionServiceImpl) GetDefault(ctx context.Context, processType ProcessType) (*ProcessDefinition, error) {
	def, err := s.Repo.FindDefault(ctx, processType)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errs.NotFoundf("no default definition for process type %q", processType)
	}
	return def, nil
}

// SetDefault atomically moves the default flag for a process type. The
// unset/set pair runs under a single-writer lock; default swaps are rare
// configuration-time operations, so one lock for the whole store is fine.
func (s *DefinitionServiceImpl) SetDefault(ctx context.Context, processType ProcessType, id string) error {
	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	def, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if def == nil || !def.Active {
		return errs.NotFoundf("definition %s not found or inactive", id)
	}
	if def.ProcessType != processType {
		return errs.Validationf("definition %s has process type %q, not %q", id, def.ProcessType, processType)
	}

	prior, err := s.Repo.FindDefault(ctx, processType)
	if err != nil {
		return err
	}

	if err := s.Repo.ClearDefault(ctx, processType); err != nil {
		return err
	}
	if err := s.Repo.MarkDefault(ctx, id); err != nil {
		return err
	}

	var old interface{}
	if prior != nil {
		old = prior.ID.Hex()
	}
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionTemplate, "process_definitions", id, map[string]common_models.Change{
		"default": {Old: old, New: id},
	})

	s.Logger.Info("Changed default definition",
		zap.String("process_type", string(processType)),
		zap.String("definition_id", id))

	return nil
}

func (s *DefinitionServiceImpl) Deactivate(ctx context.Context, id string) error {
	def, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if def == nil {
		return errs.NotFoundf("definition %s not found", id)
	}
	if !def.Active {
		return nil
	}

	if err := s.Repo.SetActive(ctx, id, false); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionTemplate, "process_definitions", id, map[string]common_models.Change{
		"active": {Old: true, New: false},
	})

	return nil
}
