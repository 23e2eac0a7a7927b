package definition

import (
	"context"
	"testing"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"

	"go.uber.org/zap"
)

type noopAudit struct{}

func (noopAudit) LogChange(ctx context.Context, action common_models.AuditAction, entity string, entityID string, changes map[string]common_models.Change) error {
	return nil
}

func (noopAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newTestService() (*DefinitionServiceImpl, *MemoryDefinitionRepository) {
	repo := NewMemoryDefinitionRepository()
	svc := &DefinitionServiceImpl{
		Repo:         repo,
		AuditService: noopAudit{},
		Logger:       zap.NewNop(),
	}
	return svc, repo
}

func acquisitionSteps() []StepTemplate {
	return []StepTemplate{
		{SequenceNumber: 1, Name: "Intake", ExpectedHours: 2},
		{SequenceNumber: 2, Name: "Inspection", ExpectedHours: 4, RequiresApproval: true},
		{SequenceNumber: 3, Name: "Documentation", ExpectedHours: 1},
	}
}

func TestPublishValidatesSequenceNumbers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name  string
		steps []StepTemplate
	}{
		{
			name:  "no steps",
			steps: nil,
		},
		{
			name: "duplicate sequence",
			steps: []StepTemplate{
				{SequenceNumber: 1, Name: "A"},
				{SequenceNumber: 1, Name: "B"},
			},
		},
		{
			name: "gap in sequence",
			steps: []StepTemplate{
				{SequenceNumber: 1, Name: "A"},
				{SequenceNumber: 3, Name: "B"},
			},
		},
		{
			name: "not starting at one",
			steps: []StepTemplate{
				{SequenceNumber: 2, Name: "A"},
				{SequenceNumber: 3, Name: "B"},
			},
		},
		{
			name: "unnamed step",
			steps: []StepTemplate{
				{SequenceNumber: 1, Name: ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Publish(ctx, ProcessDefinition{
				Name:        "Bad " + tt.name,
				ProcessType: ProcessTypeAcquisition,
				Steps:       tt.steps,
			})
			if !errs.IsKind(err, errs.KindValidation) {
				t.Errorf("Publish() error = %v, want validation error", err)
			}
		})
	}
}

func TestPublishRejectsActiveNameCollision(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	def := ProcessDefinition{
		Name:        "Standard Acquisition",
		ProcessType: ProcessTypeAcquisition,
		Steps:       acquisitionSteps(),
	}
	if _, err := svc.Publish(ctx, def); err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}

	_, err := svc.Publish(ctx, def)
	if !errs.IsKind(err, errs.KindConflict) {
		t.Errorf("second Publish() error = %v, want conflict", err)
	}
}

func TestPublishAfterDeactivateAllowsSameName(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Standard Acquisition",
		ProcessType: ProcessTypeAcquisition,
		Steps:       acquisitionSteps(),
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if err := svc.Deactivate(ctx, first.ID.Hex()); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	if _, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Standard Acquisition",
		ProcessType: ProcessTypeAcquisition,
		Steps:       acquisitionSteps(),
	}); err != nil {
		t.Errorf("Publish() after deactivation error = %v, want nil", err)
	}
}

func TestPublishSortsStepsBySequence(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Out of order",
		ProcessType: ProcessTypeReconditioning,
		Steps: []StepTemplate{
			{SequenceNumber: 3, Name: "C"},
			{SequenceNumber: 1, Name: "A"},
			{SequenceNumber: 2, Name: "B"},
		},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for i, st := range created.Steps {
		if st.SequenceNumber != i+1 {
			t.Errorf("step %d has sequence %d, want %d", i, st.SequenceNumber, i+1)
		}
	}
}

func TestSetDefaultSwapsExclusively(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	a, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Acquisition A",
		ProcessType: ProcessTypeAcquisition,
		Steps:       acquisitionSteps(),
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	b, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Acquisition B",
		ProcessType: ProcessTypeAcquisition,
		Steps:       acquisitionSteps(),
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if err := svc.SetDefault(ctx, ProcessTypeAcquisition, a.ID.Hex()); err != nil {
		t.Fatalf("SetDefault(a) error = %v", err)
	}
	if err := svc.SetDefault(ctx, ProcessTypeAcquisition, b.ID.Hex()); err != nil {
		t.Fatalf("SetDefault(b) error = %v", err)
	}

	def, err := svc.GetDefault(ctx, ProcessTypeAcquisition)
	if err != nil {
		t.Fatalf("GetDefault() error = %v", err)
	}
	if def.ID != b.ID {
		t.Errorf("default = %s, want %s", def.ID.Hex(), b.ID.Hex())
	}

	// The prior default must have lost the flag.
	all, err := repo.ListByType(ctx, ProcessTypeAcquisition, true)
	if err != nil {
		t.Fatalf("ListByType() error = %v", err)
	}
	defaults := 0
	for _, d := range all {
		if d.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("found %d defaults, want exactly 1", defaults)
	}
}

func TestSetDefaultRejectsWrongTypeAndInactive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	recon, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Recon",
		ProcessType: ProcessTypeReconditioning,
		Steps:       acquisitionSteps(),
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if err := svc.SetDefault(ctx, ProcessTypeAcquisition, recon.ID.Hex()); !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("SetDefault() with wrong type error = %v, want validation", err)
	}

	if err := svc.Deactivate(ctx, recon.ID.Hex()); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if err := svc.SetDefault(ctx, ProcessTypeReconditioning, recon.ID.Hex()); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("SetDefault() on inactive error = %v, want not found", err)
	}
}

func TestGetUnknownDefinition(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), "64f000000000000000000000")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("Get() error = %v, want not found", err)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	def, err := svc.Publish(ctx, ProcessDefinition{
		Name:        "Once",
		ProcessType: ProcessTypeAging,
		Steps:       []StepTemplate{{SequenceNumber: 1, Name: "Review"}},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if err := svc.Deactivate(ctx, def.ID.Hex()); err != nil {
		t.Fatalf("first Deactivate() error = %v", err)
	}
	if err := svc.Deactivate(ctx, def.ID.Hex()); err != nil {
		t.Errorf("second Deactivate() error = %v, want nil", err)
	}
}
