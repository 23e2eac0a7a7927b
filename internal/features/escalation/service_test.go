package escalation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/features/definition"
	"dealerflow/internal/features/instance"
	"dealerflow/internal/features/notification"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type recordingAudit struct {
	mu   sync.Mutex
	logs []common_models.AuditLog
}

func (a *recordingAudit) LogChange(ctx context.Context, action common_models.AuditAction, entity string, entityID string, changes map[string]common_models.Change) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, common_models.AuditLog{Action: action, Entity: entity, EntityID: entityID, Changes: changes})
	return nil
}

func (a *recordingAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	sent     []notification.Notification
	failFor  string
	failures int
}

func (n *stubNotifier) Notify(_ context.Context, msg notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor != "" && strings.Contains(msg.Message, n.failFor) {
		n.failures++
		return errors.New("notification backend down")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *stubNotifier) ListByUser(_ context.Context, _ string, _, _ int64) ([]notification.Notification, int64, error) {
	return nil, 0, nil
}
func (n *stubNotifier) CountUnread(_ context.Context, _ string) (int64, error)   { return 0, nil }
func (n *stubNotifier) MarkAsRead(_ context.Context, _ string, _ string) error   { return nil }
func (n *stubNotifier) MarkAllAsRead(_ context.Context, _ string) error          { return nil }

func newScanService(repo instance.InstanceRepository) *EscalationServiceImpl {
	return &EscalationServiceImpl{
		InstanceRepo: repo,
		AuditService: &recordingAudit{},
		Thresholds:   Thresholds{Watch: 1.0, Warning: 1.5, Critical: 2.0},
		Logger:       zap.NewNop(),
	}
}

func seedRunning(t *testing.T, repo *instance.MemoryInstanceRepository, subject string, expectedHours float64, started time.Time) string {
	t.Helper()

	inst := &instance.ProcessInstance{
		ID:          primitive.NewObjectID(),
		ProcessType: definition.ProcessTypeReconditioning,
		SubjectID:   subject,
		Status:      instance.ProcessInProgress,
		Priority:    3,
		StartedAt:   &started,
		Steps: []instance.StepInstance{
			{SequenceNumber: 1, Name: "Repair", ExpectedHours: expectedHours, Status: instance.StepInProgress, StartedAt: &started, ResponsibleParty: "shop"},
		},
		Version:   1,
		CreatedAt: started,
	}
	if err := repo.Insert(context.Background(), inst); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return inst.ID.Hex()
}

func TestScanTiers(t *testing.T) {
	repo := instance.NewMemoryInstanceRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Expected 2h: 5h elapsed is 2.5x -> critical; 3h20m is ~1.67x ->
	// warning; 2h is exactly 1.0x -> watch; 1h is 0.5x -> nothing.
	critical := seedRunning(t, repo, "VIN-CRIT", 2, now.Add(-5*time.Hour))
	warning := seedRunning(t, repo, "VIN-WARN", 2, now.Add(-200*time.Minute))
	watch := seedRunning(t, repo, "VIN-WATCH", 2, now.Add(-2*time.Hour))
	seedRunning(t, repo, "VIN-FINE", 2, now.Add(-1*time.Hour))

	signals, err := newScanService(repo).Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(signals) != 3 {
		t.Fatalf("signals = %d, want 3", len(signals))
	}

	byInstance := map[string]Signal{}
	for _, sig := range signals {
		byInstance[sig.InstanceID] = sig
	}
	if byInstance[critical].Tier != TierCritical {
		t.Errorf("critical instance tier = %s", byInstance[critical].Tier)
	}
	if byInstance[warning].Tier != TierWarning {
		t.Errorf("warning instance tier = %s", byInstance[warning].Tier)
	}
	if byInstance[watch].Tier != TierWatch {
		t.Errorf("watch instance tier = %s", byInstance[watch].Tier)
	}

	// Worst ratio first.
	if signals[0].InstanceID != critical {
		t.Errorf("signals[0] = %s, want the critical one", signals[0].SubjectID)
	}
}

func TestScanSkipsStepsWithoutExpectedDuration(t *testing.T) {
	repo := instance.NewMemoryInstanceRepository()
	now := time.Now()
	seedRunning(t, repo, "VIN-NOEXP", 0, now.Add(-100*time.Hour))

	signals, err := newScanService(repo).Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("signals = %v, want none", signals)
	}
}

func TestScanIgnoresHeldAndFinishedProcesses(t *testing.T) {
	repo := instance.NewMemoryInstanceRepository()
	now := time.Now()
	started := now.Add(-50 * time.Hour)

	for _, status := range []instance.ProcessStatus{
		instance.ProcessOnHold,
		instance.ProcessCompleted,
		instance.ProcessCancelled,
		instance.ProcessNotStarted,
	} {
		inst := &instance.ProcessInstance{
			ID:        primitive.NewObjectID(),
			SubjectID: "VIN-" + string(status),
			Status:    status,
			Priority:  3,
			Steps: []instance.StepInstance{
				{SequenceNumber: 1, Name: "Repair", ExpectedHours: 1, Status: instance.StepInProgress, StartedAt: &started},
			},
			Version:   1,
			CreatedAt: started,
		}
		if err := repo.Insert(context.Background(), inst); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	signals, err := newScanService(repo).Scan(context.Background(), now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("signals = %v, want none", signals)
	}
}

func TestScanDoesNotMutateInstances(t *testing.T) {
	repo := instance.NewMemoryInstanceRepository()
	now := time.Now()
	id := seedRunning(t, repo, "VIN-PURE", 1, now.Add(-10*time.Hour))

	before, _ := repo.FindByID(context.Background(), id)
	if _, err := newScanService(repo).Scan(context.Background(), now); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	after, _ := repo.FindByID(context.Background(), id)

	if before.Version != after.Version || !before.UpdatedAt.Equal(after.UpdatedAt) {
		t.Errorf("scan mutated instance: version %d->%d", before.Version, after.Version)
	}
}

func TestProcessEscalationsIsolatesFailures(t *testing.T) {
	repo := instance.NewMemoryInstanceRepository()
	now := time.Now()
	seedRunning(t, repo, "VIN-BAD", 1, now.Add(-10*time.Hour))
	seedRunning(t, repo, "VIN-GOOD", 1, now.Add(-10*time.Hour))

	notifier := &stubNotifier{failFor: "VIN-BAD"}
	aud := &recordingAudit{}
	svc := newScanService(repo)
	svc.Notification = notifier
	svc.AuditService = aud

	err := svc.ProcessEscalations(context.Background())
	if err == nil {
		t.Fatal("ProcessEscalations() error = nil, want dispatch failure reported")
	}

	// The healthy signal still went out.
	if len(notifier.sent) != 1 || !strings.Contains(notifier.sent[0].Message, "VIN-GOOD") {
		t.Errorf("sent = %+v, want only the healthy signal", notifier.sent)
	}
	if notifier.failures != 1 {
		t.Errorf("failures = %d, want 1", notifier.failures)
	}
	if len(aud.logs) != 1 {
		t.Errorf("audit logs = %d, want 1", len(aud.logs))
	}
}

func TestScanRejectsBadThresholds(t *testing.T) {
	svc := newScanService(instance.NewMemoryInstanceRepository())
	svc.Thresholds.Watch = 0

	if _, err := svc.Scan(context.Background(), time.Now()); err == nil {
		t.Error("Scan() error = nil, want threshold validation")
	}
}
