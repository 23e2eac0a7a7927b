package instance

import (
	"context"
	"sync"
	"testing"
	"time"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/features/definition"

	"go.uber.org/zap"
)

type noopAudit struct{}

func (noopAudit) LogChange(ctx context.Context, action common_models.AuditAction, entity string, entityID string, changes map[string]common_models.Change) error {
	return nil
}

func (noopAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

// recordingSink collects published events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// haltPolicy always answers the same way.
type haltPolicy struct{ halt bool }

func (p haltPolicy) ShouldHalt(_ context.Context, _ *ProcessInstance, _ *StepInstance) (bool, error) {
	return p.halt, nil
}

func newTestEngine(policy RejectionPolicy) (*EngineImpl, *MemoryInstanceRepository, *recordingSink) {
	repo := NewMemoryInstanceRepository()
	sink := &recordingSink{}
	eng := &EngineImpl{
		Repo:         repo,
		Policy:       policy,
		Sink:         sink,
		AuditService: noopAudit{},
		Logger:       zap.NewNop(),
		locker:       newKeyedLocker(),
	}
	return eng, repo, sink
}

func seedInstance(t *testing.T, repo *MemoryInstanceRepository) *ProcessInstance {
	t.Helper()

	svc := &InstanceServiceImpl{
		Repo:           repo,
		DefinitionRepo: seededDefinitionRepo(t),
		AuditService:   noopAudit{},
		Logger:         zap.NewNop(),
	}
	inst, err := svc.Create(context.Background(), CreateRequest{
		ProcessType: definition.ProcessTypeAcquisition,
		SubjectID:   "VIN-1001",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return inst
}

func seededDefinitionRepo(t *testing.T) definition.DefinitionRepository {
	t.Helper()

	defRepo := definition.NewMemoryDefinitionRepository()
	def := &definition.ProcessDefinition{
		Name:        "Standard Acquisition",
		ProcessType: definition.ProcessTypeAcquisition,
		Active:      true,
		IsDefault:   true,
		Steps: []definition.StepTemplate{
			{SequenceNumber: 1, Name: "Intake", ExpectedHours: 2},
			{SequenceNumber: 2, Name: "Inspection", ExpectedHours: 4, RequiresApproval: true},
			{SequenceNumber: 3, Name: "Documentation", ExpectedHours: 1},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := defRepo.Insert(context.Background(), def); err != nil {
		t.Fatalf("seeding definition: %v", err)
	}
	return defRepo
}

func TestFullLifecycle(t *testing.T) {
	eng, repo, sink := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	// Start opens step 1.
	started, err := eng.Start(ctx, id)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if started.Status != ProcessInProgress {
		t.Fatalf("status = %s, want %s", started.Status, ProcessInProgress)
	}
	if cur := started.CurrentStep(); cur == nil || cur.SequenceNumber != 1 {
		t.Fatalf("current step = %+v, want sequence 1", cur)
	}
	if started.StartedAt == nil {
		t.Error("StartedAt not set")
	}

	// Complete Intake; Inspection opens.
	after, err := eng.Advance(ctx, id, AdvanceRequest{Actor: "alice", Outcome: OutcomeComplete})
	if err != nil {
		t.Fatalf("Advance(Intake) error = %v", err)
	}
	if cur := after.CurrentStep(); cur == nil || cur.Name != "Inspection" {
		t.Fatalf("current step = %+v, want Inspection", cur)
	}
	if after.Steps[0].Status != StepCompleted {
		t.Errorf("Intake status = %s, want %s", after.Steps[0].Status, StepCompleted)
	}

	// Inspection requires approval.
	_, err = eng.Advance(ctx, id, AdvanceRequest{Actor: "alice", Outcome: OutcomeComplete})
	if !errs.IsKind(err, errs.KindApprovalRequired) {
		t.Fatalf("Advance(Inspection, unapproved) error = %v, want approval required", err)
	}

	after, err = eng.Advance(ctx, id, AdvanceRequest{Actor: "alice", Outcome: OutcomeComplete, ApprovedBy: "manager"})
	if err != nil {
		t.Fatalf("Advance(Inspection, approved) error = %v", err)
	}
	if after.Steps[1].ApprovedBy != "manager" {
		t.Errorf("Inspection ApprovedBy = %q, want manager", after.Steps[1].ApprovedBy)
	}

	// Skip Documentation; process completes.
	after, err = eng.Advance(ctx, id, AdvanceRequest{Actor: "alice", Outcome: OutcomeSkip})
	if err != nil {
		t.Fatalf("Advance(Documentation, skip) error = %v", err)
	}
	if after.Status != ProcessCompleted {
		t.Fatalf("status = %s, want %s", after.Status, ProcessCompleted)
	}
	if after.EndedAt == nil {
		t.Error("EndedAt not set")
	}
	if after.Steps[2].Status != StepSkipped {
		t.Errorf("Documentation status = %s, want %s", after.Steps[2].Status, StepSkipped)
	}

	// Nothing to advance anymore.
	_, err = eng.Advance(ctx, id, AdvanceRequest{Actor: "alice", Outcome: OutcomeComplete})
	if !errs.IsKind(err, errs.KindInvalidState) {
		t.Errorf("Advance() on completed error = %v, want invalid state", err)
	}

	wantEvents := []string{
		EventStepOpened,    // Intake
		EventStepCompleted, // Intake
		EventStepOpened,    // Inspection
		EventStepCompleted, // Inspection
		EventStepOpened,    // Documentation
		EventStepSkipped,   // Documentation
		EventProcessCompleted,
	}
	got := sink.types()
	if len(got) != len(wantEvents) {
		t.Fatalf("events = %v, want %v", got, wantEvents)
	}
	// Order within one Advance is step result before the step it opened;
	// Start emits only the open.
	want := map[string]int{}
	have := map[string]int{}
	for _, w := range wantEvents {
		want[w]++
	}
	for _, g := range got {
		have[g]++
	}
	for k, n := range want {
		if have[k] != n {
			t.Errorf("event %s seen %d times, want %d", k, have[k], n)
		}
	}
}

func TestRejectionHaltsAndResumeReopens(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	if _, err := eng.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	after, err := eng.Advance(ctx, id, AdvanceRequest{Actor: "bob", Outcome: OutcomeReject, Notes: "paperwork missing"})
	if err != nil {
		t.Fatalf("Advance(reject) error = %v", err)
	}
	if after.Status != ProcessOnHold {
		t.Fatalf("status = %s, want %s", after.Status, ProcessOnHold)
	}
	if after.Steps[0].Status != StepRejected {
		t.Errorf("step status = %s, want %s", after.Steps[0].Status, StepRejected)
	}
	if after.Steps[0].Notes != "paperwork missing" {
		t.Errorf("notes = %q, want recorded", after.Steps[0].Notes)
	}

	// Held processes refuse to advance.
	_, err = eng.Advance(ctx, id, AdvanceRequest{Actor: "bob", Outcome: OutcomeComplete})
	if !errs.IsKind(err, errs.KindInvalidState) {
		t.Fatalf("Advance() on hold error = %v, want invalid state", err)
	}

	// Resume opens the next pending step; the rejected one stays rejected.
	resumed, err := eng.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.Status != ProcessInProgress {
		t.Fatalf("status = %s, want %s", resumed.Status, ProcessInProgress)
	}
	if cur := resumed.CurrentStep(); cur == nil || cur.Name != "Inspection" {
		t.Fatalf("current step = %+v, want Inspection", cur)
	}
	if resumed.Steps[0].Status != StepRejected {
		t.Errorf("rejected step reverted to %s", resumed.Steps[0].Status)
	}
}

func TestRejectionContinuesWhenPolicyAllows(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: false})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	if _, err := eng.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	after, err := eng.Advance(ctx, id, AdvanceRequest{Actor: "bob", Outcome: OutcomeReject})
	if err != nil {
		t.Fatalf("Advance(reject) error = %v", err)
	}
	if after.Status != ProcessInProgress {
		t.Fatalf("status = %s, want %s", after.Status, ProcessInProgress)
	}
	if cur := after.CurrentStep(); cur == nil || cur.Name != "Inspection" {
		t.Fatalf("current step = %+v, want Inspection", cur)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	eng, repo, sink := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	first, err := eng.Cancel(ctx, id, "sold elsewhere")
	if err != nil {
		t.Fatalf("first Cancel() error = %v", err)
	}
	if first.Status != ProcessCancelled {
		t.Fatalf("status = %s, want %s", first.Status, ProcessCancelled)
	}
	if first.CancelReason != "sold elsewhere" {
		t.Errorf("reason = %q, want preserved", first.CancelReason)
	}

	second, err := eng.Cancel(ctx, id, "different reason")
	if err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}
	if second.CancelReason != "sold elsewhere" {
		t.Errorf("second cancel overwrote reason: %q", second.CancelReason)
	}
	if second.Version != first.Version {
		t.Errorf("second cancel bumped version %d -> %d", first.Version, second.Version)
	}

	cancelEvents := 0
	for _, typ := range sink.types() {
		if typ == EventProcessCancelled {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Errorf("cancelled event published %d times, want 1", cancelEvents)
	}

	// Cancelled processes never advance.
	_, err = eng.Advance(ctx, id, AdvanceRequest{Actor: "x", Outcome: OutcomeComplete})
	if !errs.IsKind(err, errs.KindInvalidState) {
		t.Errorf("Advance() on cancelled error = %v, want invalid state", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	if _, err := eng.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := eng.Start(ctx, id); !errs.IsKind(err, errs.KindInvalidState) {
		t.Errorf("second Start() error = %v, want invalid state", err)
	}
}

func TestAdvanceUnknownInstance(t *testing.T) {
	eng, _, _ := newTestEngine(haltPolicy{halt: true})

	_, err := eng.Advance(context.Background(), "64f000000000000000000000", AdvanceRequest{Outcome: OutcomeComplete})
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("Advance() error = %v, want not found", err)
	}
}

func TestAdvanceRejectsUnknownOutcome(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: true})
	inst := seedInstance(t, repo)

	_, err := eng.Advance(context.Background(), inst.ID.Hex(), AdvanceRequest{Outcome: "done"})
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("Advance() error = %v, want validation", err)
	}
}

func TestAssignStep(t *testing.T) {
	eng, repo, sink := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	after, err := eng.AssignStep(ctx, id, 2, "carol")
	if err != nil {
		t.Fatalf("AssignStep() error = %v", err)
	}
	if after.StepBySequence(2).AssignedTo != "carol" {
		t.Errorf("AssignedTo = %q, want carol", after.StepBySequence(2).AssignedTo)
	}

	// Same assignee again is a no-op.
	again, err := eng.AssignStep(ctx, id, 2, "carol")
	if err != nil {
		t.Fatalf("repeat AssignStep() error = %v", err)
	}
	if again.Version != after.Version {
		t.Errorf("no-op assignment bumped version")
	}

	if _, err := eng.AssignStep(ctx, id, 9, "carol"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("AssignStep(unknown seq) error = %v, want not found", err)
	}

	found := false
	for _, ev := range sink.types() {
		if ev == EventStepAssigned {
			found = true
		}
	}
	if !found {
		t.Error("no step_assigned event published")
	}
}

// TestConcurrentAdvance hammers one instance from many goroutines. Exactly
// enough advances must win to walk the process to completion; every other
// call must fail cleanly, and the step history must stay consistent.
func TestConcurrentAdvance(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	if _, err := eng.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Advance(ctx, id, AdvanceRequest{Actor: "racer", Outcome: OutcomeComplete, ApprovedBy: "manager"})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errs.IsKind(err, errs.KindInvalidState) && !errs.IsKind(err, errs.KindConflict) {
				t.Errorf("unexpected error kind: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}

	// Three steps, so exactly three advances can succeed.
	if wins != 3 {
		t.Errorf("wins = %d, want 3", wins)
	}
	if final.Status != ProcessCompleted {
		t.Errorf("status = %s, want %s", final.Status, ProcessCompleted)
	}

	assertStepInvariants(t, final)
}

// assertStepInvariants checks that at most one step is in progress and that
// finished steps form a prefix: no pending step precedes a finished one.
func assertStepInvariants(t *testing.T, inst *ProcessInstance) {
	t.Helper()

	inProgress := 0
	seenOpen := false
	for _, st := range inst.Steps {
		switch st.Status {
		case StepInProgress:
			inProgress++
			seenOpen = true
		case StepPending:
			seenOpen = true
		case StepCompleted, StepSkipped, StepRejected:
			if seenOpen {
				t.Errorf("finished step %q follows an open step", st.Name)
			}
		}
	}
	if inProgress > 1 {
		t.Errorf("%d steps in progress, want at most 1", inProgress)
	}
}

func TestConcurrentCancelAndAdvance(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	if _, err := eng.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				_, _ = eng.Cancel(ctx, id, "concurrent cancel")
			} else {
				_, _ = eng.Advance(ctx, id, AdvanceRequest{Actor: "racer", Outcome: OutcomeComplete, ApprovedBy: "m"})
			}
		}(i)
	}
	wg.Wait()

	final, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	// Whatever interleaving happened, the instance must land in a coherent
	// state and cancellation must stick once applied.
	if final.Status != ProcessCancelled && final.Status != ProcessCompleted && final.Status != ProcessInProgress {
		t.Errorf("final status = %s", final.Status)
	}
	assertStepInvariants(t, final)
}

func TestHoldAndResume(t *testing.T) {
	eng, repo, _ := newTestEngine(haltPolicy{halt: true})
	ctx := context.Background()
	inst := seedInstance(t, repo)
	id := inst.ID.Hex()

	if _, err := eng.Hold(ctx, id, "waiting on parts"); !errs.IsKind(err, errs.KindInvalidState) {
		t.Errorf("Hold() before start error = %v, want invalid state", err)
	}

	if _, err := eng.Start(ctx, id); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	held, err := eng.Hold(ctx, id, "waiting on parts")
	if err != nil {
		t.Fatalf("Hold() error = %v", err)
	}
	if held.Status != ProcessOnHold || held.HoldReason != "waiting on parts" {
		t.Fatalf("held = %s/%q", held.Status, held.HoldReason)
	}

	// Hold keeps the current step in progress so resume picks it back up.
	resumed, err := eng.Resume(ctx, id)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.Status != ProcessInProgress {
		t.Fatalf("status = %s, want %s", resumed.Status, ProcessInProgress)
	}
	if cur := resumed.CurrentStep(); cur == nil || cur.Name != "Intake" {
		t.Errorf("current step = %+v, want Intake", cur)
	}
	if resumed.HoldReason != "" {
		t.Errorf("hold reason not cleared: %q", resumed.HoldReason)
	}
}
