package instance

import (
	"context"
	"errors"
	"time"

	"dealerflow/internal/common/errs"
	common_models "dealerflow/internal/common/models"
	"dealerflow/internal/features/audit"

	"go.uber.org/zap"
)

// maxTransitionRetries bounds how many times a transition re-reads and
// re-applies after losing a version race before giving up with a conflict.
const maxTransitionRetries = 3

// Event describes a state change the engine just persisted. Sinks receive it
// after the write succeeds, never before.
type Event struct {
	Type       string    `json:"type"`
	InstanceID string    `json:"instance_id"`
	SubjectID  string    `json:"subject_id"`
	StepName   string    `json:"step_name,omitempty"`
	Assignee   string    `json:"assignee,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventStepOpened       = "step_opened"
	EventStepCompleted    = "step_completed"
	EventStepSkipped      = "step_skipped"
	EventStepRejected     = "step_rejected"
	EventStepAssigned     = "step_assigned"
	EventProcessCompleted = "process_completed"
	EventProcessCancelled = "process_cancelled"
	EventProcessOnHold    = "process_on_hold"
	EventProcessResumed   = "process_resumed"
)

// EventSink receives engine events. Implementations must not block; the
// engine calls them inline after persisting.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// RejectionPolicy decides whether a rejected step halts its process. The
// engine consults it with the post-rejection state of the step.
type RejectionPolicy interface {
	ShouldHalt(ctx context.Context, inst *ProcessInstance, step *StepInstance) (bool, error)
}

// AdvanceRequest carries what an actor reports about the current step.
type AdvanceRequest struct {
	Actor      string  `json:"actor"`
	Outcome    Outcome `json:"outcome"`
	Notes      string  `json:"notes"`
	ApprovedBy string  `json:"approved_by"`
}

type Engine interface {
	Start(ctx context.Context, id string) (*ProcessInstance, error)
	Advance(ctx context.Context, id string, req AdvanceRequest) (*ProcessInstance, error)
	Cancel(ctx context.Context, id string, reason string) (*ProcessInstance, error)
	Hold(ctx context.Context, id string, reason string) (*ProcessInstance, error)
	Resume(ctx context.Context, id string) (*ProcessInstance, error)
	AssignStep(ctx context.Context, id string, sequenceNumber int, assignee string) (*ProcessInstance, error)
}

type EngineImpl struct {
	Repo         InstanceRepository
	Policy       RejectionPolicy
	Sink         EventSink
	AuditService audit.AuditService
	Logger       *zap.Logger

	locker *keyedLocker
}

func NewEngine(repo InstanceRepository, policy RejectionPolicy, sink EventSink, auditService audit.AuditService, logger *zap.Logger) Engine {
	return &EngineImpl{
		Repo:         repo,
		Policy:       policy,
		Sink:         sink,
		AuditService: auditService,
		Logger:       logger,
		locker:       newKeyedLocker(),
	}
}

// transition loads the instance, applies mutate, and persists with a version
// check, retrying a bounded number of times. The per-id lock serializes
// transitions within this process; the version check catches writers in other
// processes. mutate returns the events to publish once the write lands.
func (e *EngineImpl) transition(ctx context.Context, id string, mutate func(*ProcessInstance) ([]Event, error)) (*ProcessInstance, error) {
	e.locker.Lock(id)
	defer e.locker.Unlock(id)

	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		inst, err := e.Repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			return nil, errs.NotFoundf("process instance %s not found", id)
		}

		events, err := mutate(inst)
		if err != nil {
			return nil, err
		}
		if events == nil {
			// Nothing changed; idempotent no-op.
			return inst, nil
		}

		err = e.Repo.Replace(ctx, inst)
		if errors.Is(err, ErrStale) {
			e.Logger.Warn("Retrying stale instance transition",
				zap.String("instance_id", id),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		e.publish(ctx, events)
		return inst, nil
	}

	return nil, errs.Conflictf("process instance %s is being modified concurrently, try again", id)
}

func (e *EngineImpl) publish(ctx context.Context, events []Event) {
	if e.Sink == nil {
		return
	}
	for _, ev := range events {
		e.Sink.Publish(ctx, ev)
	}
}

func (e *EngineImpl) Start(ctx context.Context, id string) (*ProcessInstance, error) {
	inst, err := e.transition(ctx, id, func(inst *ProcessInstance) ([]Event, error) {
		if inst.Status != ProcessNotStarted {
			return nil, errs.InvalidStatef("process %s cannot start from status %q", id, inst.Status)
		}
		next := inst.NextPending()
		if next == nil {
			return nil, errs.InvalidStatef("process %s has no pending steps", id)
		}

		now := time.Now()
		inst.Status = ProcessInProgress
		inst.StartedAt = &now
		next.Status = StepInProgress
		next.StartedAt = &now

		return []Event{{
			Type:       EventStepOpened,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			StepName:   next.Name,
			Assignee:   next.AssignedTo,
			Message:    "Process started, step opened: " + next.Name,
			OccurredAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	_ = e.AuditService.LogChange(ctx, common_models.AuditActionAdvance, "process_instances", id, map[string]common_models.Change{
		"status": {Old: ProcessNotStarted, New: inst.Status},
	})
	return inst, nil
}

func (e *EngineImpl) Advance(ctx context.Context, id string, req AdvanceRequest) (*ProcessInstance, error) {
	switch req.Outcome {
	case OutcomeComplete, OutcomeSkip, OutcomeReject:
	default:
		return nil, errs.Validationf("unknown outcome %q", req.Outcome)
	}

	var (
		fromStep string
		toStatus StepStatus
	)

	inst, err := e.transition(ctx, id, func(inst *ProcessInstance) ([]Event, error) {
		switch inst.Status {
		case ProcessInProgress:
		case ProcessOnHold:
			return nil, errs.InvalidStatef("process %s is on hold", id)
		case ProcessNotStarted:
			return nil, errs.InvalidStatef("process %s has not been started", id)
		default:
			return nil, errs.InvalidStatef("process %s is %s and cannot advance", id, inst.Status)
		}

		step := inst.CurrentStep()
		if step == nil {
			return nil, errs.InvalidStatef("process %s has no step in progress", id)
		}

		if req.Outcome == OutcomeComplete && step.RequiresApproval && req.ApprovedBy == "" {
			return nil, errs.ApprovalRequiredf("step %q requires approval before completion", step.Name)
		}

		now := time.Now()
		step.CompletedAt = &now
		if req.Notes != "" {
			step.Notes = req.Notes
		}
		fromStep = step.Name

		switch req.Outcome {
		case OutcomeComplete:
			step.Status = StepCompleted
			step.ApprovedBy = req.ApprovedBy
			toStatus = StepCompleted
		case OutcomeSkip:
			step.Status = StepSkipped
			toStatus = StepSkipped
		case OutcomeReject:
			step.Status = StepRejected
			toStatus = StepRejected
			return e.applyRejection(ctx, inst, step, now)
		}

		events := []Event{{
			Type:       eventForStep(toStatus),
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			StepName:   step.Name,
			Message:    "Step " + string(toStatus) + ": " + step.Name,
			OccurredAt: now,
		}}
		events = append(events, openNextOrComplete(inst, now)...)
		return events, nil
	})
	if err != nil {
		return nil, err
	}

	e.Logger.Info("Advanced process instance",
		zap.String("instance_id", id),
		zap.String("step", fromStep),
		zap.String("outcome", string(req.Outcome)),
		zap.String("actor", req.Actor))

	_ = e.AuditService.LogChange(ctx, common_models.AuditActionAdvance, "process_instances", id, map[string]common_models.Change{
		"step":    {Old: fromStep, New: toStatus},
		"outcome": {New: req.Outcome},
	})
	return inst, nil
}

// applyRejection marks the rejection and asks the policy whether the process
// halts. Policy failures halt conservatively; a broken script must never
// silently wave a rejection through.
func (e *EngineImpl) applyRejection(ctx context.Context, inst *ProcessInstance, step *StepInstance, now time.Time) ([]Event, error) {
	halt := true
	if e.Policy != nil {
		var err error
		halt, err = e.Policy.ShouldHalt(ctx, inst, step)
		if err != nil {
			e.Logger.Error("Rejection policy failed, halting process",
				zap.String("instance_id", inst.ID.Hex()),
				zap.Error(err))
			halt = true
		}
	}

	events := []Event{{
		Type:       EventStepRejected,
		InstanceID: inst.ID.Hex(),
		SubjectID:  inst.SubjectID,
		StepName:   step.Name,
		Message:    "Step rejected: " + step.Name,
		OccurredAt: now,
	}}

	if halt {
		inst.Status = ProcessOnHold
		inst.HoldReason = "step rejected: " + step.Name
		events = append(events, Event{
			Type:       EventProcessOnHold,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			StepName:   step.Name,
			Message:    "Process on hold after rejection of " + step.Name,
			OccurredAt: now,
		})
		return events, nil
	}

	events = append(events, openNextOrComplete(inst, now)...)
	return events, nil
}

// openNextOrComplete moves the instance forward after its current step
// reached a final step status: open the next pending step, or finish the
// process when none remain.
func openNextOrComplete(inst *ProcessInstance, now time.Time) []Event {
	if next := inst.NextPending(); next != nil {
		next.Status = StepInProgress
		next.StartedAt = &now
		return []Event{{
			Type:       EventStepOpened,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			StepName:   next.Name,
			Assignee:   next.AssignedTo,
			Message:    "Step opened: " + next.Name,
			OccurredAt: now,
		}}
	}

	inst.Status = ProcessCompleted
	inst.EndedAt = &now
	return []Event{{
		Type:       EventProcessCompleted,
		InstanceID: inst.ID.Hex(),
		SubjectID:  inst.SubjectID,
		Message:    "Process completed",
		OccurredAt: now,
	}}
}

func eventForStep(status StepStatus) string {
	if status == StepSkipped {
		return EventStepSkipped
	}
	return EventStepCompleted
}

// Cancel is idempotent: cancelling a cancelled process returns it unchanged.
func (e *EngineImpl) Cancel(ctx context.Context, id string, reason string) (*ProcessInstance, error) {
	cancelled := false
	inst, err := e.transition(ctx, id, func(inst *ProcessInstance) ([]Event, error) {
		if inst.Status == ProcessCancelled {
			return nil, nil
		}
		if inst.Status == ProcessCompleted {
			return nil, errs.InvalidStatef("process %s is already completed", id)
		}

		now := time.Now()
		inst.Status = ProcessCancelled
		inst.CancelReason = reason
		inst.EndedAt = &now
		cancelled = true

		return []Event{{
			Type:       EventProcessCancelled,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			Message:    "Process cancelled: " + reason,
			OccurredAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		_ = e.AuditService.LogChange(ctx, common_models.AuditActionCancel, "process_instances", id, map[string]common_models.Change{
			"reason": {New: reason},
		})
	}
	return inst, nil
}

func (e *EngineImpl) Hold(ctx context.Context, id string, reason string) (*ProcessInstance, error) {
	return e.transition(ctx, id, func(inst *ProcessInstance) ([]Event, error) {
		if inst.Status == ProcessOnHold {
			return nil, nil
		}
		if inst.Status != ProcessInProgress {
			return nil, errs.InvalidStatef("process %s cannot be put on hold from status %q", id, inst.Status)
		}

		now := time.Now()
		inst.Status = ProcessOnHold
		inst.HoldReason = reason

		return []Event{{
			Type:       EventProcessOnHold,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			Message:    "Process on hold: " + reason,
			OccurredAt: now,
		}}, nil
	})
}

// Resume re-opens a held process. If the hold came from a rejection there is
// no step in progress anymore, so the next pending step is opened; with none
// left the process completes.
func (e *EngineImpl) Resume(ctx context.Context, id string) (*ProcessInstance, error) {
	return e.transition(ctx, id, func(inst *ProcessInstance) ([]Event, error) {
		if inst.Status != ProcessOnHold {
			return nil, errs.InvalidStatef("process %s is not on hold", id)
		}

		now := time.Now()
		inst.Status = ProcessInProgress
		inst.HoldReason = ""

		events := []Event{{
			Type:       EventProcessResumed,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			Message:    "Process resumed",
			OccurredAt: now,
		}}

		if inst.CurrentStep() == nil {
			events = append(events, openNextOrComplete(inst, now)...)
		}
		return events, nil
	})
}

func (e *EngineImpl) AssignStep(ctx context.Context, id string, sequenceNumber int, assignee string) (*ProcessInstance, error) {
	inst, err := e.transition(ctx, id, func(inst *ProcessInstance) ([]Event, error) {
		if inst.Terminal() {
			return nil, errs.InvalidStatef("process %s is %s", id, inst.Status)
		}

		step := inst.StepBySequence(sequenceNumber)
		if step == nil {
			return nil, errs.NotFoundf("process %s has no step %d", id, sequenceNumber)
		}
		if step.Status != StepPending && step.Status != StepInProgress {
			return nil, errs.InvalidStatef("step %q is %s and cannot be reassigned", step.Name, step.Status)
		}
		if step.AssignedTo == assignee {
			return nil, nil
		}

		step.AssignedTo = assignee

		return []Event{{
			Type:       EventStepAssigned,
			InstanceID: inst.ID.Hex(),
			SubjectID:  inst.SubjectID,
			StepName:   step.Name,
			Assignee:   assignee,
			Message:    "Step " + step.Name + " assigned to " + assignee,
			OccurredAt: time.Now(),
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	_ = e.AuditService.LogChange(ctx, common_models.AuditActionAssign, "process_instances", id, map[string]common_models.Change{
		"assignee": {New: assignee},
	})
	return inst, nil
}
