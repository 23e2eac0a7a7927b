package work

import (
	"context"
	"sort"
	"time"

	"dealerflow/internal/features/definition"
	"dealerflow/internal/features/instance"

	"go.uber.org/zap"
)

// WorkItem is one actionable step across all open processes.
type WorkItem struct {
	InstanceID       string                 `json:"instance_id"`
	SubjectID        string                 `json:"subject_id"`
	SubjectLabel     string                 `json:"subject_label,omitempty"`
	ProcessType      definition.ProcessType `json:"process_type"`
	Priority         int                    `json:"priority"`
	SequenceNumber   int                    `json:"sequence_number"`
	StepName         string                 `json:"step_name"`
	ResponsibleParty string                 `json:"responsible_party,omitempty"`
	AssignedTo       string                 `json:"assigned_to,omitempty"`
	RequiresApproval bool                   `json:"requires_approval"`
	WaitingSince     time.Time              `json:"waiting_since"`
}

// Filter narrows the work queue. Zero values match everything.
type Filter struct {
	ResponsibleParty string
	ProcessType      definition.ProcessType
	AssignedTo       string
	Limit            int
}

// SubjectResolver maps subject ids to human-readable labels. Lookups are best
// effort; a failed resolution leaves the label empty.
type SubjectResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]string, error)
}

type WorkService interface {
	NextWork(ctx context.Context, filter Filter) ([]WorkItem, error)
	ExportXLSX(ctx context.Context, filter Filter) ([]byte, error)
}

type WorkServiceImpl struct {
	InstanceRepo instance.InstanceRepository
	Resolver     SubjectResolver
	Logger       *zap.Logger
}

func NewWorkService(instanceRepo instance.InstanceRepository, resolver SubjectResolver, logger *zap.Logger) WorkService {
	return &WorkServiceImpl{
		InstanceRepo: instanceRepo,
		Resolver:     resolver,
		Logger:       logger,
	}
}

// NextWork returns the open queue in deterministic order: priority first
// (1 beats 5), then how long the item has been waiting, then instance id as
// the final tiebreak so equal items always list the same way.
func (s *WorkServiceImpl) NextWork(ctx context.Context, filter Filter) ([]WorkItem, error) {
	insts, err := s.InstanceRepo.ListByStatuses(ctx, []instance.ProcessStatus{
		instance.ProcessNotStarted,
		instance.ProcessInProgress,
	})
	if err != nil {
		return nil, err
	}

	items := make([]WorkItem, 0, len(insts))
	for i := range insts {
		item, ok := workItemFor(&insts[i])
		if !ok {
			continue
		}
		if filter.ResponsibleParty != "" && item.ResponsibleParty != filter.ResponsibleParty {
			continue
		}
		if filter.ProcessType != "" && item.ProcessType != filter.ProcessType {
			continue
		}
		if filter.AssignedTo != "" && item.AssignedTo != filter.AssignedTo {
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		if !items[i].WaitingSince.Equal(items[j].WaitingSince) {
			return items[i].WaitingSince.Before(items[j].WaitingSince)
		}
		return items[i].InstanceID < items[j].InstanceID
	})

	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	s.resolveLabels(ctx, items)
	return items, nil
}

// workItemFor maps an open instance to its actionable step. A not-started
// process surfaces its first step; an in-progress one surfaces the step that
// is open right now.
func workItemFor(inst *instance.ProcessInstance) (WorkItem, bool) {
	var step *instance.StepInstance
	waitingSince := inst.CreatedAt

	switch inst.Status {
	case instance.ProcessNotStarted:
		step = inst.NextPending()
	case instance.ProcessInProgress:
		step = inst.CurrentStep()
		if step != nil && step.StartedAt != nil {
			waitingSince = *step.StartedAt
		} else if inst.StartedAt != nil {
			waitingSince = *inst.StartedAt
		}
	}
	if step == nil {
		return WorkItem{}, false
	}

	return WorkItem{
		InstanceID:       inst.ID.Hex(),
		SubjectID:        inst.SubjectID,
		ProcessType:      inst.ProcessType,
		Priority:         inst.Priority,
		SequenceNumber:   step.SequenceNumber,
		StepName:         step.Name,
		ResponsibleParty: step.ResponsibleParty,
		AssignedTo:       step.AssignedTo,
		RequiresApproval: step.RequiresApproval,
		WaitingSince:     waitingSince,
	}, true
}

func (s *WorkServiceImpl) resolveLabels(ctx context.Context, items []WorkItem) {
	if s.Resolver == nil || len(items) == 0 {
		return
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		if !seen[item.SubjectID] {
			seen[item.SubjectID] = true
			ids = append(ids, item.SubjectID)
		}
	}

	labels, err := s.Resolver.Resolve(ctx, ids)
	if err != nil {
		s.Logger.Warn("Subject resolution failed", zap.Error(err))
		return
	}
	for i := range items {
		items[i].SubjectLabel = labels[items[i].SubjectID]
	}
}
