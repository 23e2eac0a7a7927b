package instance

import (
	"time"

	"dealerflow/internal/features/definition"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProcessStatus string

const (
	ProcessNotStarted ProcessStatus = "not_started"
	ProcessInProgress ProcessStatus = "in_progress"
	ProcessCompleted  ProcessStatus = "completed"
	ProcessCancelled  ProcessStatus = "cancelled"
	ProcessOnHold     ProcessStatus = "on_hold"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
	StepRejected   StepStatus = "rejected"
)

// Outcome is what an actor reports for the step they are advancing.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeSkip     Outcome = "skip"
	OutcomeReject   Outcome = "reject"
)

// StepInstance is a frozen copy of a StepTemplate plus runtime state. The
// template fields are copied at instance creation and never re-read from the
// definition, so republishing a definition cannot change a running process.
type StepInstance struct {
	SequenceNumber    int        `bson:"sequence_number" json:"sequence_number"`
	Name              string     `bson:"name" json:"name"`
	Description       string     `bson:"description,omitempty" json:"description,omitempty"`
	ExpectedHours     float64    `bson:"expected_hours" json:"expected_hours"`
	ResponsibleParty  string     `bson:"responsible_party,omitempty" json:"responsible_party,omitempty"`
	RequiresApproval  bool       `bson:"requires_approval" json:"requires_approval"`
	RequiredDocuments []string   `bson:"required_documents,omitempty" json:"required_documents,omitempty"`
	Status            StepStatus `bson:"status" json:"status"`
	Notes             string     `bson:"notes,omitempty" json:"notes,omitempty"`
	AssignedTo        string     `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	ApprovedBy        string     `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	StartedAt         *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt       *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// ProcessInstance is one running process with its embedded step snapshot.
// Steps live inside the instance document, so creation is a single insert and
// every advancement replaces the whole document guarded by Version.
type ProcessInstance struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	DefinitionID primitive.ObjectID     `bson:"definition_id" json:"definition_id"`
	ProcessType  definition.ProcessType `bson:"process_type" json:"process_type"`
	SubjectID    string                 `bson:"subject_id" json:"subject_id"`
	Status       ProcessStatus          `bson:"status" json:"status"`
	Priority     int                    `bson:"priority" json:"priority"`
	Steps        []StepInstance         `bson:"steps" json:"steps"`
	StartedAt    *time.Time             `bson:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt      *time.Time             `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	HoldReason   string                 `bson:"hold_reason,omitempty" json:"hold_reason,omitempty"`
	CancelReason string                 `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`
	Version      int64                  `bson:"version" json:"version"`
	CreatedAt    time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time              `bson:"updated_at" json:"updated_at"`
}

// Terminal reports whether the instance can never advance again.
func (p *ProcessInstance) Terminal() bool {
	return p.Status == ProcessCompleted || p.Status == ProcessCancelled
}

// CurrentStep returns the step currently in progress, or nil.
func (p *ProcessInstance) CurrentStep() *StepInstance {
	for i := range p.Steps {
		if p.Steps[i].Status == StepInProgress {
			return &p.Steps[i]
		}
	}
	return nil
}

// NextPending returns the lowest-sequence pending step, or nil. Steps are
// stored sorted by sequence number, so the first hit wins.
func (p *ProcessInstance) NextPending() *StepInstance {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			return &p.Steps[i]
		}
	}
	return nil
}

// StepBySequence returns the step with the given sequence number, or nil.
func (p *ProcessInstance) StepBySequence(seq int) *StepInstance {
	for i := range p.Steps {
		if p.Steps[i].SequenceNumber == seq {
			return &p.Steps[i]
		}
	}
	return nil
}
