package escalation

import (
	"time"

	"dealerflow/internal/features/definition"
)

// Tier is the severity band an overdue step falls into.
type Tier string

const (
	TierWatch    Tier = "watch"
	TierWarning  Tier = "warning"
	TierCritical Tier = "critical"
)

// Thresholds are multiples of a step's expected duration. A step enters a
// tier once elapsed/expected reaches that tier's multiplier.
type Thresholds struct {
	Watch    float64
	Warning  float64
	Critical float64
}

// Signal is one overdue step found by a scan.
type Signal struct {
	InstanceID       string                 `json:"instance_id"`
	SubjectID        string                 `json:"subject_id"`
	ProcessType      definition.ProcessType `json:"process_type"`
	Priority         int                    `json:"priority"`
	SequenceNumber   int                    `json:"sequence_number"`
	StepName         string                 `json:"step_name"`
	ResponsibleParty string                 `json:"responsible_party,omitempty"`
	AssignedTo       string                 `json:"assigned_to,omitempty"`
	Tier             Tier                   `json:"tier"`
	ExpectedHours    float64                `json:"expected_hours"`
	ElapsedHours     float64                `json:"elapsed_hours"`
	Ratio            float64                `json:"ratio"`
	StepStartedAt    time.Time              `json:"step_started_at"`
}
