package definition

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProcessType tags a definition with the class of operational process it
// drives. The engine attaches no behavior to the value; it is data.
type ProcessType string

const (
	ProcessTypeAcquisition    ProcessType = "acquisition"
	ProcessTypeReconditioning ProcessType = "reconditioning"
	ProcessTypeAging          ProcessType = "aging"
)

// StepTemplate is one ordered step within a definition. Immutable once the
// definition is published.
type StepTemplate struct {
	SequenceNumber    int      `bson:"sequence_number" json:"sequence_number"`
	Name              string   `bson:"name" json:"name"`
	Description       string   `bson:"description,omitempty" json:"description,omitempty"`
	ExpectedHours     float64  `bson:"expected_hours" json:"expected_hours"`
	ResponsibleParty  string   `bson:"responsible_party,omitempty" json:"responsible_party,omitempty"`
	RequiresApproval  bool     `bson:"requires_approval" json:"requires_approval"`
	RequiredDocuments []string `bson:"required_documents,omitempty" json:"required_documents,omitempty"`
}

// ProcessDefinition is a named, ordered blueprint of steps. Publishing
// inserts a new document; existing documents are never mutated in place, so
// running instances keep referencing the version they snapshotted.
type ProcessDefinition struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	ProcessType ProcessType        `bson:"process_type" json:"process_type"`
	Active      bool               `bson:"active" json:"active"`
	IsDefault   bool               `bson:"is_default" json:"is_default"`
	Steps       []StepTemplate     `bson:"steps" json:"steps"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
