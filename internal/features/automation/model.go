package automation

import (
	"time"

	"dealerflow/internal/features/definition"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type HookEvent string

const (
	// HookEventOnReject runs when a step is rejected and decides whether the
	// process halts.
	HookEventOnReject HookEvent = "on_reject"
)

// StepHook is a scripted policy attached to a process type. The script sees
// the process and step as maps and must set the boolean `halt`.
type StepHook struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Name        string                 `bson:"name" json:"name"`
	ProcessType definition.ProcessType `bson:"process_type" json:"process_type"`
	Event       HookEvent              `bson:"event" json:"event"`
	Script      string                 `bson:"script" json:"script"`
	Active      bool                   `bson:"active" json:"active"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updated_at"`
}
