package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionPublish    AuditAction = "PUBLISH"
	AuditActionAdvance    AuditAction = "ADVANCE"
	AuditActionCancel     AuditAction = "CANCEL"
	AuditActionAssign     AuditAction = "ASSIGN"
	AuditActionEscalation AuditAction = "ESCALATION"
	AuditActionTemplate   AuditAction = "TEMPLATE"
	AuditActionCron       AuditAction = "CRON"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

// AuditLog records one state transition against one entity.
type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Entity    string             `bson:"entity" json:"entity"`
	EntityID  string             `bson:"entity_id" json:"entity_id"`
	ActorID   string             `bson:"actor_id" json:"actor_id"`
	Changes   map[string]Change  `bson:"changes" json:"changes"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Log is the shape persisted by the async zap sink.
type Log struct {
	Message      string    `bson:"message" json:"message"`
	ActorID      string    `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
