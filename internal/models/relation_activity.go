package models

import "time"

// RelationActivityKind names a relation state change.
type RelationActivityKind string

const (
	RelationActivityCreated  RelationActivityKind = "created"
	RelationActivityAccepted RelationActivityKind = "accepted"
	RelationActivityDeclined RelationActivityKind = "declined"
)

// Valid reports whether k is one of the known kinds.
func (k RelationActivityKind) Valid() bool {
	switch k {
	case RelationActivityCreated, RelationActivityAccepted, RelationActivityDeclined:
		return true
	}
	return false
}

// RelationActivity is an append-only audit entry recorded from relation events.
// EventID is unique so a redelivered event is stored once.
type RelationActivity struct {
	ID          uint                 `gorm:"primarykey" json:"id"`
	EventID     string               `gorm:"type:varchar(36);uniqueIndex;not null" json:"eventId"`
	RelationID  uint                 `gorm:"index;not null" json:"relationId"`
	Kind        RelationActivityKind `gorm:"type:varchar(20);not null" json:"kind"`
	ActorUserID uint                 `gorm:"not null" json:"actorUserId"`
	UserAID     uint                 `gorm:"index;not null" json:"userAId"`
	UserBID     uint                 `gorm:"index;not null" json:"userBId"`
	OccurredAt  time.Time            `gorm:"not null" json:"occurredAt"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// TableName 指定 RelationActivity 模型的表名。
func (RelationActivity) TableName() string {
	return "relation_activities"
}
