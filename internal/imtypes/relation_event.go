package imtypes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RelationEventKind mirrors models.RelationActivityKind on the wire.
type RelationEventKind string

const (
	RelationEventCreated  RelationEventKind = "created"
	RelationEventAccepted RelationEventKind = "accepted"
	RelationEventDeclined RelationEventKind = "declined"
)

// RelationEvent is published to Kafka after a relation change commits.
type RelationEvent struct {
	EventID     string            `json:"eventId"`
	Kind        RelationEventKind `json:"kind"`
	RelationID  uint              `json:"relationId"`
	ActorUserID uint              `json:"actorUserId"`
	UserAID     uint              `json:"userAId"`
	UserBID     uint              `json:"userBId"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// NewRelationEvent stamps a fresh event id and time.
func NewRelationEvent(kind RelationEventKind, relationID, actorID, userAID, userBID uint, at time.Time) RelationEvent {
	return RelationEvent{
		EventID:     uuid.NewString(),
		Kind:        kind,
		RelationID:  relationID,
		ActorUserID: actorID,
		UserAID:     userAID,
		UserBID:     userBID,
		OccurredAt:  at.UTC(),
	}
}

// PartitionKey keeps every event of one pair on the same partition.
func (e RelationEvent) PartitionKey() string {
	low, high := e.UserAID, e.UserBID
	if low > high {
		low, high = high, low
	}
	return fmt.Sprintf("%d:%d", low, high)
}
