package kafkahandlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// RelationActivityLogic turns relation events from Kafka into activity rows.
type RelationActivityLogic struct {
	repo storage.RelationActivityRepository
	log  *zap.Logger
}

// NewRelationActivityLogic creates a new instance of RelationActivityLogic.
func NewRelationActivityLogic(repo storage.RelationActivityRepository, log *zap.Logger) *RelationActivityLogic {
	return &RelationActivityLogic{repo: repo, log: log.Named("relation-activity")}
}

// HandleRelationEvent is passed to the Kafka consumer as its MessageHandler.
// Malformed messages are logged and skipped so they do not block the
// partition; store failures are returned so the consumer rewinds and
// redelivers the message.
func (h *RelationActivityLogic) HandleRelationEvent(ctx context.Context, msg *kafka.Message) error {
	var event imtypes.RelationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.log.Warn("skipping undecodable relation event", zap.ByteString("value", msg.Value), zap.Error(err))
		return nil
	}

	kind := models.RelationActivityKind(event.Kind)
	if event.EventID == "" || event.RelationID == 0 || !kind.Valid() {
		h.log.Warn("skipping invalid relation event",
			zap.String("eventId", event.EventID),
			zap.String("kind", string(event.Kind)),
			zap.Uint("relationId", event.RelationID))
		return nil
	}

	activity := &models.RelationActivity{
		EventID:     event.EventID,
		RelationID:  event.RelationID,
		Kind:        kind,
		ActorUserID: event.ActorUserID,
		UserAID:     event.UserAID,
		UserBID:     event.UserBID,
		OccurredAt:  event.OccurredAt,
	}
	if err := h.repo.Record(ctx, activity); err != nil {
		return fmt.Errorf("record relation activity %s: %w", event.EventID, err)
	}

	h.log.Debug("relation activity recorded",
		zap.String("eventId", event.EventID),
		zap.String("kind", string(kind)),
		zap.Uint("relationId", event.RelationID))
	return nil
}
