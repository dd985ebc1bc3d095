package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"socialnet/internal/config"
	"socialnet/internal/imtypes"
	"socialnet/internal/kafka"
	"socialnet/internal/models"
	"socialnet/internal/relation"
	"socialnet/internal/storage"
)

const publishTimeout = 5 * time.Second

// UserDirectory is what the relation service needs to know about users.
type UserDirectory interface {
	UserExists(ctx context.Context, id uint) (bool, error)
	GetDisplayInfo(ctx context.Context, ids []uint) (map[uint]models.UserDisplayInfo, error)
	ListOtherUsers(ctx context.Context, excludeID uint) ([]models.UserDisplayInfo, error)
}

// UserWithStatus is one row of a relation listing, seen from the viewer.
// RequestMessage is set only for pending statuses and MutualFriendNumber only
// for accepted ones.
type UserWithStatus struct {
	UserID              uint                   `json:"userId"`
	Name                string                 `json:"name"`
	LastName            string                 `json:"lastName"`
	RequestStatusNumber relation.RequestStatus `json:"requestStatusNumber"`
	RequestMessage      *string                `json:"requestMessage,omitempty"`
	MutualFriendNumber  *int                   `json:"mutualFriendNumber,omitempty"`
	ProfilePicture      string                 `json:"profilePicture"`
	TimeOffset          time.Time              `json:"timeOffset"`
}

// RelationService creates, accepts and declines relations and answers listing queries.
type RelationService interface {
	Create(ctx context.Context, userAID, userBID uint, message string) (*models.UserRelation, error)
	Accept(ctx context.Context, requesterID, accepterID uint) (*models.UserRelation, error)
	AcceptByID(ctx context.Context, relationID uint) (*models.UserRelation, error)
	Decline(ctx context.Context, relationID uint) (*models.UserRelation, error)
	GetRelation(ctx context.Context, relationID uint) (*models.UserRelation, error)
	// CheckParticipant returns Forbidden unless userID is either side of the relation.
	CheckParticipant(ctx context.Context, relationID, userID uint) error
	// CheckResponder returns Forbidden unless userID is the requestee.
	CheckResponder(ctx context.Context, relationID, userID uint) error
	ListOthersWithStatus(ctx context.Context, viewerID uint) ([]UserWithStatus, error)
	ListFriends(ctx context.Context, userID uint) ([]UserWithStatus, error)
	MutualFriendCount(ctx context.Context, userID, otherUserID uint) (int, error)
	AreFriends(ctx context.Context, userID, otherUserID uint) (bool, error)
	ListActivity(ctx context.Context, userID uint, limit int) ([]models.RelationActivity, error)
}

type relationService struct {
	relations  storage.UserRelationRepository
	activities storage.RelationActivityRepository
	users      UserDirectory
	producer   kafka.MessageProducer
	topic      string
	log        *zap.Logger
	now        func() time.Time
}

// NewRelationService creates a new RelationService instance.
func NewRelationService(
	relations storage.UserRelationRepository,
	activities storage.RelationActivityRepository,
	users UserDirectory,
	producer kafka.MessageProducer,
	kafkaCfg config.KafkaConfig,
	log *zap.Logger,
) RelationService {
	return &relationService{
		relations:  relations,
		activities: activities,
		users:      users,
		producer:   producer,
		topic:      kafkaCfg.RelationEventsTopic,
		log:        log.Named("relation-service"),
		now:        time.Now,
	}
}

func (s *relationService) Create(ctx context.Context, userAID, userBID uint, message string) (*models.UserRelation, error) {
	if userAID == userBID {
		return nil, newValidationError("a user cannot send a request to themselves")
	}
	if utf8.RuneCountInString(message) > models.MaxRequestMessageLength {
		return nil, newValidationError(fmt.Sprintf("request message must be at most %d characters", models.MaxRequestMessageLength))
	}
	for _, id := range []uint{userAID, userBID} {
		if err := s.requireUser(ctx, id); err != nil {
			return nil, err
		}
	}

	rel, err := models.NewUserRelation(userAID, userBID, message)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	err = s.relations.Transaction(ctx, func(repo storage.UserRelationRepository) error {
		if err := repo.LockPair(ctx, userAID, userBID); err != nil {
			return err
		}
		existing, err := repo.FindPair(ctx, userAID, userBID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return newDuplicateError("a relation between these users already exists")
		}
		return repo.Create(ctx, rel)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ServiceError{Kind: KindDuplicate, Message: "a relation between these users already exists", Cause: err}
		}
		if errors.Is(err, models.ErrSelfRelation) || errors.Is(err, models.ErrInvalidRelationUser) {
			return nil, newValidationError(err.Error())
		}
		return nil, mapStoreError(err, "user not found", "could not create relation")
	}

	s.log.Info("relation created", zap.Uint("relationId", rel.ID), zap.Uint("userA", userAID), zap.Uint("userB", userBID))
	s.publish(ctx, imtypes.RelationEventCreated, rel, userAID)
	return rel, nil
}

func (s *relationService) Accept(ctx context.Context, requesterID, accepterID uint) (*models.UserRelation, error) {
	var rel *models.UserRelation
	err := s.relations.Transaction(ctx, func(repo storage.UserRelationRepository) error {
		found, err := repo.FindDirected(ctx, requesterID, accepterID)
		if err != nil {
			return err
		}
		if !relation.CanAccept(*found, requesterID, accepterID) {
			return gorm.ErrRecordNotFound
		}
		if err := repo.SetApproved(ctx, found.ID, true); err != nil {
			return err
		}
		found.Accept()
		rel = found
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, "relation request not found", "could not accept relation")
	}

	s.log.Info("relation accepted", zap.Uint("relationId", rel.ID), zap.Uint("requester", requesterID), zap.Uint("accepter", accepterID))
	s.publish(ctx, imtypes.RelationEventAccepted, rel, accepterID)
	return rel, nil
}

func (s *relationService) AcceptByID(ctx context.Context, relationID uint) (*models.UserRelation, error) {
	rel, err := s.setApproved(ctx, relationID, true)
	if err != nil {
		return nil, mapStoreError(err, "relation not found", "could not accept relation")
	}
	s.log.Info("relation accepted", zap.Uint("relationId", rel.ID))
	s.publish(ctx, imtypes.RelationEventAccepted, rel, actorFromContext(ctx, rel))
	return rel, nil
}

// Decline resets approval and keeps the row, so the pair can be accepted
// again later but never re-created.
func (s *relationService) Decline(ctx context.Context, relationID uint) (*models.UserRelation, error) {
	rel, err := s.setApproved(ctx, relationID, false)
	if err != nil {
		return nil, mapStoreError(err, "relation not found", "could not decline relation")
	}
	s.log.Info("relation declined", zap.Uint("relationId", rel.ID))
	s.publish(ctx, imtypes.RelationEventDeclined, rel, actorFromContext(ctx, rel))
	return rel, nil
}

func (s *relationService) setApproved(ctx context.Context, relationID uint, approved bool) (*models.UserRelation, error) {
	var rel *models.UserRelation
	err := s.relations.Transaction(ctx, func(repo storage.UserRelationRepository) error {
		found, err := repo.GetByID(ctx, relationID)
		if err != nil {
			return err
		}
		if err := repo.SetApproved(ctx, found.ID, approved); err != nil {
			return err
		}
		if approved {
			found.Accept()
		} else {
			found.Decline()
		}
		rel = found
		return nil
	})
	return rel, err
}

func (s *relationService) GetRelation(ctx context.Context, relationID uint) (*models.UserRelation, error) {
	rel, err := s.relations.GetByID(ctx, relationID)
	if err != nil {
		return nil, mapStoreError(err, "relation not found", "could not load relation")
	}
	return rel, nil
}

func (s *relationService) CheckParticipant(ctx context.Context, relationID, userID uint) error {
	rel, err := s.GetRelation(ctx, relationID)
	if err != nil {
		return err
	}
	if !relation.IsParticipant(*rel, userID) {
		return newForbiddenError("you are not part of this relation")
	}
	return nil
}

func (s *relationService) CheckResponder(ctx context.Context, relationID, userID uint) error {
	rel, err := s.GetRelation(ctx, relationID)
	if err != nil {
		return err
	}
	if !relation.IsResponder(*rel, userID) {
		return newForbiddenError("only the requested user can accept this relation")
	}
	return nil
}

// ListOthersWithStatus does one users query, one query for the viewer's rows
// and one batched query for the friend rows of the viewer and accepted counterparts.
func (s *relationService) ListOthersWithStatus(ctx context.Context, viewerID uint) ([]UserWithStatus, error) {
	if err := s.requireUser(ctx, viewerID); err != nil {
		return nil, err
	}

	others, err := s.users.ListOtherUsers(ctx, viewerID)
	if err != nil {
		return nil, mapStoreError(err, "user not found", "could not list users")
	}
	rows, err := s.relations.ListTouching(ctx, viewerID)
	if err != nil {
		return nil, mapStoreError(err, "relation not found", "could not list relations")
	}
	idx := relation.NewIndex(viewerID, rows)

	friendIDs := []uint{viewerID}
	for _, other := range idx.Counterparts() {
		if status, err := idx.Status(other); err == nil && status.IsAccepted() {
			friendIDs = append(friendIDs, other)
		}
	}
	graph, err := s.friendGraph(ctx, friendIDs)
	if err != nil {
		return nil, err
	}

	views := make([]UserWithStatus, 0, len(others))
	for _, info := range others {
		status, err := idx.Status(info.ID)
		if err != nil {
			s.logClassifyError(viewerID, info.ID, err)
		}
		view := newUserWithStatus(info, status)
		if row, ok := idx.Row(info.ID); ok {
			view.TimeOffset = row.CreatedAt
			if status.IsPending() {
				msg := row.RequestMessage
				view.RequestMessage = &msg
			}
		}
		if status.IsAccepted() {
			n := graph.Mutual(viewerID, info.ID)
			view.MutualFriendNumber = &n
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *relationService) ListFriends(ctx context.Context, userID uint) ([]UserWithStatus, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := s.relations.ListApprovedTouching(ctx, []uint{userID})
	if err != nil {
		return nil, mapStoreError(err, "relation not found", "could not list friends")
	}

	friends := relation.FriendsOf(userID, rows)
	ids := friends.Sorted()
	infos, err := s.users.GetDisplayInfo(ctx, ids)
	if err != nil {
		return nil, mapStoreError(err, "user not found", "could not load friends")
	}
	graph, err := s.friendGraph(ctx, append([]uint{userID}, ids...))
	if err != nil {
		return nil, err
	}

	byOther := make(map[uint]models.UserRelation, len(rows))
	for _, row := range rows {
		if other, ok := row.OtherSide(userID); ok {
			byOther[other] = row
		}
	}

	views := make([]UserWithStatus, 0, len(ids))
	for _, id := range ids {
		info, ok := infos[id]
		if !ok {
			continue
		}
		row := byOther[id]
		status := relation.RequestAccepted
		if row.UserBID == userID {
			status = relation.RevertRequestAccepted
		}
		view := newUserWithStatus(info, status)
		view.TimeOffset = row.CreatedAt
		n := graph.Mutual(userID, id)
		view.MutualFriendNumber = &n
		views = append(views, view)
	}
	return views, nil
}

func (s *relationService) MutualFriendCount(ctx context.Context, userID, otherUserID uint) (int, error) {
	if userID == otherUserID {
		return 0, newValidationError("mutual friends need two different users")
	}
	graph, err := s.friendGraph(ctx, []uint{userID, otherUserID})
	if err != nil {
		return 0, err
	}
	return graph.Mutual(userID, otherUserID), nil
}

func (s *relationService) AreFriends(ctx context.Context, userID, otherUserID uint) (bool, error) {
	rows, err := s.relations.FindPair(ctx, userID, otherUserID)
	if err != nil {
		return false, mapStoreError(err, "relation not found", "could not check friendship")
	}
	status, err := relation.Classify(userID, otherUserID, rows)
	if err != nil {
		s.logClassifyError(userID, otherUserID, err)
		return false, newConsistencyError("relation state is inconsistent", err)
	}
	return status.IsAccepted(), nil
}

func (s *relationService) ListActivity(ctx context.Context, userID uint, limit int) ([]models.RelationActivity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	activities, err := s.activities.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, mapStoreError(err, "activity not found", "could not list relation activity")
	}
	if activities == nil {
		activities = []models.RelationActivity{}
	}
	return activities, nil
}

func (s *relationService) requireUser(ctx context.Context, id uint) error {
	exists, err := s.users.UserExists(ctx, id)
	if err != nil {
		return newOperationFailed("could not check user", err)
	}
	if !exists {
		return newNotFoundError(fmt.Sprintf("user %d not found", id))
	}
	return nil
}

func (s *relationService) friendGraph(ctx context.Context, ids []uint) (relation.FriendGraph, error) {
	rows, err := s.relations.ListApprovedTouching(ctx, ids)
	if err != nil {
		return nil, mapStoreError(err, "relation not found", "could not load friend relations")
	}
	return relation.NewFriendGraph(rows), nil
}

func (s *relationService) logClassifyError(viewerID, otherID uint, err error) {
	var ce *relation.ConsistencyError
	if errors.As(err, &ce) {
		s.log.Error("relation consistency error",
			zap.Uint("viewer", viewerID),
			zap.Uint("other", otherID),
			zap.Int("rows", ce.Rows))
		return
	}
	s.log.Error("relation classification failed", zap.Uint("viewer", viewerID), zap.Uint("other", otherID), zap.Error(err))
}

// publish runs after commit; failures are logged only.
func (s *relationService) publish(ctx context.Context, kind imtypes.RelationEventKind, rel *models.UserRelation, actorID uint) {
	if s.producer == nil || s.topic == "" {
		return
	}
	event := imtypes.NewRelationEvent(kind, rel.ID, actorID, rel.UserAID, rel.UserBID, s.now())
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("marshal relation event failed", zap.Error(err))
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.producer.SendMessage(pubCtx, s.topic, []byte(event.PartitionKey()), payload); err != nil {
		s.log.Warn("publish relation event failed",
			zap.String("topic", s.topic),
			zap.String("kind", string(kind)),
			zap.Uint("relationId", rel.ID),
			zap.Error(err))
	}
}

func newUserWithStatus(info models.UserDisplayInfo, status relation.RequestStatus) UserWithStatus {
	return UserWithStatus{
		UserID:              info.ID,
		Name:                info.Name,
		LastName:            info.LastName,
		RequestStatusNumber: status,
		ProfilePicture:      info.ProfilePicture,
	}
}

type actorKey struct{}

// WithActor records the acting user for events published from ctx.
func WithActor(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func actorFromContext(ctx context.Context, rel *models.UserRelation) uint {
	if id, ok := ctx.Value(actorKey{}).(uint); ok && id != 0 {
		return id
	}
	return rel.UserBID
}
