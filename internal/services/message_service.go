package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// MessageService 定义了私信服务的接口。
type MessageService interface {
	Send(ctx context.Context, fromUserID, toUserID uint, content string) (*models.Message, error)
	Edit(ctx context.Context, messageID, editorID uint, content string) (*models.Message, error)
	History(ctx context.Context, userID, otherUserID uint, limit, offset int) ([]models.Message, error)
	Latest(ctx context.Context, fromUserID, toUserID uint) (*models.Message, error)
	Get(ctx context.Context, messageID, viewerID uint) (*models.Message, error)
}

// messageService 是 MessageService 的实现。
type messageService struct {
	msgRepo    storage.MessageRepository
	users      UserDirectory
	relations  RelationService
	editWindow time.Duration
	maxHistory int
	log        *zap.Logger
	now        func() time.Time
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(msgRepo storage.MessageRepository, users UserDirectory, relations RelationService, cfg config.MessageConfig, log *zap.Logger) MessageService {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 200
	}
	return &messageService{
		msgRepo:    msgRepo,
		users:      users,
		relations:  relations,
		editWindow: cfg.EditWindow,
		maxHistory: maxHistory,
		log:        log.Named("message-service"),
		now:        time.Now,
	}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", newValidationError("message content is required")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return "", newValidationError(fmt.Sprintf("message must be at most %d characters", models.MaxMessageLength))
	}
	return content, nil
}

// Send 只允许好友之间发送私信。
func (s *messageService) Send(ctx context.Context, fromUserID, toUserID uint, content string) (*models.Message, error) {
	if fromUserID == toUserID {
		return nil, newValidationError("cannot send a message to yourself")
	}
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.UserExists(ctx, toUserID)
	if err != nil {
		return nil, newOperationFailed("could not check recipient", err)
	}
	if !exists {
		return nil, newNotFoundError("recipient not found")
	}

	friends, err := s.relations.AreFriends(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, newForbiddenError("cannot send to non-friend users")
	}

	msg := &models.Message{FromUserID: fromUserID, ToUserID: toUserID, Content: content}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, mapStoreError(err, "message not found", "could not send message")
	}
	s.log.Debug("message sent", zap.Uint("messageId", msg.ID), zap.Uint("from", fromUserID), zap.Uint("to", toUserID))
	return msg, nil
}

func (s *messageService) Edit(ctx context.Context, messageID, editorID uint, content string) (*models.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, mapStoreError(err, "message not found", "could not load message")
	}
	if msg.FromUserID != editorID {
		return nil, newForbiddenError("only the sender can edit a message")
	}
	if !msg.EditableAt(s.now(), s.editWindow) {
		return nil, newValidationError("time to edit is over")
	}

	if err := s.msgRepo.UpdateContent(ctx, msg.ID, content); err != nil {
		return nil, mapStoreError(err, "message not found", "could not edit message")
	}
	msg.Content = content
	msg.Edited = true
	return msg, nil
}

func (s *messageService) History(ctx context.Context, userID, otherUserID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > s.maxHistory {
		limit = s.maxHistory
	}
	if offset < 0 {
		offset = 0
	}
	messages, err := s.msgRepo.ListBetween(ctx, userID, otherUserID, limit, offset)
	if err != nil {
		return nil, mapStoreError(err, "message not found", "could not load messages")
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

func (s *messageService) Latest(ctx context.Context, fromUserID, toUserID uint) (*models.Message, error) {
	msg, err := s.msgRepo.LatestFrom(ctx, fromUserID, toUserID)
	if err != nil {
		return nil, mapStoreError(err, "no message found", "could not load message")
	}
	return msg, nil
}

func (s *messageService) Get(ctx context.Context, messageID, viewerID uint) (*models.Message, error) {
	msg, err := s.msgRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, mapStoreError(err, "message not found", "could not load message")
	}
	if !msg.Involves(viewerID) {
		return nil, newForbiddenError("you are not part of this conversation")
	}
	return msg, nil
}
