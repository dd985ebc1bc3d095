package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

// MessageHandler 封装了私信相关的 HTTP 处理器方法。
type MessageHandler struct {
	MessageService services.MessageService
	log            *zap.Logger
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messageService services.MessageService, log *zap.Logger) *MessageHandler {
	return &MessageHandler{MessageService: messageService, log: log}
}

// SendMessageRequest 是发送私信的请求体。
type SendMessageRequest struct {
	ToUserID uint   `json:"toUserId" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

// EditMessageRequest 是编辑私信的请求体。
type EditMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// Send 发送一条私信。
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := h.MessageService.Send(r.Context(), userID, req.ToUserID, req.Content)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "message sent", msg.ID)
}

// Edit 编辑自己发送的私信。
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	messageID, err := pathID(r, "messageID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req EditMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := h.MessageService.Edit(r.Context(), messageID, userID, req.Content)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "message edited", msg.ID)
}

// Get 返回一条私信，仅收发双方可见。
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	messageID, err := pathID(r, "messageID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := h.MessageService.Get(r.Context(), messageID, userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, msg)
}

// History 返回与 otherUserID 的聊天记录，支持 limit 和 offset。
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	otherID, err := pathID(r, "otherUserID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", 0) // 0 means the configured maximum
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	messages, err := h.MessageService.History(r.Context(), userID, otherID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// Latest 返回当前用户发给 otherUserID 的最新一条私信。
func (h *MessageHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	otherID, err := pathID(r, "otherUserID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := h.MessageService.Latest(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, msg)
}
