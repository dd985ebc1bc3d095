package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

const defaultActivityLimit = 50

// RelationHandler 封装了好友关系相关的 HTTP 处理器方法。
type RelationHandler struct {
	RelationService services.RelationService
	log             *zap.Logger
}

// NewRelationHandler 创建一个新的 RelationHandler 实例。
func NewRelationHandler(relationService services.RelationService, log *zap.Logger) *RelationHandler {
	return &RelationHandler{RelationService: relationService, log: log}
}

// CreateRelationRequest 是发起好友请求的请求体。
type CreateRelationRequest struct {
	ToUserID uint   `json:"toUserId" validate:"required"`
	Message  string `json:"message" validate:"max=100"`
}

// AcceptRelationRequest 是按用户对接受好友请求的请求体。
type AcceptRelationRequest struct {
	FromUserID uint `json:"fromUserId" validate:"required"`
}

// MutualCountResponse 是共同好友数量的响应体。
type MutualCountResponse struct {
	Count int `json:"count"`
}

// Create 由当前用户向 toUserId 发起好友请求。
func (h *RelationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	var req CreateRelationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rel, err := h.RelationService.Create(r.Context(), userID, req.ToUserID, req.Message)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "relation created", rel.ID)
}

// Accept 接受 fromUserId 发给当前用户的请求。
func (h *RelationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	var req AcceptRelationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rel, err := h.RelationService.Accept(r.Context(), req.FromUserID, userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "relation accepted", rel.ID)
}

// AcceptByID 接受指定 id 的请求，只有被请求方可以调用。
func (h *RelationHandler) AcceptByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	relationID, err := pathID(r, "relationID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.RelationService.CheckResponder(r.Context(), relationID, userID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	rel, err := h.RelationService.AcceptByID(services.WithActor(r.Context(), userID), relationID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "relation accepted", rel.ID)
}

// Decline 拒绝请求或解除好友关系，双方均可调用。
func (h *RelationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	relationID, err := pathID(r, "relationID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.RelationService.CheckParticipant(r.Context(), relationID, userID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	rel, err := h.RelationService.Decline(services.WithActor(r.Context(), userID), relationID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "relation declined", rel.ID)
}

// ListUsers 列出除当前用户外的所有用户及其关系状态。
func (h *RelationHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	users, err := h.RelationService.ListOthersWithStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// ListFriends 列出 userId 的好友，缺省为当前用户。
func (h *RelationHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	target, err := queryInt(r, "userId", int(userID))
	if err != nil || target == 0 {
		writeJSONError(w, "无效的 userId", http.StatusBadRequest)
		return
	}
	friends, err := h.RelationService.ListFriends(r.Context(), uint(target))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// MutualCount 返回当前用户与 otherUserID 的共同好友数量。
func (h *RelationHandler) MutualCount(w http.ResponseWriter, r *http.Request) {
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
	count, err := h.RelationService.MutualFriendCount(r.Context(), userID, otherID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, MutualCountResponse{Count: count})
}

// ListActivity 返回当前用户的关系变更记录。
func (h *RelationHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	limit, err := queryInt(r, "limit", defaultActivityLimit)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	activity, err := h.RelationService.ListActivity(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, activity)
}
