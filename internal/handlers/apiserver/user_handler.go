package apiserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

// UserHandler 封装了用户资料相关的 HTTP 处理器方法。
type UserHandler struct {
	UserService services.UserService
	log         *zap.Logger
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{UserService: userService, log: log}
}

// UpdateProfileRequest 是更新个人资料请求的结构体。
type UpdateProfileRequest struct {
	Name     string     `json:"name" validate:"required,max=50"`
	LastName string     `json:"lastName" validate:"required,max=50"`
	AboutMe  string     `json:"aboutMe" validate:"max=500"`
	BirthDay *time.Time `json:"birthDay,omitempty"`
}

// ChangePasswordRequest 是修改密码请求的结构体。两次新密码不一致由服务层报告。
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// GetMe 返回当前用户的个人资料。
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	profile, err := h.UserService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// GetUser 返回指定用户的资料。
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := pathID(r, "userID")
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := h.UserService.GetProfile(r.Context(), targetID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// UpdateMe 更新当前用户的个人资料。
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	profile, err := h.UserService.UpdateProfile(r.Context(), userID, services.ProfileUpdate{
		Name:     req.Name,
		LastName: req.LastName,
		AboutMe:  req.AboutMe,
		BirthDay: req.BirthDay,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profile)
}

// ChangePassword 修改当前用户的密码。
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.UserService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "password changed", userID)
}

// SearchUsers 按邮箱搜索用户。
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "用户未认证", http.StatusUnauthorized)
		return
	}
	query := r.URL.Query().Get("email")
	if query == "" {
		writeJSONError(w, "搜索查询参数 'email' 不能为空", http.StatusBadRequest)
		return
	}
	users, err := h.UserService.SearchByEmail(r.Context(), query, currentUserID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}
