package apiserver

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"socialnet/internal/middleware"
	"socialnet/internal/models"
	"socialnet/internal/services"
)

// AuthHandler 封装了认证相关的 HTTP 处理器方法。
type AuthHandler struct {
	AuthService services.AuthService
	log         *zap.Logger
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{AuthService: authService, log: log}
}

// RegisterRequest 是用户注册请求的结构体。
type RegisterRequest struct {
	Name     string     `json:"name" validate:"required,max=50"`
	LastName string     `json:"lastName" validate:"required,max=50"`
	Email    string     `json:"email" validate:"required,email,max=100"`
	Password string     `json:"password" validate:"required,min=6,max=72"`
	BirthDay *time.Time `json:"birthDay,omitempty"`
}

// LoginRequest 是用户登录请求的结构体。
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse 是成功登录后返回的结构体。
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register 处理用户注册请求。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		LastName: req.LastName,
		Email:    req.Email,
		Password: req.Password,
		BirthDay: req.BirthDay,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusCreated, "user registered", user.ID)
}

// Login 处理用户登录请求。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, user, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout 处理用户登出请求，将当前 Token 加入黑名单。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok || claims.ExpiresAt == nil {
		writeJSONError(w, "用户未认证或无法解析用户声明", http.StatusUnauthorized)
		return
	}
	if err := h.AuthService.Logout(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeOK(w, http.StatusOK, "logged out", 0)
}
