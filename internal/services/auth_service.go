package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// RegisterInput 是注册时提交的字段。
type RegisterInput struct {
	Name     string
	LastName string
	Email    string
	Password string
	BirthDay *time.Time
}

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
	// Logout revokes the token identified by jti until expiresAt.
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	cfg       config.AuthConfig
	pictures  string
	log       *zap.Logger
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, cfg config.Config, log *zap.Logger) AuthService {
	pictures := cfg.Storage.DefaultProfilePicture
	if pictures == "" {
		pictures = models.DefaultProfilePicture
	}
	return &authService{
		userRepo:  userRepo,
		blacklist: blacklist,
		cfg:       cfg.Auth,
		pictures:  pictures,
		log:       log.Named("auth-service"),
	}
}

// Register 处理用户注册逻辑。
func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, newValidationError("name, last name and email are required")
	}

	// 检查邮箱是否存在
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, newDuplicateError("a user with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newOperationFailed("could not check email", err)
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, newValidationError(err.Error())
		}
		return nil, newOperationFailed("could not hash password", err)
	}

	newUser := &models.User{
		Name:           strings.TrimSpace(input.Name),
		LastName:       strings.TrimSpace(input.LastName),
		Email:          email,
		PasswordHash:   hashedPassword,
		BirthDay:       input.BirthDay,
		ProfilePicture: s.pictures,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newDuplicateError("a user with this email already exists")
		}
		return nil, newOperationFailed("could not create user", err)
	}

	s.log.Info("user registered", zap.Uint("userId", newUser.ID))
	return newUser, nil
}

// Login 处理用户登录逻辑。未知邮箱与错误密码返回同一个错误。
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, newValidationError("wrong email or password")
	} else if err != nil {
		return "", nil, newOperationFailed("could not load user", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, newValidationError("wrong email or password")
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.cfg)
	if err != nil {
		return "", nil, newOperationFailed("could not issue token", fmt.Errorf("生成令牌失败: %w", err))
	}
	return token, user, nil
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return newValidationError("token has no id")
	}
	if err := s.blacklist.Add(ctx, jti, expiresAt); err != nil {
		return newOperationFailed("could not revoke token", err)
	}
	return nil
}
