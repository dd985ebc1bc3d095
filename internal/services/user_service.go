package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"socialnet/internal/auth"
	"socialnet/internal/imtypes"
	"socialnet/internal/models"
	"socialnet/internal/storage"
)

// SearchResultLimit caps SearchByEmail.
const SearchResultLimit = 10

// UserProfile 是返回给客户端的用户资料。
type UserProfile struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	BirthDay       *time.Time `json:"birthDay,omitempty"`
	AboutMe        string     `json:"aboutMe"`
	ProfilePicture string     `json:"profilePicture"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name     string
	LastName string
	AboutMe  string
	BirthDay *time.Time
}

// UploadedFile is a picture received from the client.
type UploadedFile struct {
	Reader   io.Reader
	Size     int64
	FileName string
	MimeType string
}

// UserService 定义了用户相关服务的接口。它同时满足 UserDirectory。
type UserService interface {
	UserDirectory
	GetProfile(ctx context.Context, userID uint) (*UserProfile, error)
	SearchByEmail(ctx context.Context, query string, currentUserID uint) ([]models.UserDisplayInfo, error)
	UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*UserProfile, error)
	ChangePassword(ctx context.Context, userID uint, current, newPassword, confirm string) error
	ChangeProfilePicture(ctx context.Context, userID uint, file UploadedFile) (*UserProfile, error)
}

// userService 是 UserService 的实现。
type userService struct {
	userRepo storage.UserRepository
	storage  imtypes.StorageService
	log      *zap.Logger
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo storage.UserRepository, storageService imtypes.StorageService, log *zap.Logger) UserService {
	return &userService{userRepo: userRepo, storage: storageService, log: log.Named("user-service")}
}

func (s *userService) GetProfile(ctx context.Context, userID uint) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "user not found", "could not load user")
	}
	return toProfile(user), nil
}

func (s *userService) SearchByEmail(ctx context.Context, query string, currentUserID uint) ([]models.UserDisplayInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.UserDisplayInfo{}, nil
	}
	users, err := s.userRepo.SearchByEmail(ctx, query, currentUserID, SearchResultLimit)
	if err != nil {
		return nil, mapStoreError(err, "user not found", "could not search users")
	}
	infos := make([]models.UserDisplayInfo, 0, len(users))
	for i := range users {
		infos = append(infos, users[i].DisplayInfo())
	}
	return infos, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uint, update ProfileUpdate) (*UserProfile, error) {
	name := strings.TrimSpace(update.Name)
	lastName := strings.TrimSpace(update.LastName)
	if name == "" || lastName == "" {
		return nil, newValidationError("name and last name are required")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "user not found", "could not load user")
	}
	user.Name = name
	user.LastName = lastName
	user.AboutMe = update.AboutMe
	user.BirthDay = update.BirthDay

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapStoreError(err, "user not found", "could not update profile")
	}
	return toProfile(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, userID uint, current, newPassword, confirm string) error {
	if newPassword != confirm {
		return newValidationError("passwords do not match")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return mapStoreError(err, "user not found", "could not load user")
	}
	if !auth.CheckPasswordHash(current, user.PasswordHash) {
		return newValidationError("current password is wrong")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return newValidationError(err.Error())
		}
		return newOperationFailed("could not hash password", err)
	}
	user.PasswordHash = hash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return mapStoreError(err, "user not found", "could not change password")
	}
	s.log.Info("password changed", zap.Uint("userId", userID))
	return nil
}

// ChangeProfilePicture stores the new picture first, then removes the old one
// unless it is the default picture.
func (s *userService) ChangeProfilePicture(ctx context.Context, userID uint, file UploadedFile) (*UserProfile, error) {
	if !strings.HasPrefix(file.MimeType, "image/") {
		return nil, newValidationError("profile picture must be an image")
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, "user not found", "could not load user")
	}

	info, err := s.storage.UploadFile(ctx, file.Reader, file.Size, file.FileName, file.MimeType)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) {
			return nil, newValidationError(err.Error())
		}
		return nil, newOperationFailed("could not store picture", err)
	}

	previous := ""
	if user.HasCustomPicture() {
		previous = user.ProfilePicture
	}
	user.ProfilePicture = info.URL
	if err := s.userRepo.Update(ctx, user); err != nil {
		_ = s.storage.DeleteFile(ctx, info.URL)
		return nil, mapStoreError(err, "user not found", "could not update profile picture")
	}

	if previous != "" {
		if err := s.storage.DeleteFile(ctx, previous); err != nil {
			s.log.Warn("delete previous profile picture failed", zap.String("url", previous), zap.Error(err))
		}
	}
	return toProfile(user), nil
}

func (s *userService) UserExists(ctx context.Context, id uint) (bool, error) {
	return s.userRepo.Exists(ctx, id)
}

func (s *userService) GetDisplayInfo(ctx context.Context, ids []uint) (map[uint]models.UserDisplayInfo, error) {
	infos, err := s.userRepo.GetDisplayInfoByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]models.UserDisplayInfo, len(infos))
	for _, info := range infos {
		out[info.ID] = info
	}
	return out, nil
}

func (s *userService) ListOtherUsers(ctx context.Context, excludeID uint) ([]models.UserDisplayInfo, error) {
	return s.userRepo.ListOthers(ctx, excludeID)
}

func toProfile(u *models.User) *UserProfile {
	return &UserProfile{
		ID:             u.ID,
		Name:           u.Name,
		LastName:       u.LastName,
		Email:          u.Email,
		BirthDay:       u.BirthDay,
		AboutMe:        u.AboutMe,
		ProfilePicture: u.ProfilePicture,
	}
}
