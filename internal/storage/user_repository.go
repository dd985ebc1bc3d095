package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Exists(ctx context.Context, id uint) (bool, error)
	SearchByEmail(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error)
	ListOthers(ctx context.Context, excludeID uint) ([]models.UserDisplayInfo, error)
	GetDisplayInfoByIDs(ctx context.Context, ids []uint) ([]models.UserDisplayInfo, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

var displayColumns = []string{"id", "name", "last_name", "profile_picture"}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID. Missing users return gorm.ErrRecordNotFound.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email, case-insensitively.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user record in the database.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// Exists reports whether a user with id is stored.
func (r *gormUserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SearchByEmail matches query against email, excluding the caller.
func (r *gormUserRepository) SearchByEmail(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	users := []models.User{}
	searchTerm := "%" + strings.ToLower(query) + "%"

	q := r.db.WithContext(ctx).
		Where("LOWER(email) LIKE ? AND id <> ?", searchTerm, excludeID).
		Order("email")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&users).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return users, nil
}

// ListOthers returns display info for every user but excludeID, ordered by id.
func (r *gormUserRepository) ListOthers(ctx context.Context, excludeID uint) ([]models.UserDisplayInfo, error) {
	infos := []models.UserDisplayInfo{}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select(displayColumns).
		Where("id <> ?", excludeID).
		Order("id").
		Find(&infos).Error
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// GetDisplayInfoByIDs retrieves display info for a list of user IDs.
func (r *gormUserRepository) GetDisplayInfoByIDs(ctx context.Context, ids []uint) ([]models.UserDisplayInfo, error) {
	infos := []models.UserDisplayInfo{}
	if len(ids) == 0 {
		return infos, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select(displayColumns).
		Where("id IN ?", ids).
		Order("id").
		Find(&infos).Error
	if err != nil {
		return nil, err
	}
	return infos, nil
}
