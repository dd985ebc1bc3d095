package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"socialnet/internal/models"
)

// PairCount is an unordered pair with the number of rows stored for it.
type PairCount struct {
	UserLow  uint  `json:"userLow"`
	UserHigh uint  `json:"userHigh"`
	Rows     int64 `gorm:"column:row_count" json:"rows"`
}

// UserRelationRepository is the narrow store behind the relation service.
// Lookups of a single row return gorm.ErrRecordNotFound when nothing matches.
type UserRelationRepository interface {
	Create(ctx context.Context, rel *models.UserRelation) error
	GetByID(ctx context.Context, id uint) (*models.UserRelation, error)
	// FindDirected matches only userA -> userB.
	FindDirected(ctx context.Context, userAID, userBID uint) (*models.UserRelation, error)
	// FindPair returns every row joining x and y in either order.
	FindPair(ctx context.Context, x, y uint) ([]models.UserRelation, error)
	ListTouching(ctx context.Context, userID uint) ([]models.UserRelation, error)
	ListApprovedTouching(ctx context.Context, userIDs []uint) ([]models.UserRelation, error)
	SetApproved(ctx context.Context, id uint, approved bool) error
	// LockPair serializes writers on the unordered pair until the surrounding
	// transaction ends.
	LockPair(ctx context.Context, x, y uint) error
	FindDuplicatePairs(ctx context.Context) ([]PairCount, error)
	Transaction(ctx context.Context, fn func(repo UserRelationRepository) error) error
}

type gormUserRelationRepository struct {
	db *gorm.DB
}

// NewGormUserRelationRepository creates a new GORM-based UserRelationRepository.
func NewGormUserRelationRepository(db *gorm.DB) UserRelationRepository {
	return &gormUserRelationRepository{db: db}
}

func (r *gormUserRelationRepository) Create(ctx context.Context, rel *models.UserRelation) error {
	return r.db.WithContext(ctx).Create(rel).Error
}

func (r *gormUserRelationRepository) GetByID(ctx context.Context, id uint) (*models.UserRelation, error) {
	var rel models.UserRelation
	if err := r.db.WithContext(ctx).First(&rel, id).Error; err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *gormUserRelationRepository) FindDirected(ctx context.Context, userAID, userBID uint) (*models.UserRelation, error) {
	var rel models.UserRelation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", userAID, userBID).
		First(&rel).Error
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *gormUserRelationRepository) FindPair(ctx context.Context, x, y uint) ([]models.UserRelation, error) {
	rows := []models.UserRelation{}
	err := r.db.WithContext(ctx).
		Where("(user_a_id = ? AND user_b_id = ?) OR (user_a_id = ? AND user_b_id = ?)", x, y, y, x).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormUserRelationRepository) ListTouching(ctx context.Context, userID uint) ([]models.UserRelation, error) {
	rows := []models.UserRelation{}
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormUserRelationRepository) ListApprovedTouching(ctx context.Context, userIDs []uint) ([]models.UserRelation, error) {
	rows := []models.UserRelation{}
	if len(userIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Where("approved = ? AND (user_a_id IN ? OR user_b_id IN ?)", true, userIDs, userIDs).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *gormUserRelationRepository) SetApproved(ctx context.Context, id uint, approved bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.UserRelation{}).
		Where("id = ?", id).
		Update("approved", approved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormUserRelationRepository) LockPair(ctx context.Context, x, y uint) error {
	if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", pairLockKey(x, y)).Error; err != nil {
		return fmt.Errorf("lock relation pair {%d, %d}: %w", x, y, err)
	}
	return nil
}

func (r *gormUserRelationRepository) FindDuplicatePairs(ctx context.Context) ([]PairCount, error) {
	pairs := []PairCount{}
	err := r.db.WithContext(ctx).
		Model(&models.UserRelation{}).
		Select("LEAST(user_a_id, user_b_id) AS user_low, GREATEST(user_a_id, user_b_id) AS user_high, COUNT(*) AS row_count").
		Group("LEAST(user_a_id, user_b_id), GREATEST(user_a_id, user_b_id)").
		Having("COUNT(*) > 1").
		Order("user_low, user_high").
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func (r *gormUserRelationRepository) Transaction(ctx context.Context, fn func(repo UserRelationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormUserRelationRepository(tx))
	})
}

// pairLockKey packs the unordered pair into one advisory lock key.
func pairLockKey(x, y uint) int64 {
	low, high := models.CanonicalPair(x, y)
	return int64(uint64(low)<<32 | uint64(high)&0xffffffff)
}
