package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"socialnet/internal/models"
)

// RelationActivityRepository stores the relation audit trail.
type RelationActivityRepository interface {
	// Record inserts activity once per EventID; a repeated event is ignored.
	Record(ctx context.Context, activity *models.RelationActivity) error
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.RelationActivity, error)
}

type gormRelationActivityRepository struct {
	db *gorm.DB
}

// NewGormRelationActivityRepository creates a new GORM-based RelationActivityRepository.
func NewGormRelationActivityRepository(db *gorm.DB) RelationActivityRepository {
	return &gormRelationActivityRepository{db: db}
}

func (r *gormRelationActivityRepository) Record(ctx context.Context, activity *models.RelationActivity) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(activity).Error
}

func (r *gormRelationActivityRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.RelationActivity, error) {
	activities := []models.RelationActivity{}
	query := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("occurred_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}
