package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/edusphere/exam-portal-service/internal/cache"
	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
)

type AppealPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAppealPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AppealRepository {
	return &AppealPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AppealPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AppealPostgreSQL) Create(ctx context.Context, tx *gorm.DB, appeal *models.Appeal) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Create(appeal).Error; err != nil {
		return fmt.Errorf("failed to create appeal: %w", err)
	}
	cache.InvalidateAppealCache(ctx, a.cacheManager, appeal.ID)
	return nil
}

func (a *AppealPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Appeal, error) {
	db := a.getDB(tx)
	var appeal models.Appeal
	if err := db.WithContext(ctx).First(&appeal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}
	return &appeal, nil
}

// List returns appeals newest-first, matching the review queue ordering.
func (a *AppealPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AppealFilters) ([]*models.Appeal, int64, error) {
	db := a.getDB(tx)
	var appeals []*models.Appeal
	var total int64

	query := db.WithContext(ctx).Model(&models.Appeal{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count appeals: %w", err)
	}

	query = query.Order("submitted_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit).Offset(filters.Offset)
	}

	if err := query.Find(&appeals).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list appeals: %w", err)
	}

	return appeals, total, nil
}

func (a *AppealPostgreSQL) HasPending(ctx context.Context, tx *gorm.DB, studentID string, examID, questionID uint) (bool, error) {
	db := a.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Appeal{}).
		Where("student_id = ? AND exam_id = ? AND question_id = ? AND status = ?",
			studentID, examID, questionID, models.AppealPending).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check pending appeal: %w", err)
	}
	return count > 0, nil
}

// UpdateStatusIfPending is the compare-and-set half of the resolver
// transaction: the row moves out of pending exactly once, in the same
// transaction that credits the submission.
func (a *AppealPostgreSQL) UpdateStatusIfPending(ctx context.Context, tx *gorm.DB, id uint, status models.AppealStatus) (bool, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Model(&models.Appeal{}).
		Where("id = ? AND status = ?", id, models.AppealPending).
		Update("status", status)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update appeal status: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		cache.InvalidateAppealCache(ctx, a.cacheManager, id)
	}
	return result.RowsAffected > 0, nil
}
