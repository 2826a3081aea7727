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

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (s *SubmissionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SubmissionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	db := s.getDB(tx)
	if err := db.WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.ID, submission.ExamID, submission.StudentID)
	return nil
}

func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error) {
	db := s.getDB(tx)
	var submission models.Submission
	if err := db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission by exam and student: %w", err)
	}
	return &submission, nil
}

func (s *SubmissionPostgreSQL) ExistsForExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (bool, error) {
	db := s.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check submission existence: %w", err)
	}
	return count > 0, nil
}

func (s *SubmissionPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	db := s.getDB(tx)
	var submissions []*models.Submission
	var total int64

	query := db.WithContext(ctx).Model(&models.Submission{})
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = query.Order("submitted_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit).Offset(filters.Offset)
	}

	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return submissions, total, nil
}

// AddManualCredit applies an appeal credit as in-database increments so
// that concurrent credits against the same submission compose instead of
// overwriting each other.
func (s *SubmissionPostgreSQL) AddManualCredit(ctx context.Context, tx *gorm.DB, id uint, points int) error {
	db := s.getDB(tx)

	var submission models.Submission
	if err := db.WithContext(ctx).
		Select("id", "exam_id", "student_id").
		First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to load submission for credit: %w", err)
	}

	result := db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"score":                   gorm.Expr("score + ?", points),
			"manual_score_adjustment": gorm.Expr("manual_score_adjustment + ?", points),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to apply manual credit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}

	cache.InvalidateSubmissionCache(ctx, s.cacheManager, submission.ID, submission.ExamID, submission.StudentID)
	return nil
}
