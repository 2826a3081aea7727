package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/edusphere/exam-portal-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	CreatedBy *string    `json:"created_by"`
	Group     *string    `json:"group"`
	OpenAt    *time.Time `json:"open_at"` // only exams whose window contains this instant
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "start_time", "title"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type SubmissionFilters struct {
	ExamID    *uint   `json:"exam_id"`
	StudentID *string `json:"student_id"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
}

type AppealFilters struct {
	Status    *models.AppealStatus `json:"status"`
	StudentID *string              `json:"student_id"`
	ExamID    *uint                `json:"exam_id"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
}

// ===== REPOSITORY INTERFACES =====

// ExamRepository is the exam record store. The scoring core treats exams
// as immutable once started; only the authoring surface creates them.
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error)
	GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error)
	ExistsForExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (bool, error)
	List(ctx context.Context, tx *gorm.DB, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// AddManualCredit atomically increments score and manual_score_adjustment
	// by points. Commutative, so two concurrent credits both land.
	AddManualCredit(ctx context.Context, tx *gorm.DB, id uint, points int) error
}

type AppealRepository interface {
	Create(ctx context.Context, tx *gorm.DB, appeal *models.Appeal) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Appeal, error)
	List(ctx context.Context, tx *gorm.DB, filters AppealFilters) ([]*models.Appeal, int64, error)
	HasPending(ctx context.Context, tx *gorm.DB, studentID string, examID, questionID uint) (bool, error)

	// UpdateStatusIfPending performs a compare-and-set from pending to
	// status. Returns false without error when the appeal was no longer
	// pending, so callers can enforce the one-way lifecycle inside the
	// same transaction that applies the credit.
	UpdateStatusIfPending(ctx context.Context, tx *gorm.DB, id uint, status models.AppealStatus) (bool, error)
}

// StudentRepository is the external roster directory, read-only here.
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context) ([]*models.Student, error)
}
