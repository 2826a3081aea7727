package services

import (
	"context"
	"time"

	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateExamRequest = validator.ExamCreateRequest
type ExamQuestionRequest = validator.QuestionRequest
type CreateSubmissionRequest = validator.SubmissionCreateRequest
type CreateAppealRequest = validator.AppealCreateRequest

type ExamResponse struct {
	*models.Exam
	Submitted bool `json:"submitted"`
}

type ExamListResponse struct {
	Exams []*ExamResponse `json:"exams"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

type SubmissionResponse struct {
	*models.Submission
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

// ===== SCORING DTOs =====

type QuestionResult struct {
	QuestionID    uint   `json:"question_id"`
	Position      int    `json:"position"`
	Answered      bool   `json:"answered"`
	StudentAnswer string `json:"student_answer,omitempty"`
	IsCorrect     bool   `json:"is_correct"`
	PointsAwarded int    `json:"points_awarded"`
}

type ScoreBreakdown struct {
	AutoScore         int              `json:"auto_score"`
	CorrectCount      int              `json:"correct_count"`
	QuestionCount     int              `json:"question_count"`
	PointsPerQuestion int              `json:"points_per_question"`
	Questions         []QuestionResult `json:"questions"`
}

type ScoreSummary struct {
	Score         int     `json:"score"`
	MaxScore      int     `json:"max_score"`
	Percentage    float64 `json:"percentage"`
	CorrectCount  int     `json:"correct_count"`
	QuestionCount int     `json:"question_count"`
}

// SubmissionResultsResponse is the detailed per-question view a student
// sees after an exam closes, including which questions already have an
// appeal on file so the UI can disable re-appealing them.
type SubmissionResultsResponse struct {
	Submission          *models.Submission `json:"submission"`
	ExamTitle           string             `json:"exam_title"`
	Summary             *ScoreSummary      `json:"summary"`
	Questions           []QuestionResult   `json:"questions"`
	AppealedQuestionIDs []uint             `json:"appealed_question_ids"`
}

// ===== APPEAL DTOs =====

type AppealResponse struct {
	*models.Appeal
	PointsPerQuestion int `json:"points_per_question"`
}

type AppealListResponse struct {
	Appeals []*AppealResponse `json:"appeals"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Size    int               `json:"size"`
}

type ResolveAppealResult struct {
	Appeal     *models.Appeal     `json:"appeal"`
	Submission *models.Submission `json:"submission,omitempty"`
	ResolvedAt time.Time          `json:"resolved_at"`
}

// ===== EXPORT DTOs =====

type ExamResultsExport struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// ===== SERVICE INTERFACES =====

// ScoringService is the single source of truth for answer matching and
// score derivation. It is stateless and safe for concurrent use.
type ScoringService interface {
	Matches(answer, correctAnswer string) bool
	AutoScore(exam *models.Exam, answers map[string]string) *ScoreBreakdown
	Totals(exam *models.Exam, submission *models.Submission) (*ScoreSummary, error)
}

type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint) (*ExamResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*ExamResponse, error)
	List(ctx context.Context, filters repositories.ExamFilters) (*ExamListResponse, error)
	ListForStudent(ctx context.Context, studentID string, filters repositories.ExamFilters) (*ExamListResponse, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, req *CreateSubmissionRequest, studentID string) (*SubmissionResponse, error)
	GetByID(ctx context.Context, id uint) (*SubmissionResponse, error)
	GetResults(ctx context.Context, examID uint, studentID string) (*SubmissionResultsResponse, error)
	ListByExam(ctx context.Context, examID uint, filters repositories.SubmissionFilters) ([]*SubmissionResponse, int64, error)
}

type AppealService interface {
	Create(ctx context.Context, req *CreateAppealRequest, studentID string) (*AppealResponse, error)
	GetByID(ctx context.Context, id uint) (*AppealResponse, error)
	List(ctx context.Context, filters repositories.AppealFilters) (*AppealListResponse, error)
	PendingQueue(ctx context.Context) (*AppealListResponse, error)
	Accept(ctx context.Context, appealID uint, reviewerID string) (*ResolveAppealResult, error)
	Reject(ctx context.Context, appealID uint, reviewerID string) (*ResolveAppealResult, error)
}

type ExportService interface {
	ExportExamResults(ctx context.Context, examID uint) (*ExamResultsExport, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Exam() ExamService
	Submission() SubmissionService
	Appeal() AppealService
	Scoring() ScoringService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
