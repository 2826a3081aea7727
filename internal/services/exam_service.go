package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// Create persists a new exam with its full question set in one transaction.
func (s *examService) Create(ctx context.Context, req *CreateExamRequest, creatorID string) (*ExamResponse, error) {
	s.logger.Info("Creating exam", "title", req.Title, "creator_id", creatorID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.validateQuestionSet(req.Questions); err != nil {
		return nil, err
	}

	groups, err := encodeStringList(req.AssignedGroups)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assigned groups: %w", err)
	}

	exam := &models.Exam{
		Title:             req.Title,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		PointsPerQuestion: req.PointsPerQuestion,
		AssignedGroups:    groups,
		Announcement:      req.Announcement,
		CreatedBy:         creatorID,
	}

	for i, q := range req.Questions {
		options, err := encodeStringList(q.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options for question %d: %w", i+1, err)
		}

		exam.Questions = append(exam.Questions, models.Question{
			Position:      i + 1,
			Text:          q.Text,
			Kind:          q.Kind,
			Options:       options,
			CorrectAnswer: q.CorrectAnswer,
			FileURL:       q.FileURL,
			FileType:      q.FileType,
			FileName:      q.FileName,
		})
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Exam().Create(ctx, nil, exam)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "questions", len(exam.Questions))

	return s.toResponse(exam), nil
}

func (s *examService) GetByID(ctx context.Context, id uint) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.toResponse(exam), nil
}

func (s *examService) GetByIDWithQuestions(ctx context.Context, id uint) (*ExamResponse, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}

	return s.toResponse(exam), nil
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters) (*ExamListResponse, error) {
	exams, total, err := s.repo.Exam().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	return s.toListResponse(exams, total, filters.Limit, filters.Offset), nil
}

// ListForStudent returns the exams assigned to the student's group, each
// flagged with whether this student already handed in a submission.
func (s *examService) ListForStudent(ctx context.Context, studentID string, filters repositories.ExamFilters) (*ExamListResponse, error) {
	student, err := s.repo.Student().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewBusinessRuleError("student_unknown", "student not found in directory", map[string]interface{}{
				"student_id": studentID,
			})
		}
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}

	if student.Group != "" {
		filters.Group = &student.Group
	}

	exams, total, err := s.repo.Exam().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams for student: %w", err)
	}

	resp := s.toListResponse(exams, total, filters.Limit, filters.Offset)
	for _, er := range resp.Exams {
		submitted, err := s.repo.Submission().ExistsForExamAndStudent(ctx, nil, er.Exam.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check submission for exam %d: %w", er.Exam.ID, err)
		}
		er.Submitted = submitted
	}

	return resp, nil
}

// validateQuestionSet enforces the authoring rules that struct tags cannot
// express: multiple choice needs at least two options.
func (s *examService) validateQuestionSet(questions []ExamQuestionRequest) error {
	for i, q := range questions {
		if q.Kind == models.QuestionMultipleChoice && len(q.Options) < 2 {
			return NewValidationError(
				fmt.Sprintf("questions[%d].options", i),
				"multiple choice questions need at least 2 options",
				len(q.Options),
			)
		}
	}
	return nil
}

func (s *examService) toResponse(exam *models.Exam) *ExamResponse {
	exam.QuestionsCount = len(exam.Questions)
	exam.TotalPoints = exam.QuestionsCount * exam.PointsPerQuestion
	return &ExamResponse{Exam: exam}
}

func (s *examService) toListResponse(exams []*models.Exam, total int64, limit, offset int) *ExamListResponse {
	resp := &ExamListResponse{
		Exams: make([]*ExamResponse, 0, len(exams)),
		Total: total,
		Size:  limit,
	}
	if limit > 0 {
		resp.Page = offset/limit + 1
	}
	for _, exam := range exams {
		resp.Exams = append(resp.Exams, s.toResponse(exam))
	}
	return resp
}

func encodeStringList(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return data, nil
}
