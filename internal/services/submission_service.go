package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/edusphere/exam-portal-service/internal/events"
	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

type submissionService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	scoring        ScoringService
	eventPublisher events.EventPublisher
}

func NewSubmissionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) SubmissionService {
	return &submissionService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		scoring:        NewScoringService(),
		eventPublisher: eventPublisher,
	}
}

// Submit hands in a student's answer sheet. The score is computed and
// stored here, once; later reads only re-derive display details from the
// same answers. A student gets exactly one submission per exam.
func (s *submissionService) Submit(ctx context.Context, req *CreateSubmissionRequest, studentID string) (*SubmissionResponse, error) {
	s.logger.Info("Processing submission", "exam_id", req.ExamID, "student_id", studentID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	now := time.Now()
	if now.Before(exam.StartTime) {
		return nil, NewBusinessRuleError("exam_not_started", "exam has not opened yet", map[string]interface{}{
			"exam_id":    exam.ID,
			"start_time": exam.StartTime,
		})
	}

	exists, err := s.repo.Submission().ExistsForExamAndStudent(ctx, nil, req.ExamID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing submission: %w", err)
	}
	if exists {
		return nil, ErrSubmissionExists
	}

	breakdown := s.scoring.AutoScore(exam, req.Answers)

	answers, err := EncodeAnswers(req.Answers)
	if err != nil {
		return nil, err
	}

	submission := &models.Submission{
		ExamID:           req.ExamID,
		StudentID:        studentID,
		Answers:          answers,
		SubmittedAt:      now,
		CheatingDetected: req.CheatingDetected,
		Score:            breakdown.AutoScore,
	}

	if err := s.repo.Submission().Create(ctx, nil, submission); err != nil {
		// The unique index is the authoritative guard; the Exists check
		// above only gives a friendlier fast path.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSubmissionExists
		}
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info("Submission scored",
		"submission_id", submission.ID,
		"exam_id", exam.ID,
		"student_id", studentID,
		"score", submission.Score,
		"correct", breakdown.CorrectCount,
		"questions", breakdown.QuestionCount)

	s.publishScored(ctx, exam, submission, breakdown)

	return s.toResponse(exam, submission), nil
}

func (s *submissionService) GetByID(ctx context.Context, id uint) (*SubmissionResponse, error) {
	submission, err := s.repo.Submission().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, submission.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.toResponse(exam, submission), nil
}

// GetResults builds the detailed per-question view a student sees after
// the exam: summary totals, each question's outcome, and which questions
// already carry an appeal in any state.
func (s *submissionService) GetResults(ctx context.Context, examID uint, studentID string) (*SubmissionResultsResponse, error) {
	submission, err := s.repo.Submission().GetByExamAndStudent(ctx, nil, examID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	answers, err := DecodeAnswers(submission.Answers)
	if err != nil {
		return nil, err
	}
	breakdown := s.scoring.AutoScore(exam, answers)

	summary, err := s.scoring.Totals(exam, submission)
	if err != nil {
		return nil, err
	}

	appeals, _, err := s.repo.Appeal().List(ctx, nil, repositories.AppealFilters{
		StudentID: &studentID,
		ExamID:    &examID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}

	appealed := make([]uint, 0, len(appeals))
	for _, appeal := range appeals {
		appealed = append(appealed, appeal.QuestionID)
	}

	return &SubmissionResultsResponse{
		Submission:          submission,
		ExamTitle:           exam.Title,
		Summary:             summary,
		Questions:           breakdown.Questions,
		AppealedQuestionIDs: appealed,
	}, nil
}

func (s *submissionService) ListByExam(ctx context.Context, examID uint, filters repositories.SubmissionFilters) ([]*SubmissionResponse, int64, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, 0, ErrExamNotFound
		}
		return nil, 0, fmt.Errorf("failed to get exam: %w", err)
	}

	filters.ExamID = &examID
	submissions, total, err := s.repo.Submission().List(ctx, nil, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	responses := make([]*SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, s.toResponse(exam, submission))
	}
	return responses, total, nil
}

func (s *submissionService) toResponse(exam *models.Exam, submission *models.Submission) *SubmissionResponse {
	resp := &SubmissionResponse{
		Submission: submission,
		MaxScore:   len(exam.Questions) * exam.PointsPerQuestion,
	}
	if resp.MaxScore > 0 {
		resp.Percentage = float64(submission.Score) / float64(resp.MaxScore) * 100
	}
	return resp
}

func (s *submissionService) publishScored(ctx context.Context, exam *models.Exam, submission *models.Submission, breakdown *ScoreBreakdown) {
	if s.eventPublisher == nil {
		return
	}

	event := &events.Event{
		Type: events.TopicSubmissionScored,
		Data: events.SubmissionScoredEvent{
			SubmissionID: submission.ID,
			ExamID:       exam.ID,
			StudentID:    submission.StudentID,
			Score:        submission.Score,
			MaxScore:     breakdown.QuestionCount * exam.PointsPerQuestion,
			CorrectCount: breakdown.CorrectCount,
		},
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish submission scored event",
			"submission_id", submission.ID, "error", err)
	}
}
