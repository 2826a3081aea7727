package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/edusphere/exam-portal-service/internal/events"
	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

type appealService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewAppealService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) AppealService {
	return &appealService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// Create files an appeal against one question of the student's own
// submission. The queue row carries display snapshots taken now, so
// reviewers never need a join against the roster or the exam.
func (s *appealService) Create(ctx context.Context, req *CreateAppealRequest, studentID string) (*AppealResponse, error) {
	s.logger.Info("Creating appeal",
		"exam_id", req.ExamID,
		"question_id", req.QuestionID,
		"student_id", studentID)

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

	var question *models.Question
	for i := range exam.Questions {
		if exam.Questions[i].ID == req.QuestionID {
			question = &exam.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, NewValidationError("question_id", "question does not belong to this exam", req.QuestionID)
	}

	// Appeals only make sense against a graded answer sheet.
	if _, err := s.repo.Submission().GetByExamAndStudent(ctx, nil, req.ExamID, studentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	pending, err := s.repo.Appeal().HasPending(ctx, nil, studentID, req.ExamID, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending appeals: %w", err)
	}
	if pending {
		return nil, NewBusinessRuleError("appeal_already_pending", "an appeal for this question is already awaiting review", map[string]interface{}{
			"exam_id":     req.ExamID,
			"question_id": req.QuestionID,
		})
	}

	student, err := s.repo.Student().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, NewBusinessRuleError("student_unknown", "student not found in directory", map[string]interface{}{
				"student_id": studentID,
			})
		}
		return nil, fmt.Errorf("failed to look up student: %w", err)
	}

	appeal := &models.Appeal{
		StudentID:    studentID,
		ExamID:       req.ExamID,
		QuestionID:   req.QuestionID,
		StudentName:  student.Name,
		ExamTitle:    exam.Title,
		QuestionText: question.Text,
		Reason:       strings.TrimSpace(req.Reason),
		SubmittedAt:  time.Now(),
		Status:       models.AppealPending,
	}

	if err := s.repo.Appeal().Create(ctx, nil, appeal); err != nil {
		return nil, fmt.Errorf("failed to create appeal: %w", err)
	}

	s.logger.Info("Appeal created", "appeal_id", appeal.ID)

	s.publish(ctx, events.TopicAppealSubmitted, events.AppealSubmittedEvent{
		AppealID:   appeal.ID,
		ExamID:     appeal.ExamID,
		QuestionID: appeal.QuestionID,
		StudentID:  appeal.StudentID,
	})

	return &AppealResponse{Appeal: appeal, PointsPerQuestion: exam.PointsPerQuestion}, nil
}

func (s *appealService) GetByID(ctx context.Context, id uint) (*AppealResponse, error) {
	appeal, err := s.repo.Appeal().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAppealNotFound
		}
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, appeal.ExamID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	resp := &AppealResponse{Appeal: appeal}
	if exam != nil {
		resp.PointsPerQuestion = exam.PointsPerQuestion
	}
	return resp, nil
}

func (s *appealService) List(ctx context.Context, filters repositories.AppealFilters) (*AppealListResponse, error) {
	appeals, total, err := s.repo.Appeal().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}

	resp := &AppealListResponse{
		Appeals: make([]*AppealResponse, 0, len(appeals)),
		Total:   total,
		Size:    filters.Limit,
	}
	if filters.Limit > 0 {
		resp.Page = filters.Offset/filters.Limit + 1
	}
	for _, appeal := range appeals {
		resp.Appeals = append(resp.Appeals, &AppealResponse{Appeal: appeal})
	}
	return resp, nil
}

// PendingQueue is the reviewer's worklist: open appeals only, newest first.
func (s *appealService) PendingQueue(ctx context.Context) (*AppealListResponse, error) {
	status := models.AppealPending
	return s.List(ctx, repositories.AppealFilters{Status: &status})
}

// Accept grants the appeal. The status flip and the score credit commit
// in one transaction: either the appeal becomes resolved AND the
// submission gains exactly points-per-question, or nothing changes. The
// compare-and-set on status makes a double accept (or accept racing
// reject) a no-op for the loser.
func (s *appealService) Accept(ctx context.Context, appealID uint, reviewerID string) (*ResolveAppealResult, error) {
	s.logger.Info("Accepting appeal", "appeal_id", appealID, "reviewer_id", reviewerID)

	appeal, err := s.repo.Appeal().GetByID(ctx, nil, appealID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAppealNotFound
		}
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}
	if !appeal.IsPending() {
		return nil, ErrAppealNotPending
	}

	var (
		submission *models.Submission
		points     int
	)

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		// Re-checked inside the transaction: the read above is only a
		// fast path and may be stale by now.
		flipped, err := txRepo.Appeal().UpdateStatusIfPending(ctx, nil, appealID, models.AppealResolved)
		if err != nil {
			return fmt.Errorf("failed to update appeal status: %w", err)
		}
		if !flipped {
			return ErrAppealNotPending
		}

		exam, err := txRepo.Exam().GetByID(ctx, nil, appeal.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		points = exam.PointsPerQuestion

		submission, err = txRepo.Submission().GetByExamAndStudent(ctx, nil, appeal.ExamID, appeal.StudentID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrSubmissionNotFound
			}
			return fmt.Errorf("failed to get submission: %w", err)
		}

		if err := txRepo.Submission().AddManualCredit(ctx, nil, submission.ID, points); err != nil {
			return fmt.Errorf("failed to credit submission: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAppealNotPending) || errors.Is(err, ErrExamNotFound) || errors.Is(err, ErrSubmissionNotFound) {
			return nil, err
		}
		if isSerializationFailure(err) {
			return nil, ErrAppealConflict
		}
		return nil, fmt.Errorf("failed to resolve appeal: %w", err)
	}

	appeal.Status = models.AppealResolved
	submission.Score += points
	submission.ManualScoreAdjustment += points

	s.logger.Info("Appeal accepted",
		"appeal_id", appealID,
		"submission_id", submission.ID,
		"points_credit", points,
		"new_score", submission.Score)

	s.publish(ctx, events.TopicAppealResolved, events.AppealResolvedEvent{
		AppealID:     appeal.ID,
		ExamID:       appeal.ExamID,
		QuestionID:   appeal.QuestionID,
		StudentID:    appeal.StudentID,
		ReviewerID:   reviewerID,
		PointsCredit: points,
		UpdatedScore: submission.Score,
		SubmissionID: submission.ID,
	})

	return &ResolveAppealResult{
		Appeal:     appeal,
		Submission: submission,
		ResolvedAt: time.Now(),
	}, nil
}

// Reject closes the appeal without touching any score. A single
// compare-and-set suffices since only the status row changes.
func (s *appealService) Reject(ctx context.Context, appealID uint, reviewerID string) (*ResolveAppealResult, error) {
	s.logger.Info("Rejecting appeal", "appeal_id", appealID, "reviewer_id", reviewerID)

	appeal, err := s.repo.Appeal().GetByID(ctx, nil, appealID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAppealNotFound
		}
		return nil, fmt.Errorf("failed to get appeal: %w", err)
	}

	flipped, err := s.repo.Appeal().UpdateStatusIfPending(ctx, nil, appealID, models.AppealRejected)
	if err != nil {
		return nil, fmt.Errorf("failed to update appeal status: %w", err)
	}
	if !flipped {
		return nil, ErrAppealNotPending
	}

	appeal.Status = models.AppealRejected

	s.logger.Info("Appeal rejected", "appeal_id", appealID)

	s.publish(ctx, events.TopicAppealRejected, events.AppealRejectedEvent{
		AppealID:   appeal.ID,
		ExamID:     appeal.ExamID,
		QuestionID: appeal.QuestionID,
		StudentID:  appeal.StudentID,
		ReviewerID: reviewerID,
	})

	return &ResolveAppealResult{
		Appeal:     appeal,
		ResolvedAt: time.Now(),
	}, nil
}

func (s *appealService) publish(ctx context.Context, topic string, data interface{}) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, &events.Event{Type: topic, Data: data}); err != nil {
		s.logger.Error("Failed to publish event", "topic", topic, "error", err)
	}
}

// isSerializationFailure recognizes Postgres retryable commit failures
// (serialization_failure, deadlock_detected).
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") || strings.Contains(msg, "SQLSTATE 40P01")
}
