package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/edusphere/exam-portal-service/internal/events"
	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

func newSubmissionFixture(t *testing.T) (*mockRepository, *events.MockEventPublisher, SubmissionService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(logger)
	service := NewSubmissionService(repo, nil, logger, validator.New(), publisher)
	return repo, publisher, service
}

func TestSubmissionService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("scores at hand-in and stores the result", func(t *testing.T) {
		repo, publisher, service := newSubmissionFixture(t)
		exam := fixtureExam(repo, 5, "Paris", "42", "Blue")

		req := &CreateSubmissionRequest{
			ExamID: exam.ID,
			Answers: map[string]string{
				models.AnswerKey(exam.Questions[0].ID): "  paris ",
				models.AnswerKey(exam.Questions[1].ID): "41",
			},
		}

		resp, err := service.Submit(ctx, req, "student-1")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}

		if resp.Submission.Score != 5 {
			t.Errorf("Score = %d, want 5", resp.Submission.Score)
		}
		if resp.MaxScore != 15 {
			t.Errorf("MaxScore = %d, want 15", resp.MaxScore)
		}
		if resp.Submission.ManualScoreAdjustment != 0 {
			t.Errorf("ManualScoreAdjustment = %d, want 0", resp.Submission.ManualScoreAdjustment)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TopicSubmissionScored {
			t.Errorf("expected one %s event, got %+v", events.TopicSubmissionScored, published)
		}
	})

	t.Run("second submission for the same exam is refused", func(t *testing.T) {
		repo, _, service := newSubmissionFixture(t)
		exam := fixtureExam(repo, 5, "Paris")

		req := &CreateSubmissionRequest{ExamID: exam.ID, Answers: map[string]string{}}

		if _, err := service.Submit(ctx, req, "student-1"); err != nil {
			t.Fatalf("first Submit failed: %v", err)
		}

		_, err := service.Submit(ctx, req, "student-1")
		if !errors.Is(err, ErrSubmissionExists) {
			t.Errorf("expected ErrSubmissionExists, got %v", err)
		}
	})

	t.Run("another student may still submit", func(t *testing.T) {
		repo, _, service := newSubmissionFixture(t)
		exam := fixtureExam(repo, 5, "Paris")

		req := &CreateSubmissionRequest{ExamID: exam.ID, Answers: map[string]string{}}

		if _, err := service.Submit(ctx, req, "student-1"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := service.Submit(ctx, req, "student-2"); err != nil {
			t.Fatalf("Submit for second student failed: %v", err)
		}
	})

	t.Run("unknown exam", func(t *testing.T) {
		_, _, service := newSubmissionFixture(t)

		req := &CreateSubmissionRequest{ExamID: 999, Answers: map[string]string{}}
		_, err := service.Submit(ctx, req, "student-1")
		if !errors.Is(err, ErrExamNotFound) {
			t.Errorf("expected ErrExamNotFound, got %v", err)
		}
	})

	t.Run("exam not open yet", func(t *testing.T) {
		repo, _, service := newSubmissionFixture(t)
		exam := repo.addExam(&models.Exam{
			Title:             "Future Exam",
			StartTime:         time.Now().Add(time.Hour),
			EndTime:           time.Now().Add(2 * time.Hour),
			PointsPerQuestion: 5,
			Questions:         []models.Question{{Position: 1, CorrectAnswer: "x"}},
		})

		req := &CreateSubmissionRequest{ExamID: exam.ID, Answers: map[string]string{}}
		_, err := service.Submit(ctx, req, "student-1")

		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) || ruleErr.Rule != "exam_not_started" {
			t.Errorf("expected exam_not_started rule error, got %v", err)
		}
	})

	t.Run("cheating flag is stored but does not change the score", func(t *testing.T) {
		repo, _, service := newSubmissionFixture(t)
		exam := fixtureExam(repo, 5, "Paris")

		req := &CreateSubmissionRequest{
			ExamID:           exam.ID,
			Answers:          map[string]string{models.AnswerKey(exam.Questions[0].ID): "Paris"},
			CheatingDetected: true,
		}

		resp, err := service.Submit(ctx, req, "student-1")
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if !resp.Submission.CheatingDetected {
			t.Error("CheatingDetected should be stored")
		}
		if resp.Submission.Score != 5 {
			t.Errorf("Score = %d, want 5", resp.Submission.Score)
		}
	})
}

func TestSubmissionService_GetResults(t *testing.T) {
	ctx := context.Background()
	repo, _, service := newSubmissionFixture(t)
	exam := fixtureExam(repo, 5, "Paris", "42")

	answers, err := EncodeAnswers(map[string]string{
		models.AnswerKey(exam.Questions[0].ID): "Paris",
	})
	if err != nil {
		t.Fatalf("EncodeAnswers failed: %v", err)
	}
	repo.addSubmission(&models.Submission{
		ExamID:      exam.ID,
		StudentID:   "student-1",
		Answers:     answers,
		SubmittedAt: time.Now(),
		Score:       5,
	})
	repo.addAppeal(&models.Appeal{
		StudentID:   "student-1",
		ExamID:      exam.ID,
		QuestionID:  exam.Questions[1].ID,
		Reason:      "please check",
		SubmittedAt: time.Now(),
		Status:      models.AppealPending,
	})

	t.Run("per-question results and appealed questions", func(t *testing.T) {
		results, err := service.GetResults(ctx, exam.ID, "student-1")
		if err != nil {
			t.Fatalf("GetResults failed: %v", err)
		}

		if results.ExamTitle != exam.Title {
			t.Errorf("ExamTitle = %q, want %q", results.ExamTitle, exam.Title)
		}
		if results.Summary.Score != 5 || results.Summary.MaxScore != 10 {
			t.Errorf("Summary = %+v, want score 5 of 10", results.Summary)
		}
		if results.Summary.Percentage != 50 {
			t.Errorf("Percentage = %v, want 50", results.Summary.Percentage)
		}
		if len(results.Questions) != 2 {
			t.Fatalf("expected 2 question results, got %d", len(results.Questions))
		}
		if !results.Questions[0].IsCorrect || results.Questions[1].IsCorrect {
			t.Errorf("question correctness flags wrong: %+v", results.Questions)
		}
		if len(results.AppealedQuestionIDs) != 1 || results.AppealedQuestionIDs[0] != exam.Questions[1].ID {
			t.Errorf("AppealedQuestionIDs = %v, want [%d]", results.AppealedQuestionIDs, exam.Questions[1].ID)
		}
	})

	t.Run("no submission on file", func(t *testing.T) {
		_, err := service.GetResults(ctx, exam.ID, "student-2")
		if !errors.Is(err, ErrSubmissionNotFound) {
			t.Errorf("expected ErrSubmissionNotFound, got %v", err)
		}
	})
}
