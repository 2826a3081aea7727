package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/edusphere/exam-portal-service/internal/events"
	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

func newAppealFixture(t *testing.T) (*mockRepository, *events.MockEventPublisher, AppealService) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := newMockRepository()
	publisher := events.NewMockEventPublisher(logger)
	service := NewAppealService(repo, nil, logger, validator.New(), publisher)
	return repo, publisher, service
}

// seedGradedExam sets up one exam, one enrolled student and their graded
// submission, the starting state every appeal test needs.
func seedGradedExam(repo *mockRepository, studentID string) (*models.Exam, *models.Submission) {
	exam := fixtureExam(repo, 5, "Paris", "42", "Blue")
	repo.addStudent(&models.Student{ID: studentID, Name: "Alex Doe", Group: "10A", Status: models.StudentActive})

	answers, _ := EncodeAnswers(map[string]string{
		models.AnswerKey(exam.Questions[0].ID): "Paris",
	})
	submission := repo.addSubmission(&models.Submission{
		ExamID:      exam.ID,
		StudentID:   studentID,
		Answers:     answers,
		SubmittedAt: time.Now(),
		Score:       5,
	})
	return exam, submission
}

func TestAppealService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending appeal with display snapshots", func(t *testing.T) {
		repo, publisher, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")

		req := &CreateAppealRequest{
			ExamID:     exam.ID,
			QuestionID: exam.Questions[1].ID,
			Reason:     "My answer 42 should be accepted as written.",
		}

		resp, err := service.Create(ctx, req, "student-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if resp.Status != models.AppealPending {
			t.Errorf("Status = %s, want pending", resp.Status)
		}
		if resp.StudentName != "Alex Doe" {
			t.Errorf("StudentName = %q, want snapshot of directory name", resp.StudentName)
		}
		if resp.ExamTitle != exam.Title {
			t.Errorf("ExamTitle = %q, want %q", resp.ExamTitle, exam.Title)
		}
		if resp.QuestionText != exam.Questions[1].Text {
			t.Errorf("QuestionText = %q, want %q", resp.QuestionText, exam.Questions[1].Text)
		}
		if resp.PointsPerQuestion != 5 {
			t.Errorf("PointsPerQuestion = %d, want 5", resp.PointsPerQuestion)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TopicAppealSubmitted {
			t.Errorf("expected one %s event, got %+v", events.TopicAppealSubmitted, published)
		}
	})

	t.Run("snapshots stay frozen when the live records change", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")

		req := &CreateAppealRequest{
			ExamID:     exam.ID,
			QuestionID: exam.Questions[0].ID,
			Reason:     "Please take another look at this one.",
		}
		created, err := service.Create(ctx, req, "student-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		// Rename the exam and the student after the appeal was filed.
		repo.store.mu.Lock()
		repo.store.exams[exam.ID].Title = "Geography Final (revised)"
		repo.store.students["student-1"].Name = "Alexandra Doe"
		repo.store.mu.Unlock()

		reloaded, err := service.GetByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if reloaded.ExamTitle != "Geography Final" {
			t.Errorf("ExamTitle = %q, want the creation-time snapshot", reloaded.ExamTitle)
		}
		if reloaded.StudentName != "Alex Doe" {
			t.Errorf("StudentName = %q, want the creation-time snapshot", reloaded.StudentName)
		}
	})

	t.Run("blank reason is rejected", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")

		req := &CreateAppealRequest{
			ExamID:     exam.ID,
			QuestionID: exam.Questions[0].ID,
			Reason:     "   \t ",
		}

		_, err := service.Create(ctx, req, "student-1")
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Errorf("expected validation errors, got %v", err)
		}
	})

	t.Run("question must belong to the exam", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")

		req := &CreateAppealRequest{ExamID: exam.ID, QuestionID: 9999, Reason: "check this"}

		_, err := service.Create(ctx, req, "student-1")
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "question_id" {
			t.Errorf("expected question_id validation error, got %v", err)
		}
	})

	t.Run("requires a submission on file", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")
		repo.addStudent(&models.Student{ID: "student-2", Name: "No Sheet", Status: models.StudentActive})

		req := &CreateAppealRequest{ExamID: exam.ID, QuestionID: exam.Questions[0].ID, Reason: "check this"}

		_, err := service.Create(ctx, req, "student-2")
		if !errors.Is(err, ErrSubmissionNotFound) {
			t.Errorf("expected ErrSubmissionNotFound, got %v", err)
		}
	})

	t.Run("second pending appeal for the same question is refused", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")

		req := &CreateAppealRequest{ExamID: exam.ID, QuestionID: exam.Questions[0].ID, Reason: "first"}
		if _, err := service.Create(ctx, req, "student-1"); err != nil {
			t.Fatalf("first Create failed: %v", err)
		}

		req.Reason = "second"
		_, err := service.Create(ctx, req, "student-1")
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) || ruleErr.Rule != "appeal_already_pending" {
			t.Errorf("expected appeal_already_pending rule error, got %v", err)
		}
	})

	t.Run("a rejected appeal does not block a new one", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")
		repo.addAppeal(&models.Appeal{
			StudentID:   "student-1",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[0].ID,
			Reason:      "old one",
			SubmittedAt: time.Now().Add(-time.Hour),
			Status:      models.AppealRejected,
		})

		req := &CreateAppealRequest{ExamID: exam.ID, QuestionID: exam.Questions[0].ID, Reason: "try again"}
		if _, err := service.Create(ctx, req, "student-1"); err != nil {
			t.Errorf("Create after rejection failed: %v", err)
		}
	})
}

func TestAppealService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("credits the submission and resolves the appeal atomically", func(t *testing.T) {
		repo, publisher, service := newAppealFixture(t)
		exam, submission := seedGradedExam(repo, "student-1")
		appeal := repo.addAppeal(&models.Appeal{
			StudentID:   "student-1",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[1].ID,
			Reason:      "check this",
			SubmittedAt: time.Now(),
		})

		result, err := service.Accept(ctx, appeal.ID, "teacher-1")
		if err != nil {
			t.Fatalf("Accept failed: %v", err)
		}

		if result.Appeal.Status != models.AppealResolved {
			t.Errorf("appeal status = %s, want resolved", result.Appeal.Status)
		}
		if result.Submission.Score != 10 {
			t.Errorf("Score = %d, want 10", result.Submission.Score)
		}
		if result.Submission.ManualScoreAdjustment != 5 {
			t.Errorf("ManualScoreAdjustment = %d, want 5", result.Submission.ManualScoreAdjustment)
		}

		stored := repo.getSubmission(submission.ID)
		if stored.Score != 10 || stored.ManualScoreAdjustment != 5 {
			t.Errorf("stored submission = score %d adj %d, want 10 and 5", stored.Score, stored.ManualScoreAdjustment)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TopicAppealResolved {
			t.Errorf("expected one %s event, got %+v", events.TopicAppealResolved, published)
		}
	})

	t.Run("second accept is refused and does not double-credit", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, submission := seedGradedExam(repo, "student-1")
		appeal := repo.addAppeal(&models.Appeal{
			StudentID:   "student-1",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[1].ID,
			Reason:      "check this",
			SubmittedAt: time.Now(),
		})

		if _, err := service.Accept(ctx, appeal.ID, "teacher-1"); err != nil {
			t.Fatalf("first Accept failed: %v", err)
		}

		_, err := service.Accept(ctx, appeal.ID, "teacher-1")
		if !errors.Is(err, ErrAppealNotPending) {
			t.Errorf("expected ErrAppealNotPending, got %v", err)
		}

		stored := repo.getSubmission(submission.ID)
		if stored.Score != 10 {
			t.Errorf("Score = %d after double accept, want 10", stored.Score)
		}
	})

	t.Run("missing submission rolls the status flip back", func(t *testing.T) {
		repo, publisher, service := newAppealFixture(t)
		exam := fixtureExam(repo, 5, "Paris")
		appeal := repo.addAppeal(&models.Appeal{
			StudentID:   "student-ghost",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[0].ID,
			Reason:      "check this",
			SubmittedAt: time.Now(),
		})

		_, err := service.Accept(ctx, appeal.ID, "teacher-1")
		if !errors.Is(err, ErrSubmissionNotFound) {
			t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
		}

		stored := repo.getAppeal(appeal.ID)
		if stored.Status != models.AppealPending {
			t.Errorf("appeal status = %s after failed accept, want pending", stored.Status)
		}
		if len(publisher.GetPublishedEvents()) != 0 {
			t.Error("no event should be published for a failed accept")
		}
	})

	t.Run("unknown appeal", func(t *testing.T) {
		_, _, service := newAppealFixture(t)
		_, err := service.Accept(ctx, 404, "teacher-1")
		if !errors.Is(err, ErrAppealNotFound) {
			t.Errorf("expected ErrAppealNotFound, got %v", err)
		}
	})

	t.Run("concurrent accepts credit exactly once", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, submission := seedGradedExam(repo, "student-1")
		appeal := repo.addAppeal(&models.Appeal{
			StudentID:   "student-1",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[1].ID,
			Reason:      "check this",
			SubmittedAt: time.Now(),
		})

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = service.Accept(ctx, appeal.ID, "teacher-1")
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else if !errors.Is(err, ErrAppealNotPending) {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if succeeded != 1 {
			t.Errorf("%d accepts succeeded, want exactly 1", succeeded)
		}

		stored := repo.getSubmission(submission.ID)
		if stored.Score != 10 || stored.ManualScoreAdjustment != 5 {
			t.Errorf("stored submission = score %d adj %d, want 10 and 5", stored.Score, stored.ManualScoreAdjustment)
		}
	})

	t.Run("concurrent accepts of different appeals both land", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, submission := seedGradedExam(repo, "student-1")
		first := repo.addAppeal(&models.Appeal{
			StudentID: "student-1", ExamID: exam.ID, QuestionID: exam.Questions[1].ID,
			Reason: "q2", SubmittedAt: time.Now(),
		})
		second := repo.addAppeal(&models.Appeal{
			StudentID: "student-1", ExamID: exam.ID, QuestionID: exam.Questions[2].ID,
			Reason: "q3", SubmittedAt: time.Now(),
		})

		var wg sync.WaitGroup
		for _, id := range []uint{first.ID, second.ID} {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				if _, err := service.Accept(ctx, id, "teacher-1"); err != nil {
					t.Errorf("Accept(%d) failed: %v", id, err)
				}
			}(id)
		}
		wg.Wait()

		stored := repo.getSubmission(submission.ID)
		if stored.Score != 15 || stored.ManualScoreAdjustment != 10 {
			t.Errorf("stored submission = score %d adj %d, want 15 and 10", stored.Score, stored.ManualScoreAdjustment)
		}
	})
}

func TestAppealService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the appeal without touching the score", func(t *testing.T) {
		repo, publisher, service := newAppealFixture(t)
		exam, submission := seedGradedExam(repo, "student-1")
		appeal := repo.addAppeal(&models.Appeal{
			StudentID:   "student-1",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[1].ID,
			Reason:      "check this",
			SubmittedAt: time.Now(),
		})

		result, err := service.Reject(ctx, appeal.ID, "teacher-1")
		if err != nil {
			t.Fatalf("Reject failed: %v", err)
		}
		if result.Appeal.Status != models.AppealRejected {
			t.Errorf("appeal status = %s, want rejected", result.Appeal.Status)
		}

		stored := repo.getSubmission(submission.ID)
		if stored.Score != 5 || stored.ManualScoreAdjustment != 0 {
			t.Errorf("score changed on reject: score %d adj %d", stored.Score, stored.ManualScoreAdjustment)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.TopicAppealRejected {
			t.Errorf("expected one %s event, got %+v", events.TopicAppealRejected, published)
		}
	})

	t.Run("reject after accept is refused", func(t *testing.T) {
		repo, _, service := newAppealFixture(t)
		exam, _ := seedGradedExam(repo, "student-1")
		appeal := repo.addAppeal(&models.Appeal{
			StudentID:   "student-1",
			ExamID:      exam.ID,
			QuestionID:  exam.Questions[1].ID,
			Reason:      "check this",
			SubmittedAt: time.Now(),
		})

		if _, err := service.Accept(ctx, appeal.ID, "teacher-1"); err != nil {
			t.Fatalf("Accept failed: %v", err)
		}

		_, err := service.Reject(ctx, appeal.ID, "teacher-1")
		if !errors.Is(err, ErrAppealNotPending) {
			t.Errorf("expected ErrAppealNotPending, got %v", err)
		}
	})
}

func TestAppealService_PendingQueue(t *testing.T) {
	ctx := context.Background()
	repo, _, service := newAppealFixture(t)
	exam, _ := seedGradedExam(repo, "student-1")

	older := repo.addAppeal(&models.Appeal{
		StudentID: "student-1", ExamID: exam.ID, QuestionID: exam.Questions[0].ID,
		Reason: "older", SubmittedAt: time.Now().Add(-time.Hour),
	})
	newer := repo.addAppeal(&models.Appeal{
		StudentID: "student-1", ExamID: exam.ID, QuestionID: exam.Questions[1].ID,
		Reason: "newer", SubmittedAt: time.Now(),
	})
	repo.addAppeal(&models.Appeal{
		StudentID: "student-1", ExamID: exam.ID, QuestionID: exam.Questions[2].ID,
		Reason: "done", SubmittedAt: time.Now(), Status: models.AppealResolved,
	})

	queue, err := service.PendingQueue(ctx)
	if err != nil {
		t.Fatalf("PendingQueue failed: %v", err)
	}

	if len(queue.Appeals) != 2 {
		t.Fatalf("queue length = %d, want 2 (resolved excluded)", len(queue.Appeals))
	}
	if queue.Appeals[0].ID != newer.ID || queue.Appeals[1].ID != older.ID {
		t.Errorf("queue order = [%d %d], want newest first [%d %d]",
			queue.Appeals[0].ID, queue.Appeals[1].ID, newer.ID, older.ID)
	}
}
