package services

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
)

// mockStore is a shared in-memory backing store for the mock repository.
// A single mutex serializes transactions; rollback restores a snapshot,
// so the transactional semantics the services rely on hold for real.
type mockStore struct {
	mu sync.Mutex

	exams       map[uint]*models.Exam
	submissions map[uint]*models.Submission
	appeals     map[uint]*models.Appeal
	students    map[string]*models.Student

	nextExamID       uint
	nextQuestionID   uint
	nextSubmissionID uint
	nextAppealID     uint
}

func newMockStore() *mockStore {
	return &mockStore{
		exams:       make(map[uint]*models.Exam),
		submissions: make(map[uint]*models.Submission),
		appeals:     make(map[uint]*models.Appeal),
		students:    make(map[string]*models.Student),
	}
}

func (st *mockStore) snapshot() (map[uint]*models.Submission, map[uint]*models.Appeal) {
	submissions := make(map[uint]*models.Submission, len(st.submissions))
	for id, s := range st.submissions {
		c := *s
		submissions[id] = &c
	}
	appeals := make(map[uint]*models.Appeal, len(st.appeals))
	for id, a := range st.appeals {
		c := *a
		appeals[id] = &c
	}
	return submissions, appeals
}

// run executes fn under the store lock unless the caller already holds it
// through an open transaction.
func (st *mockStore) run(inTx bool, fn func()) {
	if !inTx {
		st.mu.Lock()
		defer st.mu.Unlock()
	}
	fn()
}

// mockRepository implements repositories.Repository over the store.
type mockRepository struct {
	store *mockStore
	inTx  bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{store: newMockStore()}
}

func (r *mockRepository) Exam() repositories.ExamRepository {
	return &mockExamRepo{store: r.store, inTx: r.inTx}
}

func (r *mockRepository) Submission() repositories.SubmissionRepository {
	return &mockSubmissionRepo{store: r.store, inTx: r.inTx}
}

func (r *mockRepository) Appeal() repositories.AppealRepository {
	return &mockAppealRepo{store: r.store, inTx: r.inTx}
}

func (r *mockRepository) Student() repositories.StudentRepository {
	return &mockStudentRepo{store: r.store, inTx: r.inTx}
}

func (r *mockRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	submissions, appeals := r.store.snapshot()

	txRepo := &mockRepository{store: r.store, inTx: true}
	if err := fn(txRepo); err != nil {
		r.store.submissions = submissions
		r.store.appeals = appeals
		return err
	}
	return nil
}

func (r *mockRepository) Ping(ctx context.Context) error { return nil }
func (r *mockRepository) Close() error                   { return nil }

// ===== FIXTURE HELPERS =====

func (r *mockRepository) addExam(exam *models.Exam) *models.Exam {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextExamID++
	exam.ID = r.store.nextExamID
	for i := range exam.Questions {
		r.store.nextQuestionID++
		exam.Questions[i].ID = r.store.nextQuestionID
		exam.Questions[i].ExamID = exam.ID
		if exam.Questions[i].Position == 0 {
			exam.Questions[i].Position = i + 1
		}
	}
	r.store.exams[exam.ID] = exam
	return exam
}

func (r *mockRepository) addSubmission(submission *models.Submission) *models.Submission {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextSubmissionID++
	submission.ID = r.store.nextSubmissionID
	r.store.submissions[submission.ID] = submission
	return submission
}

func (r *mockRepository) addAppeal(appeal *models.Appeal) *models.Appeal {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextAppealID++
	appeal.ID = r.store.nextAppealID
	if appeal.Status == "" {
		appeal.Status = models.AppealPending
	}
	r.store.appeals[appeal.ID] = appeal
	return appeal
}

func (r *mockRepository) addStudent(student *models.Student) *models.Student {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.students[student.ID] = student
	return student
}

func (r *mockRepository) getSubmission(id uint) models.Submission {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return *r.store.submissions[id]
}

func (r *mockRepository) getAppeal(id uint) models.Appeal {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return *r.store.appeals[id]
}

// ===== EXAM REPO =====

type mockExamRepo struct {
	store *mockStore
	inTx  bool
}

func (m *mockExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	m.store.run(m.inTx, func() {
		m.store.nextExamID++
		exam.ID = m.store.nextExamID
		for i := range exam.Questions {
			m.store.nextQuestionID++
			exam.Questions[i].ID = m.store.nextQuestionID
			exam.Questions[i].ExamID = exam.ID
		}
		m.store.exams[exam.ID] = exam
	})
	return nil
}

func (m *mockExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam *models.Exam
	m.store.run(m.inTx, func() {
		if e, ok := m.store.exams[id]; ok {
			c := *e
			c.Questions = nil
			exam = &c
		}
	})
	if exam == nil {
		return nil, repositories.ErrNotFound
	}
	return exam, nil
}

func (m *mockExamRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam *models.Exam
	m.store.run(m.inTx, func() {
		if e, ok := m.store.exams[id]; ok {
			c := *e
			exam = &c
		}
	})
	if exam == nil {
		return nil, repositories.ErrNotFound
	}
	return exam, nil
}

func (m *mockExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var exams []*models.Exam
	m.store.run(m.inTx, func() {
		for _, e := range m.store.exams {
			if filters.CreatedBy != nil && e.CreatedBy != *filters.CreatedBy {
				continue
			}
			c := *e
			exams = append(exams, &c)
		}
	})
	return exams, int64(len(exams)), nil
}

// ===== SUBMISSION REPO =====

type mockSubmissionRepo struct {
	store *mockStore
	inTx  bool
}

func (m *mockSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.Submission) error {
	var err error
	m.store.run(m.inTx, func() {
		for _, s := range m.store.submissions {
			if s.ExamID == submission.ExamID && s.StudentID == submission.StudentID {
				err = gorm.ErrDuplicatedKey
				return
			}
		}
		m.store.nextSubmissionID++
		submission.ID = m.store.nextSubmissionID
		stored := *submission
		m.store.submissions[submission.ID] = &stored
	})
	return err
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Submission, error) {
	var submission *models.Submission
	m.store.run(m.inTx, func() {
		if s, ok := m.store.submissions[id]; ok {
			c := *s
			submission = &c
		}
	})
	if submission == nil {
		return nil, repositories.ErrNotFound
	}
	return submission, nil
}

func (m *mockSubmissionRepo) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.Submission, error) {
	var submission *models.Submission
	m.store.run(m.inTx, func() {
		for _, s := range m.store.submissions {
			if s.ExamID == examID && s.StudentID == studentID {
				c := *s
				submission = &c
				return
			}
		}
	})
	if submission == nil {
		return nil, repositories.ErrNotFound
	}
	return submission, nil
}

func (m *mockSubmissionRepo) ExistsForExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (bool, error) {
	exists := false
	m.store.run(m.inTx, func() {
		for _, s := range m.store.submissions {
			if s.ExamID == examID && s.StudentID == studentID {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (m *mockSubmissionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	var submissions []*models.Submission
	m.store.run(m.inTx, func() {
		for _, s := range m.store.submissions {
			if filters.ExamID != nil && s.ExamID != *filters.ExamID {
				continue
			}
			if filters.StudentID != nil && s.StudentID != *filters.StudentID {
				continue
			}
			c := *s
			submissions = append(submissions, &c)
		}
	})
	return submissions, int64(len(submissions)), nil
}

func (m *mockSubmissionRepo) AddManualCredit(ctx context.Context, tx *gorm.DB, id uint, points int) error {
	var err error
	m.store.run(m.inTx, func() {
		s, ok := m.store.submissions[id]
		if !ok {
			err = repositories.ErrNotFound
			return
		}
		s.Score += points
		s.ManualScoreAdjustment += points
	})
	return err
}

// ===== APPEAL REPO =====

type mockAppealRepo struct {
	store *mockStore
	inTx  bool
}

func (m *mockAppealRepo) Create(ctx context.Context, tx *gorm.DB, appeal *models.Appeal) error {
	m.store.run(m.inTx, func() {
		m.store.nextAppealID++
		appeal.ID = m.store.nextAppealID
		stored := *appeal
		m.store.appeals[appeal.ID] = &stored
	})
	return nil
}

func (m *mockAppealRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Appeal, error) {
	var appeal *models.Appeal
	m.store.run(m.inTx, func() {
		if a, ok := m.store.appeals[id]; ok {
			c := *a
			appeal = &c
		}
	})
	if appeal == nil {
		return nil, repositories.ErrNotFound
	}
	return appeal, nil
}

func (m *mockAppealRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.AppealFilters) ([]*models.Appeal, int64, error) {
	var appeals []*models.Appeal
	m.store.run(m.inTx, func() {
		for _, a := range m.store.appeals {
			if filters.Status != nil && a.Status != *filters.Status {
				continue
			}
			if filters.StudentID != nil && a.StudentID != *filters.StudentID {
				continue
			}
			if filters.ExamID != nil && a.ExamID != *filters.ExamID {
				continue
			}
			c := *a
			appeals = append(appeals, &c)
		}
	})
	// Newest first, matching the review queue ordering.
	for i := 0; i < len(appeals); i++ {
		for j := i + 1; j < len(appeals); j++ {
			if appeals[j].SubmittedAt.After(appeals[i].SubmittedAt) {
				appeals[i], appeals[j] = appeals[j], appeals[i]
			}
		}
	}
	return appeals, int64(len(appeals)), nil
}

func (m *mockAppealRepo) HasPending(ctx context.Context, tx *gorm.DB, studentID string, examID, questionID uint) (bool, error) {
	pending := false
	m.store.run(m.inTx, func() {
		for _, a := range m.store.appeals {
			if a.StudentID == studentID && a.ExamID == examID && a.QuestionID == questionID && a.Status == models.AppealPending {
				pending = true
				return
			}
		}
	})
	return pending, nil
}

func (m *mockAppealRepo) UpdateStatusIfPending(ctx context.Context, tx *gorm.DB, id uint, status models.AppealStatus) (bool, error) {
	flipped := false
	m.store.run(m.inTx, func() {
		a, ok := m.store.appeals[id]
		if !ok || a.Status != models.AppealPending {
			return
		}
		a.Status = status
		flipped = true
	})
	return flipped, nil
}

// ===== STUDENT REPO =====

type mockStudentRepo struct {
	store *mockStore
	inTx  bool
}

func (m *mockStudentRepo) GetByID(ctx context.Context, id string) (*models.Student, error) {
	var student *models.Student
	m.store.run(m.inTx, func() {
		if s, ok := m.store.students[id]; ok {
			c := *s
			student = &c
		}
	})
	if student == nil {
		return nil, repositories.ErrNotFound
	}
	return student, nil
}

func (m *mockStudentRepo) List(ctx context.Context) ([]*models.Student, error) {
	var students []*models.Student
	m.store.run(m.inTx, func() {
		for _, s := range m.store.students {
			c := *s
			students = append(students, &c)
		}
	})
	return students, nil
}

// ===== COMMON FIXTURES =====

func fixtureExam(repo *mockRepository, pointsPerQuestion int, correctAnswers ...string) *models.Exam {
	exam := &models.Exam{
		Title:             "Geography Final",
		StartTime:         time.Now().Add(-time.Hour),
		EndTime:           time.Now().Add(time.Hour),
		PointsPerQuestion: pointsPerQuestion,
		CreatedBy:         "teacher-1",
	}
	for i, answer := range correctAnswers {
		exam.Questions = append(exam.Questions, models.Question{
			Position:      i + 1,
			Text:          "Question " + models.AnswerKey(uint(i+1)),
			Kind:          models.QuestionFreeForm,
			CorrectAnswer: answer,
		})
	}
	return repo.addExam(exam)
}
