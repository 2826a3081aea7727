package validator

import (
	"time"

	"github.com/edusphere/exam-portal-service/internal/models"
)

// QuestionRequest describes one question inside an exam create request.
type QuestionRequest struct {
	Text          string              `json:"text" validate:"required,min=1,max=2000"`
	Kind          models.QuestionKind `json:"kind" validate:"required,oneof=multiple_choice free_form"`
	Options       []string            `json:"options" validate:"omitempty,max=10,dive,max=500"`
	CorrectAnswer string              `json:"correct_answer" validate:"required,max=2000"`
	FileURL       *string             `json:"file_url"`
	FileType      *string             `json:"file_type" validate:"omitempty,max=100"`
	FileName      *string             `json:"file_name" validate:"omitempty,max=255"`
}

// ExamCreateRequest is the authoring payload for a new exam.
type ExamCreateRequest struct {
	Title             string            `json:"title" validate:"required,min=1,max=200"`
	StartTime         time.Time         `json:"start_time" validate:"required"`
	EndTime           time.Time         `json:"end_time" validate:"required,gtfield=StartTime"`
	PointsPerQuestion int               `json:"points_per_question" validate:"required,points_range"`
	AssignedGroups    []string          `json:"assigned_groups" validate:"omitempty,dive,max=100"`
	Announcement      *string           `json:"announcement" validate:"omitempty,max=2000"`
	Questions         []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// SubmissionCreateRequest is the answer sheet handed in by a student.
// Answers maps question id (decimal string) to raw answer text; absent
// entries mean unanswered.
type SubmissionCreateRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
	// An empty map is a valid hand-in: every question simply scores as
	// unanswered.
	Answers          map[string]string `json:"answers"`
	CheatingDetected bool              `json:"cheating_detected"`
}

// AppealCreateRequest asks for re-review of one question of one attempt.
type AppealCreateRequest struct {
	ExamID     uint   `json:"exam_id" validate:"required"`
	QuestionID uint   `json:"question_id" validate:"required"`
	Reason     string `json:"reason" validate:"required,appeal_reason"`
}
