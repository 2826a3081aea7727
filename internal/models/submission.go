package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Submission is a student's single answer sheet for one exam. It is created
// once at hand-in time and afterwards mutated only by the appeal service.
type Submission struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ExamID    uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_submission_exam_student"`
	StudentID string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_submission_exam_student"`

	// Map from question id (decimal string, JSON object key) to the raw
	// answer text. A missing entry means the question was left unanswered.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null;index"`

	// Consumed from the proctoring layer, informational only. Never alters
	// the computed score.
	CheatingDetected bool `json:"cheating_detected" gorm:"not null;default:false"`

	// Score is authoritative once stored: the auto-computed component is
	// fixed at submit time and only ever grows through accepted appeals.
	Score int `json:"score" gorm:"not null;default:0"`

	// Cumulative credit granted through accepted appeals. Always a
	// non-negative multiple of the exam's points-per-question and <= Score.
	ManualScoreAdjustment int `json:"manual_score_adjustment" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

// AnswerKey renders a question id the way it appears as a key in the
// submission's answers object.
func AnswerKey(questionID uint) string {
	return strconv.FormatUint(uint64(questionID), 10)
}
