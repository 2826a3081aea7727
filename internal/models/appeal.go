package models

import "time"

type AppealStatus string

const (
	AppealPending  AppealStatus = "pending"
	AppealResolved AppealStatus = "resolved"
	AppealRejected AppealStatus = "rejected"
)

// Appeal is a student's request to re-review one question of one exam
// attempt. Status moves one way only: pending -> resolved or pending ->
// rejected; terminal states never revert.
type Appeal struct {
	ID uint `json:"id" gorm:"primaryKey"`

	StudentID  string `json:"student_id" gorm:"not null;index;size:255"`
	ExamID     uint   `json:"exam_id" gorm:"not null;index"`
	QuestionID uint   `json:"question_id" gorm:"not null"`

	// Display snapshot captured at creation time so the review queue never
	// needs a join. These may drift from the live student/exam records.
	StudentName  string `json:"student_name" gorm:"not null;size:100"`
	ExamTitle    string `json:"exam_title" gorm:"not null;size:200"`
	QuestionText string `json:"question_text" gorm:"not null;type:text"`

	Reason string `json:"reason" gorm:"not null;type:text" validate:"required,appeal_reason"`

	SubmittedAt time.Time    `json:"submitted_at" gorm:"not null;index"`
	Status      AppealStatus `json:"status" gorm:"not null;default:pending;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Appeal) TableName() string {
	return "appeals"
}

// IsPending reports whether the appeal is still open for resolution.
func (a *Appeal) IsPending() bool {
	return a.Status == AppealPending
}
