package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionFreeForm       QuestionKind = "free_form"
)

type Exam struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Title string `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`

	// Scheduling window. Question set and answer key are immutable once
	// StartTime has passed.
	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`

	// Every question in the exam is worth the same number of points.
	PointsPerQuestion int `json:"points_per_question" gorm:"not null" validate:"required,min=1,max=100"`

	AssignedGroups datatypes.JSON `json:"assigned_groups" gorm:"type:jsonb"` // []string
	Announcement   *string        `json:"announcement" gorm:"type:text" validate:"omitempty,max=2000"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
	TotalPoints    int `json:"total_points" gorm:"-"`
}

type Question struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	ExamID uint `json:"exam_id" gorm:"not null;index"`

	Position int          `json:"position" gorm:"not null"` // 1-based order within the exam
	Text     string       `json:"text" gorm:"not null;type:text" validate:"required,min=1,max=2000"`
	Kind     QuestionKind `json:"kind" gorm:"not null;size:32" validate:"required,oneof=multiple_choice free_form"`

	// Option strings, only meaningful for multiple choice. Correctness is
	// decided by comparing the student's answer text against CorrectAnswer,
	// never by membership in this list.
	Options datatypes.JSON `json:"options" gorm:"type:jsonb"` // []string

	CorrectAnswer string `json:"correct_answer" gorm:"not null;type:text" validate:"required"`

	// Optional attachment shown with the prompt (image or PDF).
	FileURL  *string `json:"file_url" gorm:"type:text"`
	FileType *string `json:"file_type" gorm:"size:100"`
	FileName *string `json:"file_name" gorm:"size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Exam) TableName() string {
	return "exams"
}

func (Question) TableName() string {
	return "questions"
}
