package events

import (
	"context"
	"time"
)

// Event topics consumed by downstream services (notification fan-out,
// gradebook sync, audit trail).
const (
	TopicSubmissionScored = "submission.scored"
	TopicAppealSubmitted  = "appeal.submitted"
	TopicAppealResolved   = "appeal.resolved"
	TopicAppealRejected   = "appeal.rejected"
)

const (
	eventSource  = "exam-portal-service"
	eventVersion = "1.0"
)

// Event is the envelope published to the message broker.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventPublisher publishes domain events. Implementations must be safe
// for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

type SubmissionScoredEvent struct {
	SubmissionID uint   `json:"submission_id"`
	ExamID       uint   `json:"exam_id"`
	StudentID    string `json:"student_id"`
	Score        int    `json:"score"`
	MaxScore     int    `json:"max_score"`
	CorrectCount int    `json:"correct_count"`
}

type AppealSubmittedEvent struct {
	AppealID   uint   `json:"appeal_id"`
	ExamID     uint   `json:"exam_id"`
	QuestionID uint   `json:"question_id"`
	StudentID  string `json:"student_id"`
}

type AppealResolvedEvent struct {
	AppealID     uint   `json:"appeal_id"`
	ExamID       uint   `json:"exam_id"`
	QuestionID   uint   `json:"question_id"`
	StudentID    string `json:"student_id"`
	ReviewerID   string `json:"reviewer_id"`
	PointsCredit int    `json:"points_credit"`
	UpdatedScore int    `json:"updated_score"`
	SubmissionID uint   `json:"submission_id"`
}

type AppealRejectedEvent struct {
	AppealID   uint   `json:"appeal_id"`
	ExamID     uint   `json:"exam_id"`
	QuestionID uint   `json:"question_id"`
	StudentID  string `json:"student_id"`
	ReviewerID string `json:"reviewer_id"`
}
