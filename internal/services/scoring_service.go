package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/edusphere/exam-portal-service/internal/models"
)

// scoringService is the single scoring authority. It is pure: both the
// submit-time score materialization and every display-time re-derivation
// go through the same code so the two can never drift.
type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

// Matches decides whether a student's answer equals the key: trim both,
// lowercase both, compare exactly. The same rule applies to multiple
// choice and free form — correctness is equality against the stored
// answer text, never membership in the option list, even when the key
// matches no option.
func (s *scoringService) Matches(answer, correctAnswer string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == strings.ToLower(strings.TrimSpace(correctAnswer))
}

// AutoScore derives the auto-computed component of a submission's score:
// correct count times points-per-question, with per-question results for
// the detailed view. An absent answer never matches.
func (s *scoringService) AutoScore(exam *models.Exam, answers map[string]string) *ScoreBreakdown {
	breakdown := &ScoreBreakdown{
		QuestionCount:     len(exam.Questions),
		PointsPerQuestion: exam.PointsPerQuestion,
		Questions:         make([]QuestionResult, 0, len(exam.Questions)),
	}

	for _, q := range exam.Questions {
		result := QuestionResult{
			QuestionID: q.ID,
			Position:   q.Position,
		}

		answer, answered := answers[models.AnswerKey(q.ID)]
		result.Answered = answered
		if answered {
			result.StudentAnswer = answer
			result.IsCorrect = s.Matches(answer, q.CorrectAnswer)
		}

		if result.IsCorrect {
			result.PointsAwarded = exam.PointsPerQuestion
			breakdown.CorrectCount++
		}

		breakdown.Questions = append(breakdown.Questions, result)
	}

	breakdown.AutoScore = breakdown.CorrectCount * exam.PointsPerQuestion
	return breakdown
}

// Totals produces the user-facing summary from a stored submission. The
// manual adjustment is always an integer multiple of points-per-question,
// so the adjusted correct count is exact integer division.
func (s *scoringService) Totals(exam *models.Exam, submission *models.Submission) (*ScoreSummary, error) {
	answers, err := DecodeAnswers(submission.Answers)
	if err != nil {
		return nil, err
	}

	breakdown := s.AutoScore(exam, answers)

	summary := &ScoreSummary{
		Score:         submission.Score,
		MaxScore:      breakdown.QuestionCount * exam.PointsPerQuestion,
		QuestionCount: breakdown.QuestionCount,
		CorrectCount:  breakdown.CorrectCount,
	}

	if exam.PointsPerQuestion > 0 {
		summary.CorrectCount = breakdown.CorrectCount + submission.ManualScoreAdjustment/exam.PointsPerQuestion
	}

	if summary.MaxScore > 0 {
		summary.Percentage = float64(submission.Score) / float64(summary.MaxScore) * 100
	}

	return summary, nil
}

// DecodeAnswers unpacks the stored answers object. A nil column means no
// answers at all, which scores the same as an empty object.
func DecodeAnswers(data datatypes.JSON) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	var answers map[string]string
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode submission answers: %w", err)
	}
	if answers == nil {
		answers = map[string]string{}
	}
	return answers, nil
}

// EncodeAnswers packs an answer map for storage.
func EncodeAnswers(answers map[string]string) (datatypes.JSON, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission answers: %w", err)
	}
	return data, nil
}
