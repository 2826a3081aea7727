package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
)

type exportService struct {
	repo    repositories.Repository
	logger  *slog.Logger
	scoring ScoringService
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:    repo,
		logger:  logger,
		scoring: NewScoringService(),
	}
}

// ExportExamResults renders every submission of an exam as an XLSX
// workbook for teachers who keep their gradebook in a spreadsheet.
func (s *exportService) ExportExamResults(ctx context.Context, examID uint) (*ExamResultsExport, error) {
	s.logger.Info("Exporting exam results", "exam_id", examID)

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	submissions, _, err := s.repo.Submission().List(ctx, nil, repositories.SubmissionFilters{ExamID: &examID})
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	roster := s.loadRoster(ctx)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Student ID", "Student Name", "Group", "Score", "Max Score", "Percentage", "Correct", "Questions", "Flagged", "Submitted At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, submission := range submissions {
		summary, err := s.scoring.Totals(exam, submission)
		if err != nil {
			return nil, err
		}

		name, group := "", ""
		if student, ok := roster[submission.StudentID]; ok {
			name = student.Name
			group = student.Group
		}

		values := []interface{}{
			submission.StudentID,
			name,
			group,
			summary.Score,
			summary.MaxScore,
			fmt.Sprintf("%.1f%%", summary.Percentage),
			summary.CorrectCount,
			summary.QuestionCount,
			submission.CheatingDetected,
			submission.SubmittedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Exam results exported", "exam_id", examID, "rows", len(submissions))

	return &ExamResultsExport{
		FileName:    fmt.Sprintf("exam_%d_results_%s.xlsx", examID, time.Now().Format("20060102")),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

// loadRoster fetches the student directory once per export. A directory
// outage degrades the sheet to bare IDs instead of failing the export.
func (s *exportService) loadRoster(ctx context.Context) map[string]*models.Student {
	roster := make(map[string]*models.Student)
	students, err := s.repo.Student().List(ctx)
	if err != nil {
		s.logger.Warn("Failed to load student roster for export", "error", err)
		return roster
	}
	for _, student := range students {
		roster[student.ID] = student
	}
	return roster
}
