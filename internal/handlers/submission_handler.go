package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-portal-service/internal/repositories"
	"github.com/edusphere/exam-portal-service/internal/services"
	"github.com/edusphere/exam-portal-service/internal/utils"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

type SubmissionHandler struct {
	BaseHandler
	submissionService services.SubmissionService
	validator         *validator.Validator
}

func NewSubmissionHandler(
	submissionService services.SubmissionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler:       NewBaseHandler(logger),
		submissionService: submissionService,
		validator:         validator,
	}
}

// SubmitExam hands in the calling student's answer sheet
// @Summary Submit exam answers
// @Tags submissions
// @Accept json
// @Produce json
// @Param submission body services.CreateSubmissionRequest true "Answer sheet"
// @Success 201 {object} services.SubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /submissions [post]
func (h *SubmissionHandler) SubmitExam(c *gin.Context) {
	var req services.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Submitting exam", "exam_id", req.ExamID)

	submission, err := h.submissionService.Submit(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// GetSubmission retrieves a submission by ID
// @Summary Get submission
// @Tags submissions
// @Produce json
// @Param id path uint true "Submission ID"
// @Success 200 {object} services.SubmissionResponse
// @Failure 404 {object} ErrorResponse
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	submission, err := h.submissionService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// GetMyResults returns the calling student's detailed results for an exam
// @Summary Get own exam results
// @Tags submissions
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.SubmissionResultsResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/results [get]
func (h *SubmissionHandler) GetMyResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	results, err := h.submissionService.GetResults(c.Request.Context(), examID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ListExamSubmissions lists all submissions of an exam
// @Summary List exam submissions
// @Tags submissions
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id}/submissions [get]
func (h *SubmissionHandler) ListExamSubmissions(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	filters := repositories.SubmissionFilters{
		Limit:  h.parseIntQuery(c, "limit", 50),
		Offset: h.parseIntQuery(c, "offset", 0),
	}

	submissions, total, err := h.submissionService.ListByExam(c.Request.Context(), examID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submissions": submissions,
		"total":       total,
	})
}
