package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/repositories"
	"github.com/edusphere/exam-portal-service/internal/services"
	"github.com/edusphere/exam-portal-service/internal/utils"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

type AppealHandler struct {
	BaseHandler
	appealService services.AppealService
	validator     *validator.Validator
}

func NewAppealHandler(
	appealService services.AppealService,
	validator *validator.Validator,
	logger utils.Logger,
) *AppealHandler {
	return &AppealHandler{
		BaseHandler:   NewBaseHandler(logger),
		appealService: appealService,
		validator:     validator,
	}
}

// CreateAppeal files an appeal against one question of the caller's submission
// @Summary Create appeal
// @Tags appeals
// @Accept json
// @Produce json
// @Param appeal body services.CreateAppealRequest true "Appeal data"
// @Success 201 {object} services.AppealResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /appeals [post]
func (h *AppealHandler) CreateAppeal(c *gin.Context) {
	var req services.CreateAppealRequest
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

	appeal, err := h.appealService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, appeal)
}

// GetAppeal retrieves an appeal by ID
// @Summary Get appeal
// @Tags appeals
// @Produce json
// @Param id path uint true "Appeal ID"
// @Success 200 {object} services.AppealResponse
// @Failure 404 {object} ErrorResponse
// @Router /appeals/{id} [get]
func (h *AppealHandler) GetAppeal(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	appeal, err := h.appealService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, appeal)
}

// ListAppeals lists appeals with optional filters
// @Summary List appeals
// @Tags appeals
// @Produce json
// @Success 200 {object} services.AppealListResponse
// @Router /appeals [get]
func (h *AppealHandler) ListAppeals(c *gin.Context) {
	filters := repositories.AppealFilters{
		Limit:  h.parseIntQuery(c, "limit", 50),
		Offset: h.parseIntQuery(c, "offset", 0),
	}

	if status := c.Query("status"); status != "" {
		s := models.AppealStatus(status)
		filters.Status = &s
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filters.StudentID = &studentID
	}
	if examID := h.parseIntQuery(c, "exam_id", 0); examID > 0 {
		id := uint(examID)
		filters.ExamID = &id
	}

	appeals, err := h.appealService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, appeals)
}

// GetPendingQueue returns the reviewer worklist, newest first
// @Summary Pending appeal queue
// @Tags appeals
// @Produce json
// @Success 200 {object} services.AppealListResponse
// @Router /appeals/pending [get]
func (h *AppealHandler) GetPendingQueue(c *gin.Context) {
	queue, err := h.appealService.PendingQueue(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, queue)
}

// AcceptAppeal resolves an appeal and credits the submission
// @Summary Accept appeal
// @Tags appeals
// @Produce json
// @Param id path uint true "Appeal ID"
// @Success 200 {object} services.ResolveAppealResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /appeals/{id}/accept [post]
func (h *AppealHandler) AcceptAppeal(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Accepting appeal", "appeal_id", id)

	result, err := h.appealService.Accept(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RejectAppeal closes an appeal without changing any score
// @Summary Reject appeal
// @Tags appeals
// @Produce json
// @Param id path uint true "Appeal ID"
// @Success 200 {object} services.ResolveAppealResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /appeals/{id}/reject [post]
func (h *AppealHandler) RejectAppeal(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	h.LogRequest(c, "Rejecting appeal", "appeal_id", id)

	result, err := h.appealService.Reject(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
