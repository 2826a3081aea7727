package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edusphere/exam-portal-service/internal/config"
	"github.com/edusphere/exam-portal-service/internal/models"
	"github.com/edusphere/exam-portal-service/internal/services"
	"github.com/edusphere/exam-portal-service/internal/utils"
	"github.com/edusphere/exam-portal-service/internal/validator"
)

type HandlerManager struct {
	examHandler       *ExamHandler
	submissionHandler *SubmissionHandler
	appealHandler     *AppealHandler
	authMiddleware    *CasdoorAuthMiddleware
	serviceManager    services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		examHandler:       NewExamHandler(serviceManager.Exam(), serviceManager.Export(), validator, logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), validator, logger),
		appealHandler:     NewAppealHandler(serviceManager.Appeal(), validator, logger),
		authMiddleware:    NewCasdoorAuthMiddleware(casdoorConfig),
		serviceManager:    serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		teacherOnly := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

		exams := v1.Group("/exams")
		{
			exams.POST("", teacherOnly, hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/mine", hm.examHandler.ListMyExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/details", teacherOnly, hm.examHandler.GetExamWithQuestions)
			exams.GET("/:id/results", hm.submissionHandler.GetMyResults)
			exams.GET("/:id/submissions", teacherOnly, hm.submissionHandler.ListExamSubmissions)
			exams.GET("/:id/export", teacherOnly, hm.examHandler.ExportExamResults)
		}

		submissions := v1.Group("/submissions")
		{
			submissions.POST("", hm.submissionHandler.SubmitExam)
			submissions.GET("/:id", teacherOnly, hm.submissionHandler.GetSubmission)
		}

		appeals := v1.Group("/appeals")
		{
			appeals.POST("", hm.appealHandler.CreateAppeal)
			appeals.GET("", teacherOnly, hm.appealHandler.ListAppeals)
			appeals.GET("/pending", teacherOnly, hm.appealHandler.GetPendingQueue)
			appeals.GET("/:id", teacherOnly, hm.appealHandler.GetAppeal)
			appeals.POST("/:id/accept", teacherOnly, hm.appealHandler.AcceptAppeal)
			appeals.POST("/:id/reject", teacherOnly, hm.appealHandler.RejectAppeal)
		}
	}
}

func (hm *HandlerManager) healthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "exam-portal-service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
