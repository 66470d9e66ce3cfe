package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ExamForge-2025/exam-engine/internal/config"
	"github.com/ExamForge-2025/exam-engine/internal/models"
	"github.com/ExamForge-2025/exam-engine/internal/repositories"
	"github.com/ExamForge-2025/exam-engine/internal/services"
	"github.com/ExamForge-2025/exam-engine/internal/utils"
	"github.com/ExamForge-2025/exam-engine/internal/validator"
)

type HandlerManager struct {
	sessionHandler   *SessionHandler
	examHandler      *ExamHandler
	questionHandler  *QuestionHandler
	candidateHandler *CandidateHandler
	resultHandler    *ResultHandler
	authMiddleware   *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	v *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		sessionHandler:   NewSessionHandler(serviceManager.Session(), v, logger),
		examHandler:      NewExamHandler(serviceManager.Exam(), v, logger),
		questionHandler:  NewQuestionHandler(serviceManager.Question(), v, logger),
		candidateHandler: NewCandidateHandler(serviceManager.Candidate(), logger),
		resultHandler:    NewResultHandler(serviceManager.Result(), logger),
		authMiddleware:   authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	// Candidate-facing session routes. No identity provider: the access
	// code presented at start is the taker's credential, and session ids
	// are unguessable only to the extent the deployment fronts them; the
	// key-visibility policy inside the service is what protects answer keys.
	take := v1.Group("/take/sessions")
	{
		take.POST("/start", hm.sessionHandler.StartSession)
		take.GET("/:id", hm.sessionHandler.GetSession)
		take.POST("/:id/answers", hm.sessionHandler.SaveAnswers)
		take.POST("/:id/submit", hm.sessionHandler.SubmitSession)
		take.GET("/:id/time-remaining", hm.sessionHandler.GetTimeRemaining)
	}

	// Examiner routes, all behind Casdoor authentication
	authed := v1.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())
	{
		exams := authed.Group("/exams")
		{
			exams.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/mine", hm.examHandler.GetExamsByCreator)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.GET("/:id/details", hm.examHandler.GetExamWithDetails)
			exams.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.UpdateExam)
			exams.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.DeleteExam)
			exams.PUT("/:id/active", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.SetExamActive)
			exams.PUT("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.SetExamQuestions)
			exams.POST("/:id/questions/select", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.SelectExamQuestions)
			exams.POST("/:id/invitations", hm.authMiddleware.RequireRoleMiddleware(models.RoleExaminer, models.RoleAdmin), hm.examHandler.InviteCandidate)
			exams.GET("/:id/stats", hm.examHandler.GetExamStats)
			exams.GET("/:id/sessions", hm.sessionHandler.GetSessionsByExam)
			exams.GET("/:id/results", hm.resultHandler.GetExamResults)
			exams.GET("/:id/results/export", hm.resultHandler.ExportExamResults)
		}

		questions := authed.Group("/questions")
		{
			questions.POST("", hm.questionHandler.CreateQuestion)
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/pool-counts", hm.questionHandler.GetPoolCounts)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
		}

		sessions := authed.Group("/sessions")
		{
			sessions.GET("", hm.sessionHandler.ListSessions)
			sessions.GET("/:id", hm.sessionHandler.GetSessionPrivileged)
			sessions.GET("/:id/result", hm.resultHandler.GetSessionResult)
		}

		candidates := authed.Group("/candidates")
		{
			candidates.GET("", hm.candidateHandler.ListCandidates)
			candidates.GET("/:id", hm.candidateHandler.GetCandidate)
		}

		// Delivery callback from the external mail pipeline
		authed.POST("/results/:id/emailed", hm.resultHandler.MarkResultEmailed)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-engine",
		})
	})
}
