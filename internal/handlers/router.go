package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/interndesk/assessment-session-service/internal/config"
	"github.com/interndesk/assessment-session-service/internal/services"
	"github.com/interndesk/assessment-session-service/internal/utils"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
	authMiddleware gin.HandlerFunc
}

func NewHandlerManager(
	sessionService services.SessionService,
	reportService services.ReportService,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	authMiddleware := DevAuthMiddleware()
	if casdoorConfig.Endpoint != "" {
		authMiddleware = NewCasdoorAuthMiddleware(casdoorConfig).AuthMiddleware()
	}

	return &HandlerManager{
		sessionHandler: NewSessionHandler(sessionService, reportService, logger),
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware)
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:id", hm.sessionHandler.CloseSession)

			sessions.PUT("/:id/answer", hm.sessionHandler.SelectAnswer)
			sessions.POST("/:id/navigate", hm.sessionHandler.Navigate)
			sessions.POST("/:id/mark", hm.sessionHandler.ToggleMark)
			sessions.POST("/:id/mark-and-next", hm.sessionHandler.MarkAndNext)

			sessions.POST("/:id/submit-request", hm.sessionHandler.RequestSubmit)
			sessions.POST("/:id/submit-cancel", hm.sessionHandler.CancelSubmit)
			sessions.POST("/:id/submit", hm.sessionHandler.Submit)

			sessions.GET("/:id/result", hm.sessionHandler.GetResult)
			sessions.GET("/:id/result/export", hm.sessionHandler.ExportResult)
		}
	}
}
