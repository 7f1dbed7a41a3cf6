package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/interndesk/assessment-session-service/internal/services"
	"github.com/interndesk/assessment-session-service/internal/utils"
	"github.com/interndesk/assessment-session-service/internal/validator"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c, h.logger).Info(msg, args...)
}

// userID returns the authenticated user, aborting with 401 when absent.
func (h *BaseHandler) userID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return "", false
	}
	return userID, true
}

// handleServiceError maps service errors to HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found"})
	case errors.Is(err, services.ErrSessionNotCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session has no result yet"})
	case errors.Is(err, services.ErrSessionNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session is not active"})
	case errors.Is(err, services.ErrPositionOutOfRange),
		errors.Is(err, services.ErrOptionOutOfRange),
		errors.Is(err, services.ErrInvalidNavigation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrStartFailed):
		// The provider refused or was unreachable; nothing was created and
		// the client may retry.
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Failed to start assessment, please try again"})
	case services.IsPermissionError(err):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Access denied"})
	default:
		utils.FromContext(c, h.logger).Error("unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}
