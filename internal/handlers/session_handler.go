package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/interndesk/assessment-session-service/internal/services"
	"github.com/interndesk/assessment-session-service/internal/utils"
)

// SessionHandler exposes the assessment session lifecycle over HTTP. Every
// route is scoped to the authenticated user; ownership checks live in the
// service layer.
type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	reportService  services.ReportService
}

func NewSessionHandler(
	sessionService services.SessionService,
	reportService services.ReportService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		reportService:  reportService,
	}
}

// accessToken returns the bearer token the auth middleware stored for
// pass-through to the assessment provider.
func (h *SessionHandler) accessToken(c *gin.Context) string {
	token, _ := c.Get("access_token")
	if s, ok := token.(string); ok {
		return s
	}
	return ""
}

// StartSession starts a new timed session for an assessment.
// POST /api/v1/sessions
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	h.LogRequest(c, "starting assessment session", "user_id", userID, "assessment_id", req.AssessmentID)

	resp, err := h.sessionService.Start(c.Request.Context(), &req, userID, h.accessToken(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetSession returns the current rendered state of a session.
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	view, err := h.sessionService.View(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SelectAnswer records an answer for a question.
// PUT /api/v1/sessions/:id/answer
func (h *SessionHandler) SelectAnswer(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req services.SelectAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	view, err := h.sessionService.SelectAnswer(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Navigate moves the current question, either to an absolute position or one
// step in a direction.
// POST /api/v1/sessions/:id/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req services.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	view, err := h.sessionService.Navigate(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ToggleMark flips the review mark on a question.
// POST /api/v1/sessions/:id/mark
func (h *SessionHandler) ToggleMark(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req services.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request body"})
		return
	}

	view, err := h.sessionService.ToggleMark(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// MarkAndNext marks the current question for review and advances.
// POST /api/v1/sessions/:id/mark-and-next
func (h *SessionHandler) MarkAndNext(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	view, err := h.sessionService.MarkAndNext(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// RequestSubmit opens the submission confirmation and returns the legend
// counts for the dialog.
// POST /api/v1/sessions/:id/submit-request
func (h *SessionHandler) RequestSubmit(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	prompt, err := h.sessionService.RequestSubmit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, prompt)
}

// CancelSubmit dismisses the submission confirmation.
// POST /api/v1/sessions/:id/submit-cancel
func (h *SessionHandler) CancelSubmit(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	view, err := h.sessionService.CancelSubmit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Submit grades the session and returns the outcome.
// POST /api/v1/sessions/:id/submit
func (h *SessionHandler) Submit(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "submitting assessment session", "user_id", userID, "session_id", c.Param("id"))

	outcome, err := h.sessionService.Submit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// CloseSession abandons a session without grading it.
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) CloseSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	if err := h.sessionService.Close(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// GetResult returns the outcome of a completed session.
// GET /api/v1/sessions/:id/result
func (h *SessionHandler) GetResult(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	outcome, err := h.sessionService.Result(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// ExportResult downloads the outcome of a completed session as an xlsx
// workbook.
// GET /api/v1/sessions/:id/result/export
func (h *SessionHandler) ExportResult(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	workbook, err := h.reportService.OutcomeWorkbook(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("assessment-result-%s.xlsx", c.Param("id"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
