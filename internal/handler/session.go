package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/middleware"
	"fleet/internal/service"
)

// SessionHandler handles login, logout and the current identity.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// LoginRequest is the HTTP request body for logging in.
type LoginRequest struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	ExpiresAt string `json:"expires_at"`
}

func toSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		SessionID: s.ID,
		AccountID: s.Identity.ID,
		Role:      string(s.Identity.Role),
		Name:      s.Identity.DisplayName,
		ExpiresAt: formatTime(s.ExpiresAt),
	}
}

// Login handles POST /v1/sessions
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}

	result, err := h.sessionService.Login(c.Request.Context(), service.LoginRequest{
		Role: domain.Role(req.Role),
		Name: req.Name,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response := toSessionResponse(result.Session)
	response.Token = result.Token
	respondJSON(c, http.StatusCreated, response)
}

// Logout handles DELETE /v1/sessions. It succeeds whether or not a session exists.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessionService.Logout(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /v1/sessions/me
func (h *SessionHandler) Me(c *gin.Context) {
	session := middleware.Session(c)
	if session == nil {
		respondError(c, service.ErrNotAuthenticated)
		return
	}
	respondJSON(c, http.StatusOK, toSessionResponse(session))
}
