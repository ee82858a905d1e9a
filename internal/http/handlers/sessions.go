package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mdms/backend/internal/http/middleware"
	"github.com/mdms/backend/internal/models"
)

type sessionResponse struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"profile"`
	Scope   string         `json:"scope"`
}

// @Summary Open a session
// @Description Called by the auth gateway with the authenticated profile
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-Admin-Key header string true "Gateway key"
// @Param profile body models.Profile true "Profile"
// @Success 201 {object} sessionResponse
// @Failure 400 {object} map[string]any
// @Router /api/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var p models.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid profile body", err.Error())
		return
	}
	p.Role = strings.ToUpper(strings.TrimSpace(p.Role))
	p.Department = strings.TrimSpace(p.Department)
	p.Name = strings.TrimSpace(p.Name)
	if err := h.Validator.Struct(p); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile", err.Error())
		return
	}
	s := h.Sessions.Create(p)
	c.JSON(http.StatusCreated, sessionResponse{Token: s.Token, Profile: s.Profile, Scope: scopeOf(p)})
}

func (h *Handler) CurrentSession(c *gin.Context) {
	s := middleware.CurrentSession(c)
	resp := gin.H{
		"profile":    s.Profile,
		"created_at": s.CreatedAt,
		"scope":      scopeOf(s.Profile),
	}
	if s.Live != nil {
		resp["live"] = s.Live.Snapshot()
	}
	if s.Triage != nil {
		resp["refreshed_at"] = s.Triage.RefreshedAt()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CloseSession(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if err := h.Sessions.Close(c.Request.Context(), s.Token); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Session already closed", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func scopeOf(p models.Profile) string {
	switch p.Role {
	case models.RoleAdmin:
		return "all"
	case models.RoleInspector:
		return p.Department
	}
	return "own"
}
