package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mdms/backend/internal/http/middleware"
	"github.com/mdms/backend/internal/models"
	"github.com/mdms/backend/internal/remote"
	"github.com/mdms/backend/internal/service"
)

type complaintView struct {
	models.FlatComplaint
	ImageURL string `json:"image_url,omitempty"`
}

type complaintPage struct {
	Items       []complaintView `json:"items"`
	Total       int             `json:"total"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved"`
}

// @Summary List complaints
// @Description Flattened sub-tickets for the session's department, newest first
// @Tags complaints
// @Produce json
// @Param status query string false "open|in_progress|resolved|all"
// @Param date query string false "all|today|yesterday|last7days|last30days|specific"
// @Param on query string false "YYYY-MM-DD, with date=specific"
// @Param issue_type query string false "Issue label"
// @Param lat query number false "Latitude for radius filter"
// @Param lon query number false "Longitude for radius filter"
// @Param radius_km query number false "Radius in km"
// @Param page query int false "1-based page"
// @Param page_size query int false "Page size"
// @Success 200 {object} complaintPage
// @Failure 400 {object} map[string]any
// @Router /api/complaints [get]
func (h *Handler) ListComplaints(c *gin.Context) {
	filter, err := h.parseFilter(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil)
		return
	}
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", h.PageSize)
	if pageSize <= 0 {
		pageSize = 10
	}

	view := middleware.CurrentSession(c).Triage
	res, err := view.Query(filter, page, pageSize)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil)
		return
	}

	items := make([]complaintView, 0, len(res.Items))
	for _, fc := range res.Items {
		cv := complaintView{FlatComplaint: fc}
		if fc.ImageID != nil {
			cv.ImageURL = "/api/media/" + strconv.FormatInt(*fc.ImageID, 10)
		}
		items = append(items, cv)
	}
	c.JSON(http.StatusOK, complaintPage{
		Items:       items,
		Total:       res.Total,
		Page:        res.Page,
		PageSize:    res.PageSize,
		TotalPages:  res.TotalPages,
		RefreshedAt: view.RefreshedAt(),
	})
}

func (h *Handler) ComplaintStats(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentSession(c).Triage.Stats())
}

func (h *Handler) RefreshComplaints(c *gin.Context) {
	view := middleware.CurrentSession(c).Triage
	if err := view.Refresh(c.Request.Context()); err != nil {
		writeError(c, http.StatusBadGateway, "REFRESH_FAILED", "Ticket refresh failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed_at": view.RefreshedAt(), "count": len(view.Complaints())})
}

// @Summary Update complaint status
// @Tags complaints
// @Accept json
// @Produce json
// @Param id path string true "Sub-ticket ID"
// @Param body body statusRequest true "New status"
// @Success 200 {object} models.FlatComplaint
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/complaints/{id}/status [patch]
func (h *Handler) UpdateComplaintStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid status body", err.Error())
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status", err.Error())
		return
	}

	updated, err := middleware.CurrentSession(c).Triage.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeMutationError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteTicket(c *gin.Context) {
	if err := middleware.CurrentSession(c).Triage.DeleteTicket(c.Request.Context(), c.Param("id")); err != nil {
		writeMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MediaImage serves a complaint image: from the database when wired, otherwise by
// redirecting to the ticket API.
func (h *Handler) MediaImage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("image_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "image_id must be a positive integer", nil)
		return
	}
	if h.Images != nil {
		data, contentType, err := h.Images.GetImage(c.Request.Context(), id)
		if errors.Is(err, remote.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Image not found", nil)
			return
		}
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load image", err.Error())
			return
		}
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}
		c.Data(http.StatusOK, contentType, data)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.Media.ImageURL(id))
}

func writeMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, service.ErrMutationFailed):
		writeError(c, http.StatusBadGateway, "MUTATION_FAILED", "Remote update failed; nothing was changed", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Unexpected error", err.Error())
	}
}

func (h *Handler) parseFilter(c *gin.Context) (service.ComplaintFilter, error) {
	f := service.ComplaintFilter{
		Status:    strings.ToLower(strings.TrimSpace(c.Query("status"))),
		DateRange: strings.ToLower(strings.TrimSpace(c.Query("date"))),
		IssueType: strings.TrimSpace(c.Query("issue_type")),
	}
	if f.Status != "" && f.Status != service.StatusAll && !service.ValidStatus(f.Status) {
		return f, errors.New("unknown status " + f.Status)
	}
	if on := c.Query("on"); on != "" {
		d, err := time.ParseInLocation("2006-01-02", on, h.location())
		if err != nil {
			return f, errors.New("on must be YYYY-MM-DD")
		}
		f.SpecificDate = d
		if f.DateRange == "" {
			f.DateRange = service.DateSpecific
		}
	}

	lat, lon, radius := c.Query("lat"), c.Query("lon"), c.Query("radius_km")
	if lat != "" || lon != "" || radius != "" {
		g := service.GeoRadius{RadiusKm: 1}
		var err error
		if g.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
			return f, errors.New("lat must be a number")
		}
		if g.Lon, err = strconv.ParseFloat(lon, 64); err != nil {
			return f, errors.New("lon must be a number")
		}
		if radius != "" {
			if g.RadiusKm, err = strconv.ParseFloat(radius, 64); err != nil {
				return f, errors.New("radius_km must be a number")
			}
		}
		f.Near = &g
	}
	return f, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
