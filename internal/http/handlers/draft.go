package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mdms/backend/internal/draft"
	"github.com/mdms/backend/internal/http/middleware"
	"github.com/mdms/backend/internal/metrics"
	"github.com/mdms/backend/internal/models"
)

type locationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type draftResponse struct {
	Location draft.Location        `json:"location"`
	Items    []models.EvidenceItem `json:"items"`
}

func (h *Handler) GetDraft(c *gin.Context) {
	d := middleware.CurrentSession(c).Draft
	c.JSON(http.StatusOK, draftResponse{Location: d.Location(), Items: d.Items()})
}

// @Summary Set the reporter location
// @Description Coordinates are reverse geocoded to area/district when a geocoder is configured
// @Tags draft
// @Accept json
// @Produce json
// @Param location body locationRequest true "Coordinates"
// @Success 200 {object} draft.Location
// @Router /api/draft/location [put]
func (h *Handler) SetDraftLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid location body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid coordinates", err.Error())
		return
	}

	loc := draft.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	if h.Geocoder != nil {
		addr, err := h.Geocoder.Reverse(c.Request.Context(), *req.Latitude, *req.Longitude)
		if err != nil {
			h.Logger.Warn().Err(err).Msg("reverse geocode failed, keeping raw coordinates")
		} else {
			loc.Area, loc.District = addr.Area, addr.District
		}
	}
	middleware.CurrentSession(c).Draft.SetLocation(loc)
	c.JSON(http.StatusOK, loc)
}

// @Summary Upload evidence
// @Tags draft
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Images or videos"
// @Success 201 {array} models.EvidenceItem
// @Router /api/draft/evidence [post]
func (h *Handler) AddEvidence(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "multipart form required", err.Error())
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "at least one file required", nil)
		return
	}

	d := middleware.CurrentSession(c).Draft
	added := make([]models.EvidenceItem, 0, len(files))
	rejected := []string{}
	for _, fh := range files {
		if h.MaxUpload > 0 && fh.Size > h.MaxUpload {
			rejected = append(rejected, fh.Filename+": too large")
			continue
		}
		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, fh.Filename+": "+err.Error())
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			rejected = append(rejected, fh.Filename+": "+err.Error())
			continue
		}
		item, err := d.AddUpload(fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			rejected = append(rejected, fh.Filename+": "+err.Error())
			continue
		}
		added = append(added, item)
	}
	if len(added) == 0 {
		writeError(c, http.StatusBadRequest, "UNSUPPORTED_MEDIA", "No usable files", rejected)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"items": added, "rejected": rejected})
}

func (h *Handler) EvidenceMedia(c *gin.Context) {
	item, err := middleware.CurrentSession(c).Draft.Get(c.Param("id"))
	if isNotFound(err) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Evidence not found", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to load evidence", err.Error())
		return
	}
	c.Data(http.StatusOK, item.ContentType, item.Data)
}

func (h *Handler) RemoveEvidence(c *gin.Context) {
	err := middleware.CurrentSession(c).Draft.Remove(c.Param("id"))
	if isNotFound(err) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Evidence not found", nil)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to remove evidence", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ResetDraft(c *gin.Context) {
	middleware.CurrentSession(c).Draft.Reset()
	c.Status(http.StatusNoContent)
}

// @Summary Submit the draft as a complaint
// @Tags draft
// @Produce json
// @Success 200 {object} remote.SubmitResult
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/draft/submit [post]
func (h *Handler) SubmitDraft(c *gin.Context) {
	s := middleware.CurrentSession(c)
	items := s.Draft.Items()
	if len(items) == 0 {
		writeError(c, http.StatusBadRequest, "EMPTY_DRAFT", draft.ErrEmptyDraft.Error(), nil)
		return
	}
	loc := s.Draft.Location()
	res, err := h.Submitter.SubmitComplaint(c.Request.Context(), items, loc.Latitude, loc.Longitude)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		h.Logger.Error().Err(err).Int("items", len(items)).Msg("complaint submission failed")
		writeError(c, http.StatusBadGateway, "SUBMIT_FAILED", "Complaint submission failed", err.Error())
		return
	}
	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()
	s.Draft.Reset()
	c.JSON(http.StatusOK, res)
}

func isNotFound(err error) bool {
	return errors.Is(err, draft.ErrItemNotFound)
}
