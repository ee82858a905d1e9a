package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mdms/backend/internal/geocode"
	"github.com/mdms/backend/internal/remote"
	"github.com/mdms/backend/internal/service"
	"github.com/mdms/backend/internal/session"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ImageSource serves stored media bytes directly, bypassing the ticket API.
type ImageSource interface {
	GetImage(ctx context.Context, imageID int64) ([]byte, string, error)
}

type Handler struct {
	Sessions  *session.Registry
	Media     remote.MediaResolver
	Submitter remote.ComplaintSubmitter
	Images    ImageSource
	Pinger    Pinger
	Geocoder  geocode.ReverseGeocoder
	Validator *validator.Validate
	Logger    zerolog.Logger
	PageSize  int
	Location  *time.Location
	Clock     service.Clock
	MaxUpload int64
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Pinger.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
			return
		}
	}
	sessions := 0
	if h.Sessions != nil {
		sessions = h.Sessions.Len()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions})
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h *Handler) location() *time.Location {
	if h.Location != nil {
		return h.Location
	}
	return time.Local
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
