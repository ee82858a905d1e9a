package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/mdms/backend/internal/config"
	"github.com/mdms/backend/internal/http/handlers"
	"github.com/mdms/backend/internal/http/middleware"
	"github.com/mdms/backend/internal/metrics"
	"github.com/mdms/backend/internal/models"

	_ "github.com/mdms/backend/docs"
)

func Router(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(h.Logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id", middleware.SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", h.Healthz)
	if cfg.MetricsEnabled {
		metrics.Register()
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.GET("/geocode", h.Geocode)
	api.POST("/sessions", middleware.AdminKey(cfg.AdminKey), h.CreateSession)

	authed := api.Group("")
	authed.Use(middleware.Session(h.Sessions))
	{
		authed.GET("/sessions/current", h.CurrentSession)
		authed.DELETE("/sessions/current", h.CloseSession)
	}

	citizen := authed.Group("")
	citizen.Use(middleware.RequireRole(models.RoleCitizen))
	{
		citizen.POST("/live/start", h.LiveStart)
		citizen.POST("/live/stop", h.LiveStop)
		citizen.GET("/live", h.LiveStatus)
		citizen.GET("/live/ws", h.LiveWatch)

		citizen.GET("/draft", h.GetDraft)
		citizen.DELETE("/draft", h.ResetDraft)
		citizen.PUT("/draft/location", h.SetDraftLocation)
		citizen.POST("/draft/evidence", h.AddEvidence)
		citizen.GET("/draft/evidence/:id/media", h.EvidenceMedia)
		citizen.DELETE("/draft/evidence/:id", h.RemoveEvidence)
		citizen.POST("/draft/submit", h.SubmitDraft)
	}

	staff := authed.Group("")
	staff.Use(middleware.RequireRole(models.RoleInspector, models.RoleAdmin))
	{
		staff.GET("/complaints", h.ListComplaints)
		staff.GET("/complaints/stats", h.ComplaintStats)
		staff.POST("/complaints/refresh", h.RefreshComplaints)
		staff.PATCH("/complaints/:id/status", h.UpdateComplaintStatus)
		staff.GET("/media/:image_id", h.MediaImage)
		staff.DELETE("/tickets/:id", middleware.AdminKey(cfg.AdminKey), h.DeleteTicket)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
