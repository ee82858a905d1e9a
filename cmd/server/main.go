package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mdms/backend/internal/config"
	"github.com/mdms/backend/internal/db"
	"github.com/mdms/backend/internal/detector"
	"github.com/mdms/backend/internal/geocode"
	httpapi "github.com/mdms/backend/internal/http"
	"github.com/mdms/backend/internal/http/handlers"
	"github.com/mdms/backend/internal/live"
	"github.com/mdms/backend/internal/remote"
	"github.com/mdms/backend/internal/service"
	"github.com/mdms/backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "mdms-triage").Logger()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone")
	}
	clock := service.ClockIn(loc)

	ticketAPI := remote.NewHTTPStore(cfg.TicketsAPIURL, cfg.RequestTimeout, loc, logger)

	h := &handlers.Handler{
		Media:     ticketAPI,
		Submitter: ticketAPI,
		Validator: validator.New(),
		Logger:    logger,
		PageSize:  cfg.PageSize,
		Location:  loc,
		Clock:     clock,
		MaxUpload: cfg.MaxUploadSizeMB << 20,
		Geocoder: &geocode.NominatimGeocoder{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
		},
	}

	var store remote.TicketStore = ticketAPI
	if cfg.DatabaseURL != "" {
		dbStore, err := db.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer dbStore.Close()
		store = dbStore
		h.Images = dbStore
		h.Pinger = dbStore
		logger.Info().Msg("reading tickets from database")
	} else {
		logger.Info().Str("url", cfg.TicketsAPIURL).Msg("reading tickets from ticket API")
	}

	var det live.Detector
	if cfg.DetectorURL == "" {
		det = detector.Mock{Interval: time.Second, CaptureEvery: cfg.MockCaptureEvery}
		logger.Info().Msg("using mock detector")
	} else {
		det = detector.NewHTTPClient(cfg.DetectorURL, cfg.RequestTimeout, logger)
	}

	h.Sessions = session.NewRegistry(session.Deps{
		Detector:        det,
		Store:           store,
		RefreshInterval: cfg.RefreshInterval,
		Clock:           clock,
		Logger:          logger,
	})

	router := httpapi.Router(cfg, h)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	h.Sessions.CloseAll(ctxShutdown)
	logger.Info().Msg("server stopped")
}
