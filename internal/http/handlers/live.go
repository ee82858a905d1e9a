package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/mdms/backend/internal/http/middleware"
	"github.com/mdms/backend/internal/live"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// @Summary Start live detection
// @Tags live
// @Produce json
// @Success 200 {object} live.Snapshot
// @Failure 409 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/live/start [post]
func (h *Handler) LiveStart(c *gin.Context) {
	s := middleware.CurrentSession(c)
	snap, err := s.Live.Start(c.Request.Context())
	switch {
	case errors.Is(err, live.ErrSessionActive):
		writeError(c, http.StatusConflict, "SESSION_ACTIVE", "A live session is already running", snap)
		return
	case errors.Is(err, live.ErrFeedUnavailable):
		writeError(c, http.StatusBadGateway, "DETECTOR_UNAVAILABLE", "Detection feed unavailable", err.Error())
		return
	case err != nil:
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Failed to start live session", err.Error())
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary Stop live detection
// @Description manual=true (default) also discards camera-captured evidence from the draft
// @Tags live
// @Produce json
// @Param manual query bool false "User-initiated cancel"
// @Success 200 {object} map[string]any
// @Router /api/live/stop [post]
func (h *Handler) LiveStop(c *gin.Context) {
	manual := true
	if raw := c.Query("manual"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "manual must be a boolean", raw)
			return
		}
		manual = v
	}
	s := middleware.CurrentSession(c)
	purged := s.Live.Stop(c.Request.Context(), manual)
	c.JSON(http.StatusOK, gin.H{
		"live":                s.Live.Snapshot(),
		"purged_camera_items": purged,
	})
}

func (h *Handler) LiveStatus(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentSession(c).Live.Snapshot())
}

// LiveWatch streams controller updates over a websocket, starting with the
// current snapshot.
func (h *Handler) LiveWatch(c *gin.Context) {
	s := middleware.CurrentSession(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.Live.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(gin.H{"type": "snapshot", "live": s.Live.Snapshot()}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(u); err != nil {
				h.Logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
