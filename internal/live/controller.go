package live

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdms/backend/internal/metrics"
	"github.com/mdms/backend/internal/models"
)

type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateStreaming State = "streaming"
	StateCapturing State = "capturing"
	StateClosing   State = "closing"
)

var (
	ErrSessionActive   = errors.New("live session already active")
	ErrFeedUnavailable = errors.New("detection feed unavailable")
)

const (
	releaseTimeout = 5 * time.Second

	defaultFeedRetries = 5
	defaultFeedBackoff = 250 * time.Millisecond
	maxFeedBackoff     = 4 * time.Second
)

// Detector is the external camera and detection service.
type Detector interface {
	// StreamURL returns the media stream location; nonce must differ per call.
	StreamURL(nonce string) string
	// Events opens the pushed event feed. The channel closes when the feed
	// ends or ctx is cancelled.
	Events(ctx context.Context) (<-chan []byte, error)
	FetchCapture(ctx context.Context, name string) ([]byte, error)
	// Stop releases the camera. Idempotent.
	Stop(ctx context.Context) error
}

// EvidenceSink is the draft that receives captured frames.
type EvidenceSink interface {
	AddCamera(fileName string, data []byte) (models.EvidenceItem, error)
	PurgeCamera() int
}

type Snapshot struct {
	State           State                   `json:"state"`
	StreamURL       string                  `json:"stream_url,omitempty"`
	StartedAt       *time.Time              `json:"started_at,omitempty"`
	CaptureInFlight bool                    `json:"capture_in_flight"`
	Events          []models.DetectionEvent `json:"events"`
}

// Update is pushed to subscribers on every processed event and state change.
type Update struct {
	Type     string                 `json:"type"`
	State    State                  `json:"state"`
	Event    *models.DetectionEvent `json:"event,omitempty"`
	Evidence *models.EvidenceItem   `json:"evidence,omitempty"`
}

// Controller drives one live detection session:
// Idle -> Starting -> Streaming -> {Capturing -> Streaming | Closing} -> Idle.
type Controller struct {
	detector Detector
	evidence EvidenceSink
	logger   zerolog.Logger
	now      func() time.Time

	// feedRetries bounds reconnect attempts after the feed drops; the wait
	// starts at feedBackoff and doubles up to maxFeedBackoff.
	feedRetries int
	feedBackoff time.Duration

	mu        sync.Mutex
	state     State
	gen       uint64
	streamURL string
	startedAt time.Time
	capturing bool
	log       EventLog
	cancel    context.CancelFunc
	done      chan struct{}

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

func NewController(detector Detector, evidence EvidenceSink, logger zerolog.Logger) *Controller {
	return &Controller{
		detector: detector,
		evidence: evidence,
		logger:   logger.With().Str("component", "live").Logger(),
		now:      time.Now,
		state:    StateIdle,

		feedRetries: defaultFeedRetries,
		feedBackoff: defaultFeedBackoff,
		subs:     map[int]chan Update{},
	}
}

// Start opens a new session. It fails with ErrSessionActive unless Idle.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return c.Snapshot(), ErrSessionActive
	}
	c.gen++
	gen := c.gen
	c.state = StateStarting
	c.startedAt = c.now()
	c.streamURL = c.detector.StreamURL(strconv.FormatInt(c.startedAt.UnixNano(), 10))
	c.log.Clear()
	c.mu.Unlock()

	// The feed outlives the request that started it.
	feedCtx, cancel := context.WithCancel(context.Background())
	events, err := c.detector.Events(feedCtx)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		cancel()
		return c.Snapshot(), nil
	}
	if err != nil {
		c.state = StateIdle
		c.streamURL = ""
		c.mu.Unlock()
		cancel()
		c.logger.Warn().Err(err).Msg("detection feed unavailable")
		c.releaseCamera()
		c.publish(Update{Type: "state", State: StateIdle})
		return c.Snapshot(), fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	done := make(chan struct{})
	c.state = StateStreaming
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	metrics.LiveSessionsActive.Inc()
	go c.consume(feedCtx, gen, events, done)
	c.logger.Info().Uint64("session_gen", gen).Msg("live session started")
	c.publish(Update{Type: "state", State: StateStreaming})
	return c.Snapshot(), nil
}

// Stop closes the session. manual=true also purges camera evidence from the
// draft and reports how many items went. Stopping an idle session is a no-op.
func (c *Controller) Stop(ctx context.Context, manual bool) int {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	return c.stop(ctx, gen, manual, true)
}

// stop closes the session identified by gen. wait is false when called from
// the consumer itself.
func (c *Controller) stop(ctx context.Context, gen uint64, manual, wait bool) int {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosing || gen != c.gen {
		c.mu.Unlock()
		return 0
	}
	prev := c.state
	c.state = StateClosing
	c.gen++
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wait && done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	c.releaseCamera()

	// Purge while still Closing: a Start can only follow once Idle.
	purged := 0
	if manual {
		purged = c.evidence.PurgeCamera()
	}

	c.mu.Lock()
	c.streamURL = ""
	c.capturing = false
	c.log.Clear()
	c.state = StateIdle
	c.mu.Unlock()

	if prev == StateStreaming || prev == StateCapturing {
		metrics.LiveSessionsActive.Dec()
	}
	c.logger.Info().Bool("manual", manual).Int("purged_camera_items", purged).Msg("live session stopped")
	c.publish(Update{Type: "state", State: StateIdle})
	return purged
}

func (c *Controller) releaseCamera() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := c.detector.Stop(ctx); err != nil {
		metrics.CameraReleaseErrorTotal.Inc()
		c.logger.Warn().Err(err).Msg("camera release failed")
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:           c.state,
		StreamURL:       c.streamURL,
		CaptureInFlight: c.capturing,
		Events:          c.log.Entries(),
	}
	if c.state != StateIdle {
		t := c.startedAt
		s.StartedAt = &t
	}
	return s
}

// Subscribe registers a watcher. Slow watchers miss updates rather than
// block the consumer. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 32)
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) publish(u Update) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
