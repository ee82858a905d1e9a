package live

import (
	"context"
	"fmt"
	"time"

	"github.com/mdms/backend/internal/metrics"
)

// consume is the single reader of a session's feed. Events are handled in
// arrival order; capture handling runs inline so at most one capture is in
// flight per session.
func (c *Controller) consume(ctx context.Context, gen uint64, events <-chan []byte, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				next, err := c.reopen(ctx, gen)
				if err != nil {
					if ctx.Err() == nil {
						c.logger.Warn().Err(err).Uint64("session_gen", gen).Msg("detection feed lost, closing session")
						c.stop(context.Background(), gen, false, false)
					}
					return
				}
				events = next
				continue
			}
			c.handle(ctx, gen, payload)
		}
	}
}

// reopen reconnects a dropped feed with doubling backoff. It gives up once
// the retries are spent, ctx is cancelled or the session generation moved on.
func (c *Controller) reopen(ctx context.Context, gen uint64) (<-chan []byte, error) {
	backoff := c.feedBackoff
	var lastErr error
	for attempt := 1; attempt <= c.feedRetries; attempt++ {
		c.logger.Warn().Int("attempt", attempt).Dur("backoff", backoff).Msg("detection feed dropped, reconnecting")
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return nil, fmt.Errorf("session %d superseded", gen)
		}

		events, err := c.detector.Events(ctx)
		if err == nil {
			metrics.FeedReconnectsTotal.WithLabelValues("ok").Inc()
			c.logger.Info().Int("attempt", attempt).Msg("detection feed reconnected")
			return events, nil
		}
		metrics.FeedReconnectsTotal.WithLabelValues("failed").Inc()
		lastErr = err
		backoff *= 2
		if backoff > maxFeedBackoff {
			backoff = maxFeedBackoff
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrFeedUnavailable, c.feedRetries, lastErr)
}

func (c *Controller) handle(ctx context.Context, gen uint64, payload []byte) {
	ev, err := DecodeEvent(payload)
	if err != nil {
		metrics.DetectionEventsTotal.WithLabelValues("malformed").Inc()
		c.logger.Debug().Err(err).Msg("dropping detection event")
		return
	}
	if ev.IsHeartbeat {
		metrics.DetectionEventsTotal.WithLabelValues("heartbeat").Inc()
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now().UTC()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.log.Prepend(ev)
	c.mu.Unlock()
	metrics.DetectionEventsTotal.WithLabelValues("logged").Inc()
	c.publish(Update{Type: "event", State: c.State(), Event: &ev})

	if ev.CaptureReference != "" {
		c.capture(ctx, gen, ev.CaptureReference)
	}
}

func (c *Controller) capture(ctx context.Context, gen uint64, name string) {
	c.mu.Lock()
	if gen != c.gen || c.capturing || c.state != StateStreaming {
		c.mu.Unlock()
		metrics.CapturesTotal.WithLabelValues("ignored").Inc()
		return
	}
	c.capturing = true
	c.state = StateCapturing
	c.mu.Unlock()
	c.publish(Update{Type: "state", State: StateCapturing})

	data, fetchErr := c.detector.FetchCapture(ctx, name)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		metrics.CapturesTotal.WithLabelValues("stale").Inc()
		c.logger.Debug().Str("capture", name).Msg("discarding capture for closed session")
		return
	}
	if fetchErr == nil {
		// Must land under c.mu: a manual stop purges after this, never before.
		item, err := c.evidence.AddCamera(name, data)
		if err == nil {
			c.capturing = false
			c.mu.Unlock()
			metrics.CapturesTotal.WithLabelValues("ok").Inc()
			c.logger.Info().Str("capture", name).Str("evidence_id", item.ID).Msg("capture stored")
			c.publish(Update{Type: "evidence", State: StateCapturing, Evidence: &item})
			c.stop(context.Background(), gen, false, false)
			return
		}
		fetchErr = err
	}
	c.capturing = false
	c.state = StateStreaming
	c.mu.Unlock()

	metrics.CapturesTotal.WithLabelValues("failed").Inc()
	c.logger.Warn().Err(fetchErr).Str("capture", name).Msg("capture fetch failed, still streaming")
	c.publish(Update{Type: "state", State: StateStreaming})
}
