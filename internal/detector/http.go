package detector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const maxEventBytes = 1 << 20

// HTTPClient talks to the camera/detection service: an MJPEG live stream, an
// SSE event feed, capture retrieval and camera release.
type HTTPClient struct {
	BaseURL string
	client  *resty.Client
	stream  *resty.Client
	logger  zerolog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &HTTPClient{
		BaseURL: baseURL,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(1).
			SetRetryWaitTime(300 * time.Millisecond),
		// no timeout: the feed stays open for the life of the session
		stream: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "text/event-stream").
			SetHeader("Cache-Control", "no-cache"),
		logger: logger.With().Str("component", "detector").Logger(),
	}
}

func (h *HTTPClient) StreamURL(nonce string) string {
	return h.BaseURL + "/api/yolo/live?t=" + url.QueryEscape(nonce)
}

// Events opens the SSE feed and emits each event's data payload.
func (h *HTTPClient) Events(ctx context.Context) (<-chan []byte, error) {
	resp, err := h.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/api/yolo/events")
	if err != nil {
		return nil, fmt.Errorf("open event feed: %w", err)
	}
	body := resp.RawBody()
	if resp.IsError() {
		body.Close()
		return nil, fmt.Errorf("open event feed: http %s", resp.Status())
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)
		var data bytes.Buffer
		flush := func() bool {
			if data.Len() == 0 {
				return true
			}
			payload := append([]byte(nil), data.Bytes()...)
			data.Reset()
			select {
			case out <- payload:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			h.logger.Warn().Err(err).Msg("event feed read failed")
		}
		flush()
	}()
	return out, nil
}

// FetchCapture downloads the still referenced by a capture event. Only 2xx
// counts as success.
func (h *HTTPClient) FetchCapture(ctx context.Context, name string) ([]byte, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/yolo/capture/" + url.PathEscape(name))
	if err != nil {
		return nil, fmt.Errorf("fetch capture %s: %w", name, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch capture %s: http %s", name, resp.Status())
	}
	return resp.Body(), nil
}

func (h *HTTPClient) Stop(ctx context.Context) error {
	resp, err := h.client.R().
		SetContext(ctx).
		Get("/api/yolo/stop")
	if err != nil {
		return fmt.Errorf("stop camera: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("stop camera: http %s", resp.Status())
	}
	return nil
}
