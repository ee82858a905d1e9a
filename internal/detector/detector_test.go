package detector

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdms/backend/internal/live"
)

func collect(t *testing.T, ch <-chan []byte) []string {
	t.Helper()
	var out []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(b))
		case <-timeout:
			t.Fatal("feed did not close")
		}
	}
}

func TestEventsParsesSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/yolo/events", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, ": keepalive\n\n")
		_, _ = io.WriteString(w, "data: {\"heartbeat\": true}\n\n")
		_, _ = io.WriteString(w, "event: detection\ndata: {\"message\":\n")
		_, _ = io.WriteString(w, "data: \"Detected potholes\"}\n\n")
		_, _ = io.WriteString(w, "data: {\"message\": \"tail\"}")
	}))
	defer srv.Close()

	h := NewHTTPClient(srv.URL, time.Second, zerolog.Nop())
	ch, err := h.Events(context.Background())
	require.NoError(t, err)

	got := collect(t, ch)
	require.Len(t, got, 3)
	assert.Equal(t, `{"heartbeat": true}`, got[0])
	assert.Equal(t, "{\"message\":\n\"Detected potholes\"}", got[1])
	assert.Equal(t, `{"message": "tail"}`, got[2])

	ev, err := live.DecodeEvent([]byte(got[1]))
	require.NoError(t, err)
	assert.Equal(t, "Detected potholes", ev.Message)
}

func TestEventsRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second, zerolog.Nop()).Events(context.Background())
	assert.Error(t, err)
}

func TestEventsClosesOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"message\": \"first\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewHTTPClient(srv.URL, time.Second, zerolog.Nop()).Events(ctx)
	require.NoError(t, err)

	select {
	case b := <-ch:
		assert.Equal(t, `{"message": "first"}`, string(b))
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	cancel()
	collect(t, ch)
}

func TestFetchCaptureAndStop(t *testing.T) {
	var stopped atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/yolo/capture/cap_1.jpg":
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/api/yolo/stop":
			stopped.Store(true)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHTTPClient(srv.URL+"/", time.Second, zerolog.Nop())
	data, err := h.FetchCapture(context.Background(), "cap_1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = h.FetchCapture(context.Background(), "missing.jpg")
	assert.Error(t, err)

	require.NoError(t, h.Stop(context.Background()))
	assert.True(t, stopped.Load())
}

func TestStreamURLCarriesNonce(t *testing.T) {
	h := NewHTTPClient("http://camera:8000/", time.Second, zerolog.Nop())
	assert.Equal(t, "http://camera:8000/api/yolo/live?t=123", h.StreamURL("123"))
}

func TestMockEmitsHeartbeatsAndCaptures(t *testing.T) {
	m := Mock{Interval: 2 * time.Millisecond, CaptureEvery: 2}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := m.Events(ctx)
	require.NoError(t, err)

	var heartbeats, captures int
	var capture string
	for i := 0; i < 9; i++ {
		ev, err := live.DecodeEvent(<-ch)
		require.NoError(t, err)
		if ev.IsHeartbeat {
			heartbeats++
			continue
		}
		assert.True(t, strings.HasPrefix(ev.Message, "Detected "))
		if ev.CaptureReference != "" {
			captures++
			capture = ev.CaptureReference
		}
	}
	assert.Equal(t, 3, heartbeats)
	assert.Equal(t, 3, captures)

	data, err := m.FetchCapture(ctx, capture)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)

	_, err = m.FetchCapture(ctx, "other.png")
	assert.Error(t, err)
}
