package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/mdms/backend/internal/utils"
)

var mockLabels = []string{"potholes", "water_puddles", "garbage_overflow", "open_manhole", "road_crack", "street_debris"}

// Mock is a camera-less detector for local development. Every third tick is
// a heartbeat; every CaptureEvery-th detection carries a capture reference.
type Mock struct {
	Interval     time.Duration
	CaptureEvery int
}

func (m Mock) StreamURL(nonce string) string {
	return "mock://live?t=" + nonce
}

func (m Mock) Events(ctx context.Context) (<-chan []byte, error) {
	interval := m.Interval
	if interval <= 0 {
		interval = time.Second
	}
	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		detections := 0
		for tick := 1; ; tick++ {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				payload := m.event(tick, &detections, now)
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m Mock) event(tick int, detections *int, now time.Time) []byte {
	ts := float64(now.UnixNano()) / 1e9
	if tick%3 == 0 {
		b, _ := json.Marshal(map[string]any{"heartbeat": true, "time": ts})
		return b
	}
	*detections++
	key := strconv.Itoa(tick)
	h := utils.HashStringToUint64(key)
	label := mockLabels[utils.PickIndex(key, len(mockLabels))]
	confidence := 0.55 + float64(h%40)/100

	ev := map[string]any{
		"time":    ts,
		"message": fmt.Sprintf("Detected %s (%.2f)", label, confidence),
	}
	if m.CaptureEvery > 0 && *detections%m.CaptureEvery == 0 {
		ev["capture_filename"] = fmt.Sprintf("capture_%d_%s.png", tick, label)
	}
	b, _ := json.Marshal(ev)
	return b
}

// FetchCapture renders a small solid-colour PNG derived from the name.
func (m Mock) FetchCapture(ctx context.Context, name string) ([]byte, error) {
	if !strings.HasPrefix(name, "capture_") {
		return nil, fmt.Errorf("fetch capture %s: not found", name)
	}
	h := utils.HashStringToUint64(name)
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	c := color.RGBA{R: uint8(h), G: uint8(h >> 8), B: uint8(h >> 16), A: 255}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m Mock) Stop(ctx context.Context) error {
	return nil
}
