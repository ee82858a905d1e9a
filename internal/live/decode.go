package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mdms/backend/internal/models"
)

var ErrMalformedEvent = errors.New("malformed detection event")

// maxEventSeconds keeps epoch seconds convertible to nanoseconds in an int64.
const maxEventSeconds = float64(math.MaxInt64 / 1e9)

type wireEvent struct {
	Heartbeat       bool     `json:"heartbeat"`
	Time            *float64 `json:"time"`
	Message         string   `json:"message"`
	CaptureFilename string   `json:"capture_filename"`
}

// DecodeEvent parses one feed payload. Time is epoch seconds with an optional
// fraction; a missing time leaves Timestamp zero for the caller to fill.
func DecodeEvent(payload []byte) (models.DetectionEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return models.DetectionEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if len(fields) == 0 {
		return models.DetectionEvent{}, fmt.Errorf("%w: empty payload", ErrMalformedEvent)
	}
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return models.DetectionEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	ev := models.DetectionEvent{
		Message:          w.Message,
		IsHeartbeat:      w.Heartbeat,
		CaptureReference: strings.TrimSpace(w.CaptureFilename),
	}
	if w.Time != nil {
		if math.IsNaN(*w.Time) || math.IsInf(*w.Time, 0) || *w.Time < 0 || *w.Time > maxEventSeconds {
			return models.DetectionEvent{}, fmt.Errorf("%w: bad time %v", ErrMalformedEvent, *w.Time)
		}
		sec, frac := math.Modf(*w.Time)
		ev.Timestamp = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return ev, nil
}
