package live

import "github.com/mdms/backend/internal/models"

// MaxLogEntries bounds the per-session detection log.
const MaxLogEntries = 50

// EventLog keeps the most recent processed events, newest first. It is not
// safe for concurrent use; the controller guards it.
type EventLog struct {
	entries []models.DetectionEvent
}

func (l *EventLog) Prepend(ev models.DetectionEvent) {
	n := len(l.entries) + 1
	if n > MaxLogEntries {
		n = MaxLogEntries
	}
	next := make([]models.DetectionEvent, n)
	next[0] = ev
	copy(next[1:], l.entries)
	l.entries = next
}

func (l *EventLog) Entries() []models.DetectionEvent {
	out := make([]models.DetectionEvent, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Len() int {
	return len(l.entries)
}

func (l *EventLog) Clear() {
	l.entries = nil
}
