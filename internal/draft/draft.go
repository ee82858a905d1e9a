package draft

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdms/backend/internal/models"
)

var (
	ErrItemNotFound  = errors.New("evidence item not found")
	ErrEmptyDraft    = errors.New("draft has no evidence")
	ErrUnsupported   = errors.New("unsupported media type")
	ErrEmptyEvidence = errors.New("evidence payload is empty")
)

// Location is the reporter's position plus whatever the reverse geocoder
// resolved for it.
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Area      string   `json:"area,omitempty"`
	District  string   `json:"district,omitempty"`
}

// Draft is the citizen's not-yet-submitted complaint. It is the only writer
// of its evidence collection.
type Draft struct {
	mu       sync.RWMutex
	items    []models.EvidenceItem
	location Location
	now      func() time.Time
}

func New() *Draft {
	return &Draft{now: time.Now}
}

func (d *Draft) SetLocation(loc Location) {
	d.mu.Lock()
	d.location = loc
	d.mu.Unlock()
}

func (d *Draft) Location() Location {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.location
}

// AddUpload stores a user-selected file. Kind follows the content type,
// falling back to the file extension.
func (d *Draft) AddUpload(fileName, contentType string, data []byte) (models.EvidenceItem, error) {
	kind, ok := kindOf(fileName, contentType)
	if !ok {
		return models.EvidenceItem{}, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}
	return d.add(fileName, contentType, kind, models.SourceUpload, data)
}

// AddCamera stores a frame captured by the live detector, stamped with the
// current draft location.
func (d *Draft) AddCamera(fileName string, data []byte) (models.EvidenceItem, error) {
	contentType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(fileName), ".png") {
		contentType = "image/png"
	}
	return d.add(fileName, contentType, models.KindImage, models.SourceCamera, data)
}

func (d *Draft) add(fileName, contentType string, kind models.EvidenceKind, source models.EvidenceSource, data []byte) (models.EvidenceItem, error) {
	if len(data) == 0 {
		return models.EvidenceItem{}, ErrEmptyEvidence
	}
	id := uuid.NewString()
	if fileName == "" {
		fileName = id
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	item := models.EvidenceItem{
		ID:          id,
		MediaURL:    MediaURL(id),
		Data:        data,
		ContentType: contentType,
		FileName:    fileName,
		Kind:        kind,
		Source:      source,
		Latitude:    d.location.Latitude,
		Longitude:   d.location.Longitude,
		AddedAt:     d.now().UTC(),
	}
	d.items = append(d.items, item)
	return item, nil
}

func (d *Draft) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, it := range d.items {
		if it.ID == id {
			d.items = append(d.items[:i], d.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// PurgeCamera drops every camera-sourced item and reports how many went.
func (d *Draft) PurgeCamera() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.items[:0]
	removed := 0
	for _, it := range d.items {
		if it.Source == models.SourceCamera {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(d.items); i++ {
		d.items[i] = models.EvidenceItem{}
	}
	d.items = kept
	return removed
}

// Items returns a copy of the evidence in insertion order.
func (d *Draft) Items() []models.EvidenceItem {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.EvidenceItem, len(d.items))
	copy(out, d.items)
	return out
}

func (d *Draft) Get(id string) (models.EvidenceItem, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, it := range d.items {
		if it.ID == id {
			return it, nil
		}
	}
	return models.EvidenceItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// Reset clears evidence and location, e.g. after a successful submit.
func (d *Draft) Reset() {
	d.mu.Lock()
	d.items = nil
	d.location = Location{}
	d.mu.Unlock()
}

func MediaURL(id string) string {
	return "/api/draft/evidence/" + id + "/media"
}

var videoExt = map[string]bool{".mp4": true, ".mov": true, ".webm": true, ".avi": true, ".mkv": true}
var imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true}

func kindOf(fileName, contentType string) (models.EvidenceKind, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.KindImage, true
	case strings.HasPrefix(ct, "video/"):
		return models.KindVideo, true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case imageExt[ext]:
		return models.KindImage, true
	case videoExt[ext]:
		return models.KindVideo, true
	}
	return "", false
}
