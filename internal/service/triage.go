package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mdms/backend/internal/metrics"
	"github.com/mdms/backend/internal/models"
	"github.com/mdms/backend/internal/remote"
)

var (
	ErrMutationFailed = errors.New("remote mutation failed")
	ErrInvalidStatus  = errors.New("invalid complaint status")
	ErrNotFound       = errors.New("complaint not found")
)

const DefaultRefreshInterval = 5 * time.Second

func ValidStatus(s string) bool {
	switch s {
	case models.StatusOpen, models.StatusInProgress, models.StatusResolved:
		return true
	}
	return false
}

type Page struct {
	Items      []models.FlatComplaint `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
}

// TriageView owns the flattened complaint collection for one inspector
// session. The remote store stays the source of truth: every successful
// Refresh overwrites local state.
type TriageView struct {
	store      remote.TicketStore
	clock      Clock
	logger     zerolog.Logger
	department string
	inspector  string

	mu          sync.RWMutex
	complaints  []models.FlatComplaint
	refreshedAt time.Time
}

// NewTriageView scopes the view to profile's department. Admins see every
// department.
func NewTriageView(store remote.TicketStore, profile models.Profile, clock Clock, logger zerolog.Logger) *TriageView {
	if clock == nil {
		clock = SystemClock
	}
	dept := profile.Department
	if profile.Role == models.RoleAdmin {
		dept = ""
	}
	return &TriageView{
		store:      store,
		clock:      clock,
		department: dept,
		inspector:  profile.Name,
		logger:     logger.With().Str("component", "triage").Str("department", dept).Logger(),
		complaints: []models.FlatComplaint{},
	}
}

func (v *TriageView) Department() string {
	return v.department
}

func (v *TriageView) Refresh(ctx context.Context) error {
	start := time.Now()
	tickets, err := v.store.ListTickets(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh complaints: %w", err)
	}
	now := v.clock()
	all := Flatten(tickets, now)

	visible := make([]models.FlatComplaint, 0, len(all))
	breached := 0
	for _, c := range all {
		if v.department != "" && !strings.EqualFold(c.Department, v.department) {
			continue
		}
		if c.Breached && c.Status != models.StatusResolved {
			breached++
		}
		visible = append(visible, c)
	}

	v.mu.Lock()
	v.complaints = visible
	v.refreshedAt = now
	v.mu.Unlock()

	deptLabel := v.department
	if deptLabel == "" {
		deptLabel = "all"
	}
	metrics.BreachedComplaints.WithLabelValues(deptLabel).Set(float64(breached))
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDurationSeconds.Observe(time.Since(start).Seconds())
	v.logger.Debug().Int("tickets", len(tickets)).Int("complaints", len(visible)).Msg("complaints refreshed")
	return nil
}

// Complaints returns a copy of the current collection, newest first.
func (v *TriageView) Complaints() []models.FlatComplaint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.FlatComplaint, len(v.complaints))
	copy(out, v.complaints)
	return out
}

func (v *TriageView) RefreshedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.refreshedAt
}

func (v *TriageView) Query(f ComplaintFilter, page, pageSize int) (Page, error) {
	if err := f.Validate(); err != nil {
		return Page{}, err
	}
	filtered := FilterComplaints(v.Complaints(), f, v.clock())
	totalPages := TotalPages(len(filtered), pageSize)
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}
	return Page{
		Items:      Paginate(filtered, pageSize, page),
		Total:      len(filtered),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (v *TriageView) Stats() ComplaintStats {
	return Stats(v.Complaints(), v.clock())
}

// UpdateStatus persists the new status remotely and only then applies it to
// the local collection.
func (v *TriageView) UpdateStatus(ctx context.Context, id, status string) (models.FlatComplaint, error) {
	if !ValidStatus(status) {
		return models.FlatComplaint{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, ok := v.find(id); !ok {
		return models.FlatComplaint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := v.store.UpdateSubTicketStatus(ctx, id, status, v.inspector); err != nil {
		metrics.MutationsTotal.WithLabelValues("status", "error").Inc()
		v.logger.Warn().Err(err).Str("complaint_id", id).Str("status", status).Msg("status update failed")
		return models.FlatComplaint{}, fmt.Errorf("%w: %v", ErrMutationFailed, err)
	}
	metrics.MutationsTotal.WithLabelValues("status", "ok").Inc()

	v.mu.Lock()
	defer v.mu.Unlock()
	var updated models.FlatComplaint
	for i := range v.complaints {
		if v.complaints[i].ID == id {
			v.complaints[i].Status = status
			updated = v.complaints[i]
			break
		}
	}
	SortNewestFirst(v.complaints)
	v.logger.Info().Str("complaint_id", id).Str("status", status).Str("inspector", v.inspector).Msg("status updated")
	return updated, nil
}

// DeleteTicket removes a ticket remotely, then drops its complaints locally.
func (v *TriageView) DeleteTicket(ctx context.Context, ticketID string) error {
	if err := v.store.DeleteTicket(ctx, ticketID); err != nil {
		metrics.MutationsTotal.WithLabelValues("delete", "error").Inc()
		v.logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("ticket delete failed")
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
		}
		return fmt.Errorf("%w: %v", ErrMutationFailed, err)
	}
	metrics.MutationsTotal.WithLabelValues("delete", "ok").Inc()

	v.mu.Lock()
	kept := v.complaints[:0]
	for _, c := range v.complaints {
		if c.TicketID != ticketID {
			kept = append(kept, c)
		}
	}
	v.complaints = kept
	v.mu.Unlock()
	v.logger.Info().Str("ticket_id", ticketID).Msg("ticket deleted")
	return nil
}

func (v *TriageView) find(id string) (models.FlatComplaint, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, c := range v.complaints {
		if c.ID == id {
			return c, true
		}
	}
	return models.FlatComplaint{}, false
}

// Poller refreshes a TriageView on a fixed interval until stopped.
type Poller struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartPolling refreshes immediately, then every interval. Refresh failures
// are logged and the loop keeps going.
func (v *TriageView) StartPolling(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
				v.logger.Warn().Err(err).Msg("periodic refresh failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return p
}

// Stop cancels the loop and waits for it to exit. Safe to call twice.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.once.Do(p.cancel)
	<-p.done
}
