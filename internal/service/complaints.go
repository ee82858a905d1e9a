package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mdms/backend/internal/models"
	"github.com/mdms/backend/internal/utils"
)

const (
	DateAll        = "all"
	DateToday      = "today"
	DateYesterday  = "yesterday"
	DateLast7Days  = "last7days"
	DateLast30Days = "last30days"
	DateSpecific   = "specific"

	StatusAll = "all"
)

var ErrInvalidFilter = errors.New("invalid complaint filter")

type GeoRadius struct {
	Lat      float64
	Lon      float64
	RadiusKm float64
}

type ComplaintFilter struct {
	Status       string
	DateRange    string
	SpecificDate time.Time
	IssueType    string
	Near         *GeoRadius
}

func (f ComplaintFilter) Validate() error {
	switch f.DateRange {
	case "", DateAll, DateToday, DateYesterday, DateLast7Days, DateLast30Days:
	case DateSpecific:
		if f.SpecificDate.IsZero() {
			return fmt.Errorf("%w: specific date range needs a date", ErrInvalidFilter)
		}
	default:
		return fmt.Errorf("%w: unknown date range %q", ErrInvalidFilter, f.DateRange)
	}
	if f.Near != nil && f.Near.RadiusKm <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidFilter)
	}
	return nil
}

// Flatten turns nested tickets into one routed complaint per sub-ticket,
// newest first.
func Flatten(tickets []models.Ticket, now time.Time) []models.FlatComplaint {
	out := make([]models.FlatComplaint, 0, len(tickets))
	for _, t := range tickets {
		for _, st := range t.SubTickets {
			out = append(out, flattenOne(t, st, now))
		}
	}
	SortNewestFirst(out)
	return out
}

func flattenOne(t models.Ticket, st models.SubTicket, now time.Time) models.FlatComplaint {
	label := NormalizeIssue(st.IssueType)
	route := Route(label)

	status := strings.TrimSpace(st.Status)
	if status == "" {
		status = models.StatusOpen
	}

	fc := models.FlatComplaint{
		ID:           st.SubID,
		TicketID:     t.TicketID,
		IssueType:    label,
		RawIssueType: st.IssueType,
		Department:   route.Department,
		RouteSource:  route.Source,
		SLAHours:     route.SLAHours,
		Confidence:   st.Confidence,
		ImageID:      st.ImageID,
		MediaType:    st.MediaType,
		CreatedAt:    st.CreatedAt,
		Status:       status,
		Latitude:     st.Latitude,
		Longitude:    st.Longitude,
		Area:         t.Area,
		District:     t.District,
	}
	if st.CreatedAt != nil {
		fc.TimestampMillis = st.CreatedAt.UnixMilli()
		fc.HoursElapsed = HoursElapsed(*st.CreatedAt, now)
	}
	fc.Breached = IsBreached(st.CreatedAt, route.SLAHours, now)
	return fc
}

// SortNewestFirst orders by creation time descending. Ties keep a stable
// order by id so repeated flattening yields identical output.
func SortNewestFirst(list []models.FlatComplaint) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].TimestampMillis == list[j].TimestampMillis {
			return list[i].ID < list[j].ID
		}
		return list[i].TimestampMillis > list[j].TimestampMillis
	})
}

func FilterComplaints(list []models.FlatComplaint, f ComplaintFilter, now time.Time) []models.FlatComplaint {
	out := make([]models.FlatComplaint, 0, len(list))
	for _, c := range list {
		if f.Status != "" && f.Status != StatusAll && c.Status != f.Status {
			continue
		}
		if f.IssueType != "" && f.IssueType != StatusAll && c.IssueType != NormalizeIssue(f.IssueType) {
			continue
		}
		if !matchesDate(c, f, now) {
			continue
		}
		if f.Near != nil && !withinRadius(c, *f.Near) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesDate(c models.FlatComplaint, f ComplaintFilter, now time.Time) bool {
	if f.DateRange == "" || f.DateRange == DateAll {
		return true
	}
	if c.CreatedAt == nil {
		return false
	}
	created := c.CreatedAt.In(now.Location())
	switch f.DateRange {
	case DateToday:
		return sameDay(created, now)
	case DateYesterday:
		return sameDay(created, now.AddDate(0, 0, -1))
	case DateLast7Days:
		return !created.Before(now.AddDate(0, 0, -7))
	case DateLast30Days:
		return !created.Before(now.AddDate(0, 0, -30))
	case DateSpecific:
		return sameDay(created, f.SpecificDate.In(now.Location()))
	default:
		return true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func withinRadius(c models.FlatComplaint, g GeoRadius) bool {
	if c.Latitude == nil || c.Longitude == nil {
		return false
	}
	return utils.WithinKm(g.Lat, g.Lon, *c.Latitude, *c.Longitude, g.RadiusKm)
}

// Paginate returns the 1-based page of list. Callers clamp page numbers;
// a page past the end is simply empty.
func Paginate[T any](list []T, pageSize, page int) []T {
	if pageSize <= 0 {
		return nil
	}
	start := (page - 1) * pageSize
	if start < 0 || start >= len(list) {
		return []T{}
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

type ComplaintStats struct {
	All        int `json:"all"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Breached   int `json:"breached"`
	Today      int `json:"today"`
	Yesterday  int `json:"yesterday"`
	Last7Days  int `json:"last7days"`
	Last30Days int `json:"last30days"`
}

func Stats(list []models.FlatComplaint, now time.Time) ComplaintStats {
	s := ComplaintStats{All: len(list)}
	for _, c := range list {
		switch c.Status {
		case models.StatusOpen:
			s.Open++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusResolved:
			s.Resolved++
		}
		if c.Breached && c.Status != models.StatusResolved {
			s.Breached++
		}
		if matchesDate(c, ComplaintFilter{DateRange: DateToday}, now) {
			s.Today++
		}
		if matchesDate(c, ComplaintFilter{DateRange: DateYesterday}, now) {
			s.Yesterday++
		}
		if matchesDate(c, ComplaintFilter{DateRange: DateLast7Days}, now) {
			s.Last7Days++
		}
		if matchesDate(c, ComplaintFilter{DateRange: DateLast30Days}, now) {
			s.Last30Days++
		}
	}
	return s
}
