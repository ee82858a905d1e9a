package remote

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/mdms/backend/internal/models"
)

// HTTPStore talks to the complaints API that owns tickets, sub-tickets and
// their media.
type HTTPStore struct {
	baseURL  string
	client   *resty.Client
	location *time.Location
	logger   zerolog.Logger
}

func NewHTTPStore(baseURL string, timeout time.Duration, loc *time.Location, logger zerolog.Logger) *HTTPStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if loc == nil {
		loc = time.Local
	}
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPStore{
		baseURL:  baseURL,
		client:   client,
		location: loc,
		logger:   logger.With().Str("component", "ticket_api").Logger(),
	}
}

type wireTicketList struct {
	Status  string       `json:"status"`
	Count   int          `json:"count"`
	Tickets []wireTicket `json:"tickets"`
}

type wireTicket struct {
	TicketID   string          `json:"ticket_id"`
	Latitude   *float64        `json:"latitude"`
	Longitude  *float64        `json:"longitude"`
	Area       *string         `json:"area"`
	District   *string         `json:"district"`
	Status     string          `json:"status"`
	SubTickets []wireSubTicket `json:"sub_tickets"`
}

type wireSubTicket struct {
	SubID      string   `json:"sub_id"`
	IssueType  *string  `json:"issue_type"`
	Authority  *string  `json:"authority"`
	Confidence *float64 `json:"confidence"`
	ImageID    *int64   `json:"image_id"`
	MediaType  *string  `json:"media_type"`
	CreatedAt  *string  `json:"created_at"`
	Status     *string  `json:"status"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type wireSubmitResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	DuplicatesFound int    `json:"duplicates_found"`
	TicketsCreated  []struct {
		TicketID string `json:"ticket_id"`
	} `json:"tickets_created"`
}

func (s *HTTPStore) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	var body wireTicketList
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/api/complaints/tickets")
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list tickets: http %s", resp.Status())
	}
	return convertTickets(body.Tickets, s.location), nil
}

func (s *HTTPStore) UpdateSubTicketStatus(ctx context.Context, subID string, status string, inspector string) error {
	form := map[string]string{"status": status}
	if inspector != "" {
		form["inspector_name"] = inspector
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		Patch("/api/complaints/sub-tickets/" + subID + "/status")
	if err != nil {
		return fmt.Errorf("update status of %s: %w", subID, err)
	}
	return statusError(resp, "update status of "+subID)
}

func (s *HTTPStore) DeleteTicket(ctx context.Context, ticketID string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Delete("/api/complaints/tickets/" + ticketID)
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", ticketID, err)
	}
	return statusError(resp, "delete ticket "+ticketID)
}

func (s *HTTPStore) ImageURL(imageID int64) string {
	return s.baseURL + "/api/complaints/images/" + strconv.FormatInt(imageID, 10)
}

func (s *HTTPStore) SubmitComplaint(ctx context.Context, items []models.EvidenceItem, lat, lon *float64) (SubmitResult, error) {
	req := s.client.R().SetContext(ctx)
	for _, it := range items {
		req.SetMultipartField("files", it.FileName, it.ContentType, bytes.NewReader(it.Data))
	}
	form := map[string]string{}
	if lat != nil && lon != nil {
		form["latitude"] = strconv.FormatFloat(*lat, 'f', -1, 64)
		form["longitude"] = strconv.FormatFloat(*lon, 'f', -1, 64)
	}
	var body wireSubmitResponse
	resp, err := req.SetFormData(form).SetResult(&body).Post("/api/complaints/batch")
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit complaint: %w", err)
	}
	if err := statusError(resp, "submit complaint"); err != nil {
		return SubmitResult{}, err
	}

	out := SubmitResult{
		Status:          body.Status,
		Message:         body.Message,
		DuplicatesFound: body.DuplicatesFound,
		TicketIDs:       []string{},
	}
	for _, t := range body.TicketsCreated {
		if t.TicketID != "" && t.TicketID != "N/A" {
			out.TicketIDs = append(out.TicketIDs, t.TicketID)
		}
	}
	s.logger.Info().Int("files", len(items)).Strs("tickets", out.TicketIDs).Msg("complaint submitted")
	return out, nil
}

func statusError(resp *resty.Response, op string) error {
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: http %s", op, resp.Status())
	}
	return nil
}

func convertTickets(in []wireTicket, loc *time.Location) []models.Ticket {
	out := make([]models.Ticket, 0, len(in))
	for _, wt := range in {
		t := models.Ticket{
			TicketID:   wt.TicketID,
			Area:       deref(wt.Area),
			District:   deref(wt.District),
			Latitude:   wt.Latitude,
			Longitude:  wt.Longitude,
			Status:     wt.Status,
			SubTickets: make([]models.SubTicket, 0, len(wt.SubTickets)),
		}
		for _, ws := range wt.SubTickets {
			t.SubTickets = append(t.SubTickets, models.SubTicket{
				SubID:      ws.SubID,
				IssueType:  deref(ws.IssueType),
				Authority:  deref(ws.Authority),
				Confidence: ws.Confidence,
				ImageID:    ws.ImageID,
				MediaType:  deref(ws.MediaType),
				CreatedAt:  ParseTimestamp(deref(ws.CreatedAt), loc),
				Status:     deref(ws.Status),
				Latitude:   ws.Latitude,
				Longitude:  ws.Longitude,
			})
		}
		out = append(out, t)
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts ISO timestamps with or without an offset; the
// ticket API emits naive local times. Unparseable input yields nil.
func ParseTimestamp(v string, loc *time.Location) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return &t
		}
	}
	return nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
