package remote

import (
	"context"
	"errors"

	"github.com/mdms/backend/internal/models"
)

var ErrNotFound = errors.New("remote resource not found")

// TicketStore is the system of record for tickets and their status.
type TicketStore interface {
	ListTickets(ctx context.Context) ([]models.Ticket, error)
	UpdateSubTicketStatus(ctx context.Context, subID string, status string, inspector string) error
	DeleteTicket(ctx context.Context, ticketID string) error
}

type MediaResolver interface {
	ImageURL(imageID int64) string
}

type SubmitResult struct {
	Status          string   `json:"status"`
	Message         string   `json:"message,omitempty"`
	DuplicatesFound int      `json:"duplicates_found,omitempty"`
	TicketIDs       []string `json:"ticket_ids"`
}

type ComplaintSubmitter interface {
	SubmitComplaint(ctx context.Context, items []models.EvidenceItem, lat, lon *float64) (SubmitResult, error)
}
