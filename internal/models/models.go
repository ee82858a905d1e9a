package models

import "time"

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

const (
	RoleCitizen   = "CITIZEN"
	RoleInspector = "INSPECTOR"
	RoleAdmin     = "ADMIN"
)

type Ticket struct {
	TicketID   string      `json:"ticket_id"`
	Area       string      `json:"area"`
	District   string      `json:"district"`
	Latitude   *float64    `json:"latitude"`
	Longitude  *float64    `json:"longitude"`
	Status     string      `json:"status"`
	SubTickets []SubTicket `json:"sub_tickets"`
}

type SubTicket struct {
	SubID      string     `json:"sub_id"`
	IssueType  string     `json:"issue_type"`
	Authority  string     `json:"authority,omitempty"`
	Confidence *float64   `json:"confidence"`
	ImageID    *int64     `json:"image_id"`
	MediaType  string     `json:"media_type"`
	CreatedAt  *time.Time `json:"created_at"`
	Status     string     `json:"status"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
}

// FlatComplaint is the triage row derived from one sub-ticket. It is
// recomputed on every refresh and never persisted.
type FlatComplaint struct {
	ID              string     `json:"id"`
	TicketID        string     `json:"ticket_id"`
	IssueType       string     `json:"issue_type"`
	RawIssueType    string     `json:"raw_issue_type"`
	Department      string     `json:"department"`
	RouteSource     string     `json:"route_source"`
	SLAHours        int        `json:"sla_hours"`
	Confidence      *float64   `json:"confidence"`
	ImageID         *int64     `json:"image_id"`
	MediaType       string     `json:"media_type"`
	CreatedAt       *time.Time `json:"created_at"`
	TimestampMillis int64      `json:"timestamp"`
	HoursElapsed    float64    `json:"hours_elapsed"`
	Breached        bool       `json:"sla_breached"`
	Status          string     `json:"status"`
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	Area            string     `json:"area"`
	District        string     `json:"district"`
}

type DetectionEvent struct {
	Timestamp        time.Time `json:"time"`
	Message          string    `json:"message"`
	IsHeartbeat      bool      `json:"heartbeat,omitempty"`
	CaptureReference string    `json:"capture_filename,omitempty"`
}

type EvidenceKind string

const (
	KindImage EvidenceKind = "image"
	KindVideo EvidenceKind = "video"
)

type EvidenceSource string

const (
	SourceUpload EvidenceSource = "upload"
	SourceCamera EvidenceSource = "camera"
)

type EvidenceItem struct {
	ID          string         `json:"id"`
	MediaURL    string         `json:"media_url"`
	Data        []byte         `json:"-"`
	ContentType string         `json:"content_type"`
	FileName    string         `json:"file_name"`
	Kind        EvidenceKind   `json:"kind"`
	Source      EvidenceSource `json:"source"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	AddedAt     time.Time      `json:"added_at"`
}

// Profile is produced by the external identity provider on login.
type Profile struct {
	Role       string `json:"role" validate:"required,oneof=CITIZEN INSPECTOR ADMIN"`
	Department string `json:"department" validate:"required_if=Role INSPECTOR"`
	Name       string `json:"name" validate:"required"`
}
