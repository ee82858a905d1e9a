package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mdms/backend/internal/models"
	"github.com/mdms/backend/internal/remote"
)

// Store reads the complaints schema directly (tickets, sub_tickets,
// complaint_images) when the service is co-located with the ticket database.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const listTicketsQuery = `
	SELECT t.ticket_id, t.area, t.district, t.latitude, t.longitude, t.status,
		st.sub_id, st.issue_type, st.authority, st.status,
		COALESCE(st.created_at, (SELECT MIN(ci.created_at) FROM complaint_images ci WHERE ci.sub_id = st.sub_id)),
		img.id, img.media_type, img.confidence,
		gps.latitude, gps.longitude
	FROM tickets t
	JOIN sub_tickets st ON st.ticket_id = t.ticket_id
	LEFT JOIN LATERAL (
		SELECT ci.id, ci.media_type, ci.confidence FROM complaint_images ci
		WHERE ci.sub_id = st.sub_id ORDER BY ci.id ASC LIMIT 1
	) img ON TRUE
	LEFT JOIN LATERAL (
		SELECT ci.latitude, ci.longitude FROM complaint_images ci
		WHERE ci.sub_id = st.sub_id AND ci.latitude IS NOT NULL AND ci.longitude IS NOT NULL
		ORDER BY ci.id ASC LIMIT 1
	) gps ON TRUE
	ORDER BY t.ticket_id ASC, st.sub_id ASC`

func (s *Store) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.Pool.Query(ctx, listTicketsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out   []models.Ticket
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			t         models.Ticket
			st        models.SubTicket
			area      *string
			district  *string
			tStatus   *string
			issueType *string
			authority *string
			stStatus  *string
			createdAt *time.Time
			mediaType *string
		)
		if err := rows.Scan(
			&t.TicketID, &area, &district, &t.Latitude, &t.Longitude, &tStatus,
			&st.SubID, &issueType, &authority, &stStatus,
			&createdAt,
			&st.ImageID, &mediaType, &st.Confidence,
			&st.Latitude, &st.Longitude,
		); err != nil {
			return nil, err
		}
		st.IssueType = derefString(issueType)
		st.Authority = derefString(authority)
		st.Status = derefString(stStatus)
		st.MediaType = derefString(mediaType)
		st.CreatedAt = createdAt

		pos, ok := index[t.TicketID]
		if !ok {
			t.Area = derefString(area)
			t.District = derefString(district)
			t.Status = derefString(tStatus)
			out = append(out, t)
			pos = len(out) - 1
			index[t.TicketID] = pos
		}
		out[pos].SubTickets = append(out[pos].SubTickets, st)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSubTicketStatus(ctx context.Context, subID string, status string, inspector string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE sub_tickets
		SET status = $1,
			resolved_at = CASE WHEN $1 IN ('resolved', 'closed') THEN NOW() ELSE NULL END,
			resolved_by = NULLIF($3, ''),
			updated_at = NOW()
		WHERE sub_id = $2
	`, status, subID, inspector)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sub-ticket %s: %w", subID, remote.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTicket(ctx context.Context, ticketID string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM complaint_images
			WHERE sub_id IN (SELECT sub_id FROM sub_tickets WHERE ticket_id = $1)
		`, ticketID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sub_tickets WHERE ticket_id = $1`, ticketID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM tickets WHERE ticket_id = $1`, ticketID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("ticket %s: %w", ticketID, remote.ErrNotFound)
		}
		return nil
	})
}

// GetImage returns the stored media bytes for an image id.
func (s *Store) GetImage(ctx context.Context, imageID int64) ([]byte, string, error) {
	var (
		data        []byte
		contentType *string
	)
	err := s.Pool.QueryRow(ctx, `SELECT image_data, content_type FROM complaint_images WHERE id = $1`, imageID).Scan(&data, &contentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", fmt.Errorf("image %d: %w", imageID, remote.ErrNotFound)
		}
		return nil, "", err
	}
	return data, derefString(contentType), nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
