package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdms/backend/internal/models"
)

func newTestStore(t *testing.T, h http.HandlerFunc) *HTTPStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPStore(srv.URL, 2*time.Second, time.UTC, zerolog.Nop())
}

func TestListTicketsConvertsWire(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/complaints/tickets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "success", "count": 1,
			"tickets": [{
				"ticket_id": "T-100", "area": "Jayanagar", "district": null, "status": "open",
				"sub_tickets": [
					{"sub_id": "S-1", "issue_type": "potholes", "image_id": 42, "created_at": "2026-10-14T08:30:00", "status": "open"},
					{"sub_id": "S-2", "issue_type": null, "created_at": "garbage", "status": null}
				]
			}]
		}`)
	})

	tickets, err := store.ListTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	tk := tickets[0]
	assert.Equal(t, "T-100", tk.TicketID)
	assert.Equal(t, "Jayanagar", tk.Area)
	assert.Empty(t, tk.District)
	require.Len(t, tk.SubTickets, 2)

	s1 := tk.SubTickets[0]
	require.NotNil(t, s1.CreatedAt)
	assert.Equal(t, time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC), *s1.CreatedAt)
	require.NotNil(t, s1.ImageID)
	assert.Equal(t, int64(42), *s1.ImageID)

	s2 := tk.SubTickets[1]
	assert.Nil(t, s2.CreatedAt)
	assert.Empty(t, s2.IssueType)
	assert.Empty(t, s2.Status)
}

func TestListTicketsHTTPError(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := store.ListTickets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUpdateSubTicketStatusSendsForm(t *testing.T) {
	var method, path, status, inspector string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		method, path = r.Method, r.URL.Path
		status, inspector = r.PostForm.Get("status"), r.PostForm.Get("inspector_name")
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, store.UpdateSubTicketStatus(context.Background(), "S-9", models.StatusResolved, "Asha"))
	assert.Equal(t, http.MethodPatch, method)
	assert.Equal(t, "/api/complaints/sub-tickets/S-9/status", path)
	assert.Equal(t, "resolved", status)
	assert.Equal(t, "Asha", inspector)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	assert.ErrorIs(t, store.UpdateSubTicketStatus(context.Background(), "S-0", "open", ""), ErrNotFound)
	assert.ErrorIs(t, store.DeleteTicket(context.Background(), "T-0"), ErrNotFound)
}

func TestSubmitComplaintMultipart(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/complaints/batch", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Len(t, r.MultipartForm.File["files"], 2)
		assert.Equal(t, "12.5", r.FormValue("latitude"))
		assert.Equal(t, "77.25", r.FormValue("longitude"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":           "success",
			"duplicates_found": 1,
			"tickets_created":  []map[string]string{{"ticket_id": "T-7"}, {"ticket_id": "N/A"}},
		})
	})

	lat, lon := 12.5, 77.25
	items := []models.EvidenceItem{
		{FileName: "a.jpg", ContentType: "image/jpeg", Data: []byte("a")},
		{FileName: "b.mp4", ContentType: "video/mp4", Data: []byte("b")},
	}
	res, err := store.SubmitComplaint(context.Background(), items, &lat, &lon)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 1, res.DuplicatesFound)
	assert.Equal(t, []string{"T-7"}, res.TicketIDs)
}

func TestImageURL(t *testing.T) {
	store := NewHTTPStore("http://tickets.local/", time.Second, nil, zerolog.Nop())
	assert.Equal(t, "http://tickets.local/api/complaints/images/5", store.ImageURL(5))
}

func TestParseTimestamp(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	naive := ParseTimestamp("2026-10-14 08:30:00.123456", ist)
	require.NotNil(t, naive)
	assert.Equal(t, ist, naive.Location())
	assert.Equal(t, 123456000, naive.Nanosecond())

	offset := ParseTimestamp("2026-10-14T08:30:00Z", ist)
	require.NotNil(t, offset)
	assert.True(t, offset.Equal(time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)))

	assert.Nil(t, ParseTimestamp("", ist))
	assert.Nil(t, ParseTimestamp("last tuesday", ist))
}
