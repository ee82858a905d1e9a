package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdms/backend/internal/config"
	"github.com/mdms/backend/internal/detector"
	"github.com/mdms/backend/internal/http/handlers"
	"github.com/mdms/backend/internal/models"
	"github.com/mdms/backend/internal/remote"
	"github.com/mdms/backend/internal/session"
)

const testAdminKey = "gateway-secret"

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	mu        sync.Mutex
	updateErr error
}

func (s *stubStore) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	created := now.Add(-10 * time.Hour)
	imageID := int64(7)
	return []models.Ticket{{
		TicketID: "T-1",
		Area:     "Jayanagar",
		SubTickets: []models.SubTicket{
			{SubID: "S-1", IssueType: "potholes", CreatedAt: &created, Status: "open", ImageID: &imageID},
			{SubID: "S-2", IssueType: "water leak", CreatedAt: &created, Status: "open"},
		},
	}}, nil
}

func (s *stubStore) UpdateSubTicketStatus(ctx context.Context, subID, status, inspector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateErr
}

func (s *stubStore) DeleteTicket(ctx context.Context, ticketID string) error {
	return nil
}

func (s *stubStore) ImageURL(imageID int64) string {
	return "http://tickets.local/api/complaints/images/7"
}

type stubSubmitter struct {
	got []models.EvidenceItem
	err error
}

func (s *stubSubmitter) SubmitComplaint(ctx context.Context, items []models.EvidenceItem, lat, lon *float64) (remote.SubmitResult, error) {
	if s.err != nil {
		return remote.SubmitResult{}, s.err
	}
	s.got = items
	return remote.SubmitResult{Status: "success", TicketIDs: []string{"T-9"}}, nil
}

type testAPI struct {
	router    *gin.Engine
	store     *stubStore
	submitter *stubSubmitter
	sessions  *session.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &stubStore{}
	sub := &stubSubmitter{}
	clock := func() time.Time { return now }
	reg := session.NewRegistry(session.Deps{
		Detector:        detector.Mock{Interval: time.Hour},
		Store:           store,
		RefreshInterval: time.Hour,
		Clock:           clock,
		Logger:          zerolog.Nop(),
	})
	t.Cleanup(func() { reg.CloseAll(context.Background()) })

	h := &handlers.Handler{
		Sessions:  reg,
		Media:     store,
		Submitter: sub,
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
		PageSize:  10,
		Location:  time.UTC,
		Clock:     clock,
	}
	cfg := config.Config{AdminKey: testAdminKey, CORSAllowed: "*", MaxUploadSizeMB: 5}
	return &testAPI{router: Router(cfg, h), store: store, submitter: sub, sessions: reg}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", testAdminKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) login(t *testing.T, p models.Profile) string {
	t.Helper()
	w := a.do(http.MethodPost, "/api/sessions", "", p)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestCreateSessionValidation(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewBufferString(`{"role":"CITIZEN","name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodPost, "/api/sessions", "", models.Profile{Role: "mayor", Name: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/sessions", "", models.Profile{Role: "inspector", Name: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.login(t, models.Profile{Role: "inspector", Department: "Roads", Name: "Asha"})
	assert.Equal(t, 1, api.sessions.Len())
}

func TestRoleGating(t *testing.T) {
	api := newTestAPI(t)
	citizen := api.login(t, models.Profile{Role: models.RoleCitizen, Name: "Ravi"})
	inspector := api.login(t, models.Profile{Role: models.RoleInspector, Department: "Roads", Name: "Asha"})

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/complaints", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/complaints", "nope", nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/complaints", citizen, nil).Code)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/draft", inspector, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/sessions/current", citizen, nil).Code)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/sessions/current", citizen, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/draft", citizen, nil).Code)
}

func TestInspectorListsDepartmentComplaints(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, models.Profile{Role: models.RoleInspector, Department: "Roads", Name: "Asha"})
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/complaints/refresh", token, nil).Code)

	w := api.do(http.MethodGet, "/api/complaints?status=open&date=today", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Items []struct {
			ID         string `json:"id"`
			Department string `json:"department"`
			Breached   bool   `json:"sla_breached"`
			ImageURL   string `json:"image_url"`
		} `json:"items"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "S-1", page.Items[0].ID)
	assert.Equal(t, "Roads", page.Items[0].Department)
	assert.False(t, page.Items[0].Breached)
	assert.Equal(t, "/api/media/7", page.Items[0].ImageURL)
	assert.Equal(t, 1, page.TotalPages)

	w = api.do(http.MethodGet, "/api/complaints?date=fortnight", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodGet, "/api/complaints?lat=abc&lon=1", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/media/7", token, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

func TestStatusUpdate(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, models.Profile{Role: models.RoleInspector, Department: "Roads", Name: "Asha"})
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/complaints/refresh", token, nil).Code)

	w := api.do(http.MethodPatch, "/api/complaints/S-1/status", token, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPatch, "/api/complaints/S-2/status", token, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.store.updateErr = errors.New("http 500")
	w = api.do(http.MethodPatch, "/api/complaints/S-1/status", token, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "MUTATION_FAILED", errorCode(t, w))

	s, ok := api.sessions.Get(token)
	require.True(t, ok)
	assert.Equal(t, models.StatusOpen, s.Triage.Complaints()[0].Status)

	api.store.updateErr = nil
	w = api.do(http.MethodPatch, "/api/complaints/S-1/status", token, map[string]string{"status": "In_Progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusInProgress, s.Triage.Complaints()[0].Status)
}

func uploadRequest(t *testing.T, token string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, ct := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		hdr.Set("Content-Type", ct)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = part.Write([]byte("payload-" + name))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/draft/evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestDraftUploadAndSubmit(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, models.Profile{Role: models.RoleCitizen, Name: "Ravi"})

	w := api.do(http.MethodPost, "/api/draft/submit", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_DRAFT", errorCode(t, w))

	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, uploadRequest(t, token, map[string]string{
		"pothole.jpg": "image/jpeg",
		"readme.txt":  "text/plain",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var added struct {
		Items    []models.EvidenceItem `json:"items"`
		Rejected []string              `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	require.Len(t, added.Items, 1)
	assert.Len(t, added.Rejected, 1)

	w = api.do(http.MethodGet, added.Items[0].MediaURL, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payload-pothole.jpg", w.Body.String())

	w = api.do(http.MethodPut, "/api/draft/location", token, map[string]float64{"latitude": 95, "longitude": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPut, "/api/draft/location", token, map[string]float64{"latitude": 12.9, "longitude": 77.6})
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/draft/submit", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, api.submitter.got, 1)

	w = api.do(http.MethodGet, "/api/draft", token, nil)
	var d struct {
		Items []models.EvidenceItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Empty(t, d.Items)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	api := newTestAPI(t)
	api.submitter.err = errors.New("connection refused")
	token := api.login(t, models.Profile{Role: models.RoleCitizen, Name: "Ravi"})

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, uploadRequest(t, token, map[string]string{"a.png": "image/png"}))
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodPost, "/api/draft/submit", token, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	s, _ := api.sessions.Get(token)
	assert.Len(t, s.Draft.Items(), 1)
}

func TestLiveStartStop(t *testing.T) {
	api := newTestAPI(t)
	token := api.login(t, models.Profile{Role: models.RoleCitizen, Name: "Ravi"})

	w := api.do(http.MethodPost, "/api/live/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "mock://live?t=")

	w = api.do(http.MethodPost, "/api/live/start", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_ACTIVE", errorCode(t, w))

	w = api.do(http.MethodPost, "/api/live/stop?manual=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/live/stop", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"idle"`)
}

func TestGeocodeInputValidation(t *testing.T) {
	api := newTestAPI(t)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/geocode?lat=abc&lon=1", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/geocode?lat=91&lon=1", "", nil).Code)

	w := api.do(http.MethodGet, "/api/geocode?lat=12.9&lon=77.6", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"area":"-"`)
}
