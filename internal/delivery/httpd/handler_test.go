package httpd

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/apiclient"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/models"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/portal"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/tracker"
	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/validate"
)

const (
	cookieName = "portal_test"
	pdfBody    = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"
)

// fakeBackend минимальный REST backend с cookie сессией.
type fakeBackend struct {
	mu       sync.Mutex
	sessions map[string]models.User
	statuses []models.ProcessingStatus
	polls    int
	expireAt string
	profile  models.ProfessorProfile

	submits        int32
	requests       int32
	profileUpdates int32
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		sessions: make(map[string]models.User),
		statuses: []models.ProcessingStatus{models.ProcessingPending, models.ProcessingProcessing, models.ProcessingCompleted},
		profile: models.ProfessorProfile{
			FirstName: "Ada", LastName: "Lovelace", Email: "prof@x.io",
			Department: "Mathematics", OfficeHours: "Mon 10-12", OfficeLocation: "B-204",
		},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			atomic.AddInt32(&b.requests, 1)
			b.mu.Lock()
			expireAt := b.expireAt
			b.mu.Unlock()
			if expireAt != "" && req.URL.Path == expireAt {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/api/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Post("/api/auth/login", b.login)
	r.Post("/api/auth/register", func(w http.ResponseWriter, req *http.Request) {
		var body models.RegisterRequest
		json.NewDecoder(req.Body).Decode(&body)
		writeJSON(w, http.StatusOK, models.AuthResponse{Success: true, User: &models.User{
			UserID: "u-new", Email: body.Email, UserType: models.RoleFor(body.IsStudent),
		}})
	})
	r.Post("/api/logout", func(w http.ResponseWriter, req *http.Request) {
		if c, err := req.Cookie("sid"); err == nil {
			b.mu.Lock()
			delete(b.sessions, c.Value)
			b.mu.Unlock()
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	r.Get("/api/check-session", func(w http.ResponseWriter, req *http.Request) {
		user, ok := b.user(req)
		if !ok {
			writeJSON(w, http.StatusOK, models.SessionCheckResponse{LoggedIn: false})
			return
		}
		writeJSON(w, http.StatusOK, models.SessionCheckResponse{LoggedIn: true, UserType: user.UserType, User: &user})
	})
	r.Get("/api/professor/assignments", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, []models.Assignment{
			{ID: "a1", Name: "Essay", Course: "CS101", Status: models.AssignmentStatusActive},
			{ID: "a2", Name: "Lab", Course: "CS102", Status: models.AssignmentStatusClosed},
		})
	})
	r.Get("/api/assignments/{id}/submissions", func(w http.ResponseWriter, req *http.Request) {
		score := 55.0
		low := 10.0
		if chi.URLParam(req, "id") == "a1" {
			writeJSON(w, http.StatusOK, []models.Submission{
				{ID: "s1", ProcessingStatus: models.ProcessingCompleted, PlagiarismScore: &score},
				{ID: "s2", ProcessingStatus: models.ProcessingCompleted, PlagiarismScore: &low},
			})
			return
		}
		writeJSON(w, http.StatusOK, []models.Submission{})
	})
	r.Get("/api/student/assignments", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, []models.Assignment{
			{ID: "a1", Course: "CS101", Status: models.AssignmentStatusActive},
		})
	})
	r.Post("/api/assignments/{id}/submit", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&b.submits, 1)
		writeJSON(w, http.StatusOK, models.SubmitResponse{ID: "sub-1", ProcessingStatus: models.ProcessingPending})
	})
	r.Get("/api/submissions/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		status := b.statuses[min(b.polls, len(b.statuses)-1)]
		b.polls++
		b.mu.Unlock()

		report := models.StatusReport{ProcessingStatus: status}
		if status == models.ProcessingCompleted {
			score := 72.0
			report.PlagiarismScore = &score
		}
		writeJSON(w, http.StatusOK, report)
	})
	r.Get("/api/professor/profile", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		profile := b.profile
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, models.ProfileResponse{Success: true, Profile: &profile})
	})
	r.Put("/api/professor/profile/update", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&b.profileUpdates, 1)
		var body models.ProfessorProfileUpdate
		json.NewDecoder(req.Body).Decode(&body)

		b.mu.Lock()
		if body.Department != nil {
			b.profile.Department = *body.Department
		}
		if body.OfficeHours != nil {
			b.profile.OfficeHours = *body.OfficeHours
		}
		profile := b.profile
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, models.ProfileResponse{Success: true, Message: "Profile updated successfully", Profile: &profile})
	})
	r.Get("/api/assignments/{id}/download", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(pdfBody))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) login(w http.ResponseWriter, req *http.Request) {
	var body models.LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	role := models.RoleProfessor
	if strings.HasPrefix(body.Email, "student") {
		role = models.RoleStudent
	}
	user := models.User{UserID: "u-" + string(role), Email: body.Email, UserType: role}

	sid := uuid.NewString()
	b.mu.Lock()
	b.sessions[sid] = user
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "sid", Value: sid, Path: "/"})
	writeJSON(w, http.StatusOK, models.AuthResponse{Success: true, User: &user})
}

func (b *fakeBackend) user(req *http.Request) (models.User, bool) {
	c, err := req.Cookie("sid")
	if err != nil {
		return models.User{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.sessions[c.Value]
	return u, ok
}

type testPortal struct {
	srv     *httptest.Server
	client  *http.Client
	manager *portal.Manager
	handler *Handler
}

func newTestPortal(t *testing.T, backendURL string) *testPortal {
	t.Helper()

	backend := apiclient.Config{
		BaseURL:     backendURL + "/api",
		Timeout:     2 * time.Second,
		HealthCheck: true,
	}
	v := validate.New(1 << 20)

	m := portal.NewManager(context.Background(), portal.Config{
		Backend:              backend,
		Tracker:              tracker.RegistryConfig{Tracker: tracker.Config{PollInterval: 5 * time.Millisecond, MaxPolls: 50}},
		IdleTTL:              time.Hour,
		DashboardConcurrency: 2,
	}, portal.Deps{Validator: v}, zerolog.Nop())

	ready, err := apiclient.New(backend, zerolog.Nop())
	require.NoError(t, err)

	h := NewHandler(m, v, nil, nil, ready, Config{CookieName: cookieName}, zerolog.Nop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		_ = m.Shutdown(context.Background())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testPortal{srv: srv, client: &http.Client{Jar: jar}, manager: m, handler: h}
}

func (p *testPortal) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, p.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.send(t, req)
}

func (p *testPortal) send(t *testing.T, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := p.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (p *testPortal) login(t *testing.T, email string, isStudent bool) {
	t.Helper()
	resp, body := p.do(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email: email, Password: "secret", IsStudent: isStudent,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func (p *testPortal) submit(t *testing.T, assignmentID, contentType string, content []byte) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="answer.pdf"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, p.srv.URL+"/api/v1/student/assignments/"+assignmentID+"/submit", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return p.send(t, req)
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestHealthAndReady(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	resp, body := p.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, body = p.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	backend.Close()
	resp, body = p.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_ready", body["status"])
}

func TestDashboard_WithoutSessionRedirectsToLogin(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	resp, body := p.do(t, http.MethodGet, "/api/v1/professor/dashboard", nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", body["redirect"])
	assert.Equal(t, int32(0), atomic.LoadInt32(&b.requests))

	var portalCookie bool
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			portalCookie = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, portalCookie)
}

func TestProfessorDashboard_AfterLogin(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	p.login(t, "prof@uni.edu", false)

	resp, body := p.do(t, http.MethodGet, "/api/v1/professor/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	stats := data(t, body)["stats"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["totalAssignments"])
	assert.Equal(t, float64(1), stats["activeAssignments"])
	assert.Equal(t, float64(2), stats["totalSubmissions"])
	assert.Equal(t, float64(1), stats["highPlagiarismCount"])

	resp, body = p.do(t, http.MethodGet, "/api/v1/professor/assignments/a1/submissions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, float64(2), data(t, body)["total"])
}

func TestLogin_PortalMismatchCachesNothing(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	resp, body := p.do(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email: "student@uni.edu", Password: "secret", IsStudent: false,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "PORTAL_MISMATCH", body["code"])
	assert.Equal(t, "please use the student portal to login as a student", body["message"])

	resp, _ = p.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_ValidationError(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	resp, body := p.do(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID", body["code"])
	assert.Contains(t, body["fields"], "email")
	assert.Equal(t, int32(0), atomic.LoadInt32(&b.requests))
}

func TestWrongPortalRedirectsToOwnDashboard(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	p.login(t, "student@uni.edu", true)

	resp, body := p.do(t, http.MethodGet, "/api/v1/professor/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "/student/dashboard", body["redirect"])

	resp, body = p.do(t, http.MethodGet, "/api/v1/student/dashboard?course=All%20Courses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, float64(1), data(t, body)["total"])
}

func TestSessionExpiredClearsCachedSession(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	p.login(t, "prof@uni.edu", false)
	b.mu.Lock()
	b.expireAt = "/api/professor/assignments"
	b.mu.Unlock()

	resp, body := p.do(t, http.MethodGet, "/api/v1/professor/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", body["redirect"])

	before := atomic.LoadInt32(&b.requests)
	resp, _ = p.do(t, http.MethodGet, "/api/v1/professor/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, before, atomic.LoadInt32(&b.requests))
}

func TestSubmit_RejectsNonPDFWithoutUpload(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "student@uni.edu", true)

	resp, body := p.submit(t, "a1", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", body["code"])

	resp, body = p.submit(t, "a1", "application/pdf", bytes.Repeat([]byte("a"), (1<<20)+(512<<10)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "FILE_TOO_LARGE", body["code"])

	assert.Equal(t, int32(0), atomic.LoadInt32(&b.submits))

	resp, body = p.do(t, http.MethodGet, "/api/v1/trackers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), data(t, body)["total"])
}

func TestSubmit_TracksUntilCompleted(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "student@uni.edu", true)

	resp, body := p.submit(t, "a1", "application/pdf", []byte(pdfBody))
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	id := data(t, body)["id"].(string)
	assert.Equal(t, "/api/v1/trackers/"+id, resp.Header.Get("Location"))

	require.Eventually(t, func() bool {
		resp, err := p.client.Get(p.srv.URL + "/api/v1/trackers/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var out struct {
			Data tracker.Snapshot `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false
		}
		return out.Data.State == tracker.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, body = p.do(t, http.MethodGet, "/api/v1/trackers/"+id, nil)
	snap := data(t, body)
	assert.Equal(t, 72.0, snap["plagiarism_score"])
	assert.Equal(t, float64(3), snap["polls"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.submits))

	// повторная отмена завершенного трекера ничего не меняет
	resp, body = p.do(t, http.MethodDelete, "/api/v1/trackers/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(tracker.StateCompleted), data(t, body)["state"])
}

func TestTracker_UnknownIDIs404(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	resp, body := p.do(t, http.MethodGet, "/api/v1/trackers/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestTrackerFeed_StreamsSnapshotsUntilTerminal(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "student@uni.edu", true)

	resp, body := p.submit(t, "a1", "application/pdf", []byte(pdfBody))
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	id := data(t, body)["id"].(string)

	header := http.Header{}
	for _, c := range p.client.Jar.Cookies(resp.Request.URL) {
		header.Add("Cookie", c.Name+"="+c.Value)
	}

	wsURL := "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/api/v1/trackers/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	var last tracker.Snapshot
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap tracker.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		last = snap
	}

	assert.Equal(t, tracker.StateCompleted, last.State)
	require.NotNil(t, last.PlagiarismScore)
	assert.Equal(t, 72.0, *last.PlagiarismScore)
}

func TestTrackerFeed_ClosedOnShutdown(t *testing.T) {
	b, backend := newFakeBackend(t)
	b.mu.Lock()
	b.statuses = []models.ProcessingStatus{models.ProcessingProcessing}
	b.mu.Unlock()

	p := newTestPortal(t, backend.URL)
	p.login(t, "student@uni.edu", true)

	resp, body := p.submit(t, "a1", "application/pdf", []byte(pdfBody))
	require.Equal(t, http.StatusAccepted, resp.StatusCode, body)
	id := data(t, body)["id"].(string)

	header := http.Header{}
	for _, c := range p.client.Jar.Cookies(resp.Request.URL) {
		header.Add("Cookie", c.Name+"="+c.Value)
	}

	wsURL := "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/api/v1/trackers/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first tracker.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.False(t, first.State.IsTerminal())

	p.handler.CloseFeeds()
	p.handler.CloseFeeds()

	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var snap tracker.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
			break
		}
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "prof@uni.edu", false)

	resp, body := p.do(t, http.MethodGet, "/api/v1/auth/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "/professor/dashboard", data(t, body)["redirect"])

	resp, _ = p.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = p.do(t, http.MethodGet, "/api/v1/professor/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", body["redirect"])
}

func TestDownloadAssignment(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "student@uni.edu", true)

	resp, err := p.client.Get(p.srv.URL + "/api/v1/assignments/a1/download")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, pdfBody, buf.String())

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "assignment-a1.pdf", params["filename"])
}

func TestDownloadAssignment_QuotesFilename(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "student@uni.edu", true)

	resp, err := p.client.Get(p.srv.URL + "/api/v1/assignments/a%22x/download")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	disposition, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, `assignment-a"x.pdf`, params["filename"])
}

func TestHistory_DisabledWithoutStore(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)

	resp, _ := p.do(t, http.MethodGet, "/api/v1/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProfessorProfile_ReadAndUpdate(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "prof@x.io", false)

	resp, body := p.do(t, http.MethodGet, "/api/v1/professor/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Mathematics", data(t, body)["department"])
	assert.Equal(t, "B-204", data(t, body)["officeLocation"])

	resp, body = p.do(t, http.MethodPut, "/api/v1/professor/profile", map[string]string{
		"department":  "Physics",
		"officeHours": "Tue 14-16",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Physics", data(t, body)["department"])
	assert.Equal(t, "Tue 14-16", data(t, body)["officeHours"])
	assert.Equal(t, "Ada", data(t, body)["firstName"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.profileUpdates))
}

func TestProfessorProfile_InvalidUpdateNotSent(t *testing.T) {
	b, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "prof@x.io", false)

	resp, body := p.do(t, http.MethodPut, "/api/v1/professor/profile", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields, ok := body["fields"].(map[string]interface{})
	require.True(t, ok, body)
	assert.Contains(t, fields, "email")

	resp, _ = p.do(t, http.MethodPut, "/api/v1/professor/profile", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, int32(0), atomic.LoadInt32(&b.profileUpdates))
}

func TestProfessorProfile_StudentRedirected(t *testing.T) {
	_, backend := newFakeBackend(t)
	p := newTestPortal(t, backend.URL)
	p.login(t, "student@x.io", true)

	resp, body := p.do(t, http.MethodGet, "/api/v1/professor/profile", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "/student/dashboard", body["redirect"])
}
