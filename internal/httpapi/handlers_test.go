package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"roadassist-platform/internal/auth"
	"roadassist-platform/internal/config"
	"roadassist-platform/internal/eventlog"
	"roadassist-platform/internal/tickets"
	"roadassist-platform/internal/vision"
	"roadassist-platform/internal/voice"
)

type fakeProvider struct {
	result  voice.CallResult
	err     error
	lastReq voice.CallRequest
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeProvider) InitiateCall(ctx context.Context, req voice.CallRequest) (voice.CallResult, error) {
	f.calls++
	f.lastReq = req
	return f.result, f.err
}

type fixture struct {
	router   *gin.Engine
	provider *fakeProvider
	store    *tickets.Store
	log      *eventlog.MemoryRepo
	handlers Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		provider: &fakeProvider{result: voice.CallResult{CallID: "call-1", Status: "queued"}},
		store:    tickets.NewStore(),
		log:      eventlog.NewMemoryRepo(),
	}
	f.handlers = Handlers{
		Voice:   f.provider,
		Tickets: f.store,
		Events:  f.log,
	}

	r := gin.New()
	r.POST("/v1/calls", f.handlers.InitiateCall)
	r.GET("/v1/calls/events", f.handlers.PollEvents)
	r.GET("/v1/tickets", f.handlers.ListTickets)
	r.GET("/v1/tickets/:id", f.handlers.GetTicket)
	r.GET("/healthz", f.handlers.Health)
	f.router = r
	return f
}

func (f *fixture) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

func TestInitiateCallCreatesTicketWithCall(t *testing.T) {
	f := newFixture(t)

	w := f.postJSON(t, "/v1/calls", map[string]any{
		"phone_number":  "+1 (555) 123-4567",
		"customer_name": "Dana",
		"issue":         "flat tire",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		CallID   string `json:"call_id"`
		Status   string `json:"status"`
		TicketID string `json:"ticket_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.CallID != "call-1" || resp.Status != "queued" || resp.TicketID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	tk, ok := f.store.GetByCall("call-1")
	if !ok {
		t.Fatalf("expected ticket bound to call")
	}
	if tk.Phone != "+15551234567" {
		t.Fatalf("expected normalized phone stored, got %q", tk.Phone)
	}
	if tk.Status != tickets.StatusAISupport {
		t.Fatalf("unexpected status: %q", tk.Status)
	}
	if f.provider.lastReq.PhoneNumber != "+15551234567" {
		t.Fatalf("provider must receive normalized number, got %q", f.provider.lastReq.PhoneNumber)
	}
}

func TestInitiateCallInvalidNumberSkipsProvider(t *testing.T) {
	f := newFixture(t)

	w := f.postJSON(t, "/v1/calls", map[string]any{"phone_number": "not-a-number"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if f.provider.calls != 0 {
		t.Fatalf("provider must not be called")
	}
	if len(f.store.List()) != 0 {
		t.Fatalf("no ticket should exist for a rejected request")
	}
}

func TestInitiateCallProviderFailureOpensManualTicket(t *testing.T) {
	f := newFixture(t)
	f.provider.err = &voice.RejectionError{StatusCode: 402, Body: "out of credits"}

	w := f.postJSON(t, "/v1/calls", map[string]any{
		"phone_number":  "5551234567",
		"customer_name": "Dana",
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}

	var resp struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.TicketID == "" {
		t.Fatalf("expected ticket_id in failure response: %v %s", err, w.Body.String())
	}

	tk, ok := f.store.Get(resp.TicketID)
	if !ok {
		t.Fatalf("expected ticket")
	}
	if tk.CallID != "" || tk.Call != nil {
		t.Fatalf("failed initiation must not attach a call: %+v", tk)
	}
	if tk.Status != tickets.StatusRequiresHuman {
		t.Fatalf("unexpected status: %q", tk.Status)
	}
}

func TestInitiateCallBackfillsImageSummary(t *testing.T) {
	f := newFixture(t)

	repo := vision.NewMemoryRepository()
	svc := vision.NewService(staticAnalyzer{"hood crumpled, radiator leaking"}, repo)
	if _, err := svc.AnalyzeAndStore(context.Background(), []byte("img"), ""); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}
	f.handlers.Vision = svc

	r := gin.New()
	r.POST("/v1/calls", f.handlers.InitiateCall)
	w := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]any{"phone_number": "5551234567"})
	req := httptest.NewRequest(http.MethodPost, "/v1/calls", bytes.NewReader(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.provider.lastReq.Context.ImageSummary != "hood crumpled, radiator leaking" {
		t.Fatalf("expected latest analysis backfilled, got %q", f.provider.lastReq.Context.ImageSummary)
	}
}

type staticAnalyzer struct{ summary string }

func (s staticAnalyzer) Name() string { return "static" }
func (s staticAnalyzer) Analyze(context.Context, []byte, string) (string, error) {
	return s.summary, nil
}

func TestPollEventsSinceFilter(t *testing.T) {
	f := newFixture(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := f.log.Append(context.Background(), eventlog.Record{
			ID:         id,
			CallID:     "call-1",
			EventType:  "call.started",
			Payload:    []byte(`{}`),
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/events?since="+base.Format(time.RFC3339Nano), nil)
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Webhooks []eventlog.Record `json:"webhooks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Webhooks) != 2 {
		t.Fatalf("strict-after filter should drop the boundary record, got %d", len(resp.Webhooks))
	}
}

func TestPollEventsEmptyWindowIsOK(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/events", nil)
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on empty log, got %d", w.Code)
	}

	var resp struct {
		Webhooks []eventlog.Record `json:"webhooks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Webhooks) != 0 {
		t.Fatalf("expected empty window, got %d", len(resp.Webhooks))
	}
}

func TestPollEventsRejectsBadSince(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/events?since=yesterday", nil)
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListAndGetTickets(t *testing.T) {
	f := newFixture(t)
	created := f.store.Create(tickets.Ticket{CustomerName: "Dana", Issue: "dead battery"})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tickets", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tickets/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/tickets/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", w.Code)
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	h := Handlers{Auth: m}

	r := gin.New()
	r.POST("/auth/login", h.Login)

	body, _ := json.Marshal(map[string]string{"user_id": "u1", "role": "agent"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected token pair")
	}

	claims, err := m.Verify(resp.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil || claims.UserID != "u1" || claims.Role != "agent" {
		t.Fatalf("verify: %v %+v", err, claims)
	}
}

func TestAnalyzeImageMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := vision.NewService(staticAnalyzer{"shattered windshield"}, vision.NewMemoryRepository())
	h := Handlers{Vision: svc}

	r := gin.New()
	r.POST("/v1/images/analyze", h.AnalyzeImage)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "crash.jpg")
	if err != nil {
		t.Fatalf("form: %v", err)
	}
	_, _ = fw.Write([]byte("jpegbytes"))
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/images/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var a vision.Analysis
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.ID == "" || a.Summary != "shattered windshield" {
		t.Fatalf("unexpected analysis: %+v", a)
	}
}

func TestAnalyzeImageDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := Handlers{Vision: vision.NewService(nil, vision.NewMemoryRepository())}
	r := gin.New()
	r.POST("/v1/images/analyze", h.AnalyzeImage)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/images/analyze", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestHealthWithoutDependencies(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
