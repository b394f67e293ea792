package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roadassist-platform/internal/config"
)

type fakeAnalyzer struct {
	summary string
	err     error
	calls   int
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	return f.summary, f.err
}

func TestAnalyzeAndStoreAssignsIDAndPersists(t *testing.T) {
	fa := &fakeAnalyzer{summary: "front bumper dented, airbag not deployed"}
	svc := NewService(fa, NewMemoryRepository())
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	a, err := svc.AnalyzeAndStore(context.Background(), []byte("jpegbytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("expected server-assigned id")
	}
	if a.Summary != fa.summary {
		t.Fatalf("unexpected summary: %q", a.Summary)
	}

	got, err := svc.Get(context.Background(), a.ID)
	if err != nil || got.Summary != fa.summary {
		t.Fatalf("get: %v %+v", err, got)
	}
}

func TestLatestReturnsMostRecent(t *testing.T) {
	fa := &fakeAnalyzer{summary: "first"}
	svc := NewService(fa, NewMemoryRepository())

	if _, err := svc.AnalyzeAndStore(context.Background(), []byte("a"), ""); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	fa.summary = "second"
	if _, err := svc.AnalyzeAndStore(context.Background(), []byte("b"), ""); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	latest, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Summary != "second" {
		t.Fatalf("expected most recent analysis, got %q", latest.Summary)
	}
}

func TestLatestEmptyStore(t *testing.T) {
	svc := NewService(&fakeAnalyzer{}, NewMemoryRepository())
	if _, err := svc.Latest(context.Background()); !errors.Is(err, ErrNoAnalyses) {
		t.Fatalf("expected ErrNoAnalyses, got %v", err)
	}
}

func TestDisabledServiceRejects(t *testing.T) {
	svc := NewService(nil, NewMemoryRepository())
	if svc.Enabled() {
		t.Fatalf("expected disabled")
	}
	if _, err := svc.AnalyzeAndStore(context.Background(), []byte("x"), ""); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestAnalyzerErrorNotStored(t *testing.T) {
	fa := &fakeAnalyzer{err: errors.New("boom")}
	repo := NewMemoryRepository()
	svc := NewService(fa, repo)

	if _, err := svc.AnalyzeAndStore(context.Background(), []byte("x"), ""); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok, _ := repo.Latest(context.Background()); ok {
		t.Fatalf("failed analysis must not be stored")
	}
}

func TestOpenAIAnalyzerSendsDataURLAndParsesChoice(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  flat rear tire, rim intact  "}},
			},
		})
	}))
	defer srv.Close()

	a, err := NewOpenAIAnalyzer(config.VisionConfig{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("analyzer: %v", err)
	}

	summary, err := a.Analyze(context.Background(), []byte("rawimage"), "image/png")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if summary != "flat rear tire, rim intact" {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if gotAuth != "Bearer k" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}

	raw, _ := json.Marshal(gotBody)
	if !strings.Contains(string(raw), "data:image/png;base64,") {
		t.Fatalf("expected inline data URL in request, got %s", raw)
	}
}

func TestOpenAIAnalyzerRejectionCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit"}`))
	}))
	defer srv.Close()

	a, _ := NewOpenAIAnalyzer(config.VisionConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := a.Analyze(context.Background(), []byte("x"), "")

	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.StatusCode != http.StatusTooManyRequests || !strings.Contains(rej.Body, "rate limit") {
		t.Fatalf("unexpected rejection: %+v", rej)
	}
}

func TestOpenAIAnalyzerEmptyImage(t *testing.T) {
	a, _ := NewOpenAIAnalyzer(config.VisionConfig{APIKey: "k"})
	if _, err := a.Analyze(context.Background(), nil, ""); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}
