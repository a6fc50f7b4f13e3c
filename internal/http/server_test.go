package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"deckforge/app/internal/deck"
	"deckforge/app/internal/library"
)

func TestCreatePresentationReturnsAccepted(t *testing.T) {
	t.Parallel()

	service := &stubLibraryService{}
	srv := newTestServer(t, service, RateLimiterSettings{})

	req := httptest.NewRequest("POST", "/api/presentations", strings.NewReader(`{"title":"Quarterly Update","message":"Revenue grew 20%"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 202 {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		ViewURL string `json:"view_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}

	if body.ID != "run-1" || body.Status != library.StatusPending {
		t.Fatalf("unexpected response body %+v", body)
	}
	if body.ViewURL != "/presentations/run-1" {
		t.Fatalf("expected view url, got %q", body.ViewURL)
	}
	if location := rec.Header().Get("Location"); location != "/api/presentations/run-1" {
		t.Fatalf("expected Location header, got %q", location)
	}
	if service.startedTitle != "Quarterly Update" {
		t.Fatalf("expected title to reach the library, got %q", service.startedTitle)
	}
}

func TestCreatePresentationRejectsBlankTitle(t *testing.T) {
	t.Parallel()

	service := &stubLibraryService{}
	srv := newTestServer(t, service, RateLimiterSettings{})

	req := httptest.NewRequest("POST", "/api/presentations", strings.NewReader(`{"title":"   ","message":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if service.startedTitle != "" {
		t.Fatalf("expected library not to be called")
	}
}

func TestCreatePresentationDuringShutdownReturns503(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{startErr: library.ErrShuttingDown}, RateLimiterSettings{})

	req := httptest.NewRequest("POST", "/api/presentations", strings.NewReader(`{"title":"Deck","message":"m"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 503 {
		t.Fatalf("expected status 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreatePresentationIsRateLimited(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{}, RateLimiterSettings{RequestsPerSecond: 0.001, Burst: 1, ClientTTL: time.Minute})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/presentations", strings.NewReader(`{"title":"t","message":"m"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if i == 1 && rec.Header().Get("Retry-After") != "1" {
			t.Fatalf("expected Retry-After header on limited response")
		}
	}

	if codes[0] != 202 || codes[1] != 429 {
		t.Fatalf("expected 202 then 429, got %v", codes)
	}

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected health check to bypass the limiter, got %d", rec.Code)
	}
}

func TestGetPresentationReturnsStoredRun(t *testing.T) {
	t.Parallel()

	service := &stubLibraryService{presentation: completedPresentation()}
	srv := newTestServer(t, service, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/api/presentations/run-1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID          string           `json:"id"`
		Title       string           `json:"title"`
		Status      string           `json:"status"`
		CompletedAt *time.Time       `json:"completed_at"`
		Slides      []map[string]any `json:"presentation"`
		Usage       struct {
			InputTokens int64 `json:"input_tokens"`
		} `json:"usage"`
		History []struct {
			Phase string `json:"phase"`
		} `json:"status_history"`
		DebugFiles []struct {
			Context string `json:"context"`
		} `json:"debug_files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}

	if body.ID != "run-1" || body.Title != "Quarterly Update" || body.CompletedAt == nil {
		t.Fatalf("expected summary fields in the response, got %s", rec.Body.String())
	}
	if body.Status != library.StatusCompleted || len(body.Slides) != 2 {
		t.Fatalf("unexpected presentation %+v", body)
	}
	if body.Usage.InputTokens != 340 {
		t.Fatalf("expected usage to be reported, got %d", body.Usage.InputTokens)
	}
	if len(body.History) != 2 || body.History[0].Phase != string(deck.PhaseProcessing) {
		t.Fatalf("unexpected status history %+v", body.History)
	}
	if len(body.DebugFiles) != 1 || body.DebugFiles[0].Context != "validation_failed" {
		t.Fatalf("unexpected debug files %+v", body.DebugFiles)
	}
}

func TestGetPresentationReturns404WhenMissing(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/api/presentations/unknown", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestGetPresentationReturns500OnFailure(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{getErr: eris.New("database is locked")}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/api/presentations/run-1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 500 {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestListPresentations(t *testing.T) {
	t.Parallel()

	service := &stubLibraryService{list: []library.Presentation{*completedPresentation()}}
	srv := newTestServer(t, service, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/api/presentations?limit=5", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if service.listLimit != 5 {
		t.Fatalf("expected limit 5, got %d", service.listLimit)
	}
	if !contains(rec.Body.String(), `"title":"Quarterly Update"`) {
		t.Fatalf("expected presentation in list, got %q", rec.Body.String())
	}
}

func TestViewerRendersSlides(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{presentation: completedPresentation()}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/presentations/run-1", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"Quarterly Update", "<li>Revenue &lt;up&gt; 20%</li>", "slide-bullet", "$0.0012"} {
		if !contains(body, want) {
			t.Fatalf("expected body to contain %q, got %q", want, body)
		}
	}
}

func TestViewerShowsPendingRun(t *testing.T) {
	t.Parallel()

	pending := &library.Presentation{ID: "run-2", Title: "Draft", Status: "researching", StatusDescription: "Research progress: 50% complete (1/2 topics processed)"}
	srv := newTestServer(t, &stubLibraryService{presentation: pending}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/presentations/run-2", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !contains(rec.Body.String(), "still being generated") {
		t.Fatalf("expected pending notice, got %q", rec.Body.String())
	}
}

func TestViewerReturns404WhenMissing(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/presentations/missing", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 404 {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}
}

func TestHealthRouteReportsOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestStaticStylesheetIsServed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubLibraryService{}, RateLimiterSettings{})

	req := httptest.NewRequest("GET", "/static/deck.css", nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !contains(rec.Body.String(), ".slide") {
		t.Fatalf("expected stylesheet body, got %q", rec.Body.String())
	}
}

func TestNewServerRequiresLibrary(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(Options{}); err == nil {
		t.Fatalf("expected error when library is missing")
	}
}

// helper utilities

func newTestServer(t *testing.T, svc library.Service, limits RateLimiterSettings) *Server {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open returned error: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if limits.Burst == 0 {
		limits = RateLimiterSettings{RequestsPerSecond: 100, Burst: 100, ClientTTL: time.Minute}
	}

	srv, err := NewServer(Options{
		Library:     svc,
		Database:    gormDB,
		Logger:      logger,
		RateLimiter: limits,
	})
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv
}

func contains(body, substring string) bool {
	return strings.Contains(body, substring)
}

func completedPresentation() *library.Presentation {
	completedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &library.Presentation{
		ID:                "run-1",
		Title:             "Quarterly Update",
		Message:           "Revenue grew",
		Status:            library.StatusCompleted,
		StatusDescription: "Presentation generated successfully.",
		Slides:            `[{"type":"title","title":"Quarterly Update","content":{"subtitle":"Q1"}},{"type":"bullet","title":"Highlights","content":{"bullets":["Revenue <up> 20%"]}}]`,
		Plan:              `{"presentation_overview":"overview","content_items":[]}`,
		Research:          `[]`,
		Warnings:          `null`,
		InputTokens:       340,
		OutputTokens:      155,
		Cost:              0.0012,
		CompletedAt:       &completedAt,
		Events: []library.StatusEvent{
			{Phase: string(deck.PhaseProcessing), Message: "Starting presentation generation process..."},
			{Phase: string(deck.PhaseFinalizing), Message: "Presentation generation completed, finalizing results..."},
		},
		DebugFiles: []library.DebugFile{{Filename: "presentation_debug_validation_failed_x.txt", Context: "validation_failed"}},
	}
}

// stubs

type stubLibraryService struct {
	presentation *library.Presentation
	getErr       error
	list         []library.Presentation
	listLimit    int
	startedTitle string
	startErr     error
}

func (s *stubLibraryService) Start(_ context.Context, title, _ string) (*library.Presentation, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.startedTitle = title
	return &library.Presentation{ID: "run-1", Title: title, Status: library.StatusPending}, nil
}

func (s *stubLibraryService) Generate(_ context.Context, _, _ string, _ deck.Observer) (*library.Presentation, *deck.Result, error) {
	return nil, nil, eris.New("not supported by stub")
}

func (s *stubLibraryService) Get(_ context.Context, _ string) (*library.Presentation, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.presentation, nil
}

func (s *stubLibraryService) List(_ context.Context, limit int) ([]library.Presentation, error) {
	s.listLimit = limit
	return s.list, nil
}

func (s *stubLibraryService) Shutdown(_ context.Context) error {
	return nil
}

var _ library.Service = (*stubLibraryService)(nil)
