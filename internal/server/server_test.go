package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/database"
	"github.com/TobiSchelling/portfolio-necromancer/internal/metrics"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
	"github.com/TobiSchelling/portfolio-necromancer/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithStorageDir(t.TempDir()), WithVersion("1.2.3")}, opts...)
	srv, err := New(&config.Config{}, opts...)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func do(srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return out
}

// fakeRunner renders a fixed portfolio through the server's renderer.
type fakeRunner struct {
	r        pipeline.Renderer
	projects int
}

func (f *fakeRunner) Resurrect(ctx context.Context, name string) (*pipeline.Result, error) {
	if f.projects == 0 {
		return &pipeline.Result{Status: pipeline.StatusEmpty, SourceCounts: map[string]int{}}, nil
	}
	var projects []*model.Project
	for i := 0; i < f.projects; i++ {
		projects = append(projects, model.NewProject("Scraped", "From a source", model.CategoryCode, model.SourceGitHub))
	}
	pf := model.NewPortfolio("Grace Hopper", "grace@example.com", "Admiral", projects)
	out, err := f.r.Render(ctx, pf, name)
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{
		Status:       pipeline.StatusSuccess,
		OutputPath:   out,
		Portfolio:    pf,
		SourceCounts: map[string]int{"github": f.projects},
	}, nil
}

func fakeFactory(projects int) RunnerFactory {
	return func(r pipeline.Renderer) (Runner, error) {
		return &fakeRunner{r: r, projects: projects}, nil
	}
}

const manualBody = `{
  "owner": {"name": "Ada Lovelace", "email": "ada@example.com"},
  "projects": [
    {"title": "Engine Notes", "description": "Annotated translation", "category": "writing", "url": "https://example.com/notes"},
    {"description": "No title here", "category": "bogus"}
  ],
  "color_scheme": "purple"
}`

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t)
	rec := do(srv, "GET", "/api/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "healthy" || body["version"] != "1.2.3" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestCategoriesAndThemes(t *testing.T) {
	srv := newTestServer(t)

	cats := decode(t, do(srv, "GET", "/api/categories", ""))["categories"].([]any)
	if len(cats) != 4 || cats[3] != "Miscellaneous Unicorn Work" {
		t.Errorf("unexpected categories: %v", cats)
	}

	themes := decode(t, do(srv, "GET", "/api/themes", ""))
	if len(themes["color_schemes"].([]any)) != 3 {
		t.Errorf("unexpected themes: %v", themes)
	}
}

func TestGenerateValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "No data provided"},
		{"missing projects", `{"owner": {"name": "A", "email": "a@b.c"}}`, "Missing required fields"},
		{"missing email", `{"owner": {"name": "A"}, "projects": [{"title": "x"}]}`, "Owner must have name and email"},
		{"no projects", `{"owner": {"name": "A", "email": "a@b.c"}, "projects": []}`, "No valid projects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, "POST", "/api/generate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if !strings.Contains(decode(t, rec)["error"].(string), tt.want) {
				t.Errorf("expected error containing %q, got %s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestGeneratePreviewDownload(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, "POST", "/api/generate", manualBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	id := body["portfolio_id"].(string)
	if body["project_count"].(float64) != 2 {
		t.Errorf("expected 2 projects, got %v", body["project_count"])
	}

	preview := do(srv, "GET", "/api/preview/"+id, "")
	if preview.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d", preview.Code)
	}
	html := preview.Body.String()
	for _, want := range []string{"Ada Lovelace", "Engine Notes", "Untitled Project", "scheme-purple"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in preview", want)
		}
	}

	dl := do(srv, "GET", "/api/download/"+id, "")
	if dl.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", dl.Code)
	}
	if ct := dl.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("expected zip content type, got %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(dl.Body.Bytes()), int64(dl.Body.Len()))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["index.html"] || !names["writing.html"] || !names["assets/style.css"] {
		t.Errorf("unexpected zip entries: %v", names)
	}
}

func TestPreviewNotFound(t *testing.T) {
	srv := newTestServer(t)
	for _, id := range []string{"0190c0de-0000-7000-8000-000000000000", "..", "not-a-uuid"} {
		rec := do(srv, "GET", "/api/preview/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", id, rec.Code)
		}
	}
	if rec := do(srv, "GET", "/api/download/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("download: expected 404, got %d", rec.Code)
	}
}

func TestGenerateAuto(t *testing.T) {
	srv := newTestServer(t, WithRunnerFactory(fakeFactory(3)))

	rec := do(srv, "POST", "/api/generate/auto", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["project_count"].(float64) != 3 {
		t.Errorf("unexpected body: %v", body)
	}

	preview := do(srv, "GET", body["preview_url"].(string), "")
	if preview.Code != http.StatusOK || !strings.Contains(preview.Body.String(), "Grace Hopper") {
		t.Errorf("expected preview of auto-generated portfolio, got %d", preview.Code)
	}
}

func TestGenerateAutoEmpty(t *testing.T) {
	srv := newTestServer(t, WithRunnerFactory(fakeFactory(0)))

	rec := do(srv, "POST", "/api/generate/auto", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(decode(t, rec)["error"].(string), "No projects found") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestGenerateAutoBusy(t *testing.T) {
	srv := newTestServer(t, WithRunnerFactory(fakeFactory(1)))
	srv.runMu.Lock()
	defer srv.runMu.Unlock()

	if rec := do(srv, "POST", "/api/generate/auto", ""); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestRunsRoutes(t *testing.T) {
	db := openTestDB(t)
	id, err := db.InsertRun(&database.Run{
		OutputName:   "ada",
		Status:       database.StatusSuccess,
		ProjectCount: 1,
		StartedAt:    time.Now(),
	}, []database.RunProject{{ProjectID: "p1", Title: "Logo", Category: "Design", Source: "figma", Confidence: 1}})
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	srv := newTestServer(t, WithDB(db))

	runs := decode(t, do(srv, "GET", "/api/runs", ""))["runs"].([]any)
	if len(runs) != 1 || runs[0].(map[string]any)["output_name"] != "ada" {
		t.Errorf("unexpected runs: %v", runs)
	}

	rec := do(srv, "GET", "/api/runs/"+strconv.FormatInt(id, 10), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	projects := decode(t, rec)["projects"].([]any)
	if len(projects) != 1 || projects[0].(map[string]any)["title"] != "Logo" {
		t.Errorf("unexpected projects: %v", projects)
	}

	if rec := do(srv, "GET", "/api/runs/999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing run, got %d", rec.Code)
	}

	dash := do(srv, "GET", "/", "")
	if dash.Code != http.StatusOK || !strings.Contains(dash.Body.String(), "Runs: 1") {
		t.Errorf("expected dashboard with stats, got %d", dash.Code)
	}
}

func TestRunsWithoutDB(t *testing.T) {
	srv := newTestServer(t)
	runs := decode(t, do(srv, "GET", "/api/runs", ""))["runs"].([]any)
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %v", runs)
	}
	if rec := do(srv, "GET", "/", ""); !strings.Contains(rec.Body.String(), "No portfolios resurrected yet") {
		t.Error("expected empty dashboard")
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.ObserveRun("success", time.Second, 4)
	srv := newTestServer(t, WithMetrics(m))

	rec := do(srv, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "necromancer_last_run_projects 4") {
		t.Errorf("expected gauge in metrics output")
	}

	if rec := do(newTestServer(t), "GET", "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics, got %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	rec := do(srv, "GET", "/api/nope", "")
	if rec.Code != http.StatusNotFound || decode(t, rec)["error"] != "Endpoint not found" {
		t.Errorf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStartScheduleRejectsBadSpec(t *testing.T) {
	srv := newTestServer(t, WithRunnerFactory(fakeFactory(1)))
	if _, err := srv.StartSchedule(context.Background(), "not a schedule"); err == nil {
		t.Error("expected error for invalid cron spec")
	}
}

func TestScheduledRunRenders(t *testing.T) {
	srv := newTestServer(t, WithRunnerFactory(fakeFactory(2)))

	srv.runScheduled(context.Background())

	matches, _ := filepath.Glob(filepath.Join(srv.storageDir, "*", "index.html"))
	if len(matches) != 1 {
		t.Errorf("expected one scheduled portfolio, found %d", len(matches))
	}
}
