package server

import (
	"archive/zip"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/database"
	"github.com/TobiSchelling/portfolio-necromancer/internal/metrics"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
	"github.com/TobiSchelling/portfolio-necromancer/internal/pipeline"
	"github.com/TobiSchelling/portfolio-necromancer/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// Runner is the part of the pipeline the server drives.
type Runner interface {
	Resurrect(ctx context.Context, outputName string) (*pipeline.Result, error)
}

// RunnerFactory builds a runner that renders through r.
type RunnerFactory func(r pipeline.Renderer) (Runner, error)

// Option configures a Server.
type Option func(*Server)

// WithDB exposes run history and records API-triggered runs.
func WithDB(db *database.DB) Option {
	return func(s *Server) { s.db = db }
}

// WithMetrics serves the registry on /metrics and feeds it from runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithStorageDir sets where API-generated portfolios are written.
func WithStorageDir(dir string) Option {
	return func(s *Server) { s.storageDir = dir }
}

// WithRunnerFactory replaces the pipeline used by /api/generate/auto and the schedule.
func WithRunnerFactory(f RunnerFactory) Option {
	return func(s *Server) { s.newRunner = f }
}

// WithVersion sets the version reported by /api/health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server is the HTTP API for generating and serving portfolios.
type Server struct {
	cfg        *config.Config
	db         *database.DB
	metrics    *metrics.Metrics
	storageDir string
	version    string
	newRunner  RunnerFactory
	renderer   *render.Renderer
	dashboard  *template.Template
	engine     *gin.Engine

	// Full resurrections hit rate-limited APIs; one at a time.
	runMu sync.Mutex
}

// New creates a new Server.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		storageDir: filepath.Join(os.TempDir(), "portfolio_necromancer_api"),
		version:    "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	r, err := render.New(s.storageDir, render.WithPrecompress(cfg.Portfolio.Precompress))
	if err != nil {
		return nil, err
	}
	s.renderer = r

	if s.newRunner == nil {
		s.newRunner = s.defaultRunner
	}

	dash, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"ms": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard template: %w", err)
	}
	s.dashboard = dash

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), cors.Default())
	if cfg.Debug() {
		s.engine.Use(gin.Logger())
	}
	s.routes()
	return s, nil
}

func (s *Server) defaultRunner(r pipeline.Renderer) (Runner, error) {
	opts := []pipeline.Option{pipeline.WithRenderer(r)}
	if s.db != nil {
		opts = append(opts, pipeline.WithDB(s.db))
	}
	if s.metrics != nil {
		opts = append(opts, pipeline.WithMetrics(s.metrics))
	}
	return pipeline.New(s.cfg, opts...)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleDashboard)

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/categories", s.handleCategories)
	api.GET("/themes", s.handleThemes)
	api.POST("/generate", s.handleGenerate)
	api.POST("/generate/auto", s.handleGenerateAuto)
	api.GET("/preview/:id", s.handlePreview)
	api.GET("/download/:id", s.handleDownload)
	api.GET("/runs", s.handleRuns)
	api.GET("/runs/:id", s.handleRun)

	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	names := make([]string, len(model.Categories))
	for i, cat := range model.Categories {
		names[i] = string(cat)
	}
	c.JSON(http.StatusOK, gin.H{"categories": names})
}

func (s *Server) handleThemes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"themes":        []string{"modern"},
		"color_schemes": []string{"blue", "green", "purple"},
	})
}

type ownerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Title string `json:"title"`
	Bio   string `json:"bio"`
}

type projectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"image_url"`
}

type generateRequest struct {
	Owner         *ownerRequest    `json:"owner"`
	Projects      []projectRequest `json:"projects"`
	Theme         string           `json:"theme"`
	ColorScheme   string           `json:"color_scheme"`
	ShowWatermark *bool            `json:"show_watermark"`
}

// handleGenerate renders caller-supplied projects directly, without scraping.
func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if req.Owner == nil || req.Projects == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: owner and projects"})
		return
	}
	if req.Owner.Name == "" || req.Owner.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Owner must have name and email"})
		return
	}

	projects := make([]*model.Project, 0, len(req.Projects))
	for _, pr := range req.Projects {
		projects = append(projects, manualProject(pr))
	}
	if len(projects) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid projects provided"})
		return
	}

	pf := model.NewPortfolio(req.Owner.Name, req.Owner.Email, orDefault(req.Owner.Title, "Developer"), projects)
	pf.OwnerBio = req.Owner.Bio
	pf.Theme = orDefault(req.Theme, pf.Theme)
	pf.ColorScheme = orDefault(req.ColorScheme, pf.ColorScheme)
	if req.ShowWatermark != nil {
		pf.ShowWatermark = *req.ShowWatermark
	}

	id := uuid.NewString()
	if _, err := s.renderer.Render(c.Request.Context(), pf, id); err != nil {
		log.Printf("Error generating portfolio: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"portfolio_id":  id,
		"download_url":  "/api/download/" + id,
		"preview_url":   "/api/preview/" + id,
		"project_count": len(projects),
		"message":       "Portfolio generated successfully",
	})
}

func manualProject(pr projectRequest) *model.Project {
	cat, ok := model.ParseCategory(pr.Category)
	if !ok {
		cat = model.CategoryCode
	}
	p := model.NewProject(orDefault(pr.Title, "Untitled Project"), pr.Description, cat, model.SourceManual)
	p.Tags = pr.Tags
	if pr.URL != "" {
		p.Links = []string{pr.URL}
	}
	if pr.ImageURL != "" {
		p.Images = []string{pr.ImageURL}
	}
	return p
}

// handleGenerateAuto runs a full resurrection with the server's configuration.
func (s *Server) handleGenerateAuto(c *gin.Context) {
	if !s.runMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": "A resurrection is already running"})
		return
	}
	defer s.runMu.Unlock()

	id, res, err := s.resurrect(c.Request.Context())
	switch {
	case err != nil:
		log.Printf("Error in auto-generation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	case res.Status == pipeline.StatusEmpty:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "No projects found. Check your configuration and data sources.",
			"sources": res.SourceCounts,
		})
		return
	}

	body := gin.H{
		"success":       true,
		"portfolio_id":  id,
		"download_url":  "/api/download/" + id,
		"preview_url":   "/api/preview/" + id,
		"project_count": len(res.Portfolio.Projects),
		"sources":       res.SourceCounts,
		"message":       "Portfolio generated successfully from data sources",
	}
	if res.RunID != 0 {
		body["run_id"] = res.RunID
	}
	if len(res.Warnings) > 0 {
		body["warnings"] = res.Warnings
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) resurrect(ctx context.Context) (string, *pipeline.Result, error) {
	runner, err := s.newRunner(s.renderer)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	res, err := runner.Resurrect(ctx, id)
	return id, res, err
}

// portfolioDir returns the site directory for id, or false if id is not a
// generated portfolio.
func (s *Server) portfolioDir(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	dir := filepath.Join(s.storageDir, id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}

func (s *Server) handlePreview(c *gin.Context) {
	dir, ok := s.portfolioDir(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Portfolio not found"})
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Portfolio not found"})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.File(index)
}

func (s *Server) handleDownload(c *gin.Context) {
	id := c.Param("id")
	dir, ok := s.portfolioDir(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Portfolio not found"})
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="portfolio_%s.zip"`, id))
	c.Status(http.StatusOK)
	if err := writeZip(c.Writer, dir); err != nil {
		log.Printf("Error zipping portfolio %s: %v", id, err)
	}
}

// writeZip archives every file under dir with slash-separated relative names.
func writeZip(w io.Writer, dir string) error {
	zw := zip.NewWriter(w)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		f, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

type runJSON struct {
	ID             int64          `json:"id"`
	OutputName     string         `json:"output_name"`
	OutputPath     string         `json:"output_path,omitempty"`
	Status         string         `json:"status"`
	ProjectCount   int            `json:"project_count"`
	SourceCounts   map[string]int `json:"source_counts"`
	CategoryCounts map[string]int `json:"category_counts"`
	StartedAt      time.Time      `json:"started_at"`
	DurationMS     int64          `json:"duration_ms"`
	PublishedTo    *string        `json:"published_to,omitempty"`
}

func toRunJSON(r database.Run) runJSON {
	return runJSON{
		ID:             r.ID,
		OutputName:     r.OutputName,
		OutputPath:     r.OutputPath,
		Status:         r.Status,
		ProjectCount:   r.ProjectCount,
		SourceCounts:   r.SourceCounts,
		CategoryCounts: r.CategoryCounts,
		StartedAt:      r.StartedAt,
		DurationMS:     r.Duration.Milliseconds(),
		PublishedTo:    r.PublishedTo,
	}
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []runJSON{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := s.db.GetRecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, toRunJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || s.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	run, err := s.db.GetRun(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	projects, err := s.db.GetRunProjects(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	items := make([]gin.H, 0, len(projects))
	for _, p := range projects {
		items = append(items, gin.H{
			"id":         p.ProjectID,
			"title":      p.Title,
			"category":   p.Category,
			"source":     p.Source,
			"confidence": p.Confidence,
			"summary":    p.Summary,
		})
	}
	c.JSON(http.StatusOK, gin.H{"run": toRunJSON(*run), "projects": items})
}

func (s *Server) handleDashboard(c *gin.Context) {
	data := map[string]any{"Version": s.version}
	if s.db != nil {
		runs, _ := s.db.GetRecentRuns(10)
		stats, _ := s.db.GetStats()
		data["Runs"] = runs
		data["Stats"] = stats
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.dashboard.Execute(c.Writer, data); err != nil {
		log.Printf("Error rendering dashboard: %v", err)
	}
}

// ListenAndServe serves on 127.0.0.1:port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
