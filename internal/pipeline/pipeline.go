package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/portfolio-necromancer/internal/categorize"
	"github.com/TobiSchelling/portfolio-necromancer/internal/collect"
	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/database"
	"github.com/TobiSchelling/portfolio-necromancer/internal/llm"
	"github.com/TobiSchelling/portfolio-necromancer/internal/metrics"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
	"github.com/TobiSchelling/portfolio-necromancer/internal/publish"
	"github.com/TobiSchelling/portfolio-necromancer/internal/render"
	"github.com/TobiSchelling/portfolio-necromancer/internal/summarize"
)

// ErrRender wraps any failure to write the portfolio site.
var ErrRender = errors.New("rendering portfolio")

// Status is the outcome of a resurrection.
type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// Renderer turns a portfolio into a site and returns where it was written.
// Rendering the same output name twice overwrites the first site.
type Renderer interface {
	Render(ctx context.Context, pf *model.Portfolio, outputName string) (string, error)
}

// Publisher uploads a rendered site directory.
type Publisher interface {
	Publish(ctx context.Context, localDir string) (*publish.Result, error)
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Status         Status
	OutputPath     string
	Portfolio      *model.Portfolio
	SourceCounts   map[string]int
	CategoryCounts map[model.Category]int
	Dropped        int
	RunID          int64
	PublishedTo    string
	Warnings       []string
	Steps          []StepResult
	Duration       time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSources replaces the sources built from config.
func WithSources(sources ...collect.Source) Option {
	return func(p *Pipeline) { p.sources = append([]collect.Source{}, sources...) }
}

// WithProvider sets the language model provider. nil disables the model tiers.
func WithProvider(provider llm.Provider) Option {
	return func(p *Pipeline) {
		p.provider = provider
		p.providerSet = true
	}
}

// WithRenderer replaces the static site renderer.
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithDB records every run in the history store.
func WithDB(db *database.DB) Option {
	return func(p *Pipeline) { p.db = db }
}

// WithPublisher uploads every rendered site.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithMetrics feeds source, tier and run instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline orchestrates scrape, categorize, summarize, assemble and render.
type Pipeline struct {
	cfg         *config.Config
	sources     []collect.Source
	provider    llm.Provider
	providerSet bool
	renderer    Renderer
	db          *database.DB
	publisher   Publisher
	metrics     *metrics.Metrics
	now         func() time.Time
}

// New creates a pipeline. Anything not supplied through an option is built from cfg.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	if p.sources == nil {
		p.sources = collect.BuildSources(cfg)
	}
	if !p.providerSet {
		p.provider = llm.CreateProvider(
			cfg.AI.Provider,
			cfg.AI.Model,
			cfg.AI.OllamaURL,
			cfg.AI.OpenAIModel,
			cfg.OpenAIKey(),
		)
	}
	if p.renderer == nil {
		r, err := render.New(cfg.Portfolio.OutputDir, render.WithPrecompress(cfg.Portfolio.Precompress))
		if err != nil {
			return nil, err
		}
		p.renderer = r
	}
	if p.publisher == nil && cfg.Deploy.SFTP.Enabled {
		p.publisher = publish.New(publish.FromConfig(cfg))
	}
	return p, nil
}

func (p *Pipeline) collector() *collect.Collector {
	opts := []collect.Option{
		collect.WithMaxParallel(p.cfg.Collect.MaxParallel),
		collect.WithDebug(p.cfg.Debug()),
	}
	if secs := p.cfg.Collect.SourceTimeoutSeconds; secs > 0 {
		opts = append(opts, collect.WithSourceTimeout(time.Duration(secs)*time.Second))
	}
	if p.metrics != nil {
		opts = append(opts, collect.WithObserver(p.metrics.ObserveSource))
	}
	return collect.NewCollector(p.sources, opts...)
}

func (p *Pipeline) classifier() *categorize.Classifier {
	opts := []categorize.Option{categorize.WithTimeout(p.cfg.AITimeout())}
	if p.metrics != nil {
		opts = append(opts, categorize.WithObserver(func(t categorize.Tier) {
			p.metrics.ObserveClassification(string(t))
		}))
	}
	return categorize.NewClassifier(p.provider, opts...)
}

func (p *Pipeline) narrator() *summarize.Narrator {
	owner := p.cfg.User.Name
	if owner == "" {
		owner = "The developer"
	}
	opts := []summarize.Option{
		summarize.WithMaxTokens(p.cfg.AI.MaxTokens),
		summarize.WithTimeout(p.cfg.AITimeout()),
	}
	if p.metrics != nil {
		opts = append(opts, summarize.WithObserver(func(t summarize.Tier) {
			p.metrics.ObserveNarration(string(t))
		}))
	}
	return summarize.NewNarrator(p.provider, owner, opts...)
}

// Resurrect runs the full pipeline. An empty scrape is reported through
// Result.Status and is not an error; only a render failure is returned.
func (p *Pipeline) Resurrect(ctx context.Context, outputName string) (*Result, error) {
	start := p.now()
	r := &Result{}

	log.Println("Resurrecting your portfolio from digital wreckage...")

	// Step 1: Scrape
	log.Println("Step 1/5: Scraping sources...")
	projects, scraped := p.collector().Collect(ctx)
	r.SourceCounts = scraped.Sources
	r.Steps = append(r.Steps, StepResult{
		Name:    "Scrape",
		Summary: scrapeSummary(scraped),
	})

	if len(projects) == 0 {
		log.Println("No projects found. Check your configuration and data sources.")
		r.Status = StatusEmpty
		r.Duration = p.now().Sub(start)
		p.record(r, outputName, start)
		return r, nil
	}

	// Step 2: Categorize
	log.Println("Step 2/5: Categorizing projects...")
	cls := p.classifier()
	projects = cls.CategorizeBatch(ctx, projects)
	cs := cls.Stats()
	r.Steps = append(r.Steps, StepResult{
		Name: "Categorize",
		Summary: fmt.Sprintf("Categorized %d projects (%d trusted, %d cached, %d model, %d keywords)",
			cs.Processed, cs.Trusted, cs.Cached, cs.Model, cs.Keywords),
	})

	// Step 3: Summarize
	log.Println("Step 3/5: Writing summaries...")
	nar := p.narrator()
	projects = nar.SummarizeBatch(ctx, projects)
	ns := nar.Stats()
	r.Steps = append(r.Steps, StepResult{
		Name: "Summarize",
		Summary: fmt.Sprintf("Summarized %d projects (%d kept, %d model, %d template)",
			ns.Processed, ns.Kept, ns.Model, ns.Template),
	})

	// Step 4: Assemble
	log.Println("Step 4/5: Assembling portfolio...")
	pf := p.assemble(projects)
	r.Dropped = pf.ApplyTierCap(p.cfg.Features.UnlimitedProjects)
	r.Portfolio = pf
	r.CategoryCounts = pf.CountByCategory()
	summary := fmt.Sprintf("Portfolio has %d projects", len(pf.Projects))
	if r.Dropped > 0 {
		summary += fmt.Sprintf(" (%d over the %d-project limit left out)", r.Dropped, model.FreeTierLimit)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Assemble", Summary: summary})

	// Step 5: Render
	log.Println("Step 5/5: Rendering portfolio site...")
	out, err := p.renderer.Render(ctx, pf, outputName)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRender, err)
		r.Status = StatusFailed
		r.Steps = append(r.Steps, StepResult{Name: "Render", Err: err})
		r.Duration = p.now().Sub(start)
		p.record(r, outputName, start)
		return r, err
	}
	r.Status = StatusSuccess
	r.OutputPath = out
	r.Steps = append(r.Steps, StepResult{Name: "Render", Summary: "Site written to " + out})
	r.Duration = p.now().Sub(start)

	p.record(r, outputName, start)
	p.publish(ctx, r)
	return r, nil
}

func (p *Pipeline) assemble(projects []*model.Project) *model.Portfolio {
	u := p.cfg.User
	pf := model.NewPortfolio(
		orDefault(u.Name, "Your Name"),
		orDefault(u.Email, "your@email.com"),
		orDefault(u.Title, "Freelancer"),
		projects,
	)
	pf.OwnerBio = u.Bio
	pf.Theme = orDefault(p.cfg.Portfolio.Theme, pf.Theme)
	pf.ColorScheme = orDefault(p.cfg.Portfolio.ColorScheme, pf.ColorScheme)
	pf.CustomDomain = p.cfg.Features.CustomDomain
	pf.CustomBranding = p.cfg.Features.CustomBranding
	pf.ShowWatermark = !p.cfg.Features.RemoveWatermark
	pf.GeneratedAt = p.now()
	return pf
}

// record stores the run in the history store and metrics. Failures are logged.
func (p *Pipeline) record(r *Result, outputName string, start time.Time) {
	count := 0
	if r.Portfolio != nil {
		count = len(r.Portfolio.Projects)
	}
	if p.metrics != nil {
		p.metrics.ObserveRun(string(r.Status), r.Duration, count)
	}
	if p.db == nil {
		return
	}

	run := &database.Run{
		OutputName:     outputName,
		OutputPath:     r.OutputPath,
		Status:         string(r.Status),
		ProjectCount:   count,
		SourceCounts:   r.SourceCounts,
		CategoryCounts: make(map[string]int, len(r.CategoryCounts)),
		StartedAt:      start,
		Duration:       r.Duration,
	}
	for c, n := range r.CategoryCounts {
		run.CategoryCounts[string(c)] = n
	}

	var rows []database.RunProject
	if r.Portfolio != nil {
		rows = make([]database.RunProject, 0, count)
		for _, proj := range r.Portfolio.Projects {
			rows = append(rows, database.RunProject{
				ProjectID:  proj.ID,
				Title:      proj.Title,
				Category:   string(proj.Category),
				Source:     string(proj.Source),
				Confidence: proj.Confidence,
				Summary:    proj.Summary,
			})
		}
	}

	id, err := p.db.InsertRun(run, rows)
	if err != nil {
		log.Printf("Warning: failed to record run history: %v", err)
		return
	}
	r.RunID = id
}

func (p *Pipeline) publish(ctx context.Context, r *Result) {
	if p.publisher == nil {
		return
	}
	res, err := p.publisher.Publish(ctx, r.OutputPath)
	if err != nil {
		msg := fmt.Sprintf("publish failed: %v", err)
		log.Printf("Warning: %s", msg)
		r.Warnings = append(r.Warnings, msg)
		r.Steps = append(r.Steps, StepResult{Name: "Publish", Err: err})
		return
	}
	r.PublishedTo = res.Target
	r.Steps = append(r.Steps, StepResult{
		Name:    "Publish",
		Summary: fmt.Sprintf("Uploaded %d files to %s", res.Files, res.Target),
	})
	if p.db != nil && r.RunID != 0 {
		if err := p.db.MarkPublished(r.RunID, res.Target); err != nil {
			log.Printf("Warning: failed to record publish target: %v", err)
		}
	}
}

// DryRun reports which sources would run and where the site would go, without
// scraping or writing anything.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{SourceCounts: make(map[string]int)}

	var runnable []string
	for _, s := range p.sources {
		if ctx.Err() != nil {
			break
		}
		var summary string
		switch {
		case !s.Enabled():
			summary = "[dry-run] skipped: disabled"
		case !s.IsConfigured():
			summary = "[dry-run] skipped: not configured"
		default:
			summary = "[dry-run] would scrape"
			runnable = append(runnable, s.Name())
		}
		r.Steps = append(r.Steps, StepResult{Name: "Source " + s.Name(), Summary: summary})
	}

	classifier := "keyword rules and templates only"
	if p.provider != nil {
		classifier = "language model with keyword and template fallback"
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Categorize",
		Summary: "[dry-run] Would categorize using " + classifier,
	})

	limit := fmt.Sprintf("first %d projects", model.FreeTierLimit)
	if p.cfg.Features.UnlimitedProjects {
		limit = "all projects"
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Assemble",
		Summary: "[dry-run] Would keep " + limit,
	})

	if len(runnable) == 0 {
		r.Status = StatusEmpty
		r.Steps = append(r.Steps, StepResult{
			Name:    "Render",
			Summary: "[dry-run] No source can scrape; nothing would be rendered",
		})
		return r
	}

	target := "under " + p.cfg.Portfolio.OutputDir
	if op, ok := p.renderer.(interface{ OutputPath(string) string }); ok {
		target = op.OutputPath("")
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Render",
		Summary: fmt.Sprintf("[dry-run] Would render from %s to %s", strings.Join(runnable, ", "), target),
	})
	if p.publisher != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Publish", Summary: "[dry-run] Would upload over SFTP"})
	}
	return r
}

func scrapeSummary(res *collect.Result) string {
	s := fmt.Sprintf("Found %d projects from %d sources", res.TotalFound, len(res.Sources))
	if len(res.Skipped) > 0 {
		s += fmt.Sprintf(", %d skipped", len(res.Skipped))
	}
	if len(res.Failed) > 0 {
		s += fmt.Sprintf(", %d failed (%s)", len(res.Failed), strings.Join(res.Failed, ", "))
	}
	return s
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
