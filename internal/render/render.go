package render

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets/*
var assetFS embed.FS

var md = goldmark.New()

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

const excerptLen = 160

// Renderer writes a portfolio as a static site.
type Renderer struct {
	outputDir   string
	precompress bool
	pages       map[string]*template.Template
	now         func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPrecompress writes a brotli-compressed .br sibling for every HTML and CSS file.
func WithPrecompress(on bool) Option {
	return func(r *Renderer) { r.precompress = on }
}

// New creates a renderer writing under outputDir.
func New(outputDir string, opts ...Option) (*Renderer, error) {
	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"slug":        func(c model.Category) string { return c.Slug() },
		"date":        func(t time.Time) string { return t.Format("January 2006") },
		"projectFile": ProjectFile,
		"excerpt":     excerpt,
		"dict":        dict,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/card.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so its "title" and "content" blocks stay separate.
	pageNames := []string{"index.html", "category.html", "project.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	r := &Renderer{outputDir: outputDir, pages: pages, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// OutputDir returns the directory sites are written under.
func (r *Renderer) OutputDir() string {
	return r.outputDir
}

// OutputPath returns where a site named outputName is written. An empty
// name becomes portfolio_<YYYYMMDD_HHMMSS>.
func (r *Renderer) OutputPath(outputName string) string {
	if outputName == "" {
		outputName = "portfolio_" + r.now().Format("20060102_150405")
	}
	return filepath.Join(r.outputDir, filepath.Base(outputName))
}

type navItem struct {
	Category model.Category
	File     string
	Count    int
}

type page struct {
	Portfolio *model.Portfolio
	Nav       []navItem
	Category  model.Category
	Projects  []*model.Project
	Project   *model.Project
	Year      int
	Root      string
}

// Render writes index, category, project and asset files and returns the
// site directory. Existing files are overwritten.
func (r *Renderer) Render(ctx context.Context, pf *model.Portfolio, outputName string) (string, error) {
	if pf == nil {
		return "", errors.New("render: nil portfolio")
	}
	out := r.OutputPath(outputName)
	if err := os.MkdirAll(filepath.Join(out, "projects"), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	byCat := make(map[model.Category][]*model.Project, len(model.Categories))
	var nav []navItem
	for _, c := range model.Categories {
		byCat[c] = pf.ProjectsByCategory(c)
		if n := len(byCat[c]); n > 0 {
			nav = append(nav, navItem{Category: c, File: c.Slug() + ".html", Count: n})
		}
	}
	base := page{Portfolio: pf, Nav: nav, Year: r.now().Year()}

	index := base
	index.Projects = pf.Projects
	if err := r.writePage(filepath.Join(out, "index.html"), "index.html", index); err != nil {
		return "", err
	}

	for _, item := range nav {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := base
		p.Category = item.Category
		p.Projects = byCat[item.Category]
		if err := r.writePage(filepath.Join(out, item.File), "category.html", p); err != nil {
			return "", err
		}
	}

	for _, proj := range pf.Projects {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := base
		p.Category = proj.Category
		p.Project = proj
		p.Root = "../"
		if err := r.writePage(filepath.Join(out, "projects", ProjectFile(proj)), "project.html", p); err != nil {
			return "", err
		}
	}

	if err := r.copyAssets(filepath.Join(out, "assets")); err != nil {
		return "", err
	}

	log.Printf("Portfolio generated at: %s", out)
	return out, nil
}

func (r *Renderer) writePage(path, name string, data page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return r.writeFile(path, buf.Bytes())
}

func (r *Renderer) copyAssets(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating assets directory: %w", err)
	}
	return fs.WalkDir(assetFS, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := assetFS.ReadFile(path)
		if err != nil {
			return err
		}
		return r.writeFile(filepath.Join(dir, d.Name()), data)
	})
}

func (r *Renderer) writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if !r.precompress {
		return nil
	}
	switch filepath.Ext(path) {
	case ".html", ".css":
		return writeBrotli(path+".br", data)
	}
	return nil
}

func writeBrotli(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := brotli.NewWriterLevel(f, brotli.BestCompression)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("compressing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compressing %s: %w", path, err)
	}
	return nil
}

// ProjectFile returns the file name of a project's page, e.g. "project_<id>.html".
func ProjectFile(p *model.Project) string {
	return "project_" + unsafeFileChars.ReplaceAllString(p.ID, "_") + ".html"
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// excerpt prefers the summary and shortens it for cards.
func excerpt(summary, description string) string {
	s := summary
	if s == "" {
		s = description
	}
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen-3]) + "..."
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[k] = pairs[i+1]
	}
	return m, nil
}
