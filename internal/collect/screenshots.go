package collect

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true,
}

var (
	datedScreenshot = regexp.MustCompile(`(?i)Screenshot[\s_-]*\d{4}[\s_-]*\d{2}[\s_-]*\d{2}`)
	screenShot      = regexp.MustCompile(`(?i)Screen[\s_]?Shot`)
	timestamp       = regexp.MustCompile(`\d{8}[\s_-]*\d{6}`)
)

var (
	screenshotDesignWords  = []string{"design", "mockup", "ui", "ux", "interface", "wireframe", "prototype"}
	screenshotCodeWords    = []string{"code", "terminal", "editor", "ide", "vscode", "github", "commit"}
	screenshotWritingWords = []string{"article", "blog", "post", "document", "text", "writing"}
)

// ScreenshotSource recovers projects from a local folder of images.
type ScreenshotSource struct {
	enabled bool
	folder  string
}

// NewScreenshotSource creates the local image folder source.
func NewScreenshotSource(cfg config.ScreenshotScraping) *ScreenshotSource {
	folder := cfg.FolderPath
	if folder == "" {
		folder = "./screenshots"
	}
	return &ScreenshotSource{enabled: cfg.Enabled, folder: folder}
}

func (s *ScreenshotSource) Name() string  { return "screenshots" }
func (s *ScreenshotSource) Enabled() bool { return s.enabled }

func (s *ScreenshotSource) IsConfigured() bool {
	_, err := os.Stat(s.folder)
	return err == nil
}

// Scrape walks the folder recursively for image files.
func (s *ScreenshotSource) Scrape(ctx context.Context) []*model.Project {
	var projects []*model.Project
	err := filepath.WalkDir(s.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("Error processing screenshot %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		p, err := screenshotProject(path)
		if err != nil {
			log.Printf("Error processing screenshot %s: %v", path, err)
			return nil
		}
		projects = append(projects, p)
		return nil
	})
	if err != nil {
		log.Printf("Error scraping screenshots: %v", err)
	}
	return projects
}

func screenshotProject(path string) (*model.Project, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)

	desc := "Screenshot captured from " + filepath.Base(filepath.Dir(path))
	w, h, ok := imageSize(path)
	if ok {
		desc += fmt.Sprintf(" (%dx%d)", w, h)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	p := model.NewProject(ScreenshotTitle(stem), desc, screenshotCategory(stem), model.SourceScreenshot)
	p.Date = info.ModTime()
	p.Images = []string{abs}
	p.Tags = []string{"screenshot", strings.TrimPrefix(ext, ".")}
	raw := map[string]any{
		"file_path": path,
		"file_size": info.Size(),
	}
	if ok {
		raw["dimensions"] = []int{w, h}
	}
	p.Raw = raw
	p.SetConfidence(0.4)
	return p, nil
}

// ScreenshotTitle turns a file name stem into a readable title, dropping
// screenshot prefixes and timestamps.
func ScreenshotTitle(stem string) string {
	t := strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	t = datedScreenshot.ReplaceAllString(t, "")
	t = screenShot.ReplaceAllString(t, "")
	t = timestamp.ReplaceAllString(t, "")
	t = strings.Join(strings.Fields(t), " ")
	t = truncate(titleCase(t), 60)
	if t == "" {
		return "Screenshot Project"
	}
	return t
}

func screenshotCategory(stem string) model.Category {
	name := strings.ToLower(stem)
	switch {
	case containsAny(name, screenshotDesignWords):
		return model.CategoryDesign
	case containsAny(name, screenshotCodeWords):
		return model.CategoryCode
	case containsAny(name, screenshotWritingWords):
		return model.CategoryWriting
	}
	return model.CategoryMisc
}

// imageSize decodes only the image header. BMP and WebP are not decoded.
func imageSize(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
