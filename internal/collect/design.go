package collect

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/httpx"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const figmaAPI = "https://api.figma.com/v1"

type figmaProjects struct {
	Projects []struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	} `json:"projects"`
}

type figmaFiles struct {
	Files []figmaFile `json:"files"`
}

type figmaFile struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url"`
	LastModified string `json:"last_modified"`
}

// DesignSource recovers projects from a design tool team's files.
type DesignSource struct {
	enabled     bool
	maxProjects int
	token       string
	teamID      string
	baseURL     string
	client      *http.Client
	retry       httpx.RetryConfig
	now         func() time.Time
}

// NewDesignSource creates the design tool source.
func NewDesignSource(cfg config.FigmaScraping, token, teamID string) *DesignSource {
	d := &DesignSource{
		enabled:     cfg.Enabled,
		maxProjects: cfg.MaxProjects,
		token:       token,
		teamID:      teamID,
		baseURL:     figmaAPI,
		client:      &http.Client{Timeout: 30 * time.Second},
		retry:       httpx.DefaultRetryConfig(),
		now:         time.Now,
	}
	if d.maxProjects <= 0 {
		d.maxProjects = 20
	}
	return d
}

func (d *DesignSource) Name() string       { return "figma" }
func (d *DesignSource) Enabled() bool      { return d.enabled }
func (d *DesignSource) IsConfigured() bool { return d.token != "" }

// Scrape walks the team's projects and their files.
func (d *DesignSource) Scrape(ctx context.Context) []*model.Project {
	if d.teamID == "" {
		log.Println("Figma API requires team_id to list projects; set figma.team_id in config")
		return nil
	}

	var teams figmaProjects
	if err := d.get(ctx, "/teams/"+url.PathEscape(d.teamID)+"/projects", &teams); err != nil {
		log.Printf("Error scraping Figma: %v", err)
		return nil
	}

	var projects []*model.Project
	for i, tp := range teams.Projects {
		if i >= d.maxProjects {
			break
		}
		id := strings.Trim(string(tp.ID), `"`)
		var files figmaFiles
		if err := d.get(ctx, "/projects/"+url.PathEscape(id)+"/files", &files); err != nil {
			log.Printf("Error fetching files for Figma project %s: %v", id, err)
			continue
		}
		for _, f := range files.Files {
			projects = append(projects, d.project(f, tp.Name))
		}
	}
	return projects
}

func (d *DesignSource) get(ctx context.Context, path string, out any) error {
	return httpx.DoJSON(ctx, d.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(d.baseURL, "/")+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Figma-Token", d.token)
		return req, nil
	}, out, d.retry)
}

func (d *DesignSource) project(f figmaFile, projectName string) *model.Project {
	name := f.Name
	if name == "" {
		name = "Untitled Design"
	}
	if projectName == "" {
		projectName = "Unknown"
	}

	p := model.NewProject(name, "Figma design file from project: "+projectName, model.CategoryDesign, model.SourceFigma)
	if t, err := time.Parse(time.RFC3339, f.LastModified); err == nil {
		p.Date = t
	} else {
		p.Date = d.now()
	}
	if f.Key != "" {
		p.Links = []string{"https://www.figma.com/file/" + f.Key}
	}
	if f.ThumbnailURL != "" {
		p.Images = []string{f.ThumbnailURL}
	}
	p.Tags = []string{"figma", "design", projectName}
	p.Raw = map[string]any{
		"file_key":     f.Key,
		"project_name": projectName,
	}
	p.SetConfidence(0.8)
	return p
}
