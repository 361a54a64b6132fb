package collect

import (
	"context"
	"log"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const driveQuery = "(mimeType='application/pdf' or mimeType='application/vnd.google-apps.document' or " +
	"mimeType='application/vnd.google-apps.presentation' or " +
	"mimeType contains 'image/' or name contains 'project' or name contains 'portfolio')"

const driveFields = "files(id,name,mimeType,createdTime,modifiedTime,webViewLink,thumbnailLink,description)"

// DriveSource recovers projects from documents, decks and images in cloud storage.
type DriveSource struct {
	enabled    bool
	maxFiles   int
	auth       GoogleAuth
	limiter    *RateLimiter
	newService func(ctx context.Context) (*drive.Service, error)
	now        func() time.Time
}

// NewDriveSource creates the cloud document source.
func NewDriveSource(cfg config.DriveScraping, auth GoogleAuth) *DriveSource {
	d := &DriveSource{
		enabled:  cfg.Enabled,
		maxFiles: cfg.MaxFiles,
		auth:     auth,
		limiter:  newRateLimiter(driveRate),
		now:      time.Now,
	}
	if d.maxFiles <= 0 {
		d.maxFiles = 50
	}
	d.newService = func(ctx context.Context) (*drive.Service, error) {
		ts, err := d.auth.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return drive.NewService(ctx, option.WithTokenSource(ts))
	}
	return d
}

func (d *DriveSource) Name() string       { return "google_drive" }
func (d *DriveSource) Enabled() bool      { return d.enabled }
func (d *DriveSource) IsConfigured() bool { return d.auth.Configured() }

// Scrape lists the most recently modified matching files.
func (d *DriveSource) Scrape(ctx context.Context) []*model.Project {
	svc, err := d.newService(ctx)
	if err != nil {
		log.Printf("Failed to authenticate with Google Drive: %v", err)
		return nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil
	}
	list, err := svc.Files.List().
		Q(driveQuery).
		PageSize(int64(d.maxFiles)).
		Fields(driveFields).
		OrderBy("modifiedTime desc").
		Context(ctx).
		Do()
	if err != nil {
		d.limiter.observe(err)
		log.Printf("Error scraping Google Drive: %s", describeGoogleError(err))
		return nil
	}

	projects := make([]*model.Project, 0, len(list.Files))
	for _, f := range list.Files {
		if f.Id == "" {
			log.Printf("Warning: skipping drive file without id: %q", f.Name)
			continue
		}
		projects = append(projects, d.project(f))
	}
	return projects
}

func (d *DriveSource) project(f *drive.File) *model.Project {
	name := f.Name
	if name == "" {
		name = "Untitled"
	}
	subtype := mimeSubtype(f.MimeType)

	desc := f.Description
	if desc == "" || desc == name {
		desc = "A " + subtype + " file from Google Drive"
	}

	p := model.NewProject(name, desc, categoryForMIME(f.MimeType), model.SourceGoogleDrive)
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		p.Date = t
	} else {
		p.Date = d.now()
	}
	if f.WebViewLink != "" {
		p.Links = []string{f.WebViewLink}
	}
	if f.ThumbnailLink != "" {
		p.Images = []string{f.ThumbnailLink}
	}
	p.Tags = []string{"google-drive", subtype}
	p.Raw = map[string]any{
		"file_id":   f.Id,
		"mime_type": f.MimeType,
		"web_link":  f.WebViewLink,
	}
	p.SetConfidence(0.5)
	return p
}

func mimeSubtype(mime string) string {
	if i := strings.LastIndex(mime, "/"); i >= 0 {
		return mime[i+1:]
	}
	return mime
}

func categoryForMIME(mime string) model.Category {
	switch {
	case containsAny(mime, []string{"document", "text", "pdf"}):
		return model.CategoryWriting
	case containsAny(mime, []string{"image", "presentation"}):
		return model.CategoryDesign
	case strings.Contains(mime, "spreadsheet"):
		return model.CategoryCode
	}
	return model.CategoryMisc
}
