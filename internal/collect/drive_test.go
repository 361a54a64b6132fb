package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

func TestDriveSourceScrape(t *testing.T) {
	var gotQuery, gotOrder, gotSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/files") {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		gotOrder = r.URL.Query().Get("orderBy")
		gotSize = r.URL.Query().Get("pageSize")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"files":[
			{"id":"f1","name":"Annual report","mimeType":"application/pdf","createdTime":"2023-04-05T10:00:00Z","webViewLink":"https://drive.example/f1","description":"Written for Acme"},
			{"id":"f2","name":"Pitch deck","mimeType":"application/vnd.google-apps.presentation","thumbnailLink":"https://thumb.example/f2"},
			{"id":"f3","name":"Budget model","mimeType":"application/vnd.google-apps.spreadsheet"},
			{"id":"","name":"Broken"}
		]}`))
	}))
	defer srv.Close()

	src := NewDriveSource(config.DriveScraping{Enabled: true, MaxFiles: 7}, GoogleAuth{})
	src.newService = func(ctx context.Context) (*drive.Service, error) {
		return drive.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	}

	projects := src.Scrape(context.Background())
	require.Len(t, projects, 3)
	assert.Contains(t, gotQuery, "name contains 'portfolio'")
	assert.Equal(t, "modifiedTime desc", gotOrder)
	assert.Equal(t, "7", gotSize)

	report := projects[0]
	assert.Equal(t, model.CategoryWriting, report.Category)
	assert.Equal(t, "Written for Acme", report.Description)
	assert.Equal(t, []string{"https://drive.example/f1"}, report.Links)
	assert.Equal(t, []string{"google-drive", "pdf"}, report.Tags)
	assert.Equal(t, 2023, report.Date.Year())
	assert.InDelta(t, 0.5, report.Confidence, 1e-9)

	deck := projects[1]
	assert.Equal(t, model.CategoryDesign, deck.Category)
	assert.Equal(t, "A vnd.google-apps.presentation file from Google Drive", deck.Description)
	assert.Equal(t, []string{"https://thumb.example/f2"}, deck.Images)

	assert.Equal(t, model.CategoryCode, projects[2].Category)
}

func TestCategoryForMIME(t *testing.T) {
	cases := map[string]model.Category{
		"application/pdf":                          model.CategoryWriting,
		"text/plain":                               model.CategoryWriting,
		"application/vnd.google-apps.document":     model.CategoryWriting,
		"image/png":                                model.CategoryDesign,
		"application/vnd.google-apps.presentation": model.CategoryDesign,
		"application/vnd.google-apps.spreadsheet":  model.CategoryCode,
		"application/zip":                          model.CategoryMisc,
	}
	for mime, want := range cases {
		assert.Equal(t, want, categoryForMIME(mime), mime)
	}
}

func TestDriveSourceListFailureYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
	}))
	defer srv.Close()

	src := NewDriveSource(config.DriveScraping{Enabled: true, MaxFiles: 5}, GoogleAuth{})
	src.newService = func(ctx context.Context) (*drive.Service, error) {
		return drive.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	}

	assert.Empty(t, src.Scrape(context.Background()))
}
