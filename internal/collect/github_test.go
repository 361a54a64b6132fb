package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

func TestRepositorySourceScrape(t *testing.T) {
	var gotAffiliation, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/repos" {
			http.NotFound(w, r)
			return
		}
		gotAffiliation = r.URL.Query().Get("affiliation")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name":"necromancer","full_name":"ada/necromancer","description":"Portfolio generator","html_url":"https://github.com/ada/necromancer","homepage":"https://necro.example","language":"Go","topics":["cli","portfolio"],"pushed_at":"2024-05-01T00:00:00Z"},
			{"name":"someone-elses","fork":true},
			{"name":"old-thing","archived":true},
			{"name":"dotfiles","html_url":"https://github.com/ada/dotfiles"}
		]`))
	}))
	defer srv.Close()

	src := NewRepositorySource(config.GitHubScraping{Enabled: true, MaxRepos: 5}, "ghp-test")
	src.baseURL = srv.URL

	projects := src.Scrape(context.Background())
	require.Len(t, projects, 2)
	assert.Equal(t, "owner", gotAffiliation)
	assert.Equal(t, "Bearer ghp-test", gotAuth)

	p := projects[0]
	assert.Equal(t, "necromancer", p.Title)
	assert.Equal(t, model.CategoryCode, p.Category)
	assert.Equal(t, model.SourceGitHub, p.Source)
	assert.Equal(t, "Portfolio generator", p.Description)
	assert.Equal(t, []string{"https://necro.example", "https://github.com/ada/necromancer"}, p.Links)
	assert.Equal(t, []string{"github", "go", "cli", "portfolio"}, p.Tags)
	assert.Equal(t, 2024, p.Date.Year())
	assert.InDelta(t, 0.6, p.Confidence, 1e-9)

	assert.Equal(t, "A repository on GitHub", projects[1].Description)
}

func TestRepositorySourceRespectsMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"a"},{"name":"b"},{"name":"c"}]`))
	}))
	defer srv.Close()

	src := NewRepositorySource(config.GitHubScraping{Enabled: true, MaxRepos: 2}, "ghp-test")
	src.baseURL = srv.URL
	assert.Len(t, src.Scrape(context.Background()), 2)
}

func TestRepositorySourceUnauthorizedYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials","documentation_url":"https://docs.github.com/rest"}`))
	}))
	defer srv.Close()

	src := NewRepositorySource(config.GitHubScraping{Enabled: true, MaxRepos: 5}, "ghp-expired")
	src.baseURL = srv.URL

	assert.Empty(t, src.Scrape(context.Background()))
}

func TestRepositorySourceKeepsPagesBeforeFailure(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"Server Error"}`))
			return
		}
		w.Header().Set("Link", `<`+srv.URL+`/user/repos?page=2>; rel="next"`)
		w.Write([]byte(`[{"name":"a"},{"name":"b"}]`))
	}))
	defer srv.Close()

	src := NewRepositorySource(config.GitHubScraping{Enabled: true, MaxRepos: 10}, "ghp-test")
	src.baseURL = srv.URL

	projects := src.Scrape(context.Background())
	require.Len(t, projects, 2)
	assert.Equal(t, "a", projects[0].Title)
}
