package collect

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

// RepositorySource recovers projects from the owner's code repositories.
type RepositorySource struct {
	enabled      bool
	maxRepos     int
	includeForks bool
	token        string
	baseURL      string
}

// NewRepositorySource creates the repository source.
func NewRepositorySource(cfg config.GitHubScraping, token string) *RepositorySource {
	r := &RepositorySource{
		enabled:      cfg.Enabled,
		maxRepos:     cfg.MaxRepos,
		includeForks: cfg.IncludeForks,
		token:        token,
	}
	if r.maxRepos <= 0 {
		r.maxRepos = 30
	}
	return r
}

func (r *RepositorySource) Name() string       { return "github" }
func (r *RepositorySource) Enabled() bool      { return r.enabled }
func (r *RepositorySource) IsConfigured() bool { return r.token != "" }

func (r *RepositorySource) client(ctx context.Context) *gh.Client {
	tc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: r.token}))
	tc.Timeout = 30 * time.Second
	c := gh.NewClient(tc)
	if r.baseURL != "" {
		if u, err := url.Parse(strings.TrimRight(r.baseURL, "/") + "/"); err == nil {
			c.BaseURL = u
		}
	}
	return c
}

// Scrape lists owned repositories, most recently updated first.
func (r *RepositorySource) Scrape(ctx context.Context) []*model.Project {
	client := r.client(ctx)
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Affiliation: "owner",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: min(r.maxRepos, 100)},
	}

	var projects []*model.Project
	for len(projects) < r.maxRepos {
		repos, resp, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			log.Printf("Error scraping GitHub: %s", describeGitHubError(err))
			break
		}
		for _, repo := range repos {
			if len(projects) >= r.maxRepos {
				break
			}
			if repo.GetArchived() || (repo.GetFork() && !r.includeForks) {
				continue
			}
			projects = append(projects, repoProject(repo))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return projects
}

func repoProject(repo *gh.Repository) *model.Project {
	desc := repo.GetDescription()
	if desc == "" {
		if lang := repo.GetLanguage(); lang != "" {
			desc = "A " + lang + " repository on GitHub"
		} else {
			desc = "A repository on GitHub"
		}
	}

	p := model.NewProject(repo.GetName(), desc, model.CategoryCode, model.SourceGitHub)
	if t := repo.GetPushedAt(); !t.IsZero() {
		p.Date = t.Time
	} else if t := repo.GetUpdatedAt(); !t.IsZero() {
		p.Date = t.Time
	}

	if home := repo.GetHomepage(); home != "" {
		p.Links = append(p.Links, home)
	}
	if u := repo.GetHTMLURL(); u != "" {
		p.Links = append(p.Links, u)
	}

	p.Tags = []string{"github"}
	if lang := repo.GetLanguage(); lang != "" {
		p.Tags = append(p.Tags, strings.ToLower(lang))
	}
	p.Tags = append(p.Tags, repo.Topics...)

	p.Raw = map[string]any{
		"full_name": repo.GetFullName(),
		"stars":     repo.GetStargazersCount(),
		"fork":      repo.GetFork(),
	}
	p.SetConfidence(0.6)
	return p
}

func describeGitHubError(err error) string {
	var rerr *gh.ErrorResponse
	if errors.As(err, &rerr) && rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusUnauthorized:
			return "unauthorised (invalid token)"
		case http.StatusForbidden:
			return "forbidden or rate limited"
		}
	}
	return err.Error()
}
