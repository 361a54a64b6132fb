package collect

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const (
	defaultMaxPerFeed  = 20
	feedDescriptionLen = 300
	minArticleText     = 100
)

// FeedSource recovers the owner's published writing from their own
// RSS/Atom feeds.
type FeedSource struct {
	enabled  bool
	feeds    []config.Feed
	maxItems int
	client   *http.Client
	now      func() time.Time
}

// NewFeedSource creates the feed source.
func NewFeedSource(cfg config.FeedScraping) *FeedSource {
	f := &FeedSource{
		enabled:  cfg.Enabled,
		feeds:    cfg.URLs,
		maxItems: cfg.MaxItems,
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		now: time.Now,
	}
	if f.maxItems <= 0 {
		f.maxItems = defaultMaxPerFeed
	}
	return f
}

func (f *FeedSource) Name() string       { return "feed" }
func (f *FeedSource) Enabled() bool      { return f.enabled }
func (f *FeedSource) IsConfigured() bool { return len(f.feeds) > 0 }

// Scrape parses every configured feed. A failing feed is skipped.
func (f *FeedSource) Scrape(ctx context.Context) []*model.Project {
	parser := gofeed.NewParser()
	parser.Client = f.client

	var all []*model.Project
	for _, fc := range f.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feed, err := parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		var n int
		for _, item := range feed.Items {
			if n >= f.maxItems {
				break
			}
			p := f.project(ctx, item, name)
			if p == nil {
				continue
			}
			all = append(all, p)
			n++
		}
		log.Printf("Parsed %d entries from %s", n, name)
	}
	return all
}

func (f *FeedSource) project(ctx context.Context, item *gofeed.Item, source string) *model.Project {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		log.Printf("Warning: skipping feed item without link or title from %s", source)
		return nil
	}

	var content string
	if item.Content != "" {
		content = stripHTML(item.Content)
	} else if item.Description != "" {
		content = stripHTML(item.Description)
	}
	if content == "" {
		content = f.fetchArticle(ctx, link)
	}
	if content == "" {
		content = "Published on " + source
	}

	p := model.NewProject(title, ellipsize(content, feedDescriptionLen), model.CategoryWriting, model.SourceFeed)
	switch {
	case item.PublishedParsed != nil:
		p.Date = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		p.Date = *item.UpdatedParsed
	default:
		p.Date = f.now()
	}
	p.Links = []string{link}
	if item.Image != nil && item.Image.URL != "" {
		p.Images = []string{item.Image.URL}
	}
	p.Tags = append([]string{"feed", source}, item.Categories...)
	p.Raw = map[string]any{
		"feed": source,
		"guid": item.GUID,
		"link": link,
	}
	p.SetConfidence(0.7)
	return p
}

// fetchArticle downloads the page and extracts its readable text. Any
// failure yields "".
func (f *FeedSource) fetchArticle(ctx context.Context, articleURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "PortfolioNecromancer/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("HTTP %d fetching %s", resp.StatusCode, articleURL)
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return ""
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > minArticleText {
		return text
	}
	return ""
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	).Replace(result.String())

	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
