package collect

import (
	"context"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const chatQuery = "project OR portfolio OR completed OR finished OR launched OR delivered"

var chatKeywords = []string{
	"project", "portfolio", "work", "completed", "finished",
	"launched", "delivered", "shipped", "released", "built",
	"created", "designed", "developed", "implemented",
}

var (
	bracketURL = regexp.MustCompile(`<(https?://[^>]+)>`)
	plainURL   = regexp.MustCompile(`https?://[^\s<>"]+`)
)

// ChatSource recovers projects from chat messages announcing finished work.
type ChatSource struct {
	enabled     bool
	maxMessages int
	token       string
	apiURL      string
	now         func() time.Time
}

// NewChatSource creates the chat search source.
func NewChatSource(cfg config.SlackScraping, token string) *ChatSource {
	c := &ChatSource{
		enabled:     cfg.Enabled,
		maxMessages: cfg.MaxMessages,
		token:       token,
		now:         time.Now,
	}
	if c.maxMessages <= 0 {
		c.maxMessages = 100
	}
	return c
}

func (c *ChatSource) Name() string       { return "slack" }
func (c *ChatSource) Enabled() bool      { return c.enabled }
func (c *ChatSource) IsConfigured() bool { return c.token != "" }

func (c *ChatSource) client() *slack.Client {
	if c.apiURL != "" {
		return slack.New(c.token, slack.OptionAPIURL(c.apiURL))
	}
	return slack.New(c.token)
}

// Scrape searches the workspace for announcement-style messages.
func (c *ChatSource) Scrape(ctx context.Context) []*model.Project {
	res, err := c.client().SearchMessagesContext(ctx, chatQuery, slack.SearchParameters{
		Sort:          "timestamp",
		SortDirection: "desc",
		Count:         c.maxMessages,
		Page:          1,
	})
	if err != nil {
		log.Printf("Error scraping Slack: %v", err)
		return nil
	}

	var projects []*model.Project
	for _, msg := range res.Matches {
		if p := c.project(msg); p != nil {
			projects = append(projects, p)
		}
	}
	return projects
}

func (c *ChatSource) project(msg slack.SearchMessage) *model.Project {
	text := msg.Text
	title := chatTitle(text)
	if len([]rune(text)) < 20 || !containsAny(strings.ToLower(text), chatKeywords) {
		return nil
	}

	username := msg.Username
	if username == "" {
		username = "Unknown"
	}
	channel := msg.Channel.Name
	if channel == "" {
		channel = "unknown"
	}

	p := model.NewProject(title, ellipsize(text, 300), model.CategoryMisc, model.SourceSlack)
	p.Date = c.parseTS(msg.Timestamp)
	p.Links = extractLinks(text)
	p.Tags = []string{"slack", username}
	p.Raw = map[string]any{
		"channel":   channel,
		"username":  username,
		"permalink": msg.Permalink,
	}
	p.SetConfidence(0.5)
	return p
}

func (c *ChatSource) parseTS(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || f <= 0 {
		return c.now()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// chatTitle takes the first line, or its first sentence when the line is
// long, capped at 60 characters.
func chatTitle(text string) string {
	first := strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if len([]rune(first)) > 80 {
		first = strings.SplitN(first, ".", 2)[0]
	}
	first = truncate(first, 60)
	if first == "" {
		return "Slack Discussion"
	}
	return first
}

// extractLinks collects bracketed and bare URLs, deduplicated in first-seen order.
func extractLinks(text string) []string {
	var links []string
	seen := make(map[string]bool)
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			links = append(links, u)
		}
	}
	for _, m := range bracketURL.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range plainURL.FindAllString(text, -1) {
		add(m)
	}
	return links
}
