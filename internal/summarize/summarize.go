package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/TobiSchelling/portfolio-necromancer/internal/llm"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const (
	// KeepSummaryLen is the length in characters above which an existing summary is kept as is.
	KeepSummaryLen = 50

	modelTemperature = 0.7
	defaultMaxTokens = 500
)

const systemPrompt = "You are an expert at writing compelling portfolio descriptions that highlight achievements and impact."

const summaryPrompt = `Write a compelling, professional portfolio description for this project.

Format: "In this project, %s skillfully [action verb] ..."

Project Title: %s
Category: %s
Description: %s
Source: %s
Tags: %s

Write ONE compelling paragraph of 2-3 sentences that highlights the accomplishment and its impact. Respond with the paragraph only.`

// Tier names the rule that produced a summary.
type Tier string

const (
	TierKept     Tier = "kept"
	TierModel    Tier = "model"
	TierTemplate Tier = "template"
)

// Result holds per-tier counts for the narrator's lifetime.
type Result struct {
	Processed int
	Kept      int
	Model     int
	Template  int
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithMaxTokens sets the model's token budget per summary.
func WithMaxTokens(tokens int) Option {
	return func(n *Narrator) {
		if tokens > 0 {
			n.maxTokens = tokens
		}
	}
}

// WithTimeout bounds each language model call.
func WithTimeout(d time.Duration) Option {
	return func(n *Narrator) { n.timeout = d }
}

// WithObserver registers a callback fired once per summary with the deciding tier.
func WithObserver(fn func(Tier)) Option {
	return func(n *Narrator) { n.observe = fn }
}

// Narrator writes a short accomplishment-framed summary for each project.
type Narrator struct {
	provider  llm.Provider
	ownerName string
	maxTokens int
	timeout   time.Duration
	observe   func(Tier)

	mu    sync.Mutex
	stats Result
}

// NewNarrator creates a narrator writing on behalf of ownerName. provider may be nil.
func NewNarrator(provider llm.Provider, ownerName string, opts ...Option) *Narrator {
	n := &Narrator{
		provider:  provider,
		ownerName: ownerName,
		maxTokens: defaultMaxTokens,
		timeout:   60 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Summarize returns a summary for p without modifying it.
func (n *Narrator) Summarize(ctx context.Context, p *model.Project) string {
	text, tier := n.summarize(ctx, p)
	n.record(tier)
	return text
}

// SummarizeBatch sets Summary on every project in place, preserving order.
func (n *Narrator) SummarizeBatch(ctx context.Context, projects []*model.Project) []*model.Project {
	for _, p := range projects {
		p.Summary = n.Summarize(ctx, p)
	}
	s := n.Stats()
	log.Printf("Summaries complete: %d processed (%d kept, %d model, %d template)",
		s.Processed, s.Kept, s.Model, s.Template)
	return projects
}

// Stats returns a snapshot of the per-tier counters.
func (n *Narrator) Stats() Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

func (n *Narrator) summarize(ctx context.Context, p *model.Project) (string, Tier) {
	if utf8.RuneCountInString(p.Summary) > KeepSummaryLen {
		return p.Summary, TierKept
	}
	if text, ok := n.fromModel(ctx, p); ok {
		return text, TierModel
	}
	return Template(p, n.ownerName), TierTemplate
}

func (n *Narrator) fromModel(ctx context.Context, p *model.Project) (string, bool) {
	if n.provider == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	prompt := fmt.Sprintf(summaryPrompt, n.ownerName, p.Title, p.Category, p.Description, p.Source, strings.Join(p.Tags, ", "))
	reply, err := n.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   n.maxTokens,
		Temperature: modelTemperature,
	})
	if err != nil {
		log.Printf("Warning: model summary failed for %q: %v", p.Title, err)
		return "", false
	}

	text := cleanReply(reply)
	if text == "" {
		return "", false
	}
	return text, true
}

// cleanReply drops double quotes and surrounding whitespace.
func cleanReply(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}

func (n *Narrator) record(tier Tier) {
	n.mu.Lock()
	n.stats.Processed++
	switch tier {
	case TierKept:
		n.stats.Kept++
	case TierModel:
		n.stats.Model++
	case TierTemplate:
		n.stats.Template++
	}
	n.mu.Unlock()

	if n.observe != nil {
		n.observe(tier)
	}
}
