package categorize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/portfolio-necromancer/internal/llm"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const (
	// HighConfidence is the threshold above which a source's own label is kept.
	HighConfidence = 0.7
	// BatchBoost is added to every project's confidence after batch classification.
	BatchBoost = 0.2

	modelMaxTokens   = 50
	modelTemperature = 0.3
)

const systemPrompt = "You are a project categorization expert. Categorize projects accurately."

const categorizePrompt = `Categorize this project into one of these categories: Writing, Design, Code, or Miscellaneous Unicorn Work.

Project Title: %s
Description: %s
Source: %s
Tags: %s

Respond with ONLY the category name, nothing else.`

// Tier names the rule that decided a project's category.
type Tier string

const (
	TierTrusted  Tier = "trusted"
	TierCache    Tier = "cache"
	TierModel    Tier = "model"
	TierKeywords Tier = "keywords"
)

// Result holds per-tier counts for the classifier's lifetime.
type Result struct {
	Processed int
	Trusted   int
	Cached    int
	Model     int
	Keywords  int
}

// Strategy is one rung of the classification ladder. Apply reports false to
// pass the project on to the next strategy.
type Strategy struct {
	Tier  Tier
	Apply func(ctx context.Context, p *model.Project, key string) (model.Category, bool)
	Store bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout bounds each language model call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// WithObserver registers a callback fired once per classification with the deciding tier.
func WithObserver(fn func(Tier)) Option {
	return func(c *Classifier) { c.observe = fn }
}

// Classifier assigns categories using trusted labels, a fingerprint cache,
// an optional language model, and keyword rules, in that order.
type Classifier struct {
	provider   llm.Provider
	strategies []Strategy
	cache      *cache
	group      singleflight.Group
	timeout    time.Duration
	observe    func(Tier)

	mu    sync.Mutex
	stats Result
}

type outcome struct {
	category model.Category
	tier     Tier
}

// NewClassifier creates a classifier. provider may be nil.
func NewClassifier(provider llm.Provider, opts ...Option) *Classifier {
	c := &Classifier{
		provider: provider,
		cache:    newCache(),
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.strategies = []Strategy{
		{Tier: TierCache, Apply: c.fromCache},
		{Tier: TierModel, Apply: c.fromModel, Store: true},
		{Tier: TierKeywords, Apply: c.fromKeywords, Store: true},
	}
	return c
}

// Categorize returns the category for p without modifying it.
func (c *Classifier) Categorize(ctx context.Context, p *model.Project) model.Category {
	o := c.classify(ctx, p)
	c.record(o.tier)
	return o.category
}

// CategorizeBatch sets each project's category in place and raises its
// confidence by BatchBoost, capped at 1.0. Order is preserved.
func (c *Classifier) CategorizeBatch(ctx context.Context, projects []*model.Project) []*model.Project {
	for _, p := range projects {
		p.Category = c.Categorize(ctx, p)
		p.Boost(BatchBoost)
	}
	s := c.Stats()
	log.Printf("Categorization complete: %d processed (%d trusted, %d cached, %d model, %d keywords)",
		s.Processed, s.Trusted, s.Cached, s.Model, s.Keywords)
	return projects
}

// Stats returns a snapshot of the per-tier counters.
func (c *Classifier) Stats() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// CacheSize returns the number of cached fingerprints.
func (c *Classifier) CacheSize() int {
	return c.cache.len()
}

func (c *Classifier) classify(ctx context.Context, p *model.Project) outcome {
	if p.Confidence > HighConfidence && p.Category.Valid() {
		return outcome{category: p.Category, tier: TierTrusted}
	}

	key := Fingerprint(p)
	var leader bool
	v, _, _ := c.group.Do(key, func() (any, error) {
		leader = true
		for _, s := range c.strategies {
			cat, ok := s.Apply(ctx, p, key)
			if !ok {
				continue
			}
			if s.Store {
				c.cache.put(key, cat)
			}
			return outcome{category: cat, tier: s.Tier}, nil
		}
		return outcome{category: model.CategoryMisc, tier: TierKeywords}, nil
	})
	o := v.(outcome)
	if !leader {
		// Waited on an in-flight call for the same fingerprint.
		o.tier = TierCache
	}
	return o
}

func (c *Classifier) fromCache(_ context.Context, _ *model.Project, key string) (model.Category, bool) {
	return c.cache.get(key)
}

func (c *Classifier) fromModel(ctx context.Context, p *model.Project, _ string) (model.Category, bool) {
	if c.provider == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(categorizePrompt, p.Title, p.Description, p.Source, strings.Join(p.Tags, ", "))
	reply, err := c.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   modelMaxTokens,
		Temperature: modelTemperature,
	})
	if err != nil {
		log.Printf("Warning: model categorization failed for %q: %v", p.Title, err)
		return "", false
	}

	cat, ok := ParseReply(reply)
	if !ok {
		log.Printf("Warning: unrecognized category reply for %q: %q", p.Title, reply)
	}
	return cat, ok
}

func (c *Classifier) fromKeywords(_ context.Context, p *model.Project, _ string) (model.Category, bool) {
	return ByKeywords(p), true
}

// ParseReply maps a free-text model reply onto a category by case-insensitive
// substring, checking writing, design, code, then miscellaneous/unicorn.
func ParseReply(reply string) (model.Category, bool) {
	r := strings.ToLower(reply)
	switch {
	case strings.Contains(r, "writing"):
		return model.CategoryWriting, true
	case strings.Contains(r, "design"):
		return model.CategoryDesign, true
	case strings.Contains(r, "code"):
		return model.CategoryCode, true
	case strings.Contains(r, "miscellaneous"), strings.Contains(r, "unicorn"):
		return model.CategoryMisc, true
	}
	return "", false
}

func (c *Classifier) record(tier Tier) {
	c.mu.Lock()
	c.stats.Processed++
	switch tier {
	case TierTrusted:
		c.stats.Trusted++
	case TierCache:
		c.stats.Cached++
	case TierModel:
		c.stats.Model++
	case TierKeywords:
		c.stats.Keywords++
	}
	c.mu.Unlock()

	if c.observe != nil {
		c.observe(tier)
	}
}
