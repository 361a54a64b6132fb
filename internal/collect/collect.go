package collect

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const defaultMaxParallel = 4

// Source is one place past work can be recovered from. Scrape never returns
// an error: failures are logged and yield an empty or partial list.
type Source interface {
	Name() string
	Enabled() bool
	IsConfigured() bool
	Scrape(ctx context.Context) []*model.Project
}

// CanScrape reports whether s is both enabled and configured.
func CanScrape(s Source) bool {
	return s.Enabled() && s.IsConfigured()
}

// Result holds the results of a collection run.
type Result struct {
	TotalFound int
	Sources    map[string]int
	Skipped    []string
	Failed     []string
	Duration   time.Duration
}

// Option configures a Collector.
type Option func(*Collector)

// WithMaxParallel bounds how many sources scrape at once.
func WithMaxParallel(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

// WithSourceTimeout abandons a source that runs longer than d. Zero disables it.
func WithSourceTimeout(d time.Duration) Option {
	return func(c *Collector) { c.timeout = d }
}

// WithObserver registers a callback fired once per source that ran.
func WithObserver(fn func(source string, found int, failed bool)) Option {
	return func(c *Collector) { c.observe = fn }
}

// WithDebug turns on debug log lines.
func WithDebug(on bool) Option {
	return func(c *Collector) { c.debug = on }
}

// Collector scrapes every runnable source with bounded fan-out and
// concatenates the results in registration order.
type Collector struct {
	sources     []Source
	maxParallel int
	timeout     time.Duration
	observe     func(string, int, bool)
	debug       bool
}

// NewCollector creates a collector over sources, in the order given.
func NewCollector(sources []Source, opts ...Option) *Collector {
	c := &Collector{
		sources:     sources,
		maxParallel: defaultMaxParallel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the registered sources.
func (c *Collector) Sources() []Source {
	return c.sources
}

// Collect runs every source that can scrape. A source that panics or
// exceeds the timeout contributes nothing.
func (c *Collector) Collect(ctx context.Context) ([]*model.Project, *Result) {
	start := time.Now()
	r := &Result{Sources: make(map[string]int)}
	slots := make([][]*model.Project, len(c.sources))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)

	for i, s := range c.sources {
		if !CanScrape(s) {
			c.debugf("Skipping %s: enabled=%t configured=%t", s.Name(), s.Enabled(), s.IsConfigured())
			r.Skipped = append(r.Skipped, s.Name())
			continue
		}

		g.Go(func() error {
			log.Printf("Scraping %s...", s.Name())
			items, err := c.run(gctx, s)
			slots[i] = items

			mu.Lock()
			r.Sources[s.Name()] = len(items)
			if err != nil {
				r.Failed = append(r.Failed, s.Name())
			}
			mu.Unlock()

			if err != nil {
				log.Printf("Warning: %s failed: %v", s.Name(), err)
			} else {
				log.Printf("Found %d projects from %s", len(items), s.Name())
			}
			if c.observe != nil {
				c.observe(s.Name(), len(items), err != nil)
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []*model.Project
	for _, items := range slots {
		all = append(all, items...)
	}
	r.TotalFound = len(all)
	r.Duration = time.Since(start)

	log.Printf("Collection complete: %d found from %d sources (%d skipped, %d failed)",
		r.TotalFound, len(r.Sources), len(r.Skipped), len(r.Failed))
	return all, r
}

func (c *Collector) run(ctx context.Context, s Source) ([]*model.Project, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	type outcome struct {
		items []*model.Project
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		done <- outcome{items: s.Scrape(ctx)}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return o.items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Collector) debugf(format string, args ...any) {
	if c.debug {
		log.Printf("DEBUG "+format, args...)
	}
}
