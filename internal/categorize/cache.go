package categorize

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

// Fingerprint keys the cache on title, description and the sorted tag set.
func Fingerprint(p *model.Project) string {
	tags := append([]string(nil), p.Tags...)
	sort.Strings(tags)
	sum := md5.Sum([]byte(p.Title + "|" + p.Description + "|" + strings.Join(tags, ",")))
	return hex.EncodeToString(sum[:])
}

// cache is process-local and never evicts.
type cache struct {
	mu      sync.RWMutex
	entries map[string]model.Category
}

func newCache() *cache {
	return &cache{entries: make(map[string]model.Category)}
}

func (c *cache) get(key string) (model.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat, ok := c.entries[key]
	return cat, ok
}

func (c *cache) put(key string, cat model.Category) {
	c.mu.Lock()
	c.entries[key] = cat
	c.mu.Unlock()
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
