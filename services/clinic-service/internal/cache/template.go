package cache

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

// RuleLoader reads a professional's weekly rules from the system of record.
type RuleLoader interface {
	WeeklyRules(ctx context.Context, professionalID string) ([]scheduling.Rule, error)
}

// TemplateCache keeps recently used weekly rule sets in memory. Entries are
// dropped when a schedule is replaced, locally or by another replica.
type TemplateCache struct {
	loader RuleLoader
	logger *slog.Logger

	mu    sync.Mutex
	cache *lru.Cache[string, []scheduling.Rule]
	// gen and epoch are bumped on invalidation and purge so a load that raced
	// with one is not stored.
	gen   map[string]uint64
	epoch uint64
}

func NewTemplateCache(loader RuleLoader, size int, logger *slog.Logger) (*TemplateCache, error) {
	if size <= 0 {
		size = 512
	}
	c, err := lru.New[string, []scheduling.Rule](size)
	if err != nil {
		return nil, err
	}
	return &TemplateCache{loader: loader, logger: logger, cache: c, gen: map[string]uint64{}}, nil
}

func (c *TemplateCache) WeeklyRules(ctx context.Context, professionalID string) ([]scheduling.Rule, error) {
	c.mu.Lock()
	if rules, ok := c.cache.Get(professionalID); ok {
		c.mu.Unlock()
		return rules, nil
	}
	gen := c.epoch + c.gen[professionalID]
	c.mu.Unlock()

	rules, err := c.loader.WeeklyRules(ctx, professionalID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.epoch+c.gen[professionalID] == gen {
		c.cache.Add(professionalID, rules)
	}
	c.mu.Unlock()
	return rules, nil
}

func (c *TemplateCache) Invalidate(professionalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[professionalID]++
	if c.cache.Remove(professionalID) && c.logger != nil {
		c.logger.Debug("template cache entry dropped", "professional_id", professionalID)
	}
}

func (c *TemplateCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cache.Purge()
}

func (c *TemplateCache) Len() int {
	return c.cache.Len()
}
