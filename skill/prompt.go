package skill

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PromptSource fetches the published system prompt of a skill.
// An empty result means nothing is published.
type PromptSource interface {
	SystemPrompt(ctx context.Context, skillID string) (string, error)
}

// PromptCache resolves system prompts and keeps them for the life of the
// process until Refresh is called. Lookup order: cached value, configured
// override, published prompt, catalog default. Concurrent lookups for the
// same skill share one fetch.
type PromptCache struct {
	catalog   *Catalog
	source    PromptSource
	overrides map[string]string

	mu     sync.RWMutex
	cached map[string]string
	group  singleflight.Group
}

// NewPromptCache creates a cache. source may be nil to skip published prompts.
func NewPromptCache(catalog *Catalog, source PromptSource, overrides map[string]string) *PromptCache {
	clean := make(map[string]string, len(overrides))
	for id, prompt := range overrides {
		if p := strings.TrimSpace(prompt); p != "" {
			clean[id] = p
		}
	}
	return &PromptCache{
		catalog:   catalog,
		source:    source,
		overrides: clean,
		cached:    make(map[string]string),
	}
}

// SystemPrompt returns the effective system prompt for skillID.
func (c *PromptCache) SystemPrompt(ctx context.Context, skillID string) (string, error) {
	id := c.catalog.Get(skillID).ID

	c.mu.RLock()
	prompt, ok := c.cached[id]
	c.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		c.mu.RLock()
		prompt, ok := c.cached[id]
		c.mu.RUnlock()
		if ok {
			return prompt, nil
		}
		return c.resolve(ctx, id), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// resolve walks the lookup chain. A failed fetch falls back to the catalog
// default without caching it, so the next lookup tries the backend again.
func (c *PromptCache) resolve(ctx context.Context, id string) string {
	if prompt, ok := c.overrides[id]; ok {
		c.store(id, prompt)
		return prompt
	}

	fallback := c.catalog.Get(id).SystemPrompt
	if c.source == nil {
		c.store(id, fallback)
		return fallback
	}

	published, err := c.source.SystemPrompt(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "published system prompt unavailable, using default",
			"skill_id", id,
			"error", err)
		return fallback
	}
	if published == "" {
		published = fallback
	}
	c.store(id, published)
	return published
}

func (c *PromptCache) store(id, prompt string) {
	c.mu.Lock()
	c.cached[id] = prompt
	c.mu.Unlock()
}

// Refresh drops every cached prompt.
func (c *PromptCache) Refresh() {
	c.mu.Lock()
	c.cached = make(map[string]string)
	c.mu.Unlock()
}

// Cached reports whether a prompt for skillID is currently cached.
func (c *PromptCache) Cached(skillID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cached[c.catalog.Get(skillID).ID]
	return ok
}
