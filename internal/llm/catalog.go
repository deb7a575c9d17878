package llm

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// Family names a provider wire protocol. It matches Provider.ID.
type Family string

const (
	FamilyAnthropic Family = "anthropic"
	FamilyOpenAI    Family = "openai"
	FamilyOllama    Family = "ollama"
)

// DefaultModelID is used when a request names no model or an unknown one.
const DefaultModelID = "claude-sonnet-4-5"

// ollamaPrefix lets any local model be addressed without a catalog entry.
const ollamaPrefix = "ollama/"

const (
	remoteCacheTTL     = time.Hour
	remoteCacheCleanup = 10 * time.Minute
	remoteCacheKey     = "remote-models"
)

// Model is one catalog entry. ID is what users pick; Name is what the
// provider receives.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Family      Family `json:"family"`
	DisplayName string `json:"displayName"`
}

var builtinModels = []Model{
	{ID: "claude-sonnet-4-5", Family: FamilyAnthropic, DisplayName: "Claude Sonnet 4.5"},
	{ID: "claude-opus-4-1", Family: FamilyAnthropic, DisplayName: "Claude Opus 4.1"},
	{ID: "claude-haiku-4-5", Family: FamilyAnthropic, DisplayName: "Claude Haiku 4.5"},
	{ID: "gpt-4o", Family: FamilyOpenAI, DisplayName: "GPT-4o"},
	{ID: "gpt-4o-mini", Family: FamilyOpenAI, DisplayName: "GPT-4o mini"},
	{ID: "gpt-4.1", Family: FamilyOpenAI, DisplayName: "GPT-4.1"},
	{ID: "ollama/llama3.1", Family: FamilyOllama, DisplayName: "Llama 3.1 (local)"},
}

// Catalog resolves model ids and caches upstream model listings.
type Catalog struct {
	models    map[string]Model
	order     []string
	defaultID string
	cache     *cache.Cache
}

// NewCatalog builds a catalog of the built-in models plus extra. An empty or
// unknown defaultID falls back to DefaultModelID.
func NewCatalog(defaultID string, extra ...Model) *Catalog {
	c := &Catalog{
		models: map[string]Model{},
		cache:  cache.New(remoteCacheTTL, remoteCacheCleanup),
	}
	for _, m := range append(append([]Model(nil), builtinModels...), extra...) {
		c.add(m)
	}
	c.defaultID = DefaultModelID
	if _, ok := c.models[strings.TrimSpace(defaultID)]; ok {
		c.defaultID = strings.TrimSpace(defaultID)
	}
	return c
}

func (c *Catalog) add(m Model) {
	if m.Name == "" {
		m.Name = strings.TrimPrefix(m.ID, ollamaPrefix)
	}
	if m.DisplayName == "" {
		m.DisplayName = m.ID
	}
	if _, exists := c.models[m.ID]; !exists {
		c.order = append(c.order, m.ID)
	}
	c.models[m.ID] = m
}

// Default returns the model unknown ids resolve to.
func (c *Catalog) Default() Model {
	return c.models[c.defaultID]
}

// Resolve maps a user-supplied id to a catalog model. Ids with the "ollama/"
// prefix address local models directly; anything else unknown resolves to
// the default.
func (c *Catalog) Resolve(id string) Model {
	id = strings.TrimSpace(id)
	if m, ok := c.models[id]; ok {
		return m
	}
	if name := strings.TrimPrefix(id, ollamaPrefix); name != id && name != "" {
		return Model{ID: id, Name: name, Family: FamilyOllama, DisplayName: name + " (local)"}
	}
	return c.Default()
}

// Models lists the catalog in registration order.
func (c *Catalog) Models() []Model {
	out := make([]Model, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}

// Remote asks every lister for its upstream models. Results are cached for an
// hour; a lister that fails is skipped unless all of them fail.
func (c *Catalog) Remote(ctx context.Context, listers ...ModelLister) ([]Model, error) {
	if cached, ok := c.cache.Get(remoteCacheKey); ok {
		return cached.([]Model), nil
	}
	var (
		models []Model
		errs   []error
	)
	for _, lister := range listers {
		found, err := lister.ListModels(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		models = append(models, found...)
	}
	if len(models) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Family != models[j].Family {
			return models[i].Family < models[j].Family
		}
		return models[i].ID < models[j].ID
	})
	c.cache.Set(remoteCacheKey, models, cache.DefaultExpiration)
	return models, nil
}

// Listers returns the gateway's providers that can list models.
func (g *Gateway) Listers() []ModelLister {
	var out []ModelLister
	for _, p := range g.Providers() {
		if l, ok := p.(ModelLister); ok {
			out = append(out, l)
		}
	}
	return out
}
