package catalog

import (
	"fmt"
	"sort"
	"strings"

	"mathtikz/internal/config"
	"mathtikz/internal/services"
)

// Resolution reports how a key was mapped.
type Resolution struct {
	Key      string
	Model    string
	Fallback bool
}

// Catalog maps model keys (raw ids or aliases) to upstream ids.
type Catalog struct {
	defaultID string
	allowed   map[string]struct{}
	ordered   []string
	aliases   map[string]string
	strict    bool
}

// New builds a catalog. The default id is always part of the allow-list.
func New(defaultID string, allowed []string, aliases map[string]string, strict bool) (*Catalog, error) {
	defaultID = strings.TrimSpace(defaultID)
	if defaultID == "" {
		return nil, fmt.Errorf("catalog: default model required")
	}
	c := &Catalog{
		defaultID: defaultID,
		allowed:   make(map[string]struct{}, len(allowed)+1),
		aliases:   make(map[string]string, len(aliases)),
		strict:    strict,
	}
	c.add(defaultID)
	for _, id := range allowed {
		c.add(id)
	}
	for key, target := range aliases {
		key = strings.ToLower(strings.TrimSpace(key))
		target = strings.TrimSpace(target)
		if key == "" || target == "" {
			continue
		}
		c.aliases[key] = target
		c.add(target)
	}
	return c, nil
}

// FromConfig builds a catalog from the [models] section.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	return New(cfg.Models.Default, cfg.Models.Allowed, cfg.Models.Aliases, cfg.Models.Strict)
}

func (c *Catalog) add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if _, ok := c.allowed[id]; ok {
		return
	}
	c.allowed[id] = struct{}{}
	c.ordered = append(c.ordered, id)
}

// Default returns the designated fallback model id.
func (c *Catalog) Default() string {
	return c.defaultID
}

// Strict reports whether unknown keys are rejected.
func (c *Catalog) Strict() bool {
	return c.strict
}

// Resolve maps key to an upstream id. Empty or unknown keys yield the default.
// The returned id is never empty.
func (c *Catalog) Resolve(key string) string {
	res, _ := c.lookup(key)
	return res.Model
}

// Lookup is Resolve with strict-mode enforcement: in strict mode an unknown
// non-empty key is a validation error instead of a fallback.
func (c *Catalog) Lookup(key string) (Resolution, error) {
	res, known := c.lookup(key)
	if !known && c.strict && res.Key != "" {
		return res, services.Wrap(
			services.ErrValidation,
			"catalog",
			"resolve",
			fmt.Sprintf("Modelo desconhecido: %s", res.Key),
			nil,
		)
	}
	return res, nil
}

func (c *Catalog) lookup(key string) (Resolution, bool) {
	key = strings.TrimSpace(key)
	res := Resolution{Key: key, Model: c.defaultID}
	if key == "" {
		return res, true
	}
	if _, ok := c.allowed[key]; ok {
		res.Model = key
		return res, true
	}
	if target, ok := c.aliases[strings.ToLower(key)]; ok {
		res.Model = target
		return res, true
	}
	res.Fallback = true
	return res, false
}

// Entry describes one catalog row for listings.
type Entry struct {
	ID      string
	Aliases []string
	Default bool
}

// Entries lists models in configuration order with their aliases.
func (c *Catalog) Entries() []Entry {
	byTarget := make(map[string][]string)
	for alias, target := range c.aliases {
		byTarget[target] = append(byTarget[target], alias)
	}
	entries := make([]Entry, 0, len(c.ordered))
	for _, id := range c.ordered {
		aliases := byTarget[id]
		sort.Strings(aliases)
		entries = append(entries, Entry{ID: id, Aliases: aliases, Default: id == c.defaultID})
	}
	return entries
}
