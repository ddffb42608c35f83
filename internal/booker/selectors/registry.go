package selectors

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SelectorNotFoundError means the site profile has no locator for a
// (pageContext, semanticName) pair the workflow asked for. This is a
// configuration defect: either the profile is stale or the site changed.
// Callers must abort the current step, never guess a locator.
type SelectorNotFoundError struct {
	Page string
	Name string
}

func (e *SelectorNotFoundError) Error() string {
	return fmt.Sprintf("selector not found: page=%q name=%q", e.Page, e.Name)
}

// Registry maps (pageContext, semanticName) pairs to locator expressions for
// one site profile. It is the single source of truth for where things are on
// the target site; locators never live anywhere else in the codebase. Loaded
// once at process start and read-only afterwards.
type Registry struct {
	site  string
	table map[string]map[string]string
}

type profileFile struct {
	Site     string                       `yaml:"site"`
	Contexts map[string]map[string]string `yaml:"contexts"`
}

// Load reads a site profile from a yaml file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector profile: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from yaml profile bytes.
func Parse(data []byte) (*Registry, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse selector profile: %w", err)
	}
	if file.Site == "" {
		return nil, fmt.Errorf("selector profile is missing a site name")
	}
	if len(file.Contexts) == 0 {
		return nil, fmt.Errorf("selector profile %q has no contexts", file.Site)
	}
	for page, entries := range file.Contexts {
		for name, expr := range entries {
			if strings.TrimSpace(expr) == "" {
				return nil, fmt.Errorf("selector profile %q: empty locator for %s/%s", file.Site, page, name)
			}
		}
	}
	return &Registry{site: file.Site, table: file.Contexts}, nil
}

// New builds a registry directly from a table. Used by tests.
func New(site string, table map[string]map[string]string) *Registry {
	return &Registry{site: site, table: table}
}

// Site returns the profile's site name.
func (r *Registry) Site() string {
	return r.site
}

// Resolve returns the locator for the pair, or *SelectorNotFoundError.
func (r *Registry) Resolve(page, name string) (string, error) {
	if entries, ok := r.table[page]; ok {
		if expr, ok := entries[name]; ok {
			return expr, nil
		}
	}
	return "", &SelectorNotFoundError{Page: page, Name: name}
}

// Optional resolves a pair the workflow is allowed to treat as absent (search
// affordances, overlays, collapsible widgets). Absence is reported as ok=false
// instead of an error; any other failure mode still surfaces through Resolve.
func Optional(r *Registry, page, name string) (string, bool) {
	expr, err := r.Resolve(page, name)
	if err != nil {
		return "", false
	}
	return expr, true
}

// ResolveAuto is Resolve plus a small set of deterministic fallbacks: a
// case-insensitive match of the semantic name within the same page context.
// It never synthesizes a locator from free text.
func (r *Registry) ResolveAuto(page, name string) (string, error) {
	expr, err := r.Resolve(page, name)
	if err == nil {
		return expr, nil
	}
	if entries, ok := r.table[page]; ok {
		lower := strings.ToLower(name)
		for key, expr := range entries {
			if strings.ToLower(key) == lower {
				return expr, nil
			}
		}
	}
	return "", &SelectorNotFoundError{Page: page, Name: name}
}
