// Package provider implements the AI backends that perform Korean
// proofreading on a single chunk of text.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnavailable is returned when a requested provider has no API key configured.
var ErrUnavailable = errors.New("provider not available")

// Issue categories reported by providers.
const (
	IssueSpelling    = "spelling"
	IssueGrammar     = "grammar"
	IssuePunctuation = "punctuation"
	IssueStyle       = "style"
)

// Span is a half-open [Start, End) range into the corrected text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Issue is one detected correction.
type Issue struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Position    Span   `json:"position"`
	Type        string `json:"type"`
	Explanation string `json:"explanation"`
}

// ChunkResult is the outcome of proofreading one chunk.
type ChunkResult struct {
	CorrectedText string  `json:"corrected_text"`
	Issues        []Issue `json:"issues"`
}

// Provider proofreads Korean text one chunk at a time.
type Provider interface {
	Name() string
	// Available reports whether the provider is configured (API key present).
	Available() bool
	Check(ctx context.Context, chunk string) (ChunkResult, error)
}

// preferenceOrder is the fallback order when no provider is requested.
var preferenceOrder = []string{"claude", "openai", "gemini"}

// Registry holds the configured providers and resolves them by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers, keyed by name.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the named provider if it is configured and available.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if !p.Available() {
		return nil, fmt.Errorf("provider %q: %w", name, ErrUnavailable)
	}
	return p, nil
}

// Default returns the first available provider in preference order.
func (r *Registry) Default() (Provider, error) {
	for _, name := range preferenceOrder {
		if p, ok := r.providers[name]; ok && p.Available() {
			return p, nil
		}
	}
	for _, name := range r.names() {
		if p := r.providers[name]; p.Available() {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no provider configured: %w", ErrUnavailable)
}

// Resolve returns the named provider, or the default when name is empty.
func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		return r.Default()
	}
	return r.Get(name)
}

// Availability returns a name → available map for every registered provider.
func (r *Registry) Availability(_ context.Context) map[string]bool {
	result := make(map[string]bool, len(r.providers))
	for name, p := range r.providers {
		result[name] = p.Available()
	}
	return result
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
