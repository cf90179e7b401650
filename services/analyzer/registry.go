// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyzer

import (
	"sort"
	"strings"
)

// languageAliases maps lower-cased tags to canonical languages.
var languageAliases = map[string]Language{
	"javascript": LanguageJavaScript,
	"js":         LanguageJavaScript,
	"jsx":        LanguageJavaScript,
	"mjs":        LanguageJavaScript,
	"cjs":        LanguageJavaScript,
	"node":       LanguageJavaScript,
	"nodejs":     LanguageJavaScript,
	"ecmascript": LanguageJavaScript,
	"es6":        LanguageJavaScript,
	"python":     LanguagePython,
	"py":         LanguagePython,
	"python3":    LanguagePython,
	"py3":        LanguagePython,
	"html":       LanguageHTML,
	"htm":        LanguageHTML,
	"xhtml":      LanguageHTML,
	"css":        LanguageCSS,
}

// NormalizeLanguage resolves a free-form tag to a canonical Language.
// Unrecognised tags yield LanguageOther.
func NormalizeLanguage(tag string) Language {
	if lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return lang
	}
	return LanguageOther
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps languages to rule sets.
//
// Thread Safety: Immutable after NewRegistry returns; safe for concurrent
// use.
type Registry struct {
	sets  map[Language]RuleSet
	probe map[Language]bool
}

type registryConfig struct {
	strictHTML   bool
	tagTolerance int
	disabled     map[string]bool
	overrides    map[Language]RuleSet
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

// WithStrictHTML makes a missing doctype or <html> element an error
// instead of a warning.
func WithStrictHTML(strict bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictHTML = strict
	}
}

// WithHTMLTagTolerance sets the open/close count difference per tag that
// html/unclosed-tags accepts. Negative values are treated as zero.
func WithHTMLTagTolerance(n int) RegistryOption {
	return func(c *registryConfig) {
		c.tagTolerance = max(n, 0)
	}
}

// WithDisabledRules removes rules by ID from every rule set.
func WithDisabledRules(ids ...string) RegistryOption {
	return func(c *registryConfig) {
		for _, id := range ids {
			c.disabled[strings.TrimSpace(id)] = true
		}
	}
}

// WithRuleSet replaces the built-in rule set for lang.
func WithRuleSet(lang Language, rules RuleSet) RegistryOption {
	return func(c *registryConfig) {
		c.overrides[lang] = rules
	}
}

// NewRegistry creates a registry with the built-in rule sets.
//
// Description:
//
//	Builds the JavaScript, Python, HTML and CSS rule sets, applies
//	overrides and removes disabled rules. LanguageOther always maps to
//	the empty rule set.
//
// Inputs:
//
//	opts - Registry options.
//
// Outputs:
//
//	*Registry - The registry. Never nil.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := &registryConfig{
		disabled:  make(map[string]bool),
		overrides: make(map[Language]RuleSet),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sets := map[Language]RuleSet{
		LanguageJavaScript: javaScriptRules(),
		LanguagePython:     pythonRules(),
		LanguageHTML:       htmlRules(htmlPolicy{strict: cfg.strictHTML, tagTolerance: cfg.tagTolerance}),
		LanguageCSS:        cssRules(),
		LanguageOther:      {},
	}
	for lang, rules := range cfg.overrides {
		sets[lang] = rules
	}
	for lang, rules := range sets {
		sets[lang] = rules.Without(cfg.disabled)
	}

	return &Registry{
		sets:  sets,
		probe: map[Language]bool{LanguageJavaScript: true},
	}
}

// Lookup resolves tag and returns the canonical language, its rule set
// and whether the dynamic probe applies.
func (r *Registry) Lookup(tag string) (Language, RuleSet, bool) {
	lang := NormalizeLanguage(tag)
	return lang, r.sets[lang], r.probe[lang]
}

// Languages returns the languages with a registered rule set, sorted.
func (r *Registry) Languages() []Language {
	langs := make([]Language, 0, len(r.sets))
	for lang := range r.sets {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}
