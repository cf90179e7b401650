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
	"testing"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		tag  string
		want Language
	}{
		{"javascript", LanguageJavaScript},
		{"JS", LanguageJavaScript},
		{" jsx ", LanguageJavaScript},
		{"NodeJS", LanguageJavaScript},
		{"es6", LanguageJavaScript},
		{"python", LanguagePython},
		{"Py", LanguagePython},
		{"python3", LanguagePython},
		{"HTML", LanguageHTML},
		{"xhtml", LanguageHTML},
		{"css", LanguageCSS},
		{"ruby", LanguageOther},
		{"typescript", LanguageOther},
		{"", LanguageOther},
	}

	for _, tt := range tests {
		if got := NormalizeLanguage(tt.tag); got != tt.want {
			t.Errorf("NormalizeLanguage(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		tag       string
		wantLang  Language
		wantProbe bool
		wantEmpty bool
	}{
		{"js", LanguageJavaScript, true, false},
		{"py", LanguagePython, false, false},
		{"html", LanguageHTML, false, false},
		{"css", LanguageCSS, false, false},
		{"cobol", LanguageOther, false, true},
	}

	for _, tt := range tests {
		lang, rules, probe := r.Lookup(tt.tag)
		if lang != tt.wantLang {
			t.Errorf("Lookup(%q) lang = %v, want %v", tt.tag, lang, tt.wantLang)
		}
		if probe != tt.wantProbe {
			t.Errorf("Lookup(%q) probe = %v, want %v", tt.tag, probe, tt.wantProbe)
		}
		if (len(rules) == 0) != tt.wantEmpty {
			t.Errorf("Lookup(%q) rules = %v, wantEmpty %v", tt.tag, rules.IDs(), tt.wantEmpty)
		}
	}
}

func TestRegistry_Languages(t *testing.T) {
	got := NewRegistry().Languages()
	want := []Language{LanguageCSS, LanguageHTML, LanguageJavaScript, LanguageOther, LanguagePython}
	if len(got) != len(want) {
		t.Fatalf("Languages() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Languages()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRegistry_DisabledRules(t *testing.T) {
	r := NewRegistry(WithDisabledRules("js/var", " css/float-without-clear "))

	_, js, _ := r.Lookup("js")
	for _, id := range js.IDs() {
		if id == "js/var" {
			t.Error("js/var still registered")
		}
	}
	_, css, _ := r.Lookup("css")
	if len(css) != 3 {
		t.Errorf("css rules = %v, want 3 rules", css.IDs())
	}
}

func TestRegistry_StrictHTML(t *testing.T) {
	_, rules, _ := NewRegistry(WithStrictHTML(true)).Lookup("html")
	f, ok := ruleByID(t, rules, "html/doctype").Inspect("<p>x</p>")
	if !ok || f.Severity != SeverityError {
		t.Errorf("strict doctype finding = %+v, %v; want error", f, ok)
	}
}

func TestRegistry_WithRuleSet(t *testing.T) {
	custom := RuleSet{NewRule("other/todo", SeveritySuggestion, func(src string) (string, bool) {
		return "todo found", src == "TODO"
	})}
	_, rules, _ := NewRegistry(WithRuleSet(LanguageOther, custom)).Lookup("fortran")
	if len(rules.Inspect("TODO")) != 1 {
		t.Errorf("custom rule set not used: %v", rules.IDs())
	}
}

func TestWithHTMLTagTolerance_Negative(t *testing.T) {
	_, rules, _ := NewRegistry(WithHTMLTagTolerance(-4)).Lookup("html")
	if _, ok := ruleByID(t, rules, "html/unclosed-tags").Inspect("<p>x"); !ok {
		t.Error("negative tolerance should behave as zero")
	}
}
