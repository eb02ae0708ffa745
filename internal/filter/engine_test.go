package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"freshrss_filter/internal/model"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		item     model.Item
		rules    []model.Rule
		wantRule model.Rule
		wantOK   bool
	}{
		{
			name:  "no rules matches nothing",
			item:  model.Item{Title: "anything", Content: "whatever"},
			rules: nil,
		},
		{
			name:     "contains is case insensitive",
			item:     model.Item{Title: "KUBERNETES release notes"},
			rules:    []model.Rule{{Kind: model.RuleContains, Scope: model.ScopeAll, Value: "release notes"}},
			wantRule: model.Rule{Kind: model.RuleContains, Scope: model.ScopeAll, Value: "release notes"},
			wantOK:   true,
		},
		{
			name:  "title scope ignores body",
			item:  model.Item{Title: "Weekly digest", Content: "changelog inside"},
			rules: []model.Rule{{Kind: model.RuleContains, Scope: model.ScopeTitle, Value: "changelog"}},
		},
		{
			name:     "content scope reads stripped html",
			item:     model.Item{Title: "Post", HTML: "<p>Official <b>changelog</b></p>"},
			rules:    []model.Rule{{Kind: model.RuleContains, Scope: model.ScopeContent, Value: "official changelog"}},
			wantRule: model.Rule{Kind: model.RuleContains, Scope: model.ScopeContent, Value: "official changelog"},
			wantOK:   true,
		},
		{
			name: "regex first match wins",
			item: model.Item{Title: "Go 1.25 released"},
			rules: []model.Rule{
				{Kind: model.RuleRegex, Scope: model.ScopeTitle, Value: `^rust`},
				{Kind: model.RuleRegex, Scope: model.ScopeTitle, Value: `go \d+\.\d+`},
				{Kind: model.RuleContains, Scope: model.ScopeTitle, Value: "released"},
			},
			wantRule: model.Rule{Kind: model.RuleRegex, Scope: model.ScopeTitle, Value: `go \d+\.\d+`},
			wantOK:   true,
		},
		{
			name:     "empty scope defaults to all",
			item:     model.Item{Content: "from the maintainers"},
			rules:    []model.Rule{{Kind: model.RuleContains, Value: "maintainers"}},
			wantRule: model.Rule{Kind: model.RuleContains, Scope: model.ScopeAll, Value: "maintainers"},
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Compile(tt.rules)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			gotRule, gotOK := set.Match(tt.item)
			if diff := cmp.Diff(tt.wantOK, gotOK); diff != "" {
				t.Errorf("Match() ok mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRule, gotRule); diff != "" {
				t.Errorf("Match() rule mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNilSetMatchesNothing(t *testing.T) {
	var s *Set
	if _, ok := s.Match(model.Item{Title: "x"}); ok {
		t.Error("nil set should not match")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		rule model.Rule
	}{
		{name: "bad regex", rule: model.Rule{Kind: model.RuleRegex, Value: "[unclosed"}},
		{name: "bad kind", rule: model.Rule{Kind: "glob", Value: "x"}},
		{name: "bad scope", rule: model.Rule{Kind: model.RuleContains, Scope: "author", Value: "x"}},
		{name: "empty value", rule: model.Rule{Kind: model.RuleContains, Value: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile([]model.Rule{tt.rule}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
