// Package filter implements the rules that exempt items from classification.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"freshrss_filter/internal/content"
	"freshrss_filter/internal/model"
)

type compiled struct {
	rule  model.Rule
	value string
	re    *regexp.Regexp
}

// Set is a compiled list of skip rules. The zero value and nil match nothing.
type Set struct {
	rules []compiled
}

// Compile validates rules and precompiles regular expressions.
// Matching is case-insensitive for both kinds. An empty scope means all.
func Compile(rules []model.Rule) (*Set, error) {
	s := &Set{}
	for i, r := range rules {
		if r.Scope == "" {
			r.Scope = model.ScopeAll
		}
		switch r.Scope {
		case model.ScopeTitle, model.ScopeContent, model.ScopeAll:
		default:
			return nil, fmt.Errorf("rule %d: invalid scope %q, use: title, content, all", i, r.Scope)
		}
		if strings.TrimSpace(r.Value) == "" {
			return nil, fmt.Errorf("rule %d: value is required", i)
		}

		c := compiled{rule: r}
		switch r.Kind {
		case model.RuleContains:
			c.value = strings.ToLower(r.Value)
		case model.RuleRegex:
			re, err := regexp.Compile("(?i)" + r.Value)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid regex: %w", i, err)
			}
			c.re = re
		default:
			return nil, fmt.Errorf("rule %d: invalid kind %q, use: contains, regex", i, r.Kind)
		}
		s.rules = append(s.rules, c)
	}
	return s, nil
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Match returns the first rule matching the item.
func (s *Set) Match(item model.Item) (model.Rule, bool) {
	if s.Len() == 0 {
		return model.Rule{}, false
	}

	var body string
	for _, c := range s.rules {
		if c.rule.Scope != model.ScopeTitle && body == "" {
			body = bodyText(item)
		}
		if matches(c, textForScope(item.Title, body, c.rule.Scope)) {
			return c.rule, true
		}
	}
	return model.Rule{}, false
}

func matches(c compiled, text string) bool {
	if c.re != nil {
		return c.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), c.value)
}

func bodyText(item model.Item) string {
	parts := []string{item.Content}
	if item.HTML != "" {
		parts = append(parts, content.StripHTML(item.HTML))
	}
	return strings.Join(parts, " ")
}

func textForScope(title, body string, scope model.RuleScope) string {
	switch scope {
	case model.ScopeTitle:
		return title
	case model.ScopeContent:
		return body
	default:
		return title + " " + body
	}
}
