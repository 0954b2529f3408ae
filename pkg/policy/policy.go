package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// Policy is the full escalation policy configuration.
// It is treated as immutable for the lifetime of a process; hot reload
// replaces the whole Policy atomically rather than mutating it.
type Policy struct {
	// Version is a free-form policy version label (e.g. "policy@2026-08").
	Version string `yaml:"version"`

	// Rules contains the three named pattern rule sets. The set of rule
	// names is fixed; rules are addressed explicitly, never by iterating
	// a map.
	Rules Rules `yaml:"rules"`

	// Guards contains pre-model guard settings.
	Guards Guards `yaml:"guards"`

	// Thresholds contains the model probability cutoff.
	Thresholds Thresholds `yaml:"thresholds"`
}

// Rules groups the named rule sets evaluated by the decision engine.
type Rules struct {
	// ExplicitHumanRequest matches user text asking for a human agent.
	ExplicitHumanRequest RuleSet `yaml:"explicit_human_request"`

	// RiskTerms matches user text containing compliance or risk terms.
	RiskTerms RuleSet `yaml:"risk_terms"`

	// BotUnhelpfulTemplates matches bot text that is a known unhelpful
	// template response.
	BotUnhelpfulTemplates RuleSet `yaml:"bot_unhelpful_templates"`
}

// Guards contains turn-count guard settings.
type Guards struct {
	// MinTurnBeforeModel is the user-turn floor below which the model is
	// not consulted.
	MinTurnBeforeModel int `yaml:"min_turn_before_model"`
}

// Thresholds contains the model score cutoffs.
type Thresholds struct {
	// Tau is the probability at or above which a model score is treated
	// as an escalation. Must be in [0, 1].
	Tau float64 `yaml:"tau"`
}

// RuleSet is one named pattern rule: an enable flag plus an ordered list of
// regular expressions. Patterns are matched with case-insensitive search
// semantics (the input is lower-cased, then each pattern is searched, not
// full-matched).
type RuleSet struct {
	// Enabled disables the rule entirely when false. A missing key means
	// enabled; use the pointer to distinguish "absent" from "false".
	Enabled *bool `yaml:"enabled"`

	// Patterns is the ordered list of regular expressions.
	Patterns []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// IsEnabled reports whether the rule set is enabled. Absent defaults to true.
func (r *RuleSet) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Matches reports whether the rule fires for the given text: the rule must
// be enabled, have at least one pattern, and any single pattern match is
// sufficient.
func (r *RuleSet) Matches(text string) bool {
	if !r.IsEnabled() {
		return false
	}
	return r.AnyPatternMatches(text)
}

// AnyPatternMatches reports whether any configured pattern matches the text,
// ignoring the enable flag. Feature extraction uses this form: disabling a
// rule stops it from firing as a rule but does not blank the corresponding
// model feature.
func (r *RuleSet) AnyPatternMatches(text string) bool {
	if len(r.compiled) == 0 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, re := range r.compiled {
		if re.MatchString(lowered) {
			return true
		}
	}
	return false
}

// compile compiles all patterns in the rule set. ruleName is used in error
// messages only.
func (r *RuleSet) compile(ruleName string) error {
	r.compiled = make([]*regexp.Regexp, 0, len(r.Patterns))
	for i, pattern := range r.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("rule %q pattern %d (%q): %w", ruleName, i, pattern, err)
		}
		r.compiled = append(r.compiled, re)
	}
	return nil
}

// Compile compiles every pattern in the policy and validates the guard and
// threshold values. It must be called once after unmarshalling and before
// the policy is used; any failure is a configuration error.
func (p *Policy) Compile() error {
	if err := p.Rules.ExplicitHumanRequest.compile("explicit_human_request"); err != nil {
		return err
	}
	if err := p.Rules.RiskTerms.compile("risk_terms"); err != nil {
		return err
	}
	if err := p.Rules.BotUnhelpfulTemplates.compile("bot_unhelpful_templates"); err != nil {
		return err
	}
	if p.Guards.MinTurnBeforeModel < 0 {
		return fmt.Errorf("guards.min_turn_before_model must be >= 0, got %d", p.Guards.MinTurnBeforeModel)
	}
	if p.Thresholds.Tau < 0 || p.Thresholds.Tau > 1 {
		return fmt.Errorf("thresholds.tau must be in [0, 1], got %g", p.Thresholds.Tau)
	}
	return nil
}
