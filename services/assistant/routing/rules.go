// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routing maps free-text Spanish questions to catalog reports
// without a model call: an ordered keyword rule set picks the report and
// lightweight extractors fill its parameters from the question text.
package routing

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Intent Rules
// =============================================================================

//go:embed intent_rules.yaml
var defaultIntentRulesYAML []byte

// =============================================================================
// Intent Rule Types
// =============================================================================

// IntentRule routes questions containing any of its keywords to a report.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentRule struct {
	// Report is the catalog report this rule selects.
	Report string `yaml:"report"`

	// Keywords are lowercase substrings matched against the question.
	// Any hit selects the rule.
	Keywords []string `yaml:"keywords"`

	// Reason documents why the rule sits where it does in the order.
	Reason string `yaml:"reason"`
}

// RuleSet is the ordered list of intent rules. Order is significant: the
// first matching rule wins.
type RuleSet struct {
	Rules []IntentRule `yaml:"rules"`
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleSet
	defaultRulesErr  error
)

// DefaultIntentRules returns the embedded rule set, loaded once.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func DefaultIntentRules() (*RuleSet, error) {
	defaultRulesOnce.Do(func() {
		defaultRules, defaultRulesErr = LoadIntentRules(defaultIntentRulesYAML)
	})
	return defaultRules, defaultRulesErr
}

// LoadIntentRules parses and validates a rule set from YAML bytes.
func LoadIntentRules(data []byte) (*RuleSet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("routing: empty rules data")
	}

	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("routing: parsing rules YAML: %w", err)
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("routing: rule set declares no rules")
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i, rule := range rs.Rules {
		if rule.Report == "" {
			return nil, fmt.Errorf("routing: rule[%d]: report must not be empty", i)
		}
		if seen[rule.Report] {
			return nil, fmt.Errorf("routing: rule[%d]: duplicate rule for report %q", i, rule.Report)
		}
		seen[rule.Report] = true
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("routing: rule[%d] (%s): keywords must not be empty", i, rule.Report)
		}
		for j, kw := range rule.Keywords {
			if kw == "" {
				return nil, fmt.Errorf("routing: rule[%d] (%s): keyword[%d] is empty", i, rule.Report, j)
			}
		}
	}

	slog.Info("intent rules loaded", slog.Int("rules", len(rs.Rules)))
	return &rs, nil
}
