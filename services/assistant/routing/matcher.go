// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mercadolabs/storebot/services/assistant/catalog"
)

// ==== Observability ====

var (
	intentMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storebot_intent_matches_total",
		Help: "Questions routed by keyword rule, labeled by report.",
	}, []string{"report"})

	intentFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storebot_intent_fallbacks_total",
		Help: "Questions no keyword rule matched, deferred to the model.",
	})
)

var routingTracer = otel.Tracer("storebot.routing")

// ==== Matcher ====

// Match is a routed question: the selected report and a fully populated
// parameter map for it.
type Match struct {
	Report  *catalog.ReportDefinition
	Keyword string
	Params  map[string]any
}

// Matcher routes questions to reports by ordered keyword rules.
//
// Description:
//
//	Rules are checked in declaration order and the first keyword hit
//	wins, so rule order encodes specificity. Every parameter the
//	selected report declares is populated: dates from the question's
//	date phrases, counts from the question's first number, defaults
//	otherwise.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Matcher struct {
	rules    *RuleSet
	registry *catalog.Registry
	year     int
	now      func() time.Time
}

// NewMatcher validates that every rule names a catalog report and returns
// the matcher. The now func is the reference clock for relative date
// phrases; nil means time.Now.
func NewMatcher(registry *catalog.Registry, rules *RuleSet, year int, now func() time.Time) (*Matcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("routing: registry must not be nil")
	}
	if rules == nil {
		return nil, fmt.Errorf("routing: rules must not be nil")
	}
	for i, rule := range rules.Rules {
		if _, err := registry.Get(rule.Report); err != nil {
			return nil, fmt.Errorf("routing: rule[%d]: %w", i, err)
		}
	}
	if now == nil {
		now = time.Now
	}
	return &Matcher{rules: rules, registry: registry, year: year, now: now}, nil
}

// Match routes the question. The second return is false when no rule
// matched and the caller should fall back to the model.
func (m *Matcher) Match(ctx context.Context, question string) (*Match, bool) {
	_, span := routingTracer.Start(ctx, "routing.Match")
	defer span.End()

	q := strings.ToLower(question)
	for _, rule := range m.rules.Rules {
		for _, kw := range rule.Keywords {
			if !strings.Contains(q, kw) {
				continue
			}
			def, err := m.registry.Get(rule.Report)
			if err != nil {
				// Unreachable after NewMatcher validation.
				continue
			}
			intentMatchesTotal.WithLabelValues(rule.Report).Inc()
			span.SetAttributes(
				attribute.String("routing.report", rule.Report),
				attribute.String("routing.keyword", kw),
			)
			return &Match{
				Report:  def,
				Keyword: kw,
				Params:  m.populateParams(def, question, kw),
			}, true
		}
	}

	intentFallbacksTotal.Inc()
	span.SetAttributes(attribute.Bool("routing.fallback", true))
	return nil, false
}

// populateParams fills every declared parameter of def from the question.
func (m *Matcher) populateParams(def *catalog.ReportDefinition, question, keyword string) map[string]any {
	params := make(map[string]any, len(def.Params))
	var dates *DateRange
	for _, p := range def.Params {
		switch p.Kind {
		case catalog.ParamDateStart, catalog.ParamDateEnd:
			if dates == nil {
				r := ExtractDateRange(question, m.now(), m.year)
				dates = &r
			}
			if p.Kind == catalog.ParamDateStart {
				params[p.Name] = dates.Start
			} else {
				params[p.Name] = dates.End
			}
		case catalog.ParamInt:
			if n, ok := ExtractQuantity(question); ok {
				params[p.Name] = n
			} else {
				params[p.Name] = p.Default
			}
		case catalog.ParamString:
			if term := ExtractSearchTerm(question, keyword); term != "" {
				params[p.Name] = term
			} else {
				params[p.Name] = p.DefaultText
			}
		}
	}
	return params
}
