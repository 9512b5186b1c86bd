// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog defines the report catalog: every analytics report the
// assistant can run, its SQL template, its parameter schema, and any
// post-processing applied to the raw rows. The catalog is the single source
// of truth for both the keyword router and the model-facing tool
// definitions.
package catalog

import (
	"errors"
	"fmt"

	"github.com/mercadolabs/storebot/services/store"
)

// ==== Parameter schema ====

// ParamKind tells the router how to fill a parameter from a free-text
// question.
type ParamKind string

const (
	// ParamDateStart is filled with the start of the extracted date range.
	ParamDateStart ParamKind = "date_start"
	// ParamDateEnd is filled with the end of the extracted date range.
	ParamDateEnd ParamKind = "date_end"
	// ParamInt is filled with the first number in the question, or the
	// declared default when the question carries none.
	ParamInt ParamKind = "int"
	// ParamString is filled with the free text left after the matched
	// keyword, or the declared default text.
	ParamString ParamKind = "string"
)

// ParamSpec declares one report parameter. Default applies to ParamInt,
// DefaultText to ParamString; date parameters default to the registry's
// operating window.
type ParamSpec struct {
	Name        string
	Kind        ParamKind
	Description string
	Default     int
	DefaultText string
}

// ==== Report definitions ====

// Postprocessor reshapes raw query rows before they are returned, for
// derived columns the database does not compute.
type Postprocessor func(rows []store.Row) []store.Row

// ReportDefinition is one entry in the catalog.
type ReportDefinition struct {
	// Name is the stable report identifier, also used as the tool name.
	Name string
	// Description is shown to the model and in the reports listing.
	Description string
	// Params declares every parameter the Query references.
	Params []ParamSpec
	// Query is a SQL template with :name placeholders.
	Query string
	// Postprocess is optional; nil means rows pass through untouched.
	Postprocess Postprocessor
}

// ErrUnknownReport is returned by Get for names outside the catalog.
var ErrUnknownReport = errors.New("catalog: unknown report")

// Registry holds the full report catalog in a stable order.
//
// Thread Safety: immutable after construction; safe for concurrent reads.
type Registry struct {
	reports []ReportDefinition
	byName  map[string]*ReportDefinition

	defaultStart string
	defaultEnd   string
}

// NewRegistry builds the catalog for the given operating year. Date
// parameters default to January 1st of that year through December 31st of
// the next, matching the window the store's data covers.
func NewRegistry(year int) *Registry {
	r := &Registry{
		defaultStart: fmt.Sprintf("%d-01-01", year),
		defaultEnd:   fmt.Sprintf("%d-12-31", year+1),
	}
	r.reports = buildReports()
	r.byName = make(map[string]*ReportDefinition, len(r.reports))
	for i := range r.reports {
		r.byName[r.reports[i].Name] = &r.reports[i]
	}
	return r
}

// Get returns the report by name, or ErrUnknownReport.
func (r *Registry) Get(name string) (*ReportDefinition, error) {
	def, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReport, name)
	}
	return def, nil
}

// List returns the catalog in declaration order. The returned slice must
// not be modified.
func (r *Registry) List() []ReportDefinition {
	return r.reports
}

// DefaultDateRange is the window used when a question names no dates.
func (r *Registry) DefaultDateRange() (start, end string) {
	return r.defaultStart, r.defaultEnd
}

// DefaultParams returns every parameter of def filled with its default
// value.
func (r *Registry) DefaultParams(def *ReportDefinition) map[string]any {
	params := make(map[string]any, len(def.Params))
	for _, p := range def.Params {
		switch p.Kind {
		case ParamDateStart:
			params[p.Name] = r.defaultStart
		case ParamDateEnd:
			params[p.Name] = r.defaultEnd
		case ParamInt:
			params[p.Name] = p.Default
		case ParamString:
			params[p.Name] = p.DefaultText
		}
	}
	return params
}
