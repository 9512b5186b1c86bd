// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mercadolabs/storebot/services/assistant/catalog"
	"github.com/mercadolabs/storebot/services/assistant/routing"
	"github.com/mercadolabs/storebot/services/llm"
	"github.com/mercadolabs/storebot/services/store"
)

const (
	// HistoryScanWindow bounds the backward scan for a same-turn tool
	// result. Five entries cover a system prompt, the user message, an
	// assistant tool request, and its results; scanning further would
	// cost more than it finds. In a long-lived conversation the window
	// could also surface a result from an earlier turn, which is the
	// accepted trade-off of a bounded scan.
	HistoryScanWindow = 5

	// MaxCycles is the hard ceiling on agent-tool cycles per turn. With
	// request-local conversations it cannot fire through Respond: any
	// dispatch lands its tool results inside the scan window so the next
	// cycle settles, and a direct answer or an error ends the turn on
	// the spot. It stays as a backstop for any future path that cycles
	// without producing one of those outcomes.
	MaxCycles = 10
)

// ErrRecursionExceeded ends a turn whose agent-tool cycle never
// converged on an answer.
var ErrRecursionExceeded = errors.New("agent: tool cycle exceeded ceiling without an answer")

// ReportExecutor runs a report query template with bound parameters.
// Satisfied by store.Executor.
type ReportExecutor interface {
	Execute(ctx context.Context, template string, params map[string]any) ([]store.Row, error)
}

// Orchestrator answers one question per call.
//
// Description:
//
//	Each turn runs a fresh, request-local conversation through a small
//	cycle: settle for an already-produced tool result, route through
//	the keyword matcher, or fall back to the model with every report
//	exposed as a tool. Tool invocations within one cycle run
//	concurrently against the store and all complete before the next
//	cycle starts.
//
// Thread Safety: safe for concurrent use; all turn state is local to
// Respond.
type Orchestrator struct {
	registry *catalog.Registry
	matcher  *routing.Matcher
	executor ReportExecutor
	chat     llm.ChatClient
	tools    []llm.ToolDef
	logger   *slog.Logger
}

// NewOrchestrator wires the routing pipeline. All collaborators are
// required except logger, which defaults to slog.Default.
func NewOrchestrator(registry *catalog.Registry, matcher *routing.Matcher, executor ReportExecutor, chat llm.ChatClient, logger *slog.Logger) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("agent: registry must not be nil")
	}
	if matcher == nil {
		return nil, fmt.Errorf("agent: matcher must not be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("agent: executor must not be nil")
	}
	if chat == nil {
		return nil, fmt.Errorf("agent: chat client must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: registry,
		matcher:  matcher,
		executor: executor,
		chat:     chat,
		tools:    catalog.ToolDefs(registry),
		logger:   logger,
	}, nil
}

// Respond answers a single user message and returns the final
// user-visible text.
func (o *Orchestrator) Respond(ctx context.Context, message string) (string, error) {
	ctx, span := agentTracer.Start(ctx, "agent.Respond")
	defer span.End()
	start := time.Now()
	defer func() { turnLatency.Observe(time.Since(start).Seconds()) }()

	conv := NewConversation()
	conv.EnsureSystem(SystemPrompt)
	conv.Append(llm.ChatMessage{Role: RoleUser, Content: message})

	path := pathModel
	for cycle := 0; cycle < MaxCycles; cycle++ {
		// A tool result produced this turn answers it; no second trip
		// through the model.
		if conv.HasRecentToolResult(HistoryScanWindow) {
			turnsTotal.WithLabelValues(path).Inc()
			span.SetAttributes(
				attribute.String("agent.path", path),
				attribute.Int("agent.cycles", cycle),
			)
			return FormatAnswer(conv), nil
		}

		if match, ok := o.matcher.Match(ctx, conv.LatestUserUtterance()); ok {
			path = pathKeyword
			o.logger.Info("question routed by keyword",
				slog.String("report", match.Report.Name),
				slog.String("keyword", match.Keyword))
			if err := o.dispatch(ctx, conv, o.synthesizeInvocation(conv, match)); err != nil {
				return o.fail(span, err)
			}
			continue
		}

		result, err := o.chat.ChatWithTools(ctx, conv.Messages(), llm.GenerationParams{}, o.tools)
		if err != nil {
			return o.fail(span, fmt.Errorf("agent: model call: %w", err))
		}
		if len(result.ToolCalls) > 0 {
			conv.Append(llm.ChatMessage{
				Role:      RoleAssistant,
				Content:   result.Content,
				ToolCalls: result.ToolCalls,
			})
			if err := o.dispatch(ctx, conv, result.ToolCalls); err != nil {
				return o.fail(span, err)
			}
			continue
		}

		conv.Append(llm.ChatMessage{Role: RoleAssistant, Content: result.Content})
		turnsTotal.WithLabelValues(pathModel).Inc()
		span.SetAttributes(attribute.String("agent.path", pathModel))
		return FormatAnswer(conv), nil
	}

	cycleCeilingTotal.Inc()
	return o.fail(span, ErrRecursionExceeded)
}

func (o *Orchestrator) fail(span trace.Span, err error) (string, error) {
	turnsTotal.WithLabelValues(pathError).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "turn failed")
	o.logger.Error("turn failed", slog.String("error", err.Error()))
	return "", err
}

// synthesizeInvocation appends the assistant tool-request message for a
// keyword match and returns the calls to dispatch.
func (o *Orchestrator) synthesizeInvocation(conv *Conversation, match *routing.Match) []llm.ToolCallResponse {
	args, _ := json.Marshal(match.Params)
	calls := []llm.ToolCallResponse{{
		ID:        uuid.NewString(),
		Name:      match.Report.Name,
		Arguments: args,
	}}
	conv.Append(llm.ChatMessage{Role: RoleAssistant, ToolCalls: calls})
	return calls
}

// dispatch executes every requested tool call concurrently, then appends
// all results in call order. The join barrier keeps the conversation a
// single-writer structure: nothing is appended until every call is done.
func (o *Orchestrator) dispatch(ctx context.Context, conv *Conversation, calls []llm.ToolCallResponse) error {
	results := make([]llm.ChatMessage, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			def, err := o.registry.Get(call.Name)
			if err != nil {
				return err
			}
			params, err := o.bindArguments(def, call)
			if err != nil {
				return err
			}
			rows, err := o.executor.Execute(gctx, def.Query, params)
			if err != nil {
				return err
			}
			if def.Postprocess != nil {
				rows = def.Postprocess(rows)
			}
			if rows == nil {
				rows = []store.Row{}
			}
			payload, err := json.Marshal(rows)
			if err != nil {
				return fmt.Errorf("agent: encoding result of %s: %w", call.Name, err)
			}
			results[i] = llm.ChatMessage{
				Role:       RoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("agent: dispatch: %w", err)
	}
	for _, msg := range results {
		conv.Append(msg)
	}
	return nil
}

// bindArguments resolves a call's arguments against the report's
// parameter schema: defaults first, then well-formed values from the
// call overlaid. Malformed values fall back to the default rather than
// failing the turn.
func (o *Orchestrator) bindArguments(def *catalog.ReportDefinition, call llm.ToolCallResponse) (map[string]any, error) {
	params := o.registry.DefaultParams(def)

	var supplied map[string]any
	if err := json.Unmarshal([]byte(call.ArgumentsString()), &supplied); err != nil {
		return nil, fmt.Errorf("agent: arguments of %s are not an object: %w", call.Name, err)
	}

	for _, p := range def.Params {
		v, ok := supplied[p.Name]
		if !ok {
			continue
		}
		switch p.Kind {
		case catalog.ParamInt:
			if n, ok := asInt(v); ok && n >= 0 {
				params[p.Name] = n
			}
		case catalog.ParamDateStart, catalog.ParamDateEnd:
			if s, ok := v.(string); ok && isISODate(s) {
				params[p.Name] = s
			}
		case catalog.ParamString:
			if s, ok := v.(string); ok {
				params[p.Name] = s
			}
		}
	}
	return params, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
