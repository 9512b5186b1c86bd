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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mercadolabs/storebot/services/assistant/catalog"
	"github.com/mercadolabs/storebot/services/assistant/routing"
	"github.com/mercadolabs/storebot/services/llm"
	"github.com/mercadolabs/storebot/services/store"
)

// ==== Mocks ====

type mockChat struct {
	mu    sync.Mutex
	calls int
	fn    func(messages []llm.ChatMessage, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error)
}

func (m *mockChat) ChatWithTools(_ context.Context, messages []llm.ChatMessage, _ llm.GenerationParams, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fn(messages, tools)
}

type mockExecutor struct {
	mu        sync.Mutex
	calls     int
	templates []string
	params    []map[string]any
	fn        func(template string, params map[string]any) ([]store.Row, error)
}

func (m *mockExecutor) Execute(_ context.Context, template string, params map[string]any) ([]store.Row, error) {
	m.mu.Lock()
	m.calls++
	m.templates = append(m.templates, template)
	m.params = append(m.params, params)
	m.mu.Unlock()
	return m.fn(template, params)
}

func newTestOrchestrator(t *testing.T, chat llm.ChatClient, exec ReportExecutor) *Orchestrator {
	t.Helper()
	reg := catalog.NewRegistry(2025)
	rules, err := routing.DefaultIntentRules()
	if err != nil {
		t.Fatalf("loading rules: %v", err)
	}
	now := func() time.Time { return time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC) }
	matcher, err := routing.NewMatcher(reg, rules, 2025, now)
	if err != nil {
		t.Fatalf("building matcher: %v", err)
	}
	o, err := NewOrchestrator(reg, matcher, exec, chat, nil)
	if err != nil {
		t.Fatalf("building orchestrator: %v", err)
	}
	return o
}

// ==== Tests ====

func TestOrchestrator_KeywordPathSkipsModel(t *testing.T) {
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		t.Error("model must not be called when a keyword rule matched")
		return nil, errors.New("unexpected")
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return []store.Row{{"nombre": "Camisa", "cantidad_vendida": int64(42)}}, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	answer, err := o.Respond(context.Background(), "¿Top 5 productos más vendidos en enero?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "Resultados de top_products_by_quantity:") {
		t.Errorf("answer missing result label:\n%s", answer)
	}
	if !strings.Contains(answer, "Camisa") {
		t.Errorf("answer missing row data:\n%s", answer)
	}
	if exec.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", exec.calls)
	}

	// The synthesized invocation fully binds the report's schema.
	got := exec.params[0]
	if got["top_n"] != 5 {
		t.Errorf("top_n = %v, want 5", got["top_n"])
	}
	if got["fecha_inicio"] != "2025-01-01" || got["fecha_fin"] != "2025-01-31" {
		t.Errorf("dates = %v / %v, want January bounds", got["fecha_inicio"], got["fecha_fin"])
	}
}

func TestOrchestrator_KeywordSearchBindsTerm(t *testing.T) {
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		t.Error("model must not be called when a keyword rule matched")
		return nil, errors.New("unexpected")
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return []store.Row{{"nombre": "Coca Cola 2.25L", "stock": int64(80)}}, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	answer, err := o.Respond(context.Background(), "buscar producto Coca Cola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "Resultados de search_products_by_name:") {
		t.Errorf("answer missing result label:\n%s", answer)
	}
	got := exec.params[0]
	if got["term"] != "coca cola" {
		t.Errorf("term = %v, want %q", got["term"], "coca cola")
	}
	if got["limit"] != 25 {
		t.Errorf("limit = %v, want default 25", got["limit"])
	}
}

func TestOrchestrator_ModelFallbackDirectAnswer(t *testing.T) {
	chat := &mockChat{fn: func(messages []llm.ChatMessage, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		if messages[0].Role != RoleSystem {
			t.Errorf("first message role = %s, want system", messages[0].Role)
		}
		if len(tools) != 17 {
			t.Errorf("model sees %d tools, want the full catalog of 17", len(tools))
		}
		return &llm.ChatWithToolsResult{Content: "Hola, ¿en qué puedo ayudarte?", StopReason: "end"}, nil
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		t.Error("executor must not run for a direct answer")
		return nil, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	answer, err := o.Respond(context.Background(), "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Hola, ¿en qué puedo ayudarte?" {
		t.Errorf("answer = %q", answer)
	}
	if chat.calls != 1 {
		t.Errorf("model calls = %d, want 1", chat.calls)
	}
}

func TestOrchestrator_ModelToolCallStopsAfterOneRoundTrip(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"threshold": 50})
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		return &llm.ChatWithToolsResult{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCallResponse{
				{ID: "call_1", Name: "low_stock_products", Arguments: args},
			},
		}, nil
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return []store.Row{{"nombre": "Detergente", "stock": int64(12)}}, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	// "qué hay en depósito" matches no keyword rule.
	answer, err := o.Respond(context.Background(), "¿qué hay en depósito?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, "low_stock_products") {
		t.Errorf("answer missing tool label:\n%s", answer)
	}
	// The tool result short-circuits the next cycle: one model call only.
	if chat.calls != 1 {
		t.Errorf("model calls = %d, want 1", chat.calls)
	}
	if exec.params[0]["threshold"] != 50 {
		t.Errorf("threshold = %v, want the model-supplied 50", exec.params[0]["threshold"])
	}
}

func TestOrchestrator_ModelArgumentsOverlayDefaults(t *testing.T) {
	// Malformed values fall back to defaults; well-formed ones stick.
	args, _ := json.Marshal(map[string]any{
		"top_n":        float64(3),
		"fecha_inicio": "not-a-date",
		"fecha_fin":    "2025-06-30",
	})
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		return &llm.ChatWithToolsResult{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCallResponse{
				{ID: "call_1", Name: "most_frequent_customers", Arguments: args},
			},
		}, nil
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return nil, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	if _, err := o.Respond(context.Background(), "dame ese dato"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := exec.params[0]
	if got["top_n"] != 3 {
		t.Errorf("top_n = %v, want 3", got["top_n"])
	}
	if got["fecha_inicio"] != "2025-01-01" {
		t.Errorf("fecha_inicio = %v, want the default after a malformed date", got["fecha_inicio"])
	}
	if got["fecha_fin"] != "2025-06-30" {
		t.Errorf("fecha_fin = %v, want the supplied date", got["fecha_fin"])
	}
}

func TestOrchestrator_ConcurrentToolCallsAllComplete(t *testing.T) {
	calls := []llm.ToolCallResponse{
		{ID: "call_1", Name: "total_inventory_value", Arguments: json.RawMessage(`{}`)},
		{ID: "call_2", Name: "inventory_by_category", Arguments: json.RawMessage(`{}`)},
	}
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		return &llm.ChatWithToolsResult{StopReason: "tool_use", ToolCalls: calls}, nil
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return []store.Row{{"valor_total": 9000.0}}, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	answer, err := o.Respond(context.Background(), "dame un resumen completo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls != 2 {
		t.Errorf("executor calls = %d, want 2", exec.calls)
	}
	// Results append in call order; the formatter uses the latest one.
	if !strings.Contains(answer, "inventory_by_category") {
		t.Errorf("answer should carry the second call's result:\n%s", answer)
	}
}

func TestOrchestrator_ExecutorErrorSurfaces(t *testing.T) {
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return nil, errors.New("connection refused")
	}}
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		t.Error("model must not be called")
		return nil, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	_, err := o.Respond(context.Background(), "ventas de enero")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error should carry the store failure, got: %v", err)
	}
}

func TestOrchestrator_ModelErrorSurfaces(t *testing.T) {
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		return nil, errors.New("model unavailable")
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) { return nil, nil }}
	o := newTestOrchestrator(t, chat, exec)

	_, err := o.Respond(context.Background(), "hola")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("error = %v", err)
	}
}

func TestOrchestrator_UnknownToolFromModel(t *testing.T) {
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		return &llm.ChatWithToolsResult{
			StopReason: "tool_use",
			ToolCalls: []llm.ToolCallResponse{
				{ID: "call_1", Name: "no_such_report", Arguments: json.RawMessage(`{}`)},
			},
		}, nil
	}}
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) { return nil, nil }}
	o := newTestOrchestrator(t, chat, exec)

	_, err := o.Respond(context.Background(), "dame ese dato")
	if !errors.Is(err, catalog.ErrUnknownReport) {
		t.Errorf("expected ErrUnknownReport, got %v", err)
	}
}

func TestOrchestrator_EmptyResultIsValid(t *testing.T) {
	exec := &mockExecutor{fn: func(string, map[string]any) ([]store.Row, error) {
		return nil, nil
	}}
	chat := &mockChat{fn: func([]llm.ChatMessage, []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
		t.Error("model must not be called")
		return nil, nil
	}}
	o := newTestOrchestrator(t, chat, exec)

	answer, err := o.Respond(context.Background(), "rotación de inventario")
	if err != nil {
		t.Fatalf("empty result must not error: %v", err)
	}
	if !strings.Contains(answer, "[]") {
		t.Errorf("answer should render an empty result set:\n%s", answer)
	}
}
