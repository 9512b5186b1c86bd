// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type mockResponder struct {
	fn func(message string) (string, error)
}

func (m *mockResponder) Respond(_ context.Context, message string) (string, error) {
	return m.fn(message)
}

func newTestRouter(handlers *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func postChat(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	return postChatFrom(t, router, body, "192.0.2.1:1234")
}

func postChatFrom(t *testing.T, router *gin.Engine, body, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleChat_Answer(t *testing.T) {
	responder := &mockResponder{fn: func(message string) (string, error) {
		if message != "¿Cuánto vendimos en enero?" {
			t.Errorf("message = %q", message)
		}
		return "Resultados de sales_by_date: ...", nil
	}}
	router := newTestRouter(NewHandlers(responder, nil, nil))

	w := postChat(t, router, `{"message": "¿Cuánto vendimos en enero?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "Resultados de sales_by_date: ..." {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestHandleChat_MissingMessage(t *testing.T) {
	responder := &mockResponder{fn: func(string) (string, error) {
		t.Error("responder must not run without a message")
		return "", nil
	}}
	router := newTestRouter(NewHandlers(responder, nil, nil))

	w := postChat(t, router, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleChat_ErrorTruncatedInBody(t *testing.T) {
	long := strings.Repeat("x", 300)
	responder := &mockResponder{fn: func(string) (string, error) {
		return "", errors.New(long)
	}}
	router := newTestRouter(NewHandlers(responder, nil, nil))

	w := postChat(t, router, `{"message": "ventas"}`)
	// Failures stay in-band: the transport still sees a normal reply.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Answer) != ErrorTruncateLen+len("...") {
		t.Errorf("answer length = %d, want %d", len(resp.Answer), ErrorTruncateLen+3)
	}
	if !strings.HasPrefix(resp.Answer, "xxx") || !strings.HasSuffix(resp.Answer, "...") {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestHandleChat_ShortErrorNotTruncated(t *testing.T) {
	responder := &mockResponder{fn: func(string) (string, error) {
		return "", errors.New("store: query execution failed")
	}}
	router := newTestRouter(NewHandlers(responder, nil, nil))

	w := postChat(t, router, `{"message": "ventas"}`)
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "store: query execution failed" {
		t.Errorf("answer = %q", resp.Answer)
	}
}

func TestHandleChat_RateLimited(t *testing.T) {
	responder := &mockResponder{fn: func(string) (string, error) {
		return "ok", nil
	}}
	limiter := NewClientLimiter(rate.Limit(0), 1) // one token per client, no refill
	router := newTestRouter(NewHandlers(responder, limiter, nil))

	if w := postChat(t, router, `{"message": "primera"}`); w.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", w.Code)
	}
	if w := postChat(t, router, `{"message": "segunda"}`); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", w.Code)
	}
}

func TestHandleChat_RateLimitIsPerClient(t *testing.T) {
	responder := &mockResponder{fn: func(string) (string, error) {
		return "ok", nil
	}}
	limiter := NewClientLimiter(rate.Limit(0), 1)
	router := newTestRouter(NewHandlers(responder, limiter, nil))

	// One client draining its bucket must not affect another.
	if w := postChatFrom(t, router, `{"message": "primera"}`, "192.0.2.1:1000"); w.Code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", w.Code)
	}
	if w := postChatFrom(t, router, `{"message": "segunda"}`, "192.0.2.1:1001"); w.Code != http.StatusTooManyRequests {
		t.Errorf("drained client status = %d, want 429", w.Code)
	}
	if w := postChatFrom(t, router, `{"message": "tercera"}`, "192.0.2.2:1000"); w.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(NewHandlers(&mockResponder{fn: func(string) (string, error) { return "", nil }}, nil, nil))
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
