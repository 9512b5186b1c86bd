// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant exposes the chat endpoint over HTTP. The handlers
// are a thin shell: all routing and execution decisions live in the
// agent package.
package assistant

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorTruncateLen bounds the failure detail shown to the user. The full
// error goes to the log; the chat reply carries only its head.
const ErrorTruncateLen = 100

// Responder answers one user message. Satisfied by agent.Orchestrator.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse is the reply of POST /v1/chat. Failures are reported in
// Answer as truncated text, never as a transport-level fault.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// Handlers carries the chat endpoint's collaborators.
//
// Thread Safety: safe for concurrent use.
type Handlers struct {
	responder Responder
	limiter   *ClientLimiter
	logger    *slog.Logger
}

// NewHandlers builds the handlers. A nil limiter disables rate limiting.
func NewHandlers(responder Responder, limiter *ClientLimiter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{responder: responder, limiter: limiter, logger: logger}
}

// HandleChat answers POST /v1/chat.
func (h *Handlers) HandleChat(c *gin.Context) {
	if h.limiter != nil && !h.limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	answer, err := h.responder.Respond(c.Request.Context(), req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", slog.String("error", err.Error()))
		c.JSON(http.StatusOK, ChatResponse{Answer: truncateError(err.Error())})
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Answer: answer})
}

// HandleHealth answers GET /v1/chat/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func truncateError(detail string) string {
	if len(detail) <= ErrorTruncateLen {
		return detail
	}
	return detail[:ErrorTruncateLen] + "..."
}
