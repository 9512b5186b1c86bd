// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	chatLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storebot",
		Subsystem: "llm",
		Name:      "chat_latency_seconds",
		Help:      "Latency of chat completion calls",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})

	chatRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storebot",
		Subsystem: "llm",
		Name:      "chat_retries_total",
		Help:      "Chat completion calls retried after a transport timeout",
	})
)

var llmTracer = otel.Tracer("storebot.llm")

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         *float32        `json:"temperature,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	TopP                *float32        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
	Tools               []openaiTool    `json:"tools,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiCallFunction `json:"function"`
}

type openaiCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements ChatClient against any OpenAI-compatible
// chat-completions endpoint using raw net/http.
//
// Description:
//
//	Uses the Chat Completions REST API directly without third-party SDKs.
//	The base URL is configurable, so the same client serves api.openai.com,
//	Azure OpenAI deployments, and local Ollama instances (all speak the
//	same wire format for function calling).
//
//	Each call carries a per-request timeout. A transport timeout is retried
//	once and then surfaced to the caller.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	callTimeout time.Duration
}

// ClientConfig holds explicit configuration for NewOpenAIClientWithConfig.
type ClientConfig struct {
	// APIKey authenticates the request. May be empty for local endpoints.
	APIKey string

	// Model is the model name sent with every request.
	Model string

	// BaseURL is the full chat-completions URL. Empty uses api.openai.com.
	BaseURL string

	// CallTimeout bounds each HTTP call. Zero uses 60s.
	CallTimeout time.Duration
}

// NewOpenAIClientWithConfig creates an OpenAIClient with explicit configuration.
//
// Description:
//
//	Creates a client without reading environment variables. Useful for
//	testing with mock servers or when configuration comes from a source
//	other than the environment.
//
// Inputs:
//   - cfg: Explicit client configuration.
//
// Outputs:
//   - *OpenAIClient: The configured client.
func NewOpenAIClientWithConfig(cfg ClientConfig) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     baseURL,
		callTimeout: timeout,
	}
}

// NewOpenAIClient creates a client from environment variables.
//
// Description:
//
//	Reads LLM_API_KEY, LLM_MODEL, and LLM_BASE_URL. LLM_BASE_URL makes the
//	client point at Azure OpenAI or Ollama instead of api.openai.com.
//	The API key may be empty when the base URL is a local endpoint.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if LLM_MODEL is missing.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("LLM_API_KEY")
	model := os.Getenv("LLM_MODEL")
	baseURL := os.Getenv("LLM_BASE_URL")
	if model == "" {
		return nil, fmt.Errorf("llm: model is missing (LLM_MODEL)")
	}
	if apiKey == "" && baseURL == "" {
		slog.Warn("LLM API key is empty and no base URL override is set; calls to api.openai.com will fail")
	}
	slog.Info("Initializing chat client", slog.String("model", model))
	return NewOpenAIClientWithConfig(ClientConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
	}), nil
}

// ChatWithTools sends a chat request with tool definitions and returns the
// assistant's turn.
//
// Description:
//
//	Converts generic ToolDef and ChatMessage types to the OpenAI wire
//	format, sends the request, and parses tool_calls from the response.
//	A transport timeout is retried once; the second failure is surfaced.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history with tool metadata.
//   - params: Generation parameters.
//   - tools: Tool definitions for function calling.
//
// Outputs:
//   - *ChatWithToolsResult: Content and/or tool calls.
//   - error: Non-nil on failure.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) ChatWithTools(ctx context.Context, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error) {

	model := o.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}

	ctx, span := llmTracer.Start(ctx, "llm.OpenAIClient.ChatWithTools")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(messages)),
		attribute.Int("llm.tools", len(tools)),
	)

	slog.Debug("ChatWithTools",
		slog.String("model", model),
		slog.Int("messages", len(messages)),
		slog.Int("tools", len(tools)),
	)

	reqBody, err := json.Marshal(o.buildRequest(model, messages, params, tools))
	if err != nil {
		return nil, fmt.Errorf("llm: marshaling request: %w", err)
	}

	start := time.Now()
	result, err := o.send(ctx, reqBody)
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		chatRetriesTotal.Inc()
		slog.Warn("chat call timed out, retrying once", slog.String("model", model))
		result, err = o.send(ctx, reqBody)
	}
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		chatLatency.WithLabelValues("error").Observe(duration.Seconds())
		return nil, err
	}

	chatLatency.WithLabelValues("success").Observe(duration.Seconds())
	span.SetAttributes(
		attribute.String("llm.stop_reason", result.StopReason),
		attribute.Int("llm.tool_calls", len(result.ToolCalls)),
	)
	return result, nil
}

// buildRequest converts generic types to the OpenAI wire format.
func (o *OpenAIClient) buildRequest(model string, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) openaiRequest {

	oaiMessages := make([]openaiMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openaiMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		if msg.Role == "tool" && msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openaiToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openaiCallFunction{
						Name:      tc.Name,
						Arguments: tc.ArgumentsString(),
					},
				})
			}
		}

		oaiMessages = append(oaiMessages, oaiMsg)
	}

	oaiTools := make([]openaiTool, 0, len(tools))
	for _, td := range tools {
		oaiTools = append(oaiTools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				Parameters:  td.Function.Parameters,
			},
		})
	}

	req := openaiRequest{
		Model:    model,
		Messages: oaiMessages,
		Tools:    oaiTools,
	}
	if params.Temperature != nil {
		req.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	return req
}

// send performs one HTTP round-trip and parses the response.
func (o *OpenAIClient) send(ctx context.Context, reqBody []byte) (*ChatWithToolsResult, error) {
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, "POST", o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("llm: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: API returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 200))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("llm: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("llm: API error: %s - %s", apiResp.Error.Type, truncate(apiResp.Error.Message, 200))
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("llm: returned no choices")
	}

	choice := apiResp.Choices[0]
	result := &ChatWithToolsResult{
		Content: choice.Message.Content,
	}

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCallResponse{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	if len(result.ToolCalls) > 0 {
		result.StopReason = "tool_use"
	} else {
		result.StopReason = "end"
	}

	return result, nil
}

// isTimeout reports whether err stems from a deadline or network timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// truncate shortens s to max characters for log and error strings.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
