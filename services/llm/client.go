// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm defines the provider-agnostic chat client used by the
// assistant orchestrator, plus the OpenAI-compatible implementation that
// covers Azure OpenAI and Ollama deployments behind one wire format.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for
//	concurrent use.
package llm

import "context"

// ChatClient is the minimal interface the orchestrator needs from a model.
//
// Description:
//
//	The orchestrator delegates to the model only when the deterministic
//	intent matcher fails. It always passes the full report catalog as
//	tool definitions; the model either answers directly (Content set,
//	no ToolCalls) or requests one or more tool invocations.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// ChatWithTools sends the conversation plus tool definitions and
	// returns the assistant's turn.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation history with tool metadata.
	//   - params: Generation parameters.
	//   - tools: Tool definitions exposed for function calling.
	//
	// Outputs:
	//   - *ChatWithToolsResult: Content and/or tool calls.
	//   - error: Non-nil on failure.
	ChatWithTools(ctx context.Context, messages []ChatMessage, params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error)
}

// GenerationParams holds provider-agnostic generation options.
//
// Description:
//
//	Nil pointer fields are omitted from the request so the provider's
//	default applies. ModelOverride selects a model per request without
//	rebuilding the client.
type GenerationParams struct {
	// Temperature controls randomness. Nil uses the provider default.
	Temperature *float32

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int

	// TopP is the nucleus sampling parameter. Nil uses the provider default.
	TopP *float32

	// Stop lists sequences that terminate generation.
	Stop []string

	// ModelOverride selects a model for this request only.
	ModelOverride string
}
