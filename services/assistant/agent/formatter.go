// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FormatAnswer renders the conversation's outcome as the user-visible
// reply. The most recent tool result wins and is shown as a labeled,
// pretty-printed block; a conversation that produced no tool result
// falls back to the last message's content, whatever its origin.
func FormatAnswer(conv *Conversation) string {
	if result := conv.LatestToolResult(); result != nil {
		return formatToolResult(result.ToolName, result.Content)
	}
	if last := conv.LastMessage(); last != nil {
		return last.Content
	}
	return ""
}

func formatToolResult(toolName, payload string) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(payload), "", "  "); err != nil {
		// Not JSON; show it as-is.
		return fmt.Sprintf("Resultados de %s:\n%s", toolName, payload)
	}
	return fmt.Sprintf("Resultados de %s:\n```json\n%s\n```", toolName, pretty.String())
}
