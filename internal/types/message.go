package types

import (
	"encoding/json"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Turn      int             `json:"turn"`
	Timestamp time.Time       `json:"timestamp"`
	ToolName  string          `json:"toolName,omitempty"`
	ToolArgs  json.RawMessage `json:"toolArgs,omitempty"`
}

// ToolCall is a tool selection made by the model in one decision round.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentMap decodes the call arguments into a generic map. Invalid or
// empty argument blobs yield an empty map, never an error: the validator
// reports missing required parameters with a clearer message.
func (c ToolCall) ArgumentMap() map[string]any {
	args := map[string]any{}
	if len(c.Arguments) > 0 {
		_ = json.Unmarshal(c.Arguments, &args)
	}
	return args
}
