// Package llm adapts generative model services to the two call shapes the pipeline needs:
// one-shot generation over prompt plus content, and tool-calling conversation.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrBlocked means the service refused to produce a response.
	ErrBlocked = errors.New("model refused to respond")
	// ErrCall wraps transport and backend failures.
	ErrCall = errors.New("model call failed")
	// ErrUnsupportedContent means the provider cannot accept a content part of that type.
	ErrUnsupportedContent = errors.New("content type not supported by provider")
)

// Provider abstracts a generative model service (Anthropic, OpenAI).
type Provider interface {
	Name() string
	// Generate returns the raw text produced for a prompt and its content parts.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Converse sends a conversation with declared tools and reports how the model stopped.
	Converse(ctx context.Context, req ConverseRequest) (*ConverseResponse, error)
}

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part is one piece of content sent with a Generate prompt: either Text or Data with its MIMEType.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// GenerateRequest is the input for one-shot generation.
type GenerateRequest struct {
	Model     string
	System    string
	Prompt    string
	Parts     []Part
	MaxTokens int
}

// ToolSpec declares a callable capability. Parameters holds JSON schema properties.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
}

// ToolCall is a model request to invoke a declared tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Message is one conversation turn. Assistant turns may carry ToolCalls; tool turns carry ToolResult.
type Message struct {
	Role       Role
	Text       string
	ToolCalls  []ToolCall
	ToolResult *ToolResult
}

// ConverseRequest is the input for a tool-calling conversation step.
type ConverseRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

// FinishReason is the provider-neutral stop signal.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishBlocked   FinishReason = "blocked"
	FinishLength    FinishReason = "length"
	FinishOther     FinishReason = "other"
)

// ConverseResponse is the model's reply to a conversation step.
type ConverseResponse struct {
	Text      string
	ToolCalls []ToolCall
	Finish    FinishReason
}

func isImage(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}

func maxTokens(req, def int) int {
	if req > 0 {
		return req
	}
	if def > 0 {
		return def
	}
	return 4096
}
