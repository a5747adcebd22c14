package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client    *openai.Client
	maxTokens int
}

// NewOpenAIProvider builds a client. baseURL overrides the API endpoint when non-empty.
func NewOpenAIProvider(apiKey string, httpClient *http.Client, maxTokens int, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(cfg),
		maxTokens: maxTokens,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(req.Parts)+1)
	for _, part := range req.Parts {
		switch {
		case part.Data == nil:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: part.Text})
		case isImage(part.MIMEType):
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + part.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(part.Data),
					Detail: openai.ImageURLDetailHigh,
				},
			})
		default:
			return "", fmt.Errorf("%w: openai: %s", ErrUnsupportedContent, part.MIMEType)
		}
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: req.Prompt})

	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: maxTokens(req.MaxTokens, p.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai generate: %w", ErrCall, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai generate: no choices", ErrCall)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter || choice.Message.Refusal != "" {
		return "", ErrBlocked
	}
	return choice.Message.Content, nil
}

func (p *OpenAIProvider) Converse(ctx context.Context, req ConverseRequest) (*ConverseResponse, error) {
	oReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  openaiMessages(req.System, req.Messages),
		MaxTokens: maxTokens(req.MaxTokens, p.maxTokens),
	}
	for _, t := range req.Tools {
		schema := map[string]any{
			"type":       "object",
			"properties": t.Parameters,
		}
		if len(t.Required) > 0 {
			schema["required"] = t.Required
		}
		oReq.Tools = append(oReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, oReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai converse: %w", ErrCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai converse: no choices", ErrCall)
	}

	choice := resp.Choices[0]
	out := &ConverseResponse{Text: choice.Message.Content}
	for _, c := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        c.ID,
			Name:      c.Function.Name,
			Arguments: json.RawMessage(c.Function.Arguments),
		})
	}

	switch {
	case choice.Message.Refusal != "" || choice.FinishReason == openai.FinishReasonContentFilter:
		out.Finish = FinishBlocked
	case len(out.ToolCalls) > 0:
		out.Finish = FinishToolCalls
	case choice.FinishReason == openai.FinishReasonStop:
		out.Finish = FinishStop
	case choice.FinishReason == openai.FinishReasonLength:
		out.Finish = FinishLength
	default:
		out.Finish = FinishOther
	}
	return out, nil
}

func openaiMessages(system string, in []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range in {
		switch m.Role {
		case RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			for _, c := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   c.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      c.Name,
						Arguments: string(c.Arguments),
					},
				})
			}
			out = append(out, msg)
		case RoleTool:
			if m.ToolResult == nil {
				continue
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.ToolResult.Content,
				Name:       m.ToolResult.Name,
				ToolCallID: m.ToolResult.CallID,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		}
	}
	return out
}
