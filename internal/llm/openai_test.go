package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, reply string, inspect func(body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		if inspect != nil {
			inspect(body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_ConverseToolCall(t *testing.T) {
	reply := `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,
		"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function",
		"function":{"name":"search_documents","arguments":"{\"vendor\":\"Acme\"}"}}]},
		"finish_reason":"tool_calls"}]}`

	srv := openAIServer(t, reply, func(body map[string]any) {
		tools := body["tools"].([]any)
		require.Len(t, tools, 1)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "search_documents", fn["name"])
		assert.Equal(t, "object", fn["parameters"].(map[string]any)["type"])

		msgs := body["messages"].([]any)
		require.Len(t, msgs, 4)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "tool", msgs[3].(map[string]any)["role"])
		assert.Equal(t, "call_0", msgs[3].(map[string]any)["tool_call_id"])
	})

	p := NewOpenAIProvider("key", srv.Client(), 256, srv.URL+"/v1")
	resp, err := p.Converse(context.Background(), ConverseRequest{
		Model:  "gpt-4o-mini",
		System: "you search documents",
		Messages: []Message{
			{Role: RoleUser, Text: "invoices from Acme"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: "search_documents", Arguments: json.RawMessage(`{}`)}}},
			{Role: RoleTool, ToolResult: &ToolResult{CallID: "call_0", Name: "search_documents", Content: "No documents found matching the search criteria."}},
		},
		Tools: []ToolSpec{{Name: "search_documents", Parameters: map[string]any{"vendor": map[string]any{"type": "string"}}}},
	})

	require.NoError(t, err)
	assert.Equal(t, FinishToolCalls, resp.Finish)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"vendor":"Acme"}`, string(resp.ToolCalls[0].Arguments))
}

func TestOpenAIProvider_ConverseFinishReasons(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		finish FinishReason
	}{
		{"stop", `{"choices":[{"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`, FinishStop},
		{"length", `{"choices":[{"message":{"role":"assistant","content":"trunc"},"finish_reason":"length"}]}`, FinishLength},
		{"content filter", `{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"content_filter"}]}`, FinishBlocked},
		{"unknown", `{"choices":[{"message":{"role":"assistant","content":"x"},"finish_reason":"null"}]}`, FinishOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := openAIServer(t, tt.reply, nil)
			p := NewOpenAIProvider("key", srv.Client(), 0, srv.URL+"/v1")

			resp, err := p.Converse(context.Background(), ConverseRequest{Messages: []Message{{Role: RoleUser, Text: "hi"}}})

			require.NoError(t, err)
			assert.Equal(t, tt.finish, resp.Finish)
		})
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	t.Run("image sent as data url", func(t *testing.T) {
		reply := `{"choices":[{"message":{"role":"assistant","content":"{\"vendor\":\"Acme\"}"},"finish_reason":"stop"}]}`
		srv := openAIServer(t, reply, func(body map[string]any) {
			msgs := body["messages"].([]any)
			content := msgs[0].(map[string]any)["content"].([]any)
			require.Len(t, content, 2)
			img := content[0].(map[string]any)["image_url"].(map[string]any)
			assert.Equal(t, "data:image/png;base64,iVBO", img["url"])
		})
		p := NewOpenAIProvider("key", srv.Client(), 0, srv.URL+"/v1")

		out, err := p.Generate(context.Background(), GenerateRequest{
			Prompt: "extract",
			Parts:  []Part{{Data: []byte{0x89, 0x50, 0x4e}, MIMEType: "image/png"}},
		})

		require.NoError(t, err)
		assert.Equal(t, `{"vendor":"Acme"}`, out)
	})

	t.Run("content filter is blocked", func(t *testing.T) {
		srv := openAIServer(t, `{"choices":[{"message":{"role":"assistant"},"finish_reason":"content_filter"}]}`, nil)
		p := NewOpenAIProvider("key", srv.Client(), 0, srv.URL+"/v1")

		_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "extract"})
		assert.ErrorIs(t, err, ErrBlocked)
	})

	t.Run("pdf bytes are unsupported", func(t *testing.T) {
		p := NewOpenAIProvider("key", nil, 0, "http://127.0.0.1:0/v1")

		_, err := p.Generate(context.Background(), GenerateRequest{Parts: []Part{{Data: []byte("%PDF"), MIMEType: "application/pdf"}}})
		assert.ErrorIs(t, err, ErrUnsupportedContent)
	})

	t.Run("backend error is a call error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
		}))
		defer srv.Close()
		p := NewOpenAIProvider("key", srv.Client(), 0, srv.URL+"/v1")

		_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "extract"})
		assert.ErrorIs(t, err, ErrCall)
		assert.False(t, errors.Is(err, ErrBlocked))
	})
}
