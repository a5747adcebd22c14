package nlquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docintel/internal/llm"
	"docintel/internal/model"
	"docintel/internal/query"
)

// scriptedProvider replays responses in order and records every request.
type scriptedProvider struct {
	responses []*llm.ConverseResponse
	err       error
	requests  []llm.ConverseRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(context.Context, llm.GenerateRequest) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedProvider) Converse(_ context.Context, req llm.ConverseRequest) (*llm.ConverseResponse, error) {
	msgs := make([]llm.Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	r := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return r, nil
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, ownerID string, spec model.QuerySpec) ([]model.Document, error) {
	args := m.Called(ctx, ownerID, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

var today = time.Date(2023, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestInterpreter(p llm.Provider, s Searcher, rounds int) *Interpreter {
	return NewInterpreter(p, s, Config{Model: "m", MaxRounds: rounds, MaxHistory: 4},
		WithClock(func() time.Time { return today }))
}

func toolCall(id, args string) *llm.ConverseResponse {
	return &llm.ConverseResponse{
		Finish:    llm.FinishToolCalls,
		ToolCalls: []llm.ToolCall{{ID: id, Name: toolSearchDocuments, Arguments: json.RawMessage(args)}},
	}
}

func final(text string) *llm.ConverseResponse {
	return &llm.ConverseResponse{Finish: llm.FinishStop, Text: text}
}

func lastToolResult(t *testing.T, req llm.ConverseRequest) *llm.ToolResult {
	t.Helper()
	last := req.Messages[len(req.Messages)-1]
	require.Equal(t, llm.RoleTool, last.Role)
	require.NotNil(t, last.ToolResult)
	return last.ToolResult
}

func TestInterpret_NoDocumentsFound(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ConverseResponse{
		toolCall("call-1", `{"vendor":"Acme","type":"invoice","start_date":"2023-01-01","end_date":"2023-01-31"}`),
		final("I couldn't find any invoices from Acme in January 2023."),
	}}
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, "user-1", mock.MatchedBy(func(spec model.QuerySpec) bool {
		return spec.Vendor != nil && *spec.Vendor == "Acme" &&
			spec.DocumentType != nil && *spec.DocumentType == model.TypeInvoice &&
			spec.StartDate != nil && spec.StartDate.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) &&
			spec.EndDate != nil && spec.EndDate.Equal(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)) &&
			spec.SearchTerms == nil
	})).Return([]model.Document{}, nil).Once()

	ans, err := newTestInterpreter(provider, searcher, 4).Interpret(context.Background(), "user-1", "invoices from Acme in January", nil)

	require.NoError(t, err)
	assert.Equal(t, "I couldn't find any invoices from Acme in January 2023.", ans.Text)
	assert.Equal(t, 1, ans.Rounds)
	assert.Empty(t, ans.Documents)

	require.Len(t, provider.requests, 2)
	first := provider.requests[0]
	assert.Contains(t, first.System, "Today is 2023-03-10")
	require.Len(t, first.Tools, 1)
	assert.Equal(t, toolSearchDocuments, first.Tools[0].Name)

	res := lastToolResult(t, provider.requests[1])
	assert.Equal(t, "call-1", res.CallID)
	assert.Equal(t, NoDocumentsMarker, res.Content)
	assert.False(t, res.IsError)
	searcher.AssertExpectations(t)
}

func TestInterpret_SummaryFedBack(t *testing.T) {
	vendor := "Acme"
	rows := []model.Document{{ID: "d1", OriginalName: "acme-jan.pdf", Vendor: &vendor}}
	provider := &scriptedProvider{responses: []*llm.ConverseResponse{
		toolCall("c1", `{"search_terms":"acme invoice"}`),
		final("You have one document from Acme."),
	}}
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, "user-1", model.QuerySpec{SearchTerms: []string{"acme", "invoice"}}).
		Return(rows, nil).Once()

	ans, err := newTestInterpreter(provider, searcher, 4).Interpret(context.Background(), "user-1", "acme invoice", nil)

	require.NoError(t, err)
	assert.Equal(t, rows, ans.Documents)
	assert.Equal(t, Summarize(rows), lastToolResult(t, provider.requests[1]).Content)
}

func TestInterpret_RoundCap(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ConverseResponse{toolCall("c", `{"vendor":"Acme"}`)}}
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, "user-1", mock.Anything).Return([]model.Document{}, nil)

	ans, err := newTestInterpreter(provider, searcher, 3).Interpret(context.Background(), "user-1", "anything", nil)

	assert.Nil(t, ans)
	assert.ErrorIs(t, err, ErrInterpretationExhausted)
	assert.Len(t, provider.requests, 4)
	searcher.AssertNumberOfCalls(t, "Search", 3)
}

func TestInterpret_SearchErrorIsReported(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ConverseResponse{
		toolCall("c1", `{"vendor":"Acme"}`),
		final("The search could not be completed."),
	}}
	searcher := new(mockSearcher)
	searcher.On("Search", mock.Anything, "user-1", mock.Anything).
		Return(nil, fmt.Errorf("%w: connection reset by peer", query.ErrQuery))

	ans, err := newTestInterpreter(provider, searcher, 4).Interpret(context.Background(), "user-1", "acme", nil)

	require.NoError(t, err)
	assert.Equal(t, "The search could not be completed.", ans.Text)
	res := lastToolResult(t, provider.requests[1])
	assert.True(t, res.IsError)
	assert.Equal(t, SearchErrorPrefix+query.ErrQuery.Error(), res.Content)
}

func TestInterpret_InvalidArgumentsAreReported(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ConverseResponse{
		toolCall("c1", `{"start_date":"January"}`),
		final("Please give me a date."),
	}}
	searcher := new(mockSearcher)

	_, err := newTestInterpreter(provider, searcher, 4).Interpret(context.Background(), "user-1", "since January", nil)

	require.NoError(t, err)
	res := lastToolResult(t, provider.requests[1])
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "start_date must be YYYY-MM-DD")
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
}

func TestInterpret_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedProvider
	}{
		{"stop without text", &scriptedProvider{responses: []*llm.ConverseResponse{final("  ")}}},
		{"blocked", &scriptedProvider{responses: []*llm.ConverseResponse{{Finish: llm.FinishBlocked}}}},
		{"length", &scriptedProvider{responses: []*llm.ConverseResponse{{Finish: llm.FinishLength, Text: "partial"}}}},
		{"unknown finish", &scriptedProvider{responses: []*llm.ConverseResponse{{Finish: llm.FinishOther, Text: "x"}}}},
		{"tool finish without calls", &scriptedProvider{responses: []*llm.ConverseResponse{{Finish: llm.FinishToolCalls}}}},
		{"call error", &scriptedProvider{err: llm.ErrCall}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans, err := newTestInterpreter(tt.provider, new(mockSearcher), 4).Interpret(context.Background(), "user-1", "q", nil)

			assert.Nil(t, ans)
			assert.ErrorIs(t, err, ErrInterpretationFailed)
		})
	}
}

func TestInterpret_Validation(t *testing.T) {
	in := newTestInterpreter(&scriptedProvider{}, new(mockSearcher), 4)

	_, err := in.Interpret(context.Background(), "user-1", "   ", nil)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = in.Interpret(context.Background(), "", "q", nil)
	assert.ErrorIs(t, err, query.ErrOwnerRequired)
}

func TestInterpret_History(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ConverseResponse{final("ok")}}
	history := []Turn{
		{Role: "user", Text: "one"},
		{Role: "assistant", Text: "two"},
		{Role: "user", Text: "three"},
		{Role: "system", Text: "ignored"},
		{Role: "assistant", Text: "four"},
		{Role: "user", Text: ""},
		{Role: "user", Text: "five"},
	}

	_, err := newTestInterpreter(provider, new(mockSearcher), 4).Interpret(context.Background(), "user-1", "six", history)

	require.NoError(t, err)
	var texts []string
	for _, m := range provider.requests[0].Messages {
		texts = append(texts, m.Text)
	}
	// last four turns, trimmed to start on a user turn
	assert.Equal(t, []string{"three", "four", "five", "six"}, texts)
}

func TestDecodeCall(t *testing.T) {
	_, err := decodeCall(llm.ToolCall{Name: "delete_everything"})
	assert.ErrorIs(t, err, errUnknownTool)

	call, err := decodeCall(llm.ToolCall{Name: toolSearchDocuments, Arguments: json.RawMessage(`{"search_terms":["  coffee ",""],"type":"Receipt","vendor":" "}`)})
	require.NoError(t, err)
	sd, ok := call.(SearchDocumentsCall)
	require.True(t, ok)
	assert.Equal(t, []string{"coffee"}, sd.SearchTerms)
	assert.Equal(t, model.TypeReceipt, *sd.Type)
	assert.Nil(t, sd.Vendor)

	_, err = decodeCall(llm.ToolCall{Name: toolSearchDocuments, Arguments: json.RawMessage(`{"type":"spaceship"}`)})
	assert.Error(t, err)

	_, err = decodeCall(llm.ToolCall{Name: toolSearchDocuments, Arguments: json.RawMessage(`{"start_date":"2023-02-01","end_date":"2023-01-01"}`)})
	assert.Error(t, err)

	call, err = decodeCall(llm.ToolCall{Name: toolSearchDocuments})
	require.NoError(t, err)
	assert.Equal(t, model.QuerySpec{}, call.(SearchDocumentsCall).Spec())
}
