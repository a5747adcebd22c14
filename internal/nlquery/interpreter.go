// Package nlquery resolves natural-language questions into structured document searches
// through a bounded tool-calling conversation with the model.
package nlquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docintel/internal/llm"
	"docintel/internal/logger"
	"docintel/internal/metrics"
	"docintel/internal/model"
	"docintel/internal/query"
)

var (
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrInterpretationFailed means the model stopped without an answer. No answer is synthesized.
	ErrInterpretationFailed = errors.New("could not interpret the question")
	// ErrInterpretationExhausted means the model kept calling tools past the round cap.
	ErrInterpretationExhausted = errors.New("question needed too many search rounds")
)

const (
	defaultMaxRounds  = 4
	defaultMaxHistory = 20
)

// Searcher runs an owner-scoped structured search.
type Searcher interface {
	Search(ctx context.Context, ownerID string, spec model.QuerySpec) ([]model.Document, error)
}

// Turn is one prior exchange supplied by the caller. Role is "user" or "assistant".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

// Answer is the model's final reply.
type Answer struct {
	Text string
	// Rounds counts executed tool-call rounds.
	Rounds int
	// Documents holds the rows of the last search, if any ran.
	Documents []model.Document
}

type Config struct {
	Model      string
	MaxTokens  int
	MaxRounds  int
	MaxHistory int
}

type Option func(*Interpreter)

func WithLogger(l *slog.Logger) Option { return func(i *Interpreter) { i.logger = l } }

func WithMetrics(m *metrics.Pipeline) Option { return func(i *Interpreter) { i.metrics = m } }

// WithClock replaces time.Now for anchoring relative dates.
func WithClock(now func() time.Time) Option { return func(i *Interpreter) { i.now = now } }

func WithLocation(loc *time.Location) Option { return func(i *Interpreter) { i.loc = loc } }

// Interpreter runs the tool-calling loop. It holds no per-question state; each Interpret call
// carries its own conversation.
type Interpreter struct {
	provider   llm.Provider
	searcher   Searcher
	model      string
	maxTokens  int
	maxRounds  int
	maxHistory int

	logger  *slog.Logger
	metrics *metrics.Pipeline
	tracer  trace.Tracer
	now     func() time.Time
	loc     *time.Location
}

func NewInterpreter(provider llm.Provider, searcher Searcher, cfg Config, opts ...Option) *Interpreter {
	i := &Interpreter{
		provider:   provider,
		searcher:   searcher,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRounds:  cfg.MaxRounds,
		maxHistory: cfg.MaxHistory,
		logger:     logger.Discard(),
		tracer:     otel.Tracer("docintel/nlquery"),
		now:        time.Now,
		loc:        time.UTC,
	}
	if i.maxRounds <= 0 {
		i.maxRounds = defaultMaxRounds
	}
	if i.maxHistory < 0 {
		i.maxHistory = defaultMaxHistory
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "nlquery")
	return i
}

// session is the state of one Interpret call.
type session struct {
	ownerID  string
	messages []llm.Message
	rounds   int
	lastRows []model.Document
}

// Interpret answers text for ownerID, given the prior conversation.
func (i *Interpreter) Interpret(ctx context.Context, ownerID, text string, history []Turn) (*Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}
	if ownerID == "" {
		return nil, query.ErrOwnerRequired
	}

	ctx, span := i.tracer.Start(ctx, "nlquery.Interpret")
	defer span.End()

	s := &session{ownerID: ownerID, messages: i.priorMessages(history)}
	s.messages = append(s.messages, llm.Message{Role: llm.RoleUser, Text: text})
	system := systemPrompt(i.now().In(i.loc))
	log := i.logger.With("owner_id", ownerID)

	for {
		resp, err := i.provider.Converse(ctx, llm.ConverseRequest{
			Model:     i.model,
			System:    system,
			Messages:  s.messages,
			Tools:     []llm.ToolSpec{searchDocumentsTool},
			MaxTokens: i.maxTokens,
		})
		if err != nil {
			log.Error("model call failed", "stage", "interpret", "round", s.rounds, "error", err)
			i.metrics.NLRounds(s.rounds)
			return nil, fmt.Errorf("%w: %w", ErrInterpretationFailed, err)
		}

		switch {
		case resp.Finish == llm.FinishToolCalls && len(resp.ToolCalls) > 0,
			resp.Finish == llm.FinishStop && len(resp.ToolCalls) > 0:
			if s.rounds >= i.maxRounds {
				log.Warn("tool round cap reached", "stage", "interpret", "rounds", s.rounds)
				i.metrics.NLRounds(s.rounds)
				span.SetAttributes(attribute.Int("rounds", s.rounds))
				return nil, ErrInterpretationExhausted
			}
			s.rounds++
			s.messages = append(s.messages, llm.Message{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls})
			for _, tc := range resp.ToolCalls {
				result := i.execute(ctx, log, s, tc)
				s.messages = append(s.messages, llm.Message{Role: llm.RoleTool, ToolResult: &result})
			}

		case resp.Finish == llm.FinishStop:
			answer := strings.TrimSpace(resp.Text)
			i.metrics.NLRounds(s.rounds)
			span.SetAttributes(attribute.Int("rounds", s.rounds))
			if answer == "" {
				log.Warn("model stopped without an answer", "stage", "interpret", "rounds", s.rounds)
				return nil, ErrInterpretationFailed
			}
			return &Answer{Text: answer, Rounds: s.rounds, Documents: s.lastRows}, nil

		default:
			log.Warn("model stopped unexpectedly", "stage", "interpret", "finish", string(resp.Finish), "rounds", s.rounds)
			i.metrics.NLRounds(s.rounds)
			return nil, fmt.Errorf("%w: finish reason %q", ErrInterpretationFailed, resp.Finish)
		}
	}
}

// execute runs one tool call and returns the result turn. Failures become error markers for the model.
func (i *Interpreter) execute(ctx context.Context, log *slog.Logger, s *session, tc llm.ToolCall) llm.ToolResult {
	res := llm.ToolResult{CallID: tc.ID, Name: tc.Name}

	call, err := decodeCall(tc)
	if err != nil {
		log.Warn("tool call rejected", "stage", "interpret", "tool", tc.Name, "error", err)
		res.Content, res.IsError = SearchErrorPrefix+err.Error(), true
		return res
	}

	switch c := call.(type) {
	case SearchDocumentsCall:
		ctx, span := i.tracer.Start(ctx, "nlquery.search_documents")
		defer span.End()
		rows, err := i.searcher.Search(ctx, s.ownerID, c.Spec())
		if err != nil {
			log.Error("search failed", "stage", "query", "error", err)
			res.Content, res.IsError = SearchErrorPrefix+reason(err), true
			return res
		}
		s.lastRows = rows
		span.SetAttributes(attribute.Int("rows", len(rows)))
		log.Info("search executed", "stage", "query", "round", s.rounds, "rows", len(rows))
		res.Content = Summarize(rows)
	}
	return res
}

// reason hides backend detail behind the sentinel message.
func reason(err error) string {
	if errors.Is(err, query.ErrQuery) {
		return query.ErrQuery.Error()
	}
	return err.Error()
}

func (i *Interpreter) priorMessages(history []Turn) []llm.Message {
	var out []llm.Message
	for _, t := range history {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		switch strings.ToLower(t.Role) {
		case "user":
			out = append(out, llm.Message{Role: llm.RoleUser, Text: text})
		case "assistant":
			out = append(out, llm.Message{Role: llm.RoleAssistant, Text: text})
		}
	}
	if len(out) > i.maxHistory {
		out = out[len(out)-i.maxHistory:]
	}
	// the conversation must open with a user turn
	for len(out) > 0 && out[0].Role != llm.RoleUser {
		out = out[1:]
	}
	return out
}
