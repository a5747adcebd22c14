package nlquery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"docintel/internal/llm"
	"docintel/internal/model"
)

const toolSearchDocuments = "search_documents"

var errUnknownTool = errors.New("unknown tool")

// searchDocumentsTool is the only capability declared to the model.
var searchDocumentsTool = llm.ToolSpec{
	Name:        toolSearchDocuments,
	Description: "Search the user's uploaded financial documents. All parameters are optional filters; omit a parameter to leave that dimension unfiltered.",
	Parameters: map[string]any{
		"search_terms": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Keywords matched against file name, vendor and description. Any term may match.",
		},
		"vendor": map[string]any{
			"type":        "string",
			"description": "Vendor or merchant name, matched as a case-insensitive substring.",
		},
		"type": map[string]any{
			"type":        "string",
			"enum":        model.DocumentTypes,
			"description": "Document type.",
		},
		"start_date": map[string]any{
			"type":        "string",
			"description": "Earliest document date, inclusive, as YYYY-MM-DD.",
		},
		"end_date": map[string]any{
			"type":        "string",
			"description": "Latest document date, inclusive, as YYYY-MM-DD.",
		},
	},
}

// Call is a decoded tool invocation. Each declared tool has one concrete Call type.
type Call interface {
	ToolName() string
}

// SearchDocumentsCall carries validated search_documents arguments.
type SearchDocumentsCall struct {
	SearchTerms []string
	Vendor      *string
	Type        *string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (SearchDocumentsCall) ToolName() string { return toolSearchDocuments }

// Spec maps the call onto a structured filter.
func (c SearchDocumentsCall) Spec() model.QuerySpec {
	return model.QuerySpec{
		Vendor:       c.Vendor,
		DocumentType: c.Type,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		SearchTerms:  c.SearchTerms,
	}
}

type searchDocumentsArgs struct {
	SearchTerms terms  `json:"search_terms"`
	Vendor      string `json:"vendor"`
	Type        string `json:"type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// terms accepts either a list of strings or one space separated string.
type terms []string

func (t *terms) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = strings.Fields(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*t = list
	return nil
}

// decodeCall resolves a tool call by name into its concrete Call.
func decodeCall(tc llm.ToolCall) (Call, error) {
	switch tc.Name {
	case toolSearchDocuments:
		return decodeSearchDocuments(tc.Arguments)
	default:
		return nil, fmt.Errorf("%w %q", errUnknownTool, tc.Name)
	}
}

func decodeSearchDocuments(raw json.RawMessage) (SearchDocumentsCall, error) {
	var args searchDocumentsArgs
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return SearchDocumentsCall{}, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	var call SearchDocumentsCall
	for _, term := range args.SearchTerms {
		if term = strings.TrimSpace(term); term != "" {
			call.SearchTerms = append(call.SearchTerms, term)
		}
	}
	call.Vendor = optional(args.Vendor)
	if typ := optional(strings.ToLower(args.Type)); typ != nil {
		if !model.IsDocumentType(*typ) {
			return SearchDocumentsCall{}, fmt.Errorf("invalid arguments: unknown document type %q", args.Type)
		}
		call.Type = typ
	}

	var err error
	if call.StartDate, err = parseDate("start_date", args.StartDate); err != nil {
		return SearchDocumentsCall{}, err
	}
	if call.EndDate, err = parseDate("end_date", args.EndDate); err != nil {
		return SearchDocumentsCall{}, err
	}
	if call.StartDate != nil && call.EndDate != nil && call.EndDate.Before(*call.StartDate) {
		return SearchDocumentsCall{}, errors.New("invalid arguments: end_date is before start_date")
	}
	return call, nil
}

func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
