package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"docintel/internal/http/middleware"
	"docintel/internal/llm"
	"docintel/internal/model"
	"docintel/internal/nlquery"
	"docintel/internal/service"
)

const maxQuestionRunes = 2000

// Interpreter answers a natural-language question about the caller's documents.
type Interpreter interface {
	Interpret(ctx context.Context, ownerID, text string, history []nlquery.Turn) (*nlquery.Answer, error)
}

// SearchRequest is a structured filter. Every field is optional; dates are YYYY-MM-DD.
type SearchRequest struct {
	Vendor       string           `json:"vendor"`
	DocumentType string           `json:"document_type"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	MinAmount    *decimal.Decimal `json:"min_amount" swaggertype:"number"`
	MaxAmount    *decimal.Decimal `json:"max_amount" swaggertype:"number"`
	Currency     string           `json:"currency"`
	SearchTerms  []string         `json:"search_terms"`
}

type SearchResponse struct {
	RequestID string           `json:"request_id"`
	Success   bool             `json:"success"`
	Count     int              `json:"count"`
	Rows      []model.Document `json:"rows"`
}

// AskRequest carries a question and the prior conversation, oldest first.
type AskRequest struct {
	Text    string         `json:"text"`
	History []nlquery.Turn `json:"history"`
}

type AskResponse struct {
	RequestID string           `json:"request_id"`
	Success   bool             `json:"success"`
	Answer    string           `json:"answer"`
	Documents []model.Document `json:"documents,omitempty"`
}

// SearchDocuments runs a structured filter over the caller's documents.
//
// @Summary Search documents
// @Tags query
// @Accept json
// @Produce json
// @Param request body SearchRequest false "filter"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} errorPayload
// @Failure 502 {object} resultPayload
// @Security BearerAuth
// @Router /documents/search [post]
func SearchDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := middleware.OwnerID(c)
		if owner == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		var req SearchRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}
		spec, code, msg := req.spec()
		if code != "" {
			return writeError(c, fiber.StatusBadRequest, code, msg)
		}

		rows, err := docSvc.Search(c.UserContext(), owner, spec)
		if err != nil {
			return writeFailure(c, fiber.StatusBadGateway, "search failed, please try again")
		}
		if rows == nil {
			rows = []model.Document{}
		}
		return c.JSON(SearchResponse{
			RequestID: requestIDFromCtx(c),
			Success:   true,
			Count:     len(rows),
			Rows:      rows,
		})
	}
}

// spec validates the request. A non-empty code names the first invalid field.
func (r SearchRequest) spec() (model.QuerySpec, string, string) {
	var spec model.QuerySpec
	spec.Vendor = optional(r.Vendor)
	spec.Currency = optional(r.Currency)
	if t := optional(strings.ToLower(r.DocumentType)); t != nil {
		if !model.IsDocumentType(*t) {
			return spec, "INVALID_TYPE", "unknown document type"
		}
		spec.DocumentType = t
	}

	var ok bool
	if spec.StartDate, ok = date(r.StartDate); !ok {
		return spec, "INVALID_DATE", "start_date must be YYYY-MM-DD"
	}
	if spec.EndDate, ok = date(r.EndDate); !ok {
		return spec, "INVALID_DATE", "end_date must be YYYY-MM-DD"
	}
	if spec.StartDate != nil && spec.EndDate != nil && spec.EndDate.Before(*spec.StartDate) {
		return spec, "INVALID_DATE", "end_date is before start_date"
	}

	spec.MinAmount, spec.MaxAmount = r.MinAmount, r.MaxAmount
	if spec.MinAmount != nil && spec.MaxAmount != nil && spec.MaxAmount.LessThan(*spec.MinAmount) {
		return spec, "INVALID_AMOUNT", "max_amount is below min_amount"
	}

	for _, t := range r.SearchTerms {
		if t = strings.TrimSpace(t); t != "" {
			spec.SearchTerms = append(spec.SearchTerms, t)
		}
	}
	return spec, "", ""
}

// AskQuestion answers a natural-language question by letting the model search the caller's documents.
//
// @Summary Ask about documents
// @Tags query
// @Accept json
// @Produce json
// @Param request body AskRequest true "question"
// @Success 200 {object} AskResponse
// @Failure 400 {object} errorPayload
// @Failure 422 {object} resultPayload
// @Failure 502 {object} resultPayload
// @Security BearerAuth
// @Router /query [post]
func AskQuestion(interp Interpreter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := middleware.OwnerID(c)
		if owner == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		var req AskRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" {
			return writeError(c, fiber.StatusBadRequest, "QUESTION_REQUIRED", "text is required")
		}
		if len([]rune(req.Text)) > maxQuestionRunes {
			return writeError(c, fiber.StatusBadRequest, "QUESTION_TOO_LONG", "text is too long")
		}

		ans, err := interp.Interpret(c.UserContext(), owner, req.Text, req.History)
		switch {
		case errors.Is(err, nlquery.ErrEmptyQuestion):
			return writeError(c, fiber.StatusBadRequest, "QUESTION_REQUIRED", "text is required")
		case errors.Is(err, nlquery.ErrInterpretationExhausted):
			return writeFailure(c, fiber.StatusUnprocessableEntity, "I could not narrow that question down. Please try rephrasing it more specifically.")
		case errors.Is(err, llm.ErrCall), errors.Is(err, context.DeadlineExceeded):
			return writeFailure(c, fiber.StatusBadGateway, "The assistant is unavailable right now. Please try again.")
		case err != nil:
			return writeFailure(c, fiber.StatusUnprocessableEntity, "I could not understand that question. Please try rephrasing it.")
		}

		return c.JSON(AskResponse{
			RequestID: requestIDFromCtx(c),
			Success:   true,
			Answer:    ans.Text,
			Documents: ans.Documents,
		})
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func date(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
