package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docintel/internal/http/middleware"
	"docintel/internal/model"
	"docintel/internal/service"
)

// IngestResponse is the result of an upload.
type IngestResponse struct {
	RequestID  string          `json:"request_id"`
	Success    bool            `json:"success"`
	DocumentID string          `json:"document_id,omitempty"`
	URL        string          `json:"url,omitempty"`
	Duplicate  bool            `json:"duplicate,omitempty"`
	Message    string          `json:"message,omitempty"`
	Extracted  bool            `json:"extracted"`
	Document   *model.Document `json:"document,omitempty"`
}

// IngestDocument uploads one file (multipart/form-data, field name: file).
//
// @Summary Upload a document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Success 201 {object} IngestResponse
// @Success 200 {object} IngestResponse "content already uploaded"
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 502 {object} resultPayload
// @Security BearerAuth
// @Router /documents [post]
func IngestDocument(docSvc service.DocumentService, maxBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := middleware.OwnerID(c)
		if owner == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		if maxBytes > 0 && fh.Size > maxBytes {
			return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds upload limit")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		res, err := docSvc.Ingest(c.UserContext(), owner, data, fh.Filename, ct)
		switch {
		case errors.Is(err, service.ErrEmptyContent):
			return writeError(c, fiber.StatusBadRequest, "FILE_EMPTY", "file is empty")
		case errors.Is(err, service.ErrTooLarge):
			return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds upload limit")
		case err != nil:
			return writeFailure(c, fiber.StatusBadGateway, "upload failed, please try again")
		}

		out := IngestResponse{
			RequestID: requestIDFromCtx(c),
			Success:   true,
			URL:       res.URL,
			Duplicate: res.Duplicate,
			Document:  res.Document,
		}
		if res.Document != nil {
			out.DocumentID = res.Document.ID
			out.Extracted = res.Document.ExtractedAt != nil
		}
		if res.Duplicate {
			out.Message = service.ErrDuplicate.Error()
			return c.Status(fiber.StatusOK).JSON(out)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	}
}

// ListDocuments lists the caller's documents with limit & offset.
//
// @Summary List documents
// @Tags documents
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "page offset" default(0)
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Security BearerAuth
// @Router /documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := middleware.OwnerID(c)
		if owner == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		if limit > 100 {
			limit = 100
		}

		res, err := docSvc.List(c.UserContext(), owner, limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetDocument returns one of the caller's documents.
//
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} model.Document
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := middleware.OwnerID(c)
		if owner == "" {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}

		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), owner, id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(doc)
	}
}
