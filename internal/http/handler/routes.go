package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docintel/internal/service"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	DB          *sql.DB
	Documents   service.DocumentService
	Interpreter Interpreter
	// Auth resolves the owner id; every document and query route runs behind it.
	Auth fiber.Handler
	// Broker is checked by /health when extraction is queued. Nil otherwise.
	Broker         Pinger
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin; business rules live in the service and nlquery packages.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB, d.Broker))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := d.Auth
	if auth == nil {
		auth = func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		}
	}

	docs := app.Group("/documents", auth)
	docs.Post("/", IngestDocument(d.Documents, d.MaxUploadBytes))
	docs.Get("/", ListDocuments(d.Documents))
	docs.Post("/search", SearchDocuments(d.Documents))
	docs.Get("/:id", GetDocument(d.Documents))

	app.Post("/query", auth, AskQuestion(d.Interpreter))
}
