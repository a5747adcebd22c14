package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/swaggo/swag"
)

// RegisterSwagger serves the swagger UI under /swagger/*. Host and Schemes are set once here,
// before the server starts, and requests never write to info. An empty host and scheme list
// make the UI call the origin that served the page.
func RegisterSwagger(app *fiber.App, info *swag.Spec, host string) {
	info.Host = host
	info.Schemes = []string{}
	app.Get("/swagger/*", swagger.HandlerDefault)
}
