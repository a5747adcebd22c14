package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/documents", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(RequestIDLocalKey).(string))
	})

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when absent", incoming: ""},
		{name: "kept when usable", incoming: "upload-7f3a", keep: true},
		{name: "replaced when too long", incoming: strings.Repeat("x", 200)},
		{name: "replaced when not printable", incoming: "bad id\t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/documents", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)

			rid := resp.Header.Get(RequestIDHeader)
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, rid, string(body), "handler sees the echoed id")
			if tt.keep {
				assert.Equal(t, tt.incoming, rid)
			} else {
				assert.Len(t, rid, 36)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))

	app.Post("/documents", func(c *fiber.Ctx) error {
		c.Locals(OwnerLocalKey, "user-1")
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	read := func() map[string]any {
		t.Helper()
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		buf.Reset()
		return rec
	}

	resp, err := app.Test(httptest.NewRequest("POST", "/documents", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	rec := read()
	assert.Equal(t, "http_request", rec["msg"])
	assert.Equal(t, resp.Header.Get(RequestIDHeader), rec["request_id"])
	assert.Equal(t, "POST", rec["method"])
	assert.Equal(t, "/documents", rec["path"])
	assert.Equal(t, float64(fiber.StatusCreated), rec["status"])
	assert.Equal(t, "user-1", rec["owner_id"])
	assert.NotNil(t, rec["latency"])
	assert.NotEmpty(t, rec["ts"])

	_, err = app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	rec = read()
	assert.NotContains(t, rec, "owner_id")
}
