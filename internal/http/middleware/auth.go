package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerLocalKey stores the authenticated owner id in Fiber's context locals.
const OwnerLocalKey = "owner_id"

var errMissingSubject = errors.New("token has no subject")

// Auth verifies an HS256 bearer token and stores its subject as the owner id.
// Requests without a valid token are rejected before reaching any handler.
func Auth(secret []byte) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "missing bearer token")
		}

		var claims jwt.RegisteredClaims
		if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
			return unauthorized(c, "invalid token")
		}
		owner, err := subject(&claims)
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		c.Locals(OwnerLocalKey, owner)
		return c.Next()
	}
}

// OwnerID returns the owner id stored by Auth, or "".
func OwnerID(c *fiber.Ctx) string {
	owner, _ := c.Locals(OwnerLocalKey).(string)
	return owner
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func subject(claims *jwt.RegisteredClaims) (string, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

func unauthorized(c *fiber.Ctx, message string) error {
	rid, _ := c.Locals(RequestIDLocalKey).(string)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"request_id": rid,
		"error": fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
